package protocol

import (
    "bytes"
    "errors"
    "io"
    "net"
    "testing"
)

func TestFrameRoundTrip(t *testing.T) {
    var buf bytes.Buffer
    payloads := [][]byte{[]byte("hello"), {}, bytes.Repeat([]byte{0xAB}, ChunkSize)}
    for _, p := range payloads {
        if err := WriteFrame(&buf, p); err != nil { t.Fatalf("write: %v", err) }
    }
    for i, want := range payloads {
        got, err := ReadFrame(&buf)
        if err != nil { t.Fatalf("read %d: %v", i, err) }
        if !bytes.Equal(got, want) {
            t.Fatalf("frame %d: got %d bytes, want %d", i, len(got), len(want))
        }
    }
    if _, err := ReadFrame(&buf); err != io.EOF {
        t.Fatalf("exhausted stream must be clean EOF, got %v", err)
    }
}

func TestReadFrameTruncatedPayload(t *testing.T) {
    var buf bytes.Buffer
    if err := WriteFrame(&buf, []byte("abcdef")); err != nil { t.Fatalf("write: %v", err) }
    cut := buf.Bytes()[:buf.Len()-3]
    if _, err := ReadFrame(bytes.NewReader(cut)); !errors.Is(err, ErrTruncatedFrame) {
        t.Fatalf("want ErrTruncatedFrame, got %v", err)
    }
}

func TestReadFrameTruncatedPrefix(t *testing.T) {
    if _, err := ReadFrame(bytes.NewReader([]byte{0, 0})); !errors.Is(err, ErrTruncatedFrame) {
        t.Fatalf("partial length prefix must be truncation, got %v", err)
    }
}

func TestReadFrameTooLarge(t *testing.T) {
    b := []byte{0xFF, 0xFF, 0xFF, 0xFF}
    if _, err := ReadFrame(bytes.NewReader(b)); !errors.Is(err, ErrFrameTooLarge) {
        t.Fatalf("want ErrFrameTooLarge, got %v", err)
    }
}

func TestWriteFrameTooLarge(t *testing.T) {
    err := WriteFrame(io.Discard, make([]byte, MaxFrameSize+1))
    if !errors.Is(err, ErrFrameTooLarge) {
        t.Fatalf("want ErrFrameTooLarge, got %v", err)
    }
}

func TestConnMessageExchange(t *testing.T) {
    a, b := net.Pipe()
    defer a.Close()
    defer b.Close()

    ca, err := NewConn(a)
    if err != nil { t.Fatalf("conn a: %v", err) }
    cb, err := NewConn(b)
    if err != nil { t.Fatalf("conn b: %v", err) }

    go func() {
        _ = ca.Send(TransferRequest{RequestID: 9, Ready: true})
    }()
    var req TransferRequest
    if err := cb.Recv(&req); err != nil { t.Fatalf("recv: %v", err) }
    if req.RequestID != 9 || !req.Ready {
        t.Fatalf("roundtrip mismatch: %+v", req)
    }
}

func TestConnCleanClose(t *testing.T) {
    a, b := net.Pipe()
    defer b.Close()

    cb, err := NewConn(b)
    if err != nil { t.Fatalf("conn: %v", err) }
    go a.Close()
    var msg TransferRequest
    if err := cb.Recv(&msg); err != io.EOF {
        t.Fatalf("peer close between messages must be io.EOF, got %v", err)
    }
}

func manifestOf(sizes ...uint64) FileManifest {
    var m FileManifest
    for _, s := range sizes {
        m.Files = append(m.Files, FileDescriptor{Size: s})
        m.TotalSize += s
    }
    return m
}

func TestTotalChunksOnValue(t *testing.T) {
    // Calling directly on a function result: TotalChunks must work on a
    // non-addressable manifest value.
    if got := manifestOf(10<<20, 5<<20, 1<<10).TotalChunks(); got != 16 {
        t.Fatalf("TotalChunks = %d, want 16", got)
    }
    if got := manifestOf().TotalChunks(); got != 0 {
        t.Fatalf("empty manifest: %d chunks, want 0", got)
    }
}

func TestChunkCount(t *testing.T) {
    cases := []struct{ size, want uint64 }{
        {0, 1},
        {1, 1},
        {ChunkSize, 1},
        {ChunkSize + 1, 2},
        {10 << 20, 10},
        {5 << 20, 5},
        {1 << 10, 1},
    }
    for _, c := range cases {
        if got := ChunkCount(c.size); got != c.want {
            t.Fatalf("ChunkCount(%d) = %d, want %d", c.size, got, c.want)
        }
    }
}
