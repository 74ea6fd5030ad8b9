package transfer

import (
    "bytes"
    "crypto/sha256"
    "errors"
    "io"
    "math/rand"
    "os"
    "path/filepath"
    "testing"

    "github.com/AMAzing1233/Fastdrop/pkg/protocol"
)

func writeRandomFile(t *testing.T, dir, name string, size int) (string, [protocol.HashSize]byte) {
    t.Helper()
    b := make([]byte, size)
    rand.New(rand.NewSource(int64(size))).Read(b)
    p := filepath.Join(dir, name)
    if err := os.WriteFile(p, b, 0o644); err != nil { t.Fatalf("write: %v", err) }
    return p, sha256.Sum256(b)
}

func TestChunkerSplitsInOrder(t *testing.T) {
    dir := t.TempDir()
    size := 2*protocol.ChunkSize + 100
    p, _ := writeRandomFile(t, dir, "f.bin", size)

    ck, err := NewChunker(p, 3)
    if err != nil { t.Fatalf("chunker: %v", err) }
    defer ck.Close()
    if ck.TotalChunks() != 3 {
        t.Fatalf("TotalChunks = %d, want 3", ck.TotalChunks())
    }

    var total int
    for i := 0; ; i++ {
        ch, err := ck.Next()
        if err == io.EOF { break }
        if err != nil { t.Fatalf("next: %v", err) }
        if ch.FileIndex != 3 || ch.ChunkNumber != uint64(i) || ch.TotalChunks != 3 {
            t.Fatalf("bad chunk header: %+v", ch)
        }
        if i < 2 && len(ch.Payload) != protocol.ChunkSize {
            t.Fatalf("chunk %d: %d bytes, want full chunk", i, len(ch.Payload))
        }
        if i == 2 && len(ch.Payload) != 100 {
            t.Fatalf("last chunk: %d bytes, want 100", len(ch.Payload))
        }
        total += len(ch.Payload)
    }
    if total != size {
        t.Fatalf("chunked %d bytes, want %d", total, size)
    }
}

func TestChunkerExactMultiple(t *testing.T) {
    dir := t.TempDir()
    p, _ := writeRandomFile(t, dir, "f.bin", 2*protocol.ChunkSize)
    ck, err := NewChunker(p, 0)
    if err != nil { t.Fatalf("chunker: %v", err) }
    defer ck.Close()
    if ck.TotalChunks() != 2 {
        t.Fatalf("exact multiple must not grow a trailing chunk: %d", ck.TotalChunks())
    }
}

func TestChunkerZeroByteFile(t *testing.T) {
    dir := t.TempDir()
    p, _ := writeRandomFile(t, dir, "empty", 0)
    ck, err := NewChunker(p, 0)
    if err != nil { t.Fatalf("chunker: %v", err) }
    defer ck.Close()

    ch, err := ck.Next()
    if err != nil { t.Fatalf("next: %v", err) }
    if len(ch.Payload) != 0 || ch.TotalChunks != 1 {
        t.Fatalf("zero-byte file must yield one empty chunk: %+v", ch)
    }
    if _, err := ck.Next(); err != io.EOF {
        t.Fatalf("want EOF after the single chunk, got %v", err)
    }
}

// chunkFeed replays a prepared chunk sequence into an Engine.
type chunkFeed struct {
    chunks []protocol.Chunk
    i      int
}

func (f *chunkFeed) Recv(v any) error {
    if f.i >= len(f.chunks) {
        return io.EOF
    }
    *(v.(*protocol.Chunk)) = f.chunks[f.i]
    f.i++
    return nil
}

func chunksOf(t *testing.T, path string, idx uint32) []protocol.Chunk {
    t.Helper()
    var out []protocol.Chunk
    if err := SendFile(path, idx, func(ch protocol.Chunk) error {
        out = append(out, ch)
        return nil
    }); err != nil {
        t.Fatalf("chunking %s: %v", path, err)
    }
    return out
}

func TestEngineRoundTrip(t *testing.T) {
    src := t.TempDir()
    p1, h1 := writeRandomFile(t, src, "one.bin", protocol.ChunkSize+17)
    p2, h2 := writeRandomFile(t, src, "two.bin", 512)
    p3, h3 := writeRandomFile(t, src, "empty.bin", 0)

    m := protocol.FileManifest{
        Files: []protocol.FileDescriptor{
            {Name: "one.bin", Size: uint64(protocol.ChunkSize + 17), Hash: &h1},
            {Name: "two.bin", Size: 512, Hash: &h2},
            {Name: "empty.bin", Size: 0, Hash: &h3},
        },
        TotalSize: uint64(protocol.ChunkSize + 17 + 512),
    }

    var feed chunkFeed
    feed.chunks = append(feed.chunks, chunksOf(t, p1, 0)...)
    feed.chunks = append(feed.chunks, chunksOf(t, p2, 1)...)
    feed.chunks = append(feed.chunks, chunksOf(t, p3, 2)...)

    dst := t.TempDir()
    eng := NewEngine(m, dst)
    if err := eng.Run(&feed); err != nil { t.Fatalf("run: %v", err) }
    if !eng.Complete() {
        t.Fatal("engine must report completion")
    }

    for _, name := range []string{"one.bin", "two.bin", "empty.bin"} {
        want, err := os.ReadFile(filepath.Join(src, name))
        if err != nil { t.Fatalf("read src: %v", err) }
        got, err := os.ReadFile(filepath.Join(dst, name))
        if err != nil { t.Fatalf("read dst: %v", err) }
        if !bytes.Equal(got, want) {
            t.Fatalf("%s: content mismatch after reassembly", name)
        }
    }
}

func TestEngineDuplicateNames(t *testing.T) {
    a := sha256.Sum256([]byte("abc"))
    b := sha256.Sum256([]byte("hello"))
    m := protocol.FileManifest{
        Files: []protocol.FileDescriptor{
            {Name: "dup.bin", Size: 3, Hash: &a},
            {Name: "sub/dup.bin", Size: 5, Hash: &b},
        },
        TotalSize: 8,
    }
    feed := &chunkFeed{chunks: []protocol.Chunk{
        {FileIndex: 0, ChunkNumber: 0, TotalChunks: 1, Payload: []byte("abc")},
        {FileIndex: 1, ChunkNumber: 0, TotalChunks: 1, Payload: []byte("hello")},
    }}
    dir := t.TempDir()
    eng := NewEngine(m, dir)
    if err := eng.Run(feed); err != nil { t.Fatalf("run: %v", err) }

    got, err := os.ReadFile(filepath.Join(dir, "dup.bin"))
    if err != nil { t.Fatalf("read first: %v", err) }
    if string(got) != "abc" {
        t.Fatalf("first file was overwritten: %q", got)
    }
    got, err = os.ReadFile(filepath.Join(dir, "dup.bin.1"))
    if err != nil { t.Fatalf("read second: %v", err) }
    if string(got) != "hello" {
        t.Fatalf("second file content: %q", got)
    }
}

func TestEngineRogueIndexKeepsCompleted(t *testing.T) {
    // A completed, verified file must survive a later out-of-range chunk.
    h := sha256.Sum256([]byte("ok"))
    m := protocol.FileManifest{
        Files: []protocol.FileDescriptor{
            {Name: "done.bin", Size: 2, Hash: &h},
            {Name: "never.bin", Size: 4},
        },
        TotalSize: 6,
    }
    feed := &chunkFeed{chunks: []protocol.Chunk{
        {FileIndex: 0, ChunkNumber: 0, TotalChunks: 1, Payload: []byte("ok")},
        {FileIndex: 99, ChunkNumber: 0, TotalChunks: 1, Payload: []byte("boom")},
    }}
    dir := t.TempDir()
    eng := NewEngine(m, dir)
    err := eng.Run(feed)
    if !errors.Is(err, ErrBadFileIndex) {
        t.Fatalf("want ErrBadFileIndex, got %v", err)
    }
    got, rerr := os.ReadFile(filepath.Join(dir, "done.bin"))
    if rerr != nil || string(got) != "ok" {
        t.Fatalf("completed file must stay intact: %q, %v", got, rerr)
    }
    if eng.Complete() {
        t.Fatal("aborted transfer must not report completion")
    }
}

func TestEngineBadFileIndex(t *testing.T) {
    m := protocol.FileManifest{Files: []protocol.FileDescriptor{{Name: "a", Size: 1}}}
    eng := NewEngine(m, t.TempDir())
    err := eng.HandleChunk(protocol.Chunk{FileIndex: 5, TotalChunks: 1, Payload: []byte("x")})
    if !errors.Is(err, ErrBadFileIndex) {
        t.Fatalf("want ErrBadFileIndex, got %v", err)
    }
}

func TestEngineHashMismatch(t *testing.T) {
    var wrong [protocol.HashSize]byte
    m := protocol.FileManifest{Files: []protocol.FileDescriptor{{Name: "a.bin", Size: 3, Hash: &wrong}}}
    eng := NewEngine(m, t.TempDir())
    err := eng.HandleChunk(protocol.Chunk{FileIndex: 0, ChunkNumber: 0, TotalChunks: 1, Payload: []byte("abc")})
    if !errors.Is(err, ErrHashMismatch) {
        t.Fatalf("want ErrHashMismatch, got %v", err)
    }
}

func TestEngineTotalChunksConflict(t *testing.T) {
    m := protocol.FileManifest{Files: []protocol.FileDescriptor{{Name: "a.bin", Size: 3 * protocol.ChunkSize}}}
    eng := NewEngine(m, t.TempDir())
    if err := eng.HandleChunk(protocol.Chunk{FileIndex: 0, ChunkNumber: 0, TotalChunks: 3, Payload: make([]byte, protocol.ChunkSize)}); err != nil {
        t.Fatalf("first chunk: %v", err)
    }
    err := eng.HandleChunk(protocol.Chunk{FileIndex: 0, ChunkNumber: 1, TotalChunks: 4, Payload: make([]byte, protocol.ChunkSize)})
    if !errors.Is(err, ErrChunkConflict) {
        t.Fatalf("want ErrChunkConflict, got %v", err)
    }
}

func TestEngineTruncatedStream(t *testing.T) {
    // Two chunks expected, one delivered; the stream then closes cleanly.
    m := protocol.FileManifest{Files: []protocol.FileDescriptor{{Name: "a.bin", Size: uint64(protocol.ChunkSize + 5)}}}
    feed := &chunkFeed{chunks: []protocol.Chunk{
        {FileIndex: 0, ChunkNumber: 0, TotalChunks: 2, Payload: make([]byte, protocol.ChunkSize)},
    }}
    dir := t.TempDir()
    eng := NewEngine(m, dir)
    if err := eng.Run(feed); err == nil {
        t.Fatal("truncated transfer must not report success")
    }
    // Partial data is on disk but the engine never marked the file done.
    if eng.Complete() {
        t.Fatal("incomplete file must not count as complete")
    }
    if _, err := os.Stat(filepath.Join(dir, "a.bin")); err != nil {
        t.Fatalf("partial file should remain for inspection: %v", err)
    }
}

func TestFormatBytes(t *testing.T) {
    cases := []struct {
        in   uint64
        want string
    }{
        {512, "512 B"},
        {1 << 10, "1.00 KiB"},
        {10 << 20, "10.00 MiB"},
        {1536, "1.50 KiB"},
    }
    for _, c := range cases {
        if got := FormatBytes(c.in); got != c.want {
            t.Fatalf("FormatBytes(%d) = %q, want %q", c.in, got, c.want)
        }
    }
}

func TestProgress(t *testing.T) {
    if Progress(0, 0) != 0 {
        t.Fatal("zero total must not divide by zero")
    }
    if got := Progress(8, 16); got != 50 {
        t.Fatalf("Progress(8,16) = %v, want 50", got)
    }
}
