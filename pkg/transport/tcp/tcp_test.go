package tcp

import (
    "context"
    "io"
    "testing"
    "time"

    "github.com/AMAzing1233/Fastdrop/pkg/transport"
)

func TestDialListenExchange(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()

    tr := New()
    l, err := tr.Listen(ctx, "127.0.0.1:0")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer l.Close()

    type acceptResult struct {
        sess transport.Session
        err  error
    }
    acceptCh := make(chan acceptResult, 1)
    go func() {
        s, err := l.Accept(ctx)
        acceptCh <- acceptResult{s, err}
    }()

    cli, err := tr.Dial(ctx, l.Addr().String(), transport.PeerInfo{ID: "srv"})
    if err != nil { t.Fatalf("dial: %v", err) }
    defer cli.Close()

    ar := <-acceptCh
    if ar.err != nil { t.Fatalf("accept: %v", ar.err) }
    defer ar.sess.Close()

    cs, err := cli.OpenStream(ctx)
    if err != nil { t.Fatalf("open stream: %v", err) }
    ss, err := ar.sess.AcceptStream(ctx)
    if err != nil { t.Fatalf("accept stream: %v", err) }

    msg := []byte("over the wire")
    go func() {
        _, _ = cs.Write(msg)
        _ = cs.Close() // half-close: server sees EOF after the payload
    }()

    got, err := io.ReadAll(ss)
    if err != nil { t.Fatalf("read: %v", err) }
    if string(got) != string(msg) {
        t.Fatalf("payload mismatch: %q", got)
    }
}

func TestActivityStamps(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()

    tr := New()
    l, err := tr.Listen(ctx, "127.0.0.1:0")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer l.Close()
    go func() {
        s, err := l.Accept(ctx)
        if err != nil { return }
        st, err := s.AcceptStream(ctx)
        if err != nil { return }
        buf := make([]byte, 1)
        _, _ = st.Read(buf)
    }()

    cli, err := tr.Dial(ctx, l.Addr().String(), transport.PeerInfo{ID: "srv"})
    if err != nil { t.Fatalf("dial: %v", err) }
    defer cli.Close()

    before := cli.LastActivity()
    time.Sleep(10 * time.Millisecond)
    st, _ := cli.OpenStream(ctx)
    if _, err := st.Write([]byte{1}); err != nil { t.Fatalf("write: %v", err) }
    if !cli.LastActivity().After(before) {
        t.Fatal("writes must advance the activity stamp")
    }
}
