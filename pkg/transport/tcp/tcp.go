// Package tcp implements the sequential high-throughput transport profile
// over plain TCP. A session carries exactly one byte stream.
package tcp

import (
    "context"
    "errors"
    "net"
    "sync"
    "sync/atomic"
    "time"

    "github.com/AMAzing1233/Fastdrop/pkg/transport"
)

type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindTCP }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    l, err := net.Listen("tcp", address)
    if err != nil { return nil, err }
    tl := &listener{l: l, newCh: make(chan *session, 8), closeCh: make(chan struct{})}
    go tl.acceptLoop()
    go func() { <-ctx.Done(); _ = tl.Close() }()
    return tl, nil
}

func (t *Transport) Dial(ctx context.Context, address string, peer transport.PeerInfo) (transport.Session, error) {
    d := &net.Dialer{}
    c, err := d.DialContext(ctx, "tcp", address)
    if err != nil { return nil, err }
    s := newSession(peer, c)
    go func() { <-ctx.Done(); _ = s.Close() }()
    return s, nil
}

type listener struct {
    l       net.Listener
    newCh   chan *session
    closeCh chan struct{}
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-l.closeCh:
        return nil, errors.New("tcp listener closed")
    case s := <-l.newCh:
        return s, nil
    }
}

func (l *listener) Close() error {
    select { case <-l.closeCh: default: close(l.closeCh) }
    return l.l.Close()
}

func (l *listener) acceptLoop() {
    for {
        c, err := l.l.Accept()
        if err != nil { return }
        pi := transport.PeerInfo{ID: transport.TempPeerID(transport.KindTCP, c.RemoteAddr()), Addr: c.RemoteAddr().String()}
        s := newSession(pi, c)
        select { case l.newCh <- s: default: _ = s.Close() }
    }
}

type session struct {
    mu       sync.Mutex
    peer     transport.PeerInfo
    c        net.Conn
    lastSeen atomic.Int64

    streamOnce sync.Once
    st         *connStream
}

func newSession(pi transport.PeerInfo, c net.Conn) *session {
    s := &session{peer: pi, c: c}
    s.lastSeen.Store(time.Now().UnixNano())
    return s
}

func (s *session) Peer() transport.PeerInfo { s.mu.Lock(); defer s.mu.Unlock(); return s.peer }
func (s *session) SetPeer(pi transport.PeerInfo) { s.mu.Lock(); s.peer = pi; s.mu.Unlock() }
func (s *session) TransportKind() transport.Kind { return transport.KindTCP }
func (s *session) LocalAddr() net.Addr  { return s.c.LocalAddr() }
func (s *session) RemoteAddr() net.Addr { return s.c.RemoteAddr() }
func (s *session) LastActivity() time.Time { return time.Unix(0, s.lastSeen.Load()) }
func (s *session) Close() error { return s.c.Close() }

// TCP has no native multiplexing: both directions share the connection's
// single stream.
func (s *session) OpenStream(_ context.Context) (transport.Stream, error)   { return s.stream(), nil }
func (s *session) AcceptStream(_ context.Context) (transport.Stream, error) { return s.stream(), nil }

func (s *session) stream() transport.Stream {
    s.streamOnce.Do(func() { s.st = &connStream{s: s} })
    return s.st
}

type connStream struct{ s *session }

func (cs *connStream) Read(p []byte) (int, error) {
    n, err := cs.s.c.Read(p)
    if n > 0 { cs.s.lastSeen.Store(time.Now().UnixNano()) }
    return n, err
}

func (cs *connStream) Write(p []byte) (int, error) {
    n, err := cs.s.c.Write(p)
    if n > 0 { cs.s.lastSeen.Store(time.Now().UnixNano()) }
    return n, err
}

// Close closes the write side so the peer observes a clean end-of-stream
// after the last frame.
func (cs *connStream) Close() error {
    if tc, ok := cs.s.c.(*net.TCPConn); ok {
        return tc.CloseWrite()
    }
    return cs.s.c.Close()
}
