// Package mem is an in-process transport built on net.Pipe, used by tests to
// exercise the full session flow without sockets.
package mem

import (
    "context"
    "errors"
    "fmt"
    "net"
    "sync"
    "sync/atomic"
    "time"

    "github.com/AMAzing1233/Fastdrop/pkg/transport"
)

type Transport struct {
    mu        sync.Mutex
    listeners map[string]*listener
    nextConn  atomic.Uint64
}

func New() *Transport { return &Transport{listeners: make(map[string]*listener)} }

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, name string) (transport.Listener, error) {
    t.mu.Lock()
    defer t.mu.Unlock()
    if _, ok := t.listeners[name]; ok {
        return nil, errors.New("mem: listener already exists")
    }
    l := &listener{name: name, newCh: make(chan *session, 8), closeCh: make(chan struct{})}
    t.listeners[name] = l
    go func() {
        <-ctx.Done()
        _ = l.Close()
        t.mu.Lock()
        delete(t.listeners, name)
        t.mu.Unlock()
    }()
    return l, nil
}

func (t *Transport) Dial(ctx context.Context, name string, peer transport.PeerInfo) (transport.Session, error) {
    t.mu.Lock()
    l := t.listeners[name]
    t.mu.Unlock()
    if l == nil { return nil, errors.New("mem: no such listener") }
    c1, c2 := net.Pipe()
    // net.Pipe addresses are all "pipe"; a per-dial id keeps inbound
    // sessions distinct in the peer table.
    connAddr := memAddr(fmt.Sprintf("%s/%d", name, t.nextConn.Add(1)))
    srv := newSession(transport.PeerInfo{ID: transport.TempPeerID(transport.KindMem, connAddr), Addr: name}, c1)
    cli := newSession(peer, c2)
    select {
    case l.newCh <- srv:
    default:
        _ = srv.Close()
        _ = cli.Close()
        return nil, errors.New("mem: listener backlog full")
    }
    go func() { <-ctx.Done(); _ = cli.Close() }()
    return cli, nil
}

type listener struct {
    name    string
    newCh   chan *session
    closeCh chan struct{}
}

func (l *listener) Addr() net.Addr { return memAddr(l.name) }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-l.closeCh:
        return nil, errors.New("mem listener closed")
    case s := <-l.newCh:
        return s, nil
    }
}

func (l *listener) Close() error {
    select { case <-l.closeCh: default: close(l.closeCh) }
    return nil
}

type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

type session struct {
    mu       sync.Mutex
    peer     transport.PeerInfo
    c        net.Conn
    lastSeen atomic.Int64

    streamOnce sync.Once
    st         *pipeStream
}

func newSession(pi transport.PeerInfo, c net.Conn) *session {
    s := &session{peer: pi, c: c}
    s.lastSeen.Store(time.Now().UnixNano())
    return s
}

func (s *session) Peer() transport.PeerInfo { s.mu.Lock(); defer s.mu.Unlock(); return s.peer }
func (s *session) SetPeer(pi transport.PeerInfo) { s.mu.Lock(); s.peer = pi; s.mu.Unlock() }
func (s *session) TransportKind() transport.Kind { return transport.KindMem }
func (s *session) LocalAddr() net.Addr  { return s.c.LocalAddr() }
func (s *session) RemoteAddr() net.Addr { return s.c.RemoteAddr() }
func (s *session) LastActivity() time.Time { return time.Unix(0, s.lastSeen.Load()) }
func (s *session) Close() error { return s.c.Close() }

func (s *session) OpenStream(_ context.Context) (transport.Stream, error)   { return s.stream(), nil }
func (s *session) AcceptStream(_ context.Context) (transport.Stream, error) { return s.stream(), nil }

func (s *session) stream() transport.Stream {
    s.streamOnce.Do(func() { s.st = &pipeStream{s: s} })
    return s.st
}

type pipeStream struct{ s *session }

func (ps *pipeStream) Read(p []byte) (int, error) {
    n, err := ps.s.c.Read(p)
    if n > 0 { ps.s.lastSeen.Store(time.Now().UnixNano()) }
    return n, err
}

func (ps *pipeStream) Write(p []byte) (int, error) {
    n, err := ps.s.c.Write(p)
    if n > 0 { ps.s.lastSeen.Store(time.Now().UnixNano()) }
    return n, err
}

// net.Pipe has no half-close; closing this end surfaces as io.EOF on the
// peer's next Read, which is exactly the clean-close signal the framing
// layer expects.
func (ps *pipeStream) Close() error { return ps.s.c.Close() }
