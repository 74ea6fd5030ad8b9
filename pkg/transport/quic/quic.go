// Package quic implements the multiplexed low-latency transport profile on
// top of quic-go. Each transfer session runs on its own bidirectional QUIC
// stream; closing the stream's send side gives the receiver a clean
// end-of-stream after the last chunk.
package quic

import (
    "context"
    "crypto/ed25519"
    "crypto/rand"
    "crypto/tls"
    "crypto/x509"
    "errors"
    "math/big"
    "net"
    "sync"
    "sync/atomic"
    "time"

    quicgo "github.com/quic-go/quic-go"

    "github.com/AMAzing1233/Fastdrop/pkg/transport"
)

const alpnProtocol = "fastdrop"

type Transport struct {
    tlsConf  *tls.Config
    quicConf *quicgo.Config
}

// New builds the transport with an ephemeral self-signed server certificate.
// Channel identity is not TLS-based: the peer is authenticated by the ticket
// exchange above this layer.
func New() (*Transport, error) {
    cert, err := selfSignedCert()
    if err != nil { return nil, err }
    tlsConf := &tls.Config{
        Certificates: []tls.Certificate{cert},
        NextProtos:   []string{alpnProtocol},
        MinVersion:   tls.VersionTLS13,
    }
    return &Transport{tlsConf: tlsConf, quicConf: &quicgo.Config{}}, nil
}

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    l, err := quicgo.ListenAddr(address, t.tlsConf, t.quicConf)
    if err != nil { return nil, err }
    ql := &listener{l: l, newCh: make(chan *session, 8), closeCh: make(chan struct{})}
    go ql.acceptLoop(ctx)
    go func() { <-ctx.Done(); _ = ql.Close() }()
    return ql, nil
}

func (t *Transport) Dial(ctx context.Context, address string, peer transport.PeerInfo) (transport.Session, error) {
    tlsClient := &tls.Config{
        InsecureSkipVerify: true, // peer identity comes from the session ticket, not TLS
        NextProtos:         []string{alpnProtocol},
        MinVersion:         tls.VersionTLS13,
    }
    c, err := quicgo.DialAddr(ctx, address, tlsClient, t.quicConf)
    if err != nil { return nil, err }
    s := newSession(peer, c)
    go func() { <-ctx.Done(); _ = s.Close() }()
    return s, nil
}

type listener struct {
    l       *quicgo.Listener
    newCh   chan *session
    closeCh chan struct{}
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-l.closeCh:
        return nil, errors.New("quic listener closed")
    case s := <-l.newCh:
        return s, nil
    }
}

func (l *listener) Close() error {
    select { case <-l.closeCh: default: close(l.closeCh) }
    return l.l.Close()
}

func (l *listener) acceptLoop(ctx context.Context) {
    for {
        c, err := l.l.Accept(ctx)
        if err != nil { return }
        pi := transport.PeerInfo{ID: transport.TempPeerID(transport.KindQUIC, c.RemoteAddr()), Addr: c.RemoteAddr().String()}
        s := newSession(pi, c)
        select { case l.newCh <- s: default: _ = s.Close() }
    }
}

type session struct {
    mu       sync.Mutex
    peer     transport.PeerInfo
    c        quicgo.Connection
    lastSeen atomic.Int64
}

func newSession(pi transport.PeerInfo, c quicgo.Connection) *session {
    s := &session{peer: pi, c: c}
    s.lastSeen.Store(time.Now().UnixNano())
    return s
}

func (s *session) Peer() transport.PeerInfo { s.mu.Lock(); defer s.mu.Unlock(); return s.peer }
func (s *session) SetPeer(pi transport.PeerInfo) { s.mu.Lock(); s.peer = pi; s.mu.Unlock() }
func (s *session) TransportKind() transport.Kind { return transport.KindQUIC }
func (s *session) LocalAddr() net.Addr  { return s.c.LocalAddr() }
func (s *session) RemoteAddr() net.Addr { return s.c.RemoteAddr() }
func (s *session) LastActivity() time.Time { return time.Unix(0, s.lastSeen.Load()) }

func (s *session) OpenStream(ctx context.Context) (transport.Stream, error) {
    st, err := s.c.OpenStreamSync(ctx)
    if err != nil { return nil, err }
    return &qstream{s: s, st: st}, nil
}

func (s *session) AcceptStream(ctx context.Context) (transport.Stream, error) {
    st, err := s.c.AcceptStream(ctx)
    if err != nil { return nil, err }
    return &qstream{s: s, st: st}, nil
}

func (s *session) Close() error {
    return s.c.CloseWithError(0, "")
}

type qstream struct {
    s  *session
    st quicgo.Stream
}

func (q *qstream) Read(p []byte) (int, error) {
    n, err := q.st.Read(p)
    if n > 0 { q.s.lastSeen.Store(time.Now().UnixNano()) }
    return n, err
}

func (q *qstream) Write(p []byte) (int, error) {
    n, err := q.st.Write(p)
    if n > 0 { q.s.lastSeen.Store(time.Now().UnixNano()) }
    return n, err
}

// Close closes the send side; the peer's pending Read returns io.EOF once
// all in-flight frames are consumed.
func (q *qstream) Close() error { return q.st.Close() }

// selfSignedCert generates a short-lived ed25519 certificate for the server
// side of the QUIC handshake.
func selfSignedCert() (tls.Certificate, error) {
    pub, priv, err := ed25519.GenerateKey(rand.Reader)
    if err != nil { return tls.Certificate{}, err }
    tmpl := x509.Certificate{
        SerialNumber:          big.NewInt(time.Now().UnixNano()),
        NotBefore:             time.Now().Add(-time.Minute),
        NotAfter:              time.Now().Add(24 * time.Hour),
        KeyUsage:              x509.KeyUsageDigitalSignature,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
        BasicConstraintsValid: true,
        DNSNames:              []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, pub, priv)
    if err != nil { return tls.Certificate{}, err }
    return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}
