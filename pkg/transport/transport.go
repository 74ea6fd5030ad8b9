// Package transport abstracts the peer-to-peer data channel: dialing,
// listening and raw bidirectional byte streams between authenticated peers.
// Message framing is deliberately not part of this layer; the protocol
// package frames every message the same way over any Stream.
package transport

import (
    "context"
    "io"
    "net"
    "time"
)

// Kind identifies one of the selectable data-channel transport profiles.
type Kind int

const (
    KindUnknown Kind = iota
    // KindQUIC is profile A: multiplexed, low per-stream setup latency,
    // favored for many small files.
    KindQUIC
    // KindTCP is profile B: simple sequential byte stream, favored for few
    // large files.
    KindTCP
    // KindMem is an in-process transport for tests.
    KindMem
)

func (k Kind) String() string {
    switch k {
    case KindQUIC:
        return "quic"
    case KindTCP:
        return "tcp"
    case KindMem:
        return "mem"
    default:
        return "unknown"
    }
}

// ParseKind maps a wire/config string back to a Kind.
func ParseKind(s string) Kind {
    switch s {
    case "quic":
        return KindQUIC
    case "tcp":
        return KindTCP
    case "mem":
        return KindMem
    default:
        return KindUnknown
    }
}

// PeerID is an opaque stable peer identity (public key derived).
type PeerID string

// PeerInfo bundles peer identity and addressing hints.
type PeerInfo struct {
    ID   PeerID
    Addr string // transport-dependent address string
}

// Stream is a raw bidirectional byte stream. Exactly one reader and one
// writer goroutine are expected.
type Stream interface {
    io.Reader
    io.Writer
    Close() error
}

// Session represents a live connection to a peer.
type Session interface {
    Peer() PeerInfo
    TransportKind() Kind
    LocalAddr() net.Addr
    RemoteAddr() net.Addr

    // OpenStream opens an outbound stream. Transports without native
    // multiplexing return the connection's single stream.
    OpenStream(ctx context.Context) (Stream, error)

    // AcceptStream waits for the next inbound stream.
    AcceptStream(ctx context.Context) (Stream, error)

    // LastActivity reports when bytes last moved on this session; the
    // session manager uses it to reap stalled transfers.
    LastActivity() time.Time

    Close() error
}

// MutablePeer is an optional interface Sessions implement to allow rebinding
// the peer identity once the handshake reveals it.
type MutablePeer interface {
    SetPeer(PeerInfo)
}

// Listener accepts inbound sessions.
type Listener interface {
    // Accept blocks until an inbound session is available or ctx is done.
    Accept(ctx context.Context) (Session, error)
    // Addr returns the local listening address.
    Addr() net.Addr
    // Close stops the listener and unblocks Accept.
    Close() error
}

// Transport provides dialing/listening for one transport profile.
type Transport interface {
    Kind() Kind
    Listen(ctx context.Context, address string) (Listener, error)
    Dial(ctx context.Context, address string, peer PeerInfo) (Session, error)
}
