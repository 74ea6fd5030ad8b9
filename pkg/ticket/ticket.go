// Package ticket implements the session ticket: the compact descriptor a
// sender exposes over the out-of-band channel so a receiver can locate and
// dial it. Tickets are consumed exactly once and never persisted.
package ticket

import (
    "errors"
    "fmt"
    "net"
    "strings"

    "github.com/AMAzing1233/Fastdrop/pkg/crypto/sign"
    "github.com/AMAzing1233/Fastdrop/pkg/protocol/codec"
    "github.com/AMAzing1233/Fastdrop/pkg/transport"
)

// MaxEncodedSize is the out-of-band channel budget for a single payload
// read. An encoding over this limit fails fast rather than truncating.
const MaxEncodedSize = 512

var (
    // ErrNoUsableAddr means no non-loopback address survived filtering.
    ErrNoUsableAddr = errors.New("ticket: no non-loopback listen address")

    // ErrTooLarge means the encoded ticket exceeds the advertisement budget.
    ErrTooLarge = errors.New("ticket: encoding exceeds payload budget")

    // ErrDecode means the bytes are not a valid ticket encoding. Distinct
    // from transport errors so the receiver can report a malformed
    // advertisement instead of a connectivity failure.
    ErrDecode = errors.New("ticket: malformed encoding")
)

// Ticket tells a receiver how to reach the sender and which transport to
// expect. The Sig field is an authentication tag produced by a pluggable
// sign.Signer; the scheme in use is not identified on the wire.
type Ticket struct {
    PeerID    string             `cbor:"peer_id"`
    Addrs     []string           `cbor:"addrs"`
    Transport string             `cbor:"transport"` // transport.Kind string form
    Nonce     uint64             `cbor:"nonce"`
    Sig       [sign.TagSize]byte `cbor:"sig"`
}

// Kind returns the decoded transport profile.
func (t *Ticket) Kind() transport.Kind { return transport.ParseKind(t.Transport) }

// signedBytes is the byte string the tag covers: every field but the tag
// itself, in fixed order.
func (t *Ticket) signedBytes() []byte {
    var b strings.Builder
    b.WriteString(t.PeerID)
    for _, a := range t.Addrs {
        b.WriteByte(0)
        b.WriteString(a)
    }
    b.WriteByte(0)
    b.WriteString(t.Transport)
    b.WriteString(fmt.Sprintf("|%d", t.Nonce))
    return []byte(b.String())
}

// Build assembles and encodes a ticket. Loopback addresses are dropped
// first: a ticket advertised to another physical device must not point back
// at that device's own loopback. Build fails if nothing usable remains or if
// the encoding would not fit a single out-of-band read.
func Build(peerID transport.PeerID, addrs []string, kind transport.Kind, nonce uint64, signer sign.Signer) ([]byte, error) {
    usable := FilterLoopback(addrs)
    if len(usable) == 0 {
        return nil, ErrNoUsableAddr
    }
    t := Ticket{
        PeerID:    string(peerID),
        Addrs:     usable,
        Transport: kind.String(),
        Nonce:     nonce,
    }
    tag, err := signer.Sign(t.signedBytes())
    if err != nil {
        return nil, fmt.Errorf("sign ticket: %w", err)
    }
    t.Sig = tag

    c, err := codec.CBOR()
    if err != nil { return nil, err }
    b, err := c.Marshal(&t)
    if err != nil {
        return nil, fmt.Errorf("encode ticket: %w", err)
    }
    if len(b) > MaxEncodedSize {
        return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(b), MaxEncodedSize)
    }
    return b, nil
}

// Parse decodes a ticket read from the out-of-band channel.
func Parse(b []byte) (Ticket, error) {
    c, err := codec.CBOR()
    if err != nil { return Ticket{}, err }
    var t Ticket
    if err := c.Unmarshal(b, &t); err != nil {
        return Ticket{}, fmt.Errorf("%w: %v", ErrDecode, err)
    }
    if t.PeerID == "" || len(t.Addrs) == 0 || t.Kind() == transport.KindUnknown {
        return Ticket{}, fmt.Errorf("%w: missing required fields", ErrDecode)
    }
    return t, nil
}

// Verify checks the authentication tag with the given verifier.
func (t *Ticket) Verify(v sign.Verifier) bool {
    return v.Verify(t.signedBytes(), t.Sig)
}

// ExpandUnspecified replaces a wildcard listen address (0.0.0.0 / ::) with
// one address per non-loopback interface IP, keeping the bound port. Other
// addresses pass through unchanged.
func ExpandUnspecified(addr string) []string {
    host, port, err := net.SplitHostPort(addr)
    if err != nil {
        return []string{addr}
    }
    ip := net.ParseIP(host)
    if ip == nil || !ip.IsUnspecified() {
        return []string{addr}
    }
    ifaddrs, err := net.InterfaceAddrs()
    if err != nil {
        return []string{addr}
    }
    out := make([]string, 0, len(ifaddrs))
    for _, ia := range ifaddrs {
        ipn, ok := ia.(*net.IPNet)
        if !ok || ipn.IP.IsLoopback() {
            continue
        }
        // match the bound family
        if (ipn.IP.To4() != nil) != (ip.To4() != nil) {
            continue
        }
        out = append(out, net.JoinHostPort(ipn.IP.String(), port))
    }
    if len(out) == 0 {
        return []string{addr}
    }
    return out
}

// FilterLoopback drops loopback and unspecified host addresses. Addresses
// whose host part does not parse as an IP are kept (mem transport names,
// hostnames).
func FilterLoopback(addrs []string) []string {
    out := make([]string, 0, len(addrs))
    for _, a := range addrs {
        host := a
        if h, _, err := net.SplitHostPort(a); err == nil {
            host = h
        }
        if ip := net.ParseIP(host); ip != nil {
            if ip.IsLoopback() || ip.IsUnspecified() {
                continue
            }
        }
        out = append(out, a)
    }
    return out
}
