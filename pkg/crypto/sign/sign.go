// Package sign provides the pluggable authentication-tag capability used by
// the session ticket.
package sign

import (
    "crypto/ed25519"
    "encoding/binary"
)

// TagSize is the fixed size of a ticket authentication tag.
const TagSize = 64

// Signer produces an authentication tag over ticket bytes.
type Signer interface {
    Sign(data []byte) ([TagSize]byte, error)
}

// Verifier checks an authentication tag against ticket bytes.
type Verifier interface {
    Verify(data []byte, tag [TagSize]byte) bool
}

// Ed25519Signer signs with a real ed25519 key.
type Ed25519Signer struct{ Priv ed25519.PrivateKey }

func (s Ed25519Signer) Sign(data []byte) (out [TagSize]byte, err error) {
    copy(out[:], ed25519.Sign(s.Priv, data))
    return out, nil
}

// Ed25519Verifier verifies against the signer's public key.
type Ed25519Verifier struct{ Pub ed25519.PublicKey }

func (v Ed25519Verifier) Verify(data []byte, tag [TagSize]byte) bool {
    return ed25519.Verify(v.Pub, data, tag[:])
}

// NoncePlaceholder is the tag scheme of the first protocol revision: the
// session nonce in the tag's first eight bytes, the rest zero. It proves
// nothing cryptographically and exists so both ends can interoperate until
// receivers learn sender keys out of band.
type NoncePlaceholder struct{ Nonce uint64 }

func (p NoncePlaceholder) Sign(_ []byte) (out [TagSize]byte, err error) {
    binary.LittleEndian.PutUint64(out[:8], p.Nonce)
    return out, nil
}

func (p NoncePlaceholder) Verify(_ []byte, tag [TagSize]byte) bool {
    return binary.LittleEndian.Uint64(tag[:8]) == p.Nonce
}
