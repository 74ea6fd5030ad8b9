package transport

import (
    "encoding/base64"
    "fmt"
    "net"
    "strings"
)

// TempPeerID builds a temporary peer id from transport kind and remote
// address, used before the transfer request reveals anything better.
func TempPeerID(kind Kind, addr net.Addr) PeerID {
    if addr == nil { return PeerID(fmt.Sprintf("temp:%s:unknown", kind)) }
    return PeerID(fmt.Sprintf("temp:%s:%s", kind, addr.String()))
}

// TempPeerIDForAddr is TempPeerID for dialers that only have the string form
// of the remote address.
func TempPeerIDForAddr(kind Kind, addr string) PeerID {
    if addr == "" { return PeerID(fmt.Sprintf("temp:%s:unknown", kind)) }
    return PeerID(fmt.Sprintf("temp:%s:%s", kind, addr))
}

// CanonicalPeerIDFromPubKey constructs a canonical peer id from public key
// bytes. The format is: pk:<alg>:<base64url-nopad(pubkey)>
func CanonicalPeerIDFromPubKey(alg string, pub []byte) PeerID {
    alg = strings.ToLower(strings.TrimSpace(alg))
    enc := base64.RawURLEncoding.EncodeToString(pub)
    return PeerID("pk:" + alg + ":" + enc)
}

// PubKeyFromPeerID reverses CanonicalPeerIDFromPubKey. ok is false for temp
// ids and any other identity that does not embed a public key.
func PubKeyFromPeerID(id PeerID) (alg string, pub []byte, ok bool) {
    parts := strings.SplitN(string(id), ":", 3)
    if len(parts) != 3 || parts[0] != "pk" || parts[1] == "" {
        return "", nil, false
    }
    b, err := base64.RawURLEncoding.DecodeString(parts[2])
    if err != nil || len(b) == 0 {
        return "", nil, false
    }
    return parts[1], b, true
}
