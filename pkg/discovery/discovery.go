// Package discovery defines the out-of-band bootstrap channel surface: a
// low-bandwidth broadcast/read mechanism used only to hand a session ticket
// from sender to receiver. Real radio bindings live outside this module; the
// core depends only on these interfaces.
package discovery

import (
    "context"
    "time"

    "github.com/google/uuid"

    "github.com/AMAzing1233/Fastdrop/pkg/transport"
)

// Each transport profile advertises under its own (service, characteristic)
// UUID pair so a scanning receiver can tell the transport apart before it
// connects and reads the payload.
var (
    QUICServiceUUID = uuid.MustParse("12345678-1234-5678-1234-56789abcdef0")
    QUICCharUUID    = uuid.MustParse("abcdefab-cdef-1234-5678-1234567890ab")

    TCPServiceUUID = uuid.MustParse("87654321-4321-8765-4321-fedcba987654")
    TCPCharUUID    = uuid.MustParse("bafedcba-fedc-4321-8765-ba0987654321")

    // The in-process transport gets its own pair so the full discovery flow
    // can run without a radio.
    MemServiceUUID = uuid.MustParse("0f0f0f0f-0f0f-4f0f-8f0f-0f0f0f0f0f0f")
    MemCharUUID    = uuid.MustParse("1e1e1e1e-1e1e-4e1e-8e1e-1e1e1e1e1e1e")
)

// AllServiceUUIDs lists every service id a receiver should scan for.
func AllServiceUUIDs() []uuid.UUID {
    return []uuid.UUID{QUICServiceUUID, TCPServiceUUID}
}

// ServiceUUID returns the discovery identifier for a transport profile.
func ServiceUUID(k transport.Kind) (uuid.UUID, bool) {
    switch k {
    case transport.KindQUIC:
        return QUICServiceUUID, true
    case transport.KindTCP:
        return TCPServiceUUID, true
    case transport.KindMem:
        return MemServiceUUID, true
    default:
        return uuid.UUID{}, false
    }
}

// CharUUID returns the payload identifier for a transport profile.
func CharUUID(k transport.Kind) (uuid.UUID, bool) {
    switch k {
    case transport.KindQUIC:
        return QUICCharUUID, true
    case transport.KindTCP:
        return TCPCharUUID, true
    case transport.KindMem:
        return MemCharUUID, true
    default:
        return uuid.UUID{}, false
    }
}

// KindForService maps an advertised service id back to its transport profile.
func KindForService(id uuid.UUID) (transport.Kind, bool) {
    switch id {
    case QUICServiceUUID:
        return transport.KindQUIC, true
    case TCPServiceUUID:
        return transport.KindTCP, true
    case MemServiceUUID:
        return transport.KindMem, true
    default:
        return transport.KindUnknown, false
    }
}

// Device is one scan result.
type Device struct {
    Addr       string
    Name       string
    ServiceIDs []uuid.UUID
}

// HasService reports whether the device advertised the given service id.
func (d Device) HasService(id uuid.UUID) bool {
    for _, s := range d.ServiceIDs {
        if s == id {
            return true
        }
    }
    return false
}

// Peripheral is the broadcast side of the out-of-band channel. The channel
// and its single payload are process-wide, single-writer resources: one
// advertisement at a time.
type Peripheral interface {
    // AwaitPoweredOn blocks until the underlying radio is usable or ctx is
    // done. There is no upper bound other than the context.
    AwaitPoweredOn(ctx context.Context) error

    // Advertise broadcasts presence under name and serviceID, exposing
    // payload for reads on charID, until StopAdvertising or ctx cancel.
    Advertise(ctx context.Context, name string, serviceID, charID uuid.UUID, payload []byte) error

    StopAdvertising() error
}

// Central is the scanning side of the out-of-band channel.
type Central interface {
    AwaitPoweredOn(ctx context.Context) error

    // Scan collects advertisements for the given window and returns the
    // devices seen. It runs for the full window unless ctx is cancelled.
    Scan(ctx context.Context, window time.Duration) ([]Device, error)

    // ReadCharacteristic connects to the device and reads the full payload
    // value in a single read.
    ReadCharacteristic(ctx context.Context, d Device, charID uuid.UUID) ([]byte, error)
}
