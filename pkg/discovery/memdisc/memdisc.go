// Package memdisc is an in-process implementation of the out-of-band channel,
// used by tests and as the reference for real radio bindings.
package memdisc

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/AMAzing1233/Fastdrop/pkg/discovery"
)

// Bus is a shared in-memory advertisement board. A Peripheral posts one
// advertisement; Centrals scan and read it.
type Bus struct {
    mu  sync.Mutex
    ads map[string]*ad // keyed by device addr
}

type ad struct {
    name      string
    serviceID uuid.UUID
    charID    uuid.UUID
    payload   []byte
}

func NewBus() *Bus { return &Bus{ads: make(map[string]*ad)} }

// Peripheral returns the broadcast half bound to the given device address.
func (b *Bus) Peripheral(addr string) *Peripheral { return &Peripheral{bus: b, addr: addr} }

// Central returns the scanning half.
func (b *Bus) Central() *Central { return &Central{bus: b} }

type Peripheral struct {
    bus  *Bus
    addr string
}

func (p *Peripheral) AwaitPoweredOn(ctx context.Context) error { return ctx.Err() }

func (p *Peripheral) Advertise(ctx context.Context, name string, serviceID, charID uuid.UUID, payload []byte) error {
    if err := ctx.Err(); err != nil { return err }
    p.bus.mu.Lock()
    defer p.bus.mu.Unlock()
    if _, ok := p.bus.ads[p.addr]; ok {
        return errors.New("memdisc: already advertising")
    }
    p.bus.ads[p.addr] = &ad{name: name, serviceID: serviceID, charID: charID, payload: append([]byte(nil), payload...)}
    go func() { <-ctx.Done(); _ = p.StopAdvertising() }()
    return nil
}

func (p *Peripheral) StopAdvertising() error {
    p.bus.mu.Lock()
    defer p.bus.mu.Unlock()
    delete(p.bus.ads, p.addr)
    return nil
}

type Central struct {
    bus *Bus
}

func (c *Central) AwaitPoweredOn(ctx context.Context) error { return ctx.Err() }

func (c *Central) Scan(ctx context.Context, window time.Duration) ([]discovery.Device, error) {
    // The in-memory board is immediate; honor a shortened window so tests
    // stay fast but cancellation still works.
    if window > 10*time.Millisecond {
        window = 10 * time.Millisecond
    }
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-time.After(window):
    }
    c.bus.mu.Lock()
    defer c.bus.mu.Unlock()
    out := make([]discovery.Device, 0, len(c.bus.ads))
    for addr, a := range c.bus.ads {
        out = append(out, discovery.Device{Addr: addr, Name: a.name, ServiceIDs: []uuid.UUID{a.serviceID}})
    }
    return out, nil
}

func (c *Central) ReadCharacteristic(ctx context.Context, d discovery.Device, charID uuid.UUID) ([]byte, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    c.bus.mu.Lock()
    defer c.bus.mu.Unlock()
    a := c.bus.ads[d.Addr]
    if a == nil {
        return nil, errors.New("memdisc: device gone")
    }
    if a.charID != charID {
        return nil, errors.New("memdisc: no such characteristic")
    }
    return append([]byte(nil), a.payload...), nil
}
