package session

import (
    "context"
    "crypto/rand"
    "encoding/binary"
    "errors"
    "fmt"
    "io"
    "time"

    "go.uber.org/zap"

    "github.com/AMAzing1233/Fastdrop/pkg/discovery"
    "github.com/AMAzing1233/Fastdrop/pkg/protocol"
    "github.com/AMAzing1233/Fastdrop/pkg/ticket"
    "github.com/AMAzing1233/Fastdrop/pkg/transfer"
    "github.com/AMAzing1233/Fastdrop/pkg/transport"
)

// DefaultScanWindow bounds a discovery scan.
const DefaultScanWindow = 15 * time.Second

var (
    // ErrNoTransport means the ticket names a transport profile this
    // receiver has no dialer for.
    ErrNoTransport = errors.New("session: unsupported transport in ticket")

    // ErrDeclined means the sender closed the stream without a response, or
    // answered with accepted == false.
    ErrDeclined = errors.New("session: transfer declined by sender")

    // ErrBadResponse means the response did not echo our request id or the
    // manifest violates the size caps.
    ErrBadResponse = errors.New("session: invalid transfer response")
)

// Candidate is one discovered sender: the device plus the transport profile
// its advertisement named.
type Candidate struct {
    Device discovery.Device
    Kind   transport.Kind
}

// Receiver drives the receiving half: scan, fetch a ticket, dial the sender
// and reassemble the incoming file set on disk.
type Receiver struct {
    transports  map[transport.Kind]transport.Transport
    downloadDir string
    scanWindow  time.Duration
    mgr         *transport.Manager
}

// NewReceiver builds a receiver that can dial any of the given transports
// and writes received files under downloadDir.
func NewReceiver(transports []transport.Transport, downloadDir string, scanWindow time.Duration) *Receiver {
    if scanWindow <= 0 {
        scanWindow = DefaultScanWindow
    }
    byKind := make(map[transport.Kind]transport.Transport, len(transports))
    for _, t := range transports {
        byKind[t.Kind()] = t
    }
    return &Receiver{
        transports:  byKind,
        downloadDir: downloadDir,
        scanWindow:  scanWindow,
        mgr:         transport.NewManager(),
    }
}

// Discover scans the out-of-band channel for one window and returns every
// device advertising a known service, tagged with its transport profile.
func (r *Receiver) Discover(ctx context.Context, c discovery.Central) ([]Candidate, error) {
    if err := c.AwaitPoweredOn(ctx); err != nil {
        return nil, fmt.Errorf("discovery channel power-on: %w", err)
    }
    devices, err := c.Scan(ctx, r.scanWindow)
    if err != nil {
        return nil, fmt.Errorf("scan: %w", err)
    }
    var out []Candidate
    for _, d := range devices {
        for _, sid := range d.ServiceIDs {
            if k, ok := discovery.KindForService(sid); ok {
                out = append(out, Candidate{Device: d, Kind: k})
                break
            }
        }
    }
    zap.L().Info("scan complete", zap.Int("devices", len(devices)), zap.Int("senders", len(out)))
    return out, nil
}

// FetchTicket connects to a candidate and reads its session ticket. The
// ticket's transport must match the one the advertisement promised.
func (r *Receiver) FetchTicket(ctx context.Context, c discovery.Central, cand Candidate) (ticket.Ticket, error) {
    char, ok := discovery.CharUUID(cand.Kind)
    if !ok {
        return ticket.Ticket{}, fmt.Errorf("%w: %s", ErrNoTransport, cand.Kind)
    }
    b, err := c.ReadCharacteristic(ctx, cand.Device, char)
    if err != nil {
        return ticket.Ticket{}, fmt.Errorf("read ticket: %w", err)
    }
    t, err := ticket.Parse(b)
    if err != nil {
        return ticket.Ticket{}, err
    }
    if t.Kind() != cand.Kind {
        return ticket.Ticket{}, fmt.Errorf("%w: advertised %s, ticket says %s", ticket.ErrDecode, cand.Kind, t.Kind())
    }
    return t, nil
}

// Run consumes one ticket: dial the sender, send a single ready request,
// validate the response and stream every file to disk. It returns the agreed
// manifest on success; the ticket is spent either way.
func (r *Receiver) Run(ctx context.Context, t ticket.Ticket) (protocol.FileManifest, error) {
    log := zap.L().With(zap.String("peer", t.PeerID))
    m := newMachine(t.PeerID)
    m.on(EvScanDone)
    m.on(EvTicketParsed)

    tr := r.transports[t.Kind()]
    if tr == nil {
        m.on(EvError)
        return protocol.FileManifest{}, fmt.Errorf("%w: %s", ErrNoTransport, t.Transport)
    }

    sess, err := r.dial(ctx, tr, t)
    if err != nil {
        m.on(EvError)
        return protocol.FileManifest{}, err
    }
    // Track the session under its dial-time temp id until the sender proves
    // it is the ticket's peer by echoing our request id.
    peerID := sess.Peer().ID
    r.mgr.Add(sess)
    defer func() { r.mgr.Remove(peerID) }()
    m.on(EvConnEstablished)

    st, err := sess.OpenStream(ctx)
    if err != nil {
        m.on(EvError)
        return protocol.FileManifest{}, fmt.Errorf("open stream: %w", err)
    }
    conn, err := protocol.NewConn(st)
    if err != nil {
        m.on(EvError)
        return protocol.FileManifest{}, err
    }

    reqID, err := randomID()
    if err != nil {
        m.on(EvError)
        return protocol.FileManifest{}, err
    }
    if err := conn.Send(protocol.TransferRequest{RequestID: reqID, Ready: true}); err != nil {
        m.on(EvError)
        return protocol.FileManifest{}, fmt.Errorf("send request: %w", err)
    }
    m.on(EvRequestSent)

    var resp protocol.TransferResponse
    if err := conn.Recv(&resp); err != nil {
        m.on(EvConnClosed)
        if err == io.EOF {
            // Stream closed before any response: the sender was not serving
            // this request.
            return protocol.FileManifest{}, ErrDeclined
        }
        return protocol.FileManifest{}, fmt.Errorf("read response: %w", err)
    }
    if err := validateResponse(reqID, resp); err != nil {
        m.on(EvError)
        return protocol.FileManifest{}, err
    }
    // The echoed request id confirms we reached the ticket's peer; promote
    // the session from its temp id to the canonical identity.
    if r.mgr.Rebind(peerID, transport.PeerID(t.PeerID)) {
        peerID = transport.PeerID(t.PeerID)
    }
    m.on(EvResponseReceived)
    log.Info("manifest received",
        zap.Int("files", len(resp.Manifest.Files)),
        zap.String("total", transfer.FormatBytes(resp.Manifest.TotalSize)))

    m.on(EvChunkFlow)
    eng := transfer.NewEngine(resp.Manifest, r.downloadDir)
    if err := eng.Run(conn); err != nil {
        m.on(EvError)
        return protocol.FileManifest{}, err
    }
    m.on(EvStreamClosed)
    log.Info("transfer complete", zap.String("dir", r.downloadDir))
    return resp.Manifest, nil
}

// dial tries each ticket address in order; the first session wins. Sessions
// start under an address-derived temp id; the canonical id from the ticket is
// bound only after the response proves it.
func (r *Receiver) dial(ctx context.Context, tr transport.Transport, t ticket.Ticket) (transport.Session, error) {
    var last error
    for _, addr := range t.Addrs {
        peer := transport.PeerInfo{ID: transport.TempPeerIDForAddr(tr.Kind(), addr), Addr: addr}
        sess, err := tr.Dial(ctx, addr, peer)
        if err == nil {
            return sess, nil
        }
        last = err
        zap.L().Debug("dial failed", zap.String("addr", addr), zap.Error(err))
    }
    return nil, fmt.Errorf("dial %s (%d addrs): %w", t.PeerID, len(t.Addrs), last)
}

func validateResponse(reqID uint64, resp protocol.TransferResponse) error {
    if resp.RequestID != reqID {
        return fmt.Errorf("%w: request id %d, got %d", ErrBadResponse, reqID, resp.RequestID)
    }
    if !resp.Accepted {
        return ErrDeclined
    }
    var total uint64
    for _, f := range resp.Manifest.Files {
        if f.Size > protocol.MaxFileSize {
            return fmt.Errorf("%w: file %q over per-file cap", ErrBadResponse, f.Name)
        }
        total += f.Size
    }
    if total > protocol.MaxTotalSize || resp.Manifest.TotalSize > protocol.MaxTotalSize {
        return fmt.Errorf("%w: manifest over total cap", ErrBadResponse)
    }
    return nil
}

func randomID() (uint64, error) {
    var b [8]byte
    if _, err := rand.Read(b[:]); err != nil {
        return 0, fmt.Errorf("request id: %w", err)
    }
    return binary.LittleEndian.Uint64(b[:]), nil
}
