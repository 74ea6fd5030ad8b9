package session

import (
    "context"
    "fmt"
    "time"

    "go.uber.org/zap"

    "github.com/AMAzing1233/Fastdrop/pkg/crypto/sign"
    "github.com/AMAzing1233/Fastdrop/pkg/discovery"
    "github.com/AMAzing1233/Fastdrop/pkg/protocol"
    "github.com/AMAzing1233/Fastdrop/pkg/ticket"
    "github.com/AMAzing1233/Fastdrop/pkg/transfer"
    "github.com/AMAzing1233/Fastdrop/pkg/transport"
)

// DefaultIdleTimeout is how long a peer session may sit without byte
// movement before it is reaped.
const DefaultIdleTimeout = 5 * time.Minute

// Sender serves one fixed file set to any number of receivers, each on its
// own isolated session. The manifest is built once before serving starts and
// never changes while the sender runs.
type Sender struct {
    manifest protocol.FileManifest
    paths    []string // same order as manifest.Files
    idle     time.Duration
    mgr      *transport.Manager
}

// NewSender wires a manifest to the local paths backing it. paths[i] must be
// the file described by manifest.Files[i].
func NewSender(manifest protocol.FileManifest, paths []string, idle time.Duration) (*Sender, error) {
    if len(paths) != len(manifest.Files) {
        return nil, fmt.Errorf("session: %d paths for %d manifest entries", len(paths), len(manifest.Files))
    }
    if idle <= 0 {
        idle = DefaultIdleTimeout
    }
    return &Sender{
        manifest: manifest,
        paths:    paths,
        idle:     idle,
        mgr:      transport.NewManager(),
    }, nil
}

// Manifest returns the served file set.
func (s *Sender) Manifest() protocol.FileManifest { return s.manifest }

// Advertise builds the session ticket and starts broadcasting it on the
// out-of-band channel under the (service, characteristic) pair of the chosen
// transport profile. It blocks until the radio is powered on, then returns
// with the advertisement running; it stays up until StopAdvertising or ctx
// cancellation.
func (s *Sender) Advertise(ctx context.Context, p discovery.Peripheral, name string,
    peerID transport.PeerID, addrs []string, kind transport.Kind, nonce uint64, signer sign.Signer) error {

    b, err := ticket.Build(peerID, addrs, kind, nonce, signer)
    if err != nil { return err }
    svc, ok := discovery.ServiceUUID(kind)
    if !ok {
        return fmt.Errorf("session: no discovery service for transport %s", kind)
    }
    char, _ := discovery.CharUUID(kind)

    if err := p.AwaitPoweredOn(ctx); err != nil {
        return fmt.Errorf("discovery channel power-on: %w", err)
    }
    if err := p.Advertise(ctx, name, svc, char, b); err != nil {
        return fmt.Errorf("advertise ticket: %w", err)
    }
    zap.L().Info("advertising",
        zap.String("name", name),
        zap.String("transport", kind.String()),
        zap.Int("ticket_bytes", len(b)))
    return nil
}

// Serve accepts inbound sessions until ctx is done or the listener fails.
// Every accepted peer gets its own goroutine and its own session state; one
// misbehaving receiver never disturbs another. Idle sessions are reaped after
// the inactivity window.
func (s *Sender) Serve(ctx context.Context, l transport.Listener) error {
    go s.mgr.ReapIdle(ctx, s.idle)
    defer s.mgr.CloseAll()

    for {
        sess, err := l.Accept(ctx)
        if err != nil {
            if ctx.Err() != nil {
                return nil
            }
            return fmt.Errorf("accept session: %w", err)
        }
        s.mgr.Add(sess)
        go s.serveOne(ctx, sess)
    }
}

// serveOne runs the sender half of the protocol for a single peer: read
// exactly one request, answer it only when the peer is ready, then stream
// every chunk of every file in manifest order.
func (s *Sender) serveOne(ctx context.Context, sess transport.Session) {
    peer := string(sess.Peer().ID)
    log := zap.L().With(zap.String("peer", peer))
    m := newMachine(peer)
    defer func() {
        s.mgr.Remove(sess.Peer().ID)
        log.Debug("session closed", zap.String("final_state", m.State().String()))
    }()

    if _, err := m.on(EvConnEstablished); err != nil {
        return
    }

    st, err := sess.AcceptStream(ctx)
    if err != nil {
        log.Warn("no stream from peer", zap.Error(err))
        m.on(EvConnClosed)
        return
    }
    conn, err := protocol.NewConn(st)
    if err != nil {
        m.on(EvError)
        return
    }

    var req protocol.TransferRequest
    if err := conn.Recv(&req); err != nil {
        log.Warn("reading transfer request", zap.Error(err))
        m.on(EvConnClosed)
        return
    }
    m.on(EvRequestReceived)
    log.Info("transfer request", zap.Uint64("request_id", req.RequestID), zap.Bool("ready", req.Ready))

    if !req.Ready {
        // A not-ready peer gets no response and no data; closing the stream
        // is the whole answer.
        _ = st.Close()
        m.on(EvConnClosed)
        return
    }

    resp := protocol.TransferResponse{
        RequestID: req.RequestID,
        Manifest:  s.manifest,
        Accepted:  true,
    }
    if err := conn.Send(resp); err != nil {
        log.Warn("sending transfer response", zap.Error(err))
        m.on(EvError)
        return
    }
    m.on(EvResponseSent)

    for i, path := range s.paths {
        m.on(EvChunkFlow)
        err := transfer.SendFile(path, uint32(i), func(ch protocol.Chunk) error {
            return conn.Send(ch)
        })
        if err != nil {
            log.Error("streaming file", zap.String("path", path), zap.Error(err))
            m.on(EvError)
            return
        }
        log.Debug("file streamed", zap.Uint32("index", uint32(i)), zap.String("path", path))
    }

    // Closing the stream is the end-of-transfer signal: the peer sees a
    // clean EOF at a frame boundary.
    if err := st.Close(); err != nil {
        log.Warn("closing stream", zap.Error(err))
    }
    m.on(EvStreamClosed)
    log.Info("transfer complete",
        zap.Int("files", len(s.paths)),
        zap.String("total", transfer.FormatBytes(s.manifest.TotalSize)))
}
