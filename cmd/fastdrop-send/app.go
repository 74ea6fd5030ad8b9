package main

import (
    "context"
    "crypto/rand"
    "encoding/base64"
    "encoding/binary"
    "fmt"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "github.com/AMAzing1233/Fastdrop/pkg/config"
    "github.com/AMAzing1233/Fastdrop/pkg/crypto/sign"
    "github.com/AMAzing1233/Fastdrop/pkg/identity"
    "github.com/AMAzing1233/Fastdrop/pkg/observability"
    "github.com/AMAzing1233/Fastdrop/pkg/policy"
    "github.com/AMAzing1233/Fastdrop/pkg/session"
    "github.com/AMAzing1233/Fastdrop/pkg/ticket"
    "github.com/AMAzing1233/Fastdrop/pkg/transfer"
    "github.com/AMAzing1233/Fastdrop/pkg/transport"
    quictr "github.com/AMAzing1233/Fastdrop/pkg/transport/quic"
    tcptr "github.com/AMAzing1233/Fastdrop/pkg/transport/tcp"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }

    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()

    if len(opts.Files) == 0 {
        _, _ = os.Stderr.WriteString("usage: fastdrop-send [flags] FILE...\n")
        return 2
    }

    zap.L().Info("fastdrop-send started", zap.String("app", cfg.AppName), zap.Int("files", len(opts.Files)))

    priv, peerID, err := identity.LoadOrGenEd25519(cfg.Identity)
    if err != nil {
        zap.L().Error("failed to init identity", zap.Error(err))
        return 1
    }

    kind, manifest, err := policy.Analyze(opts.Files)
    if err != nil {
        zap.L().Error("file analysis failed", zap.Error(err))
        return 1
    }
    zap.L().Info("transfer analyzed",
        zap.String("transport", kind.String()),
        zap.Int("files", len(manifest.Files)),
        zap.String("total", transfer.FormatBytes(manifest.TotalSize)),
        zap.Uint64("chunks", manifest.TotalChunks()))

    tr, err := newTransport(kind)
    if err != nil {
        zap.L().Error("transport setup failed", zap.Error(err))
        return 1
    }

    ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer cancel()

    l, err := tr.Listen(ctx, opts.Listen)
    if err != nil {
        zap.L().Error("listen failed", zap.String("addr", opts.Listen), zap.Error(err))
        return 1
    }
    defer l.Close()
    addrs := ticket.ExpandUnspecified(l.Addr().String())
    zap.L().Info("listening", zap.String("transport", kind.String()), zap.Strings("addrs", addrs))

    var nb [8]byte
    if _, err := rand.Read(nb[:]); err != nil {
        zap.L().Error("nonce generation failed", zap.Error(err))
        return 1
    }
    nonce := binary.LittleEndian.Uint64(nb[:])

    tb, err := ticket.Build(peerID, addrs, kind, nonce, sign.Ed25519Signer{Priv: priv})
    if err != nil {
        zap.L().Error("ticket build failed", zap.Error(err))
        return 1
    }
    // Without a radio binding the ticket is handed over by hand: the printed
    // string is the out-of-band channel.
    fmt.Printf("ticket: %s\n", base64.RawURLEncoding.EncodeToString(tb))

    idle := time.Duration(cfg.Transfer.IdleTimeoutSec) * time.Second
    snd, err := session.NewSender(manifest, opts.Files, idle)
    if err != nil {
        zap.L().Error("sender setup failed", zap.Error(err))
        return 1
    }

    zap.L().Info("serving; press Ctrl+C to exit")
    if err := snd.Serve(ctx, l); err != nil {
        zap.L().Error("serve failed", zap.Error(err))
        return 1
    }
    return 0
}

func newTransport(kind transport.Kind) (transport.Transport, error) {
    switch kind {
    case transport.KindQUIC:
        return quictr.New()
    case transport.KindTCP:
        return tcptr.New(), nil
    default:
        return nil, fmt.Errorf("no transport for %s", kind)
    }
}
