package main

import (
    "bufio"
    "context"
    "crypto/ed25519"
    "encoding/base64"
    "fmt"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "go.uber.org/zap"

    "github.com/AMAzing1233/Fastdrop/pkg/config"
    "github.com/AMAzing1233/Fastdrop/pkg/crypto/sign"
    "github.com/AMAzing1233/Fastdrop/pkg/observability"
    "github.com/AMAzing1233/Fastdrop/pkg/protocol/codec"
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

    zap.L().Info("fastdrop-recv started", zap.String("app", cfg.AppName))

    tkStr := strings.TrimSpace(opts.Ticket)
    if tkStr == "" {
        fmt.Print("paste ticket: ")
        line, err := bufio.NewReader(os.Stdin).ReadString('\n')
        if err != nil {
            zap.L().Error("reading ticket from stdin", zap.Error(err))
            return 1
        }
        tkStr = strings.TrimSpace(line)
    }
    tb, err := base64.RawURLEncoding.DecodeString(tkStr)
    if err != nil {
        zap.L().Error("ticket is not valid base64url", zap.Error(err))
        return 1
    }
    tk, err := ticket.Parse(tb)
    if err != nil {
        zap.L().Error("ticket parse failed", zap.Error(err))
        return 1
    }
    if alg, pub, ok := transport.PubKeyFromPeerID(transport.PeerID(tk.PeerID)); ok && alg == "ed25519" && len(pub) == ed25519.PublicKeySize {
        if !tk.Verify(sign.Ed25519Verifier{Pub: pub}) {
            zap.L().Error("ticket signature rejected", zap.String("peer", tk.PeerID))
            return 1
        }
        zap.L().Info("ticket signature verified", zap.String("peer", tk.PeerID))
    } else {
        // Peer id carries no key (placeholder tag scheme); nothing to check.
        zap.L().Warn("ticket tag not verifiable from peer id", zap.String("peer", tk.PeerID))
    }
    zap.L().Info("ticket accepted",
        zap.String("peer", tk.PeerID),
        zap.String("transport", tk.Transport),
        zap.Strings("addrs", tk.Addrs))

    dir := opts.OutDir
    if dir == "" {
        dir = cfg.Transfer.DownloadDir
    }

    var transports []transport.Transport
    qt, err := quictr.New()
    if err != nil {
        zap.L().Error("quic transport setup failed", zap.Error(err))
        return 1
    }
    transports = append(transports, qt, tcptr.New())

    window := time.Duration(cfg.Discovery.ScanWindowSec) * time.Second
    rcv := session.NewReceiver(transports, dir, window)

    ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer cancel()

    manifest, err := rcv.Run(ctx, tk)
    if err != nil {
        zap.L().Error("transfer failed", zap.Error(err))
        return 1
    }
    for _, f := range manifest.Files {
        fmt.Printf("received %s (%s)\n", f.Name, transfer.FormatBytes(f.Size))
    }
    if summary, err := codec.JSON().Marshal(manifest); err == nil {
        zap.L().Debug("manifest", zap.ByteString("json", summary))
    }
    zap.L().Info("done",
        zap.Int("files", len(manifest.Files)),
        zap.String("total", transfer.FormatBytes(manifest.TotalSize)),
        zap.String("dir", dir))
    return 0
}
