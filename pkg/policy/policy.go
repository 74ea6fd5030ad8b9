// Package policy decides which data-channel transport profile a transfer
// should use, based only on the shape of the file set.
package policy

import (
    "crypto/sha256"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"

    "github.com/AMAzing1233/Fastdrop/pkg/protocol"
    "github.com/AMAzing1233/Fastdrop/pkg/transport"
)

// Selection thresholds. QUIC wins for many files (multiplexing amortizes
// stream setup) or small totals (low latency matters more than throughput);
// TCP wins for few, large, sequential transfers.
const (
    ManyFilesThreshold = 5
    SmallTotalSize     = 100 << 20 // 100 MiB
)

var (
    // ErrNoFiles means the input path list was empty.
    ErrNoFiles = errors.New("policy: no files provided")

    // ErrNotRegular means a path is missing or not a regular file. Hard
    // error, not a skip: a partial manifest must never leave this package.
    ErrNotRegular = errors.New("policy: not a regular file")

    // ErrFileTooLarge / ErrTotalTooLarge report cap violations before any
    // network activity begins.
    ErrFileTooLarge  = errors.New("policy: file exceeds per-file cap")
    ErrTotalTooLarge = errors.New("policy: transfer exceeds total cap")
)

// Choose is the pure selection function: same (count, total) in, same
// transport out, every time.
func Choose(fileCount int, totalSize uint64) transport.Kind {
    if fileCount > ManyFilesThreshold || totalSize < SmallTotalSize {
        return transport.KindQUIC
    }
    return transport.KindTCP
}

// Analyze verifies every path, hashes every file, builds the manifest and
// picks the transport. Any unreadable file aborts the whole analysis.
func Analyze(paths []string) (transport.Kind, protocol.FileManifest, error) {
    if len(paths) == 0 {
        return transport.KindUnknown, protocol.FileManifest{}, ErrNoFiles
    }

    files := make([]protocol.FileDescriptor, 0, len(paths))
    var total uint64
    for _, p := range paths {
        fi, err := os.Stat(p)
        if err != nil {
            return transport.KindUnknown, protocol.FileManifest{}, fmt.Errorf("%w: %s: %v", ErrNotRegular, p, err)
        }
        if !fi.Mode().IsRegular() {
            return transport.KindUnknown, protocol.FileManifest{}, fmt.Errorf("%w: %s", ErrNotRegular, p)
        }
        size := uint64(fi.Size())
        if size > protocol.MaxFileSize {
            return transport.KindUnknown, protocol.FileManifest{}, fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, p, size)
        }
        total += size
        if total > protocol.MaxTotalSize {
            return transport.KindUnknown, protocol.FileManifest{}, fmt.Errorf("%w: %d bytes", ErrTotalTooLarge, total)
        }

        hash, err := HashFile(p)
        if err != nil {
            return transport.KindUnknown, protocol.FileManifest{}, fmt.Errorf("hash %s: %w", p, err)
        }
        files = append(files, protocol.FileDescriptor{
            Name: filepath.Base(p),
            Size: size,
            Hash: &hash,
        })
    }

    m := protocol.FileManifest{Files: files, TotalSize: total}
    return Choose(len(paths), total), m, nil
}

// HashFile streams a file through SHA-256 without loading it whole.
func HashFile(path string) (out [protocol.HashSize]byte, err error) {
    f, err := os.Open(path)
    if err != nil { return out, err }
    defer f.Close()
    h := sha256.New()
    if _, err := io.Copy(h, f); err != nil { return out, err }
    copy(out[:], h.Sum(nil))
    return out, nil
}
