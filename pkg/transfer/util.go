package transfer

import (
    "crypto/sha256"
    "fmt"
    "io"
    "os"

    "github.com/AMAzing1233/Fastdrop/pkg/protocol"
)

func hashPath(path string) (out [protocol.HashSize]byte, err error) {
    f, err := os.Open(path)
    if err != nil { return out, err }
    defer f.Close()
    h := sha256.New()
    if _, err := io.Copy(h, f); err != nil { return out, err }
    copy(out[:], h.Sum(nil))
    return out, nil
}

// FormatBytes renders a byte count for humans.
func FormatBytes(n uint64) string {
    const unit = 1024
    if n < unit {
        return fmt.Sprintf("%d B", n)
    }
    div, exp := uint64(unit), 0
    for m := n / unit; m >= unit; m /= unit {
        div *= unit
        exp++
    }
    return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

// Progress returns completion as a percentage.
func Progress(received, total uint64) float64 {
    if total == 0 {
        return 0
    }
    return float64(received) / float64(total) * 100
}
