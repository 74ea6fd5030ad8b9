package policy

import (
    "errors"
    "os"
    "path/filepath"
    "testing"

    "github.com/AMAzing1233/Fastdrop/pkg/protocol"
    "github.com/AMAzing1233/Fastdrop/pkg/transport"
)

func TestChoose(t *testing.T) {
    cases := []struct {
        count int
        total uint64
        want  transport.Kind
    }{
        {6, 1 << 10, transport.KindQUIC},         // many files
        {2, 200 << 20, transport.KindTCP},        // few, large
        {2, 50 << 20, transport.KindQUIC},        // few, small total
        {5, SmallTotalSize, transport.KindTCP},   // both thresholds exactly missed
        {6, SmallTotalSize, transport.KindQUIC},  // count crosses
        {1, SmallTotalSize - 1, transport.KindQUIC}, // size just under
    }
    for _, c := range cases {
        if got := Choose(c.count, c.total); got != c.want {
            t.Fatalf("Choose(%d, %d) = %s, want %s", c.count, c.total, got, c.want)
        }
    }
}

func TestChooseDeterministic(t *testing.T) {
    for i := 0; i < 100; i++ {
        if Choose(3, 250<<20) != transport.KindTCP {
            t.Fatal("selection must be a pure function of its inputs")
        }
    }
}

func writeFile(t *testing.T, dir, name string, size int) string {
    t.Helper()
    p := filepath.Join(dir, name)
    if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil { t.Fatalf("write %s: %v", name, err) }
    return p
}

func TestAnalyze(t *testing.T) {
    dir := t.TempDir()
    a := writeFile(t, dir, "a.bin", 4096)
    b := writeFile(t, dir, "b.bin", 100)

    kind, m, err := Analyze([]string{a, b})
    if err != nil { t.Fatalf("analyze: %v", err) }
    if kind != transport.KindQUIC {
        t.Fatalf("small total should pick quic, got %s", kind)
    }
    if len(m.Files) != 2 || m.TotalSize != 4196 {
        t.Fatalf("bad manifest: %+v", m)
    }
    if m.Files[0].Name != "a.bin" || m.Files[0].Size != 4096 {
        t.Fatalf("manifest order must follow input order: %+v", m.Files)
    }
    for i, f := range m.Files {
        if f.Hash == nil { t.Fatalf("file %d missing hash", i) }
    }

    want, err := HashFile(a)
    if err != nil { t.Fatalf("hash: %v", err) }
    if *m.Files[0].Hash != want {
        t.Fatal("manifest hash does not match file content")
    }
}

func TestAnalyzeEmpty(t *testing.T) {
    if _, _, err := Analyze(nil); !errors.Is(err, ErrNoFiles) {
        t.Fatalf("want ErrNoFiles, got %v", err)
    }
}

func TestAnalyzeMissingFile(t *testing.T) {
    dir := t.TempDir()
    ok := writeFile(t, dir, "ok.bin", 10)
    _, _, err := Analyze([]string{ok, filepath.Join(dir, "nope.bin")})
    if !errors.Is(err, ErrNotRegular) {
        t.Fatalf("missing file must abort the whole analysis, got %v", err)
    }
}

func TestAnalyzeDirectory(t *testing.T) {
    dir := t.TempDir()
    if _, _, err := Analyze([]string{dir}); !errors.Is(err, ErrNotRegular) {
        t.Fatalf("directory must be rejected, got %v", err)
    }
}

func TestChunkArithmetic(t *testing.T) {
    // A 10 MiB + 5 MiB + 1 KiB set splits into 16 chunks.
    m := protocol.FileManifest{Files: []protocol.FileDescriptor{
        {Name: "big", Size: 10 << 20},
        {Name: "mid", Size: 5 << 20},
        {Name: "tiny", Size: 1 << 10},
    }}
    if got := m.TotalChunks(); got != 16 {
        t.Fatalf("TotalChunks = %d, want 16", got)
    }
}
