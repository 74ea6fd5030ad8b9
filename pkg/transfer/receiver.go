package transfer

import (
    "bytes"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"

    "go.uber.org/zap"

    "github.com/AMAzing1233/Fastdrop/pkg/protocol"
)

var (
    // ErrBadFileIndex reports a chunk referencing a file outside the
    // manifest. Fatal for the stream: the peer is confused or hostile.
    ErrBadFileIndex = errors.New("transfer: chunk file index out of manifest range")

    // ErrHashMismatch reports a completed file whose recomputed digest does
    // not match the manifest. The file stays on disk, flagged unverified.
    ErrHashMismatch = errors.New("transfer: content hash mismatch")

    // ErrChunkConflict reports a chunk whose TotalChunks disagrees with an
    // earlier chunk of the same file.
    ErrChunkConflict = errors.New("transfer: total_chunks changed mid-file")
)

// fileState tracks one in-flight output file. Created on the first chunk for
// its index, destroyed when the last chunk lands. Owned exclusively by the
// Engine handling one inbound stream.
type fileState struct {
    f        *os.File
    path     string
    expected uint64 // learned from the first chunk seen
    received uint64
    written  uint64
}

// Engine reassembles one inbound chunk stream into files under dir, writing
// each chunk to disk immediately on receipt. One Engine instance serves one
// peer stream and is not safe for concurrent use.
type Engine struct {
    manifest protocol.FileManifest
    dir      string
    open     map[uint32]*fileState
    done     map[uint32]bool
    names    map[string]uint32 // claimed output name -> file index
}

// NewEngine prepares reassembly for one session's manifest.
func NewEngine(manifest protocol.FileManifest, dir string) *Engine {
    return &Engine{
        manifest: manifest,
        dir:      dir,
        open:     make(map[uint32]*fileState),
        done:     make(map[uint32]bool),
        names:    make(map[string]uint32),
    }
}

// Receiver is the message source HandleStream consumes: anything that can
// decode the next chunk (protocol.Conn in production, a stub in tests).
type Receiver interface {
    Recv(v any) error
}

// Run consumes framed chunks from conn until the peer closes the stream
// cleanly, then reports whether every manifest file completed. Incomplete
// files stay on disk but are never hash-verified, so a truncated transfer
// cannot masquerade as a verified one.
func (e *Engine) Run(conn Receiver) error {
    defer e.closeAll()
    for {
        var ch protocol.Chunk
        err := conn.Recv(&ch)
        if err == io.EOF {
            break
        }
        if err != nil {
            return fmt.Errorf("receive chunk: %w", err)
        }
        if err := e.HandleChunk(ch); err != nil {
            return err
        }
    }
    if missing := e.Incomplete(); len(missing) > 0 {
        return fmt.Errorf("transfer: stream closed with %d incomplete file(s)", len(missing))
    }
    return nil
}

// HandleChunk demultiplexes one chunk by file index, writes its payload
// immediately, and finalizes the file when the last chunk arrives.
func (e *Engine) HandleChunk(ch protocol.Chunk) error {
    if int(ch.FileIndex) >= len(e.manifest.Files) {
        return fmt.Errorf("%w: index %d, manifest has %d", ErrBadFileIndex, ch.FileIndex, len(e.manifest.Files))
    }

    st := e.open[ch.FileIndex]
    if st == nil {
        if e.done[ch.FileIndex] {
            return fmt.Errorf("transfer: chunk %d for already completed file %d", ch.ChunkNumber, ch.FileIndex)
        }
        var err error
        st, err = e.openFile(ch)
        if err != nil { return err }
        e.open[ch.FileIndex] = st
    }
    if ch.TotalChunks != st.expected {
        return fmt.Errorf("%w: file %d: %d then %d", ErrChunkConflict, ch.FileIndex, st.expected, ch.TotalChunks)
    }

    if _, err := st.f.Write(ch.Payload); err != nil {
        return fmt.Errorf("write chunk %d of file %d: %w", ch.ChunkNumber, ch.FileIndex, err)
    }
    st.received++
    st.written += uint64(len(ch.Payload))

    zap.L().Debug("chunk written",
        zap.Uint32("file", ch.FileIndex),
        zap.Uint64("chunk", ch.ChunkNumber),
        zap.Uint64("of", ch.TotalChunks))

    if ch.ChunkNumber+1 == ch.TotalChunks {
        return e.finalize(ch.FileIndex, st)
    }
    return nil
}

func (e *Engine) openFile(ch protocol.Chunk) (*fileState, error) {
    desc := e.manifest.Files[ch.FileIndex]
    // Manifest names come from the remote peer: keep only the base name so
    // a crafted entry cannot escape the download directory. Two entries
    // sharing a base name get an index suffix so a later file cannot
    // truncate an earlier, possibly verified one.
    name := filepath.Base(desc.Name)
    if owner, taken := e.names[name]; taken && owner != ch.FileIndex {
        name = fmt.Sprintf("%s.%d", name, ch.FileIndex)
    }
    e.names[name] = ch.FileIndex
    path := filepath.Join(e.dir, name)
    if err := os.MkdirAll(e.dir, 0o755); err != nil {
        return nil, err
    }
    f, err := os.Create(path)
    if err != nil {
        return nil, fmt.Errorf("create %s: %w", path, err)
    }
    if ch.TotalChunks == 0 {
        _ = f.Close()
        return nil, fmt.Errorf("%w: file %d declares zero chunks", ErrChunkConflict, ch.FileIndex)
    }
    return &fileState{f: f, path: path, expected: ch.TotalChunks}, nil
}

// finalize flushes and closes the handle, then re-reads the file to verify
// the manifest digest when one is declared. A mismatch is loud but the file
// is kept on disk for inspection.
func (e *Engine) finalize(idx uint32, st *fileState) error {
    if err := st.f.Sync(); err != nil {
        _ = st.f.Close()
        return fmt.Errorf("sync %s: %w", st.path, err)
    }
    if err := st.f.Close(); err != nil {
        return fmt.Errorf("close %s: %w", st.path, err)
    }
    delete(e.open, idx)
    e.done[idx] = true

    desc := e.manifest.Files[idx]
    if desc.Hash != nil {
        got, err := hashPath(st.path)
        if err != nil {
            return fmt.Errorf("verify %s: %w", st.path, err)
        }
        if !bytes.Equal(got[:], desc.Hash[:]) {
            return fmt.Errorf("%w: %s", ErrHashMismatch, st.path)
        }
        zap.L().Info("file verified", zap.String("path", st.path), zap.Uint64("bytes", st.written))
    } else {
        zap.L().Info("file complete (no declared hash)", zap.String("path", st.path), zap.Uint64("bytes", st.written))
    }
    return nil
}

// Incomplete lists manifest indexes that never completed.
func (e *Engine) Incomplete() []uint32 {
    var out []uint32
    for i := range e.manifest.Files {
        if !e.done[uint32(i)] {
            out = append(out, uint32(i))
        }
    }
    return out
}

// Complete reports whether every manifest file finished.
func (e *Engine) Complete() bool { return len(e.Incomplete()) == 0 }

// closeAll flushes and closes any handle still open, e.g. after a protocol
// error or an early stream close. Files touched this way remain incomplete.
func (e *Engine) closeAll() {
    for idx, st := range e.open {
        _ = st.f.Sync()
        _ = st.f.Close()
        delete(e.open, idx)
        zap.L().Warn("incomplete file left on disk",
            zap.String("path", st.path),
            zap.Uint64("received", st.received),
            zap.Uint64("expected", st.expected))
    }
}
