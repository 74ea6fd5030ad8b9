// Package transfer implements the chunked transfer engine: lazy sender-side
// chunking and streaming receiver-side reassembly with hash verification.
package transfer

import (
    "fmt"
    "io"
    "os"

    "github.com/AMAzing1233/Fastdrop/pkg/protocol"
)

// Chunker yields one file's chunks in order, reading lazily so a file is
// never held in memory. The sequence is finite and not restartable; open a
// new Chunker to read from offset 0 again.
type Chunker struct {
    f           *os.File
    fileIndex   uint32
    totalChunks uint64
    next        uint64
    remaining   uint64
}

// NewChunker opens path for chunking as manifest entry fileIndex.
// TotalChunks is fixed from the file size before the first chunk is emitted.
func NewChunker(path string, fileIndex uint32) (*Chunker, error) {
    f, err := os.Open(path)
    if err != nil { return nil, err }
    fi, err := f.Stat()
    if err != nil {
        _ = f.Close()
        return nil, err
    }
    size := uint64(fi.Size())
    return &Chunker{
        f:           f,
        fileIndex:   fileIndex,
        totalChunks: protocol.ChunkCount(size),
        remaining:   size,
    }, nil
}

// TotalChunks returns the fixed chunk count for this file.
func (c *Chunker) TotalChunks() uint64 { return c.totalChunks }

// Next returns the next chunk, or io.EOF after the last one. Every chunk but
// the last carries exactly protocol.ChunkSize bytes; a zero-byte file yields
// a single empty chunk so the receiver's completion signal still fires.
func (c *Chunker) Next() (protocol.Chunk, error) {
    if c.next >= c.totalChunks {
        return protocol.Chunk{}, io.EOF
    }
    n := uint64(protocol.ChunkSize)
    if c.remaining < n {
        n = c.remaining
    }
    payload := make([]byte, n)
    if n > 0 {
        if _, err := io.ReadFull(c.f, payload); err != nil {
            return protocol.Chunk{}, fmt.Errorf("read chunk %d: %w", c.next, err)
        }
    }
    ch := protocol.Chunk{
        FileIndex:   c.fileIndex,
        ChunkNumber: c.next,
        TotalChunks: c.totalChunks,
        Payload:     payload,
    }
    c.next++
    c.remaining -= n
    return ch, nil
}

// Close releases the underlying file.
func (c *Chunker) Close() error { return c.f.Close() }

// SendFile streams every chunk of path through send in order. It is the
// sender half of the engine: chunks are produced and handed off one at a
// time, never collected.
func SendFile(path string, fileIndex uint32, send func(protocol.Chunk) error) error {
    ck, err := NewChunker(path, fileIndex)
    if err != nil { return err }
    defer ck.Close()
    for {
        ch, err := ck.Next()
        if err == io.EOF {
            return nil
        }
        if err != nil { return err }
        if err := send(ch); err != nil { return err }
    }
}
