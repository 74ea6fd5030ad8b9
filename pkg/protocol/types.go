// Package protocol defines the wire messages and framing for a transfer
// session. Every message travels as a length-prefixed CBOR frame; the flow is
// phase-ordered (request, response, then chunks), so no message-kind tag is
// carried on the wire.
package protocol

// Version is the wire protocol revision. Both ends must run the same
// revision; nothing on the wire negotiates it.
const Version uint8 = 1

// Size constants shared by both ends. ChunkSize is part of the wire contract:
// changing it is a protocol-breaking change, not a runtime option.
const (
    // ChunkSize is the fixed payload size of every chunk but the last one of
    // each file (power of two).
    ChunkSize = 1 << 20 // 1 MiB

    // MaxFileSize caps a single file.
    MaxFileSize uint64 = 100 << 20 // 100 MiB

    // MaxTotalSize caps one whole transfer.
    MaxTotalSize uint64 = 500 << 20 // 500 MiB

    // MaxFrameSize guards the read side against absurd length prefixes. It
    // must fit a full chunk plus CBOR overhead.
    MaxFrameSize = ChunkSize + (1 << 16)
)

// HashSize is the size of a file content digest (SHA-256).
const HashSize = 32

// FileDescriptor describes one file in a manifest. Built once from filesystem
// metadata at transfer setup; immutable afterwards.
type FileDescriptor struct {
    Name string          `cbor:"name"`
    Size uint64          `cbor:"size"`
    Hash *[HashSize]byte `cbor:"hash,omitempty"`
}

// FileManifest is the ordered file list agreed for one session. A file's
// position in Files is the only identity chunks use to reference it and must
// not change for the session's lifetime.
type FileManifest struct {
    Files     []FileDescriptor `cbor:"files"`
    TotalSize uint64           `cbor:"total_size"`
}

// ChunkCount returns ceil(size/ChunkSize); a zero-byte file still takes one
// (empty) chunk so the receiver's completion signal fires.
func ChunkCount(size uint64) uint64 {
    if size == 0 {
        return 1
    }
    return (size + ChunkSize - 1) / ChunkSize
}

// TotalChunks sums the chunk counts of every file in the manifest.
func (m FileManifest) TotalChunks() uint64 {
    var n uint64
    for _, f := range m.Files {
        n += ChunkCount(f.Size)
    }
    return n
}

// TransferRequest is sent by the receiver exactly once per session.
type TransferRequest struct {
    RequestID uint64 `cbor:"request_id"`
    Ready     bool   `cbor:"ready"`
}

// TransferResponse is sent by the sender exactly once per accepted request,
// before any chunk.
type TransferResponse struct {
    RequestID uint64       `cbor:"request_id"`
    Manifest  FileManifest `cbor:"manifest"`
    Accepted  bool         `cbor:"accepted"`
}

// Chunk carries one slice of one file. Produced lazily while reading the
// source file and consumed immediately by the framing layer; neither side
// materializes a whole file's chunk list.
type Chunk struct {
    FileIndex   uint32 `cbor:"file_index"`
    ChunkNumber uint64 `cbor:"chunk_number"` // 0-based
    TotalChunks uint64 `cbor:"total_chunks"` // fixed before the first chunk is emitted
    Payload     []byte `cbor:"payload"`
}
