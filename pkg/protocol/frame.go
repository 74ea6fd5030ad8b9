package protocol

import (
    "bufio"
    "encoding/binary"
    "errors"
    "fmt"
    "io"
    "sync"

    "github.com/AMAzing1233/Fastdrop/pkg/protocol/codec"
)

// Frame layout: length (u32, big-endian) followed by exactly length payload
// bytes. The payload is one CBOR-encoded message value. The same framing is
// used for requests, responses and chunks.

var (
    // ErrTruncatedFrame reports end-of-stream in the middle of a declared
    // payload. EOF at a length-prefix position is a clean close instead and
    // surfaces as io.EOF.
    ErrTruncatedFrame = errors.New("protocol: truncated frame")

    // ErrFrameTooLarge reports a length prefix above MaxFrameSize.
    ErrFrameTooLarge = errors.New("protocol: frame exceeds size limit")

    // ErrDecode reports a payload that is not a valid encoding of the
    // expected message. Kept distinct from transport errors so callers can
    // tell a malformed peer from a broken link.
    ErrDecode = errors.New("protocol: message decode failed")
)

// WriteFrame writes one length-prefixed payload to w. The caller owns
// flushing if w is buffered; Conn flushes after every logical message.
func WriteFrame(w io.Writer, payload []byte) error {
    if len(payload) > MaxFrameSize {
        return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
    }
    var lenbuf [4]byte
    binary.BigEndian.PutUint32(lenbuf[:], uint32(len(payload)))
    if _, err := w.Write(lenbuf[:]); err != nil { return err }
    _, err := w.Write(payload)
    return err
}

// ReadFrame reads one length-prefixed payload from r. A clean stream close
// before the length prefix returns io.EOF; a close inside the length prefix
// or the payload returns ErrTruncatedFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
    var lenbuf [4]byte
    if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
        if err == io.EOF {
            return nil, io.EOF
        }
        if err == io.ErrUnexpectedEOF {
            return nil, ErrTruncatedFrame
        }
        return nil, err
    }
    n := binary.BigEndian.Uint32(lenbuf[:])
    if n > MaxFrameSize {
        return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
    }
    buf := make([]byte, n)
    if _, err := io.ReadFull(r, buf); err != nil {
        if err == io.EOF || err == io.ErrUnexpectedEOF {
            return nil, ErrTruncatedFrame
        }
        return nil, err
    }
    return buf, nil
}

// Conn sends and receives protocol messages over a raw byte stream. It owns
// the buffering; every Send encodes the whole message first, then writes the
// frame and flushes, so length and payload are always consistent.
type Conn struct {
    br *bufio.Reader
    bw *bufio.Writer
    c  codec.Codec
}

// The wire codec is resolved once through the shared registry; every Conn in
// the process frames with the same canonical CBOR encoding.
var (
    regOnce sync.Once
    reg     *codec.Registry
    regErr  error
)

func wireCodec() (codec.Codec, error) {
    regOnce.Do(func() {
        reg = codec.NewRegistry()
        c, err := codec.CBOR()
        if err != nil {
            regErr = err
            return
        }
        reg.Register(c)
    })
    if regErr != nil { return nil, regErr }
    c := reg.Get("application/cbor")
    if c == nil { return nil, errors.New("protocol: wire codec not registered") }
    return c, nil
}

// NewConn wraps rw with the canonical CBOR codec.
func NewConn(rw io.ReadWriter) (*Conn, error) {
    c, err := wireCodec()
    if err != nil { return nil, err }
    return &Conn{br: bufio.NewReaderSize(rw, 64<<10), bw: bufio.NewWriterSize(rw, 64<<10), c: c}, nil
}

// Send encodes v and writes it as a single frame, flushing afterwards.
func (c *Conn) Send(v any) error {
    payload, err := c.c.Marshal(v)
    if err != nil {
        return fmt.Errorf("encode message: %w", err)
    }
    if err := WriteFrame(c.bw, payload); err != nil { return err }
    return c.bw.Flush()
}

// Recv reads one frame and decodes it into v. io.EOF means the peer closed
// the stream cleanly between messages.
func (c *Conn) Recv(v any) error {
    payload, err := ReadFrame(c.br)
    if err != nil { return err }
    if err := c.c.Unmarshal(payload, v); err != nil {
        return fmt.Errorf("%w: %v", ErrDecode, err)
    }
    return nil
}
