package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MsgType is the one-byte frame discriminator. Responses carry the request
// tag with the high bit set.
type MsgType byte

const (
	MsgCheckBlock MsgType = 0x01
	MsgAnalyze    MsgType = 0x02
	MsgTierLimits MsgType = 0x03

	responseBit = 0x80
)

// Response returns the response tag matching a request tag.
func (t MsgType) Response() MsgType {
	return t | responseBit
}

// IsResponse reports whether the tag has the response bit set.
func (t MsgType) IsResponse() bool {
	return t&responseBit != 0
}

const (
	headerLen = 5

	// MaxBodyBytes bounds the declared body length so a corrupt or hostile
	// peer cannot force an unbounded allocation.
	MaxBodyBytes = 8 * 1024 * 1024
)

// Frame is one complete wire message.
type Frame struct {
	Type MsgType
	Body map[string]any
}

// Encode serializes one frame: type byte, big-endian uint32 body length,
// UTF-8 JSON body. It fails only when the body cannot be represented as
// JSON, which is a caller contract violation rather than a transport fault.
func Encode(typ MsgType, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBodyNotJSON, err)
	}
	buf := make([]byte, headerLen+len(raw))
	buf[0] = byte(typ)
	binary.BigEndian.PutUint32(buf[1:headerLen], uint32(len(raw)))
	copy(buf[headerLen:], raw)
	return buf, nil
}

// Decoder assembles frames from a byte stream that may arrive in arbitrary
// chunks. Bytes past the end of a frame stay buffered for the next call.
type Decoder struct {
	r   io.Reader
	buf []byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next blocks until one complete frame is buffered and returns it. A stream
// that ends before the frame is complete yields ErrShortFrame; a declared
// body length above MaxBodyBytes yields ErrBodyTooLarge before any body
// allocation. A body that is not a JSON record does not fail the decode:
// the frame is returned with a synthetic error body so the type tag is not
// lost.
func (d *Decoder) Next() (Frame, error) {
	if err := d.fill(headerLen); err != nil {
		return Frame{}, err
	}
	bodyLen := binary.BigEndian.Uint32(d.buf[1:headerLen])
	if bodyLen > MaxBodyBytes {
		return Frame{}, ErrBodyTooLarge
	}
	total := headerLen + int(bodyLen)
	if err := d.fill(total); err != nil {
		return Frame{}, err
	}

	typ := MsgType(d.buf[0])
	raw := d.buf[headerLen:total]

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		body = map[string]any{"error": "invalid json"}
	}

	rest := make([]byte, len(d.buf)-total)
	copy(rest, d.buf[total:])
	d.buf = rest

	return Frame{Type: typ, Body: body}, nil
}

// Buffered reports how many undecoded bytes are held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) fill(want int) error {
	var chunk [4096]byte
	for len(d.buf) < want {
		n, err := d.r.Read(chunk[:])
		if n > 0 {
			d.buf = append(d.buf, chunk[:n]...)
			continue
		}
		if err == nil {
			continue
		}
		if err == io.EOF {
			return ErrShortFrame
		}
		return err
	}
	return nil
}
