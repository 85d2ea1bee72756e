// Package mdc speaks the MDC binary command/response protocol used to control
// display panels over a byte stream.
//
// Wire format:
//
//	0xAA | command | target | N | payload (N bytes) | checksum
//
// The checksum is the low byte of command + target + N + sum(payload).
package mdc

import (
	"fmt"
)

// HeaderByte starts every frame
const HeaderByte byte = 0xAA

// MaxPayloadLen is the largest payload the length byte can describe
const MaxPayloadLen = 255

// headerLen covers header, command, target and length bytes
const headerLen = 4

// Frame is one command or response on the wire
type Frame struct {
	Command CommandType
	Target  DisplayID
	Payload []byte
}

// NewFrame creates a frame. The payload is not copied.
func NewFrame(command CommandType, target DisplayID, payload []byte) Frame {
	return Frame{Command: command, Target: target, Payload: payload}
}

// Checksum computes the frame's checksum byte
func (f Frame) Checksum() byte {
	return checksum(byte(f.Command), byte(f.Target), byte(len(f.Payload)), f.Payload)
}

func checksum(command, target, length byte, payload []byte) byte {
	crc := command + target + length
	for i := 0; i < len(payload); i++ {
		crc += payload[i]
	}
	return crc
}

// Len returns the encoded size of the frame
func (f Frame) Len() int {
	return headerLen + len(f.Payload) + 1
}

// MarshalBinary encodes the frame into a single allocation
func (f Frame) MarshalBinary() ([]byte, error) {
	if len(f.Payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}
	b := make([]byte, 0, f.Len())
	b = append(b, HeaderByte, byte(f.Command), byte(f.Target), byte(len(f.Payload)))
	b = append(b, f.Payload...)
	b = append(b, f.Checksum())
	return b, nil
}

func (f Frame) String() string {
	return fmt.Sprintf("{%v target=%d payload=[% X]}", f.Command, f.Target, f.Payload)
}

// Parse extracts the frame at the front of b without modifying b. It returns
// the frame and the number of bytes it occupies. A non-empty payload aliases b.
func Parse(b []byte) (Frame, int, error) {
	if len(b) == 0 {
		return Frame{}, 0, ErrIncompleteInput
	}
	if b[0] != HeaderByte {
		return Frame{}, 0, ErrInvalidHeader
	}
	if len(b) < headerLen {
		return Frame{}, 0, ErrIncompleteInput
	}

	n := int(b[3])
	size := headerLen + n + 1
	if len(b) < size {
		return Frame{}, 0, ErrIncompleteInput
	}

	payload := b[headerLen : headerLen+n]
	if crc := checksum(b[1], b[2], b[3], payload); crc != b[size-1] {
		return Frame{}, 0, fmt.Errorf("%w: calculated %#02x, received %#02x", ErrInvalidChecksum, crc, b[size-1])
	}

	return Frame{Command: CommandType(b[1]), Target: DisplayID(b[2]), Payload: payload}, size, nil
}

// Decode extracts the frame at the front of *b and removes its bytes from *b.
// On any error *b is left untouched, so on ErrIncompleteInput the caller can
// append more bytes and retry.
func Decode(b *[]byte) (Frame, int, error) {
	f, n, err := Parse(*b)
	if err != nil {
		return Frame{}, 0, err
	}

	if len(f.Payload) > 0 {
		f.Payload = append([]byte(nil), f.Payload...)
	} else {
		f.Payload = nil
	}

	*b = append((*b)[:0], (*b)[n:]...)
	return f, n, nil
}
