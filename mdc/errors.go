package mdc

import (
	"errors"
	"fmt"
)

// Framing errors returned by Parse and Decode
var (
	// ErrIncompleteInput means the buffer does not hold a whole frame yet. Append
	// more bytes and try again.
	ErrIncompleteInput = errors.New("mdc: incomplete input")
	// ErrInvalidHeader means the buffer does not start with the 0xAA header byte
	ErrInvalidHeader = errors.New("mdc: invalid header, every frame starts with 0xAA")
	// ErrInvalidChecksum means the frame's trailing checksum byte does not match
	ErrInvalidChecksum = errors.New("mdc: invalid checksum")
	// ErrPayloadTooLarge is returned when encoding a payload longer than 255 bytes
	ErrPayloadTooLarge = errors.New("mdc: payload too large")
)

var (
	// ErrStreamEnded is returned by Session.Receive when the peer closed the
	// stream before a whole frame arrived
	ErrStreamEnded = errors.New("mdc: stream ended before a full frame was received")
	// ErrShortReply is returned when an acknowledgement is too short to carry a status value
	ErrShortReply = errors.New("mdc: reply too short")
	// ErrInvalidStatus matches every *InvalidStatusError
	ErrInvalidStatus = errors.New("mdc: invalid status value")
)

// IsFramingError reports whether err means the byte stream lost frame sync
func IsFramingError(err error) bool {
	return errors.Is(err, ErrInvalidHeader) || errors.Is(err, ErrInvalidChecksum)
}

// UnexpectedResponseError is returned when a reply is not an acknowledgement frame
type UnexpectedResponseError struct {
	Frame Frame
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("mdc: unexpected response %v", e.Frame)
}

// NackError is returned when the display answered with a negative acknowledgement
type NackError struct {
	Frame Frame
}

func (e *NackError) Error() string {
	return fmt.Sprintf("mdc: display %d rejected command: %v", e.Frame.Target, e.Frame)
}

// InvalidStatusError is returned when a status byte is neither 0x00 nor 0x01
type InvalidStatusError struct {
	Status string
	Value  byte
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("mdc: invalid %s value %#02x", e.Status, e.Value)
}

func (e *InvalidStatusError) Is(target error) bool {
	return target == ErrInvalidStatus
}
