package mdc

import (
	"errors"
	"fmt"
	"io"
)

const readChunkSize = 1024

// Session sends and receives frames over a duplex byte stream. It owns the
// stream's read side and buffers bytes until a whole frame is available.
//
// A Session is not safe for concurrent use. Callers sharing one between
// goroutines must serialize access themselves.
type Session struct {
	rw      io.ReadWriter
	buf     []byte
	scratch [readChunkSize]byte
}

// NewSession creates a session on an already connected stream. Read deadlines,
// if any, belong to the stream.
func NewSession(rw io.ReadWriter) *Session {
	return &Session{
		rw:  rw,
		buf: make([]byte, 0, readChunkSize),
	}
}

// Display returns a controller for a single display id
func (s *Session) Display(id DisplayID) *Display {
	return &Display{session: s, id: id}
}

// AllDisplays returns a controller broadcasting to every display
func (s *Session) AllDisplays() *BroadcastGroup {
	return &BroadcastGroup{session: s}
}

// Buffered returns the number of received bytes not yet consumed as a frame
func (s *Session) Buffered() int {
	return len(s.buf)
}

// Send encodes f and writes it to the stream
func (s *Session) Send(f Frame) error {
	b, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	n, err := s.rw.Write(b)
	if err != nil {
		return fmt.Errorf("mdc: write: %w", err)
	}
	if n != len(b) {
		return fmt.Errorf("mdc: write: %w", io.ErrShortWrite)
	}
	return nil
}

// Receive blocks until the next whole frame has arrived. A header or checksum
// failure discards everything buffered so far, since the stream can no longer
// be split into frames reliably.
func (s *Session) Receive() (Frame, error) {
	ended := false
	for {
		f, _, err := Decode(&s.buf)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, ErrIncompleteInput) {
			s.buf = s.buf[:0]
			return Frame{}, err
		}
		if ended {
			return Frame{}, ErrStreamEnded
		}

		n, err := s.rw.Read(s.scratch[:])
		s.buf = append(s.buf, s.scratch[:n]...)
		switch {
		case err == nil && n == 0:
			return Frame{}, ErrStreamEnded
		case errors.Is(err, io.EOF):
			if n == 0 {
				return Frame{}, ErrStreamEnded
			}
			// the last bytes may still complete a frame
			ended = true
		case err != nil:
			return Frame{}, fmt.Errorf("mdc: read: %w", err)
		}
	}
}

// SendAck sends f and waits for the display's acknowledgement. A reply that
// is not an acknowledgement fails with *UnexpectedResponseError, a negative
// acknowledgement with *NackError.
func (s *Session) SendAck(f Frame) (Frame, error) {
	if err := s.Send(f); err != nil {
		return Frame{}, err
	}
	reply, err := s.Receive()
	if err != nil {
		return Frame{}, err
	}

	if reply.Command != CmdAckNack {
		return reply, &UnexpectedResponseError{Frame: reply}
	}
	if len(reply.Payload) == 0 || reply.Payload[0] != Ack {
		return reply, &NackError{Frame: reply}
	}
	return reply, nil
}
