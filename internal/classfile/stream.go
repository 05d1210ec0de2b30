package classfile

import (
	"encoding/binary"
	"errors"
)

var (
	ErrTruncated = errors.New("classfile: unexpected end of data")
	ErrTooLarge  = errors.New("classfile: value too large")
)

// Stream reads big-endian class file data.
type Stream struct {
	data []byte
	pos  int
	end  int
}

// NewStream creates a stream over the given data.
func NewStream(data []byte) *Stream {
	return &Stream{data: data, pos: 0, end: len(data)}
}

// Position returns the current read position.
func (s *Stream) Position() int { return s.pos }

// Remaining returns bytes left to read.
func (s *Stream) Remaining() int { return s.end - s.pos }

// ReadUint8 reads a single byte.
func (s *Stream) ReadUint8() (uint8, error) {
	if s.pos >= s.end {
		return 0, ErrTruncated
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

// ReadUint16 reads a big-endian uint16.
func (s *Stream) ReadUint16() (uint16, error) {
	if s.pos+2 > s.end {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint16(s.data[s.pos:])
	s.pos += 2
	return v, nil
}

// ReadUint32 reads a big-endian uint32.
func (s *Stream) ReadUint32() (uint32, error) {
	if s.pos+4 > s.end {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(s.data[s.pos:])
	s.pos += 4
	return v, nil
}

// ReadBytes reads n bytes into a new slice.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	if n < 0 || s.pos+n > s.end {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, s.data[s.pos:s.pos+n])
	s.pos += n
	return out, nil
}

// Skip advances the position by n bytes.
func (s *Stream) Skip(n int) error {
	if n < 0 || s.pos+n > s.end {
		return ErrTruncated
	}
	s.pos += n
	return nil
}

// Buffer accumulates big-endian class file data.
type Buffer struct {
	b []byte
}

func (w *Buffer) U1(v uint8)               { w.b = append(w.b, v) }
func (w *Buffer) U2(v uint16)              { w.b = binary.BigEndian.AppendUint16(w.b, v) }
func (w *Buffer) U4(v uint32)              { w.b = binary.BigEndian.AppendUint32(w.b, v) }
func (w *Buffer) Write(p []byte)           { w.b = append(w.b, p...) }
func (w *Buffer) Len() int                 { return len(w.b) }
func (w *Buffer) Bytes() []byte            { return w.b }
func (w *Buffer) PutU2At(at int, v uint16) { binary.BigEndian.PutUint16(w.b[at:], v) }
