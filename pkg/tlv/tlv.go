// Package tlv frames byte payloads as Type(2) + Length(2) + Value for stream
// transports.
package tlv

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Frame types carried on an nts stream.
const (
	TypeFrame     uint16 = 1 // one link layer frame, as captured or to be sent
	TypeHeartbeat uint16 = 2 // empty keepalive
)

// Type(2) + Length(2)
const HeaderSize = 4

const MaxValueSize = math.MaxUint16

var (
	ErrShortHeader = errors.New("data less than TLV header length")
	ErrShortValue  = errors.New("data less than TLV length")
	ErrTooLarge    = errors.New("value exceeds TLV length field")
)

type TLV struct {
	Type   uint16
	Length uint16
}

func (t *TLV) Len() int {
	return HeaderSize + int(t.Length)
}

func (t *TLV) decodeHeader(h []byte) {
	t.Type = binary.BigEndian.Uint16(h[:2])
	t.Length = binary.BigEndian.Uint16(h[2:4])
}

// DecodeFrom reads one header and its value from r. A stream that ends
// cleanly before the header yields io.EOF.
func (t *TLV) DecodeFrom(r io.Reader) ([]byte, error) {
	var h [HeaderSize]byte
	n, err := io.ReadFull(r, h[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(ErrShortHeader, err.Error())
	}
	t.decodeHeader(h[:])

	value := make([]byte, t.Length)
	if _, err = io.ReadFull(r, value); err != nil {
		return nil, errors.Wrap(ErrShortValue, err.Error())
	}
	return value, nil
}

// Decode parses one frame at the start of data. The returned value aliases data.
func (t *TLV) Decode(data []byte) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, ErrShortHeader
	}
	t.decodeHeader(data)

	if len(data) < t.Len() {
		return nil, ErrShortValue
	}
	return data[HeaderSize:t.Len()], nil
}

func (t *TLV) EncodeTo(w io.Writer, value []byte) (int, error) {
	if len(value) > MaxValueSize {
		return 0, ErrTooLarge
	}
	t.Length = uint16(len(value))

	var h [HeaderSize]byte
	binary.BigEndian.PutUint16(h[:2], t.Type)
	binary.BigEndian.PutUint16(h[2:4], t.Length)

	nh, err := w.Write(h[:])
	if err != nil {
		return nh, err
	}

	nv, err := w.Write(value)
	return nh + nv, err
}

func (t *TLV) Encode(value []byte) ([]byte, error) {
	b := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(value)))
	_, err := t.EncodeTo(b, value)
	return b.Bytes(), err
}

// WriteFrame writes value as a TypeFrame record.
func WriteFrame(w io.Writer, value []byte) error {
	t := TLV{Type: TypeFrame}
	_, err := t.EncodeTo(w, value)
	return err
}

// ReadFrame returns the value of the next TypeFrame record, skipping
// heartbeats and records of unknown type.
func ReadFrame(r io.Reader) ([]byte, error) {
	for {
		var t TLV
		value, err := t.DecodeFrom(r)
		if err != nil {
			return nil, err
		}
		if t.Type == TypeFrame {
			return value, nil
		}
	}
}
