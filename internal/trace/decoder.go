// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package trace decodes the proprietary binary terminal trace format (TRP).
//
// A trace is a flat sequence of framed records. Each record starts with a
// fixed 8-byte little-endian header followed by a variable payload:
//
//	u32 delay | u16 type | u16 size | size bytes payload
//
// delay is the time gap to the previous record. Recognized type values are
// Output (0), Input (1), Resize (2) and Setup (4); every other value is
// preserved as-is and classified Unknown by Kind.
package trace

import (
	"encoding/binary"
	"fmt"
	"io"
)

// headerSize is the fixed per-record frame header length in bytes.
const headerSize = 8

// ChunkType is the wire-level record type identifier.
type ChunkType uint16

const (
	ChunkOutput ChunkType = 0
	ChunkInput  ChunkType = 1
	ChunkResize ChunkType = 2
	ChunkSetup  ChunkType = 4
)

// Kind returns a stable lowercase name for the chunk type, with every
// unrecognized value mapping to "unknown". Used for logging and metric labels.
func (t ChunkType) Kind() string {
	switch t {
	case ChunkOutput:
		return "output"
	case ChunkInput:
		return "input"
	case ChunkResize:
		return "resize"
	case ChunkSetup:
		return "setup"
	default:
		return "unknown"
	}
}

// Recognized reports whether the type is one of the defined wire values.
func (t ChunkType) Recognized() bool {
	switch t {
	case ChunkOutput, ChunkInput, ChunkResize, ChunkSetup:
		return true
	}
	return false
}

// Chunk is one decoded trace record. Payload aliases the decode buffer and is
// only valid until the buffer is reused; callers that retain chunks must copy.
type Chunk struct {
	Delay   uint32
	Type    ChunkType
	Payload []byte
}

// TruncatedRecordError reports a buffer that ends inside a record, either
// short of a full 8-byte header or short of the payload the header declared.
// A truncated buffer fails the whole decode; no partial chunks are surfaced.
type TruncatedRecordError struct {
	Offset int // byte offset of the record that could not be completed
	Need   int // bytes required to finish the header or payload
	Have   int // bytes actually remaining
}

func (e *TruncatedRecordError) Error() string {
	return fmt.Sprintf("trace: truncated record at offset %d: need %d bytes, have %d", e.Offset, e.Need, e.Have)
}

// Decoder walks one trace buffer front to back. Each Decoder owns its cursor
// exclusively for the duration of one decode pass; nothing is shared between
// decoders, so concurrent sessions can decode independently.
//
// The sequence is finite and not restartable: after the terminal io.EOF or a
// truncation error, every further Next call returns the same result.
type Decoder struct {
	buf    []byte
	cursor int
	err    error
}

// NewDecoder returns a decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Offset returns the current cursor position in bytes.
func (d *Decoder) Offset() int {
	return d.cursor
}

// Next returns the next chunk in file order. It returns io.EOF once the
// cursor has consumed the buffer exactly, and a *TruncatedRecordError if the
// remaining bytes cannot hold the next header or its declared payload.
func (d *Decoder) Next() (Chunk, error) {
	if d.err != nil {
		return Chunk{}, d.err
	}
	if d.cursor == len(d.buf) {
		d.err = io.EOF
		return Chunk{}, d.err
	}

	remaining := len(d.buf) - d.cursor
	if remaining < headerSize {
		d.err = &TruncatedRecordError{Offset: d.cursor, Need: headerSize, Have: remaining}
		return Chunk{}, d.err
	}

	header := d.buf[d.cursor:]
	delay := binary.LittleEndian.Uint32(header[0:4])
	typ := ChunkType(binary.LittleEndian.Uint16(header[4:6]))
	size := int(binary.LittleEndian.Uint16(header[6:8]))

	if remaining-headerSize < size {
		d.err = &TruncatedRecordError{Offset: d.cursor, Need: headerSize + size, Have: remaining}
		return Chunk{}, d.err
	}

	payload := d.buf[d.cursor+headerSize : d.cursor+headerSize+size]
	d.cursor += headerSize + size

	return Chunk{Delay: delay, Type: typ, Payload: payload}, nil
}

// Decode drains a full buffer into a chunk slice. On any truncation the whole
// decode fails and no chunks are returned. An empty buffer decodes to an
// empty, valid sequence.
func Decode(buf []byte) ([]Chunk, error) {
	d := NewDecoder(buf)
	var chunks []Chunk
	for {
		c, err := d.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
}

// AppendRecord appends one framed record to dst and returns the extended
// slice. It is the encoding inverse of Next and exists for fixture building
// and round-trip verification; payloads longer than a record can carry are
// rejected by the uint16 size field.
func AppendRecord(dst []byte, delay uint32, typ ChunkType, payload []byte) ([]byte, error) {
	if len(payload) > 0xFFFF {
		return dst, fmt.Errorf("trace: payload too large for record: %d bytes", len(payload))
	}
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], delay)
	binary.LittleEndian.PutUint16(header[4:6], uint16(typ))
	binary.LittleEndian.PutUint16(header[6:8], uint16(len(payload)))
	dst = append(dst, header[:]...)
	dst = append(dst, payload...)
	return dst, nil
}
