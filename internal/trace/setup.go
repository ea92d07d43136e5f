// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package trace

import (
	"encoding/binary"
	"fmt"
)

// SetupRecord is one tag/value entry of a Setup chunk payload. Setup chunks
// describe the recorded terminal environment; they never surface as playback
// events but are parsed so malformed traces are noticed.
type SetupRecord struct {
	Tag   uint16
	Value uint32
}

// setupRecordSize is the fixed wire size of one setup entry: u16 tag + u32 value.
const setupRecordSize = 6

// ParseSetup splits a Setup payload into its tag/value records. Trailing
// bytes short of a full record are ignored, mirroring the tolerance for
// unknown chunk types elsewhere in the format.
func ParseSetup(payload []byte) []SetupRecord {
	n := len(payload) / setupRecordSize
	if n == 0 {
		return nil
	}
	records := make([]SetupRecord, 0, n)
	for i := 0; i < n; i++ {
		off := i * setupRecordSize
		records = append(records, SetupRecord{
			Tag:   binary.LittleEndian.Uint16(payload[off : off+2]),
			Value: binary.LittleEndian.Uint32(payload[off+2 : off+6]),
		})
	}
	return records
}

// ParseResize extracts the width and height from a Resize chunk payload.
// Only the first four bytes carry geometry; anything beyond is ignored.
func ParseResize(payload []byte) (width, height uint16, err error) {
	if len(payload) < 4 {
		return 0, 0, fmt.Errorf("trace: resize payload too short: %d bytes", len(payload))
	}
	return binary.LittleEndian.Uint16(payload[0:2]), binary.LittleEndian.Uint16(payload[2:4]), nil
}

// AppendResizePayload appends the 4-byte resize geometry encoding to dst.
func AppendResizePayload(dst []byte, width, height uint16) []byte {
	var p [4]byte
	binary.LittleEndian.PutUint16(p[0:2], width)
	binary.LittleEndian.PutUint16(p[2:4], height)
	return append(dst, p[:]...)
}

// AppendSetupPayload appends tag/value records in wire encoding to dst.
func AppendSetupPayload(dst []byte, records []SetupRecord) []byte {
	for _, r := range records {
		var p [setupRecordSize]byte
		binary.LittleEndian.PutUint16(p[0:2], r.Tag)
		binary.LittleEndian.PutUint32(p[2:6], r.Value)
		dst = append(dst, p[:]...)
	}
	return dst
}
