package xlrd

import (
	"encoding/binary"
	"fmt"
)

// MaxRecordDataSize is the largest payload one physical record may carry.
const MaxRecordDataSize = 8224

// RawRecord is one physical record as it appears in a stream.
type RawRecord struct {
	// Offset of the record header in the stream.
	Offset int
	Sid    uint16
	Data   []byte
}

// LogicalRecord is a record with its CONTINUE records folded into Data.
// Breaks holds the offsets in Data at which each CONTINUE payload began.
type LogicalRecord struct {
	Offset int
	Sid    uint16
	Data   []byte
	Breaks []int
}

// ReadRawRecords splits a stream into physical records. Trailing zero
// padding after the last record is ignored; any other short tail is a
// truncation error.
func ReadRawRecords(stream []byte) ([]RawRecord, error) {
	last := len(stream) - 1
	for last >= 0 && stream[last] == 0 {
		last--
	}
	var out []RawRecord
	pos := 0
	for pos <= last {
		if pos+4 > len(stream) {
			return out, &TruncatedRecordError{Offset: pos, Message: "stream ends inside a record header"}
		}
		sid := binary.LittleEndian.Uint16(stream[pos:])
		length := int(binary.LittleEndian.Uint16(stream[pos+2:]))
		if pos+4+length > len(stream) {
			return out, &TruncatedRecordError{
				Offset:  pos,
				Message: fmt.Sprintf("record 0x%04x runs past the end of the stream", sid),
			}
		}
		out = append(out, RawRecord{Offset: pos, Sid: sid, Data: stream[pos+4 : pos+4+length]})
		pos += 4 + length
	}
	return out, nil
}

// MergeContinues folds each CONTINUE record into the record before it,
// provided that record's layout allows continuation. A CONTINUE after a
// fixed-size record, or with nothing before it, stays a record of its own.
func MergeContinues(raws []RawRecord) []LogicalRecord {
	out := make([]LogicalRecord, 0, len(raws))
	for _, r := range raws {
		if r.Sid == XL_CONTINUE && len(out) > 0 && takesContinue(out[len(out)-1].Sid) {
			prev := &out[len(out)-1]
			prev.Breaks = append(prev.Breaks, len(prev.Data))
			prev.Data = append(prev.Data, r.Data...)
			continue
		}
		data := make([]byte, len(r.Data))
		copy(data, r.Data)
		out = append(out, LogicalRecord{Offset: r.Offset, Sid: r.Sid, Data: data})
	}
	return out
}

// validBreaks reports whether breaks cut data into legal physical records.
func validBreaks(data []byte, breaks []int) bool {
	prev := 0
	for _, b := range breaks {
		if b <= prev || b-prev > MaxRecordDataSize || b > len(data) {
			return false
		}
		prev = b
	}
	return len(data)-prev <= MaxRecordDataSize
}

// SplitContinues is the inverse of MergeContinues. Recorded breaks are
// reused when they are still valid, otherwise the payload is cut every
// MaxRecordDataSize bytes.
func SplitContinues(recs []LogicalRecord) []RawRecord {
	var out []RawRecord
	for _, lr := range recs {
		breaks := lr.Breaks
		if !validBreaks(lr.Data, breaks) {
			breaks = nil
			for b := MaxRecordDataSize; b < len(lr.Data); b += MaxRecordDataSize {
				breaks = append(breaks, b)
			}
		}
		sid := lr.Sid
		start := 0
		for _, b := range append(breaks, len(lr.Data)) {
			out = append(out, RawRecord{Sid: sid, Data: lr.Data[start:b]})
			sid = XL_CONTINUE
			start = b
		}
	}
	return out
}

// EncodeRawRecords serializes physical records, filling in their offsets.
func EncodeRawRecords(raws []RawRecord) ([]byte, error) {
	size := 0
	for _, r := range raws {
		size += 4 + len(r.Data)
	}
	out := make([]byte, 0, size)
	for i := range raws {
		r := &raws[i]
		if len(r.Data) > MaxRecordDataSize {
			return nil, NewXLRDError("record 0x%04x has %d bytes; limit is %d", r.Sid, len(r.Data), MaxRecordDataSize)
		}
		r.Offset = len(out)
		out = binary.LittleEndian.AppendUint16(out, r.Sid)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(r.Data)))
		out = append(out, r.Data...)
	}
	return out, nil
}

// DecodeStream reads a stream into logical records.
func DecodeStream(stream []byte) ([]LogicalRecord, error) {
	raws, err := ReadRawRecords(stream)
	if err != nil {
		return nil, err
	}
	return MergeContinues(raws), nil
}

// EncodeStream writes logical records back to a stream.
func EncodeStream(recs []LogicalRecord) ([]byte, error) {
	return EncodeRawRecords(SplitContinues(recs))
}
