package xlrd

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadRawRecords(t *testing.T) {
	stream := concat(
		record(XL_BOF, bof8(XL_WORKBOOK_GLOBALS)),
		record(XL_CODEPAGE, []byte{0xB0, 0x04}),
		record(XL_EOF, nil),
		[]byte{0, 0, 0, 0, 0, 0},
	)
	raws, err := ReadRawRecords(stream)
	if err != nil {
		t.Fatalf("ReadRawRecords failed: %v", err)
	}
	if len(raws) != 3 {
		t.Fatalf("len(raws) = %d, expected 3", len(raws))
	}
	tests := []struct {
		offset int
		sid    uint16
		size   int
	}{
		{0, XL_BOF, 16},
		{20, XL_CODEPAGE, 2},
		{26, XL_EOF, 0},
	}
	for i, test := range tests {
		r := raws[i]
		if r.Offset != test.offset || r.Sid != test.sid || len(r.Data) != test.size {
			t.Errorf("raws[%d] = (%d, 0x%04x, %d), expected (%d, 0x%04x, %d)", i, r.Offset, r.Sid, len(r.Data), test.offset, test.sid, test.size)
		}
	}
}

func TestReadRawRecordsTruncated(t *testing.T) {
	tests := []struct {
		name   string
		stream []byte
		good   int
	}{
		{"short header", concat(record(XL_EOF, nil), []byte{0x0A}), 1},
		{"short payload", concat(record(XL_CODEPAGE, []byte{1, 2}), []byte{0x42, 0x00, 0x08, 0x00, 1, 2}), 1},
	}
	for _, test := range tests {
		raws, err := ReadRawRecords(test.stream)
		var trunc *TruncatedRecordError
		if !errors.As(err, &trunc) {
			t.Errorf("%s: error = %v, expected *TruncatedRecordError", test.name, err)
			continue
		}
		if len(raws) != test.good {
			t.Errorf("%s: %d records before the error, expected %d", test.name, len(raws), test.good)
		}
	}
}

func TestContinueRoundTrip(t *testing.T) {
	big := make([]byte, 16000)
	for i := range big {
		big[i] = byte(i * 7)
	}
	stream := concat(
		record(0x00FC, big[:MaxRecordDataSize]),
		record(XL_CONTINUE, big[MaxRecordDataSize:10000]),
		record(XL_CONTINUE, big[10000:]),
		record(XL_EOF, nil),
	)
	lrs, err := DecodeStream(stream)
	if err != nil {
		t.Fatalf("DecodeStream failed: %v", err)
	}
	if len(lrs) != 2 {
		t.Fatalf("len(lrs) = %d, expected 2", len(lrs))
	}
	if !bytes.Equal(lrs[0].Data, big) {
		t.Errorf("merged payload differs from the concatenated physical payloads")
	}
	if want := []int{MaxRecordDataSize, 10000}; len(lrs[0].Breaks) != 2 || lrs[0].Breaks[0] != want[0] || lrs[0].Breaks[1] != want[1] {
		t.Errorf("Breaks = %v, expected %v", lrs[0].Breaks, want)
	}
	out, err := EncodeStream(lrs)
	if err != nil {
		t.Fatalf("EncodeStream failed: %v", err)
	}
	if !bytes.Equal(out, stream) {
		t.Errorf("EncodeStream(DecodeStream(s)) differs from s")
	}
}

func TestSplitContinuesWithoutBreaks(t *testing.T) {
	lr := LogicalRecord{Sid: 0x00FC, Data: make([]byte, 2*MaxRecordDataSize+5)}
	raws := SplitContinues([]LogicalRecord{lr})
	if len(raws) != 3 {
		t.Fatalf("len(raws) = %d, expected 3", len(raws))
	}
	sizes := []int{MaxRecordDataSize, MaxRecordDataSize, 5}
	total := 0
	for i, r := range raws {
		if len(r.Data) != sizes[i] {
			t.Errorf("raws[%d] has %d bytes, expected %d", i, len(r.Data), sizes[i])
		}
		total += len(r.Data)
		if i > 0 && r.Sid != XL_CONTINUE {
			t.Errorf("raws[%d].Sid = 0x%04x, expected CONTINUE", i, r.Sid)
		}
	}
	if total != len(lr.Data) {
		t.Errorf("physical payloads add up to %d, expected %d", total, len(lr.Data))
	}
}

func TestOrphanContinue(t *testing.T) {
	stream := concat(record(XL_CONTINUE, []byte{1, 2, 3}), record(XL_EOF, nil))
	lrs, err := DecodeStream(stream)
	if err != nil {
		t.Fatalf("DecodeStream failed: %v", err)
	}
	if len(lrs) != 2 || lrs[0].Sid != XL_CONTINUE || len(lrs[0].Data) != 3 {
		t.Errorf("orphan CONTINUE was not kept as its own record: %+v", lrs)
	}
	r, err := DecodeRecord(lrs[0])
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if _, ok := r.(*UnknownRecord); !ok {
		t.Errorf("DecodeRecord(CONTINUE) = %T, expected *UnknownRecord", r)
	}
}

func TestContinueAfterFixedSizeRecord(t *testing.T) {
	number := make([]byte, 14)
	number[0] = 3
	tests := []struct {
		name   string
		stream []byte
		sids   []uint16
	}{
		{
			"NUMBER",
			concat(record(XL_NUMBER, number), record(XL_CONTINUE, []byte{1, 2, 3}), record(XL_EOF, nil)),
			[]uint16{XL_NUMBER, XL_CONTINUE, XL_EOF},
		},
		{
			"EOF",
			concat(record(XL_EOF, nil), record(XL_CONTINUE, []byte{4, 5, 6}), record(XL_EOF, nil)),
			[]uint16{XL_EOF, XL_CONTINUE, XL_EOF},
		},
		{
			"two CONTINUEs",
			concat(record(XL_EOF, nil), record(XL_CONTINUE, []byte{7}), record(XL_CONTINUE, []byte{8, 9})),
			[]uint16{XL_EOF, XL_CONTINUE},
		},
	}
	for _, test := range tests {
		recs, err := ReadRecords(test.stream)
		if err != nil {
			t.Errorf("%s: ReadRecords failed: %v", test.name, err)
			continue
		}
		if len(recs) != len(test.sids) {
			t.Errorf("%s: %d records, expected %d", test.name, len(recs), len(test.sids))
			continue
		}
		for i, r := range recs {
			if r.Sid() != test.sids[i] {
				t.Errorf("%s: recs[%d].Sid() = 0x%04x, expected 0x%04x", test.name, i, r.Sid(), test.sids[i])
			}
		}
		if _, ok := recs[1].(*UnknownRecord); !ok {
			t.Errorf("%s: recs[1] = %T, expected *UnknownRecord", test.name, recs[1])
		}
		out, err := WriteRecords(recs)
		if err != nil {
			t.Errorf("%s: WriteRecords failed: %v", test.name, err)
			continue
		}
		if !bytes.Equal(out, test.stream) {
			t.Errorf("%s: round trip gives %d bytes, expected %d", test.name, len(out), len(test.stream))
		}
	}
}

func TestUnknownRecordIsLossless(t *testing.T) {
	stream := concat(record(0x1234, []byte("opaque payload")), record(XL_EOF, nil))
	recs, err := ReadRecords(stream)
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	if u, ok := recs[0].(*UnknownRecord); !ok || u.ID != 0x1234 {
		t.Fatalf("recs[0] = %v, expected UnknownRecord 0x1234", recs[0])
	}
	out, err := WriteRecords(recs)
	if err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}
	if !bytes.Equal(out, stream) {
		t.Errorf("WriteRecords(ReadRecords(s)) differs from s")
	}
}

func TestEncodeRawRecordsTooLong(t *testing.T) {
	_, err := EncodeRawRecords([]RawRecord{{Sid: 0x00FC, Data: make([]byte, MaxRecordDataSize+1)}})
	var xe *XLRDError
	if !errors.As(err, &xe) {
		t.Errorf("EncodeRawRecords error = %v, expected *XLRDError", err)
	}
}
