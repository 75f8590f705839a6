package compdoc

import (
	"bytes"
	"encoding/binary"

	"github.com/richardlehane/msoleps"
)

// SummaryInformationName is the stream holding the document summary.
const SummaryInformationName = "\x05SummaryInformation"

// FMTIDSummaryInformation identifies the SummaryInformation property set.
var FMTIDSummaryInformation = MustParseCLSID("{F29F85E0-4FF9-1068-AB91-08002B27B3D9}")

// Property ids of the SummaryInformation set.
const (
	PIDCodePage   = 0x01
	PIDTitle      = 0x02
	PIDSubject    = 0x03
	PIDAuthor     = 0x04
	PIDKeywords   = 0x05
	PIDComments   = 0x06
	PIDLastAuthor = 0x08
	PIDAppName    = 0x12
)

const (
	vtI2    = 0x0002
	vtLPSTR = 0x001E
)

// SummaryInfo holds the string properties of a SummaryInformation stream.
type SummaryInfo struct {
	Title      string
	Subject    string
	Author     string
	Keywords   string
	Comments   string
	LastAuthor string
	AppName    string
}

// ReadSummaryInfo decodes a SummaryInformation property set stream.
func ReadSummaryInfo(data []byte) (*SummaryInfo, error) {
	r, err := msoleps.NewFrom(bytes.NewReader(data))
	if err != nil {
		return nil, newCompDocError("SummaryInformation: %v", err)
	}
	si := &SummaryInfo{}
	for _, p := range r.Property {
		if p == nil || p.T == nil {
			continue
		}
		switch p.Name {
		case "Title":
			si.Title = p.String()
		case "Subject":
			si.Subject = p.String()
		case "Author":
			si.Author = p.String()
		case "Keywords":
			si.Keywords = p.String()
		case "Comments":
			si.Comments = p.String()
		case "LastAuthor":
			si.LastAuthor = p.String()
		case "AppName":
			si.AppName = p.String()
		}
	}
	return si, nil
}

// SummaryInfo returns the decoded SummaryInformation stream, or nil when
// the document has none.
func (cd *CompDoc) SummaryInfo() (*SummaryInfo, error) {
	data, ok := cd.LocateNamedStream(SummaryInformationName)
	if !ok {
		return nil, nil
	}
	return ReadSummaryInfo(data)
}

// Bytes encodes the non-empty properties as a single property set using
// the Unicode code page.
func (si *SummaryInfo) Bytes() []byte {
	type prop struct {
		id  uint32
		val []byte
	}
	le := binary.LittleEndian
	cp := make([]byte, 8)
	le.PutUint16(cp[0:], vtI2)
	le.PutUint16(cp[4:], 1200)
	props := []prop{{PIDCodePage, cp}}
	for _, p := range []struct {
		id uint32
		s  string
	}{
		{PIDTitle, si.Title},
		{PIDSubject, si.Subject},
		{PIDAuthor, si.Author},
		{PIDKeywords, si.Keywords},
		{PIDComments, si.Comments},
		{PIDLastAuthor, si.LastAuthor},
		{PIDAppName, si.AppName},
	} {
		if p.s == "" {
			continue
		}
		chars, _ := utf16le.NewEncoder().Bytes([]byte(p.s))
		chars = append(chars, 0, 0)
		v := make([]byte, 8, 8+len(chars)+3)
		le.PutUint16(v[0:], vtLPSTR)
		le.PutUint32(v[4:], uint32(len(chars)))
		v = append(v, chars...)
		for len(v)%4 != 0 {
			v = append(v, 0)
		}
		props = append(props, prop{p.id, v})
	}

	const setOffset = 48
	tableLen := 8 + 8*len(props)
	set := make([]byte, tableLen)
	le.PutUint32(set[4:], uint32(len(props)))
	for i, p := range props {
		le.PutUint32(set[8+8*i:], p.id)
		le.PutUint32(set[12+8*i:], uint32(len(set)))
		set = append(set, p.val...)
	}
	le.PutUint32(set[0:], uint32(len(set)))

	out := make([]byte, setOffset, setOffset+len(set))
	le.PutUint16(out[0:], 0xFFFE)
	le.PutUint32(out[4:], 0x00020006)
	le.PutUint32(out[24:], 1)
	copy(out[28:44], FMTIDSummaryInformation[:])
	le.PutUint32(out[44:], setOffset)
	return append(out, set...)
}
