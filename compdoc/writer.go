package compdoc

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"
)

type dirRecord struct {
	e     *Entry
	left  uint32
	right uint32
	child uint32
	start uint32
	size  uint64
}

// WriteTo serializes the document to w.
func (cd *CompDoc) WriteTo(w io.Writer) (int64, error) {
	b, err := cd.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Bytes serializes the document. The layout is deterministic: big
// streams, mini stream, mini FAT, directory, then FAT and DIFAT sectors.
func (cd *CompDoc) Bytes() ([]byte, error) {
	shift, major := 9, uint16(3)
	if cd.MajorVersion == 4 {
		shift, major = 12, 4
	}
	ssz := 1 << shift
	root := cd.Root
	if root == nil || root.Type != TypeRoot {
		return nil, newCompDocError("Document has no root entry")
	}

	recs := []*dirRecord{{e: root, left: NOSTREAM, right: NOSTREAM, child: NOSTREAM}}
	if err := flatten(root, 0, &recs); err != nil {
		return nil, err
	}

	var fat []uint32
	var body bytes.Buffer
	alloc := func(data []byte) uint32 {
		n := (len(data) + ssz - 1) / ssz
		if n == 0 {
			return ENDOFCHAIN
		}
		start := len(fat)
		for i := 0; i < n; i++ {
			if i == n-1 {
				fat = append(fat, ENDOFCHAIN)
			} else {
				fat = append(fat, uint32(start+i+1))
			}
		}
		body.Write(data)
		if pad := n*ssz - len(data); pad > 0 {
			body.Write(make([]byte, pad))
		}
		return uint32(start)
	}

	var ministrm []byte
	var minifat []uint32
	for _, rec := range recs {
		e := rec.e
		if e.Type != TypeStream {
			continue
		}
		rec.size = uint64(len(e.Data))
		switch {
		case len(e.Data) == 0:
			rec.start = ENDOFCHAIN
		case len(e.Data) < MiniStreamCutoff:
			n := (len(e.Data) + miniSectorSize - 1) / miniSectorSize
			start := len(minifat)
			for i := 0; i < n; i++ {
				if i == n-1 {
					minifat = append(minifat, ENDOFCHAIN)
				} else {
					minifat = append(minifat, uint32(start+i+1))
				}
			}
			ministrm = append(ministrm, e.Data...)
			ministrm = append(ministrm, make([]byte, n*miniSectorSize-len(e.Data))...)
			rec.start = uint32(start)
		default:
			rec.start = alloc(e.Data)
		}
	}

	recs[0].start = alloc(ministrm)
	recs[0].size = uint64(len(ministrm))

	miniFATStart := uint32(ENDOFCHAIN)
	nMiniFAT := 0
	if len(minifat) > 0 {
		per := ssz / 4
		for len(minifat)%per != 0 {
			minifat = append(minifat, FREESECT)
		}
		nMiniFAT = len(minifat) / per
		miniFATStart = alloc(u32Bytes(minifat))
	}

	dir := make([]byte, 0, len(recs)*dirEntrySize)
	for _, rec := range recs {
		b, err := encodeDirEntry(rec)
		if err != nil {
			return nil, err
		}
		dir = append(dir, b...)
	}
	for len(dir)%ssz != 0 {
		dir = append(dir, emptyDirEntry()...)
	}
	nDirSectors := len(dir) / ssz
	dirStart := alloc(dir)

	per := ssz / 4
	nData := len(fat)
	nFAT, nDIF := 0, 0
	for {
		total := nData + nFAT + nDIF
		needFAT := (total + per - 1) / per
		needDIF := 0
		if needFAT > headerDIFATLen {
			needDIF = (needFAT - headerDIFATLen + per - 2) / (per - 1)
		}
		if needFAT == nFAT && needDIF == nDIF {
			break
		}
		nFAT, nDIF = needFAT, needDIF
	}
	fatSids := make([]uint32, nFAT)
	for i := range fatSids {
		fatSids[i] = uint32(nData + i)
		fat = append(fat, FATSECT)
	}
	difSids := make([]uint32, nDIF)
	for i := range difSids {
		difSids[i] = uint32(nData + nFAT + i)
		fat = append(fat, DIFSECT)
	}
	for len(fat) < nFAT*per {
		fat = append(fat, FREESECT)
	}
	body.Write(u32Bytes(fat))

	rest := []uint32{}
	if nFAT > headerDIFATLen {
		rest = fatSids[headerDIFATLen:]
	}
	for i := range difSids {
		sec := make([]uint32, per)
		for j := 0; j < per-1; j++ {
			k := i*(per-1) + j
			if k < len(rest) {
				sec[j] = rest[k]
			} else {
				sec[j] = FREESECT
			}
		}
		if i+1 < len(difSids) {
			sec[per-1] = difSids[i+1]
		} else {
			sec[per-1] = ENDOFCHAIN
		}
		body.Write(u32Bytes(sec))
	}

	hdr := make([]byte, ssz)
	copy(hdr, Signature)
	le := binary.LittleEndian
	le.PutUint16(hdr[24:], 0x003E)
	le.PutUint16(hdr[26:], major)
	le.PutUint16(hdr[28:], 0xFFFE)
	le.PutUint16(hdr[30:], uint16(shift))
	le.PutUint16(hdr[32:], miniSectorShift)
	if shift == 12 {
		le.PutUint32(hdr[40:], uint32(nDirSectors))
	}
	le.PutUint32(hdr[44:], uint32(nFAT))
	le.PutUint32(hdr[48:], dirStart)
	le.PutUint32(hdr[56:], MiniStreamCutoff)
	le.PutUint32(hdr[60:], miniFATStart)
	le.PutUint32(hdr[64:], uint32(nMiniFAT))
	difStart := uint32(ENDOFCHAIN)
	if nDIF > 0 {
		difStart = difSids[0]
	}
	le.PutUint32(hdr[68:], difStart)
	le.PutUint32(hdr[72:], uint32(nDIF))
	for i := 0; i < headerDIFATLen; i++ {
		v := uint32(FREESECT)
		if i < nFAT {
			v = fatSids[i]
		}
		le.PutUint32(hdr[76+4*i:], v)
	}

	out := make([]byte, 0, len(hdr)+body.Len())
	out = append(out, hdr...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// flatten assigns directory ids depth first and links each storage's
// children into a balanced tree.
func flatten(parent *Entry, parentID int, recs *[]*dirRecord) error {
	kids := make([]*Entry, len(parent.Children))
	copy(kids, parent.Children)
	sort.SliceStable(kids, func(i, j int) bool {
		return compareNames(kids[i].Name, kids[j].Name) < 0
	})
	for i := 1; i < len(kids); i++ {
		if compareNames(kids[i-1].Name, kids[i].Name) == 0 {
			return newCompDocError("Duplicate entry name %q", kids[i].Name)
		}
	}
	ids := make([]int, len(kids))
	for i, k := range kids {
		if err := validateName(k.Name); err != nil {
			return err
		}
		if k.Type != TypeStream && k.Type != TypeStorage {
			return newCompDocError("Entry %q has type %s", k.Name, k.Type)
		}
		ids[i] = len(*recs)
		*recs = append(*recs, &dirRecord{e: k, left: NOSTREAM, right: NOSTREAM, child: NOSTREAM})
	}
	(*recs)[parentID].child = balance(ids, *recs)
	for i, k := range kids {
		if k.Type == TypeStorage {
			if err := flatten(k, ids[i], recs); err != nil {
				return err
			}
		}
	}
	return nil
}

func balance(ids []int, recs []*dirRecord) uint32 {
	if len(ids) == 0 {
		return NOSTREAM
	}
	mid := len(ids) / 2
	r := recs[ids[mid]]
	r.left = balance(ids[:mid], recs)
	r.right = balance(ids[mid+1:], recs)
	return uint32(ids[mid])
}

func encodeDirEntry(rec *dirRecord) ([]byte, error) {
	e := rec.e
	b := make([]byte, dirEntrySize)
	name, err := encodeName(e.Name)
	if err != nil {
		return nil, err
	}
	if len(name)/2 > maxNameLen {
		return nil, newCompDocError("Entry name %q is longer than %d characters", e.Name, maxNameLen)
	}
	copy(b, name)
	le := binary.LittleEndian
	le.PutUint16(b[64:], uint16(len(name)+2))
	b[66] = byte(e.Type)
	b[67] = 1 // black
	le.PutUint32(b[68:], rec.left)
	le.PutUint32(b[72:], rec.right)
	le.PutUint32(b[76:], rec.child)
	copy(b[80:96], e.CLSID[:])
	le.PutUint32(b[96:], e.StateBits)
	if e.Type != TypeStream {
		le.PutUint64(b[100:], timeToFiletime(e.Created))
		le.PutUint64(b[108:], timeToFiletime(e.Modified))
	}
	if e.Type == TypeStorage {
		rec.start = 0
		rec.size = 0
	}
	le.PutUint32(b[116:], rec.start)
	le.PutUint64(b[120:], rec.size)
	return b, nil
}

func emptyDirEntry() []byte {
	b := make([]byte, dirEntrySize)
	binary.LittleEndian.PutUint32(b[68:], NOSTREAM)
	binary.LittleEndian.PutUint32(b[72:], NOSTREAM)
	binary.LittleEndian.PutUint32(b[76:], NOSTREAM)
	return b
}

func u32Bytes(v []uint32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[4*i:], x)
	}
	return b
}
