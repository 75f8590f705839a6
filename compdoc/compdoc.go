// Package compdoc reads and writes OLE2 compound documents, the
// structured-storage container that holds the Workbook stream of an
// Excel 97-2003 file.
package compdoc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Special sector ids found in the FAT and in directory entries.
const (
	MAXREGSECT = 0xFFFFFFFA
	DIFSECT    = 0xFFFFFFFC
	FATSECT    = 0xFFFFFFFD
	ENDOFCHAIN = 0xFFFFFFFE
	FREESECT   = 0xFFFFFFFF
	NOSTREAM   = 0xFFFFFFFF
)

// MiniStreamCutoff is the size below which a stream lives in the mini stream.
const MiniStreamCutoff = 4096

const (
	headerSize      = 512
	dirEntrySize    = 128
	miniSectorShift = 6
	miniSectorSize  = 1 << miniSectorShift
	headerDIFATLen  = 109
	maxNameLen      = 31
)

// Signature is the magic cookie at the start of every compound document.
var Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// CompDocError represents an error in compound document handling.
type CompDocError struct {
	Message string
}

func (e *CompDocError) Error() string {
	return e.Message
}

func newCompDocError(format string, args ...interface{}) *CompDocError {
	return &CompDocError{Message: fmt.Sprintf(format, args...)}
}

// NotCompoundFileError is returned when the data does not start with
// the compound document signature at all.
type NotCompoundFileError struct {
	Message string
}

func (e *NotCompoundFileError) Error() string {
	return e.Message
}

// Options controls how a compound document is read.
type Options struct {
	// Logfile receives diagnostics. Nil discards them.
	Logfile io.Writer

	// Verbosity increases the volume of trace material written to Logfile.
	Verbosity int

	// IgnoreWorkbookCorruption tolerates sectors claimed by more than one
	// chain and chains shorter than their stream size.
	IgnoreWorkbookCorruption bool
}

// EntryType is the object type of a directory entry.
type EntryType uint8

const (
	TypeEmpty   EntryType = 0
	TypeStorage EntryType = 1
	TypeStream  EntryType = 2
	TypeRoot    EntryType = 5
)

func (t EntryType) String() string {
	switch t {
	case TypeEmpty:
		return "empty"
	case TypeStorage:
		return "storage"
	case TypeStream:
		return "stream"
	case TypeRoot:
		return "root"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Entry is one node of the directory tree.
type Entry struct {
	Name      string
	Type      EntryType
	CLSID     CLSID
	StateBits uint32
	Created   time.Time
	Modified  time.Time

	// StartSector and Size are the values found in the directory when the
	// document was read. They are recomputed on write.
	StartSector uint32
	Size        uint64

	// Data is the content of a stream entry.
	Data []byte

	// Children of a storage or the root, in directory order.
	Children []*Entry

	parent *Entry
}

// Parent returns the storage holding e, or nil for the root.
func (e *Entry) Parent() *Entry {
	return e.parent
}

// IsStream reports whether e carries data.
func (e *Entry) IsStream() bool {
	return e.Type == TypeStream
}

// IsStorage reports whether e can hold children.
func (e *Entry) IsStorage() bool {
	return e.Type == TypeStorage || e.Type == TypeRoot
}

// Child returns the direct child called name (case-insensitive), or nil.
func (e *Entry) Child(name string) *Entry {
	for _, c := range e.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// SetData replaces the content of a stream.
func (e *Entry) SetData(b []byte) {
	e.Data = b
	e.Size = uint64(len(b))
}

// Path returns the names from the root's first child down to e.
func (e *Entry) Path() []string {
	var path []string
	for x := e; x != nil && x.parent != nil; x = x.parent {
		path = append([]string{x.Name}, path...)
	}
	return path
}

// CompDoc is a compound document held entirely in memory.
type CompDoc struct {
	// Root is the root storage ("Root Entry").
	Root *Entry

	// MajorVersion is 3 (512-byte sectors) or 4 (4096-byte sectors).
	MajorVersion uint16

	logfile          io.Writer
	verbosity        int
	ignoreCorruption bool
}

// New returns an empty version 3 document.
func New() *CompDoc {
	return &CompDoc{
		Root:         &Entry{Name: "Root Entry", Type: TypeRoot},
		MajorVersion: 3,
		logfile:      io.Discard,
	}
}

type dirEntry struct {
	name      string
	typ       EntryType
	color     uint8
	left      uint32
	right     uint32
	child     uint32
	clsid     CLSID
	stateBits uint32
	created   uint64
	modified  uint64
	start     uint32
	size      uint64
}

type reader struct {
	cd        *CompDoc
	mem       []byte
	sectorSz  int
	nsecs     int
	fat       []uint32
	minifat   []uint32
	ministrm  []byte
	cutoff    uint32
	claimed   map[uint32]string
	miniClaim map[uint32]string
	dirs      []*dirEntry
}

// Open parses a compound document.
func Open(mem []byte, opts *Options) (*CompDoc, error) {
	if opts == nil {
		opts = &Options{}
	}
	cd := &CompDoc{
		logfile:          opts.Logfile,
		verbosity:        opts.Verbosity,
		ignoreCorruption: opts.IgnoreWorkbookCorruption,
	}
	if cd.logfile == nil {
		cd.logfile = io.Discard
	}
	if len(mem) < len(Signature) || !bytes.Equal(mem[:len(Signature)], Signature) {
		return nil, &NotCompoundFileError{Message: "Not an OLE2 compound document"}
	}
	if len(mem) < headerSize {
		return nil, newCompDocError("Compound document truncated: only %d bytes", len(mem))
	}
	hdr := mem[:headerSize]
	if bo := binary.LittleEndian.Uint16(hdr[28:30]); bo != 0xFFFE {
		return nil, newCompDocError("Expected \"little-endian\" marker, found 0x%04x", bo)
	}
	major := binary.LittleEndian.Uint16(hdr[26:28])
	shift := binary.LittleEndian.Uint16(hdr[30:32])
	mshift := binary.LittleEndian.Uint16(hdr[32:34])
	switch {
	case major == 3 && shift == 9, major == 4 && shift == 12:
	default:
		return nil, newCompDocError("Unsupported sector size: version %d, shift %d", major, shift)
	}
	if mshift != miniSectorShift {
		return nil, newCompDocError("Unsupported mini sector shift %d", mshift)
	}
	cd.MajorVersion = major
	ssz := 1 << shift
	if len(mem) < ssz {
		return nil, newCompDocError("Compound document truncated: only %d bytes", len(mem))
	}
	if rem := (len(mem) - ssz) % ssz; rem != 0 {
		fmt.Fprintf(cd.logfile, "WARNING *** file size (%d) not 512 + multiple of sector size (%d)\n", len(mem), ssz)
		padded := make([]byte, len(mem)+ssz-rem)
		copy(padded, mem)
		mem = padded
	}
	r := &reader{
		cd:        cd,
		mem:       mem,
		sectorSz:  ssz,
		nsecs:     (len(mem) - ssz) / ssz,
		cutoff:    binary.LittleEndian.Uint32(hdr[56:60]),
		claimed:   make(map[uint32]string),
		miniClaim: make(map[uint32]string),
	}
	if r.cutoff != MiniStreamCutoff {
		fmt.Fprintf(cd.logfile, "WARNING *** mini stream cutoff is %d; expected %d\n", r.cutoff, MiniStreamCutoff)
	}
	if cd.verbosity >= 2 {
		fmt.Fprintf(cd.logfile, "compdoc: version=%d sector_size=%d nsecs=%d\n", major, ssz, r.nsecs)
	}
	if err := r.readFAT(hdr); err != nil {
		return nil, err
	}
	if err := r.readDirectory(hdr); err != nil {
		return nil, err
	}
	if err := r.readMini(hdr); err != nil {
		return nil, err
	}
	root, err := r.buildTree()
	if err != nil {
		return nil, err
	}
	cd.Root = root
	return cd, nil
}

func (r *reader) sector(sid uint32) []byte {
	off := (int(sid) + 1) * r.sectorSz
	return r.mem[off : off+r.sectorSz]
}

// corrupt reports a sharing or length problem. It returns nil when the
// caller asked for corruption to be tolerated.
func (r *reader) corrupt(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if r.cd.ignoreCorruption {
		fmt.Fprintf(r.cd.logfile, "WARNING *** %s (ignored)\n", msg)
		return nil
	}
	return &CompDocError{Message: msg}
}

func (r *reader) claim(sid uint32, owner string) error {
	if prev, ok := r.claimed[sid]; ok {
		return r.corrupt("Workbook corruption: sector %d claimed by %s and %s", sid, prev, owner)
	}
	r.claimed[sid] = owner
	return nil
}

func (r *reader) readFAT(hdr []byte) error {
	nfat := int(binary.LittleEndian.Uint32(hdr[44:48]))
	var fatSids []uint32
	for i := 0; i < headerDIFATLen && len(fatSids) < nfat; i++ {
		fatSids = append(fatSids, binary.LittleEndian.Uint32(hdr[76+4*i:]))
	}
	per := r.sectorSz/4 - 1
	sid := binary.LittleEndian.Uint32(hdr[68:72])
	ndif := int(binary.LittleEndian.Uint32(hdr[72:76]))
	for k := 0; k < ndif && len(fatSids) < nfat; k++ {
		if sid >= uint32(r.nsecs) {
			return newCompDocError("DIFAT sector %d out of range (%d sectors)", sid, r.nsecs)
		}
		if err := r.claim(sid, "DIFAT"); err != nil {
			return err
		}
		sec := r.sector(sid)
		for j := 0; j < per && len(fatSids) < nfat; j++ {
			fatSids = append(fatSids, binary.LittleEndian.Uint32(sec[4*j:]))
		}
		sid = binary.LittleEndian.Uint32(sec[4*per:])
	}
	if len(fatSids) < nfat {
		return newCompDocError("DIFAT lists %d FAT sectors; header says %d", len(fatSids), nfat)
	}
	for _, fs := range fatSids {
		if fs >= uint32(r.nsecs) {
			return newCompDocError("FAT sector %d out of range (%d sectors)", fs, r.nsecs)
		}
		if err := r.claim(fs, "FAT"); err != nil {
			return err
		}
		sec := r.sector(fs)
		for j := 0; j < r.sectorSz; j += 4 {
			r.fat = append(r.fat, binary.LittleEndian.Uint32(sec[j:]))
		}
	}
	return nil
}

// chain follows a regular sector chain.
func (r *reader) chain(start uint32, owner string) ([]uint32, error) {
	var sids []uint32
	seen := make(map[uint32]bool)
	for sid := start; sid != ENDOFCHAIN && sid != FREESECT; sid = r.fat[sid] {
		if sid >= uint32(r.nsecs) || sid >= uint32(len(r.fat)) {
			return nil, newCompDocError("%s: sector %d out of range (%d sectors)", owner, sid, r.nsecs)
		}
		if seen[sid] {
			return nil, newCompDocError("%s: circular sector chain at sector %d", owner, sid)
		}
		seen[sid] = true
		if err := r.claim(sid, owner); err != nil {
			return nil, err
		}
		sids = append(sids, sid)
	}
	return sids, nil
}

func (r *reader) readStream(start uint32, size uint64, owner string) ([]byte, error) {
	sids, err := r.chain(start, owner)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(sids)*r.sectorSz)
	for _, sid := range sids {
		buf = append(buf, r.sector(sid)...)
	}
	if size == 0 {
		return buf, nil
	}
	if uint64(len(buf)) < size {
		if err := r.corrupt("%s: chain holds %d bytes, size is %d", owner, len(buf), size); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return buf[:size], nil
}

func (r *reader) readDirectory(hdr []byte) error {
	dirStart := binary.LittleEndian.Uint32(hdr[48:52])
	dir, err := r.readStream(dirStart, 0, "directory")
	if err != nil {
		return err
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	for pos := 0; pos+dirEntrySize <= len(dir); pos += dirEntrySize {
		d, err := parseDirEntry(dir[pos:pos+dirEntrySize], r.cd.MajorVersion, dec.Bytes)
		if err != nil {
			return err
		}
		r.dirs = append(r.dirs, d)
	}
	if len(r.dirs) == 0 || r.dirs[0].typ != TypeRoot {
		return newCompDocError("Directory does not start with a root entry")
	}
	return nil
}

func parseDirEntry(b []byte, major uint16, decode func([]byte) ([]byte, error)) (*dirEntry, error) {
	d := &dirEntry{
		typ:       EntryType(b[66]),
		color:     b[67],
		left:      binary.LittleEndian.Uint32(b[68:72]),
		right:     binary.LittleEndian.Uint32(b[72:76]),
		child:     binary.LittleEndian.Uint32(b[76:80]),
		stateBits: binary.LittleEndian.Uint32(b[96:100]),
		created:   binary.LittleEndian.Uint64(b[100:108]),
		modified:  binary.LittleEndian.Uint64(b[108:116]),
		start:     binary.LittleEndian.Uint32(b[116:120]),
		size:      binary.LittleEndian.Uint64(b[120:128]),
	}
	copy(d.clsid[:], b[80:96])
	if major == 3 {
		// the high half is undefined in version 3 files
		d.size &= 0xFFFFFFFF
	}
	if d.typ == TypeEmpty {
		return d, nil
	}
	nameLen := int(binary.LittleEndian.Uint16(b[64:66]))
	if nameLen > 64 || nameLen%2 != 0 {
		return nil, newCompDocError("Directory entry name length %d is invalid", nameLen)
	}
	if nameLen >= 2 {
		name, err := decode(b[:nameLen-2])
		if err != nil {
			return nil, newCompDocError("Directory entry name: %v", err)
		}
		d.name = string(name)
	}
	return d, nil
}

func (r *reader) readMini(hdr []byte) error {
	root := r.dirs[0]
	if root.start != ENDOFCHAIN && root.size > 0 {
		ms, err := r.readStream(root.start, root.size, "mini stream")
		if err != nil {
			return err
		}
		r.ministrm = ms
	}
	mfStart := binary.LittleEndian.Uint32(hdr[60:64])
	mf, err := r.readStream(mfStart, 0, "mini FAT")
	if err != nil {
		return err
	}
	for j := 0; j+4 <= len(mf); j += 4 {
		r.minifat = append(r.minifat, binary.LittleEndian.Uint32(mf[j:]))
	}
	return nil
}

func (r *reader) readMiniStream(start uint32, size uint64, owner string) ([]byte, error) {
	buf := make([]byte, 0, size)
	seen := make(map[uint32]bool)
	for sid := start; sid != ENDOFCHAIN && uint64(len(buf)) < size; sid = r.minifat[sid] {
		if sid >= uint32(len(r.minifat)) {
			return nil, newCompDocError("%s: mini sector %d out of range", owner, sid)
		}
		if seen[sid] {
			return nil, newCompDocError("%s: circular mini sector chain at %d", owner, sid)
		}
		seen[sid] = true
		if prev, ok := r.miniClaim[sid]; ok {
			if err := r.corrupt("Workbook corruption: mini sector %d claimed by %s and %s", sid, prev, owner); err != nil {
				return nil, err
			}
		}
		r.miniClaim[sid] = owner
		off := int(sid) * miniSectorSize
		if off+miniSectorSize > len(r.ministrm) {
			return nil, newCompDocError("%s: mini sector %d beyond mini stream", owner, sid)
		}
		buf = append(buf, r.ministrm[off:off+miniSectorSize]...)
	}
	if uint64(len(buf)) < size {
		if err := r.corrupt("%s: mini chain holds %d bytes, size is %d", owner, len(buf), size); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return buf[:size], nil
}

func (r *reader) buildTree() (*Entry, error) {
	rd := r.dirs[0]
	root := rd.entry()
	visited := map[uint32]bool{0: true}
	if err := r.siblings(rd.child, root, visited); err != nil {
		return nil, err
	}
	return root, nil
}

// siblings walks the red-black sibling tree rooted at id in order.
func (r *reader) siblings(id uint32, parent *Entry, visited map[uint32]bool) error {
	if id == NOSTREAM {
		return nil
	}
	if int(id) >= len(r.dirs) {
		return newCompDocError("Directory entry %d out of range (%d entries)", id, len(r.dirs))
	}
	if visited[id] {
		return newCompDocError("Directory tree has a cycle at entry %d", id)
	}
	visited[id] = true
	d := r.dirs[id]
	if err := r.siblings(d.left, parent, visited); err != nil {
		return err
	}
	switch d.typ {
	case TypeStream, TypeStorage:
		e := d.entry()
		e.parent = parent
		if parent.Child(e.Name) != nil {
			return newCompDocError("Duplicate entry name %q", e.Name)
		}
		parent.Children = append(parent.Children, e)
		if d.typ == TypeStream {
			owner := strings.Join(append(parent.Path(), e.Name), "/")
			var err error
			switch {
			case d.size == 0:
				e.Data = []byte{}
			case d.size < uint64(r.cutoff):
				e.Data, err = r.readMiniStream(d.start, d.size, owner)
			default:
				e.Data, err = r.readStream(d.start, d.size, owner)
			}
			if err != nil {
				return err
			}
		} else if err := r.siblings(d.child, e, visited); err != nil {
			return err
		}
	default:
		fmt.Fprintf(r.cd.logfile, "WARNING *** directory entry %d has type %s; skipped\n", id, d.typ)
	}
	return r.siblings(d.right, parent, visited)
}

func (d *dirEntry) entry() *Entry {
	return &Entry{
		Name:        d.name,
		Type:        d.typ,
		CLSID:       d.clsid,
		StateBits:   d.stateBits,
		Created:     filetimeToTime(d.created),
		Modified:    filetimeToTime(d.modified),
		StartSector: d.start,
		Size:        d.size,
	}
}

// Find returns the entry at path below the root, or nil.
func (cd *CompDoc) Find(path ...string) *Entry {
	e := cd.Root
	for _, name := range path {
		if e == nil {
			return nil
		}
		e = e.Child(name)
	}
	return e
}

// LocateNamedStream returns the content of the stream qname in the root
// storage. The second result is false when there is no such stream.
func (cd *CompDoc) LocateNamedStream(qname string) ([]byte, bool) {
	e := cd.Root.Child(qname)
	if e == nil || !e.IsStream() {
		return nil, false
	}
	return e.Data, true
}

// Walk calls fn for every entry below the root in directory order.
func (cd *CompDoc) Walk(fn func(path []string, e *Entry) error) error {
	var walk func(parent *Entry, prefix []string) error
	walk = func(parent *Entry, prefix []string) error {
		for _, c := range parent.Children {
			path := append(append([]string(nil), prefix...), c.Name)
			if err := fn(path, c); err != nil {
				return err
			}
			if c.IsStorage() {
				if err := walk(c, path); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(cd.Root, nil)
}

// FILETIME counts 100ns intervals since 1601-01-01.
const filetimeEpochDelta = 116444736000000000

func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	ns := (int64(ft) - filetimeEpochDelta) * 100
	return time.Unix(0, ns).UTC()
}

func timeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100 + filetimeEpochDelta)
}
