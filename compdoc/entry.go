package compdoc

import (
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeName returns the UTF-16LE form of a directory entry name.
func encodeName(name string) ([]byte, error) {
	b, err := utf16le.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, newCompDocError("Entry name %q: %v", name, err)
	}
	return b, nil
}

func validateName(name string) error {
	if name == "" {
		return newCompDocError("Entry name is empty")
	}
	if strings.ContainsAny(name, "/\\:!") {
		return newCompDocError("Entry name %q contains an illegal character", name)
	}
	b, err := encodeName(name)
	if err != nil {
		return err
	}
	if len(b)/2 > maxNameLen {
		return newCompDocError("Entry name %q is longer than %d characters", name, maxNameLen)
	}
	return nil
}

// compareNames orders sibling names the way the directory red-black
// trees do: shorter names first, then by upper-cased code units.
func compareNames(a, b string) int {
	ua, _ := encodeName(strings.ToUpper(a))
	ub, _ := encodeName(strings.ToUpper(b))
	if len(ua) != len(ub) {
		if len(ua) < len(ub) {
			return -1
		}
		return 1
	}
	for i := 0; i+1 < len(ua); i += 2 {
		ca := uint16(ua[i]) | uint16(ua[i+1])<<8
		cb := uint16(ub[i]) | uint16(ub[i+1])<<8
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (cd *CompDoc) addEntry(parent *Entry, e *Entry) (*Entry, error) {
	if parent == nil {
		parent = cd.Root
	}
	if !parent.IsStorage() {
		return nil, newCompDocError("%q is not a storage", parent.Name)
	}
	if err := validateName(e.Name); err != nil {
		return nil, err
	}
	if parent.Child(e.Name) != nil {
		return nil, newCompDocError("Duplicate entry name %q", e.Name)
	}
	e.parent = parent
	parent.Children = append(parent.Children, e)
	return e, nil
}

// CreateStream adds a stream below parent (nil means the root).
func (cd *CompDoc) CreateStream(parent *Entry, name string, data []byte) (*Entry, error) {
	return cd.addEntry(parent, &Entry{
		Name: name,
		Type: TypeStream,
		Data: data,
		Size: uint64(len(data)),
	})
}

// CreateStorage adds an empty storage below parent (nil means the root).
func (cd *CompDoc) CreateStorage(parent *Entry, name string) (*Entry, error) {
	now := time.Now().UTC()
	return cd.addEntry(parent, &Entry{
		Name:     name,
		Type:     TypeStorage,
		Created:  now,
		Modified: now,
	})
}

// PutStream creates the stream or replaces the content of an existing one.
func (cd *CompDoc) PutStream(parent *Entry, name string, data []byte) (*Entry, error) {
	if parent == nil {
		parent = cd.Root
	}
	if e := parent.Child(name); e != nil {
		if !e.IsStream() {
			return nil, newCompDocError("%q is not a stream", name)
		}
		e.SetData(data)
		return e, nil
	}
	return cd.CreateStream(parent, name, data)
}

// Delete removes e and everything below it.
func (cd *CompDoc) Delete(e *Entry) error {
	if e == nil || e.parent == nil {
		return newCompDocError("Cannot delete the root entry")
	}
	p := e.parent
	for i, c := range p.Children {
		if c == e {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			e.parent = nil
			return nil
		}
	}
	return newCompDocError("Entry %q not found below %q", e.Name, p.Name)
}
