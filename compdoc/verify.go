package compdoc

import (
	"bytes"
	"io"
	"strings"
	"unicode"

	"github.com/richardlehane/mscfb"
)

// Verify reads a serialized document back through an independent
// reader and checks that it sees the same entries with the same content.
func Verify(b []byte) error {
	cd, err := Open(b, nil)
	if err != nil {
		return err
	}
	r, err := mscfb.New(bytes.NewReader(b))
	if err != nil {
		return newCompDocError("verify: %v", err)
	}
	seen := 0
	for {
		f, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return newCompDocError("verify: %v", err)
		}
		name := f.Name
		if f.Initial != 0 && !unicode.IsPrint(rune(f.Initial)) {
			name = string(rune(f.Initial)) + name
		}
		path := append(append([]string(nil), f.Path...), name)
		e := cd.Find(path...)
		if e == nil {
			return newCompDocError("verify: %s not found", strings.Join(path, "/"))
		}
		seen++
		if !e.IsStream() {
			continue
		}
		data, err := io.ReadAll(f)
		if err != nil {
			return newCompDocError("verify: reading %s: %v", strings.Join(path, "/"), err)
		}
		if !bytes.Equal(data, e.Data) {
			return newCompDocError("verify: %s differs (%d bytes, expected %d)", strings.Join(path, "/"), len(data), len(e.Data))
		}
	}
	total := 0
	cd.Walk(func(path []string, e *Entry) error {
		total++
		return nil
	})
	if seen != total {
		return newCompDocError("verify: saw %d entries, expected %d", seen, total)
	}
	return nil
}
