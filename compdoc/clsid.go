package compdoc

import (
	"strings"

	"github.com/google/uuid"
)

// CLSID is a class id as stored on disk: the first three fields are
// little-endian, the last eight bytes are in order.
type CLSID [16]byte

// ExcelCLSID identifies an Excel 97-2003 workbook storage.
var ExcelCLSID = MustParseCLSID("{00020820-0000-0000-C000-000000000046}")

// ParseCLSID parses the textual form, with or without braces.
func ParseCLSID(s string) (CLSID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CLSID{}, newCompDocError("Invalid CLSID %q: %v", s, err)
	}
	return fromUUID(u), nil
}

// MustParseCLSID is like ParseCLSID but panics on error.
func MustParseCLSID(s string) CLSID {
	c, err := ParseCLSID(s)
	if err != nil {
		panic(err)
	}
	return c
}

func fromUUID(u uuid.UUID) CLSID {
	var c CLSID
	c[0], c[1], c[2], c[3] = u[3], u[2], u[1], u[0]
	c[4], c[5] = u[5], u[4]
	c[6], c[7] = u[7], u[6]
	copy(c[8:], u[8:])
	return c
}

// UUID returns the class id in RFC 4122 byte order.
func (c CLSID) UUID() uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = c[3], c[2], c[1], c[0]
	u[4], u[5] = c[5], c[4]
	u[6], u[7] = c[7], c[6]
	copy(u[8:], c[8:])
	return u
}

// IsZero reports whether no class id is set.
func (c CLSID) IsZero() bool {
	return c == CLSID{}
}

func (c CLSID) String() string {
	return "{" + strings.ToUpper(c.UUID().String()) + "}"
}
