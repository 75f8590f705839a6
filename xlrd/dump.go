package xlrd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/yamitzky/xlcalc-go/compdoc"
)

// workbookStream returns the Workbook stream of an .xls file, or the
// file itself when it is a bare BIFF stream.
func workbookStream(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cd, err := compdoc.Open(data, nil)
	var notCFB *compdoc.NotCompoundFileError
	switch {
	case err == nil:
		for _, qname := range []string{"Workbook", "Book"} {
			if stream, ok := cd.LocateNamedStream(qname); ok {
				return stream, nil
			}
		}
		return nil, NewXLRDError("Can't find workbook in OLE2 compound document")
	case errors.As(err, &notCFB) && looksLikeBIFF(data):
		return data, nil
	}
	return nil, err
}

// hexCharDump writes data as rows of 16 bytes in hex and as characters.
func hexCharDump(w io.Writer, data []byte, base int, unnumbered bool) {
	for pos := 0; pos < len(data); pos += 16 {
		end := min(pos+16, len(data))
		row := data[pos:end]
		hex := ""
		chars := make([]byte, len(row))
		for i, c := range row {
			hex += fmt.Sprintf("%02x ", c)
			if c >= 0x20 && c < 0x7F {
				chars[i] = c
			} else {
				chars[i] = '?'
			}
		}
		if unnumbered {
			fmt.Fprintf(w, "     %-48s %s\n", hex, chars)
		} else {
			fmt.Fprintf(w, "%5d:      %-48s %s\n", base+pos, hex, chars)
		}
	}
}

// Dump dumps an XLS file's BIFF records in char & hex format for debugging.
//
// filename: The path to the file to be dumped.
// outfile: An open file, to which the dump is written.
// unnumbered: If true, omit offsets (for meaningful diffs).
func Dump(filename string, outfile io.Writer, unnumbered bool) error {
	stream, err := workbookStream(filename)
	if err != nil {
		return err
	}
	raws, err := ReadRawRecords(stream)
	depth := 0
	for _, r := range raws {
		indent := ""
		for i := 0; i < depth; i++ {
			indent += "  "
		}
		if unnumbered {
			fmt.Fprintf(outfile, "%s%04x %s len = %04x (%d)\n", indent, r.Sid, RecordName(r.Sid), len(r.Data), len(r.Data))
		} else {
			fmt.Fprintf(outfile, "%s%5d: %04x %s len = %04x (%d)\n", indent, r.Offset, r.Sid, RecordName(r.Sid), len(r.Data), len(r.Data))
		}
		hexCharDump(outfile, r.Data, r.Offset+4, unnumbered)
		switch r.Sid {
		case XL_BOF:
			depth++
		case XL_EOF:
			if depth > 0 {
				depth--
			}
		}
	}
	if err != nil {
		fmt.Fprintf(outfile, "*** %v\n", err)
	}
	return nil
}

// CountRecords summarises the file's BIFF records.
// It produces a sorted file of (record_name, count).
//
// filename: The path to the file to be summarised.
// outfile: An open file, to which the summary is written.
func CountRecords(filename string, outfile io.Writer) error {
	stream, err := workbookStream(filename)
	if err != nil {
		return err
	}
	raws, err := ReadRawRecords(stream)
	counts := map[string]int{}
	for _, r := range raws {
		counts[RecordName(r.Sid)]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(outfile, "%8d %s\n", counts[name], name)
	}
	if err != nil {
		fmt.Fprintf(outfile, "*** %v\n", err)
	}
	return nil
}
