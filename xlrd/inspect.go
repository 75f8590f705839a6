package xlrd

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/yamitzky/xlcalc-go/compdoc"
)

// FileFormatDescriptions provides descriptions of the file types that can be inspected.
var FileFormatDescriptions = map[string]string{
	"xls":  "Excel xls",
	"biff": "Bare BIFF record stream",
	"cfb":  "OLE2 compound document without a workbook",
	"xlsb": "Excel 2007 xlsb file",
	"xlsx": "Excel xlsx file",
	"ods":  "Openoffice.org ODS file",
	"zip":  "Unknown ZIP file",
	"":     "Unknown file type",
}

// ZIP_SIGNATURE is the magic cookie for ZIP files.
var ZIP_SIGNATURE = []byte("PK\x03\x04")

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return strings.Replace(path, "~", home, 1), nil
}

// InspectFormat inspects the content at the supplied path or the bytes content provided
// and returns the file's type as a string, or empty string if it cannot be determined.
//
// path: A string path containing the content to inspect. ~ will be expanded.
// content: The bytes content to inspect.
//
// The return value can always be looked up in FileFormatDescriptions
// to return a human-readable description of the format found.
func InspectFormat(path string, content []byte) (string, error) {
	if content == nil {
		p, err := expandHome(path)
		if err != nil {
			return "", err
		}
		f, err := os.Open(p)
		if err != nil {
			return "", err
		}
		defer f.Close()
		content, err = io.ReadAll(f)
		if err != nil {
			return "", err
		}
	}

	switch {
	case bytes.HasPrefix(content, compdoc.Signature):
		cd, err := compdoc.Open(content, &compdoc.Options{IgnoreWorkbookCorruption: true})
		if err != nil {
			// let the workbook reader report the damage
			return "xls", nil
		}
		for _, qname := range []string{"Workbook", "Book"} {
			if _, ok := cd.LocateNamedStream(qname); ok {
				return "xls", nil
			}
		}
		return "cfb", nil
	case looksLikeBIFF(content):
		return "biff", nil
	case !bytes.HasPrefix(content, ZIP_SIGNATURE):
		return "", nil
	}

	zf, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	// Workaround for some third party files that use forward slashes and
	// lower case names.
	componentNames := make(map[string]bool)
	for _, f := range zf.File {
		componentNames[strings.ToLower(strings.ReplaceAll(f.Name, "\\", "/"))] = true
	}
	switch {
	case componentNames["xl/workbook.xml"]:
		return "xlsx", nil
	case componentNames["xl/workbook.bin"]:
		return "xlsb", nil
	case componentNames["content.xml"]:
		return "ods", nil
	}
	return "zip", nil
}
