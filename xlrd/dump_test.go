package xlrd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDump(t *testing.T) {
	path := writeTemp(t, "book.bin", minimalStream(t))
	var out bytes.Buffer
	if err := Dump(path, &out, true); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"0809 BOF len = 0010 (16)\n",
		"  0042 CODEPAGE len = 0002 (2)\n",
		"  000a EOF len = 0000 (0)\n",
		"  0203 NUMBER len = 000e (14)\n",
		"b0 04",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("dump lacks %q:\n%s", want, text)
		}
	}

	out.Reset()
	if err := Dump(path, &out, false); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "    0: 0809 BOF") {
		t.Errorf("numbered dump starts with %q", strings.SplitN(out.String(), "\n", 2)[0])
	}
}

func TestDumpTruncated(t *testing.T) {
	path := writeTemp(t, "cut.bin", concat(minimalStream(t), []byte{0x0A}))
	var out bytes.Buffer
	if err := Dump(path, &out, true); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if !strings.Contains(out.String(), "*** ") {
		t.Errorf("dump of a truncated stream does not report the damage:\n%s", out.String())
	}
}

func TestCountRecords(t *testing.T) {
	content, err := newTestBook(t, "A", "B").Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	path := writeTemp(t, "book.xls", content)
	var out bytes.Buffer
	if err := CountRecords(path, &out); err != nil {
		t.Fatalf("CountRecords failed: %v", err)
	}
	text := out.String()
	for _, want := range []string{"       3 BOF\n", "       3 EOF\n", "       2 BOUNDSHEET\n", "       1 SST\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary lacks %q:\n%s", want, text)
		}
	}
	if err := CountRecords(filepath.Join(t.TempDir(), "missing"), &out); err == nil {
		t.Errorf("CountRecords of a missing file returned no error")
	}
}
