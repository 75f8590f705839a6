package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

// writeSample saves a two sheet workbook:
//
//	Data:  name  qty  total         Notes: hello  TRUE  #DIV/0!  café
//	       apple   2  =B2*3
//	       pear, green 4  =B3*3
//	                  =SUM(C2:C3)
//	       merged (A6:B6)
func writeSample(t *testing.T, dir string) string {
	t.Helper()
	bk := xlrd.NewBook()
	data, err := bk.AddSheet("Data")
	if err != nil {
		t.Fatalf("AddSheet failed: %v", err)
	}
	notes, err := bk.AddSheet("Notes")
	if err != nil {
		t.Fatalf("AddSheet failed: %v", err)
	}
	values := []struct {
		sh       *xlrd.Sheet
		row, col int
		v        interface{}
	}{
		{data, 0, 0, "name"}, {data, 0, 1, "qty"}, {data, 0, 2, "total"},
		{data, 1, 0, "apple"}, {data, 1, 1, 2.0},
		{data, 2, 0, "pear, green"}, {data, 2, 1, 4.0},
		{data, 5, 0, "merged"},
		{notes, 0, 0, "hello"}, {notes, 0, 1, true}, {notes, 0, 2, xlrd.ErrDiv0}, {notes, 0, 3, "café"},
	}
	for _, v := range values {
		if err := v.sh.SetValue(v.row, v.col, v.v); err != nil {
			t.Fatalf("SetValue(%d, %d) failed: %v", v.row, v.col, err)
		}
	}
	formulas := []struct {
		row, col int
		text     string
	}{
		{1, 2, "B2*3"},
		{2, 2, "B3*3"},
		{3, 2, "SUM(C2:C3)"},
	}
	for _, f := range formulas {
		if err := data.SetFormula(f.row, f.col, f.text); err != nil {
			t.Fatalf("SetFormula(%q) failed: %v", f.text, err)
		}
	}
	if err := data.AddMergedRegion(xlrd.CellRange{FirstRow: 5, LastRow: 5, FirstCol: 0, LastCol: 1}); err != nil {
		t.Fatalf("AddMergedRegion failed: %v", err)
	}
	path := filepath.Join(dir, "sample.xls")
	if err := bk.Save(path, false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return path
}

func TestRunRecalc(t *testing.T) {
	path := writeSample(t, t.TempDir())
	out, errOut, code := runCLI([]string{"--recalc", "-l", `\n`, path})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	expected := "name,qty,total\n" +
		"apple,2,6\n" +
		"\"pear, green\",4,12\n" +
		",,18\n" +
		",,\n" +
		"merged,,\n"
	if out != expected {
		t.Errorf("output = %q, expected %q", out, expected)
	}
}

func TestRunFormulas(t *testing.T) {
	path := writeSample(t, t.TempDir())
	out, errOut, code := runCLI([]string{"--formulas", "-i", "-l", `\n`, path})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	lines := strings.Split(out, "\n")
	if len(lines) < 4 {
		t.Fatalf("output = %q, expected at least 4 lines", out)
	}
	if lines[1] != "apple,2,=B2*3" {
		t.Errorf("line 2 = %q, expected %q", lines[1], "apple,2,=B2*3")
	}
	if lines[3] != ",,=SUM(C2:C3)" {
		t.Errorf("line 4 = %q, expected %q", lines[3], ",,=SUM(C2:C3)")
	}
}

func TestRunRecalcConflictsWithFormulas(t *testing.T) {
	_, _, code := runCLI([]string{"--recalc", "--formulas", "whatever.xls"})
	if code != 2 {
		t.Errorf("exit code = %d, expected 2", code)
	}
}

func TestRunSheetSelection(t *testing.T) {
	path := writeSample(t, t.TempDir())
	tests := []struct {
		args     []string
		expected string
	}{
		{[]string{"-n", "Notes"}, "hello,TRUE,#DIV/0!,café\n"},
		{[]string{"-s", "2"}, "hello,TRUE,#DIV/0!,café\n"},
		{[]string{"-n", "Notes", "-q", "all"}, "\"hello\",\"TRUE\",\"#DIV/0!\",\"café\"\n"},
		{[]string{"-n", "Notes", "-d", "tab"}, "hello\tTRUE\t#DIV/0!\tcafé\n"},
		{[]string{"-a", "-I", "^No"}, "hello,TRUE,#DIV/0!,café\n"},
	}
	for _, test := range tests {
		args := append(append([]string{"-l", `\n`}, test.args...), path)
		out, errOut, code := runCLI(args)
		if code != 0 {
			t.Errorf("%v: exit code %d, stderr: %s", test.args, code, errOut)
			continue
		}
		if out != test.expected {
			t.Errorf("%v: output = %q, expected %q", test.args, out, test.expected)
		}
	}
}

func TestRunAllSheets(t *testing.T) {
	path := writeSample(t, t.TempDir())
	out, errOut, code := runCLI([]string{"-a", "-r", "-i", "-p", "===", "-l", `\n`, path})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if !strings.Contains(out, "merged,,\n===\nhello,TRUE,#DIV/0!,café\n") {
		t.Errorf("output = %q, expected the sheets separated by ===", out)
	}
}

func TestRunBadSheet(t *testing.T) {
	path := writeSample(t, t.TempDir())
	for _, args := range [][]string{{"-s", "5", path}, {"-n", "Missing", path}} {
		if _, _, code := runCLI(args); code != 1 {
			t.Errorf("%v: exit code = %d, expected 1", args, code)
		}
	}
}

func TestRunMergeCells(t *testing.T) {
	path := writeSample(t, t.TempDir())
	out, errOut, code := runCLI([]string{"-m", "-i", "-l", `\n`, path})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if !strings.HasSuffix(out, "merged,merged,\n") {
		t.Errorf("output = %q, expected the merged region filled", out)
	}
}

func TestRunOutputEncoding(t *testing.T) {
	path := writeSample(t, t.TempDir())
	out, errOut, code := runCLI([]string{"-c", "windows-1252", "-n", "Notes", "-l", `\n`, path})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	expected := "hello,TRUE,#DIV/0!,caf\xe9\n"
	if out != expected {
		t.Errorf("output = %q, expected %q", out, expected)
	}

	if _, _, code := runCLI([]string{"-c", "klingon", path}); code != 2 {
		t.Errorf("unknown encoding: exit code = %d, expected 2", code)
	}
}

func TestRunStdin(t *testing.T) {
	path := writeSample(t, t.TempDir())
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	code := run([]string{"-n", "Notes", "-l", `\n`, "-"}, bytes.NewReader(content), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "hello,") {
		t.Errorf("output = %q, expected the Notes sheet", stdout.String())
	}
}

func TestRunOutputFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSample(t, dir)
	target := filepath.Join(dir, "out.csv")
	if _, errOut, code := runCLI([]string{"-n", "Notes", "-l", `\n`, path, target}); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello,TRUE,#DIV/0!,café\n" {
		t.Errorf("out.csv = %q", got)
	}
}

func TestRunDirectory(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeSample(t, in)
	if err := os.WriteFile(filepath.Join(in, "readme.txt"), []byte("not a workbook"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, errOut, code := runCLI([]string{"-r", in, out}); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if _, err := os.Stat(filepath.Join(out, "sample.csv")); err != nil {
		t.Errorf("sample.csv was not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "readme.csv")); err == nil {
		t.Errorf("readme.txt was converted")
	}
}

func TestRunCountRecords(t *testing.T) {
	path := writeSample(t, t.TempDir())
	out, errOut, code := runCLI([]string{"--count-records", path})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	for _, name := range []string{" BOF\n", " FORMULA\n", " SST\n", " MERGEDCELLS\n"} {
		if !strings.Contains(out, name) {
			t.Errorf("record counts lack %q:\n%s", name, out)
		}
	}
}

func TestRunDump(t *testing.T) {
	path := writeSample(t, t.TempDir())
	out, errOut, code := runCLI([]string{"--dump", "--unnumbered", path})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if !strings.HasPrefix(out, "0809 BOF") {
		t.Errorf("dump starts with %q, expected the BOF record", firstLine(out))
	}
	if _, _, code := runCLI([]string{"--dump", "-"}); code != 2 {
		t.Errorf("dump of stdin: exit code = %d, expected 2", code)
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		value    string
		expected rune
	}{
		{",", ','},
		{"tab", '\t'},
		{"x09", '\t'},
		{"x3b", ';'},
		{"|", '|'},
		{"é", 'é'},
	}
	for _, test := range tests {
		r, err := parseDelimiter(test.value)
		if err != nil || r != test.expected {
			t.Errorf("parseDelimiter(%q) = %q, %v, expected %q", test.value, r, err, test.expected)
		}
	}
	if _, err := parseDelimiter(""); err == nil {
		t.Errorf("parseDelimiter(\"\") succeeded, expected an error")
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		name string
		utf8 bool
		ok   bool
	}{
		{"utf-8", true, true},
		{"UTF8", true, true},
		{"unicode-1-1-utf-8", true, true},
		{"windows-1252", false, true},
		{"shift_jis", false, true},
		{"klingon", false, false},
	}
	for _, test := range tests {
		enc, err := parseEncoding(test.name)
		if (err == nil) != test.ok {
			t.Errorf("parseEncoding(%q) error = %v, expected ok %v", test.name, err, test.ok)
			continue
		}
		if test.ok && (enc == nil) != test.utf8 {
			t.Errorf("parseEncoding(%q) = %v, expected UTF-8 %v", test.name, enc, test.utf8)
		}
	}
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		value    float64
		datemode int
		format   string
		expected string
	}{
		{39448, 0, "", "2008-01-01"},
		{39448.5, 0, "", "2008-01-01 12:00:00"},
		{0.25, 0, "", "06:00:00"},
		{37986, 1, "", "2008-01-01"},
		{39448, 0, "%d/%m/%y %a", "01/01/08 Tue"},
	}
	for _, test := range tests {
		got, ok := formatDate(test.value, test.datemode, test.format)
		if !ok || got != test.expected {
			t.Errorf("formatDate(%v, %d, %q) = %q, %v, expected %q", test.value, test.datemode, test.format, got, ok, test.expected)
		}
	}
	for _, value := range []float64{-1, 30, 3e6} {
		if got, ok := formatDate(value, 0, ""); ok {
			t.Errorf("formatDate(%v, 0, \"\") = %q, expected no date", value, got)
		}
	}
}

func TestStrftime(t *testing.T) {
	tm := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC)
	if got := strftime(tm, "%Y-%m-%d %H:%M:%S %B %% %q"); got != "2024-03-05 07:08:09 March % %q" {
		t.Errorf("strftime = %q", got)
	}
}

func runCLI(args []string) (string, string, int) {
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(""), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func firstLine(output string) string {
	if idx := strings.IndexByte(output, '\n'); idx >= 0 {
		return output[:idx]
	}
	return output
}
