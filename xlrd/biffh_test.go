package xlrd

import "testing"

func TestBiffTextFromNum(t *testing.T) {
	tests := []struct {
		num      int
		expected string
	}{
		{80, "8"},
		{45, "4W"},
		{0, "(not BIFF)"},
		{99, "Unknown(99)"},
	}
	for _, test := range tests {
		if got := BiffTextFromNum(test.num); got != test.expected {
			t.Errorf("BiffTextFromNum(%d) = %q, expected %q", test.num, got, test.expected)
		}
	}
}

func TestErrorCodeText(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrNull, "#NULL!"},
		{ErrDiv0, "#DIV/0!"},
		{ErrValue, "#VALUE!"},
		{ErrRef, "#REF!"},
		{ErrName, "#NAME?"},
		{ErrNum, "#NUM!"},
		{ErrNA, "#N/A"},
		{ErrorCode(0x55), "#ERR85!"},
	}
	for _, test := range tests {
		if got := test.code.String(); got != test.expected {
			t.Errorf("ErrorCode(0x%02x).String() = %q, expected %q", byte(test.code), got, test.expected)
		}
		if code, ok := ErrorCodeFromText[test.expected]; ok && code != test.code {
			t.Errorf("ErrorCodeFromText[%q] = %v, expected %v", test.expected, code, test.code)
		}
	}
}

func TestIsCellOpcode(t *testing.T) {
	for _, sid := range []uint16{XL_NUMBER, XL_RK, XL_LABELSST, XL_FORMULA, XL_MULBLANK} {
		if !IsCellOpcode(sid) {
			t.Errorf("IsCellOpcode(0x%04x) = false, expected true", sid)
		}
	}
	for _, sid := range []uint16{XL_BOF, XL_STRING, XL_ROW, XL_SHRFMLA} {
		if IsCellOpcode(sid) {
			t.Errorf("IsCellOpcode(0x%04x) = true, expected false", sid)
		}
	}
}

func TestRecordName(t *testing.T) {
	if got := RecordName(XL_DBCELL); got != "DBCELL" {
		t.Errorf("RecordName(XL_DBCELL) = %q, expected DBCELL", got)
	}
	if got := RecordName(0x1234); got != "UNKNOWN(0x1234)" {
		t.Errorf("RecordName(0x1234) = %q, expected UNKNOWN(0x1234)", got)
	}
}
