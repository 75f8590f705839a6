package xlrd

import "strings"

// FuncDef describes a built-in function: its BIFF index, argument count
// limits, the operand class it returns and the classes of its
// parameters. The last parameter class repeats for further arguments.
type FuncDef struct {
	Index   int
	Name    string
	MinArgs int
	MaxArgs int
	Return  OperandClass
	Params  []OperandClass
	// AddIn functions are called through tNameX and tFuncVar(255).
	AddIn bool
}

// ParamClass returns the class expected for argument i.
func (d *FuncDef) ParamClass(i int) OperandClass {
	if len(d.Params) == 0 {
		return ClassValue
	}
	if i >= len(d.Params) {
		return d.Params[len(d.Params)-1]
	}
	return d.Params[i]
}

// FixedArgs reports whether calls are encoded with tFunc.
func (d *FuncDef) FixedArgs() bool {
	return !d.AddIn && d.MinArgs == d.MaxArgs
}

// AddInIndex is the tFuncVar index for calls to add-in functions.
const AddInIndex = 255

func classes(s string) []OperandClass {
	out := make([]OperandClass, len(s))
	for i, c := range s {
		switch c {
		case 'R':
			out[i] = ClassRef
		case 'V':
			out[i] = ClassValue
		case 'A':
			out[i] = ClassArray
		}
	}
	return out
}

// funcTable: index, name, min, max, return class, parameter classes.
var funcTable = []struct {
	index    int
	name     string
	min, max int
	ret      string
	params   string
}{
	{0, "COUNT", 0, 30, "V", "R"},
	{1, "IF", 2, 3, "R", "VRR"},
	{2, "ISNA", 1, 1, "V", "V"},
	{3, "ISERROR", 1, 1, "V", "V"},
	{4, "SUM", 0, 30, "V", "R"},
	{5, "AVERAGE", 1, 30, "V", "R"},
	{6, "MIN", 1, 30, "V", "R"},
	{7, "MAX", 1, 30, "V", "R"},
	{8, "ROW", 0, 1, "V", "R"},
	{9, "COLUMN", 0, 1, "V", "R"},
	{10, "NA", 0, 0, "V", ""},
	{11, "NPV", 2, 30, "V", "VR"},
	{12, "STDEV", 1, 30, "V", "R"},
	{13, "DOLLAR", 1, 2, "V", "V"},
	{14, "FIXED", 2, 3, "V", "V"},
	{15, "SIN", 1, 1, "V", "V"},
	{16, "COS", 1, 1, "V", "V"},
	{17, "TAN", 1, 1, "V", "V"},
	{18, "ATAN", 1, 1, "V", "V"},
	{19, "PI", 0, 0, "V", ""},
	{20, "SQRT", 1, 1, "V", "V"},
	{21, "EXP", 1, 1, "V", "V"},
	{22, "LN", 1, 1, "V", "V"},
	{23, "LOG10", 1, 1, "V", "V"},
	{24, "ABS", 1, 1, "V", "V"},
	{25, "INT", 1, 1, "V", "V"},
	{26, "SIGN", 1, 1, "V", "V"},
	{27, "ROUND", 2, 2, "V", "V"},
	{28, "LOOKUP", 2, 3, "V", "VR"},
	{29, "INDEX", 2, 4, "R", "RV"},
	{30, "REPT", 2, 2, "V", "V"},
	{31, "MID", 3, 3, "V", "V"},
	{32, "LEN", 1, 1, "V", "V"},
	{33, "VALUE", 1, 1, "V", "V"},
	{34, "TRUE", 0, 0, "V", ""},
	{35, "FALSE", 0, 0, "V", ""},
	{36, "AND", 1, 30, "V", "R"},
	{37, "OR", 1, 30, "V", "R"},
	{38, "NOT", 1, 1, "V", "V"},
	{39, "MOD", 2, 2, "V", "V"},
	{46, "VAR", 1, 30, "V", "R"},
	{48, "TEXT", 2, 2, "V", "V"},
	{56, "PV", 3, 5, "V", "V"},
	{57, "FV", 3, 5, "V", "V"},
	{58, "NPER", 3, 5, "V", "V"},
	{59, "PMT", 3, 5, "V", "V"},
	{60, "RATE", 3, 6, "V", "V"},
	{62, "IRR", 1, 2, "V", "RV"},
	{63, "RAND", 0, 0, "V", ""},
	{64, "MATCH", 2, 3, "V", "VR"},
	{65, "DATE", 3, 3, "V", "V"},
	{66, "TIME", 3, 3, "V", "V"},
	{67, "DAY", 1, 1, "V", "V"},
	{68, "MONTH", 1, 1, "V", "V"},
	{69, "YEAR", 1, 1, "V", "V"},
	{70, "WEEKDAY", 1, 2, "V", "V"},
	{71, "HOUR", 1, 1, "V", "V"},
	{72, "MINUTE", 1, 1, "V", "V"},
	{73, "SECOND", 1, 1, "V", "V"},
	{74, "NOW", 0, 0, "V", ""},
	{75, "AREAS", 1, 1, "V", "R"},
	{76, "ROWS", 1, 1, "V", "R"},
	{77, "COLUMNS", 1, 1, "V", "R"},
	{78, "OFFSET", 3, 5, "R", "RV"},
	{82, "SEARCH", 2, 3, "V", "V"},
	{83, "TRANSPOSE", 1, 1, "A", "A"},
	{86, "TYPE", 1, 1, "V", "V"},
	{97, "ATAN2", 2, 2, "V", "V"},
	{98, "ASIN", 1, 1, "V", "V"},
	{99, "ACOS", 1, 1, "V", "V"},
	{100, "CHOOSE", 2, 30, "R", "VR"},
	{101, "HLOOKUP", 3, 4, "V", "VRRV"},
	{102, "VLOOKUP", 3, 4, "V", "VRRV"},
	{105, "ISREF", 1, 1, "V", "R"},
	{109, "LOG", 1, 2, "V", "V"},
	{111, "CHAR", 1, 1, "V", "V"},
	{112, "LOWER", 1, 1, "V", "V"},
	{113, "UPPER", 1, 1, "V", "V"},
	{114, "PROPER", 1, 1, "V", "V"},
	{115, "LEFT", 1, 2, "V", "V"},
	{116, "RIGHT", 1, 2, "V", "V"},
	{117, "EXACT", 2, 2, "V", "V"},
	{118, "TRIM", 1, 1, "V", "V"},
	{119, "REPLACE", 4, 4, "V", "V"},
	{120, "SUBSTITUTE", 3, 4, "V", "V"},
	{121, "CODE", 1, 1, "V", "V"},
	{124, "FIND", 2, 3, "V", "V"},
	{125, "CELL", 1, 2, "V", "VR"},
	{126, "ISERR", 1, 1, "V", "V"},
	{127, "ISTEXT", 1, 1, "V", "V"},
	{128, "ISNUMBER", 1, 1, "V", "V"},
	{129, "ISBLANK", 1, 1, "V", "V"},
	{130, "T", 1, 1, "V", "R"},
	{131, "N", 1, 1, "V", "R"},
	{140, "DATEVALUE", 1, 1, "V", "V"},
	{141, "TIMEVALUE", 1, 1, "V", "V"},
	{142, "SLN", 3, 3, "V", "V"},
	{143, "SYD", 4, 4, "V", "V"},
	{144, "DDB", 4, 5, "V", "V"},
	{148, "INDIRECT", 1, 2, "R", "V"},
	{162, "CLEAN", 1, 1, "V", "V"},
	{163, "MDETERM", 1, 1, "V", "A"},
	{164, "MINVERSE", 1, 1, "A", "A"},
	{165, "MMULT", 2, 2, "A", "A"},
	{167, "IPMT", 4, 6, "V", "V"},
	{168, "PPMT", 4, 6, "V", "V"},
	{169, "COUNTA", 0, 30, "V", "R"},
	{183, "PRODUCT", 0, 30, "V", "R"},
	{184, "FACT", 1, 1, "V", "V"},
	{190, "ISNONTEXT", 1, 1, "V", "V"},
	{193, "STDEVP", 1, 30, "V", "R"},
	{194, "VARP", 1, 30, "V", "R"},
	{197, "TRUNC", 1, 2, "V", "V"},
	{198, "ISLOGICAL", 1, 1, "V", "V"},
	{212, "ROUNDUP", 2, 2, "V", "V"},
	{213, "ROUNDDOWN", 2, 2, "V", "V"},
	{216, "RANK", 2, 3, "V", "VRV"},
	{219, "ADDRESS", 2, 5, "V", "V"},
	{220, "DAYS360", 2, 3, "V", "V"},
	{221, "TODAY", 0, 0, "V", ""},
	{227, "MEDIAN", 1, 30, "V", "R"},
	{228, "SUMPRODUCT", 1, 30, "V", "A"},
	{229, "SINH", 1, 1, "V", "V"},
	{230, "COSH", 1, 1, "V", "V"},
	{231, "TANH", 1, 1, "V", "V"},
	{232, "ASINH", 1, 1, "V", "V"},
	{233, "ACOSH", 1, 1, "V", "V"},
	{234, "ATANH", 1, 1, "V", "V"},
	{261, "ERROR.TYPE", 1, 1, "V", "V"},
	{269, "AVEDEV", 1, 30, "V", "R"},
	{276, "COMBIN", 2, 2, "V", "V"},
	{279, "EVEN", 1, 1, "V", "V"},
	{285, "FLOOR", 2, 2, "V", "V"},
	{288, "CEILING", 2, 2, "V", "V"},
	{298, "ODD", 1, 1, "V", "V"},
	{299, "PERMUT", 2, 2, "V", "V"},
	{303, "SUMXMY2", 2, 2, "V", "A"},
	{304, "SUMX2MY2", 2, 2, "V", "A"},
	{305, "SUMX2PY2", 2, 2, "V", "A"},
	{318, "DEVSQ", 1, 30, "V", "R"},
	{319, "GEOMEAN", 1, 30, "V", "R"},
	{320, "HARMEAN", 1, 30, "V", "R"},
	{321, "SUMSQ", 0, 30, "V", "R"},
	{325, "LARGE", 2, 2, "V", "RV"},
	{326, "SMALL", 2, 2, "V", "RV"},
	{330, "MODE", 1, 30, "V", "A"},
	{336, "CONCATENATE", 0, 30, "V", "V"},
	{337, "POWER", 2, 2, "V", "V"},
	{342, "RADIANS", 1, 1, "V", "V"},
	{343, "DEGREES", 1, 1, "V", "V"},
	{344, "SUBTOTAL", 2, 30, "V", "VR"},
	{345, "SUMIF", 2, 3, "V", "RVR"},
	{346, "COUNTIF", 2, 2, "V", "RV"},
	{347, "COUNTBLANK", 1, 1, "V", "R"},
	{354, "ROMAN", 1, 2, "V", "V"},
	{359, "HYPERLINK", 1, 2, "V", "V"},
	{361, "AVERAGEA", 1, 30, "V", "R"},
	{362, "MAXA", 1, 30, "V", "R"},
	{363, "MINA", 1, 30, "V", "R"},
	{364, "STDEVPA", 1, 30, "V", "R"},
	{365, "VARPA", 1, 30, "V", "R"},
	{366, "STDEVA", 1, 30, "V", "R"},
	{367, "VARA", 1, 30, "V", "R"},
}

// addInTable lists the add-in functions the parser can encode.
var addInTable = []struct {
	name     string
	min, max int
	params   string
}{
	{"IFERROR", 2, 2, "V"},
	{"SUMIFS", 3, 29, "RRV"},
	{"COUNTIFS", 2, 30, "RV"},
	{"AVERAGEIF", 2, 3, "RVR"},
	{"AVERAGEIFS", 3, 29, "RRV"},
	{"EDATE", 2, 2, "V"},
	{"EOMONTH", 2, 2, "V"},
}

var (
	funcByIndex = map[int]*FuncDef{}
	funcByName  = map[string]*FuncDef{}
)

func init() {
	for _, f := range funcTable {
		d := &FuncDef{
			Index:   f.index,
			Name:    f.name,
			MinArgs: f.min,
			MaxArgs: f.max,
			Return:  classes(f.ret)[0],
			Params:  classes(f.params),
		}
		funcByIndex[d.Index] = d
		funcByName[d.Name] = d
	}
	for _, f := range addInTable {
		funcByName[f.name] = &FuncDef{
			Index:   AddInIndex,
			Name:    f.name,
			MinArgs: f.min,
			MaxArgs: f.max,
			Return:  ClassValue,
			Params:  classes(f.params),
			AddIn:   true,
		}
	}
}

// FuncByIndex returns the built-in function with the given BIFF index.
func FuncByIndex(index int) (*FuncDef, bool) {
	d, ok := funcByIndex[index]
	return d, ok
}

// FuncByName looks a function up by name, ignoring case.
func FuncByName(name string) (*FuncDef, bool) {
	d, ok := funcByName[strings.ToUpper(name)]
	return d, ok
}
