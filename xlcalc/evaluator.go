// Package xlcalc evaluates the formulas of workbooks read or built with
// package xlrd.
//
// Results are cached. The evaluator listens for changes made through
// xlrd.Sheet and drops the cached results that depend on the changed
// cell, so a formula is only computed again when something it read has
// changed or it calls a volatile function such as NOW.
package xlcalc

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

// Clock supplies the current time to NOW and TODAY.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RandomGenerator supplies RAND.
type RandomGenerator interface {
	Float64() float64
}

// Options contains options for creating an Evaluator.
type Options struct {
	// Logfile receives warnings and, with a positive Verbosity, a trace
	// of the evaluation. Nil discards them.
	Logfile io.Writer

	// Verbosity increases the volume of trace material written to the logfile.
	Verbosity int

	// Listener is told about cache activity. Nil means no listener.
	Listener Listener

	// IgnoreMissingWorkbooks makes formulas that refer to a workbook
	// outside the environment keep their cached result instead of
	// evaluating to #REF!.
	IgnoreMissingWorkbooks bool

	// Clock is used by NOW and TODAY. Nil uses the system clock.
	Clock Clock

	// Rand is used by RAND. Nil uses math/rand/v2.
	Rand RandomGenerator
}

// Evaluator computes the formulas of one workbook.
type Evaluator struct {
	book          *xlrd.Book
	logfile       io.Writer
	verbosity     int
	listener      Listener
	ignoreMissing bool
	clock         Clock
	rand          RandomGenerator

	cache *evalCache
	env   map[string]*Evaluator
}

// New returns an evaluator for bk and registers it for bk's cell change
// notifications.
func New(bk *xlrd.Book, options *Options) *Evaluator {
	if options == nil {
		options = &Options{}
	}
	ev := &Evaluator{
		book:          bk,
		logfile:       options.Logfile,
		verbosity:     options.Verbosity,
		listener:      options.Listener,
		ignoreMissing: options.IgnoreMissingWorkbooks,
		clock:         options.Clock,
		rand:          options.Rand,
		cache:         newEvalCache(),
	}
	if ev.logfile == nil {
		ev.logfile = io.Discard
	}
	if ev.listener == nil {
		ev.listener = NopListener{}
	}
	if ev.clock == nil {
		ev.clock = systemClock{}
	}
	if ev.rand == nil {
		ev.rand = defaultRand{}
	}
	bk.AddCellListener(ev)
	return ev
}

// Book returns the workbook being evaluated.
func (ev *Evaluator) Book() *xlrd.Book { return ev.book }

// Close stops listening for changes of the workbook.
func (ev *Evaluator) Close() {
	ev.book.RemoveCellListener(ev)
}

func (ev *Evaluator) logf(level int, format string, args ...interface{}) {
	if ev.verbosity >= level {
		fmt.Fprintf(ev.logfile, format, args...)
	}
}

// SetupEnvironment lets the evaluators resolve references into each
// other's workbooks. books maps the workbook names used in external
// references to the evaluators of those workbooks. The evaluators share
// one cache from then on; results cached before are dropped.
func SetupEnvironment(books map[string]*Evaluator) {
	cache := newEvalCache()
	env := make(map[string]*Evaluator, len(books))
	for name, ev := range books {
		env[strings.ToLower(name)] = ev
	}
	for _, ev := range books {
		ev.cache = cache
		ev.env = env
		ev.listener.OnClearWholeCache()
	}
}

// lookupBook finds the evaluator of an external workbook. name is the
// book part of a reference or a SUPBOOK path; a path also matches by
// its file name.
func (ev *Evaluator) lookupBook(name string) *Evaluator {
	if ev.env == nil {
		return nil
	}
	if other := ev.env[strings.ToLower(name)]; other != nil {
		return other
	}
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if other := ev.env[strings.ToLower(base)]; other != nil {
		return other
	}
	for key, other := range ev.env {
		if strings.EqualFold(strings.TrimSuffix(key, filepath.Ext(key)), strings.TrimSuffix(base, filepath.Ext(base))) {
			return other
		}
	}
	return nil
}

func (ev *Evaluator) sheet(sheetx int) (*xlrd.Sheet, error) {
	return ev.book.SheetByIndex(sheetx)
}

func (ev *Evaluator) cellName(sheetx, rowx, colx int) string {
	names := ev.book.SheetNames()
	if sheetx < 0 || sheetx >= len(names) {
		return xlrd.CellName(rowx, colx)
	}
	return xlrd.QuotedSheetName(names[sheetx]) + "!" + xlrd.CellName(rowx, colx)
}

// CellChanged implements xlrd.CellListener.
func (ev *Evaluator) CellChanged(sh *xlrd.Sheet, rowx, colx int) {
	ev.NotifyUpdateCell(sh.Number, rowx, colx)
}

// NotifyUpdateCell drops the cached value of a cell and every result
// that depends on it. Changes made through xlrd.Sheet are reported
// automatically.
func (ev *Evaluator) NotifyUpdateCell(sheetx, rowx, colx int) {
	ev.logf(2, "cell %s changed\n", ev.cellName(sheetx, rowx, colx))
	ev.cache.update(cellKey{ev: ev, sheet: sheetx, row: rowx, col: colx})
}

// ClearAllCachedResultValues empties the cache, for use after changes
// that were not reported.
func (ev *Evaluator) ClearAllCachedResultValues() {
	ev.cache.clear()
	ev.listener.OnClearWholeCache()
}

// Evaluate returns the value of a cell, computing its formula if it has
// one. Empty cells are Blank. The error is only set when the sheet
// cannot be loaded; problems in formulas come back as ErrorValue.
func (ev *Evaluator) Evaluate(sheetx, rowx, colx int) (Value, error) {
	if _, err := ev.sheet(sheetx); err != nil {
		return nil, err
	}
	ev.cache.begin()
	return ev.cellValue(sheetx, rowx, colx), nil
}

// EvaluateFormula computes formula text as if it were in the given cell,
// without storing it. The result may be a *Reference or an *ArrayValue.
func (ev *Evaluator) EvaluateFormula(formula string, sheetx, rowx, colx int) (Value, error) {
	if _, err := ev.sheet(sheetx); err != nil {
		return nil, err
	}
	toks, err := ev.book.ParseFormula(formula, sheetx, xlrd.FMLA_TYPE_CELL)
	if err != nil {
		return nil, err
	}
	ev.cache.begin()
	sc := &scope{ev: ev, sheet: sheetx, row: rowx, col: colx}
	v, err := ev.evalTokens(sc, toks)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// EvaluateFormulaCell computes the formula of a cell and stores the
// result as the cell's cached value. It returns the XL_CELL_* type of
// the result. Cells without a formula are left alone and their type is
// returned.
func (ev *Evaluator) EvaluateFormulaCell(sheetx, rowx, colx int) (int, error) {
	sh, err := ev.sheet(sheetx)
	if err != nil {
		return xlrd.XL_CELL_EMPTY, err
	}
	ev.cache.begin()
	return ev.storeResult(sh, rowx, colx), nil
}

func (ev *Evaluator) storeResult(sh *xlrd.Sheet, rowx, colx int) int {
	f := sh.FormulaCell(rowx, colx)
	if f == nil {
		return sh.CellType(rowx, colx)
	}
	v := ev.cellValue(sh.Number, rowx, colx)
	switch x := v.(type) {
	case float64:
		f.SetCachedNumber(x)
	case string:
		f.SetCachedText(x)
	case bool:
		f.SetCachedBool(x)
	case ErrorValue:
		code := x.Code
		if code == ErrCircularRef {
			code = xlrd.ErrRef
		}
		f.SetCachedError(code)
	default:
		f.SetCachedNumber(0)
	}
	return f.CachedType()
}

// EvaluateAll stores fresh results in every formula cell of the
// workbook.
func (ev *Evaluator) EvaluateAll() error {
	ev.cache.begin()
	for i := 0; i < ev.book.NSheets; i++ {
		sh, err := ev.sheet(i)
		if err != nil {
			return err
		}
		var cells [][2]int
		sh.Positions(func(rowx, colx int) {
			if sh.FormulaCell(rowx, colx) != nil {
				cells = append(cells, [2]int{rowx, colx})
			}
		})
		for _, c := range cells {
			ev.storeResult(sh, c[0], c[1])
		}
	}
	return nil
}

// cellValue returns the value of a cell and records that the formula
// being evaluated, if any, read it.
func (ev *Evaluator) cellValue(sheetx, rowx, colx int) Value {
	k := cellKey{ev: ev, sheet: sheetx, row: rowx, col: colx}
	v := ev.evaluateCell(k)
	ev.cache.dependsOn(k)
	return v
}

func (ev *Evaluator) evaluateCell(k cellKey) Value {
	c := ev.cache
	sh, err := ev.sheet(k.sheet)
	if err != nil {
		return errRef
	}
	cell := sh.Cell(k.row, k.col)
	if cell.Formula == nil {
		if e := c.entries[k]; e != nil && !e.formula {
			ev.listener.OnReadPlainValue(k.sheet, k.row, k.col, e.value)
			return e.value
		}
		v := plainValue(cell)
		c.plain(k, v)
		ev.listener.OnReadPlainValue(k.sheet, k.row, k.col, v)
		return v
	}

	e := c.formulaEntry(k)
	if e.inProgress {
		ev.logf(0, "*** WARNING: circular reference at %s\n", ev.cellName(k.sheet, k.row, k.col))
		return errCircular
	}
	if c.isClean(e) {
		ev.listener.OnCacheHit(k.sheet, k.row, k.col, e.value)
		return e.value
	}
	ev.listener.OnStartEvaluate(k.sheet, k.row, k.col)
	ev.logf(1, "evaluating %s\n", ev.cellName(k.sheet, k.row, k.col))
	if e.inputs != nil || e.areas != nil {
		c.unlinkInputs(k, e)
	}
	e.inProgress = true
	f := &frame{key: k}
	c.stack = append(c.stack, f)
	v := ev.evaluateFormula(k, cell.Formula)
	c.stack = c.stack[:len(c.stack)-1]
	e.inProgress = false
	e.value = v
	e.clean = true
	e.volatile = f.volatile
	e.generation = c.generation
	if top := c.top(); top != nil && f.volatile {
		top.volatile = true
	}
	ev.listener.OnEndEvaluate(k.sheet, k.row, k.col, v)
	ev.logf(1, "%s = %v\n", ev.cellName(k.sheet, k.row, k.col), v)
	return v
}

// errMissingWorkbook stops the evaluation of a formula that refers to a
// workbook outside the environment.
type errMissingWorkbook struct {
	book string
}

func (e *errMissingWorkbook) Error() string {
	return fmt.Sprintf("workbook %q is not part of the environment", e.book)
}

// evaluateFormula runs the formula of cell k and reduces the result to a
// single cell value.
func (ev *Evaluator) evaluateFormula(k cellKey, f *xlrd.FormulaRecordAggregate) Value {
	toks := f.Tokens()
	if len(toks) > 0 {
		if _, ok := toks[0].(*xlrd.ExpPtg); ok {
			return fromCellValue(f.CachedValue())
		}
	}
	sc := &scope{ev: ev, sheet: k.sheet, row: k.row, col: k.col}
	group := f.ArrayGroup()
	if group != nil {
		sc.array = true
	}
	v, err := ev.evalTokens(sc, toks)
	if err != nil {
		var missing *errMissingWorkbook
		if errors.As(err, &missing) && ev.ignoreMissing {
			ev.logf(1, "%s: %v; keeping the cached result\n", ev.cellName(k.sheet, k.row, k.col), err)
			return fromCellValue(f.CachedValue())
		}
		ev.logf(0, "*** WARNING: %s: %v\n", ev.cellName(k.sheet, k.row, k.col), err)
		if missing != nil {
			return errRef
		}
		return errValue
	}
	if group != nil {
		r := group.Range()
		return sc.element(v, k.row-r.FirstRow, k.col-r.FirstCol)
	}
	return sc.result(v)
}
