package xlcalc

import (
	"sort"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

// scope is the cell a formula is evaluated for.
type scope struct {
	ev       *Evaluator
	sheet    int
	row, col int
	array    bool
}

// maxNameDepth bounds the nesting of defined names, which may refer to
// each other.
const maxNameDepth = 64

// addInName is the tNameX operand naming the function of a following
// tFuncVar(255).
type addInName struct {
	name string
}

// evalTokens runs a token stream on a value stack. tAttr jumps are
// followed the way Excel does, so the branch of IF or CHOOSE that is not
// taken is never evaluated.
func (ev *Evaluator) evalTokens(sc *scope, toks []xlrd.Ptg) (Value, error) {
	offs := make([]int, len(toks)+1)
	for i := range toks {
		offs[i+1] = offs[i] + xlrd.TokensSize(toks[i:i+1])
	}
	// tokenAt maps a byte offset to a token index.
	tokenAt := func(off int) (int, error) {
		j := sort.SearchInts(offs, off)
		if j >= len(offs) || offs[j] != off {
			return 0, xlrd.NewFormulaError("jump to offset %d is not at a token boundary", off)
		}
		return j, nil
	}

	var stack []Value
	push := func(v Value) { stack = append(stack, v) }
	pop := func() (Value, error) {
		if len(stack) == 0 {
			return nil, xlrd.NewFormulaError("operand stack underflow")
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}
	popN := func(n int) ([]Value, error) {
		if n > len(stack) {
			return nil, xlrd.NewFormulaError("function needs %d operands, stack has %d", n, len(stack))
		}
		args := make([]Value, n)
		copy(args, stack[len(stack)-n:])
		stack = stack[:len(stack)-n]
		return args, nil
	}

	for i := 0; i < len(toks); i++ {
		switch t := toks[i].(type) {
		case *xlrd.AttrPtg:
			switch {
			case t.Is(xlrd.AttrSum):
				v, err := pop()
				if err != nil {
					return nil, err
				}
				push(fnSum(sc, []Value{v}))
			case t.Is(xlrd.AttrIf):
				v, err := pop()
				if err != nil {
					return nil, err
				}
				falseAt, err := tokenAt(offs[i+1] + int(t.Data))
				if err != nil {
					return nil, err
				}
				cond, e := sc.boolean(v)
				if e != nil {
					// skip both branches and the IF call
					skip, ok := toks[falseAt-1].(*xlrd.AttrPtg)
					if !ok || !skip.Is(xlrd.AttrSkip) {
						return nil, xlrd.NewFormulaError("tAttrIf without a tAttrSkip at the end of its true branch")
					}
					j, err := tokenAt(offs[falseAt] + int(skip.Data) + 1)
					if err != nil {
						return nil, err
					}
					push(e)
					i = j - 1
					continue
				}
				if cond {
					continue
				}
				if falseAt < len(toks) && isIfCall(toks[falseAt]) {
					push(false)
					i = falseAt
					continue
				}
				i = falseAt - 1
			case t.Is(xlrd.AttrChoose):
				v, err := pop()
				if err != nil {
					return nil, err
				}
				n := len(t.Jumps) - 1
				if n < 0 {
					return nil, xlrd.NewFormulaError("tAttrChoose without a jump table")
				}
				base := offs[i] + 4
				target := base + int(t.Jumps[n]) + 4
				k, e := sc.integer(v)
				switch {
				case e != nil:
					push(e)
				case k < 1 || k > n:
					push(errValue)
				default:
					target = base + int(t.Jumps[k-1])
				}
				j, err := tokenAt(target)
				if err != nil {
					return nil, err
				}
				i = j - 1
			case t.Is(xlrd.AttrSkip):
				j, err := tokenAt(offs[i+1] + int(t.Data) + 1)
				if err != nil {
					return nil, err
				}
				if n := len(stack); n > 0 {
					if _, ok := stack[n-1].(missingArg); ok {
						stack[n-1] = Blank
					}
				}
				i = j - 1
			}

		case *xlrd.OpPtg:
			switch t.Op {
			case xlrd.OpParen:
			case xlrd.OpMissArg:
				push(missing)
			case xlrd.OpUplus, xlrd.OpUminus, xlrd.OpPercent:
				v, err := pop()
				if err != nil {
					return nil, err
				}
				push(sc.unary(t.Op, v))
			default:
				b, err := pop()
				if err != nil {
					return nil, err
				}
				a, err := pop()
				if err != nil {
					return nil, err
				}
				push(sc.binary(t.Op, a, b))
			}

		case *xlrd.StrPtg:
			push(t.Value)
		case *xlrd.NumPtg:
			push(t.Value)
		case *xlrd.IntPtg:
			push(float64(t.Value))
		case *xlrd.BoolPtg:
			push(t.Value)
		case *xlrd.ErrPtg:
			push(ErrorValue{t.Code})
		case *xlrd.ArrayPtg:
			push(arrayFromPtg(t))

		case *xlrd.RefPtg:
			push(sc.classed(t, newCellRef(ev, sc.sheet, t.Row, t.Col)))
		case *xlrd.RefNPtg:
			r, c := sc.offset(t.CellRef)
			push(sc.classed(t, newCellRef(ev, sc.sheet, r, c)))
		case *xlrd.AreaPtg:
			push(sc.classed(t, newAreaRef(ev, sc.sheet, areaRange(t.AreaRef))))
		case *xlrd.AreaNPtg:
			r1, c1 := sc.offset(t.First)
			r2, c2 := sc.offset(t.Last)
			push(sc.classed(t, newAreaRef(ev, sc.sheet, xlrd.CellRange{FirstRow: r1, LastRow: r2, FirstCol: c1, LastCol: c2})))
		case *xlrd.Ref3dPtg:
			a := xlrd.CellRange{FirstRow: t.Row, LastRow: t.Row, FirstCol: t.Col, LastCol: t.Col}
			v, err := ev.ref3d(t.Ixti, a)
			if err != nil {
				return nil, err
			}
			push(sc.classed(t, v))
		case *xlrd.Area3dPtg:
			v, err := ev.ref3d(t.Ixti, areaRange(t.AreaRef))
			if err != nil {
				return nil, err
			}
			push(sc.classed(t, v))
		case *xlrd.RefErrPtg, *xlrd.AreaErrPtg, *xlrd.RefErr3dPtg, *xlrd.AreaErr3dPtg:
			push(errRef)
		case *xlrd.MemPtg:
			// the sub-expression that follows computes the operand

		case *xlrd.NamePtg:
			push(sc.classed(t, ev.name(sc, t.Index)))
		case *xlrd.NameXPtg:
			v, err := ev.externName(sc, t.Ixti, t.Index)
			if err != nil {
				return nil, err
			}
			push(v)

		case *xlrd.FuncPtg:
			def, ok := xlrd.FuncByIndex(t.Index)
			if !ok {
				return nil, xlrd.NewFormulaError("unknown function index %d", t.Index)
			}
			args, err := popN(def.MinArgs)
			if err != nil {
				return nil, err
			}
			push(sc.classed(t, sc.call(def.Name, args)))
		case *xlrd.FuncVarPtg:
			args, err := popN(t.Argc)
			if err != nil {
				return nil, err
			}
			var name string
			if t.Index == xlrd.AddInIndex {
				if len(args) == 0 {
					return nil, xlrd.NewFormulaError("add-in call without a function name")
				}
				fn, ok := args[0].(addInName)
				if !ok {
					push(errName)
					continue
				}
				name, args = fn.name, args[1:]
			} else {
				def, ok := xlrd.FuncByIndex(t.Index)
				if !ok {
					return nil, xlrd.NewFormulaError("unknown function index %d", t.Index)
				}
				name = def.Name
			}
			push(sc.classed(t, sc.call(name, args)))

		case *xlrd.ExpPtg:
			return nil, xlrd.NewFormulaError("unexpected tExp inside a formula")
		default:
			return nil, xlrd.NewFormulaError("cannot evaluate token %T", t)
		}
	}
	if len(stack) != 1 {
		return nil, xlrd.NewFormulaError("formula leaves %d values on the stack", len(stack))
	}
	return stack[0], nil
}

func isIfCall(p xlrd.Ptg) bool {
	f, ok := p.(*xlrd.FuncVarPtg)
	return ok && f.Index == 1
}

func areaRange(a xlrd.AreaRef) xlrd.CellRange {
	return normalize(xlrd.CellRange{FirstRow: a.First.Row, LastRow: a.Last.Row, FirstCol: a.First.Col, LastCol: a.Last.Col})
}

// offset resolves a tRefN corner against the formula cell.
func (sc *scope) offset(r xlrd.CellRef) (int, int) {
	row, col := r.Row, r.Col
	if r.RowRel {
		row = (sc.row + row) & 0xFFFF
	}
	if r.ColRel {
		col = (sc.col + col) & 0xFF
	}
	return row, col
}

// classed turns a reference that is needed as an array into one.
func (sc *scope) classed(p xlrd.Ptg, v Value) Value {
	cp, ok := p.(xlrd.ClassedPtg)
	if !ok || cp.Class() != xlrd.ClassArray {
		return v
	}
	if r, ok := v.(*Reference); ok {
		return r.materialize()
	}
	return v
}

// ref3d resolves a reference through the EXTERNSHEET table.
func (ev *Evaluator) ref3d(ixti int, a xlrd.CellRange) (Value, error) {
	es, err := ev.book.Links().Resolve(ixti)
	if err != nil {
		return nil, err
	}
	switch {
	case es.AddIn:
		return errRef, nil
	case es.Internal:
		if es.First < 0 || es.Last < 0 || es.Last >= ev.book.NSheets {
			return errRef, nil
		}
		return &Reference{ev: ev, FirstSheet: min(es.First, es.Last), LastSheet: max(es.First, es.Last), Areas: []xlrd.CellRange{a}}, nil
	}
	other := ev.lookupBook(es.Book)
	if other == nil {
		return nil, &errMissingWorkbook{book: es.Book}
	}
	first := other.book.SheetIndex(es.FirstName)
	last := first
	if es.LastName != "" {
		last = other.book.SheetIndex(es.LastName)
	}
	if first < 0 || last < 0 {
		return errRef, nil
	}
	return &Reference{ev: other, FirstSheet: min(first, last), LastSheet: max(first, last), Areas: []xlrd.CellRange{a}}, nil
}

// name evaluates a defined name given by its 1-based index.
func (ev *Evaluator) name(sc *scope, index int) Value {
	if index < 1 || index > len(ev.book.NameObjList) {
		return errName
	}
	return ev.evalName(sc, ev.book.NameObjList[index-1])
}

func (ev *Evaluator) evalName(sc *scope, n *xlrd.Name) Value {
	if n.Func || n.Macro || len(n.Tokens) == 0 {
		ev.logf(0, "*** WARNING: name %q cannot be evaluated\n", n.Name)
		return errName
	}
	c := ev.cache
	if c.nameDepth >= maxNameDepth {
		return errCircular
	}
	c.nameDepth++
	defer func() { c.nameDepth-- }()
	// references without a sheet are to the sheet of the calling formula,
	// unless the name belongs to a sheet or another workbook
	nsc := &scope{ev: ev, sheet: sc.sheet, row: sc.row, col: sc.col, array: sc.array}
	if n.Scope >= 0 || sc.ev != ev {
		nsc.sheet = max(n.Scope, 0)
	}
	v, err := ev.evalTokens(nsc, n.Tokens)
	if err != nil {
		ev.logf(0, "*** WARNING: name %q: %v\n", n.Name, err)
		return errRef
	}
	return v
}

// externName resolves a tNameX operand: an add-in function name or a
// name defined in another workbook.
func (ev *Evaluator) externName(sc *scope, ixti, index int) (Value, error) {
	en, err := ev.book.Links().ExternName(ixti, index)
	if err != nil {
		return nil, err
	}
	es, err := ev.book.Links().Resolve(ixti)
	if err != nil {
		return nil, err
	}
	switch {
	case es.AddIn:
		return addInName{name: en.Name}, nil
	case es.Internal:
		if n := ev.book.NameByText(en.Name, sc.sheet); n != nil {
			return ev.evalName(sc, n), nil
		}
		return errName, nil
	}
	other := ev.lookupBook(es.Book)
	if other == nil {
		return nil, &errMissingWorkbook{book: es.Book}
	}
	n := other.book.NameByText(en.Name, -1)
	if n == nil {
		return errRef, nil
	}
	return other.evalName(sc, n), nil
}

// result reduces the value of a formula to what a cell can hold.
func (sc *scope) result(v Value) Value {
	switch x := v.(type) {
	case *Reference:
		v = x.intersect(sc.row, sc.col)
	case *ArrayValue:
		v = x.At(0, 0)
	}
	switch v.(type) {
	case BlankValue, missingArg:
		return 0.0
	}
	return v
}

// element picks the value of one cell of an array formula.
func (sc *scope) element(v Value, i, j int) Value {
	g, e := toGrid(v)
	if e != nil {
		return e
	}
	rows, cols := g.dims()
	if rows == 1 {
		i = 0
	}
	if cols == 1 {
		j = 0
	}
	if i >= rows || j >= cols {
		return errNA
	}
	return sc.result(g.at(i, j))
}
