package xlcalc

import "github.com/yamitzky/xlcalc-go/xlrd"

// cellKey identifies a cell across the workbooks of an environment.
type cellKey struct {
	ev       *Evaluator
	sheet    int
	row, col int
}

// areaKey is a multi-cell area read by some formula.
type areaKey struct {
	ev    *Evaluator
	sheet int
	area  xlrd.CellRange
}

func (a areaKey) contains(k cellKey) bool {
	return a.ev == k.ev && a.sheet == k.sheet && a.area.Contains(k.row, k.col)
}

type set[T comparable] map[T]struct{}

// cacheEntry holds the value of one cell. Plain entries are cells
// without a formula; formula entries also record what the last
// evaluation read.
type cacheEntry struct {
	value   Value
	formula bool

	clean      bool
	inProgress bool
	volatile   bool
	generation int

	inputs    set[cellKey]
	areas     set[areaKey]
	consumers set[cellKey]
}

// frame is a formula cell being evaluated.
type frame struct {
	key      cellKey
	volatile bool
}

// evalCache keeps cell values and the dependencies between them. One
// cache is shared by all evaluators of an environment so that changes in
// one workbook reach formulas in the others.
type evalCache struct {
	entries   map[cellKey]*cacheEntry
	observers map[areaKey]set[cellKey]
	stack     []*frame
	// generation advances with every top-level evaluation; volatile
	// results are only reused within one.
	generation int
	// nameDepth guards against defined names that refer to themselves.
	nameDepth int
}

func newEvalCache() *evalCache {
	return &evalCache{
		entries:   map[cellKey]*cacheEntry{},
		observers: map[areaKey]set[cellKey]{},
	}
}

func (c *evalCache) top() *frame {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// begin starts a top-level evaluation.
func (c *evalCache) begin() {
	if len(c.stack) == 0 {
		c.generation++
	}
}

func (c *evalCache) isClean(e *cacheEntry) bool {
	return e.clean && (!e.volatile || e.generation == c.generation)
}

func (c *evalCache) plain(k cellKey, v Value) *cacheEntry {
	e := c.entries[k]
	if e == nil || e.formula {
		if e != nil {
			c.unlinkInputs(k, e)
		}
		e = &cacheEntry{consumers: consumersOf(e)}
		c.entries[k] = e
	}
	e.value = v
	e.clean = true
	return e
}

func (c *evalCache) formulaEntry(k cellKey) *cacheEntry {
	e := c.entries[k]
	if e == nil || !e.formula {
		e = &cacheEntry{formula: true, consumers: consumersOf(e)}
		c.entries[k] = e
	}
	return e
}

func consumersOf(e *cacheEntry) set[cellKey] {
	if e == nil || e.consumers == nil {
		return set[cellKey]{}
	}
	return e.consumers
}

// dependsOn records that the formula on top of the stack read cell k.
func (c *evalCache) dependsOn(k cellKey) {
	f := c.top()
	if f == nil || f.key == k {
		return
	}
	in := c.entries[k]
	out := c.entries[f.key]
	if in == nil || out == nil {
		return
	}
	in.consumers[f.key] = struct{}{}
	if out.inputs == nil {
		out.inputs = set[cellKey]{}
	}
	out.inputs[k] = struct{}{}
	if in.formula && in.volatile {
		f.volatile = true
	}
}

// observe records that the formula on top of the stack read area a.
func (c *evalCache) observe(a areaKey) {
	f := c.top()
	if f == nil {
		return
	}
	out := c.entries[f.key]
	if out == nil {
		return
	}
	obs := c.observers[a]
	if obs == nil {
		obs = set[cellKey]{}
		c.observers[a] = obs
	}
	obs[f.key] = struct{}{}
	if out.areas == nil {
		out.areas = set[areaKey]{}
	}
	out.areas[a] = struct{}{}
}

// unlinkInputs forgets what formula k read in its last evaluation.
func (c *evalCache) unlinkInputs(k cellKey, e *cacheEntry) {
	for in := range e.inputs {
		if ie := c.entries[in]; ie != nil {
			delete(ie.consumers, k)
		}
	}
	for a := range e.areas {
		if obs := c.observers[a]; obs != nil {
			delete(obs, k)
			if len(obs) == 0 {
				delete(c.observers, a)
			}
		}
	}
	e.inputs, e.areas = nil, nil
}

// dependents lists the formulas that read cell k, directly or through
// an area.
func (c *evalCache) dependents(k cellKey) []cellKey {
	var out []cellKey
	if e := c.entries[k]; e != nil {
		for d := range e.consumers {
			out = append(out, d)
		}
	}
	for a, obs := range c.observers {
		if !a.contains(k) {
			continue
		}
		for d := range obs {
			out = append(out, d)
		}
	}
	return out
}

// markStale drops the result of formula k and of everything computed
// from it.
func (c *evalCache) markStale(k cellKey, depth int) {
	e := c.entries[k]
	if e == nil || !e.formula || !e.clean || e.inProgress {
		return
	}
	e.clean = false
	e.value = nil
	c.unlinkInputs(k, e)
	k.ev.listener.OnClearDependentCachedValue(k.sheet, k.row, k.col, depth)
	for _, d := range c.dependents(k) {
		c.markStale(d, depth+1)
	}
}

// update handles a change of cell k: its own entry goes and every
// result computed from it becomes stale.
func (c *evalCache) update(k cellKey) {
	deps := c.dependents(k)
	if e := c.entries[k]; e != nil {
		if e.formula {
			c.unlinkInputs(k, e)
		}
		delete(c.entries, k)
		k.ev.listener.OnClearCachedValue(k.sheet, k.row, k.col)
	}
	for _, d := range deps {
		c.markStale(d, 1)
	}
}

func (c *evalCache) clear() {
	c.entries = map[cellKey]*cacheEntry{}
	c.observers = map[areaKey]set[cellKey]{}
}
