package xlcalc

// Listener is told what the evaluator does with its cache. Cells are
// given by sheet index, row and column of the evaluator's workbook.
type Listener interface {
	// OnCacheHit is called when a formula result is taken from the cache.
	OnCacheHit(sheetx, rowx, colx int, result Value)
	// OnReadPlainValue is called when the value of a cell without a
	// formula is read.
	OnReadPlainValue(sheetx, rowx, colx int, value Value)
	// OnStartEvaluate and OnEndEvaluate bracket the evaluation of a
	// formula cell.
	OnStartEvaluate(sheetx, rowx, colx int)
	OnEndEvaluate(sheetx, rowx, colx int, result Value)
	OnClearWholeCache()
	// OnClearCachedValue is called for the cell whose value changed.
	OnClearCachedValue(sheetx, rowx, colx int)
	// OnClearDependentCachedValue is called for each formula cell whose
	// result is dropped because of the change. depth is 1 for direct
	// consumers of the changed cell.
	OnClearDependentCachedValue(sheetx, rowx, colx int, depth int)
}

// NopListener ignores every event. Embed it to implement only some of
// the Listener methods.
type NopListener struct{}

func (NopListener) OnCacheHit(sheetx, rowx, colx int, result Value)             {}
func (NopListener) OnReadPlainValue(sheetx, rowx, colx int, value Value)        {}
func (NopListener) OnStartEvaluate(sheetx, rowx, colx int)                      {}
func (NopListener) OnEndEvaluate(sheetx, rowx, colx int, result Value)          {}
func (NopListener) OnClearWholeCache()                                          {}
func (NopListener) OnClearCachedValue(sheetx, rowx, colx int)                   {}
func (NopListener) OnClearDependentCachedValue(sheetx, rowx, colx int, depth int) {}
