package xlrd

// RowBlockSize is the number of ROW records per DBCELL block.
const RowBlockSize = 32

// rowRecordSize is the encoded size of a ROW record with its header.
const rowRecordSize = 20

// streamWriter encodes records one at a time and remembers where each
// one starts. Positions are absolute within the workbook stream.
type streamWriter struct {
	base int
	buf  []byte
	err  error
}

func (w *streamWriter) pos() int { return w.base + len(w.buf) }

func encodeOne(r Record) ([]byte, error) {
	return EncodeStream([]LogicalRecord{EncodeRecord(r)})
}

// write appends r and returns the stream position of its header.
func (w *streamWriter) write(r Record) int {
	start := w.pos()
	if w.err != nil {
		return start
	}
	b, err := encodeOne(r)
	if err != nil {
		w.err = err
		return start
	}
	w.buf = append(w.buf, b...)
	return start
}

// patch re-encodes r over the record written at pos. The encoding must
// keep its length.
func (w *streamWriter) patch(pos int, r Record) {
	if w.err != nil {
		return
	}
	b, err := encodeOne(r)
	if err != nil {
		w.err = err
		return
	}
	at := pos - w.base
	if at < 0 || at+len(b) > len(w.buf) {
		w.err = NewXLRDError("%s record at %d cannot be rewritten in place", RecordName(r.Sid()), pos)
		return
	}
	copy(w.buf[at:], b)
}

// sstBuilder collects the strings of text cells for the SST.
type sstBuilder struct {
	index   map[string]int
	strings []string
	total   int
}

func newSSTBuilder() *sstBuilder {
	return &sstBuilder{index: map[string]int{}}
}

func (b *sstBuilder) add(s string) int {
	b.total++
	if i, ok := b.index[s]; ok {
		return i
	}
	b.index[s] = len(b.strings)
	b.strings = append(b.strings, s)
	return len(b.strings) - 1
}

func (b *sstBuilder) record() *SSTRecord {
	return &SSTRecord{Total: b.total, Strings: b.strings}
}

// collectStrings adds the text cells of the sheet to the SST.
func (s *Sheet) collectStrings(sst *sstBuilder) {
	s.Positions(func(rowx, colx int) {
		c := s.cells[rowx][colx]
		if c.Formula == nil && c.CType == XL_CELL_TEXT {
			sst.add(c.Value.(string))
		}
	})
}

// cellRecords returns the records storing one cell.
func (s *Sheet) cellRecords(rowx, colx int, c *Cell, sst *sstBuilder) []Record {
	if c.Formula != nil {
		f := c.Formula
		f.Record.Row, f.Record.Col, f.Record.XF = rowx, colx, c.XFIndex
		return f.records()
	}
	h := CellHeader{Row: rowx, Col: colx, XF: c.XFIndex}
	switch c.CType {
	case XL_CELL_NUMBER:
		v := c.Value.(float64)
		if rk, ok := EncodeRK(v); ok {
			return []Record{&RKRecord{CellHeader: h, RK: rk}}
		}
		return []Record{&NumberRecord{CellHeader: h, Value: v}}
	case XL_CELL_TEXT:
		return []Record{&LabelSSTRecord{CellHeader: h, SST: sst.index[c.Value.(string)]}}
	case XL_CELL_BOOLEAN:
		v := byte(0)
		if c.Value.(bool) {
			v = 1
		}
		return []Record{&BoolErrRecord{CellHeader: h, Value: v}}
	case XL_CELL_ERROR:
		return []Record{&BoolErrRecord{CellHeader: h, Value: byte(c.Value.(ErrorCode)), IsError: true}}
	}
	return []Record{&BlankRecord{CellHeader: h}}
}

func (s *Sheet) rowNumbers() []int {
	seen := map[int]bool{}
	for r := range s.rows {
		seen[r] = true
	}
	for r := range s.cells {
		seen[r] = true
	}
	return sortedKeys(seen)
}

func (s *Sheet) rowRecord(rowx int) *RowRecord {
	r, ok := s.rows[rowx]
	if ok {
		cp := *r
		r = &cp
	} else {
		r = NewRowRecord(rowx)
	}
	r.FirstCol, r.LastCol = 0, 0
	if cols := sortedKeys(s.cells[rowx]); len(cols) > 0 {
		r.FirstCol, r.LastCol = cols[0], cols[len(cols)-1]+1
	}
	return r
}

func (s *Sheet) dimensions() *DimensionsRecord {
	d := &DimensionsRecord{}
	first := true
	for rowx, row := range s.cells {
		for colx := range row {
			if first {
				d.FirstRow, d.LastRow, d.FirstCol, d.LastCol = rowx, rowx+1, colx, colx+1
				first = false
				continue
			}
			d.FirstRow = min(d.FirstRow, rowx)
			d.LastRow = max(d.LastRow, rowx+1)
			d.FirstCol = min(d.FirstCol, colx)
			d.LastCol = max(d.LastCol, colx+1)
		}
	}
	return d
}

// write serializes the worksheet substream: BOF, INDEX, leading records,
// DIMENSIONS, row blocks each closed by a DBCELL, trailing records,
// MERGEDCELLS and EOF. INDEX is filled in once the blocks are placed.
func (s *Sheet) write(w *streamWriter, sst *sstBuilder) {
	bof := s.bof
	if bof == nil {
		bof = NewBOF(XL_WORKSHEET)
	}
	w.write(bof)

	rows := s.rowNumbers()
	index := &IndexRecord{}
	if len(rows) > 0 {
		index.FirstRow, index.LastRow = rows[0], rows[len(rows)-1]+1
	}
	index.DBCells = make([]int, (len(rows)+RowBlockSize-1)/RowBlockSize)
	indexPos := w.write(index)

	for _, r := range s.head {
		p := w.write(r)
		if r.Sid() == XL_DEFCOLWIDTH {
			index.DefColWidthPos = p
		}
	}
	w.write(s.dimensions())

	for b := range index.DBCells {
		block := rows[b*RowBlockSize : min(len(rows), (b+1)*RowBlockSize)]
		firstRowPos := -1
		for _, rowx := range block {
			p := w.write(s.rowRecord(rowx))
			if firstRowPos < 0 {
				firstRowPos = p
			}
		}
		db := &DBCellRecord{}
		// the first offset is measured from the second ROW record
		offset := w.pos() - firstRowPos - rowRecordSize
		for _, rowx := range block {
			db.CellOffsets = append(db.CellOffsets, offset)
			start := w.pos()
			for _, colx := range sortedKeys(s.cells[rowx]) {
				for _, r := range s.cellRecords(rowx, colx, s.cells[rowx][colx], sst) {
					w.write(r)
				}
			}
			offset = w.pos() - start
		}
		db.FirstRowOffset = w.pos() - firstRowPos
		index.DBCells[b] = w.write(db)
	}

	for _, r := range s.tail {
		w.write(r)
	}
	for i := 0; i < len(s.MergedCells); i += MaxMergedRanges {
		w.write(&MergedCellsRecord{Ranges: s.MergedCells[i:min(len(s.MergedCells), i+MaxMergedRanges)]})
	}
	w.write(&EOFRecord{})
	w.patch(indexPos, index)
}
