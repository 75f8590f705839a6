package xlrd

import "strings"

// LinkTable holds the SUPBOOK, EXTERNNAME and EXTERNSHEET records that
// 3-D references and add-in calls are resolved through.
type LinkTable struct {
	SupBooks []*SupBookRecord
	// ExternNames[i] lists the EXTERNNAME records after SupBooks[i].
	ExternNames [][]*ExternNameRecord
	Refs        []XTI
}

// ExternSheet is a resolved EXTERNSHEET entry.
type ExternSheet struct {
	// Book is empty for the workbook itself.
	Book     string
	Internal bool
	AddIn    bool
	// First and Last index the sheets of the referenced book; -1 marks a
	// deleted sheet.
	First, Last int
	// Sheet names are filled in for external books only.
	FirstName, LastName string
}

func (lt *LinkTable) empty() bool {
	return len(lt.SupBooks) == 0 && len(lt.Refs) == 0
}

// add takes one link record read from the globals stream.
func (lt *LinkTable) add(r Record) {
	switch r := r.(type) {
	case *SupBookRecord:
		lt.SupBooks = append(lt.SupBooks, r)
		lt.ExternNames = append(lt.ExternNames, nil)
	case *ExternNameRecord:
		if n := len(lt.ExternNames); n > 0 {
			lt.ExternNames[n-1] = append(lt.ExternNames[n-1], r)
		}
	case *ExternSheetRecord:
		lt.Refs = append(lt.Refs, r.Refs...)
	}
}

// records returns the link table in stream order.
func (lt *LinkTable) records(nsheets int) []Record {
	if lt.empty() {
		return nil
	}
	var out []Record
	for i, sb := range lt.SupBooks {
		if sb.Kind == SupBookInternal {
			sb.SheetCount = nsheets
		}
		out = append(out, sb)
		for _, en := range lt.ExternNames[i] {
			out = append(out, en)
		}
	}
	return append(out, &ExternSheetRecord{Refs: lt.Refs})
}

func (lt *LinkTable) findSupBook(kind SupBookKind, book string) int {
	for i, sb := range lt.SupBooks {
		if sb.Kind != kind {
			continue
		}
		if kind != SupBookExternal || strings.EqualFold(sb.BookName(), book) {
			return i
		}
	}
	return -1
}

func (lt *LinkTable) addSupBook(sb *SupBookRecord) int {
	lt.SupBooks = append(lt.SupBooks, sb)
	lt.ExternNames = append(lt.ExternNames, nil)
	return len(lt.SupBooks) - 1
}

// refIndex finds or appends the EXTERNSHEET entry for x.
func (lt *LinkTable) refIndex(x XTI) int {
	for i, r := range lt.Refs {
		if r == x {
			return i
		}
	}
	lt.Refs = append(lt.Refs, x)
	return len(lt.Refs) - 1
}

// InternalRef returns the EXTERNSHEET index for sheets first..last of the
// workbook itself, adding the internal SUPBOOK when needed.
func (lt *LinkTable) InternalRef(nsheets, first, last int) int {
	sb := lt.findSupBook(SupBookInternal, "")
	if sb < 0 {
		sb = lt.addSupBook(&SupBookRecord{Kind: SupBookInternal, SheetCount: nsheets})
	}
	return lt.refIndex(XTI{SupBook: sb, FirstSheet: first, LastSheet: last})
}

// ExternalRef returns the EXTERNSHEET index for sheets of another
// workbook, adding the SUPBOOK and any sheet names it lacks.
func (lt *LinkTable) ExternalRef(book, first, last string) int {
	sbx := lt.findSupBook(SupBookExternal, book)
	if sbx < 0 {
		sbx = lt.addSupBook(&SupBookRecord{Kind: SupBookExternal, URL: EncodeBookURL(book)})
	}
	sb := lt.SupBooks[sbx]
	index := func(name string) int {
		for i, s := range sb.SheetNames {
			if strings.EqualFold(s, name) {
				return i
			}
		}
		sb.SheetNames = append(sb.SheetNames, name)
		sb.SheetCount = len(sb.SheetNames)
		return len(sb.SheetNames) - 1
	}
	fx := index(first)
	lx := fx
	if last != "" {
		lx = index(last)
	}
	return lt.refIndex(XTI{SupBook: sbx, FirstSheet: fx, LastSheet: lx})
}

// AddInName returns the EXTERNSHEET index and 1-based EXTERNNAME index
// for an add-in function, creating the records when needed.
func (lt *LinkTable) AddInName(name string) (int, int) {
	sbx := lt.findSupBook(SupBookAddIn, "")
	if sbx < 0 {
		sbx = lt.addSupBook(&SupBookRecord{Kind: SupBookAddIn, SheetCount: 1})
	}
	index := 0
	for i, en := range lt.ExternNames[sbx] {
		if strings.EqualFold(en.Name, name) {
			index = i + 1
			break
		}
	}
	if index == 0 {
		lt.ExternNames[sbx] = append(lt.ExternNames[sbx], NewAddInName(name))
		index = len(lt.ExternNames[sbx])
	}
	return lt.refIndex(XTI{SupBook: sbx, FirstSheet: -2, LastSheet: -2}), index
}

// Resolve looks up EXTERNSHEET entry ixti.
func (lt *LinkTable) Resolve(ixti int) (ExternSheet, error) {
	if ixti < 0 || ixti >= len(lt.Refs) {
		return ExternSheet{}, NewXLRDError("EXTERNSHEET index %d out of range (%d entries)", ixti, len(lt.Refs))
	}
	x := lt.Refs[ixti]
	if x.SupBook < 0 || x.SupBook >= len(lt.SupBooks) {
		return ExternSheet{}, NewXLRDError("EXTERNSHEET entry %d names SUPBOOK %d of %d", ixti, x.SupBook, len(lt.SupBooks))
	}
	sb := lt.SupBooks[x.SupBook]
	es := ExternSheet{First: x.FirstSheet, Last: x.LastSheet}
	switch sb.Kind {
	case SupBookInternal:
		es.Internal = true
	case SupBookAddIn:
		es.AddIn = true
	default:
		es.Book = sb.BookName()
		if x.FirstSheet >= 0 && x.FirstSheet < len(sb.SheetNames) {
			es.FirstName = sb.SheetNames[x.FirstSheet]
		}
		if x.LastSheet >= 0 && x.LastSheet < len(sb.SheetNames) {
			es.LastName = sb.SheetNames[x.LastSheet]
		}
	}
	return es, nil
}

// ExternName returns EXTERNNAME index (1-based) of the SUPBOOK behind
// EXTERNSHEET entry ixti.
func (lt *LinkTable) ExternName(ixti, index int) (*ExternNameRecord, error) {
	if ixti < 0 || ixti >= len(lt.Refs) {
		return nil, NewXLRDError("EXTERNSHEET index %d out of range (%d entries)", ixti, len(lt.Refs))
	}
	sbx := lt.Refs[ixti].SupBook
	if sbx < 0 || sbx >= len(lt.ExternNames) || index < 1 || index > len(lt.ExternNames[sbx]) {
		return nil, NewXLRDError("EXTERNNAME %d of SUPBOOK %d does not exist", index, sbx)
	}
	return lt.ExternNames[sbx][index-1], nil
}
