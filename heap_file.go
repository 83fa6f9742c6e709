package coredb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DBFile is the contract BufferPool and the operator tree use to reach a
// table's backing storage, matching the teacher's DBFile interface name.
type DBFile interface {
	readPage(pageNumber int) (*HeapPage, error)
	flushPage(p *HeapPage) error
	NumPages() int
	Descriptor() *TupleDesc
	pageKey(pageNumber int) PageID
	insertTuple(tid TransactionID, t *Tuple) ([]*HeapPage, error)
	deleteTuple(tid TransactionID, t *Tuple) (*HeapPage, error)
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
}

// HeapFile is an unordered collection of pages backing a single table
// (spec section 4.2). Grounded on the teacher's heap_file.go: a per-file
// mutex serialising append so NumPages is monotone across concurrent
// inserters, pageKey/heapHash-style page identity, flushPage/readPage via
// os.OpenFile+Seek, and LoadFromCSV for test fixtures.
type HeapFile struct {
	tableID     int
	backingFile string
	desc        *TupleDesc
	bp          *BufferPool

	appendMu sync.Mutex
	numPages int
}

// NewHeapFile opens (or creates) a heap file backed by fromFile.
func NewHeapFile(tableID int, fromFile string, desc *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	f := &HeapFile{
		tableID:     tableID,
		backingFile: fromFile,
		desc:        desc,
		bp:          bp,
	}
	f.numPages = f.statPages()
	return f, nil
}

func (f *HeapFile) statPages() int {
	info, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	size := info.Size()
	n := int(size / PageSize)
	if size%PageSize != 0 {
		n++
	}
	return n
}

// NumPages returns the number of pages currently in the file.
func (f *HeapFile) NumPages() int {
	f.appendMu.Lock()
	defer f.appendMu.Unlock()
	return f.numPages
}

func (f *HeapFile) Descriptor() *TupleDesc { return f.desc }

func (f *HeapFile) pageKey(pageNumber int) PageID {
	return PageID{TableID: f.tableID, PageNumber: pageNumber}
}

// readPage seeks to pid.pageNumber*PageSize, reads exactly PageSize bytes,
// and constructs a HeapPage (spec section 4.2).
func (f *HeapFile) readPage(pageNumber int) (*HeapPage, error) {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("open heap file: %w", err)
	}
	defer file.Close()

	data := make([]byte, PageSize)
	if _, err := file.ReadAt(data, int64(pageNumber)*PageSize); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return NewHeapPageFromBytes(f.pageKey(pageNumber), f.desc, f, data)
}

// writePage is readPage's mirror: seeks and writes exactly PageSize bytes.
func (f *HeapFile) writePage(p *HeapPage) error {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteAt(p.PageData(), int64(p.id.PageNumber)*PageSize)
	return err
}

// flushPage forces a page's current contents to disk and clears dirty.
func (f *HeapFile) flushPage(p *HeapPage) error {
	if err := f.writePage(p); err != nil {
		return err
	}
	p.MarkDirty(false, 0)
	return nil
}

// insertTuple scans pages 0..numPages-1 for room, acquiring each with read
// intent to check NumEmptySlots, then re-acquiring with write intent to
// insert into the first page with space. If none has room, it appends a
// fresh page under appendMu so NumPages stays monotone across concurrent
// inserters (spec section 4.2).
func (f *HeapFile) insertTuple(tid TransactionID, t *Tuple) ([]*HeapPage, error) {
	if !t.Desc.equals(f.desc) {
		return nil, NewGoDBError(SchemaMismatchError, "tuple desc does not match file desc")
	}
	n := f.NumPages()
	for pageNo := 0; pageNo < n; pageNo++ {
		page, err := f.bp.getPage(tid, f, pageNo, ReadPerm)
		if err != nil {
			return nil, err
		}
		if page.NumEmptySlots() == 0 {
			continue
		}
		page, err = f.bp.getPage(tid, f, pageNo, WritePerm)
		if err != nil {
			return nil, err
		}
		if page.NumEmptySlots() == 0 {
			// lost the race to another inserter; keep scanning.
			continue
		}
		if err := page.InsertTuple(t); err != nil {
			return nil, err
		}
		page.MarkDirty(true, tid)
		return []*HeapPage{page}, nil
	}

	page, err := f.appendPage(tid)
	if err != nil {
		return nil, err
	}
	if err := page.InsertTuple(t); err != nil {
		return nil, err
	}
	page.MarkDirty(true, tid)
	return []*HeapPage{page}, nil
}

// appendPage adds a fresh empty page to the file under the per-file
// mutex, installs it in the buffer pool, and returns it.
func (f *HeapFile) appendPage(tid TransactionID) (*HeapPage, error) {
	f.appendMu.Lock()
	defer f.appendMu.Unlock()
	pageNo := f.numPages
	page := NewHeapPage(f.pageKey(pageNo), f.desc, f)
	if err := f.writePage(page); err != nil {
		return nil, err
	}
	f.numPages++
	return f.bp.installPage(tid, f, pageNo, page, WritePerm)
}

// deleteTuple resolves the owning page from t.Rid, acquires it write, and
// deletes (spec section 4.2).
func (f *HeapFile) deleteTuple(tid TransactionID, t *Tuple) (*HeapPage, error) {
	if t.Rid == nil {
		return nil, NewGoDBError(NotOnPageError, "tuple has no record id")
	}
	page, err := f.bp.getPage(tid, f, t.Rid.Page.PageNumber, WritePerm)
	if err != nil {
		return nil, err
	}
	if err := page.DeleteTuple(t); err != nil {
		return nil, err
	}
	page.MarkDirty(true, tid)
	return page, nil
}

// Iterator produces every tuple in every page in order, lazily loading one
// page at a time through the BufferPool with read intent (spec section
// 4.2).
func (f *HeapFile) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	pageNo := 0
	var pageIter func() (*Tuple, error)

	return func() (*Tuple, error) {
		for {
			if pageIter == nil {
				if pageNo >= f.NumPages() {
					return nil, nil
				}
				page, err := f.bp.getPage(tid, f, pageNo, ReadPerm)
				if err != nil {
					return nil, err
				}
				pageIter = page.Iterator()
			}
			t, err := pageIter()
			if err != nil {
				return nil, err
			}
			if t != nil {
				return t, nil
			}
			pageIter = nil
			pageNo++
		}
	}, nil
}

// LoadFromCSV bulk-loads rows from a CSV file into the heap file, one
// transaction per row (spec's SUPPLEMENTED FEATURES; ported from the
// teacher's HeapFile.LoadFromCSV as the standard fixture-loading path).
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField && len(fields) > 0 {
			fields = fields[:len(fields)-1]
		}
		if lineNo == 1 && hasHeader {
			continue
		}
		if len(fields) != len(f.desc.Fields) {
			return NewGoDBError(MalformedDataError, fmt.Sprintf("line %d (%s) has %d fields, expected %d", lineNo, line, len(fields), len(f.desc.Fields)))
		}
		values := make([]Field, len(fields))
		for i, raw := range fields {
			switch f.desc.Fields[i].Ftype {
			case IntType:
				raw = strings.TrimSpace(raw)
				v, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return NewGoDBError(TypeMismatchError, fmt.Sprintf("line %d: %q is not an int", lineNo, raw))
				}
				values[i] = IntField{Value: v}
			case StringType:
				if len(raw) > StringLength {
					raw = raw[:StringLength]
				}
				values[i] = StringField{Value: raw}
			}
		}
		tid := NewTID()
		if err := f.bp.BeginTransaction(tid); err != nil {
			return err
		}
		if _, err := f.insertTuple(tid, &Tuple{Desc: *f.desc, Fields: values}); err != nil {
			f.bp.TransactionComplete(tid, false)
			return err
		}
		f.bp.TransactionComplete(tid, true)
	}
	return scanner.Err()
}
