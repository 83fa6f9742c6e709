package coredb

import (
	"testing"

	"github.com/d4l3k/messagediff"
)

func makeHeapPageTestVars() (*TupleDesc, *HeapFile, *HeapPage) {
	td := NewTupleDesc([]DBType{IntType, IntType}, []string{"a", "b"})
	hf := &HeapFile{tableID: 0, desc: td}
	page := NewHeapPage(PageID{TableID: 0, PageNumber: 0}, td, hf)
	return td, hf, page
}

func TestHeapPageRoundTrip(t *testing.T) {
	td, hf, page := makeHeapPageTestVars()
	for i := 0; i < 5; i++ {
		tup := &Tuple{Desc: *td, Fields: []Field{IntField{Value: int64(i)}, IntField{Value: int64(i * 2)}}}
		if err := page.InsertTuple(tup); err != nil {
			t.Fatalf(err.Error())
		}
	}

	data := page.PageData()
	page2, err := NewHeapPageFromBytes(page.ID(), td, hf, data)
	if err != nil {
		t.Fatalf(err.Error())
	}

	var before, after [][]int64
	iter1, iter2 := page.Iterator(), page2.Iterator()
	for {
		t1, _ := iter1()
		t2, _ := iter2()
		if t1 == nil && t2 == nil {
			break
		}
		if t1 == nil || t2 == nil {
			t.Fatalf("page round-trip produced a different number of tuples")
		}
		before = append(before, []int64{t1.Fields[0].(IntField).Value, t1.Fields[1].(IntField).Value})
		after = append(after, []int64{t2.Fields[0].(IntField).Value, t2.Fields[1].(IntField).Value})
	}
	if diff, equal := messagediff.PrettyDiff(before, after); !equal {
		t.Errorf("page round-trip produced different tuples:\n%s", diff)
	}
}

func TestHeapPageSlotBitConsistency(t *testing.T) {
	_, _, page := makeHeapPageTestVars()
	tup := &Tuple{Desc: *page.desc, Fields: []Field{IntField{Value: 1}, IntField{Value: 2}}}
	if err := page.InsertTuple(tup); err != nil {
		t.Fatalf(err.Error())
	}
	for slot := 0; slot < page.numSlots; slot++ {
		used := page.isSlotUsed(slot)
		hasTuple := page.tuples[slot] != nil
		if used != hasTuple {
			t.Errorf("slot %d: isSlotUsed=%v but tuples[slot]!=nil is %v", slot, used, hasTuple)
		}
	}
}

func TestHeapPageInsertDeleteInverse(t *testing.T) {
	_, _, page := makeHeapPageTestVars()
	before := page.PageData()

	tup := &Tuple{Desc: *page.desc, Fields: []Field{IntField{Value: 7}, IntField{Value: 8}}}
	if err := page.InsertTuple(tup); err != nil {
		t.Fatalf(err.Error())
	}
	if err := page.DeleteTuple(tup); err != nil {
		t.Fatalf(err.Error())
	}
	if tup.Rid != nil {
		t.Errorf("expected tuple's record id to be cleared after delete")
	}

	after := page.PageData()
	if string(before) != string(after) {
		t.Errorf("page after insert+delete does not match its pre-insert state")
	}
}

func TestHeapPageFullReturnsError(t *testing.T) {
	_, _, page := makeHeapPageTestVars()
	var lastErr error
	count := 0
	for {
		tup := &Tuple{Desc: *page.desc, Fields: []Field{IntField{Value: int64(count)}, IntField{Value: 0}}}
		if err := page.InsertTuple(tup); err != nil {
			lastErr = err
			break
		}
		count++
	}
	if lastErr == nil {
		t.Fatalf("expected PageFullError once the page's slots are exhausted")
	}
	if gdbErr, ok := lastErr.(GoDBError); !ok || gdbErr.Kind != PageFullError {
		t.Errorf("expected PageFullError, got %v", lastErr)
	}
}
