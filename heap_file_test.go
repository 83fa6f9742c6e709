package coredb

import (
	"os"
	"testing"
)

const heapFileTestFile = "heapfile_test.dat"

func makeHeapFileTestVars(t *testing.T) (*TupleDesc, *HeapFile, *BufferPool) {
	os.Remove(heapFileTestFile)
	td := NewTupleDesc([]DBType{IntType, IntType}, []string{"a", "b"})
	bp := NewBufferPool(50)
	hf, err := NewHeapFile(0, heapFileTestFile, td, bp)
	if err != nil {
		t.Fatalf(err.Error())
	}
	return td, hf, bp
}

// TestHeapFileInsertDeleteRoundTrip is scenario S4: insert 100 tuples,
// scan, delete all of them, scan again, confirm emptiness.
func TestHeapFileInsertDeleteRoundTrip(t *testing.T) {
	_, hf, bp := makeHeapFileTestVars(t)
	defer os.Remove(heapFileTestFile)

	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf(err.Error())
	}
	for i := 0; i < 100; i++ {
		tup := &Tuple{Desc: *hf.Descriptor(), Fields: []Field{IntField{Value: int64(i)}, IntField{Value: int64(i + 1)}}}
		if _, err := hf.insertTuple(tid, tup); err != nil {
			t.Fatalf(err.Error())
		}
	}

	scan := NewSeqScan(0, hf, "")
	if err := scan.Open(tid); err != nil {
		t.Fatalf(err.Error())
	}
	count := 0
	for {
		tup, err := scan.Next()
		if err != nil {
			t.Fatalf(err.Error())
		}
		if tup == nil {
			break
		}
		count++
	}
	scan.Close()
	if count != 100 {
		t.Errorf("expected 100 tuples after insert, got %d", count)
	}

	del := NewDelete(hf, NewSeqScan(0, hf, ""))
	if err := del.Open(tid); err != nil {
		t.Fatalf(err.Error())
	}
	result, err := del.Next()
	if err != nil {
		t.Fatalf(err.Error())
	}
	if result == nil || result.Fields[0].(IntField).Value != 100 {
		t.Errorf("expected delete to report (100), got %v", result)
	}
	del.Close()

	scan2 := NewSeqScan(0, hf, "")
	if err := scan2.Open(tid); err != nil {
		t.Fatalf(err.Error())
	}
	tup, err := scan2.Next()
	if err != nil {
		t.Fatalf(err.Error())
	}
	if tup != nil {
		t.Errorf("expected no tuples after deleting all rows")
	}
	scan2.Close()

	if hf.NumPages() < 1 {
		t.Errorf("expected at least 1 page to remain after delete (pages are not reclaimed)")
	}

	bp.TransactionComplete(tid, true)
}

func TestHeapFileAppendsWhenFull(t *testing.T) {
	_, hf, bp := makeHeapFileTestVars(t)
	defer os.Remove(heapFileTestFile)

	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf(err.Error())
	}

	slotsPerPage := numSlotsFor(hf.Descriptor())
	for i := 0; i < slotsPerPage+1; i++ {
		tup := &Tuple{Desc: *hf.Descriptor(), Fields: []Field{IntField{Value: int64(i)}, IntField{Value: 0}}}
		if _, err := hf.insertTuple(tid, tup); err != nil {
			t.Fatalf(err.Error())
		}
	}
	if hf.NumPages() < 2 {
		t.Errorf("expected a second page once the first filled up, got %d pages", hf.NumPages())
	}
	bp.TransactionComplete(tid, true)
}
