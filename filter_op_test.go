package coredb

import (
	"os"
	"testing"
)

const filterOpTestFile = "filterop_test.dat"

// TestFilterInsertSeqScan exercises Insert, SeqScan, and Filter together
// against a real HeapFile: insert a mix of rows, then scan back only
// those matching a predicate.
func TestFilterInsertSeqScan(t *testing.T) {
	os.Remove(filterOpTestFile)
	defer os.Remove(filterOpTestFile)

	td := NewTupleDesc([]DBType{IntType, IntType}, []string{"a", "b"})
	bp := NewBufferPool(50)
	hf, err := NewHeapFile(0, filterOpTestFile, td, bp)
	if err != nil {
		t.Fatalf(err.Error())
	}

	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf(err.Error())
	}

	rows := make([]*Tuple, 10)
	for i := range rows {
		rows[i] = &Tuple{Desc: *td, Fields: []Field{IntField{Value: int64(i)}, IntField{Value: 0}}}
	}
	ins := NewInsert(bp, hf, newSliceOperator(td, rows))
	if err := ins.Open(tid); err != nil {
		t.Fatalf(err.Error())
	}
	result, err := ins.Next()
	if err != nil {
		t.Fatalf(err.Error())
	}
	if result.Fields[0].(IntField).Value != 10 {
		t.Fatalf("expected insert to report (10), got %v", result)
	}
	ins.Close()

	scan := NewSeqScan(0, hf, "t")
	filter := NewFilter(NewFieldExpr(scan.Descriptor().Fields[0], 0), OpGte, NewConstExpr(IntField{Value: 5}, IntType), scan)
	if err := filter.Open(tid); err != nil {
		t.Fatalf(err.Error())
	}
	count := 0
	for {
		tup, err := filter.Next()
		if err != nil {
			t.Fatalf(err.Error())
		}
		if tup == nil {
			break
		}
		if v := tup.Fields[0].(IntField).Value; v < 5 {
			t.Errorf("filter let through a < 5: %d", v)
		}
		count++
	}
	filter.Close()
	if count != 5 {
		t.Errorf("expected 5 rows with a >= 5, got %d", count)
	}

	bp.TransactionComplete(tid, true)
}
