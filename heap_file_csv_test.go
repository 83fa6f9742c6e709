package coredb

import (
	"os"
	"testing"
)

const csvHeapFileTestFile = "heapfile_csv_test.dat"

// TestLoadFromCSV is the supplemented CSV bulk-load path: each row
// becomes its own committed transaction, and a header line is skipped
// when requested.
func TestLoadFromCSV(t *testing.T) {
	os.Remove(csvHeapFileTestFile)
	defer os.Remove(csvHeapFileTestFile)

	td := NewTupleDesc([]DBType{IntType, StringType}, []string{"id", "name"})
	bp := NewBufferPool(50)
	hf, err := NewHeapFile(0, csvHeapFileTestFile, td, bp)
	if err != nil {
		t.Fatalf(err.Error())
	}

	csv := "id,name\n1,alice\n2,bob\n3,carol\n"
	tmp, err := os.CreateTemp("", "heapfile-csv-*.csv")
	if err != nil {
		t.Fatalf(err.Error())
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(csv); err != nil {
		t.Fatalf(err.Error())
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		t.Fatalf(err.Error())
	}

	if err := hf.LoadFromCSV(tmp, true, ",", false); err != nil {
		t.Fatalf(err.Error())
	}
	tmp.Close()

	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf(err.Error())
	}
	scan := NewSeqScan(0, hf, "")
	if err := scan.Open(tid); err != nil {
		t.Fatalf(err.Error())
	}
	defer scan.Close()

	names := map[int64]string{}
	for {
		tup, err := scan.Next()
		if err != nil {
			t.Fatalf(err.Error())
		}
		if tup == nil {
			break
		}
		names[tup.Fields[0].(IntField).Value] = tup.Fields[1].(StringField).Value
	}
	want := map[int64]string{1: "alice", 2: "bob", 3: "carol"}
	if len(names) != len(want) {
		t.Fatalf("expected %d rows loaded from CSV, got %d: %v", len(want), len(names), names)
	}
	for id, name := range want {
		if names[id] != name {
			t.Errorf("row %d: expected name %q, got %q", id, name, names[id])
		}
	}
	bp.TransactionComplete(tid, true)
}

// TestLoadFromCSVRejectsWrongFieldCount checks the malformed-row error
// path.
func TestLoadFromCSVRejectsWrongFieldCount(t *testing.T) {
	os.Remove(csvHeapFileTestFile)
	defer os.Remove(csvHeapFileTestFile)

	td := NewTupleDesc([]DBType{IntType, StringType}, []string{"id", "name"})
	bp := NewBufferPool(50)
	hf, err := NewHeapFile(0, csvHeapFileTestFile, td, bp)
	if err != nil {
		t.Fatalf(err.Error())
	}

	tmp, err := os.CreateTemp("", "heapfile-bad-csv-*.csv")
	if err != nil {
		t.Fatalf(err.Error())
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString("1,alice,extra\n"); err != nil {
		t.Fatalf(err.Error())
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		t.Fatalf(err.Error())
	}

	err = hf.LoadFromCSV(tmp, false, ",", false)
	tmp.Close()
	if err == nil {
		t.Fatalf("expected a malformed-row error for a line with the wrong field count")
	}
	if gdbErr, ok := err.(GoDBError); !ok || gdbErr.Kind != MalformedDataError {
		t.Errorf("expected MalformedDataError, got %v", err)
	}
}
