package coredb

import (
	"sort"
	"testing"

	"github.com/d4l3k/messagediff"
)

func makeJoinTestVars() (*TupleDesc, *TupleDesc, []*Tuple, []*Tuple) {
	leftDesc := NewTupleDesc([]DBType{IntType, IntType}, []string{"a", "b"})
	rightDesc := NewTupleDesc([]DBType{IntType, IntType, IntType}, []string{"c", "d", "e"})

	leftRows := [][2]int64{{1, 2}, {3, 4}, {5, 6}, {7, 8}}
	left := make([]*Tuple, len(leftRows))
	for i, r := range leftRows {
		left[i] = &Tuple{Desc: *leftDesc, Fields: []Field{IntField{Value: r[0]}, IntField{Value: r[1]}}}
	}

	rightRows := [][3]int64{{1, 2, 3}, {2, 3, 4}, {3, 4, 5}, {4, 5, 6}, {5, 6, 7}}
	right := make([]*Tuple, len(rightRows))
	for i, r := range rightRows {
		right[i] = &Tuple{Desc: *rightDesc, Fields: []Field{IntField{Value: r[0]}, IntField{Value: r[1]}, IntField{Value: r[2]}}}
	}

	return leftDesc, rightDesc, left, right
}

func drainJoin(t *testing.T, join *ThetaJoin) []*Tuple {
	tid := NewTID()
	if err := join.Open(tid); err != nil {
		t.Fatalf(err.Error())
	}
	defer join.Close()
	var out []*Tuple
	for {
		tup, err := join.Next()
		if err != nil {
			t.Fatalf(err.Error())
		}
		if tup == nil {
			break
		}
		out = append(out, tup)
	}
	return out
}

// TestThetaJoinEquality is scenario S1: an equijoin on field 0 of each
// side produces the three tuples whose keys appear on both sides.
func TestThetaJoinEquality(t *testing.T) {
	leftDesc, rightDesc, leftRows, rightRows := makeJoinTestVars()
	leftOp := newSliceOperator(leftDesc, leftRows)
	rightOp := newSliceOperator(rightDesc, rightRows)

	pred := JoinPredicate{
		LeftField:  NewFieldExpr(leftDesc.Fields[0], 0),
		Op:         OpEq,
		RightField: NewFieldExpr(rightDesc.Fields[0], 0),
	}
	join := NewThetaJoin(pred, leftOp, rightOp)
	out := drainJoin(t, join)

	want := []string{"1\t2\t1\t2\t3", "3\t4\t3\t4\t5", "5\t6\t5\t6\t7"}

	got := make([]string, len(out))
	for i, tup := range out {
		got[i] = tup.tupleKey()
	}
	sort.Strings(got)

	if diff, equal := messagediff.PrettyDiff(want, got); !equal {
		t.Errorf("equijoin result doesn't match the expected multiset:\n%s", diff)
	}
}

// TestThetaJoinGreaterThan is scenario S2: a theta join on field0 > field0
// produces 11 tuples over the same inputs as S1.
func TestThetaJoinGreaterThan(t *testing.T) {
	leftDesc, rightDesc, leftRows, rightRows := makeJoinTestVars()
	leftOp := newSliceOperator(leftDesc, leftRows)
	rightOp := newSliceOperator(rightDesc, rightRows)

	pred := JoinPredicate{
		LeftField:  NewFieldExpr(leftDesc.Fields[0], 0),
		Op:         OpGt,
		RightField: NewFieldExpr(rightDesc.Fields[0], 0),
	}
	join := NewThetaJoin(pred, leftOp, rightOp)
	out := drainJoin(t, join)

	if len(out) != 11 {
		t.Fatalf("expected 11 joined tuples for field0 > field0, got %d: %v", len(out), out)
	}
	for _, tup := range out {
		l := tup.Fields[0].(IntField).Value
		r := tup.Fields[2].(IntField).Value
		if !(l > r) {
			t.Errorf("joined tuple %v violates field0 > field0 (%d > %d)", tup, l, r)
		}
	}
}

// TestThetaJoinRewindKeepsHashTables checks that Rewind resets enumeration
// but does not re-drain the children (spec section 4.6).
func TestThetaJoinRewindKeepsHashTables(t *testing.T) {
	leftDesc, rightDesc, leftRows, rightRows := makeJoinTestVars()
	leftOp := newSliceOperator(leftDesc, leftRows)
	rightOp := newSliceOperator(rightDesc, rightRows)

	pred := JoinPredicate{
		LeftField:  NewFieldExpr(leftDesc.Fields[0], 0),
		Op:         OpEq,
		RightField: NewFieldExpr(rightDesc.Fields[0], 0),
	}
	join := NewThetaJoin(pred, leftOp, rightOp)

	tid := NewTID()
	if err := join.Open(tid); err != nil {
		t.Fatalf(err.Error())
	}
	defer join.Close()

	first := 0
	for {
		tup, err := join.Next()
		if err != nil {
			t.Fatalf(err.Error())
		}
		if tup == nil {
			break
		}
		first++
	}
	if err := join.Rewind(); err != nil {
		t.Fatalf(err.Error())
	}
	second := 0
	for {
		tup, err := join.Next()
		if err != nil {
			t.Fatalf(err.Error())
		}
		if tup == nil {
			break
		}
		second++
	}
	if first != second || first != 3 {
		t.Errorf("expected Rewind to replay the same 3 tuples, got %d then %d", first, second)
	}
}
