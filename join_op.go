package coredb

import (
	"fmt"
	"sort"

	boom "github.com/tylertreat/BoomFilters"
)

// JoinPredicate names the two join-field expressions and the comparison
// operator between them (spec section 4.6).
type JoinPredicate struct {
	LeftField  Expr
	Op         BoolOp
	RightField Expr
}

// ThetaJoin is the general theta hash-join of spec section 4.6: both
// children are drained into hash tables keyed on their join field, and
// candidate bucket pairs are enumerated through an explicit (i,j,a,b)
// cursor, operator-aware so enumeration work is proportional to the
// actual join result. Grounded on the teacher's join_op.go for the overall
// operator shape (Descriptor is the merge of both children, drain-then-
// iterate structure); the teacher itself only implements sort-merge
// equijoin, so the bucket/cursor algorithm below follows spec section 4.6
// directly, since it has no teacher precedent.
type ThetaJoin struct {
	baseOperator
	pred JoinPredicate
	desc *TupleDesc

	leftBuckets  map[Field][]*Tuple
	rightBuckets map[Field][]*Tuple
	k1           []Field
	k2           []Field
	jLo, jHi     []int // per-i range into k2; for Eq, jLo[i]==i, jHi[i]==i+1

	built   bool
	i, j, a, b int
}

// NewThetaJoin constructs a join of left and right under pred.
func NewThetaJoin(pred JoinPredicate, left, right Operator) *ThetaJoin {
	hj := &ThetaJoin{pred: pred}
	hj.children = []Operator{left, right}
	hj.desc = left.Descriptor().merge(right.Descriptor())
	return hj
}

func (hj *ThetaJoin) Descriptor() *TupleDesc { return hj.desc }

func (hj *ThetaJoin) Open(tid TransactionID) error {
	hj.tid = tid
	if err := hj.children[0].Open(tid); err != nil {
		return err
	}
	if err := hj.children[1].Open(tid); err != nil {
		return err
	}
	hj.built = false
	hj.i, hj.j, hj.a, hj.b = 0, 0, 0, 0
	return nil
}

func (hj *ThetaJoin) Close() error {
	hj.leftBuckets, hj.rightBuckets = nil, nil
	hj.k1, hj.k2, hj.jLo, hj.jHi = nil, nil, nil, nil
	if err := hj.children[0].Close(); err != nil {
		return err
	}
	return hj.children[1].Close()
}

// Rewind resets enumeration indices but keeps the hash tables (spec
// section 4.6).
func (hj *ThetaJoin) Rewind() error {
	hj.i, hj.j, hj.a, hj.b = 0, 0, 0, 0
	return nil
}

func drainBuckets(op Operator, expr Expr) (map[Field][]*Tuple, error) {
	buckets := make(map[Field][]*Tuple)
	for {
		t, err := op.Next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			return buckets, nil
		}
		key, err := expr.EvalExpr(t)
		if err != nil {
			return nil, err
		}
		buckets[key] = append(buckets[key], t)
	}
}

func fieldBytes(f Field) []byte {
	switch v := f.(type) {
	case IntField:
		return []byte(fmt.Sprintf("i:%d", v.Value))
	case StringField:
		return []byte("s:" + v.Value)
	}
	return nil
}

func sortFields(fields []Field) {
	sort.Slice(fields, func(a, b int) bool {
		order, _ := compareFields(fields[a], fields[b])
		return order == OrderedLessThan
	})
}

// build drains both children and prepares the (i,j,a,b) cursor bounds, per
// spec section 4.6 steps 1-4.
func (hj *ThetaJoin) build() error {
	left, err := drainBuckets(hj.children[0], hj.pred.LeftField)
	if err != nil {
		return err
	}
	right, err := drainBuckets(hj.children[1], hj.pred.RightField)
	if err != nil {
		return err
	}
	hj.leftBuckets, hj.rightBuckets = left, right

	if hj.pred.Op == OpEq {
		// Bloom-prefilter the key intersection (DOMAIN STACK): probe each
		// left key against a Bloom filter built over the right side's keys
		// before the exact map lookup, so a wide non-matching key range
		// is rejected without touching the right hash table. The exact map
		// membership check below remains authoritative.
		rightFilter := boom.NewBloomFilter(uint(len(right))+1, 0.01)
		for k := range right {
			rightFilter.Add(fieldBytes(k))
		}
		shared := make([]Field, 0)
		for k := range left {
			if !rightFilter.Test(fieldBytes(k)) {
				continue
			}
			if _, ok := right[k]; ok {
				shared = append(shared, k)
			}
		}
		sortFields(shared)
		hj.k1 = shared
		hj.k2 = shared
		hj.jLo = make([]int, len(shared))
		hj.jHi = make([]int, len(shared))
		for i := range shared {
			hj.jLo[i] = i
			hj.jHi[i] = i + 1
		}
		return nil
	}

	k1 := make([]Field, 0, len(left))
	for k := range left {
		k1 = append(k1, k)
	}
	k2 := make([]Field, 0, len(right))
	for k := range right {
		k2 = append(k2, k)
	}
	sortFields(k1)
	sortFields(k2)
	hj.k1, hj.k2 = k1, k2
	hj.jLo = make([]int, len(k1))
	hj.jHi = make([]int, len(k1))

	for i, lv := range k1 {
		switch hj.pred.Op {
		case OpGt, OpGte:
			// K2 ascending: predicate true for a prefix [0, cutoff).
			cutoff := 0
			for cutoff < len(k2) && lv.EvalPred(k2[cutoff], hj.pred.Op) {
				cutoff++
			}
			hj.jLo[i], hj.jHi[i] = 0, cutoff
		case OpLt, OpLte:
			// K2 ascending: predicate true for a suffix [lo, len(k2)).
			lo := 0
			for lo < len(k2) && !lv.EvalPred(k2[lo], hj.pred.Op) {
				lo++
			}
			hj.jLo[i], hj.jHi[i] = lo, len(k2)
		case OpNeq:
			hj.jLo[i], hj.jHi[i] = 0, len(k2)
		default:
			hj.jLo[i], hj.jHi[i] = 0, len(k2)
		}
	}
	return nil
}

// Next advances the (i,j,a,b) cursor: innermost b, then a, then j, then i.
func (hj *ThetaJoin) Next() (*Tuple, error) {
	if !hj.built {
		if err := hj.build(); err != nil {
			return nil, err
		}
		hj.built = true
	}

	for hj.i < len(hj.k1) {
		if hj.j < hj.jLo[hj.i] {
			hj.j, hj.a, hj.b = hj.jLo[hj.i], 0, 0
		}
		if hj.j >= hj.jHi[hj.i] {
			hj.i++
			hj.j, hj.a, hj.b = 0, 0, 0
			continue
		}
		if (hj.pred.Op == OpNeq || hj.pred.Op == OpLike) && !hj.k1[hj.i].EvalPred(hj.k2[hj.j], hj.pred.Op) {
			hj.j++
			hj.a, hj.b = 0, 0
			continue
		}
		leftBucket := hj.leftBuckets[hj.k1[hj.i]]
		if hj.a >= len(leftBucket) {
			hj.j++
			hj.a, hj.b = 0, 0
			continue
		}
		rightBucket := hj.rightBuckets[hj.k2[hj.j]]
		if hj.b >= len(rightBucket) {
			hj.a++
			hj.b = 0
			continue
		}
		t1, t2 := leftBucket[hj.a], rightBucket[hj.b]
		hj.b++
		return joinTuples(t1, t2), nil
	}
	return nil, nil
}
