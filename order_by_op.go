package coredb

import "sort"

// OrderBy and Limit are the two auxiliary operators supplementing the
// spec's core operator set (present in the teacher's order_by_op.go and
// limit_op.go but not named by the spec directly); both are adapted here
// to the explicit Open/Next/Close/Rewind contract and folded into one
// file since neither carries enough weight to need its own.

// OrderBy blocks on its first Next, materializing and sorting every child
// tuple, then replays them one at a time. Ported from the teacher's
// order_by_op.go and its sortTuples helper.
type OrderBy struct {
	baseOperator
	orderBy   []Expr
	ascending []bool

	all   []*Tuple
	count int
}

func NewOrderBy(orderByFields []Expr, child Operator, ascending []bool) (*OrderBy, error) {
	o := &OrderBy{orderBy: orderByFields, ascending: ascending}
	o.children = []Operator{child}
	return o, nil
}

func (o *OrderBy) Descriptor() *TupleDesc { return o.children[0].Descriptor() }

func (o *OrderBy) Open(tid TransactionID) error {
	o.tid = tid
	o.all = nil
	o.count = 0
	return o.children[0].Open(tid)
}

func (o *OrderBy) Next() (*Tuple, error) {
	if o.all == nil {
		for {
			t, err := o.children[0].Next()
			if err != nil {
				return nil, err
			}
			if t == nil {
				break
			}
			o.all = append(o.all, t)
		}
		if o.all == nil {
			o.all = []*Tuple{}
		}
		sort.Sort(sortTuples{orderBy: o.orderBy, ascending: o.ascending, all: o.all})
	}
	if o.count >= len(o.all) {
		return nil, nil
	}
	t := o.all[o.count]
	o.count++
	return t, nil
}

func (o *OrderBy) Close() error { return o.children[0].Close() }

func (o *OrderBy) Rewind() error {
	o.count = 0
	return nil
}

type sortTuples struct {
	orderBy   []Expr
	ascending []bool
	all       []*Tuple
}

func (s sortTuples) Len() int      { return len(s.all) }
func (s sortTuples) Swap(a, b int) { s.all[a], s.all[b] = s.all[b], s.all[a] }

func (s sortTuples) Less(a, b int) bool {
	tupleA, tupleB := s.all[a], s.all[b]
	for i, expr := range s.orderBy {
		valA, _ := expr.EvalExpr(tupleA)
		valB, _ := expr.EvalExpr(tupleB)
		if valA.EvalPred(valB, OpEq) {
			continue
		}
		if s.ascending[i] {
			return valA.EvalPred(valB, OpLt)
		}
		return !valA.EvalPred(valB, OpLt)
	}
	return false
}

// Limit passes through at most n tuples from its child, where n is the
// (tuple-independent) evaluation of limitExpr. Ported from the teacher's
// limit_op.go.
type Limit struct {
	baseOperator
	limitExpr Expr
	count     int
}

func NewLimit(limitExpr Expr, child Operator) *Limit {
	l := &Limit{limitExpr: limitExpr}
	l.children = []Operator{child}
	return l
}

func (l *Limit) Descriptor() *TupleDesc { return l.children[0].Descriptor() }

func (l *Limit) Open(tid TransactionID) error {
	l.tid = tid
	l.count = 0
	return l.children[0].Open(tid)
}

func (l *Limit) Next() (*Tuple, error) {
	n, err := l.limitExpr.EvalExpr(nil)
	if err != nil {
		return nil, err
	}
	limit := int(n.(IntField).Value)
	if l.count >= limit {
		return nil, nil
	}
	t, err := l.children[0].Next()
	if err != nil || t == nil {
		return nil, err
	}
	l.count++
	return t, nil
}

func (l *Limit) Close() error { return l.children[0].Close() }

func (l *Limit) Rewind() error {
	l.count = 0
	return l.children[0].Rewind()
}
