package coredb

// Filter propagates only tuples for which its predicate is true (spec
// section 4.5). Ported from the teacher's filter_op.go (a left/right Expr
// pair plus a BoolOp), adapted to the explicit iterator contract.
type Filter struct {
	baseOperator
	op    BoolOp
	left  Expr
	right Expr
}

// NewFilter constructs a filter comparing left against right with op, over
// the tuples produced by child.
func NewFilter(left Expr, op BoolOp, right Expr, child Operator) *Filter {
	f := &Filter{op: op, left: left, right: right}
	f.children = []Operator{child}
	return f
}

func (f *Filter) Descriptor() *TupleDesc { return f.children[0].Descriptor() }

func (f *Filter) Open(tid TransactionID) error {
	f.tid = tid
	return f.children[0].Open(tid)
}

func (f *Filter) Next() (*Tuple, error) {
	for {
		t, err := f.children[0].Next()
		if err != nil || t == nil {
			return nil, err
		}
		leftVal, err := f.left.EvalExpr(t)
		if err != nil {
			return nil, err
		}
		rightVal, err := f.right.EvalExpr(t)
		if err != nil {
			return nil, err
		}
		if leftVal.EvalPred(rightVal, f.op) {
			return t, nil
		}
	}
}

func (f *Filter) Close() error { return f.children[0].Close() }

func (f *Filter) Rewind() error { return f.children[0].Rewind() }
