package coredb

// Aggregate wraps an Aggregator: on the first Next call it drains its
// child entirely, then re-emits the aggregator's iterator (spec section
// 4.7). Its output TupleDesc names the aggregate column op(childFieldName).
type Aggregate struct {
	baseOperator
	agg   Aggregator
	desc  *TupleDesc
	drawn bool
	iter  func() (*Tuple, error)
}

// NewAggregate builds an Aggregate over child, where op names the
// aggregate function and childFieldName is used only to label the output
// column (the aggregator itself already knows which field index to read).
func NewAggregate(agg Aggregator, op AggOp, childFieldName string, hasGroupBy bool, gbFieldName string, gbtype DBType, child Operator) *Aggregate {
	label := op.String() + "(" + childFieldName + ")"
	var desc *TupleDesc
	if hasGroupBy {
		desc = &TupleDesc{Fields: []FieldType{
			{Fname: gbFieldName, Ftype: gbtype},
			{Fname: label, Ftype: IntType},
		}}
	} else {
		desc = &TupleDesc{Fields: []FieldType{{Fname: label, Ftype: IntType}}}
	}
	a := &Aggregate{agg: agg, desc: desc}
	a.children = []Operator{child}
	return a
}

func (a *Aggregate) Descriptor() *TupleDesc { return a.desc }

func (a *Aggregate) Open(tid TransactionID) error {
	a.tid = tid
	a.drawn = false
	a.iter = nil
	a.agg.Reset()
	return a.children[0].Open(tid)
}

func (a *Aggregate) Next() (*Tuple, error) {
	if !a.drawn {
		for {
			t, err := a.children[0].Next()
			if err != nil {
				return nil, err
			}
			if t == nil {
				break
			}
			a.agg.AddTuple(t)
		}
		a.iter = a.agg.Iterator()
		a.drawn = true
	}
	t, err := a.iter()
	if err != nil || t == nil {
		return nil, err
	}
	return &Tuple{Desc: *a.desc, Fields: t.Fields}, nil
}

func (a *Aggregate) Close() error { return a.children[0].Close() }

func (a *Aggregate) Rewind() error {
	a.drawn = false
	a.iter = nil
	a.agg.Reset()
	return a.children[0].Rewind()
}
