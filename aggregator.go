package coredb

// AggOp names the aggregation function (spec section 4.7).
type AggOp int

const (
	AggMin AggOp = iota
	AggMax
	AggSum
	AggAvg
	AggCount
)

func (op AggOp) String() string {
	switch op {
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggCount:
		return "count"
	}
	return "unknown"
}

// NoGrouping is the sentinel group-by field index meaning "one group, no
// key" (spec section 4.7).
const NoGrouping = -1

// groupState accumulates one group's running aggregate. Grounded on the
// teacher's agg_state.go per-op state machines (MinAggState, MaxAggState,
// SumAggState, AvgAggState, CountAggState), merged into one struct keyed by
// op instead of one type per op, since spec section 4.7 keys accumulation
// by group rather than by a single query-wide field.
type groupState struct {
	count int64
	sum   int64
	min   Field
	max   Field
}

func (s *groupState) add(v Field) {
	s.count++
	if iv, ok := v.(IntField); ok {
		s.sum += iv.Value
	}
	if s.min == nil || v.EvalPred(s.min, OpLt) {
		s.min = v
	}
	if s.max == nil || v.EvalPred(s.max, OpGt) {
		s.max = v
	}
}

func (s *groupState) finalize(op AggOp) Field {
	switch op {
	case AggMin:
		return s.min
	case AggMax:
		return s.max
	case AggSum:
		return IntField{Value: s.sum}
	case AggAvg:
		return IntField{Value: s.sum / s.count}
	case AggCount:
		return IntField{Value: s.count}
	}
	return IntField{Value: 0}
}

// Aggregator is the common contract for IntegerAggregator and
// StringAggregator (spec section 4.7).
type Aggregator interface {
	AddTuple(t *Tuple)
	Iterator() func() (*Tuple, error)
	Descriptor() *TupleDesc
	// Reset discards every group's accumulated state so the aggregator can
	// be re-driven from a fresh child scan (Aggregate.Open/Rewind), the
	// same way Project/OrderBy/ThetaJoin clear their own accumulated state
	// on re-entry.
	Reset()
}

// IntegerAggregator computes MIN/MAX/SUM/AVG/COUNT over an integer field,
// optionally grouped by gbfield.
type IntegerAggregator struct {
	gbfield int
	gbtype  DBType
	afield  int
	op      AggOp

	groups []Field // insertion order of group keys (NoGrouping: unused)
	seen   map[Field]struct{}
	states map[Field]*groupState
	noGroupState *groupState
	sawAny bool
}

func NewIntegerAggregator(gbfield int, gbtype DBType, afield int, op AggOp) *IntegerAggregator {
	return &IntegerAggregator{
		gbfield: gbfield,
		gbtype:  gbtype,
		afield:  afield,
		op:      op,
		seen:    make(map[Field]struct{}),
		states:  make(map[Field]*groupState),
	}
}

// Reset clears all accumulated groups so the aggregator can be re-driven
// from a fresh child scan.
func (a *IntegerAggregator) Reset() {
	a.groups = nil
	a.seen = make(map[Field]struct{})
	a.states = make(map[Field]*groupState)
	a.noGroupState = nil
	a.sawAny = false
}

func (a *IntegerAggregator) AddTuple(t *Tuple) {
	a.sawAny = true
	v := t.Fields[a.afield]
	if a.gbfield == NoGrouping {
		if a.noGroupState == nil {
			a.noGroupState = &groupState{}
		}
		a.noGroupState.add(v)
		return
	}
	key := t.Fields[a.gbfield]
	st, ok := a.states[key]
	if !ok {
		st = &groupState{}
		a.states[key] = st
		a.groups = append(a.groups, key)
	}
	st.add(v)
}

func (a *IntegerAggregator) Descriptor() *TupleDesc {
	if a.gbfield == NoGrouping {
		return &TupleDesc{Fields: []FieldType{{Fname: a.op.String(), Ftype: IntType}}}
	}
	return &TupleDesc{Fields: []FieldType{
		{Fname: "groupby", Ftype: a.gbtype},
		{Fname: a.op.String(), Ftype: IntType},
	}}
}

// Iterator emits one tuple per group key (spec section 4.7). If no tuple was
// ever added, NoGrouping, and op is COUNT, emits (0) once; otherwise emits
// nothing.
func (a *IntegerAggregator) Iterator() func() (*Tuple, error) {
	desc := a.Descriptor()

	if a.gbfield == NoGrouping {
		done := false
		return func() (*Tuple, error) {
			if done {
				return nil, nil
			}
			done = true
			if !a.sawAny {
				if a.op == AggCount {
					return &Tuple{Desc: *desc, Fields: []Field{IntField{Value: 0}}}, nil
				}
				return nil, nil
			}
			return &Tuple{Desc: *desc, Fields: []Field{a.noGroupState.finalize(a.op)}}, nil
		}
	}

	idx := 0
	return func() (*Tuple, error) {
		if idx >= len(a.groups) {
			return nil, nil
		}
		key := a.groups[idx]
		idx++
		st := a.states[key]
		return &Tuple{Desc: *desc, Fields: []Field{key, st.finalize(a.op)}}, nil
	}
}

// StringAggregator supports only COUNT (spec section 4.7); constructing one
// with any other op fails immediately.
type StringAggregator struct {
	gbfield int
	gbtype  DBType
	afield  int

	groups []Field
	counts map[Field]int64
	noGroupCount int64
	sawAny       bool
}

func NewStringAggregator(gbfield int, gbtype DBType, afield int, op AggOp) (*StringAggregator, error) {
	if op != AggCount {
		return nil, NewGoDBError(IllegalOperationError, "StringAggregator supports only COUNT")
	}
	return &StringAggregator{
		gbfield: gbfield,
		gbtype:  gbtype,
		afield:  afield,
		counts:  make(map[Field]int64),
	}, nil
}

// Reset clears all accumulated counts so the aggregator can be re-driven
// from a fresh child scan.
func (a *StringAggregator) Reset() {
	a.groups = nil
	a.counts = make(map[Field]int64)
	a.noGroupCount = 0
	a.sawAny = false
}

func (a *StringAggregator) AddTuple(t *Tuple) {
	a.sawAny = true
	if a.gbfield == NoGrouping {
		a.noGroupCount++
		return
	}
	key := t.Fields[a.gbfield]
	if _, ok := a.counts[key]; !ok {
		a.groups = append(a.groups, key)
	}
	a.counts[key]++
}

func (a *StringAggregator) Descriptor() *TupleDesc {
	if a.gbfield == NoGrouping {
		return &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}}
	}
	return &TupleDesc{Fields: []FieldType{
		{Fname: "groupby", Ftype: a.gbtype},
		{Fname: "count", Ftype: IntType},
	}}
}

func (a *StringAggregator) Iterator() func() (*Tuple, error) {
	desc := a.Descriptor()

	if a.gbfield == NoGrouping {
		done := false
		return func() (*Tuple, error) {
			if done {
				return nil, nil
			}
			done = true
			if !a.sawAny {
				return &Tuple{Desc: *desc, Fields: []Field{IntField{Value: 0}}}, nil
			}
			return &Tuple{Desc: *desc, Fields: []Field{IntField{Value: a.noGroupCount}}}, nil
		}
	}

	idx := 0
	return func() (*Tuple, error) {
		if idx >= len(a.groups) {
			return nil, nil
		}
		key := a.groups[idx]
		idx++
		return &Tuple{Desc: *desc, Fields: []Field{key, IntField{Value: a.counts[key]}}}, nil
	}
}
