package coredb

// Project evaluates selectFields against each child tuple and relabels the
// results as outputNames, optionally suppressing duplicates (tracked via
// tupleKey). Ported from the teacher's project_op.go, adapted to the
// explicit Open/Next/Close/Rewind contract.
type Project struct {
	baseOperator
	selectFields []Expr
	outputNames  []string
	distinct     bool
	desc         *TupleDesc
	seen         map[string]struct{}
}

func NewProject(selectFields []Expr, outputNames []string, distinct bool, child Operator) (*Project, error) {
	if len(selectFields) != len(outputNames) {
		return nil, NewGoDBError(IllegalOperationError, "project: selectFields and outputNames must be the same length")
	}
	fields := make([]FieldType, len(selectFields))
	for i, e := range selectFields {
		ft := e.GetExprType()
		ft.Fname = outputNames[i]
		fields[i] = ft
	}
	p := &Project{
		selectFields: selectFields,
		outputNames:  outputNames,
		distinct:     distinct,
		desc:         &TupleDesc{Fields: fields},
	}
	p.children = []Operator{child}
	return p, nil
}

func (p *Project) Descriptor() *TupleDesc { return p.desc }

func (p *Project) Open(tid TransactionID) error {
	p.tid = tid
	if p.distinct {
		p.seen = make(map[string]struct{})
	}
	return p.children[0].Open(tid)
}

func (p *Project) Next() (*Tuple, error) {
	for {
		t, err := p.children[0].Next()
		if err != nil || t == nil {
			return nil, err
		}

		out := &Tuple{Desc: *p.desc, Fields: make([]Field, len(p.selectFields))}
		for i, e := range p.selectFields {
			v, err := e.EvalExpr(t)
			if err != nil {
				return nil, err
			}
			out.Fields[i] = v
		}

		if p.distinct {
			key := out.tupleKey()
			if _, ok := p.seen[key]; ok {
				continue
			}
			p.seen[key] = struct{}{}
		}
		return out, nil
	}
}

func (p *Project) Close() error { return p.children[0].Close() }

func (p *Project) Rewind() error {
	if p.distinct {
		p.seen = make(map[string]struct{})
	}
	return p.children[0].Rewind()
}
