package coredb

// Delete is Insert's mirror: drains its child, deleting every tuple from
// file, and emits (count) once (spec section 4.5).
type Delete struct {
	baseOperator
	file DBFile
	desc *TupleDesc
	done bool
}

func NewDelete(file DBFile, child Operator) *Delete {
	d := &Delete{
		file: file,
		desc: &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}},
	}
	d.children = []Operator{child}
	return d
}

func (d *Delete) Descriptor() *TupleDesc { return d.desc }

func (d *Delete) Open(tid TransactionID) error {
	d.tid = tid
	d.done = false
	return d.children[0].Open(tid)
}

func (d *Delete) Next() (*Tuple, error) {
	if d.done {
		return nil, nil
	}
	count := int64(0)
	for {
		t, err := d.children[0].Next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		if _, err := d.file.deleteTuple(d.tid, t); err != nil {
			return nil, err
		}
		count++
	}
	d.done = true
	return &Tuple{Desc: *d.desc, Fields: []Field{IntField{Value: count}}}, nil
}

func (d *Delete) Close() error { return d.children[0].Close() }

func (d *Delete) Rewind() error {
	d.done = false
	return d.children[0].Rewind()
}
