package coredb

// Insert drains its child, inserting every tuple through the BufferPool,
// and emits exactly one output tuple: (count). A second Next call returns
// end-of-stream (spec section 4.5). Ported from the teacher's
// insert_op.go, adapted to the explicit iterator contract.
type Insert struct {
	baseOperator
	file DBFile
	bp   *BufferPool
	desc *TupleDesc
	done bool
}

func NewInsert(bp *BufferPool, file DBFile, child Operator) *Insert {
	i := &Insert{
		file: file,
		bp:   bp,
		desc: &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}},
	}
	i.children = []Operator{child}
	return i
}

func (i *Insert) Descriptor() *TupleDesc { return i.desc }

func (i *Insert) Open(tid TransactionID) error {
	i.tid = tid
	i.done = false
	return i.children[0].Open(tid)
}

func (i *Insert) Next() (*Tuple, error) {
	if i.done {
		return nil, nil
	}
	count := int64(0)
	for {
		t, err := i.children[0].Next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		if _, err := i.file.insertTuple(i.tid, t); err != nil {
			return nil, err
		}
		count++
	}
	i.done = true
	return &Tuple{Desc: *i.desc, Fields: []Field{IntField{Value: count}}}, nil
}

func (i *Insert) Close() error { return i.children[0].Close() }

func (i *Insert) Rewind() error {
	i.done = false
	return i.children[0].Rewind()
}
