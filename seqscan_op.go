package coredb

// SeqScan sequentially scans a table's HeapFile (spec section 4.5). Each
// emitted tuple's descriptor has field names prefixed alias.field (or
// null.field if alias is ""), matching the teacher's general operator
// shape (Descriptor()/Iterator(tid) pair) adapted to the explicit
// Open/Next/Close/Rewind contract.
type SeqScan struct {
	baseOperator
	tableID int
	file    DBFile
	alias   string
	desc    *TupleDesc

	iter func() (*Tuple, error)
}

// NewSeqScan constructs a scan of tableID's backing file, labeling every
// emitted tuple's fields with alias (or "null" if alias is empty).
func NewSeqScan(tableID int, file DBFile, alias string) *SeqScan {
	if alias == "" {
		alias = "null"
	}
	return &SeqScan{
		tableID: tableID,
		file:    file,
		alias:   alias,
		desc:    file.Descriptor().setTableAlias(alias),
	}
}

func (s *SeqScan) Descriptor() *TupleDesc { return s.desc }

func (s *SeqScan) Open(tid TransactionID) error {
	s.tid = tid
	iter, err := s.file.Iterator(tid)
	if err != nil {
		return err
	}
	s.iter = iter
	return nil
}

func (s *SeqScan) Next() (*Tuple, error) {
	t, err := s.iter()
	if err != nil || t == nil {
		return nil, err
	}
	out := &Tuple{Desc: *s.desc, Fields: t.Fields, Rid: t.Rid}
	return out, nil
}

func (s *SeqScan) Close() error {
	s.iter = nil
	return nil
}

// Rewind restarts the scan from page 0 (spec section 4.5).
func (s *SeqScan) Rewind() error {
	return s.Open(s.tid)
}
