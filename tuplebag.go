package coredb

import "github.com/google/uuid"

// WorkerID identifies a worker in a distributed query (spec section 4.8).
// google/uuid grounds this the way the exchange layer needs stable,
// collision-free identifiers without a central allocator.
type WorkerID = uuid.UUID

// TupleBag is the opaque wire message shipped across a shuffle or collect
// exchange edge (spec section 6). The concrete transport framing is left
// to whatever session layer carries it; TupleBag only carries the
// payload and the end-of-stream flag.
type TupleBag struct {
	ID             uuid.UUID
	OperatorID     uuid.UUID
	SourceWorkerID WorkerID
	TupleDesc      *TupleDesc
	Tuples         []*Tuple
	IsEOS          bool
}

// NewTupleBag builds a non-EOS bag carrying tuples.
func NewTupleBag(operatorID uuid.UUID, source WorkerID, desc *TupleDesc, tuples []*Tuple) *TupleBag {
	return &TupleBag{
		ID:             uuid.New(),
		OperatorID:     operatorID,
		SourceWorkerID: source,
		TupleDesc:      desc,
		Tuples:         tuples,
	}
}

// NewEOSBag builds the zero-tuple end-of-stream sentinel bag (spec section
// 4.8).
func NewEOSBag(operatorID uuid.UUID, source WorkerID, desc *TupleDesc) *TupleBag {
	bag := NewTupleBag(operatorID, source, desc, nil)
	bag.IsEOS = true
	return bag
}

// Batching constants shared by ShuffleProducer and CollectProducer (spec
// section 6): implementation-defined but fixed per build.
const (
	TupleBagMinSize = 16
	TupleBagMaxSize = 256
	TupleBagMaxMS   = 100
)
