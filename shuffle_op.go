package coredb

import (
	"time"

	"github.com/google/uuid"
)

// ShuffleProducer runs on every worker: it partitions each child tuple
// through a PartitionFunction and routes it to the Session responsible
// for that partition, batching per destination with the same rules as
// CollectProducer (spec section 4.8).
type ShuffleProducer struct {
	exchangeProducer
	child     Operator
	sessions  []Session // one per destination partition
	partition PartitionFunction
	desc      *TupleDesc
}

func NewShuffleProducer(operatorID uuid.UUID, source WorkerID, sessions []Session, partition PartitionFunction, child Operator) *ShuffleProducer {
	p := &ShuffleProducer{
		exchangeProducer: exchangeProducer{operatorID: operatorID, source: source, done: make(chan error, 1)},
		child:            child,
		sessions:         sessions,
		partition:        partition,
		desc:             child.Descriptor(),
	}
	p.children = []Operator{child}
	return p
}

func (p *ShuffleProducer) Descriptor() *TupleDesc { return p.desc }

func (p *ShuffleProducer) Open(tid TransactionID) error {
	p.tid = tid
	p.started = false
	p.finished = false
	return p.child.Open(tid)
}

func (p *ShuffleProducer) write() {
	n := len(p.sessions)
	buffers := make([][]*Tuple, n)
	lastFlush := make([]time.Time, n)
	now := time.Now()
	for i := range lastFlush {
		lastFlush[i] = now
	}

	flushOne := func(i int, eos bool) error {
		if err := flushBuffer(p.sessions[i], p.operatorID, p.source, p.desc, buffers[i], eos); err != nil {
			return err
		}
		buffers[i] = nil
		lastFlush[i] = time.Now()
		return nil
	}

	for {
		t, err := p.child.Next()
		if err != nil {
			p.done <- err
			return
		}
		if t == nil {
			for i := 0; i < n; i++ {
				if len(buffers[i]) > 0 {
					if err := flushOne(i, false); err != nil {
						p.done <- err
						return
					}
				}
				if err := flushOne(i, true); err != nil {
					p.done <- err
					return
				}
			}
			p.done <- nil
			return
		}

		idx, err := p.partition.Partition(t, n)
		if err != nil {
			p.done <- err
			return
		}
		buffers[idx] = append(buffers[idx], t)
		if shouldFlush(len(buffers[idx]), lastFlush[idx]) {
			if err := flushOne(idx, false); err != nil {
				p.done <- err
				return
			}
		}
	}
}

// Next joins the writer goroutine, same contract as CollectProducer.Next.
func (p *ShuffleProducer) Next() (*Tuple, error) {
	if !p.started {
		p.started = true
		go p.write()
	}
	return p.join()
}

func (p *ShuffleProducer) Close() error { return p.child.Close() }

func (p *ShuffleProducer) Rewind() error {
	return NewGoDBError(IllegalOperationError, "shuffle producer cannot rewind a network stream")
}

// ShuffleConsumer runs on the worker responsible for one partition,
// receiving batches from every source worker's ShuffleProducer (spec
// section 4.8).
type ShuffleConsumer struct {
	exchangeConsumer
}

func NewShuffleConsumer(desc *TupleDesc, inbound <-chan *TupleBag, numSources int) *ShuffleConsumer {
	return &ShuffleConsumer{exchangeConsumer: newExchangeConsumer(desc, inbound, numSources)}
}

func (c *ShuffleConsumer) Next() (*Tuple, error) { return c.fetchNext() }
