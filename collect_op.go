package coredb

import (
	"time"

	"github.com/google/uuid"
)

// CollectProducer runs on every non-root worker: it opens child, batches
// its tuples, and sends them to the single CollectConsumer on the root
// worker (spec section 4.8).
type CollectProducer struct {
	exchangeProducer
	child   Operator
	session Session
	desc    *TupleDesc
}

func NewCollectProducer(operatorID uuid.UUID, source WorkerID, session Session, child Operator) *CollectProducer {
	p := &CollectProducer{
		exchangeProducer: exchangeProducer{operatorID: operatorID, source: source, done: make(chan error, 1)},
		child:            child,
		session:          session,
		desc:             child.Descriptor(),
	}
	p.children = []Operator{child}
	return p
}

func (p *CollectProducer) Descriptor() *TupleDesc { return p.desc }

func (p *CollectProducer) Open(tid TransactionID) error {
	p.tid = tid
	p.started = false
	p.finished = false
	return p.child.Open(tid)
}

func (p *CollectProducer) write() {
	var buf []*Tuple
	lastFlush := time.Now()
	for {
		t, err := p.child.Next()
		if err != nil {
			p.done <- err
			return
		}
		if t == nil {
			if len(buf) > 0 {
				if err := flushBuffer(p.session, p.operatorID, p.source, p.desc, buf, false); err != nil {
					p.done <- err
					return
				}
			}
			p.done <- flushBuffer(p.session, p.operatorID, p.source, p.desc, nil, true)
			return
		}
		buf = append(buf, t)
		if shouldFlush(len(buf), lastFlush) {
			if err := flushBuffer(p.session, p.operatorID, p.source, p.desc, buf, false); err != nil {
				p.done <- err
				return
			}
			buf = nil
			lastFlush = time.Now()
		}
	}
}

// Next joins the writer goroutine (spec section 5): it blocks until the
// child is exhausted and every buffer has been flushed, then reports
// end-of-stream.
func (p *CollectProducer) Next() (*Tuple, error) {
	if !p.started {
		p.started = true
		go p.write()
	}
	return p.join()
}

func (p *CollectProducer) Close() error { return p.child.Close() }

func (p *CollectProducer) Rewind() error {
	return NewGoDBError(IllegalOperationError, "collect producer cannot rewind a network stream")
}

// CollectConsumer runs on the root worker, fanning in from numProducers
// CollectProducers over a single inbound queue (spec section 4.8).
type CollectConsumer struct {
	exchangeConsumer
}

func NewCollectConsumer(desc *TupleDesc, inbound <-chan *TupleBag, numProducers int) *CollectConsumer {
	return &CollectConsumer{exchangeConsumer: newExchangeConsumer(desc, inbound, numProducers)}
}

func (c *CollectConsumer) Next() (*Tuple, error) { return c.fetchNext() }
