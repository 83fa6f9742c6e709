package coredb

import (
	"time"

	"github.com/google/uuid"
)

// Session is the transport abstraction a TupleBag is written to and read
// from (spec section 6): "the concrete framing is chosen by the
// transport ... the core treats TupleBag as an opaque value-object
// exchanged across the session boundary." ChannelSession below is the
// in-process implementation used when producer and consumer share a
// worker's memory; a networked build would satisfy the same interface
// over a session-oriented byte framer.
type Session interface {
	Send(bag *TupleBag) error
	Close() error
}

// ChannelSession carries TupleBags over a Go channel.
type ChannelSession struct {
	ch chan *TupleBag
}

// NewChannelSession builds a ChannelSession over a channel with the given
// buffer size: Send on it feeds the channel returned by Chan.
func NewChannelSession(buffer int) *ChannelSession {
	return &ChannelSession{ch: make(chan *TupleBag, buffer)}
}

func (c *ChannelSession) Send(bag *TupleBag) error {
	c.ch <- bag
	return nil
}

func (c *ChannelSession) Close() error {
	close(c.ch)
	return nil
}

func (c *ChannelSession) Chan() <-chan *TupleBag { return c.ch }

// exchangeConsumer is the shared fetchNext logic of CollectConsumer and
// ShuffleConsumer (spec section 4.8): a FIFO queue of received TupleBags
// plus a bit-set of source workers that have signalled end-of-stream.
// Grounded on no specific teacher file (parallel exchange is outside the
// teacher's retrieved lab slice); shaped directly from spec section 4.8.
type exchangeConsumer struct {
	baseOperator
	desc       *TupleDesc
	inbound    <-chan *TupleBag
	numSources int

	eosSeen    map[uuid.UUID]struct{}
	currentBag *TupleBag
	bagIdx     int
}

func newExchangeConsumer(desc *TupleDesc, inbound <-chan *TupleBag, numSources int) exchangeConsumer {
	return exchangeConsumer{
		desc:       desc,
		inbound:    inbound,
		numSources: numSources,
		eosSeen:    make(map[uuid.UUID]struct{}),
	}
}

func (c *exchangeConsumer) Descriptor() *TupleDesc { return c.desc }

func (c *exchangeConsumer) Open(tid TransactionID) error {
	c.tid = tid
	c.currentBag = nil
	c.bagIdx = 0
	c.eosSeen = make(map[uuid.UUID]struct{})
	return nil
}

// fetchNext implements spec section 4.8's ShuffleConsumer/CollectConsumer
// contract: drain the current bag; dequeue the next non-EOS bag when it's
// exhausted; block on the inbound queue when empty; return end-of-stream
// once every source's bit is set and the queue is empty.
func (c *exchangeConsumer) fetchNext() (*Tuple, error) {
	for {
		if c.currentBag != nil && c.bagIdx < len(c.currentBag.Tuples) {
			t := c.currentBag.Tuples[c.bagIdx]
			c.bagIdx++
			return t, nil
		}
		if len(c.eosSeen) >= c.numSources {
			return nil, nil
		}
		bag, ok := <-c.inbound
		if !ok {
			return nil, nil
		}
		if bag.IsEOS {
			c.eosSeen[bag.SourceWorkerID] = struct{}{}
			c.currentBag = nil
			c.bagIdx = 0
			continue
		}
		c.currentBag = bag
		c.bagIdx = 0
	}
}

func (c *exchangeConsumer) Close() error { return nil }

func (c *exchangeConsumer) Rewind() error {
	return NewGoDBError(IllegalOperationError, "exchange consumer cannot rewind a network stream")
}

// exchangeProducer is the shared writer-thread logic of CollectProducer
// and ShuffleProducer (spec section 4.8): drain the child on a dedicated
// goroutine, batch into TupleBags by the MIN_SIZE/MAX_SIZE/MAX_MS rules,
// and flush a zero-tuple TupleBag as end-of-stream once the child is
// exhausted. fetchNext (here, Next) joins that goroutine (spec section 5).
type exchangeProducer struct {
	baseOperator
	operatorID uuid.UUID
	source     WorkerID

	started  bool
	finished bool
	done     chan error
}

// join blocks until the writer goroutine signals completion, then caches
// that result: once the writer has reported end-of-stream (or an error),
// every later call returns (nil, nil) immediately instead of re-reading
// p.done, which only ever carries one value and would otherwise hang
// forever on a repeat call, the same way Insert/Delete guard a repeat
// Next with a done bool.
func (p *exchangeProducer) join() (*Tuple, error) {
	if p.finished {
		return nil, nil
	}
	err := <-p.done
	p.finished = true
	if err != nil {
		return nil, err
	}
	return nil, nil
}

// flushBuffer sends buf as one TupleBag over session, or, when eos is set,
// the zero-tuple end-of-stream bag instead (buf is then ignored). Resetting
// the buffer and its flush timer is left to the caller.
func flushBuffer(session Session, operatorID uuid.UUID, source WorkerID, desc *TupleDesc, buf []*Tuple, eos bool) error {
	var bag *TupleBag
	if eos {
		bag = NewEOSBag(operatorID, source, desc)
	} else {
		bag = NewTupleBag(operatorID, source, desc, buf)
	}
	return session.Send(bag)
}

func shouldFlush(bufLen int, lastFlush time.Time) bool {
	if bufLen >= TupleBagMaxSize {
		return true
	}
	return bufLen >= TupleBagMinSize && time.Since(lastFlush) >= TupleBagMaxMS*time.Millisecond
}
