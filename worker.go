package coredb

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Coordinator is the control-plane contact a Worker pings (spec section
// 4.8). It carries only the liveness ping; there is no call for
// acknowledging a received plan. A networked build backs this with an RPC
// client; tests back it with an in-process fake.
type Coordinator interface {
	Ping(id WorkerID) error
}

// Plan is a query plan assigned to a worker: a root Operator plus the
// table-id remapping needed to localise it (spec section 4.8's
// "localise plan: replace table references with local table ids").
type Plan struct {
	ID         uuid.UUID
	Root       Operator
	TableAlias map[int]int // remote table id -> local table id
	Consumers  []*ShuffleConsumer
	Collector  *CollectConsumer
}

// WorkerState names where a Worker sits in its lifecycle (spec section 4.8).
type WorkerState int

const (
	WorkerIdle WorkerState = iota
	WorkerAwaitingStart
	WorkerRunning
)

// maxLivenessRetries is how many consecutive failed pings a Worker
// tolerates before shutting itself down (spec section 4.8).
const maxLivenessRetries = 3

// Worker runs the lifecycle of spec section 4.8: receive plan, await
// "start", localise, execute (the plan's root producer sends its own
// end-of-stream), clear queues, await the next plan. Receipt of a plan is
// logged but not acknowledged to the coordinator. A liveness timer pings the coordinator; after three
// consecutive failures the worker shuts itself down. Grounded on no
// specific teacher file (the parallel exchange and its worker driver are
// outside the teacher's retrieved lab slice); the lifecycle and the
// ticker-driven liveness check follow the teacher's general
// goroutine+channel idiom for long-lived background loops (buffer_pool.go,
// lock_pool.go use the same mutex/condvar style for coordinating
// concurrent access, generalised here to a network-facing control loop).
type Worker struct {
	ID          WorkerID
	ctx         *DbContext
	coordinator Coordinator

	state   WorkerState
	current *Plan

	start    chan struct{}
	shutdown chan struct{}
}

func NewWorker(ctx *DbContext, coordinator Coordinator) *Worker {
	return &Worker{
		ID:          uuid.New(),
		ctx:         ctx,
		coordinator: coordinator,
		start:       make(chan struct{}, 1),
		shutdown:    make(chan struct{}),
	}
}

// ReceivePlan accepts a plan from the coordinator and waits for "start"
// before localising and executing it. It logs the receipt; it sends no
// acknowledgement to the coordinator.
func (w *Worker) ReceivePlan(tid TransactionID, plan *Plan) error {
	w.state = WorkerIdle
	w.current = plan
	log.Debug().Str("worker", w.ID.String()).Str("plan", plan.ID.String()).Msg("plan received, acknowledging")

	w.state = WorkerAwaitingStart
	select {
	case <-w.start:
	case <-w.shutdown:
		return NewGoDBError(IllegalOperationError, "worker shut down while awaiting start")
	}

	w.localise(plan)
	w.state = WorkerRunning
	if err := w.execute(tid, plan); err != nil {
		return err
	}
	w.clearQueues(plan)
	w.state = WorkerIdle
	w.current = nil
	return nil
}

// Start signals a worker awaiting "start" to begin execution (spec
// section 4.8's "start" control message).
func (w *Worker) Start() { w.start <- struct{}{} }

// localise rewrites the plan's operator tree to reference local table
// ids instead of the coordinator's remote ids (spec section 4.8): every
// SeqScan reachable from the root whose tableID has an entry in
// plan.TableAlias gets the mapped local id. A SeqScan with no entry keeps
// its id; the mapping is not checked for completeness.
func (w *Worker) localise(plan *Plan) {
	var walk func(op Operator)
	walk = func(op Operator) {
		if scan, ok := op.(*SeqScan); ok {
			if local, ok := plan.TableAlias[scan.tableID]; ok {
				scan.tableID = local
			}
		}
		for _, child := range op.Children() {
			walk(child)
		}
	}
	walk(plan.Root)
}

func (w *Worker) execute(tid TransactionID, plan *Plan) error {
	if err := plan.Root.Open(tid); err != nil {
		return err
	}
	defer plan.Root.Close()
	for {
		t, err := plan.Root.Next()
		if err != nil {
			return err
		}
		if t == nil {
			break
		}
	}
	return nil
}

// clearQueues resets the current bag, bag position, and end-of-stream set
// of every shuffle/collect consumer of the plan just executed, so the next
// plan starts clean (spec section 4.8). Bags still waiting on an inbound
// channel are not read or discarded.
func (w *Worker) clearQueues(plan *Plan) {
	for _, c := range plan.Consumers {
		c.currentBag = nil
		c.bagIdx = 0
		c.eosSeen = map[uuid.UUID]struct{}{}
	}
	if plan.Collector != nil {
		plan.Collector.currentBag = nil
		plan.Collector.bagIdx = 0
		plan.Collector.eosSeen = map[uuid.UUID]struct{}{}
	}
}

// RunLivenessLoop pings the coordinator on every tick; after
// maxLivenessRetries consecutive failures it closes shutdown and returns.
func (w *Worker) RunLivenessLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	failures := 0
	for {
		select {
		case <-ticker.C:
			if err := w.coordinator.Ping(w.ID); err != nil {
				failures++
				log.Warn().Str("worker", w.ID.String()).Int("failures", failures).Err(err).Msg("liveness ping failed")
				if failures >= maxLivenessRetries {
					log.Error().Str("worker", w.ID.String()).Msg("coordinator unreachable, shutting down")
					close(w.shutdown)
					return
				}
				continue
			}
			failures = 0
		case <-w.shutdown:
			return
		}
	}
}

// ShutdownSignal exposes the channel closed when the worker decides to
// shut itself down, so a driver loop can select on it.
func (w *Worker) ShutdownSignal() <-chan struct{} { return w.shutdown }

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
