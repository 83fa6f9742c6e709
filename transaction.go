package coredb

import (
	"errors"
	"math/rand"
	"sync/atomic"
	"time"
)

// TransactionID identifies a transaction. Spec section 3 requires it be a
// fresh, monotonically increasing id; kept as a plain counter rather than
// a github.com/google/uuid value (used instead for WorkerID/TupleBag ids,
// see tuplebag.go) since the lock pool's wait-for graph and the deadlock
// tests rely on a total, monotone order across transactions.
type TransactionID int64

var nextTID int64

// NewTID mints a fresh TransactionID.
func NewTID() TransactionID {
	return TransactionID(atomic.AddInt64(&nextTID, 1))
}

// abortJitter bounds the random pause RunTransaction sleeps after a
// self-abort, per spec section 5: "the implementation sleeps a small
// random jitter before returning control so a retrying transaction is
// unlikely to re-collide."
const abortJitter = 10 * time.Millisecond

// RunTransaction is the transaction driver spec sections 5/7 describe:
// begin tid, run fn against it, commit on success. TransactionAbortedError
// is the only cancellation signal fn may return (spec section 7); the
// driver catches it, calls TransactionComplete(tid, false), sleeps a small
// random jitter so a caller that retries is unlikely to re-collide with
// the same holder, and returns the error. Any other error also aborts the
// transaction but is returned without a jitter sleep, since it isn't a
// deadlock retry signal.
func RunTransaction(bp *BufferPool, fn func(tid TransactionID) error) error {
	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		return err
	}
	err := fn(tid)
	if err == nil {
		bp.TransactionComplete(tid, true)
		return nil
	}
	bp.TransactionComplete(tid, false)
	var aborted TransactionAbortedError
	if errors.As(err, &aborted) {
		time.Sleep(time.Duration(rand.Int63n(int64(abortJitter))))
	}
	return err
}
