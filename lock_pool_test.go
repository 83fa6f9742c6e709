package coredb

import (
	"sync"
	"testing"
	"time"
)

func makeLockPoolTestVars() *LockPool {
	var mu sync.Mutex
	return NewLockPool(&mu)
}

func TestLockPoolSharedThenUpgrade(t *testing.T) {
	lp := makeLockPoolTestVars()
	pid := PageID{TableID: 0, PageNumber: 0}
	tid := NewTID()

	if err := lp.Acquire(tid, pid, Shared); err != nil {
		t.Fatalf(err.Error())
	}
	if mode, ok := lp.HoldsLock(tid, pid); !ok || mode != Shared {
		t.Fatalf("expected tid to hold Shared, got %v %v", mode, ok)
	}
	if err := lp.Acquire(tid, pid, Exclusive); err != nil {
		t.Fatalf("expected sole shared holder to upgrade cleanly: %s", err.Error())
	}
	if mode, ok := lp.HoldsLock(tid, pid); !ok || mode != Exclusive {
		t.Fatalf("expected tid to hold Exclusive after upgrade, got %v %v", mode, ok)
	}
}

func TestLockPoolExclusiveBlocksShared(t *testing.T) {
	lp := makeLockPoolTestVars()
	pid := PageID{TableID: 0, PageNumber: 0}
	t1, t2 := NewTID(), NewTID()

	if err := lp.Acquire(t1, pid, Exclusive); err != nil {
		t.Fatalf(err.Error())
	}

	blocked := make(chan error, 1)
	go func() { blocked <- lp.Acquire(t2, pid, Shared) }()

	select {
	case <-blocked:
		t.Fatalf("expected t2 to block while t1 holds an exclusive lock")
	case <-time.After(50 * time.Millisecond):
	}

	lp.ReleaseLocks(t1)
	select {
	case err := <-blocked:
		if err != nil {
			t.Fatalf("expected t2 to acquire after t1 released: %s", err.Error())
		}
	case <-time.After(time.Second):
		t.Fatalf("t2 never woke up after t1 released its lock")
	}
}

// TestDeadlockDetection is scenario S5: two transactions cross-acquire two
// pages in opposite order; the cycle-detecting waiter self-aborts, and once
// its locks are released the survivor's acquire completes and its lock
// upgrade succeeds.
func TestDeadlockDetection(t *testing.T) {
	lp := makeLockPoolTestVars()
	p1 := PageID{TableID: 0, PageNumber: 0}
	p2 := PageID{TableID: 0, PageNumber: 1}
	t1, t2 := NewTID(), NewTID()

	if err := lp.Acquire(t1, p1, Shared); err != nil {
		t.Fatalf(err.Error())
	}
	if err := lp.Acquire(t2, p2, Shared); err != nil {
		t.Fatalf(err.Error())
	}

	result1 := make(chan error, 1)
	result2 := make(chan error, 1)
	go func() { result1 <- lp.Acquire(t1, p2, Exclusive) }()
	time.Sleep(20 * time.Millisecond)
	go func() { result2 <- lp.Acquire(t2, p1, Exclusive) }()

	// Only the detecting waiter returns on its own; the other stays blocked
	// until the victim's locks are released, which the transaction driver
	// does on abort (TransactionComplete(tid, false) -> ReleaseLocks).
	var err1, err2 error
	firstIsT1 := false
	select {
	case err1 = <-result1:
		firstIsT1 = true
	case err2 = <-result2:
	case <-time.After(2 * time.Second):
		t.Fatalf("neither acquire returned; deadlock not detected")
	}

	victim, survivor, survivorResult, firstErr := t2, t1, result1, err2
	if firstIsT1 {
		victim, survivor, survivorResult, firstErr = t1, t2, result2, err1
	}
	if _, ok := firstErr.(TransactionAbortedError); !ok {
		t.Fatalf("expected the first acquire to return to be the deadlock victim's abort, got %v", firstErr)
	}
	lp.ReleaseLocks(victim)

	var survivorErr error
	select {
	case survivorErr = <-survivorResult:
	case <-time.After(2 * time.Second):
		t.Fatalf("the survivor's acquire never returned after the victim released its locks")
	}
	if firstIsT1 {
		err2 = survivorErr
	} else {
		err1 = survivorErr
	}

	aborted := 0
	if _, ok := err1.(TransactionAbortedError); ok {
		aborted++
	}
	if _, ok := err2.(TransactionAbortedError); ok {
		aborted++
	}
	if aborted != 1 {
		t.Fatalf("expected exactly one transaction to abort, got %d aborts (err1=%v, err2=%v)", aborted, err1, err2)
	}
	if survivorErr != nil {
		t.Fatalf("expected the survivor's acquire to complete once the victim released, got %v", survivorErr)
	}

	if err := lp.Acquire(survivor, p1, Exclusive); err != nil {
		if err := lp.Acquire(survivor, p2, Exclusive); err != nil {
			t.Fatalf("expected the survivor's lock upgrade to succeed after the victim released: %s", err.Error())
		}
	}
}
