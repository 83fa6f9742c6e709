package coredb

import (
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
)

// LockMode is a page lock's mode: Shared or Exclusive (spec section 4.4).
// RWPerm is the teacher's name for the same concept (ReadPerm/WritePerm,
// buffer_pool.go), kept as an alias so BufferPool.getPage's call sites
// read the way the teacher's do.
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

type RWPerm = LockMode

const (
	ReadPerm  RWPerm = Shared
	WritePerm RWPerm = Exclusive
)

// pageLockState is the per-page lock state of spec section 3: a shared
// holder set, an exclusive holder (if any), and a condition variable
// waiters block on. Guarded by LockPool.mu (the single process-wide latch
// spec section 4.4/5 shares with BufferPool's structural mutations).
type pageLockState struct {
	sharedBy  map[TransactionID]struct{}
	exclusive TransactionID
	hasExcl   bool
	cond      *sync.Cond
}

func (s *pageLockState) holders() map[TransactionID]struct{} {
	out := make(map[TransactionID]struct{}, len(s.sharedBy)+1)
	for tid := range s.sharedBy {
		out[tid] = struct{}{}
	}
	if s.hasExcl {
		out[s.exclusive] = struct{}{}
	}
	return out
}

// LockPool grants page-level Shared/Exclusive locks, handles upgrade, and
// runs wait-for-graph deadlock detection (spec section 4.4). mu is shared
// with the owning BufferPool's structural-mutation latch: the spec
// requires the two data structures share one process-wide latch rather
// than their own locks, since BufferPool eviction and LockPool acquisition
// interleave (spec section 4.4/9, "global latch coupling").
type LockPool struct {
	mu *sync.Mutex

	pages    map[PageID]*pageLockState
	holdings map[TransactionID]map[PageID]LockMode
	waitFor  map[TransactionID]map[TransactionID]struct{}
}

// NewLockPool creates a LockPool sharing the supplied latch with its
// BufferPool.
func NewLockPool(mu *sync.Mutex) *LockPool {
	return &LockPool{
		mu:       mu,
		pages:    make(map[PageID]*pageLockState),
		holdings: make(map[TransactionID]map[PageID]LockMode),
		waitFor:  make(map[TransactionID]map[TransactionID]struct{}),
	}
}

func (lp *LockPool) stateFor(pid PageID) *pageLockState {
	s, ok := lp.pages[pid]
	if !ok {
		s = &pageLockState{sharedBy: make(map[TransactionID]struct{})}
		s.cond = sync.NewCond(lp.mu)
		lp.pages[pid] = s
	}
	return s
}

// Acquire blocks until tid holds pid in at least the requested mode, or
// returns TransactionAbortedError if acquiring it would deadlock (spec
// section 4.4).
func (lp *LockPool) Acquire(tid TransactionID, pid PageID, mode LockMode) error {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	for {
		if held, ok := lp.holdings[tid][pid]; ok {
			if held == Exclusive || mode == Shared {
				return nil
			}
			// tid holds Shared, wants Exclusive: attempt upgrade.
			state := lp.stateFor(pid)
			if len(state.sharedBy) == 1 {
				if _, solo := state.sharedBy[tid]; solo && !state.hasExcl {
					lp.grant(tid, pid, state, Exclusive)
					return nil
				}
			}
		} else {
			state := lp.stateFor(pid)
			grantable := false
			switch mode {
			case Shared:
				grantable = !state.hasExcl
			case Exclusive:
				grantable = !state.hasExcl && len(state.sharedBy) == 0
			}
			if grantable {
				lp.grant(tid, pid, state, mode)
				return nil
			}
		}

		state := lp.stateFor(pid)
		lp.waitFor[tid] = state.holders()
		delete(lp.waitFor[tid], tid)
		if lp.hasCycle(tid) {
			delete(lp.waitFor, tid)
			log.Debug().Int64("tid", int64(tid)).Msg("deadlock detected, self-aborting")
			return TransactionAbortedError{TID: tid}
		}
		state.cond.Wait()
		delete(lp.waitFor, tid)
	}
}

func (lp *LockPool) grant(tid TransactionID, pid PageID, state *pageLockState, mode LockMode) {
	if mode == Shared {
		state.sharedBy[tid] = struct{}{}
	} else {
		delete(state.sharedBy, tid)
		state.hasExcl = true
		state.exclusive = tid
	}
	if lp.holdings[tid] == nil {
		lp.holdings[tid] = make(map[PageID]LockMode)
	}
	lp.holdings[tid][pid] = mode
	delete(lp.waitFor, tid)
}

// hasCycle runs a DFS over the wait-for graph starting at tid: edges go
// from a waiter to the current holders of the page it's waiting on, and
// from each holder onward to whatever it itself is waiting on.
func (lp *LockPool) hasCycle(tid TransactionID) bool {
	visited := make(map[TransactionID]struct{})
	var dfs func(TransactionID) bool
	dfs = func(n TransactionID) bool {
		for _, h := range maps.Keys(lp.waitFor[n]) {
			if h == tid {
				return true
			}
			if _, seen := visited[h]; seen {
				continue
			}
			visited[h] = struct{}{}
			if dfs(h) {
				return true
			}
		}
		return false
	}
	return dfs(tid)
}

// Release clears tid's hold on pid and wakes waiters if the page is now
// free enough for them to proceed.
func (lp *LockPool) Release(tid TransactionID, pid PageID) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.releaseLocked(tid, pid)
}

func (lp *LockPool) releaseLocked(tid TransactionID, pid PageID) {
	state, ok := lp.pages[pid]
	if !ok {
		return
	}
	wasExclusive := state.hasExcl && state.exclusive == tid
	if wasExclusive {
		state.hasExcl = false
	}
	if _, shared := state.sharedBy[tid]; shared {
		delete(state.sharedBy, tid)
	}
	if held, ok := lp.holdings[tid]; ok {
		delete(held, pid)
		if len(held) == 0 {
			delete(lp.holdings, tid)
		}
	}
	if wasExclusive || len(state.sharedBy) == 0 {
		state.cond.Broadcast()
	}
}

// ReleaseLocks releases every page tid holds and clears its waiting set.
// Iterates a snapshot of tid's held-page set (golang.org/x/exp/maps),
// since the set is mutated by releaseLocked as it goes (spec section 9's
// open question, resolved: snapshot-then-iterate).
func (lp *LockPool) ReleaseLocks(tid TransactionID) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	pages := maps.Keys(lp.holdings[tid])
	for _, pid := range pages {
		lp.releaseLocked(tid, pid)
	}
	delete(lp.holdings, tid)
	delete(lp.waitFor, tid)
}

// HoldsLock returns the mode tid currently holds pid in, if any. Reports
// the stable mode: while an upgrade from Shared to Exclusive is pending,
// it still reports Shared, since the upgrade has not yet been granted
// (spec section 9's open question).
func (lp *LockPool) HoldsLock(tid TransactionID, pid PageID) (LockMode, bool) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	mode, ok := lp.holdings[tid][pid]
	return mode, ok
}

// HeldPages returns a snapshot of the pages tid currently holds, used by
// BufferPool's commit/abort to know which pages to flush or roll back.
func (lp *LockPool) HeldPages(tid TransactionID) []PageID {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return maps.Keys(lp.holdings[tid])
}
