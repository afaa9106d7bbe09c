// Package ctrl implements the shared control block: head/tail positions,
// per-worker backend slots, and the reader-writer lock that guards them.
//
// Callers are expected to hold Control.Mu appropriately before touching
// its exported fields directly — RLock to read Head, Tail or Backend
// slots, Lock for any write, the caller's own Backend slot included. The
// lock discipline is a contract kept by the callers; neither the field
// accessors nor any assertion checks it.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package ctrl

import (
	"sync"
	"time"

	"github.com/aisnotify/notifyd/wire"
)

// Backend is one worker's slot in the control block.
type Backend struct {
	PID      int32
	Position wire.Position
}

func (b Backend) Active() bool { return b.PID != wire.InvalidPID }

// Control is the process-wide shared control block.
type Control struct {
	Mu sync.RWMutex

	Head           wire.Position
	Tail           wire.Position
	LastFullWarnAt time.Time

	Backend [wire.MaxWorkers]Backend
}

// New returns a freshly initialized control block: head and tail both at
// the origin (the Open Question in spec.md §9 over the tail=(MaxPage,0)
// sentinel is resolved as tail=head — see DESIGN.md/SPEC_FULL.md).
func New() *Control {
	c := &Control{}
	for i := range c.Backend {
		c.Backend[i].PID = wire.InvalidPID
	}
	return c
}

// Snapshot returns Head and Tail under a shared lock.
func (c *Control) Snapshot() (head, tail wire.Position) {
	c.Mu.RLock()
	head, tail = c.Head, c.Tail
	c.Mu.RUnlock()
	return
}

// ActiveSlots returns a copy of every currently-active backend slot, for
// use by the wakeup fan-out and by advance_tail. Requires at least a
// shared lock to be safe against concurrent slot writes; callers that
// need a fully consistent view across Head as well should hold Lock.
func (c *Control) ActiveSlots() []Backend {
	out := make([]Backend, 0, wire.MaxWorkers)
	for _, b := range c.Backend {
		if b.Active() {
			out = append(out, b)
		}
	}
	return out
}

// FindSlot returns the index of an unused backend slot, or -1 if the
// control block is at capacity. Caller must hold Lock.
func (c *Control) FindSlot() int {
	for i, b := range c.Backend {
		if !b.Active() {
			return i
		}
	}
	return -1
}

// IsFull reports whether the queue has no room left for one more
// maximally sized entry: compute how far writing wire.MaxPayload bytes
// from head's current offset would advance, and only call it full if
// that advance would cross onto tail's page. A head sitting early on
// its page always has room for at least one more entry, regardless of
// how close head.Page is to tail.Page. Caller must hold at least a
// shared lock.
func IsFull(head, tail wire.Position, maxPage int64) bool {
	remain := wire.PageSize - head.Offset - 1
	advance := remain
	if advance > wire.MaxPayload {
		advance = wire.MaxPayload
	}
	lookahead, jumped := wire.Advance(head, advance, maxPage)
	if !jumped {
		return false
	}
	return lookahead.Page == tail.Page
}

// SlowestActive returns the pid of the active backend whose position is
// logically oldest relative to head, or wire.InvalidPID if none are
// active. Caller must hold at least a shared lock.
func (c *Control) SlowestActive() int32 {
	slowest := wire.InvalidPID
	var slowestPos wire.Position
	first := true
	for _, b := range c.Backend {
		if !b.Active() {
			continue
		}
		if first || wire.Precedes(b.Position, slowestPos, c.Head) {
			slowestPos, slowest, first = b.Position, b.PID, false
		}
	}
	return slowest
}

// SlowTargets returns (pid, slot) pairs for every active backend whose
// position does not already equal head — the recipients of a
// slow_only wakeup. Caller must hold at least a shared lock.
func (c *Control) SlowTargets() []Backend {
	out := make([]Backend, 0, wire.MaxWorkers)
	for _, b := range c.Backend {
		if b.Active() && !b.Position.Equal(c.Head) {
			out = append(out, b)
		}
	}
	return out
}
