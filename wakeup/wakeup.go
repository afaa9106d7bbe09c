// Package wakeup implements the inter-process signal protocol: sending a
// wakeup to listening backends after commit, and the two-flag handshake
// a listener's signal handler uses to record an interrupt without doing
// any unsafe work inside the handler itself.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package wakeup

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/aisnotify/notifyd/cmn/cos"
	"github.com/aisnotify/notifyd/cmn/nlog"
)

// SignalKind distinguishes a full broadcast from a slow-only nudge, for
// logging; delivery itself is the same signal either way.
type SignalKind int

const (
	All SignalKind = iota
	SlowOnly
)

func (k SignalKind) String() string {
	if k == SlowOnly {
		return "slow_only"
	}
	return "all"
}

// Target is one recipient of a wakeup: a backend pid and, in SlotHint,
// the control block slot it occupies, passed through to Sender.Send as a
// hint. The notify package's broadcasts do not fill SlotHint in, so it is
// zero for every target they build.
type Target struct {
	PID      int32
	SlotHint int
}

// Sender delivers a single wakeup to one backend process.
type Sender interface {
	Send(pid int32, kind SignalKind, slotHint int) error
}

// Signaler fans a wakeup out to many targets concurrently.
type Signaler struct {
	sender Sender
}

func NewSignaler(sender Sender) *Signaler {
	return &Signaler{sender: sender}
}

// Broadcast sends kind to every target concurrently. An individual send
// failure is logged and does not stop the other sends; once every send
// has been attempted, the failures are returned joined into one error.
// A listener that can't be woken will simply pick up the notification
// the next time it polls.
func (s *Signaler) Broadcast(ctx context.Context, kind SignalKind, targets []Target) error {
	if len(targets) == 0 {
		return nil
	}
	var errs cos.Errs
	var g errgroup.Group
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := s.sender.Send(t.PID, kind, t.SlotHint); err != nil {
				nlog.Warningf("wakeup: failed to signal pid %d (%s): %v", t.PID, kind, err)
				errs.Add(err)
			}
			return nil
		})
	}
	_ = g.Wait()
	if errs.Cnt() > 0 {
		_, err := errs.JoinErr()
		return err
	}
	return nil
}

// Handshake is the two-flag signal-handler-safe interrupt protocol for
// one listening backend. The enabled and occurred flags are
// read/written with atomic operations only: a real signal handler may
// set occurred at any point, including inside another goroutine
// standing in for a handler in this in-process reference, so no lock can
// ever be taken here.
type Handshake struct {
	enabled  int32
	occurred int32
}

// Enable marks the backend ready to receive an interrupt notice; returns
// whether an interrupt had already latched while disabled, in which case
// the caller should process it immediately instead of waiting to be
// woken again.
func (h *Handshake) Enable() (alreadyOccurred bool) {
	atomic.StoreInt32(&h.enabled, 1)
	return atomic.LoadInt32(&h.occurred) != 0
}

// Disable marks the backend as not ready to process another interrupt
// notice (about to go do other work); a signal arriving while disabled
// still latches Occurred for the next Enable to observe. Returns
// whether the backend was enabled beforehand, for the caller to restore
// later.
func (h *Handshake) Disable() (wasEnabled bool) {
	return atomic.SwapInt32(&h.enabled, 0) != 0
}

// Notify is the handler-safe side: called from whatever stands in for
// the signal handler. It only ever does atomic stores, never blocks, and
// never allocates.
func (h *Handshake) Notify() {
	atomic.StoreInt32(&h.occurred, 1)
}

// Consume reports whether an interrupt is latched and clears the flag if
// the backend is currently enabled. Called from the idle loop, not from
// the handler.
func (h *Handshake) Consume() bool {
	if atomic.LoadInt32(&h.enabled) == 0 {
		return false
	}
	return atomic.CompareAndSwapInt32(&h.occurred, 1, 0)
}
