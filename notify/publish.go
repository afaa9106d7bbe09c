package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/aisnotify/notifyd/cmn/nlog"
	"github.com/aisnotify/notifyd/ctrl"
	"github.com/aisnotify/notifyd/wakeup"
	"github.com/aisnotify/notifyd/wire"
)

// overflowSleep is how long a blocked publisher waits between drain
// attempts once it has cooperatively advanced its own cursor.
const overflowSleep = 100 * time.Millisecond

// FlushPending encodes every notification staged in w.Txn into the
// queue, retrying through the overflow protocol whenever the queue is
// full. It's called at pre-commit; a non-nil error means the caller's
// transaction must abort without anything having become durable.
func (w *Worker) FlushPending(ctx context.Context) error {
	for w.Txn.NotificationsPending() {
		w.Control.Mu.Lock()
		full, err := w.appendPendingLocked(ctx)
		if err != nil {
			w.Control.Mu.Unlock()
			return err
		}
		if !full {
			w.Control.Mu.Unlock()
			return nil
		}

		now := time.Now()
		shouldWarn := now.Sub(w.Control.LastFullWarnAt) >= GCO().FullWarnInterval
		if shouldWarn {
			w.Control.LastFullWarnAt = now
		}
		slowestPID := w.Control.SlowestActive()
		targets := make([]wakeup.Target, 0, len(w.Control.SlowTargets()))
		for _, b := range w.Control.SlowTargets() {
			targets = append(targets, wakeup.Target{PID: b.PID})
		}
		w.Control.Mu.Unlock()

		if shouldWarn {
			nlog.Warningf("notify: queue full, slowest listener pid=%d", slowestPID)
			if w.Metrics != nil {
				w.Metrics.FullWarnings.Inc()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if len(targets) > 0 && w.Signaler != nil {
			if err := w.Signaler.Broadcast(ctx, wakeup.SlowOnly, targets); err != nil {
				nlog.Warningf("notify: slow-only broadcast: %v", err)
			}
		}

		if err := w.drainSelfToUncommitted(ctx); err != nil {
			return fmt.Errorf("notify: overflow self-drain: %w", err)
		}
		w.advanceTail(ctx)
		if w.Metrics != nil {
			w.Metrics.OverflowDrains.Inc()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(overflowSleep):
		}
	}
	return nil
}

// appendPendingLocked runs the append algorithm (spec.md §4.4) against
// whatever of w.Txn's pending notifications fit before the queue goes
// full. Caller must hold w.Control.Mu exclusively; it's released and
// re-acquired by no one here. Returns full=true if it stopped because
// the queue became full with notifications still pending.
func (w *Worker) appendPendingLocked(ctx context.Context) (full bool, err error) {
	head := w.Control.Head
	slot, err := w.Store.ReadPage(ctx, head.Page, true)
	if err != nil {
		return false, fmt.Errorf("notify: read head page %d: %w", head.Page, err)
	}
	w.Store.MarkDirty(slot)

	maxPage := GCO().MaxPage
	for w.Txn.NotificationsPending() {
		if ctrl.IsFull(w.Control.Head, w.Control.Tail, maxPage) {
			return true, nil
		}

		offset := w.Control.Head.Offset
		n := w.Txn.PeekFrontNotification()
		entry := wire.Encode(n, w.Oracle.CurrentDB(), w.Oracle.CurrentXid(), w.Oracle.SelfPID())

		var written int32
		if int(offset)+int(entry.Length) < wire.PageSize {
			entry.WriteTo(slot.Data[:], offset)
			written = entry.Length
			w.Txn.PopFrontNotification()
		} else {
			filler := wire.Filler(wire.PageSize - offset - 1)
			filler.WriteTo(slot.Data[:], offset)
			written = filler.Length
		}
		if err := w.Store.WritePage(ctx, slot); err != nil {
			return false, fmt.Errorf("notify: write page %d: %w", slot.PageID, err)
		}

		next, jumped := wire.Advance(w.Control.Head, written, maxPage)
		w.Control.Head = next
		if jumped {
			fresh, err := w.Store.ZeroNewPage(ctx, next.Page)
			if err != nil {
				return false, fmt.Errorf("notify: zero page %d: %w", next.Page, err)
			}
			w.Store.MarkDirty(fresh)
			if err := w.Store.WritePage(ctx, fresh); err != nil {
				return false, fmt.Errorf("notify: write fresh page %d: %w", next.Page, err)
			}
			slot = fresh
		}
	}

	if w.Control.Head.Offset == 0 {
		pre, err := w.Store.ZeroNewPage(ctx, w.Control.Head.Page)
		if err == nil {
			w.Store.MarkDirty(pre)
			_ = w.Store.WritePage(ctx, pre)
		}
	}
	return false, nil
}
