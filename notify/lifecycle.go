package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aisnotify/notifyd/cmn/nlog"
	"github.com/aisnotify/notifyd/ctrl"
	"github.com/aisnotify/notifyd/hk"
	"github.com/aisnotify/notifyd/store"
	"github.com/aisnotify/notifyd/txn"
	"github.com/aisnotify/notifyd/wakeup"
	"github.com/aisnotify/notifyd/wire"
)

// ErrPendingActionsAtPrepare is returned by AtPrepare when the
// transaction has staged subscription-management actions: two-phase
// commit of LISTEN/UNLISTEN is not supported (spec.md §4.8).
var ErrPendingActionsAtPrepare = errors.New("notify: PREPARE not supported with pending subscription actions")

// nlogFlushInterval is how often the housekeeper flushes buffered log
// lines, independent of nlog's own size-triggered rotation.
const nlogFlushInterval = 5 * time.Second

// hkOnce starts the package-wide housekeeper goroutine at most once;
// InitShared may run again in tests against a fresh control block.
var hkOnce sync.Once

// InitShared allocates and initializes the process-wide control block:
// head and tail both at the origin (see SPEC_FULL.md's Open Question
// decision on the tail sentinel), page 0 zeroed and written, and the
// storage directory swept of files that are not named like segments
// (segment files found there are left in place).
func InitShared(ctx context.Context, st store.PagedStore, dir string) (*ctrl.Control, error) {
	c := ctrl.New()

	slot, err := st.ZeroNewPage(ctx, 0)
	if err != nil {
		return nil, err
	}
	st.MarkDirty(slot)
	if err := st.WritePage(ctx, slot); err != nil {
		return nil, err
	}

	if _, err := store.Scan(dir); err != nil {
		nlog.Warningf("notify: startup segment scan of %s: %v", dir, err)
	}

	hkOnce.Do(func() { go hk.DefaultHK.Run() })
	registerHousekeeping(c)
	return c, nil
}

// registerHousekeeping wires the periodic nlog flush and the full-warn
// throttle's aging window into the housekeeper, keyed by name so a
// second InitShared call against a new control block simply replaces
// the prior registration rather than piling up duplicate jobs.
func registerHousekeeping(c *ctrl.Control) {
	hk.Reg("notify-flush-nlog", func(time.Time) time.Duration {
		nlog.Flush()
		return nlogFlushInterval
	}, nlogFlushInterval)

	hk.Reg("notify-age-full-warn", func(now time.Time) time.Duration {
		interval := GCO().FullWarnInterval
		c.Mu.Lock()
		if !c.LastFullWarnAt.IsZero() && now.Sub(c.LastFullWarnAt) >= interval {
			c.LastFullWarnAt = time.Time{}
		}
		c.Mu.Unlock()
		return interval
	}, GCO().FullWarnInterval)
}

// AtPreCommit applies every staged subscription action in order, then
// flushes any pending notifications into the queue. A non-nil error
// means the caller's transaction must abort; nothing durable has
// happened yet. published reports whether there was anything to flush,
// for AtPostCommit to decide whether listeners need waking.
func (w *Worker) AtPreCommit(ctx context.Context) (published bool, err error) {
	for _, a := range w.Txn.Actions() {
		if err := w.applyAction(ctx, a); err != nil {
			return false, err
		}
	}
	w.Txn.ClearActions()

	published = w.Txn.NotificationsPending()
	if published {
		if err := w.FlushPending(ctx); err != nil {
			return false, err
		}
	}
	return published, nil
}

func (w *Worker) applyAction(ctx context.Context, a txn.Action) error {
	switch a.Kind {
	case txn.Subscribe:
		wasEmpty := w.Subs.Empty()
		w.Subs.Add(a.Channel)
		if wasEmpty {
			w.Control.Mu.Lock()
			w.Control.Backend[w.slot] = ctrl.Backend{PID: w.Oracle.SelfPID(), Position: w.Control.Head}
			w.Control.Mu.Unlock()
			w.advanceTail(ctx)
			w.registerExitHook()
		}
	case txn.Unsubscribe:
		w.Subs.Remove(a.Channel)
		w.retireSlotIfEmpty()
	case txn.UnsubscribeAll:
		w.Subs.Clear()
		w.retireSlotIfEmpty()
	}
	return nil
}

// retireSlotIfEmpty releases this worker's backend slot once it has no
// remaining subscriptions, and schedules advance_tail if doing so might
// unblock truncation (spec.md §4.3).
func (w *Worker) retireSlotIfEmpty() {
	if !w.Subs.Empty() {
		return
	}
	w.Control.Mu.Lock()
	wasAtTail := w.Control.Backend[w.slot].Position.Equal(w.Control.Tail)
	w.Control.Backend[w.slot].PID = wire.InvalidPID
	w.Control.Mu.Unlock()
	if wasAtTail {
		w.advanceTail(context.Background())
	}
}

func (w *Worker) registerExitHook() { w.exitHookRegistered = true }

// AtPostCommit sends wakeups to every active listener once the
// transaction is durably committed. published reports whether this
// transaction actually appended anything (no notifications means no
// one needs waking).
func (w *Worker) AtPostCommit(ctx context.Context, published bool) {
	if !published || w.Signaler == nil {
		return
	}
	w.Control.Mu.RLock()
	active := w.Control.ActiveSlots()
	w.Control.Mu.RUnlock()

	targets := make([]wakeup.Target, 0, len(active))
	for _, b := range active {
		targets = append(targets, wakeup.Target{PID: b.PID})
	}
	if err := w.Signaler.Broadcast(ctx, wakeup.All, targets); err != nil {
		nlog.Warningf("notify: post-commit broadcast: %v", err)
	}
	if w.Metrics != nil {
		w.Metrics.WakeupsSent.Add(float64(len(targets)))
	}
}

// AtAbort clears all pending state for the top-level transaction. Never
// called mid-subtransaction; use AtSubAbort there instead.
func (w *Worker) AtAbort() {
	w.Txn.ClearActions()
	w.Txn.ClearNotifications()
}

// AtSubStart pushes the current nesting level's buffers per spec.md §4.8.
func (w *Worker) AtSubStart() { w.Txn.SubStart() }

// AtSubCommit folds a subtransaction's buffers into its parent's.
func (w *Worker) AtSubCommit() { w.Txn.SubCommit() }

// AtSubAbort discards a subtransaction's buffers, restoring its parent's.
func (w *Worker) AtSubAbort() { w.Txn.SubAbort() }

// AtPrepare rejects the transaction if it has staged subscription
// actions, otherwise persists a two-phase record per pending
// notification and clears pending state.
func (w *Worker) AtPrepare() error {
	if !w.Txn.ActionsEmpty() {
		return ErrPendingActionsAtPrepare
	}
	if w.Records != nil {
		xid := w.Oracle.CurrentXid()
		for _, n := range w.Txn.Notifications() {
			buf := encodeTwoPhaseRecord(n)
			if err := w.Records.RegisterFor(xid, NotifyResourceID, 0, buf); err != nil {
				return err
			}
		}
	}
	w.Txn.ClearNotifications()
	return nil
}

// TwoPhasePostCommit replays every two-phase record persisted for xid by
// re-publishing each one inside the now-committing transaction, then
// flushing them into the queue exactly as an ordinary pre-commit publish
// would (spec.md §4.8, supplemented per SPEC_FULL.md §9).
func (w *Worker) TwoPhasePostCommit(ctx context.Context, xid uint64) error {
	if w.Records == nil {
		return nil
	}
	for _, buf := range w.Records.Take(xid) {
		n, err := decodeTwoPhaseRecord(buf)
		if err != nil {
			nlog.Warningf("notify: two-phase postcommit: %v", err)
			continue
		}
		w.Txn.Publish(n.Channel, n.Payload)
	}
	if w.Txn.NotificationsPending() {
		return w.FlushPending(ctx)
	}
	return nil
}

// Exit runs the exit-time auto-unsubscribe hook: abort any open
// transaction, then release this worker's subscriptions synchronously so
// its slot is freed and tail can advance (spec.md §4.9).
func (w *Worker) Exit() {
	if !w.exitHookRegistered {
		return
	}
	w.AtAbort()
	w.Subs.Clear()
	w.retireSlotIfEmpty()
}
