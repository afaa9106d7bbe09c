package notify

import (
	"github.com/aisnotify/notifyd/cmn/nlog"
	"github.com/aisnotify/notifyd/ctrl"
	"github.com/aisnotify/notifyd/oracle"
	"github.com/aisnotify/notifyd/store"
	"github.com/aisnotify/notifyd/sub"
	"github.com/aisnotify/notifyd/txn"
	"github.com/aisnotify/notifyd/wakeup"
	"github.com/aisnotify/notifyd/wire"
)

// Worker is one backend's process-local state plus the shared
// collaborators it operates against: the control block, the paged
// store, the transaction oracle, the wakeup signaler, and the frontend
// it delivers to. slot is this worker's fixed index into
// Control.Backend, assigned by whatever external process manager
// attaches workers to the control block — analogous to a fixed backend
// process number, not something notify itself allocates.
type Worker struct {
	Control  *ctrl.Control
	Store    store.PagedStore
	Oracle   oracle.Oracle
	Subs     *sub.Set
	Signaler *wakeup.Signaler
	Frontend Frontend
	Metrics  *Metrics
	Records  *Memory

	slot int

	Txn *txn.Buffers

	uncommitted        []uncommittedEntry
	handshake          wakeup.Handshake
	exitHookRegistered bool
}

// uncommittedEntry is one notification read from the queue whose
// publishing transaction's outcome wasn't yet visible at read time.
type uncommittedEntry struct {
	n   wire.Notification
	xid uint64
}

// NewWorker returns a Worker occupying slot in c's backend array.
func NewWorker(c *ctrl.Control, slot int, st store.PagedStore, oc oracle.Oracle, sg *wakeup.Signaler, fe Frontend, metrics *Metrics, records *Memory) *Worker {
	return &Worker{
		Control:  c,
		Store:    st,
		Oracle:   oc,
		Subs:     sub.New(),
		Signaler: sg,
		Frontend: fe,
		Metrics:  metrics,
		Records:  records,
		slot:     slot,
		Txn:      txn.New(),
	}
}

// Publish stages a notification in the current transaction, per
// spec.md §4.4's duplicate-collapsing rule.
func (w *Worker) Publish(channel, payload string) {
	w.Txn.Publish(channel, payload)
	if GCO().Trace {
		nlog.Infof("notify: trace publish channel=%s xid=%d", channel, w.Oracle.CurrentXid())
	}
}

// Subscribe stages a Subscribe action.
func (w *Worker) Subscribe(channel string) {
	w.Txn.StageSubscribe(channel)
}

// Unsubscribe stages an Unsubscribe action, short-circuiting when this
// worker could not possibly be subscribed (spec.md §4.3).
func (w *Worker) Unsubscribe(channel string) {
	if w.Txn.ActionsEmpty() && !w.exitHookRegistered {
		return
	}
	w.Txn.StageUnsubscribe(channel)
}

// UnsubscribeAll stages an UnsubscribeAll action, with the same
// short-circuit as Unsubscribe.
func (w *Worker) UnsubscribeAll() {
	if w.Txn.ActionsEmpty() && !w.exitHookRegistered {
		return
	}
	w.Txn.StageUnsubscribeAll()
}
