package notify

import (
	"context"

	"github.com/aisnotify/notifyd/cmn/nlog"
)

// HandleInterrupt is the signal-handler-safe side of the two-flag
// protocol (spec.md §4.7/§6): it only ever does the atomic store behind
// w.handshake.Notify, never I/O, never allocation, and never blocks.
// Whatever stands in for signal delivery in a given deployment calls
// this directly from the handler context.
func (w *Worker) HandleInterrupt() {
	w.handshake.Notify()
}

// EnableInterrupt marks the worker ready to receive an interrupt notice,
// then drains any interrupt already latched (including one racing with
// the enable itself) before returning. Any number of signals that
// arrived before this call coalesce into exactly one
// ProcessIncomingNotify pass; a signal that arrives while that pass is
// running earns itself one more pass, never more. Called when the
// worker returns to idle (not inside a transaction).
func (w *Worker) EnableInterrupt(ctx context.Context) {
	w.handshake.Enable()
	for w.handshake.Consume() {
		if err := w.ProcessIncomingNotify(ctx); err != nil {
			nlog.Warningf("notify: process incoming notify: %v", err)
		}
	}
}

// DisableInterrupt clears interrupt_enabled and returns its prior value,
// for the caller to restore once it's done with whatever required
// interrupts off (spec.md: called on entering command handling).
func (w *Worker) DisableInterrupt() bool {
	return w.handshake.Disable()
}
