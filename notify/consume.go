package notify

import (
	"context"

	"github.com/aisnotify/notifyd/cmn/nlog"
	"github.com/aisnotify/notifyd/wire"
)

// ProcessIncomingNotify is the entry point from the signal-driven idle
// path (spec.md §4.7/§4.9): drain the uncommitted buffer, read newly
// committed entries from the queue, and flush them to the frontend
// exactly once at the end.
func (w *Worker) ProcessIncomingNotify(ctx context.Context) error {
	w.drainUncommittedBuffer()
	if err := w.consume(ctx, readOnlyCommitted); err != nil {
		return err
	}
	w.Frontend.FlushOutput()
	return nil
}

type consumeMode int

const (
	readOnlyCommitted consumeMode = iota
	readAllToUncommitted
)

// consume walks the queue from this worker's cursor up to a head
// snapshot taken at entry, delivering or buffering entries per mode, and
// advances backend[self].position when done.
func (w *Worker) consume(ctx context.Context, mode consumeMode) error {
	w.Control.Mu.RLock()
	pos := w.Control.Backend[w.slot].Position
	headSnapshot := w.Control.Head
	oldPos := pos
	w.Control.Mu.RUnlock()

	if pos.Equal(headSnapshot) {
		return nil
	}

	db := w.Oracle.CurrentDB()
	maxPage := GCO().MaxPage

pageLoop:
	for !pos.Equal(headSnapshot) {
		page, err := w.Store.ReadPage(ctx, pos.Page, false)
		if err != nil {
			nlog.Warningf("notify: consume: store read error at page %d, skipping: %v", pos.Page, err)
			pos = wire.Position{Page: wire.NextPage(pos.Page, maxPage), Offset: 0}
			continue pageLoop
		}

		for !pos.Equal(headSnapshot) {
			entry, err := wire.ReadAt(page.Data[:], pos.Offset)
			if err != nil {
				nlog.Warningf("notify: consume: corrupt entry at (%d,%d), skipping page: %v", pos.Page, pos.Offset, err)
				pos = wire.Position{Page: wire.NextPage(pos.Page, maxPage), Offset: 0}
				continue pageLoop
			}

			if entry.IsFiller() || entry.DatabaseID != db {
				next, jumped := wire.Advance(pos, entry.Length, maxPage)
				pos = next
				if jumped {
					continue pageLoop
				}
				continue
			}

			if mode == readAllToUncommitted {
				w.uncommitted = append(w.uncommitted, uncommittedEntry{
					n:   wire.Notification{Channel: entry.Channel, Payload: entry.Payload, PeerPID: entry.SourcePID},
					xid: entry.Xid,
				})
			} else {
				switch {
				case w.Oracle.DidCommit(entry.Xid):
					if w.Subs.IsSubscribed(entry.Channel) {
						w.Frontend.SendNotify(entry.Channel, entry.Payload, entry.SourcePID)
					}
				case w.Oracle.DidAbort(entry.Xid):
					// dropped
				default:
					// still in progress: stop here, don't advance past it this round.
					break pageLoop
				}
			}

			next, jumped := wire.Advance(pos, entry.Length, maxPage)
			pos = next
			if jumped {
				continue pageLoop
			}
		}
	}

	w.Control.Mu.Lock()
	w.Control.Backend[w.slot].Position = pos
	wasAtTail := oldPos.Equal(w.Control.Tail)
	w.Control.Mu.Unlock()

	if wasAtTail {
		w.advanceTail(ctx)
	}
	return nil
}

// drainSelfToUncommitted is the overflow protocol's cooperative drain: a
// blocked publisher temporarily acts as its own consumer to advance its
// cursor, so that truncation (and thus queue capacity) can progress.
func (w *Worker) drainSelfToUncommitted(ctx context.Context) error {
	return w.consume(ctx, readAllToUncommitted)
}

// drainUncommittedBuffer processes the front of the uncommitted buffer:
// entries whose outcome has resolved are delivered (if subscribed) or
// dropped, in original order; the first still-running xid stops the
// walk, preserving the remainder for a later call.
func (w *Worker) drainUncommittedBuffer() {
	i := 0
	for ; i < len(w.uncommitted); i++ {
		e := w.uncommitted[i]
		switch {
		case w.Oracle.DidCommit(e.xid):
			if w.Subs.IsSubscribed(e.n.Channel) {
				w.Frontend.SendNotify(e.n.Channel, e.n.Payload, e.n.PeerPID)
			}
		case w.Oracle.DidAbort(e.xid):
			// dropped
		default:
			goto stop
		}
	}
stop:
	w.uncommitted = w.uncommitted[i:]
}

// advanceTail recomputes tail as the logical minimum of head and every
// active backend's position, then truncates whole segments once enough
// pages have been freed (spec.md §4.5).
func (w *Worker) advanceTail(ctx context.Context) {
	w.Control.Mu.Lock()
	head := w.Control.Head
	min := head
	first := true
	for _, b := range w.Control.Backend {
		if !b.Active() {
			continue
		}
		if first {
			min = b.Position
			first = false
		} else {
			min = wire.Min(min, b.Position, head)
		}
	}
	oldTail := w.Control.Tail
	w.Control.Tail = min
	w.Control.Mu.Unlock()

	if w.Metrics != nil {
		w.Metrics.Observe(head.Page, min.Page)
	}

	if wire.Precedes(oldTail, min, head) && oldTail.Before(min) {
		freed := min.Page - oldTail.Page
		if freed >= wire.SegmentPages {
			if err := w.Store.TruncateUpTo(ctx, min.Page); err != nil {
				nlog.Warningf("notify: truncate up to page %d: %v", min.Page, err)
			}
		}
	}
}
