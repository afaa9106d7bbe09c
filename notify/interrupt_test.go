package notify_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aisnotify/notifyd/notify"
	"github.com/aisnotify/notifyd/oracle"
)

// countingFrontend wraps a ChanFrontend and counts how many times output
// was flushed, standing in for "how many ProcessIncomingNotify passes
// actually ran" without reaching into notify's internals.
type countingFrontend struct {
	*notify.ChanFrontend
	mu     sync.Mutex
	flushN int
}

func newCountingFrontend() *countingFrontend {
	return &countingFrontend{ChanFrontend: notify.NewChanFrontend()}
}

func (f *countingFrontend) FlushOutput() {
	f.mu.Lock()
	f.flushN++
	f.mu.Unlock()
	f.ChanFrontend.FlushOutput()
}

func (f *countingFrontend) flushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushN
}

var _ = Describe("signal idempotence", func() {
	It("coalesces any number of signals latched before EnableInterrupt into exactly one drain pass", func() {
		ctx := context.Background()
		h := newHarness(ctx)

		oc := oracle.NewMemory(h.ledger, 1, 100)
		fe := newCountingFrontend()
		w := notify.NewWorker(h.control, 0, h.store, oc, nil, fe, nil, nil)

		oc.Begin()
		w.Subscribe("c")
		published, _ := w.AtPreCommit(ctx)
		oc.Commit()
		w.AtPostCommit(ctx, published)

		w.HandleInterrupt()
		w.HandleInterrupt()
		w.HandleInterrupt()

		w.EnableInterrupt(ctx)
		Expect(fe.flushCount()).To(Equal(1))

		// No interrupt latched now: EnableInterrupt is a no-op.
		w.EnableInterrupt(ctx)
		Expect(fe.flushCount()).To(Equal(1))
	})
})
