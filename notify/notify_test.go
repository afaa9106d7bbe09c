package notify_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aisnotify/notifyd/ctrl"
	"github.com/aisnotify/notifyd/notify"
	"github.com/aisnotify/notifyd/oracle"
	"github.com/aisnotify/notifyd/store"
	"github.com/aisnotify/notifyd/wire"
)

// harness wires up the shared collaborators of an in-process simulation:
// one control block, one paged store, one transaction ledger, with a
// Worker per simulated backend.
type harness struct {
	control *ctrl.Control
	store   store.PagedStore
	ledger  *oracle.Ledger
}

func newHarness(ctx context.Context) *harness {
	st := store.NewLocal("/nonexistent-notifyd-test-dir")
	c, err := notify.InitShared(ctx, st, "/nonexistent-notifyd-test-dir")
	Expect(err).NotTo(HaveOccurred())
	return &harness{control: c, store: st, ledger: oracle.NewLedger()}
}

func (h *harness) worker(slot int, pid int32) (*notify.Worker, *oracle.Memory, *notify.ChanFrontend) {
	oc := oracle.NewMemory(h.ledger, 1, pid)
	fe := notify.NewChanFrontend()
	w := notify.NewWorker(h.control, slot, h.store, oc, nil, fe, nil, nil)
	return w, oc, fe
}

var _ = Describe("pub/sub scenarios", func() {
	var (
		ctx context.Context
		h   *harness
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = newHarness(ctx)
	})

	It("S1: delivers a committed notification to a subscribed listener", func() {
		a, aOracle, aFrontend := h.worker(0, 100)
		b, bOracle, _ := h.worker(1, 200)

		aOracle.Begin()
		a.Subscribe("c")
		published, err := a.AtPreCommit(ctx)
		Expect(err).NotTo(HaveOccurred())
		aOracle.Commit()
		a.AtPostCommit(ctx, published)

		bOracle.Begin()
		b.Publish("c", "hello")
		published, err = b.AtPreCommit(ctx)
		Expect(err).NotTo(HaveOccurred())
		bOracle.Commit()
		b.AtPostCommit(ctx, published)

		Expect(a.ProcessIncomingNotify(ctx)).To(Succeed())
		delivered := aFrontend.Flushed()
		Expect(delivered).To(Equal([]notify.Delivered{
			{Channel: "c", Payload: "hello", SourcePID: 200},
		}))
	})

	It("S2: collapses duplicate (channel, payload) pairs within one transaction", func() {
		a, aOracle, aFrontend := h.worker(0, 100)
		b, bOracle, _ := h.worker(1, 200)

		aOracle.Begin()
		a.Subscribe("c")
		published, _ := a.AtPreCommit(ctx)
		aOracle.Commit()
		a.AtPostCommit(ctx, published)

		bOracle.Begin()
		b.Publish("c", "x")
		b.Publish("c", "x")
		b.Publish("c", "x")
		b.Publish("c", "y")
		published, err := b.AtPreCommit(ctx)
		Expect(err).NotTo(HaveOccurred())
		bOracle.Commit()
		b.AtPostCommit(ctx, published)

		Expect(a.ProcessIncomingNotify(ctx)).To(Succeed())
		delivered := aFrontend.Flushed()
		Expect(delivered).To(Equal([]notify.Delivered{
			{Channel: "c", Payload: "x", SourcePID: 200},
			{Channel: "c", Payload: "y", SourcePID: 200},
		}))
	})

	It("S3: an aborted transaction's notifications are never delivered", func() {
		a, aOracle, aFrontend := h.worker(0, oracle.GenPID())
		b, _, _ := h.worker(1, oracle.GenPID())

		aOracle.Begin()
		a.Subscribe("c")
		published, _ := a.AtPreCommit(ctx)
		aOracle.Commit()
		a.AtPostCommit(ctx, published)

		b.Publish("c", "z")
		// Abort happens before pre-commit ever runs: nothing was appended.
		b.AtAbort()

		Expect(a.ProcessIncomingNotify(ctx)).To(Succeed())
		Expect(aFrontend.Flushed()).To(BeEmpty())
	})

	It("S4: a backend receives its own notification and can identify it by source pid", func() {
		b, bOracle, bFrontend := h.worker(0, 300)

		bOracle.Begin()
		b.Subscribe("c")
		b.Publish("c", "s")
		published, err := b.AtPreCommit(ctx)
		Expect(err).NotTo(HaveOccurred())
		bOracle.Commit()
		b.AtPostCommit(ctx, published)

		Expect(b.ProcessIncomingNotify(ctx)).To(Succeed())
		delivered := bFrontend.Flushed()
		Expect(delivered).To(Equal([]notify.Delivered{
			{Channel: "c", Payload: "s", SourcePID: 300},
		}))
	})

	It("S6: a subtransaction's aborted notifications never surface even if the outer commits", func() {
		a, aOracle, aFrontend := h.worker(0, 100)
		b, bOracle, _ := h.worker(1, 200)

		aOracle.Begin()
		a.Subscribe("c")
		published, _ := a.AtPreCommit(ctx)
		aOracle.Commit()
		a.AtPostCommit(ctx, published)

		bOracle.Begin()
		bOracle.PushSub()
		b.AtSubStart()
		b.Publish("c", "sub")
		b.AtSubAbort()
		bOracle.PopSub()

		published, err := b.AtPreCommit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(published).To(BeFalse())
		bOracle.Commit()
		b.AtPostCommit(ctx, published)

		Expect(a.ProcessIncomingNotify(ctx)).To(Succeed())
		Expect(aFrontend.Flushed()).To(BeEmpty())
	})

	It("S6: a committed subtransaction's notifications surface after the outer commit", func() {
		a, aOracle, aFrontend := h.worker(0, 100)
		b, bOracle, _ := h.worker(1, 200)

		aOracle.Begin()
		a.Subscribe("c")
		published, _ := a.AtPreCommit(ctx)
		aOracle.Commit()
		a.AtPostCommit(ctx, published)

		bOracle.Begin()
		bOracle.PushSub()
		b.AtSubStart()
		b.Publish("c", "sub")
		b.AtSubCommit()
		bOracle.PopSub()

		published, err := b.AtPreCommit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(published).To(BeTrue())
		bOracle.Commit()
		b.AtPostCommit(ctx, published)

		Expect(a.ProcessIncomingNotify(ctx)).To(Succeed())
		Expect(aFrontend.Flushed()).To(Equal([]notify.Delivered{
			{Channel: "c", Payload: "sub", SourcePID: 200},
		}))
	})

	It("S5: overflow blocks a publisher until the slow listener drains, then delivers everything in order", func() {
		cfg := notify.DefaultConfig()
		cfg.MaxPage = 2 * wire.SegmentPages
		notify.SetGCO(cfg)
		defer notify.SetGCO(notify.DefaultConfig())

		a, aOracle, aFrontend := h.worker(0, 100)
		b, bOracle, _ := h.worker(1, 200)

		aOracle.Begin()
		a.Subscribe("c")
		published, _ := a.AtPreCommit(ctx)
		aOracle.Commit()
		a.AtPostCommit(ctx, published)

		const rounds = 48
		bigPayload := strings.Repeat("v", 8000-len(fmt.Sprintf("%04d", rounds)))

		done := make(chan error, 1)
		go func() {
			for i := 0; i < rounds; i++ {
				bOracle.Begin()
				b.Publish("c", fmt.Sprintf("%04d%s", i, bigPayload))
				published, err := b.AtPreCommit(ctx)
				if err != nil {
					done <- err
					return
				}
				bOracle.Commit()
				b.AtPostCommit(ctx, published)
			}
			done <- nil
		}()

		// Give the filler goroutine time to run into the full condition
		// and start retrying; it must not have finished on its own, since
		// the slow listener A has not yet drained anything.
		Consistently(done, 250*time.Millisecond, 10*time.Millisecond).ShouldNot(Receive())

		// Simulate A draining: this walks every already-committed entry
		// behind it in one pass, catching its position up to head and
		// freeing the entire ring for the blocked publisher.
		Expect(a.ProcessIncomingNotify(ctx)).To(Succeed())

		Eventually(done, 5*time.Second, 10*time.Millisecond).Should(Receive(BeNil()))

		Expect(a.ProcessIncomingNotify(ctx)).To(Succeed())
		delivered := aFrontend.Flushed()
		Expect(delivered).To(HaveLen(rounds))
		for i, d := range delivered {
			Expect(d.Channel).To(Equal("c"))
			Expect(d.SourcePID).To(Equal(int32(200)))
			Expect(d.Payload).To(HavePrefix(fmt.Sprintf("%04d", i)))
		}
	})

	It("observes queue depth and reports a snapshot of active listeners", func() {
		metrics := notify.NewMetrics()
		oc := oracle.NewMemory(h.ledger, 1, oracle.GenPID())
		fe := notify.NewChanFrontend()
		a := notify.NewWorker(h.control, 0, h.store, oc, nil, fe, metrics, nil)

		oc.Begin()
		a.Subscribe("c")
		published, err := a.AtPreCommit(ctx)
		Expect(err).NotTo(HaveOccurred())
		oc.Commit()
		a.AtPostCommit(ctx, published)

		Expect(testutil.ToFloat64(metrics.QueueDepthPages)).To(BeNumerically(">=", 0))

		snap := a.Snapshot()
		Expect(snap.Workers).To(ContainElement(notify.WorkerSnapshot{
			Slot: 0, PID: oc.SelfPID(), Position: snap.Head,
		}))
	})
})
