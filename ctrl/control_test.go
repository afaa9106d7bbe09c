package ctrl_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aisnotify/notifyd/ctrl"
	"github.com/aisnotify/notifyd/wire"
)

var _ = Describe("Control", func() {
	It("initializes head and tail at the origin with all slots free", func() {
		c := ctrl.New()
		head, tail := c.Snapshot()
		Expect(head).To(Equal(wire.Position{}))
		Expect(tail).To(Equal(wire.Position{}))
		Expect(c.ActiveSlots()).To(BeEmpty())
		Expect(c.FindSlot()).To(Equal(0))
	})

	It("finds and tracks an active slot", func() {
		c := ctrl.New()
		i := c.FindSlot()
		Expect(i).To(BeNumerically(">=", 0))
		c.Mu.Lock()
		c.Backend[i] = ctrl.Backend{PID: 42, Position: wire.Position{Page: 1}}
		c.Mu.Unlock()

		active := c.ActiveSlots()
		Expect(active).To(HaveLen(1))
		Expect(active[0].PID).To(Equal(int32(42)))
	})

	It("reports no free slot once all MaxWorkers are taken", func() {
		c := ctrl.New()
		c.Mu.Lock()
		for i := range c.Backend {
			c.Backend[i].PID = int32(i + 1)
		}
		c.Mu.Unlock()
		Expect(c.FindSlot()).To(Equal(-1))
	})

	It("reports full only when a maximal entry would cross onto tail's page", func() {
		tailNext := wire.Position{Page: wire.NextPage(3, wire.MaxPage), Offset: 0}

		// Head sitting near the end of its page: a maximal entry can't
		// fit, so the next write crosses onto tail's page.
		near := wire.Position{Page: 3, Offset: wire.PageSize - 10}
		Expect(ctrl.IsFull(near, tailNext, wire.MaxPage)).To(BeTrue())

		// Same head.Page/tail.Page relationship, but head is early on its
		// page: plenty of room left for one more entry before any jump.
		early := wire.Position{Page: 3, Offset: 0}
		Expect(ctrl.IsFull(early, tailNext, wire.MaxPage)).To(BeFalse())

		Expect(ctrl.IsFull(early, wire.Position{Page: 10, Offset: 0}, wire.MaxPage)).To(BeFalse())
	})

	It("frees a slot by resetting its PID to InvalidPID", func() {
		c := ctrl.New()
		i := c.FindSlot()
		c.Mu.Lock()
		c.Backend[i].PID = 7
		c.Mu.Unlock()
		Expect(c.ActiveSlots()).To(HaveLen(1))

		c.Mu.Lock()
		c.Backend[i].PID = wire.InvalidPID
		c.Mu.Unlock()
		Expect(c.ActiveSlots()).To(BeEmpty())
		Expect(c.FindSlot()).To(Equal(i))
	})
})
