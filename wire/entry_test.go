package wire_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aisnotify/notifyd/wire"
)

var _ = Describe("Entry", func() {
	Describe("Encode/WriteTo/ReadAt round trip", func() {
		It("recovers an ordinary notification unchanged", func() {
			n := wire.Notification{Channel: "orders", Payload: "row-42-updated"}
			e := wire.Encode(n, 7, 12345, 999)

			page := make([]byte, wire.PageSize)
			written := e.WriteTo(page, 0)
			Expect(written).To(Equal(e.Length))

			got, err := wire.ReadAt(page, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.IsFiller()).To(BeFalse())
			Expect(got.Channel).To(Equal("orders"))
			Expect(got.Payload).To(Equal("row-42-updated"))
			Expect(got.DatabaseID).To(Equal(uint32(7)))
			Expect(got.Xid).To(Equal(uint64(12345)))
			Expect(got.SourcePID).To(Equal(int32(999)))
		})

		It("round-trips an empty channel and empty payload", func() {
			n := wire.Notification{Channel: "", Payload: ""}
			e := wire.Encode(n, 1, 1, 1)
			page := make([]byte, wire.PageSize)
			e.WriteTo(page, 0)
			got, err := wire.ReadAt(page, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Channel).To(Equal(""))
			Expect(got.Payload).To(Equal(""))
		})

		It("round-trips at a non-zero offset", func() {
			n := wire.Notification{Channel: "c", Payload: "payload data"}
			e := wire.Encode(n, 2, 2, 2)
			page := make([]byte, wire.PageSize)
			off := int32(512)
			e.WriteTo(page, off)
			got, err := wire.ReadAt(page, off)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Payload).To(Equal("payload data"))
		})
	})

	Describe("Filler", func() {
		It("reports IsFiller and carries no channel or payload", func() {
			f := wire.Filler(200)
			Expect(f.IsFiller()).To(BeTrue())
			page := make([]byte, wire.PageSize)
			f.WriteTo(page, 0)
			got, err := wire.ReadAt(page, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.IsFiller()).To(BeTrue())
			Expect(got.Channel).To(Equal(""))
		})
	})

	Describe("ReadAt error handling", func() {
		It("rejects a truncated header", func() {
			page := make([]byte, 2)
			_, err := wire.ReadAt(page, 0)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a corrupt length that overruns the page", func() {
			page := make([]byte, wire.PageSize)
			n := wire.Notification{Channel: "x", Payload: "y"}
			e := wire.Encode(n, 1, 1, 1)
			e.WriteTo(page, 0)
			// stomp the length field so it claims to run past the page.
			page[0] = 0xff
			page[1] = 0xff
			page[2] = 0xff
			page[3] = 0x7f
			_, err := wire.ReadAt(page, 0)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("EncodedSize", func() {
		It("matches what WriteTo actually writes", func() {
			n := wire.Notification{Channel: "ch", Payload: "pl"}
			Expect(wire.EncodedSize(n.Channel, n.Payload)).To(Equal(wire.Encode(n, 1, 1, 1).Length))
		})

		It("does not vary with the channel name's length", func() {
			short := wire.Encode(wire.Notification{Channel: "a", Payload: "x"}, 1, 1, 1)
			long := wire.Encode(wire.Notification{Channel: "a-considerably-longer-channel-name", Payload: "x"}, 1, 1, 1)
			Expect(short.Length).To(Equal(long.Length))
		})

		It("round-trips a channel name up to MaxChan-1 bytes", func() {
			name := make([]byte, wire.MaxChan-1)
			for i := range name {
				name[i] = 'c'
			}
			n := wire.Notification{Channel: string(name), Payload: "x"}
			e := wire.Encode(n, 1, 1, 1)
			page := make([]byte, wire.PageSize)
			e.WriteTo(page, 0)
			got, err := wire.ReadAt(page, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Channel).To(Equal(string(name)))
		})
	})
})
