package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/aisnotify/notifyd/cmn/debug"
)

// Entry is a queue entry as stored in a page: a notification plus its
// publishing transaction's identity, or a filler that pads out the
// remainder of a page.
type Entry struct {
	Length     int32
	DatabaseID uint32
	Xid        uint64
	SourcePID  int32
	Channel    string
	Payload    string
}

func (e Entry) IsFiller() bool { return e.DatabaseID == InvalidDatabaseID }

// Notification is the in-memory record carried in per-transaction pending
// lists and delivered to consumers.
type Notification struct {
	Channel string
	Payload string
	Xid     uint64
	PeerPID int32 // source pid on inbound decode
}

// EncodedSize returns the number of bytes Encode(n) will occupy. channel
// is ignored: it's stored in a fixed-width MaxChan field, so only the
// payload affects how far an entry advances the queue.
func EncodedSize(_, payload string) int32 {
	return int32(MinEntrySize + len(payload))
}

// Encode serializes a notification into a queue entry owned by xid/db/pid.
func Encode(n Notification, db uint32, xid uint64, selfPID int32) Entry {
	debug.Assertf(len(payload(n)) <= MaxPayload, "payload too long: %d > %d", len(payload(n)), MaxPayload)
	debug.Assertf(len(n.Channel) < MaxChan, "channel too long: %d >= %d", len(n.Channel), MaxChan)
	return Entry{
		Length:     EncodedSize(n.Channel, n.Payload),
		DatabaseID: db,
		Xid:        xid,
		SourcePID:  selfPID,
		Channel:    n.Channel,
		Payload:    n.Payload,
	}
}

func payload(n Notification) string { return n.Payload }

// Filler returns a padding entry consuming exactly the remaining bytes
// (minus the reserved guard byte) of a page that can't fit another real
// entry, per the paged-log invariant that a page's last byte is never
// written.
func Filler(remaining int32) Entry {
	debug.Assert(remaining >= MinEntrySize)
	return Entry{
		Length:     remaining,
		DatabaseID: InvalidDatabaseID,
		Xid:        InvalidXid,
		SourcePID:  InvalidPID,
	}
}

// WriteTo serializes e into page at offset, returning the number of bytes
// written: e.Length for a real entry, but only MinEntrySize for a filler,
// whose remaining Length bytes are left untouched. Channel occupies a fixed MaxChan-byte
// field regardless of its own length, zero-padded past its NUL
// terminator so a shorter channel never leaves a stale tail from
// whatever entry previously occupied this page region.
func (e Entry) WriteTo(page []byte, offset int32) int32 {
	debug.Assert(int(offset)+int(e.Length) < PageSize)
	b := page[offset:]
	binary.LittleEndian.PutUint32(b[0:4], uint32(e.Length))
	binary.LittleEndian.PutUint32(b[4:8], e.DatabaseID)
	binary.LittleEndian.PutUint64(b[8:16], e.Xid)
	binary.LittleEndian.PutUint32(b[16:20], uint32(e.SourcePID))
	n := int32(entryHeaderSize)
	chanField := b[n : n+MaxChan]
	for i := range chanField {
		chanField[i] = 0
	}
	copy(chanField, e.Channel)
	n += MaxChan
	n += int32(copy(b[n:], e.Payload))
	b[n] = 0
	n++
	debug.Assert(n == e.Length || e.IsFiller())
	return n
}

// ReadAt deserializes the entry stored at offset in page.
func ReadAt(page []byte, offset int32) (Entry, error) {
	if int(offset)+entryHeaderSize+MaxChan > len(page) {
		return Entry{}, fmt.Errorf("wire: truncated entry header at offset %d", offset)
	}
	b := page[offset:]
	e := Entry{
		Length:     int32(binary.LittleEndian.Uint32(b[0:4])),
		DatabaseID: binary.LittleEndian.Uint32(b[4:8]),
		Xid:        binary.LittleEndian.Uint64(b[8:16]),
		SourcePID:  int32(binary.LittleEndian.Uint32(b[16:20])),
	}
	if e.Length < MinEntrySize || int(offset)+int(e.Length) > len(page) {
		return Entry{}, fmt.Errorf("wire: corrupt entry length %d at offset %d", e.Length, offset)
	}
	chanField := b[entryHeaderSize : entryHeaderSize+MaxChan]
	chanEnd := indexByte(chanField, 0)
	if chanEnd < 0 {
		return Entry{}, fmt.Errorf("wire: unterminated channel at offset %d", offset)
	}
	e.Channel = string(chanField[:chanEnd])
	if !e.IsFiller() {
		rest := b[entryHeaderSize+MaxChan : e.Length]
		payEnd := indexByte(rest, 0)
		if payEnd < 0 {
			return Entry{}, fmt.Errorf("wire: unterminated payload at offset %d", offset)
		}
		e.Payload = string(rest[:payEnd])
	}
	return e, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
