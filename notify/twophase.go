package notify

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/aisnotify/notifyd/wire"
)

// NotifyResourceID is the reserved two-phase-commit resource manager id
// this module registers its records under.
const NotifyResourceID uint8 = 0xE1 // arbitrary, reserved for this module

// RecordStore is the two-phase-commit record persistence collaborator:
// out of scope for this module (spec.md §1), consumed as an interface.
type RecordStore interface {
	Register(resourceID uint8, flags uint16, buf []byte) error
}

// encodeTwoPhaseRecord serializes a notification for Prepare, so it can
// be replayed verbatim at twophase_postcommit without re-deriving it
// from the transaction's (already-gone) pending_notifications list.
func encodeTwoPhaseRecord(n wire.Notification) []byte {
	buf := make([]byte, 2+len(n.Channel)+2+len(n.Payload))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(n.Channel)))
	off := 2
	off += copy(buf[off:], n.Channel)
	binary.LittleEndian.PutUint16(buf[off:off+2], uint16(len(n.Payload)))
	off += 2
	copy(buf[off:], n.Payload)
	return buf
}

func decodeTwoPhaseRecord(buf []byte) (wire.Notification, error) {
	if len(buf) < 2 {
		return wire.Notification{}, fmt.Errorf("notify: truncated two-phase record")
	}
	chanLen := int(binary.LittleEndian.Uint16(buf[0:2]))
	off := 2
	if off+chanLen+2 > len(buf) {
		return wire.Notification{}, fmt.Errorf("notify: truncated two-phase record channel")
	}
	channel := string(buf[off : off+chanLen])
	off += chanLen
	payLen := int(binary.LittleEndian.Uint16(buf[off : off+2]))
	off += 2
	if off+payLen > len(buf) {
		return wire.Notification{}, fmt.Errorf("notify: truncated two-phase record payload")
	}
	payload := string(buf[off : off+payLen])
	return wire.Notification{Channel: channel, Payload: payload}, nil
}

// Memory is an in-process RecordStore, keyed by an opaque handle the
// caller supplies (typically the preparing transaction's xid).
type Memory struct {
	mu      sync.Mutex
	records map[uint64][][]byte
}

func NewMemoryRecordStore() *Memory { return &Memory{records: make(map[uint64][][]byte)} }

// RegisterFor stores buf under xid; resourceID/flags mirror the arguments
// of RecordStore.Register but are not stored or used. Memory keys records
// by xid and does not itself implement RecordStore.
func (m *Memory) RegisterFor(xid uint64, _ uint8, _ uint16, buf []byte) error {
	m.mu.Lock()
	m.records[xid] = append(m.records[xid], buf)
	m.mu.Unlock()
	return nil
}

// Take returns and clears every record registered for xid.
func (m *Memory) Take(xid uint64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	bufs := m.records[xid]
	delete(m.records, xid)
	return bufs
}
