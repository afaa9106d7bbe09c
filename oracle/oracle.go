// Package oracle defines the transaction-manager collaborator this
// module consumes: commit/abort outcomes and the calling backend's
// transaction identity. The real implementation lives in the
// surrounding database server; Memory is an in-process reference used
// by tests and by any harness exercising this module standalone.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package oracle

import "sync"

// Oracle answers the questions the publish/consume paths need about
// transactions they don't themselves manage.
type Oracle interface {
	DidCommit(xid uint64) bool
	DidAbort(xid uint64) bool
	CurrentXid() uint64
	NestLevel() int
	CurrentDB() uint32
	SelfPID() int32
}

type outcome int

const (
	inProgress outcome = iota
	committed
	aborted
)

// Ledger is the commit/abort outcome table every backend in a database
// consults; it's shared across every backend's Memory in a test harness,
// the way a real transaction manager's commit log is shared across
// backend processes via shared memory.
type Ledger struct {
	mu       sync.Mutex
	outcomes map[uint64]outcome
	nextXid  uint64
}

// NewLedger returns an empty shared outcome table, xids starting at 1.
func NewLedger() *Ledger {
	return &Ledger{outcomes: make(map[uint64]outcome), nextXid: 1}
}

func (l *Ledger) allocate() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	xid := l.nextXid
	l.nextXid++
	l.outcomes[xid] = inProgress
	return xid
}

func (l *Ledger) commit(xid uint64) {
	l.mu.Lock()
	l.outcomes[xid] = committed
	l.mu.Unlock()
}

func (l *Ledger) abort(xid uint64) {
	l.mu.Lock()
	l.outcomes[xid] = aborted
	l.mu.Unlock()
}

func (l *Ledger) didCommit(xid uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outcomes[xid] == committed
}

func (l *Ledger) didAbort(xid uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outcomes[xid] == aborted
}

// Memory is an in-process Oracle for one backend: its own current
// transaction and nesting level, against a Ledger shared with every
// other backend attached to the same database. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	ledger  *Ledger
	current uint64
	nest    int
	db      uint32
	pid     int32
}

// NewMemory returns a Memory oracle for a backend identified by db/pid,
// sharing outcomes with every other Memory built on the same ledger.
func NewMemory(ledger *Ledger, db uint32, pid int32) *Memory {
	return &Memory{ledger: ledger, db: db, pid: pid}
}

// Begin starts a new top-level transaction and returns its xid.
func (m *Memory) Begin() uint64 {
	xid := m.ledger.allocate()
	m.mu.Lock()
	m.current = xid
	m.nest = 1
	m.mu.Unlock()
	return xid
}

// PushSub increments the subtransaction nesting level.
func (m *Memory) PushSub() {
	m.mu.Lock()
	m.nest++
	m.mu.Unlock()
}

// PopSub decrements the subtransaction nesting level.
func (m *Memory) PopSub() {
	m.mu.Lock()
	if m.nest > 1 {
		m.nest--
	}
	m.mu.Unlock()
}

// Commit records the current transaction as committed.
func (m *Memory) Commit() { m.ledger.commit(m.CurrentXid()) }

// Abort records the current transaction as aborted.
func (m *Memory) Abort() { m.ledger.abort(m.CurrentXid()) }

func (m *Memory) DidCommit(xid uint64) bool { return m.ledger.didCommit(xid) }
func (m *Memory) DidAbort(xid uint64) bool  { return m.ledger.didAbort(xid) }

func (m *Memory) CurrentXid() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Memory) NestLevel() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nest
}

func (m *Memory) CurrentDB() uint32 { return m.db }
func (m *Memory) SelfPID() int32    { return m.pid }
