package notify

import "sync"

// Frontend is the outbound wire-protocol collaborator: framing a
// delivered notification onto the worker's client connection and
// flushing it. The real implementation lives in the frontend protocol
// layer, out of scope for this module (spec.md §1); ChanFrontend below
// stands in for it in tests.
type Frontend interface {
	SendNotify(channel, payload string, sourcePID int32)
	FlushOutput()
}

// Delivered is one notification as handed to a Frontend.
type Delivered struct {
	Channel   string
	Payload   string
	SourcePID int32
}

// ChanFrontend buffers delivered notifications in memory and only makes
// them visible to readers once FlushOutput is called, mirroring the
// real protocol's "don't flush until end of ProcessIncomingNotify" rule
// (spec.md §4.6).
type ChanFrontend struct {
	mu      sync.Mutex
	pending []Delivered
	flushed []Delivered
}

func NewChanFrontend() *ChanFrontend { return &ChanFrontend{} }

func (f *ChanFrontend) SendNotify(channel, payload string, sourcePID int32) {
	f.mu.Lock()
	f.pending = append(f.pending, Delivered{Channel: channel, Payload: payload, SourcePID: sourcePID})
	f.mu.Unlock()
}

func (f *ChanFrontend) FlushOutput() {
	f.mu.Lock()
	f.flushed = append(f.flushed, f.pending...)
	f.pending = nil
	f.mu.Unlock()
}

// Flushed returns every notification that has been flushed so far.
func (f *ChanFrontend) Flushed() []Delivered {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Delivered, len(f.flushed))
	copy(out, f.flushed)
	return out
}

// nopFrontend discards everything; useful for benchmarks and for
// workers that never actually deliver (e.g. a pure publisher in tests).
type nopFrontend struct{}

func (nopFrontend) SendNotify(string, string, int32) {}
func (nopFrontend) FlushOutput()                     {}

// NopFrontend returns a Frontend that discards all deliveries.
func NopFrontend() Frontend { return nopFrontend{} }
