package notify

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/aisnotify/notifyd/ctrl"
	"github.com/aisnotify/notifyd/wire"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot is a diagnostic dump of the control block's current state,
// for an operator-facing introspection endpoint.
type Snapshot struct {
	Head    wire.Position    `json:"head"`
	Tail    wire.Position    `json:"tail"`
	Workers []WorkerSnapshot `json:"workers"`
}

type WorkerSnapshot struct {
	Slot     int           `json:"slot"`
	PID      int32         `json:"pid"`
	Position wire.Position `json:"position"`
}

// Snapshot is this worker's diagnostics entry point: an operator-facing
// dump of the whole control block, not just this worker's own slot.
func (w *Worker) Snapshot() Snapshot { return TakeSnapshot(w.Control) }

// TakeSnapshot builds a Snapshot of c under a shared lock.
func TakeSnapshot(c *ctrl.Control) Snapshot {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	s := Snapshot{Head: c.Head, Tail: c.Tail}
	for i, b := range c.Backend {
		if b.Active() {
			s.Workers = append(s.Workers, WorkerSnapshot{Slot: i, PID: b.PID, Position: b.Position})
		}
	}
	return s
}

// MarshalJSON encodes the snapshot via jsoniter, matching this module's
// fast/compatible JSON codec used everywhere else a diagnostic dump is
// produced.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	return json.Marshal(alias(s))
}
