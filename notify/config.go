// Package notify ties the lower-level packages (wire, ctrl, store, sub,
// txn, oracle, wakeup) together into the publish/subscribe/consume
// protocol: pre-commit publish, post-commit signal, signal-driven
// consume, and the lifecycle hooks a transaction manager drives this
// module through.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package notify

import (
	"sync/atomic"
	"time"

	"github.com/aisnotify/notifyd/wire"
)

// Config holds the tunables a deployment can set once at startup.
// Numeric fields default to the reference constants in wire. Only
// MaxPage, FullWarnInterval and Trace are read by this package; the
// other fields report the compiled-in wire constants, and changing them
// has no effect.
type Config struct {
	MaxPayload       int32
	MaxChan          int32
	PageSize         int32
	SegmentPages     int64
	MaxPage          int64
	MaxWorkers       int
	FullWarnInterval time.Duration
	Trace            bool
}

// DefaultConfig returns a Config matching wire's reference constants.
func DefaultConfig() *Config {
	return &Config{
		MaxPayload:       wire.MaxPayload,
		MaxChan:          wire.MaxChan,
		PageSize:         wire.PageSize,
		SegmentPages:     wire.SegmentPages,
		MaxPage:          wire.MaxPage,
		MaxWorkers:       wire.MaxWorkers,
		FullWarnInterval: 5 * time.Second,
	}
}

// holder is a read-mostly config singleton: readers load a snapshot
// pointer with no locking at all, writers swap it atomically. Modeled on
// the teacher's global read-mostly config pattern (cluster-wide config
// that rarely changes but is read on every hot-path call).
var holder atomic.Pointer[Config]

func init() {
	holder.Store(DefaultConfig())
}

// GCO returns the current process-wide Config snapshot.
func GCO() *Config { return holder.Load() }

// SetGCO installs a new process-wide Config snapshot, replacing the
// previous one in a single atomic pointer swap.
func SetGCO(cfg *Config) { holder.Store(cfg) }
