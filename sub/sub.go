// Package sub implements a worker's process-local subscription set: the
// channel names this worker currently listens on, with a cuckoo filter
// in front of the authoritative map so the hot consume-path membership
// check is usually a single probe.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package sub

import (
	"sync"

	"github.com/aisnotify/notifyd/cmn/prob"
)

const filterCapacity = 1024

// Set is one worker's subscription set. Safe for concurrent use: every
// method holds the set's own mutex for its duration.
type Set struct {
	mu       sync.Mutex
	filter   *prob.Filter
	channels map[string]struct{}
}

// New returns an empty subscription set.
func New() *Set {
	return &Set{
		filter:   prob.NewFilter(filterCapacity),
		channels: make(map[string]struct{}),
	}
}

// Add subscribes to channel, idempotently.
func (s *Set) Add(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channel]; ok {
		return
	}
	s.channels[channel] = struct{}{}
	s.filter.Insert(channel)
}

// Remove unsubscribes from channel. A channel not currently subscribed
// is a silent no-op.
func (s *Set) Remove(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channel]; !ok {
		return
	}
	delete(s.channels, channel)
	s.filter.Delete(channel)
}

// Clear removes every subscription.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make(map[string]struct{})
	s.filter.Reset()
}

// IsSubscribed reports whether channel is currently subscribed. The
// filter can false-positive (rare, bounded by its configured capacity)
// but never false-negative, so a filter miss is conclusive; a filter hit
// falls through to the authoritative map.
func (s *Set) IsSubscribed(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.filter.MaybeContains(channel) {
		return false
	}
	_, ok := s.channels[channel]
	return ok
}

// Empty reports whether the set currently has no subscriptions.
func (s *Set) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels) == 0
}

// Len returns the number of currently subscribed channels.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}
