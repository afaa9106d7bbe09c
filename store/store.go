// Package store implements the paged log store: fixed-size pages grouped
// into segment files, addressed by a four-hex-digit segment id, with
// whole-segment truncation from the tail.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/OneOfOne/xxhash"

	"github.com/aisnotify/notifyd/cmn/debug"
	"github.com/aisnotify/notifyd/cmn/nlog"
	"github.com/aisnotify/notifyd/wire"
)

// Slot is a handle to one in-memory page, checked out via ReadPage or
// ZeroNewPage and returned via WritePage.
type Slot struct {
	PageID int64
	Data   [wire.PageSize]byte

	dirty bool
}

// PagedStore is the external paged-file abstraction the rest of this
// module is built against.
type PagedStore interface {
	ReadPage(ctx context.Context, pageID int64, excl bool) (*Slot, error)
	ZeroNewPage(ctx context.Context, pageID int64) (*Slot, error)
	WritePage(ctx context.Context, slot *Slot) error
	MarkDirty(slot *Slot)
	TruncateUpTo(ctx context.Context, pageID int64) error
}

// pagesPerSegment mirrors wire.SegmentPages; kept as its own symbol so
// store reads as self-contained when skimmed alongside wire.
const pagesPerSegment = wire.SegmentPages

func segmentID(pageID int64) int64   { return pageID / pagesPerSegment }
func segmentName(segID int64) string { return fmt.Sprintf("%04x.seg", segID) }

// Local is a reference PagedStore that keeps its segments resident in
// memory, grouped by segment id the way segment files would be; it
// performs no file I/O. Every page carries a trailing
// xxhash64 checksum alongside its bytes rather than inline in the page,
// so the checksum never eats into the page's own reserved guard byte.
type Local struct {
	mu       sync.RWMutex
	dir      string
	segments map[int64]*segment
}

type segment struct {
	id    int64
	pages map[int64]*pageRecord
}

type pageRecord struct {
	data     [wire.PageSize]byte
	checksum uint64
}

// NewLocal returns a Local store rooted at dir. dir is recorded but not
// otherwise used by this in-memory implementation; the startup directory
// scan is the separate Scan function, which takes its own dir argument.
func NewLocal(dir string) *Local {
	return &Local{dir: dir, segments: make(map[int64]*segment)}
}

func (s *Local) segmentFor(pageID int64, create bool) *segment {
	id := segmentID(pageID)
	seg, ok := s.segments[id]
	if !ok {
		if !create {
			return nil
		}
		seg = &segment{id: id, pages: make(map[int64]*pageRecord)}
		s.segments[id] = seg
	}
	return seg
}

func checksum(data *[wire.PageSize]byte) uint64 {
	h := xxhash.New64()
	_, _ = h.Write(data[:])
	return h.Sum64()
}

// ReadPage returns the page's content. excl is advisory in this
// implementation (the caller is expected to already hold ctrl/store
// locks appropriate to its intent); it exists so callers read the same
// as against a real LRU buffer pool that distinguishes shared vs.
// exclusive pins.
func (s *Local) ReadPage(_ context.Context, pageID int64, _ bool) (*Slot, error) {
	debug.Assert(pageID >= 0 && pageID <= wire.MaxPage)
	s.mu.RLock()
	defer s.mu.RUnlock()

	seg := s.segmentFor(pageID, false)
	slot := &Slot{PageID: pageID}
	if seg == nil {
		return slot, nil
	}
	rec, ok := seg.pages[pageID]
	if !ok {
		return slot, nil
	}
	if got := checksum(&rec.data); got != rec.checksum {
		nlog.Warningf("store: checksum mismatch at page %d (want %x got %x), returning zero page", pageID, rec.checksum, got)
		return slot, fmt.Errorf("store: checksum mismatch at page %d", pageID)
	}
	slot.Data = rec.data
	return slot, nil
}

// ZeroNewPage returns a zero-filled slot for pageID without touching the
// store's persisted content; the caller writes it back via WritePage.
func (s *Local) ZeroNewPage(_ context.Context, pageID int64) (*Slot, error) {
	debug.Assert(pageID >= 0 && pageID <= wire.MaxPage)
	return &Slot{PageID: pageID}, nil
}

// WritePage persists slot.Data for slot.PageID, recomputing its checksum.
func (s *Local) WritePage(_ context.Context, slot *Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seg := s.segmentFor(slot.PageID, true)
	seg.pages[slot.PageID] = &pageRecord{data: slot.Data, checksum: checksum(&slot.Data)}
	slot.dirty = false
	return nil
}

// MarkDirty flags slot as modified; WritePage must still be called to
// persist it. This mirrors a buffer-pool's dirty bit so callers that
// mutate a Slot's Data in place remember to flush it.
func (s *Local) MarkDirty(slot *Slot) { slot.dirty = true }

// TruncateUpTo drops every whole segment entirely below pageID's segment,
// matching the spec's policy of truncating whole SegmentPages-sized
// segments rather than individual pages.
func (s *Local) TruncateUpTo(_ context.Context, pageID int64) error {
	debug.Assert(pageID >= 0 && pageID <= wire.MaxPage)
	s.mu.Lock()
	defer s.mu.Unlock()

	keepFrom := segmentID(pageID)
	for id := range s.segments {
		if id < keepFrom {
			nlog.Infof("store: truncating segment %s", segmentName(id))
			delete(s.segments, id)
		}
	}
	return nil
}

// SegmentCount reports how many segments currently hold data, for tests
// and diagnostics.
func (s *Local) SegmentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}
