// Package wire defines the on-disk queue entry format and the (page,
// offset) position type that the rest of this module's packages operate
// on.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package wire

const (
	// PageSize is the fixed size of a page in the paged log store.
	PageSize = 8192

	// SegmentPages is the number of consecutive pages a store segment
	// file holds; truncation happens a whole segment at a time.
	SegmentPages = 16

	// MaxPage is the highest legal page id; page ids wrap from MaxPage
	// back to 0.
	MaxPage = SegmentPages * 0xFFFF

	// MaxPayload is the largest payload, in bytes, a notification may
	// carry (not counting the trailing NUL).
	MaxPayload = 8000

	// MaxChan is the largest channel name, in bytes, including the
	// trailing NUL.
	MaxChan = 64

	// MaxWorkers bounds the number of backend slots in the shared
	// control block.
	MaxWorkers = 64

	// InvalidDatabaseID marks a filler entry.
	InvalidDatabaseID = ^uint32(0)

	// InvalidXid marks an entry with no owning transaction (fillers).
	InvalidXid = ^uint64(0)

	// InvalidPID marks an unused backend slot.
	InvalidPID = int32(-1)
)

// entryHeaderSize is the fixed-width portion of an encoded Entry: Length
// (4) + DatabaseID (4) + Xid (8) + SourcePID (4).
const entryHeaderSize = 4 + 4 + 8 + 4

// MinEntrySize is the smallest an encoded entry can be: the fixed header,
// the fixed-width channel field, and a single NUL byte for an empty
// payload. Channel names never vary an entry's on-wire length — they
// occupy a fixed MaxChan-byte field the way a NAMEDATALEN-sized channel
// array does, not a length-prefixed or NUL-delimited variable run —
// so only the payload grows Length past MinEntrySize. advance() uses
// this to decide whether another entry could possibly fit on the
// current page.
const MinEntrySize = entryHeaderSize + MaxChan + 1
