// Package fname contains filename constants and naming conventions for the
// on-disk paged log store.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package fname

import "fmt"

const (
	// QueueDir is the directory, relative to the data root, that holds
	// segment files for the notification queue.
	QueueDir = ".notify-queue"

	// SegmentExt is the file extension of a segment file.
	SegmentExt = ".seg"
)

// SegmentName returns the four-hex-digit segment file basename for segID.
func SegmentName(segID int) string {
	return fmt.Sprintf("%04x%s", segID, SegmentExt)
}
