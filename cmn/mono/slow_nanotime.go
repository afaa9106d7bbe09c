//go:build !mono

// Package mono provides low-level monotonic time.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns nanoseconds elapsed since process start, monotonic
// within a single run. Build with -tags mono for the runtime-linked
// fast path.
func NanoTime() int64 { return int64(time.Since(start)) }
