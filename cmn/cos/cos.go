// Package cos provides common low-level types and utilities shared by every
// package in this module.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import "unsafe"

const (
	KiB = 1024
	MiB = 1024 * KiB
)

func Plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// UnsafeS and UnsafeB convert between string and []byte without copying.
// The caller must not mutate the returned []byte, nor retain it past the
// lifetime of the source string.
func UnsafeS(b []byte) string { return *(*string)(unsafe.Pointer(&b)) }
func UnsafeB(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
