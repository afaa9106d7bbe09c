//go:build debug

// Package debug provides assertion helpers compiled out of non-debug builds.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"fmt"
	"runtime"
	"sync"
)

func ON() bool { return true }

func Func(f func()) { f() }

func Assert(cond bool, args ...any) {
	if cond {
		return
	}
	fatal(args...)
}

func AssertFunc(f func() bool, args ...any) {
	if f() {
		return
	}
	fatal(args...)
}

func AssertNoErr(err error) {
	if err == nil {
		return
	}
	fatal(err)
}

func Assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	fatal(fmt.Sprintf(format, args...))
}

// AssertMutexLocked and friends use TryLock as a non-invasive probe: if the
// lock is free, TryLock succeeds and is immediately released, which means
// the caller did not in fact hold it.
func AssertMutexLocked(mu *sync.Mutex) {
	if mu.TryLock() {
		mu.Unlock()
		fatal("mutex not locked")
	}
}

func AssertRWMutexLocked(mu *sync.RWMutex) {
	if mu.TryLock() {
		mu.Unlock()
		fatal("rwmutex not locked")
	}
}

func AssertRWMutexRLocked(mu *sync.RWMutex) {
	if mu.TryLock() {
		mu.Unlock()
		fatal("rwmutex not (r)locked")
	}
}

func fatal(args ...any) {
	_, file, line, ok := runtime.Caller(2)
	if ok {
		panic(fmt.Sprintf("assertion failed at %s:%d: %s", file, line, fmt.Sprint(args...)))
	}
	panic(fmt.Sprintf("assertion failed: %s", fmt.Sprint(args...)))
}
