// Package cos provides common low-level types and utilities shared by every
// package in this module.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"flag"
	"fmt"
	"sync"
	ratomic "sync/atomic"

	"github.com/aisnotify/notifyd/cmn/debug"
	"github.com/aisnotify/notifyd/cmn/nlog"
)

type (
	ErrNotFound struct {
		what string
	}

	// Errs aggregates up to maxErrs distinct errors, de-duplicating by
	// message. Used where a caller must keep going after a failure (e.g.
	// fanning wakeup signals out to many listeners) but still wants to
	// report what went wrong.
	Errs struct {
		errs []error
		cnt  int64
		mu   sync.Mutex
	}
)

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

const maxErrs = 8

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			e.mu.Unlock()
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
		ratomic.StoreInt64(&e.cnt, int64(len(e.errs)))
	}
	e.mu.Unlock()
}

func (e *Errs) Cnt() int { return int(ratomic.LoadInt64(&e.cnt)) }

func (e *Errs) JoinErr() (cnt int, err error) {
	if cnt = e.Cnt(); cnt > 0 {
		e.mu.Lock()
		err = errors.Join(e.errs...)
		e.mu.Unlock()
	}
	return
}

func (e *Errs) Error() (s string) {
	cnt := e.Cnt()
	if cnt == 0 {
		return
	}
	e.mu.Lock()
	var err error
	if cnt = len(e.errs); cnt > 0 {
		err = e.errs[0]
	}
	e.mu.Unlock()
	if err == nil {
		return
	}
	if cnt > 1 {
		err = fmt.Errorf("%v (and %d more error%s)", err, cnt-1, Plural(cnt-1))
	}
	return err.Error()
}

//
// abnormal termination
//

const fatalPrefix = "FATAL ERROR: "

func Exitf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	_exit(msg)
}

// ExitLogf logs before exiting, for use once flags (and therefore logging)
// have been set up.
func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	if flag.Parsed() {
		nlog.ErrorDepth(1, msg)
		nlog.Flush(true)
	}
	_exit(msg)
}

func _exit(msg string) {
	fmt.Println(msg)
	panic(msg)
}
