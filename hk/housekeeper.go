// Package hk provides a mechanism for registering cleanup/maintenance
// functions which are invoked at specified intervals.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package hk

import (
	"container/heap"
	"sync"
	"time"

	"github.com/aisnotify/notifyd/cmn/debug"
	"github.com/aisnotify/notifyd/cmn/nlog"
)

// CB is a registered housekeeping function: it runs at `now` and returns the
// duration until it should run again. Returning <= 0 unregisters it.
type CB func(now time.Time) time.Duration

type request struct {
	name string
	f    CB
	d    time.Duration
	del  bool
}

type job struct {
	name string
	f    CB
	due  time.Time
	idx  int
}

type jobHeap []*job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].idx, h[j].idx = i, j }
func (h *jobHeap) Push(x any)         { j := x.(*job); j.idx = len(*h); *h = append(*h, j) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}

// Housekeeper runs a single goroutine that wakes up for the next due job,
// runs it, and reschedules it.
type Housekeeper struct {
	reqs    chan request
	stop    chan struct{}
	started chan struct{}
	once    sync.Once
}

var DefaultHK = New()

func New() *Housekeeper {
	return &Housekeeper{
		reqs:    make(chan request, 64),
		stop:    make(chan struct{}),
		started: make(chan struct{}),
	}
}

// TestInit resets the default housekeeper, for use at the top of test suites
// that register and exercise housekeeping jobs.
func TestInit() { DefaultHK = New() }

func WaitStarted() { <-DefaultHK.started }

func Reg(name string, f CB, initial time.Duration) { DefaultHK.Reg(name, f, initial) }
func Unreg(name string)                            { DefaultHK.Unreg(name) }

func (hk *Housekeeper) Reg(name string, f CB, initial time.Duration) {
	debug.Assert(f != nil)
	hk.reqs <- request{name: name, f: f, d: initial}
}

func (hk *Housekeeper) Unreg(name string) {
	hk.reqs <- request{name: name, del: true}
}

// Run is the housekeeper's main loop; call it once, typically in its own
// goroutine, and it runs until Stop is called.
func (hk *Housekeeper) Run() {
	jobs := &jobHeap{}
	heap.Init(jobs)
	byName := map[string]*job{}

	hk.once.Do(func() { close(hk.started) })

	var timer *time.Timer
	for {
		var fire <-chan time.Time
		if jobs.Len() > 0 {
			d := time.Until((*jobs)[0].due)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			fire = timer.C
		}

		select {
		case <-hk.stop:
			if timer != nil {
				timer.Stop()
			}
			return

		case req := <-hk.reqs:
			if timer != nil {
				timer.Stop()
				timer = nil
			}
			if req.del {
				if j, ok := byName[req.name]; ok {
					heap.Remove(jobs, j.idx)
					delete(byName, req.name)
				}
				continue
			}
			j := &job{name: req.name, f: req.f, due: time.Now().Add(req.d)}
			if old, ok := byName[req.name]; ok {
				heap.Remove(jobs, old.idx)
			}
			byName[req.name] = j
			heap.Push(jobs, j)

		case now := <-fire:
			j := heap.Pop(jobs).(*job)
			delete(byName, j.name)
			next := j.f(now)
			if next <= 0 {
				continue
			}
			nj := &job{name: j.name, f: j.f, due: now.Add(next)}
			byName[nj.name] = nj
			heap.Push(jobs, nj)
			nlog.Infof("hk: ran %q, next in %s", j.name, next)
		}
	}
}

func (hk *Housekeeper) Stop() { close(hk.stop) }
