// Package prob implements a small probabilistic membership filter used as a
// fast, allocation-free pre-check in front of an authoritative set.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package prob

import (
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// Filter never false-negatives: MaybeContains returning false means s is
// definitely absent. A true result is only "maybe" and must be confirmed
// against the authoritative set. Safe for concurrent use.
type Filter struct {
	mu sync.Mutex
	cf *cuckoo.Filter
}

func NewFilter(capacity uint) *Filter {
	return &Filter{cf: cuckoo.NewFilter(capacity)}
}

func (f *Filter) Insert(s string) {
	f.mu.Lock()
	f.cf.InsertUnique([]byte(s))
	f.mu.Unlock()
}

func (f *Filter) Delete(s string) {
	f.mu.Lock()
	f.cf.Delete([]byte(s))
	f.mu.Unlock()
}

func (f *Filter) MaybeContains(s string) bool {
	f.mu.Lock()
	ok := f.cf.Lookup([]byte(s))
	f.mu.Unlock()
	return ok
}

func (f *Filter) Reset() {
	f.mu.Lock()
	f.cf.Reset()
	f.mu.Unlock()
}
