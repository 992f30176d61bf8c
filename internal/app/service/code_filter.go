package service

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// CodeFilter is a bloom filter over issued shortcodes. The registrar
// consults it to skip store round-trips for codes that are definitely
// unseen; a positive answer is only "maybe" and the store's unique
// insert stays authoritative. A nil filter answers "unseen" for
// everything.
type CodeFilter struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// NewCodeFilter sizes a filter for the expected number of codes and
// target false-positive rate.
func NewCodeFilter(capacity uint, falsePositiveRate float64) *CodeFilter {
	return &CodeFilter{
		filter: bloom.NewWithEstimates(capacity, falsePositiveRate),
	}
}

// Warm seeds the filter with already-issued codes, typically loaded
// from the store at startup.
func (f *CodeFilter) Warm(codes []string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, code := range codes {
		f.filter.AddString(code)
	}
}

// Add marks a code as issued.
func (f *CodeFilter) Add(code string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(code)
}

// MightContain reports whether the code may have been issued. False
// means definitely not; true means check the store.
func (f *CodeFilter) MightContain(code string) bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.TestString(code)
}
