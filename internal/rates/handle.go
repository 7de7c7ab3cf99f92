package rates

import "sync"

// SharedDataset hands the current Dataset generation to any number of
// concurrent readers while the daily refresh swaps in replacements. Readers
// copy the pointer under a read lock and keep working on the immutable value
// after releasing it; a swap holds the write lock only for the pointer
// exchange, so it never blocks on parsing or network time.
type SharedDataset struct {
	mu sync.RWMutex
	ds *Dataset
}

// NewSharedDataset wraps the first acquired generation.
func NewSharedDataset(ds *Dataset) *SharedDataset {
	return &SharedDataset{ds: ds}
}

// Snapshot returns the current generation. The result is immutable and stays
// fully consistent even if a swap lands while the caller is still using it.
func (s *SharedDataset) Snapshot() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds
}

// Swap publishes a new generation.
func (s *SharedDataset) Swap(ds *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
}
