package scheduler

import "sync"

// Slot is the single per-process build-slot cell: at most one gated (non-try)
// build may be in flight across every managed repository at a time. Try
// builds never touch it.
type Slot struct {
	mu      sync.Mutex
	holder  string // merge_sha currently occupying the slot, or "" if free
}

// TryClaim claims the slot for mergeSHA if it is free. Returns false if the
// slot is already held by another build.
func (s *Slot) TryClaim(mergeSHA string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder != "" {
		return false
	}
	s.holder = mergeSHA
	return true
}

// Release frees the slot if it is currently held by mergeSHA. Releasing a
// slot held by a different SHA (or an already-free slot) is a no-op.
func (s *Slot) Release(mergeSHA string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder == mergeSHA {
		s.holder = ""
	}
}

// Busy reports whether the slot is currently held.
func (s *Slot) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holder != ""
}
