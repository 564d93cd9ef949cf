package logging

// ProgressSampler suppresses per-item progress logs while preserving signal
// every N completions and on the final completion of a batch.
type ProgressSampler struct {
	every int
	total int
	last  int
}

// NewProgressSampler constructs a sampler that emits every `every` completions
// (default 10) and always on the completion that reaches total.
func NewProgressSampler(every, total int) *ProgressSampler {
	if every <= 0 {
		every = 10
	}
	return &ProgressSampler{every: every, total: total}
}

// ShouldLog reports whether a progress line should be written for the given
// completed count. Counts that do not advance are ignored.
func (s *ProgressSampler) ShouldLog(completed int) bool {
	if s == nil {
		return true
	}
	if completed <= s.last {
		return false
	}
	s.last = completed
	if s.total > 0 && completed >= s.total {
		return true
	}
	return completed%s.every == 0
}

// Reset clears the sampler state for a new batch size.
func (s *ProgressSampler) Reset(total int) {
	if s == nil {
		return
	}
	s.total = total
	s.last = 0
}
