package processor

import (
	"sync"
	"time"
)

// ProcessingError records one failed record within a run.
type ProcessingError struct {
	RowNumber     int    `json:"rowNumber"`
	Error         string `json:"error"`
	RecordingLink string `json:"recordingLink"`
}

// ProcessingStats aggregates run-level counters. Appends happen from
// concurrent record goroutines, so everything goes through the mutex.
type ProcessingStats struct {
	mu sync.Mutex

	Total     int
	Processed int
	Failed    int
	Skipped   int
	StartTime time.Time
	EndTime   time.Time
	Errors    []ProcessingError
}

func newStats(total, skipped int) *ProcessingStats {
	return &ProcessingStats{
		Total:     total,
		Skipped:   skipped,
		StartTime: time.Now(),
	}
}

func (s *ProcessingStats) markProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
}

func (s *ProcessingStats) markFailed(rowNumber int, link string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed++
	s.Errors = append(s.Errors, ProcessingError{
		RowNumber:     rowNumber,
		Error:         err.Error(),
		RecordingLink: link,
	})
}

func (s *ProcessingStats) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EndTime = time.Now()
}

// HasFailures reports whether any record failed; the CLI exit code hangs
// off this.
func (s *ProcessingStats) HasFailures() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Failed > 0
}
