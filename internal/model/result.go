package model

import "time"

// ProcessStatus is the terminal outcome of one record's trip through the
// enrichment pipeline.
type ProcessStatus string

const (
	StatusSuccess          ProcessStatus = "success"
	StatusFailed           ProcessStatus = "failed"
	StatusNotFound         ProcessStatus = "not_found"
	StatusValidationFailed ProcessStatus = "validation_failed"
	StatusIDMismatch       ProcessStatus = "id_mismatch"
	StatusSkipped          ProcessStatus = "skipped"
)

// ProcessResult is the per-record outcome reported to the caller. It is
// never persisted; it lives only for the duration of one run.
type ProcessResult struct {
	Status     ProcessStatus `json:"status"`
	RecordID   string        `json:"record_id"`
	CustomerID string        `json:"customer_id,omitempty"`
	Name       string        `json:"name,omitempty"`
	PlaceID    string        `json:"place_id,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	Errors     []string      `json:"errors,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// RunStats summarizes one pipeline invocation.
type RunStats struct {
	RunID            string    `json:"run_id"`
	TotalProcessed   int       `json:"total_processed"`
	Successful       int       `json:"successful"`
	Failed           int       `json:"failed"`
	NotFound         int       `json:"not_found"`
	ValidationFailed int       `json:"validation_failed"`
	IDMismatch       int       `json:"id_mismatch"`
	SkippedConflict  int       `json:"skipped_conflict"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at,omitempty"`
	SuccessRate      float64   `json:"success_rate"`
}

// Record tallies a result into the stats.
func (s *RunStats) Record(r ProcessResult) {
	s.TotalProcessed++
	switch r.Status {
	case StatusSuccess:
		s.Successful++
	case StatusFailed:
		s.Failed++
	case StatusNotFound:
		s.NotFound++
	case StatusValidationFailed:
		s.ValidationFailed++
	case StatusIDMismatch:
		s.IDMismatch++
	case StatusSkipped:
		s.SkippedConflict++
	}
}

// Finish stamps the end time and computes the success rate.
func (s *RunStats) Finish(now time.Time) {
	s.FinishedAt = now
	if s.TotalProcessed > 0 {
		s.SuccessRate = float64(s.Successful) / float64(s.TotalProcessed)
	}
}
