package scheduler

import (
	"time"

	"go.uber.org/zap"
)

// Summary is the outcome of one target run.
type Summary struct {
	RunID          string    `json:"run_id"`
	Target         string    `json:"target"`
	SuccessCount   int       `json:"success_count"`
	FailureCount   int       `json:"failure_count"`
	SavedCount     int       `json:"saved_count"`
	DuplicateCount int       `json:"duplicate_count"`
	Errors         []string  `json:"errors"`
	Warnings       []string  `json:"warnings"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s Summary) fields() []zap.Field {
	return []zap.Field{
		zap.String("run_id", s.RunID),
		zap.String("target", s.Target),
		zap.Int("success", s.SuccessCount),
		zap.Int("failure", s.FailureCount),
		zap.Int("saved", s.SavedCount),
		zap.Int("duplicates", s.DuplicateCount),
		zap.Int("errors", len(s.Errors)),
		zap.Int("warnings", len(s.Warnings)),
		zap.Duration("duration", s.Duration()),
	}
}
