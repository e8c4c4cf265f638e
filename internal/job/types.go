package job

import (
	"time"
)

type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// rank orders statuses along the lifecycle; both terminal statuses share the top rank.
func (s Status) rank() int {
	switch s {
	case StatusSubmitted:
		return 0
	case StatusInProgress:
		return 1
	case StatusComplete, StatusFailed:
		return 2
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CanTransition reports whether s may be overwritten with next. Rewriting the
// same status is allowed so redelivered jobs can be reprocessed idempotently.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

type Job struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	StartDate   Date       `json:"start_date"`
	EndDate     Date       `json:"end_date"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Granularity string     `json:"granularity,omitempty"`
	BucketCount int        `json:"bucket_count,omitempty"`
}
