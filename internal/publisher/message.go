package publisher

import (
	"time"

	"nepal_jobs/internal/domain"
)

const ActionCreated = "created"

// JobMessage is the event emitted when a posting is stored for the first time.
type JobMessage struct {
	Action    string            `json:"action"`
	Posting   domain.JobPosting `json:"posting"`
	Timestamp time.Time         `json:"timestamp"`
}

func newJobMessage(posting *domain.JobPosting) JobMessage {
	return JobMessage{
		Action:    ActionCreated,
		Posting:   *posting,
		Timestamp: time.Now().UTC(),
	}
}
