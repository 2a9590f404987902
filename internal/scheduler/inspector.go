package scheduler

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/iwanfadzly/call/platform/apperr"

	"github.com/hibiken/asynq"
)

// QueueStats is the operator-facing snapshot of one lane.
type QueueStats struct {
	Lane      string `json:"lane"`
	Waiting   int    `json:"waiting"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Delayed   int    `json:"delayed"`
	Retry     int    `json:"retry"`
}

// JobStatus describes a single job, including its terminal error if it
// exhausted its retries.
type JobStatus struct {
	ID           string          `json:"id"`
	Lane         string          `json:"lane"`
	Type         string          `json:"type"`
	State        string          `json:"state"`
	Payload      json.RawMessage `json:"payload"`
	Retried      int             `json:"retried"`
	MaxRetry     int             `json:"maxRetry"`
	LastError    string          `json:"lastError,omitempty"`
	LastFailedAt *time.Time      `json:"lastFailedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}

// Inspector exposes read-only queue observability.
type Inspector struct {
	inspector *asynq.Inspector
}

func NewInspector(redisURL string) (*Inspector, error) {
	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return &Inspector{inspector: asynq.NewInspector(opt)}, nil
}

func (i *Inspector) Close() error {
	if i == nil || i.inspector == nil {
		return nil
	}
	return i.inspector.Close()
}

// Stats returns the per-lane waiting/active/completed/failed/delayed counts.
func (i *Inspector) Stats(lane string) (QueueStats, error) {
	if !validLane(lane) {
		return QueueStats{}, apperr.NotFound("unknown queue lane")
	}

	info, err := i.inspector.GetQueueInfo(lane)
	if err != nil {
		return QueueStats{}, err
	}

	return QueueStats{
		Lane:      lane,
		Waiting:   info.Pending,
		Active:    info.Active,
		Completed: info.Completed,
		Failed:    info.Failed,
		Delayed:   info.Scheduled,
		Retry:     info.Retry,
	}, nil
}

// Job returns the current state of a job by id, including the terminal error
// of a failed-exhausted job so the initiating user can be informed.
func (i *Inspector) Job(lane, id string) (JobStatus, error) {
	if !validLane(lane) {
		return JobStatus{}, apperr.NotFound("unknown queue lane")
	}

	info, err := i.inspector.GetTaskInfo(lane, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return JobStatus{}, apperr.NotFound("job not found")
		}
		return JobStatus{}, err
	}

	status := JobStatus{
		ID:       info.ID,
		Lane:     info.Queue,
		Type:     info.Type,
		State:    info.State.String(),
		Payload:  json.RawMessage(info.Payload),
		Retried:  info.Retried,
		MaxRetry: info.MaxRetry,
	}

	if info.LastErr != "" {
		status.LastError = info.LastErr
	}
	if !info.LastFailedAt.IsZero() {
		t := info.LastFailedAt
		status.LastFailedAt = &t
	}
	if !info.CompletedAt.IsZero() {
		t := info.CompletedAt
		status.CompletedAt = &t
	}

	return status, nil
}

func validLane(lane string) bool {
	switch lane {
	case LaneCalls, LaneWhatsApp, LaneExports:
		return true
	}
	return false
}
