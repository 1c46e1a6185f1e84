// Package jobs moves long-running work (campaign generation, engagement analysis) off the
// request path. The API enqueues and returns; a Runner in the worker process executes.
// Completion is observed through the status columns the handlers write.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job types
const (
	TypeCampaignGenerate = "campaign.generate"
	TypeScheduleAnalyze  = "schedule.analyze"
)

var ErrQueueFull = errors.New("job queue is full")

type Job struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

func NewJob(jobType string, payload any) (Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode %s payload: %w", jobType, err)
	}
	return Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    data,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks up to wait for a job. It returns (nil, nil) when nothing arrived.
	Dequeue(ctx context.Context, wait time.Duration) (*Job, error)
}

// Enqueue builds and enqueues a job in one step.
func Enqueue(ctx context.Context, q Queue, jobType string, payload any) (Job, error) {
	job, err := NewJob(jobType, payload)
	if err != nil {
		return Job{}, err
	}
	if err := q.Enqueue(ctx, job); err != nil {
		return Job{}, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return job, nil
}
