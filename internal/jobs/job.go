// Package jobs tracks conversion jobs and runs them to completion.
package jobs

import (
	"time"
)

// Status represents the current state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether a status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// validTransitions is the job state machine. A job leaves queued only
// by starting or by an observed cancel; errors can only happen once
// the job is processing.
var validTransitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusError, StatusCancelled},
}

func transitionAllowed(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job is a snapshot of one conversion job. Registry methods return
// copies; mutate through the registry only.
type Job struct {
	ID       string `json:"job_id"`
	UserID   string `json:"-"`
	FileName string `json:"filename"`

	// Book coordination. Empty BookID means a standalone conversion.
	BookID       string `json:"book_id,omitempty"`
	ChapterIndex int    `json:"chapter_index,omitempty"`

	// Synthesis parameters.
	Provider string  `json:"provider"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`

	// InputPath is the uploaded document; TextPath, when set, points
	// at pre-extracted text and skips the extraction phase.
	InputPath  string `json:"-"`
	TextPath   string `json:"-"`
	OutputPath string `json:"-"`

	Status   Status `json:"status"`
	Progress int    `json:"progress"` // 0-100
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`

	// Cancel is requested asynchronously; the worker observes it and
	// drives the job to cancelled.
	CancelRequested bool `json:"-"`

	// Synthesis accounting, populated as the job runs.
	AudioBytes int64   `json:"audio_bytes,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	CharCount  int     `json:"char_count,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreateParams describes a new conversion job.
type CreateParams struct {
	// ID is optional; one is generated when empty. Callers that key
	// upload and output paths by job ID supply it up front.
	ID           string
	UserID       string
	FileName     string
	BookID       string
	ChapterIndex int
	Provider     string
	Voice        string
	Speed        float64
	InputPath    string
	TextPath     string
	OutputPath   string
}
