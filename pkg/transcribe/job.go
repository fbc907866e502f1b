package transcribe

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/tutorcore/pkg/gateway"
)

// Status is the lifecycle state of a transcription job.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var validTransitions = map[Status][]Status{
	StatusSubmitted: {StatusPending, StatusCompleted, StatusFailed},
	StatusPending:   {StatusPending, StatusCompleted, StatusFailed},
}

func transitionValid(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError is returned when a job is moved along an edge the
// state machine does not have, for example out of a terminal state.
type InvalidTransitionError struct {
	JobID string
	From  Status
	To    Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transcribe: job %s cannot move from %s to %s", e.JobID, e.From, e.To)
}

// Job tracks one submitted audio object. The orchestrator is its only writer.
type Job struct {
	ID         string
	ObjectKey  string
	Language   string
	Mode       gateway.CompletionMode
	Status     Status
	Transcript string
	// Token is the recognizer's handle for async jobs.
	Token string
	// Message carries the remote failure text for failed jobs.
	Message   string
	UpdatedAt time.Time
}

func NewJob(objectKey, language string, mode gateway.CompletionMode) *Job {
	return &Job{
		ID:        uuid.NewString(),
		ObjectKey: objectKey,
		Language:  language,
		Mode:      mode,
		Status:    StatusSubmitted,
		UpdatedAt: time.Now(),
	}
}

// Apply moves the job to the state described by p.
func (j *Job) Apply(p Poll) error {
	if err := j.transition(p.Status); err != nil {
		return err
	}
	switch p.Status {
	case StatusCompleted:
		j.Transcript = p.Transcript
	case StatusFailed:
		j.Message = p.Message
	}
	return nil
}

func (j *Job) transition(to Status) error {
	if !transitionValid(j.Status, to) {
		return &InvalidTransitionError{JobID: j.ID, From: j.Status, To: to}
	}
	j.Status = to
	j.UpdatedAt = time.Now()
	return nil
}

// Poll is the outcome of one result check. Pending is not an error: the
// caller should check again later.
type Poll struct {
	Status     Status
	Transcript string
	Message    string
	// ArtifactKey is the storage object the result was read from.
	ArtifactKey string
}

func (p Poll) Pending() bool {
	return p.Status == StatusPending
}
