package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeArchiveSubmission = "submission:archive"
	TypeSweepLinks        = "links:sweep"
)

// ArchiveSubmissionPayload names the submission to copy to the blob store.
type ArchiveSubmissionPayload struct {
	SubmissionID uuid.UUID `json:"submission_id"`
}

func NewArchiveSubmissionTask(payload ArchiveSubmissionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeArchiveSubmission, data), nil
}

// SweepLinksPayload is empty - the retention window comes from config
type SweepLinksPayload struct{}

func NewSweepLinksTask() *asynq.Task {
	return asynq.NewTask(TypeSweepLinks, nil)
}
