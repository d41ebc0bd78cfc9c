package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/internal/links"
)

// TaskEnqueuer is the part of *asynq.Client the API needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var _ links.Notifier = (*SubmissionNotifier)(nil)

// SubmissionNotifier queues an archive task for every recorded submission.
type SubmissionNotifier struct {
	client TaskEnqueuer
}

func NewSubmissionNotifier(client TaskEnqueuer) *SubmissionNotifier {
	return &SubmissionNotifier{client: client}
}

func (n *SubmissionNotifier) SubmissionRecorded(ctx context.Context, sub *models.FormSubmission) error {
	task, err := NewArchiveSubmissionTask(ArchiveSubmissionPayload{SubmissionID: sub.ID})
	if err != nil {
		return fmt.Errorf("building archive task: %w", err)
	}

	if _, err := n.client.EnqueueContext(ctx, task,
		asynq.Queue("default"),
		asynq.MaxRetry(5),
		asynq.TaskID("archive:"+sub.ID.String()),
	); err != nil {
		return fmt.Errorf("enqueueing archive task: %w", err)
	}
	return nil
}
