package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/formlink/internal/archive"
	"github.com/hugh/formlink/internal/links"
)

type Handler struct {
	logger    *slog.Logger
	archiver  *archive.Archiver
	links     *links.Service
	retention time.Duration
}

func NewHandler(logger *slog.Logger, archiver *archive.Archiver, linkService *links.Service, retention time.Duration) *Handler {
	return &Handler{
		logger:    logger,
		archiver:  archiver,
		links:     linkService,
		retention: retention,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeArchiveSubmission, h.HandleArchiveSubmission)
	mux.HandleFunc(TypeSweepLinks, h.HandleSweepLinks)
}

func (h *Handler) HandleArchiveSubmission(ctx context.Context, t *asynq.Task) error {
	var payload ArchiveSubmissionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.SubmissionID == uuid.Nil {
		return fmt.Errorf("missing submission_id: %w", asynq.SkipRetry)
	}

	if _, err := h.archiver.Archive(ctx, payload.SubmissionID); err != nil {
		return fmt.Errorf("archiving submission %s: %w", payload.SubmissionID, err)
	}
	return nil
}

func (h *Handler) HandleSweepLinks(ctx context.Context, t *asynq.Task) error {
	if h.retention <= 0 {
		h.logger.Debug("link sweep disabled")
		return nil
	}

	removed, err := h.links.SweepExpired(ctx, h.retention)
	if err != nil {
		return fmt.Errorf("sweeping links (removed %d before failing): %w", removed, err)
	}

	h.logger.Info("link sweep completed", "removed", removed, "retention", h.retention)
	return nil
}
