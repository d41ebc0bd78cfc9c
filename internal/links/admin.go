package links

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/database/models"
	"gorm.io/gorm"
)

// Reset reverts a used link to pending by destroying its submission. Both
// writes commit together or not at all. The link keeps its expires_at, so a
// link reset after its expiry stays expired.
func (s *Service) Reset(ctx context.Context, p *access.Principal, linkID, submissionID uuid.UUID) (*models.MagicLink, error) {
	if _, err := s.gate.Authorize(p, access.AdminOnly...); err != nil {
		return nil, err
	}

	link, err := s.loadLink(ctx, s.db, linkID)
	if err != nil {
		return nil, err
	}
	if err := TransitionToPending(link); err != nil {
		return nil, err
	}

	var sub models.FormSubmission
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "submission not found")
		}
		return nil, apperr.Infra("loading submission", err)
	}
	if sub.MagicLinkID != link.ID {
		return nil, apperr.Validation("submission does not belong to link", map[string]string{
			"submission_id": "references a different link",
		})
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperr.Infra("starting reset", tx.Error)
	}

	stepErr := func() error {
		res := tx.Where("id = ? AND magic_link_id = ?", sub.ID, link.ID).Delete(&models.FormSubmission{})
		if res.Error != nil {
			return apperr.Infra("deleting submission", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindConflict, "submission was removed concurrently")
		}

		res = tx.Model(&models.MagicLink{}).
			Where("id = ? AND status = ?", link.ID, models.LinkStatusUsed).
			Updates(map[string]any{"status": link.Status, "used_at": nil})
		if res.Error != nil {
			return apperr.Infra("reverting link status", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindConflict, "link changed during reset")
		}
		return nil
	}()

	if err := s.finish(tx, "reset", link.ID, stepErr); err != nil {
		return nil, err
	}

	s.logger.Info("link reset",
		"link_id", link.ID,
		"submission_id", sub.ID,
		"reset_by", p.ID,
	)
	return link, nil
}

// Revoke terminates a link from any state, removing its submission first.
func (s *Service) Revoke(ctx context.Context, p *access.Principal, linkID uuid.UUID) error {
	if _, err := s.gate.Authorize(p, access.AdminOnly...); err != nil {
		return err
	}

	link, err := s.loadLink(ctx, s.db, linkID)
	if err != nil {
		return err
	}
	if _, err := Next(link.Status, EventTerminate); err != nil {
		return err
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return apperr.Infra("starting revoke", tx.Error)
	}
	if err := s.finish(tx, "revoke", link.ID, deleteLink(tx, link.ID)); err != nil {
		return err
	}

	s.logger.Info("link revoked",
		"link_id", link.ID,
		"status", link.Status,
		"revoked_by", p.ID,
	)
	return nil
}

// SweepExpired revokes open links whose expiry passed more than retention
// ago. Used links are kept. It runs as the system, without a principal.
func (s *Service) SweepExpired(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-retention)

	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).
		Model(&models.MagicLink{}).
		Where("status IN ? AND (expires_at IS NULL OR expires_at <= ?)", openStatuses, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, apperr.Infra("finding expired links", err)
	}

	removed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		tx := s.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return removed, apperr.Infra("starting sweep", tx.Error)
		}
		err := s.finish(tx, "sweep", id, deleteLink(tx, id))
		switch {
		case err == nil:
			removed++
		case errors.Is(err, apperr.ErrNotFound):
			// revoked by an admin in the meantime
		default:
			return removed, err
		}
	}

	if removed > 0 {
		s.logger.Info("expired links swept", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// Inconsistency is a link whose status disagrees with its submission.
type Inconsistency struct {
	LinkID       uuid.UUID         `json:"link_id"`
	Status       models.LinkStatus `json:"status"`
	SubmissionID *uuid.UUID        `json:"submission_id,omitempty"`
	Problem      string            `json:"problem"`
}

const (
	ProblemUsedWithoutSubmission = "used_without_submission"
	ProblemOpenWithSubmission    = "open_with_submission"
)

// Inconsistencies reports links breaking the used ⇔ submission rule, for
// manual reconciliation after a partial failure.
func (s *Service) Inconsistencies(ctx context.Context, p *access.Principal) ([]Inconsistency, error) {
	if _, err := s.gate.Authorize(p, access.AdminOnly...); err != nil {
		return nil, err
	}

	type row struct {
		LinkID       uuid.UUID
		Status       models.LinkStatus
		SubmissionID *uuid.UUID
	}

	var rows []row
	if err := s.db.WithContext(ctx).
		Table("magic_links AS l").
		Select("l.id AS link_id, l.status AS status, s.id AS submission_id").
		Joins("LEFT JOIN form_submissions AS s ON s.magic_link_id = l.id").
		Where("(l.status = ? AND s.id IS NULL) OR (l.status IN ? AND s.id IS NOT NULL)",
			models.LinkStatusUsed, openStatuses).
		Order("l.created_at").
		Scan(&rows).Error; err != nil {
		return nil, apperr.Infra("scanning for inconsistencies", err)
	}

	out := make([]Inconsistency, 0, len(rows))
	for _, r := range rows {
		problem := ProblemOpenWithSubmission
		if r.Status == models.LinkStatusUsed {
			problem = ProblemUsedWithoutSubmission
		}
		out = append(out, Inconsistency{
			LinkID:       r.LinkID,
			Status:       r.Status,
			SubmissionID: r.SubmissionID,
			Problem:      problem,
		})
	}
	return out, nil
}

func deleteLink(tx *gorm.DB, id uuid.UUID) error {
	if err := tx.Where("magic_link_id = ?", id).Delete(&models.FormSubmission{}).Error; err != nil {
		return apperr.Infra("deleting submission", err)
	}
	res := tx.Where("id = ?", id).Delete(&models.MagicLink{})
	if res.Error != nil {
		return apperr.Infra("deleting link", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.KindNotFound, "link was removed concurrently")
	}
	return nil
}

// finish ends a multi-step admin transaction. A step error rolls back; if
// the rollback or the commit itself fails the store may hold half the
// change, which is reported as PartialFailure.
func (s *Service) finish(tx *gorm.DB, op string, linkID uuid.UUID, stepErr error) error {
	if stepErr != nil {
		if err := tx.Rollback().Error; err != nil {
			s.logger.Error("rollback failed, link needs reconciliation",
				"op", op,
				"link_id", linkID,
				"step_error", stepErr,
				"error", err,
			)
			return apperr.Wrap(apperr.KindPartialFailure,
				op+" was not rolled back; link "+linkID.String()+" needs reconciliation",
				errors.Join(stepErr, err))
		}
		return stepErr
	}

	if err := tx.Commit().Error; err != nil {
		s.logger.Error("commit failed, link needs reconciliation",
			"op", op,
			"link_id", linkID,
			"error", err,
		)
		return apperr.Wrap(apperr.KindPartialFailure,
			op+" commit failed; link "+linkID.String()+" needs reconciliation", err)
	}
	return nil
}
