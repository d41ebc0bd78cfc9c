package links

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/database/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LinkView is what an end-client sees when opening a link.
type LinkView struct {
	Link  *models.MagicLink
	State State
}

// View classifies the link behind token for its redeemer. It never writes,
// so visiting an expired or used link any number of times changes nothing.
func (s *Service) View(ctx context.Context, p *access.Principal, token string) (*LinkView, error) {
	if _, err := s.gate.Authorize(p, access.EndClient...); err != nil {
		return nil, err
	}
	link, err := s.loadLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeRedeemer(ctx, p, link); err != nil {
		return nil, err
	}
	return &LinkView{Link: link, State: Classify(link, s.clock.Now())}, nil
}

// Submit redeems the link behind token with payload. The status flip is a
// compare-and-swap on the open statuses, so of two concurrent submissions
// exactly one succeeds.
func (s *Service) Submit(ctx context.Context, p *access.Principal, token string, payload json.RawMessage) (*models.FormSubmission, error) {
	if _, err := s.gate.Authorize(p, access.EndClient...); err != nil {
		return nil, err
	}
	if err := s.validatePayload(payload); err != nil {
		return nil, err
	}

	link, err := s.loadLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeRedeemer(ctx, p, link); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := CheckRedeemable(link, now); err != nil {
		return nil, err
	}
	to, err := Next(link.Status, EventRedeem)
	if err != nil {
		return nil, err
	}

	sub := &models.FormSubmission{
		MagicLinkID: link.ID,
		Data:        datatypes.JSON(payload),
		SubmittedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MagicLink{}).
			Where("id = ? AND status IN ? AND expires_at > ?", link.ID, openStatuses, now).
			Updates(map[string]any{"status": to, "used_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return s.classifyLostRace(ctx, tx, link, now)
		}
		return tx.Create(sub).Error
	})
	if err != nil {
		var appErr *apperr.Error
		switch {
		case errors.As(err, &appErr):
			return nil, appErr
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, apperr.Wrap(apperr.KindConflict, "form was submitted concurrently", err)
		}
		return nil, apperr.Infra("recording submission", err)
	}

	s.logger.Info("form submitted",
		"link_id", link.ID,
		"submission_id", sub.ID,
		"client_id", link.ClientID,
	)

	if s.notifier != nil {
		if err := s.notifier.SubmissionRecorded(ctx, sub); err != nil {
			s.logger.Warn("submission notification failed",
				"submission_id", sub.ID,
				"error", err,
			)
		}
	}

	return sub, nil
}

// classifyLostRace explains why the conditional update matched nothing.
func (s *Service) classifyLostRace(ctx context.Context, tx *gorm.DB, link *models.MagicLink, now time.Time) error {
	current, err := s.loadLink(ctx, tx, link.ID)
	if err != nil {
		return err
	}
	switch Classify(current, now) {
	case StateUsed:
		return apperr.New(apperr.KindConflict, "form was submitted concurrently")
	case StateExpired:
		return apperr.New(apperr.KindExpired, "link has expired")
	}
	return apperr.New(apperr.KindConflict, "link changed during submission")
}

func (s *Service) validatePayload(payload json.RawMessage) error {
	if len(payload) == 0 {
		return apperr.Validation("invalid payload", map[string]string{"data": "required"})
	}
	if s.opts.MaxPayloadBytes > 0 && len(payload) > s.opts.MaxPayloadBytes {
		return apperr.Validation("invalid payload", map[string]string{
			"data": "exceeds " + strconv.Itoa(s.opts.MaxPayloadBytes) + " bytes",
		})
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return apperr.Validation("invalid payload", map[string]string{"data": "must be a JSON object"})
	}
	if len(fields) == 0 {
		return apperr.Validation("invalid payload", map[string]string{"data": "must not be empty"})
	}
	return nil
}
