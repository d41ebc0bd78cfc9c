package links

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/pkg/crypto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IssueInput struct {
	ClientID uuid.UUID
	// AgentID defaults to the caller for agents and to the client's owner
	// for admin and support.
	AgentID uuid.UUID
	// TTL defaults to Options.DefaultTTL when nil.
	TTL *time.Duration
}

// IssuedLink carries the raw token. It is never stored and cannot be
// recovered after this call returns.
type IssuedLink struct {
	Link  *models.MagicLink
	Token string
}

// Issue creates a pending link for a client. Any other open link of the
// same client is removed in the same transaction, so a client has at most
// one visitable link at a time.
func (s *Service) Issue(ctx context.Context, p *access.Principal, in IssueInput) (*IssuedLink, error) {
	if _, err := s.gate.Authorize(p, access.Console...); err != nil {
		return nil, err
	}

	ttl, err := s.resolveTTL(in.TTL)
	if err != nil {
		return nil, err
	}
	if in.ClientID == uuid.Nil {
		return nil, apperr.Validation("invalid request", map[string]string{"client_id": "required"})
	}

	client, err := s.dir.ResolveClient(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}

	agentID := in.AgentID
	if p.Role == models.RoleAgent {
		if agentID != uuid.Nil && agentID != p.ID {
			return nil, apperr.New(apperr.KindForbidden, "agents may only issue links for themselves")
		}
		agentID = p.ID
	}
	if agentID == uuid.Nil {
		agentID = client.AgentID
	}

	owner, err := s.dir.ResolveAgentForClient(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	if owner != agentID {
		return nil, apperr.New(apperr.KindForbidden, "client is not assigned to this agent")
	}
	if err := s.gate.AuthorizeOwnership(p, client); err != nil {
		return nil, err
	}

	if client.Status != models.ClientStatusActive {
		return nil, apperr.Validation("client is not active", map[string]string{"client_id": string(client.Status)})
	}
	agent, err := s.dir.ResolveAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("agent does not exist", map[string]string{"agent_id": "unknown"})
		}
		return nil, err
	}
	if agent.Status != models.AgentStatusActive {
		return nil, apperr.Validation("agent is not active", map[string]string{"agent_id": string(agent.Status)})
	}

	token, err := crypto.NewToken()
	if err != nil {
		return nil, apperr.Infra("generating token", err)
	}

	expiresAt := s.clock.Now().Add(ttl)
	link := &models.MagicLink{
		TokenHash: crypto.HashToken(token),
		ClientID:  client.ID,
		AgentID:   agentID,
		Status:    models.LinkStatusPending,
		ExpiresAt: &expiresAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the open rows, then delete only those still open: a link
		// redeemed before the lock keeps its submission.
		var stale []uuid.UUID
		if err := tx.Model(&models.MagicLink{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("client_id = ? AND status IN ?", client.ID, openStatuses).
			Pluck("id", &stale).Error; err != nil {
			return err
		}
		if len(stale) > 0 {
			stillOpen := tx.Model(&models.MagicLink{}).
				Select("id").
				Where("id IN ? AND status IN ?", stale, openStatuses)
			if err := tx.Where("magic_link_id IN (?)", stillOpen).Delete(&models.FormSubmission{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ? AND status IN ?", stale, openStatuses).Delete(&models.MagicLink{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(link).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Wrap(apperr.KindConflict, "token collision", err)
		}
		return nil, apperr.Infra("issuing link", err)
	}

	s.logger.Info("link issued",
		"link_id", link.ID,
		"client_id", link.ClientID,
		"agent_id", link.AgentID,
		"issued_by", p.ID,
		"expires_at", expiresAt,
	)

	return &IssuedLink{Link: link, Token: token}, nil
}

func (s *Service) resolveTTL(ttl *time.Duration) (time.Duration, error) {
	if ttl == nil {
		return s.opts.DefaultTTL, nil
	}
	switch {
	case *ttl < 0:
		return 0, apperr.Validation("invalid ttl", map[string]string{"ttl": "must not be negative"})
	case *ttl > s.opts.MaxTTL:
		return 0, apperr.Validation("invalid ttl", map[string]string{"ttl": "exceeds maximum of " + s.opts.MaxTTL.String()})
	}
	return *ttl, nil
}
