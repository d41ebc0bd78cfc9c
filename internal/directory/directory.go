// Package directory resolves the client ↔ agent ↔ email relationships that
// every ownership decision depends on.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/database/models"
	"gorm.io/gorm"
)

// Directory is the read-only lookup contract used by the access gate and
// the token issuer.
type Directory interface {
	ResolveClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	ResolveAgentForClient(ctx context.Context, clientID uuid.UUID) (uuid.UUID, error)
	// ResolveClientByEmail returns (nil, nil) when no client has the email.
	ResolveClientByEmail(ctx context.Context, email string) (*models.Client, error)
	ResolveAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	ResolveUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

var _ Directory = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// NormalizeEmail is the canonical form emails are stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) ResolveClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := s.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "client not found")
		}
		return nil, apperr.Infra("resolving client", err)
	}
	return &client, nil
}

func (s *Store) ResolveAgentForClient(ctx context.Context, clientID uuid.UUID) (uuid.UUID, error) {
	client, err := s.ResolveClient(ctx, clientID)
	if err != nil {
		return uuid.Nil, err
	}
	return client.AgentID, nil
}

func (s *Store) ResolveClientByEmail(ctx context.Context, email string) (*models.Client, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}

	var client models.Client
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Infra("resolving client by email", err)
	}
	return &client, nil
}

func (s *Store) ResolveAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := s.db.WithContext(ctx).First(&agent, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "agent not found")
		}
		return nil, apperr.Infra("resolving agent", err)
	}
	return &agent, nil
}

func (s *Store) ResolveUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "user not found")
		}
		return nil, apperr.Infra("resolving user", err)
	}
	return &user, nil
}
