// Package clients manages the client records agents own.
package clients

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/internal/directory"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	gate *access.Gate
	dir  directory.Directory
}

func NewService(db *gorm.DB, gate *access.Gate, dir directory.Directory) *Service {
	return &Service{db: db, gate: gate, dir: dir}
}

type CreateInput struct {
	Email    string
	FullName string
	Company  string
	// AgentID is forced to the caller for agents and required for staff.
	AgentID uuid.UUID
}

type Filter struct {
	Status models.ClientStatus
	Offset int
	Limit  int
}

func (s *Service) Create(ctx context.Context, p *access.Principal, in CreateInput) (*models.Client, error) {
	if _, err := s.gate.Authorize(p, access.Console...); err != nil {
		return nil, err
	}

	agentID := in.AgentID
	if p.Role == models.RoleAgent {
		if agentID != uuid.Nil && agentID != p.ID {
			return nil, apperr.New(apperr.KindForbidden, "agents may only create their own clients")
		}
		agentID = p.ID
	}
	if agentID == uuid.Nil {
		return nil, apperr.Validation("invalid request", map[string]string{"agent_id": "required"})
	}

	if _, err := s.dir.ResolveAgent(ctx, agentID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("invalid request", map[string]string{"agent_id": "unknown agent"})
		}
		return nil, err
	}

	email := directory.NormalizeEmail(in.Email)
	existing, err := s.dir.ResolveClientByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.New(apperr.KindConflict, "a client with this email already exists")
	}

	client := &models.Client{
		Email:    email,
		FullName: in.FullName,
		Company:  in.Company,
		AgentID:  agentID,
		Status:   models.ClientStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.New(apperr.KindConflict, "a client with this email already exists")
		}
		return nil, apperr.Infra("creating client", err)
	}
	return client, nil
}

func (s *Service) Get(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Client, error) {
	if _, err := s.gate.Authorize(p, access.Console...); err != nil {
		return nil, err
	}
	client, err := s.dir.ResolveClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeOwnership(p, client); err != nil {
		return nil, err
	}
	return client, nil
}

// List returns every client for staff and owned clients for agents.
func (s *Service) List(ctx context.Context, p *access.Principal, f Filter) ([]models.Client, int64, error) {
	if _, err := s.gate.Authorize(p, access.Console...); err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Model(&models.Client{})
	if !p.IsStaff() {
		query = query.Where("agent_id = ?", p.ID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Infra("counting clients", err)
	}

	page := query.Order("created_at DESC").Offset(f.Offset)
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}

	var clients []models.Client
	if err := page.Find(&clients).Error; err != nil {
		return nil, 0, apperr.Infra("listing clients", err)
	}
	return clients, total, nil
}
