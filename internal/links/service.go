package links

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/clock"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/internal/directory"
	"github.com/hugh/formlink/pkg/crypto"
	"gorm.io/gorm"
)

// Notifier is told about committed submissions. Implementations must not
// fail the submission; errors are logged.
type Notifier interface {
	SubmissionRecorded(ctx context.Context, submission *models.FormSubmission) error
}

type Options struct {
	DefaultTTL      time.Duration
	MaxTTL          time.Duration
	MaxPayloadBytes int
}

func DefaultOptions() Options {
	return Options{
		DefaultTTL:      72 * time.Hour,
		MaxTTL:          30 * 24 * time.Hour,
		MaxPayloadBytes: 256 * 1024,
	}
}

// Service owns every read and write of magic links and submissions.
type Service struct {
	db       *gorm.DB
	gate     *access.Gate
	dir      directory.Directory
	clock    clock.Clock
	logger   *slog.Logger
	opts     Options
	notifier Notifier
}

func NewService(db *gorm.DB, gate *access.Gate, dir directory.Directory, clk clock.Clock, logger *slog.Logger, opts Options) *Service {
	return &Service{
		db:     db,
		gate:   gate,
		dir:    dir,
		clock:  clk,
		logger: logger,
		opts:   opts,
	}
}

// Options returns the limits the service was built with.
func (s *Service) Options() Options {
	return s.opts
}

// SetNotifier registers the post-commit submission hook.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	Status   models.LinkStatus
	ClientID uuid.UUID
	Offset   int
	Limit    int
}

// Get returns a link the caller may see.
func (s *Service) Get(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.MagicLink, error) {
	if _, err := s.gate.Authorize(p, access.Console...); err != nil {
		return nil, err
	}
	link, err := s.loadLink(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeOwnership(p, link); err != nil {
		return nil, err
	}
	return link, nil
}

// List returns links visible to the caller: everything for staff, owned
// links for agents.
func (s *Service) List(ctx context.Context, p *access.Principal, f ListFilter) ([]models.MagicLink, int64, error) {
	if _, err := s.gate.Authorize(p, access.Console...); err != nil {
		return nil, 0, err
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, apperr.Validation("invalid filter", map[string]string{"status": "unknown link status"})
	}

	query := s.db.WithContext(ctx).Model(&models.MagicLink{})
	if !p.IsStaff() {
		query = query.Where("agent_id = ?", p.ID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.ClientID != uuid.Nil {
		query = query.Where("client_id = ?", f.ClientID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Infra("counting links", err)
	}

	page := query.Order("created_at DESC").Offset(f.Offset)
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}

	var links []models.MagicLink
	if err := page.Find(&links).Error; err != nil {
		return nil, 0, apperr.Infra("listing links", err)
	}

	return links, total, nil
}

// GetSubmission returns the submission recorded against a link the caller
// may see.
func (s *Service) GetSubmission(ctx context.Context, p *access.Principal, linkID uuid.UUID) (*models.FormSubmission, error) {
	link, err := s.Get(ctx, p, linkID)
	if err != nil {
		return nil, err
	}

	var sub models.FormSubmission
	if err := s.db.WithContext(ctx).Where("magic_link_id = ?", link.ID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "link has no submission")
		}
		return nil, apperr.Infra("loading submission", err)
	}
	return &sub, nil
}

func (s *Service) Now() time.Time {
	return s.clock.Now()
}

func (s *Service) loadLink(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.MagicLink, error) {
	var link models.MagicLink
	if err := db.WithContext(ctx).First(&link, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "link not found")
		}
		return nil, apperr.Infra("loading link", err)
	}
	return &link, nil
}

func (s *Service) loadLinkByToken(ctx context.Context, token string) (*models.MagicLink, error) {
	if token == "" {
		return nil, apperr.New(apperr.KindNotFound, "link not found")
	}

	var link models.MagicLink
	if err := s.db.WithContext(ctx).
		Where("token_hash = ?", crypto.HashToken(token)).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "link not found")
		}
		return nil, apperr.Infra("loading link", err)
	}
	return &link, nil
}
