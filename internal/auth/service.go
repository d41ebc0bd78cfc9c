package auth

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

var (
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "user not found")
	ErrUserExists         = apperr.New(apperr.KindConflict, "user already exists")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthenticated, "invalid credentials")
	ErrInactiveUser       = apperr.New(apperr.KindUnauthenticated, "user is inactive")
	ErrNotAClient         = apperr.New(apperr.KindForbidden, "email does not belong to an active client")
)

type Service struct {
	db   *gorm.DB
	jwt  *JWTService
	dir  directory.Directory
	gate *access.Gate
}

func NewService(db *gorm.DB, jwt *JWTService, dir directory.Directory, gate *access.Gate) *Service {
	return &Service{db: db, jwt: jwt, dir: dir, gate: gate}
}

// RegisterInput creates an end-client account. Only the email of an
// existing active client may register.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

type CreateAgentInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	// Role is agent or support; agent when empty.
	Role models.Role
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AgentAccount struct {
	User  *models.User  `json:"user"`
	Agent *models.Agent `json:"agent"`
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	email := directory.NormalizeEmail(input.Email)

	client, err := s.dir.ResolveClientByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if client == nil || client.Status != models.ClientStatusActive {
		return nil, ErrNotAClient
	}

	if exists, err := s.emailTaken(ctx, email); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Infra("hashing password", err)
	}

	name := input.Name
	if name == "" {
		name = client.FullName
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, apperr.Infra("creating user", err)
	}

	return s.respond(&user)
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("email = ?", directory.NormalizeEmail(input.Email)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperr.Infra("loading user", err)
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.respond(&user)
}

// CreateAgent provisions a staff principal together with its Agent row.
// The two share an id.
func (s *Service) CreateAgent(ctx context.Context, p *access.Principal, input CreateAgentInput) (*AgentAccount, error) {
	if _, err := s.gate.Authorize(p, access.AdminOnly...); err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = models.RoleAgent
	}
	if role != models.RoleAgent && role != models.RoleSupport {
		return nil, apperr.Validation("invalid role", map[string]string{"role": "must be agent or support"})
	}

	email := directory.NormalizeEmail(input.Email)
	if exists, err := s.emailTaken(ctx, email); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Infra("hashing password", err)
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         input.Name,
		Role:         role,
		IsActive:     true,
	}
	var agent models.Agent

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		agent = models.Agent{
			ID:     user.ID,
			Status: models.AgentStatusActive,
			Phone:  input.Phone,
		}
		return tx.Create(&agent).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, apperr.Infra("creating agent", err)
	}

	return &AgentAccount{User: &user, Agent: &agent}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperr.Infra("loading user", err)
	}
	return &user, nil
}

func (s *Service) emailTaken(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, apperr.Infra("checking email", err)
	}
	return count > 0, nil
}

func (s *Service) respond(user *models.User) (*AuthResponse, error) {
	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperr.Infra("signing session token", err)
	}
	return &AuthResponse{Token: token, User: user}, nil
}
