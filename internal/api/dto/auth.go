package dto

import (
	"github.com/hugh/formlink/internal/api/validation"
	"github.com/hugh/formlink/internal/database/models"
)

// RegisterRequest signs up an end-client. Name defaults to the client
// record's full name.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func (r RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email format"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if ok, msg := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = msg
	}

	return errors
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type UserDTO struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func NewUserDTO(u *models.User) UserDTO {
	return UserDTO{
		ID:       u.ID.String(),
		Email:    u.Email,
		Name:     u.Name,
		Role:     string(u.Role),
		IsActive: u.IsActive,
	}
}

// CreateAgentRequest provisions an agent or support account.
type CreateAgentRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (r CreateAgentRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email format"
	}
	if ok, msg := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = msg
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	switch models.Role(r.Role) {
	case "", models.RoleAgent, models.RoleSupport:
	default:
		errors["role"] = "Role must be agent or support"
	}

	return errors
}

type AgentDTO struct {
	User   UserDTO `json:"user"`
	Status string  `json:"status"`
	Phone  string  `json:"phone,omitempty"`
}
