package dto

import (
	"time"

	"github.com/hugh/formlink/internal/api/validation"
	"github.com/hugh/formlink/internal/database/models"
)

type CreateClientRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Company  string `json:"company,omitempty"`
	// AgentID is required for admin and support; agents always own the
	// clients they create.
	AgentID string `json:"agent_id,omitempty"`
}

func (r CreateClientRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email format"
	}
	if validation.CleanName(r.FullName) == "" {
		errors["full_name"] = "Full name is required"
	}
	if r.AgentID != "" {
		if _, ok := validation.ParseUUID(r.AgentID); !ok {
			errors["agent_id"] = "Invalid agent ID"
		}
	}

	return errors
}

type ClientDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Company   string    `json:"company,omitempty"`
	AgentID   string    `json:"agent_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func NewClientDTO(c *models.Client) ClientDTO {
	return ClientDTO{
		ID:        c.ID.String(),
		Email:     c.Email,
		FullName:  c.FullName,
		Company:   c.Company,
		AgentID:   c.AgentID.String(),
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
	}
}
