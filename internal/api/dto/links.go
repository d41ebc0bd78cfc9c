package dto

import (
	"encoding/json"
	"time"

	"github.com/hugh/formlink/internal/api/validation"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/internal/links"
)

type IssueLinkRequest struct {
	ClientID string `json:"client_id"`
	AgentID  string `json:"agent_id,omitempty"`
	// TTLSeconds overrides the default lifetime. Zero issues a link that is
	// already expired.
	TTLSeconds *int64 `json:"ttl_seconds,omitempty"`
}

func (r IssueLinkRequest) Validate(maxTTL time.Duration) map[string]string {
	errors := make(map[string]string)

	if _, ok := validation.ParseUUID(r.ClientID); !ok {
		errors["client_id"] = "Invalid client ID"
	}
	if r.AgentID != "" {
		if _, ok := validation.ParseUUID(r.AgentID); !ok {
			errors["agent_id"] = "Invalid agent ID"
		}
	}
	if ok, msg := validation.ValidateTTLSeconds(r.TTLSeconds, maxTTL); !ok {
		errors["ttl_seconds"] = msg
	}

	return errors
}

// TTL converts TTLSeconds; nil means "use the default".
func (r IssueLinkRequest) TTL() *time.Duration {
	if r.TTLSeconds == nil {
		return nil
	}
	d := time.Duration(*r.TTLSeconds) * time.Second
	return &d
}

type ResetLinkRequest struct {
	SubmissionID string `json:"submission_id"`
}

func (r ResetLinkRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if _, ok := validation.ParseUUID(r.SubmissionID); !ok {
		errors["submission_id"] = "Invalid submission ID"
	}
	return errors
}

// SubmitFormRequest carries the form answers as a JSON object.
type SubmitFormRequest struct {
	Data json.RawMessage `json:"data"`
}

type LinkDTO struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"client_id"`
	AgentID   string     `json:"agent_id"`
	Status    string     `json:"status"`
	State     string     `json:"state"`
	ExpiresAt *time.Time `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewLinkDTO renders link with the state a visitor would see at now.
func NewLinkDTO(link *models.MagicLink, now time.Time) LinkDTO {
	return LinkDTO{
		ID:        link.ID.String(),
		ClientID:  link.ClientID.String(),
		AgentID:   link.AgentID.String(),
		Status:    string(link.Status),
		State:     string(links.Classify(link, now)),
		ExpiresAt: link.ExpiresAt,
		UsedAt:    link.UsedAt,
		CreatedAt: link.CreatedAt,
	}
}

// IssuedLinkDTO is the only response that ever contains the raw token.
type IssuedLinkDTO struct {
	Link  LinkDTO `json:"link"`
	Token string  `json:"token"`
	Path  string  `json:"path"`
}

type SubmissionDTO struct {
	ID          string          `json:"id"`
	LinkID      string          `json:"link_id"`
	Data        json.RawMessage `json:"data"`
	Archived    bool            `json:"archived"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

func NewSubmissionDTO(s *models.FormSubmission) SubmissionDTO {
	return SubmissionDTO{
		ID:          s.ID.String(),
		LinkID:      s.MagicLinkID.String(),
		Data:        json.RawMessage(s.Data),
		Archived:    s.ArchiveURL != "",
		SubmittedAt: s.SubmittedAt,
	}
}

// FormViewDTO is what an end-client sees when opening a link. It never
// includes the token or the owning agent.
type FormViewDTO struct {
	LinkID    string     `json:"link_id"`
	State     string     `json:"state"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// SubmitFormResponse acknowledges a recorded submission.
type SubmitFormResponse struct {
	SubmissionID string    `json:"submission_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type ArchiveDTO struct {
	SubmissionID string          `json:"submission_id"`
	Data         json.RawMessage `json:"data"`
}
