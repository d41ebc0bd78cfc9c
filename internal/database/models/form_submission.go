package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FormSubmission is the payload recorded when a link is redeemed. The
// unique index on MagicLinkID backs the one-submission-per-link rule.
type FormSubmission struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	MagicLinkID uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"magic_link_id"`
	Data        datatypes.JSON `gorm:"not null" json:"data"`
	ArchiveURL  string         `json:"archive_url,omitempty"`
	SubmittedAt time.Time      `gorm:"not null" json:"submitted_at"`
}

func (FormSubmission) TableName() string {
	return "form_submissions"
}

func (s *FormSubmission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
