package models

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionArchive points at the sealed blob of a submission. It has no
// foreign key to form_submissions and outlives the submission when a reset
// or revoke deletes it.
type SubmissionArchive struct {
	SubmissionID uuid.UUID `gorm:"type:uuid;primary_key" json:"submission_id"`
	MagicLinkID  uuid.UUID `gorm:"type:uuid;index;not null" json:"magic_link_id"`
	URL          string    `gorm:"not null" json:"url"`
	ArchivedAt   time.Time `gorm:"not null" json:"archived_at"`
}

func (SubmissionArchive) TableName() string {
	return "submission_archives"
}
