package models

import (
	"time"

	"github.com/google/uuid"
)

// LinkStatus is persisted as a string; the legal values and transitions
// live in the links package.
type LinkStatus string

const (
	LinkStatusPending LinkStatus = "pending"
	LinkStatusIssued  LinkStatus = "issued"
	LinkStatusUsed    LinkStatus = "used"
)

type MagicLink struct {
	Base
	TokenHash string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ClientID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"client_id"`
	AgentID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"agent_id"`
	Status    LinkStatus `gorm:"type:varchar(16);index;not null;default:'pending'" json:"status"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`

	Client     *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Submission *FormSubmission `gorm:"foreignKey:MagicLinkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (MagicLink) TableName() string {
	return "magic_links"
}

func (l *MagicLink) OwnerAgentID() uuid.UUID { return l.AgentID }
