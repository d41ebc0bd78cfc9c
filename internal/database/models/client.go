package models

import "github.com/google/uuid"

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
	ClientStatusArchived ClientStatus = "archived"
)

type Client struct {
	Base
	Email    string       `gorm:"uniqueIndex;not null" json:"email"`
	FullName string       `gorm:"not null" json:"full_name"`
	Company  string       `json:"company,omitempty"`
	AgentID  uuid.UUID    `gorm:"type:uuid;index;not null" json:"agent_id"`
	Status   ClientStatus `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
}

func (Client) TableName() string {
	return "clients"
}

// OwnerAgentID is the ownership edge consulted by the access gate.
func (c *Client) OwnerAgentID() uuid.UUID { return c.AgentID }
