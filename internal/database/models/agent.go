package models

import "github.com/google/uuid"

type AgentStatus string

const (
	AgentStatusActive    AgentStatus = "active"
	AgentStatusInactive  AgentStatus = "inactive"
	AgentStatusSuspended AgentStatus = "suspended"
)

// Agent shares its primary key with the User row of the agent principal,
// so ownership checks compare resource.AgentID against the caller's id.
type Agent struct {
	ID     uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Status AgentStatus `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	Phone  string      `json:"phone,omitempty"`
}

func (Agent) TableName() string {
	return "agents"
}
