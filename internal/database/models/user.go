package models

// Role is the capability tier of a principal.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSupport Role = "support"
	RoleAgent   Role = "agent"
	RoleUser    Role = "user" // end-client holding a magic link
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupport, RoleAgent, RoleUser:
		return true
	}
	return false
}

type User struct {
	Base
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Name         string `json:"name"`
	Role         Role   `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
}

func (User) TableName() string {
	return "users"
}
