package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role names known to the workflow
const (
	RoleAdmin              = "admin"
	RoleCompliance         = "compliance"
	RolePlanManager        = "plan_manager"
	RoleStabilityManager   = "stability_manager"
	RoleApplicationManager = "application_manager"
	RoleRenewalManager     = "renewal_manager"
)

// Role is a named group of capabilities granted to users
type Role struct {
	ID          string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `json:"description,omitempty"`
}

// BeforeCreate hook to generate UUID
func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for Role model
func (Role) TableName() string {
	return "roles"
}

// KnownRoles lists every role seeded at startup
func KnownRoles() []string {
	return []string{
		RoleAdmin,
		RoleCompliance,
		RolePlanManager,
		RoleStabilityManager,
		RoleApplicationManager,
		RoleRenewalManager,
	}
}
