package models

import (
	"time"

	"gorm.io/gorm"
)

// Audit action labels
const (
	AuditActionCaseCreate        = "case.create"
	AuditActionCaseDelete        = "case.delete"
	AuditActionStageCreate       = "stage.create"
	AuditActionStageSubmit       = "stage.submit"
	AuditActionStageReview       = "stage.review"
	AuditActionStageUpload       = "stage.upload_approve"
	AuditActionStageFileDelete   = "stage.file_delete"
	AuditActionExpiryCreate      = "expiry.create"
	AuditActionExpiryStatus      = "expiry.status"
	AuditActionExpiryReactivate  = "expiry.reactivate"
	AuditActionExpiryImport      = "expiry.import"
	AuditActionRenewalConfigEdit = "renewal_config.update"
)

// AuditEntry is an immutable record of who did what to whom.
// The auto-increment ID reflects insertion order, which follows commit order
// because entries are only written after the audited transaction commits.
type AuditEntry struct {
	ID        uint64    `gorm:"primarykey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"index:idx_audit_created_at" json:"created_at"`

	// Actor identification
	ActorID   string `gorm:"type:uuid;not null;index:idx_audit_actor" json:"actor_id"`
	ActorName string `json:"actor_name,omitempty"` // Denormalized for historical accuracy

	TargetUserID *string `gorm:"type:uuid" json:"target_user_id,omitempty"`
	RoleID       *string `gorm:"type:uuid" json:"role_id,omitempty"`

	// Target resource
	ResourceType string  `gorm:"not null;index:idx_audit_resource" json:"resource_type"` // e.g. "case", "plan_stage"
	ResourceID   string  `gorm:"not null;index:idx_audit_resource" json:"resource_id"`
	CaseID       *string `gorm:"type:uuid;index:idx_audit_case" json:"case_id,omitempty"`

	Action  string `gorm:"not null;index:idx_audit_action" json:"action"`
	Details string `gorm:"type:text" json:"details,omitempty"`

	// Request metadata (optional)
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// BeforeUpdate prevents modification of audit entries (immutability)
func (a *AuditEntry) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// BeforeDelete prevents deletion of audit entries (immutability)
func (a *AuditEntry) BeforeDelete(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// TableName specifies the table name
func (AuditEntry) TableName() string {
	return "audit_entries"
}
