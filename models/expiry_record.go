package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Expiry-tracked record kinds
const (
	ExpiryKindLabourLicense    = "labour_license"
	ExpiryKindLabourInspection = "labour_inspection"
	ExpiryKindInsurancePolicy  = "insurance_policy"
)

// Expiry record status constants
const (
	ExpiryStatusActive            = "active"
	ExpiryStatusRenewalInProgress = "renewal_in_progress"
	ExpiryStatusComplete          = "complete"
	ExpiryStatusExpired           = "expired"
)

// ReminderEntry is one sent reminder in a record's history
type ReminderEntry struct {
	Type            string    `json:"type"` // reminder_<ordinal>
	SentAt          time.Time `json:"sent_at"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
}

// ExpiryRecord tracks a statutory document (labour license, labour inspection
// notice or insurance policy) that needs renewal reminders.
type ExpiryRecord struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Kind            string `gorm:"not null;index" json:"kind"`
	ServiceType     string `gorm:"not null;index" json:"service_type"` // RenewalConfig key
	CompanyID       string `gorm:"type:uuid;not null;index" json:"company_id"`
	ReferenceNumber string `gorm:"not null" json:"reference_number"`
	ContactEmail    string `json:"contact_email,omitempty"`

	NoticeDate      *time.Time `json:"notice_date,omitempty"`
	PolicyStartDate *time.Time `json:"policy_start_date,omitempty"`
	ExpiryDate      time.Time  `gorm:"not null;index" json:"expiry_date"`

	Status string `gorm:"not null;default:active;index" json:"status"`
	// Once false it is only set back to true by an explicit reactivation
	EmailServiceActive bool                               `gorm:"not null;default:true;index" json:"email_service_active"`
	EmailsStoppedAt    *time.Time                         `json:"emails_stopped_at,omitempty"`
	EmailsStopReason   string                             `json:"emails_stop_reason,omitempty"`
	ReminderHistory    datatypes.JSONSlice[ReminderEntry] `json:"reminder_history"`
}

// BeforeCreate hook to generate UUID
func (r *ExpiryRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = ExpiryStatusActive
	}
	return nil
}

// TableName specifies the table name
func (ExpiryRecord) TableName() string {
	return "expiry_records"
}

// DaysSinceExpiry is ceil((now - expiry) / 1 day); negative before expiry
func (r *ExpiryRecord) DaysSinceExpiry(now time.Time) int {
	return int(math.Ceil(now.Sub(r.ExpiryDate).Hours() / 24))
}

// HasReminder reports whether a reminder of the given type was already sent
func (r *ExpiryRecord) HasReminder(reminderType string) bool {
	for _, e := range r.ReminderHistory {
		if e.Type == reminderType {
			return true
		}
	}
	return false
}

// IsTerminalExpiryStatus reports statuses after which no reminder is sent
func IsTerminalExpiryStatus(status string) bool {
	return status == ExpiryStatusComplete || status == ExpiryStatusExpired
}

// IsValidExpiryStatus checks if the status is valid
func IsValidExpiryStatus(status string) bool {
	switch status {
	case ExpiryStatusActive, ExpiryStatusRenewalInProgress, ExpiryStatusComplete, ExpiryStatusExpired:
		return true
	}
	return false
}

// IsValidExpiryKind checks if the kind is valid
func IsValidExpiryKind(kind string) bool {
	switch kind {
	case ExpiryKindLabourLicense, ExpiryKindLabourInspection, ExpiryKindInsurancePolicy:
		return true
	}
	return false
}
