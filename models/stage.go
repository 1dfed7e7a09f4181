package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StageKind identifies one of the sequential review phases of a case
type StageKind string

const (
	StageKindPlan        StageKind = "plan"
	StageKindStability   StageKind = "stability"
	StageKindApplication StageKind = "application"
	StageKindRenewal     StageKind = "renewal"
)

// Stage status constants shared by every kind. The initial status is kind
// specific, see InitialStageStatus.
const (
	StageStatusSubmitted = "submitted"
	StageStatusApproved  = "approved"
	StageStatusRejected  = "rejected"
)

// Stability load types
const (
	LoadTypeWithLoad    = "with_load"
	LoadTypeWithoutLoad = "without_load"
)

// StageKinds returns the kinds in workflow order
func StageKinds() []StageKind {
	return []StageKind{StageKindPlan, StageKindStability, StageKindApplication, StageKindRenewal}
}

// IsValidStageKind checks if the kind is one of the four stage kinds
func IsValidStageKind(kind string) bool {
	for _, k := range StageKinds() {
		if string(k) == kind {
			return true
		}
	}
	return false
}

// InitialStageStatus returns the status a freshly created record of kind starts in
func InitialStageStatus(kind StageKind) string {
	return string(kind) + "_assigned"
}

// IsValidLoadType checks the stability load type
func IsValidLoadType(loadType string) bool {
	return loadType == LoadTypeWithLoad || loadType == LoadTypeWithoutLoad
}

// StageFile is the metadata of one deliverable attached to a stage record.
// The bytes live in the storage provider under StoredName.
type StageFile struct {
	Name       string    `json:"name"`
	StoredName string    `json:"stored_name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// StageBase holds the fields shared by every stage kind
type StageBase struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// One record per kind per case
	CaseID     string `gorm:"type:uuid;not null;uniqueIndex" json:"case_id"`
	AssigneeID string `gorm:"type:uuid;not null;index" json:"assignee_id"`
	CreatedBy  string `gorm:"type:uuid;not null" json:"created_by"`

	Status  string                         `gorm:"not null;index" json:"status"`
	Remarks *string                        `gorm:"type:text" json:"remarks,omitempty"`
	Files   datatypes.JSONSlice[StageFile] `json:"files"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  *string    `gorm:"type:uuid" json:"reviewed_by,omitempty"`
}

// BeforeCreate hook to generate UUID
func (s *StageBase) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Base returns the shared fields
func (s *StageBase) Base() *StageBase {
	return s
}

// FindFile returns the index of the file whose stored name, or failing that
// original name, equals name. It returns -1 when nothing matches.
func (s *StageBase) FindFile(name string) int {
	for i, f := range s.Files {
		if f.StoredName == name {
			return i
		}
	}
	for i, f := range s.Files {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// StageRecord is implemented by the four concrete stage models
type StageRecord interface {
	Base() *StageBase
	Kind() StageKind
}

// PlanStage is the factory building plan review
type PlanStage struct {
	StageBase
}

func (PlanStage) TableName() string { return "plan_stages" }

func (*PlanStage) Kind() StageKind { return StageKindPlan }

// StabilityStage is the structural stability certificate review
type StabilityStage struct {
	StageBase
	LoadType      string     `gorm:"not null" json:"load_type"`
	StabilityDate *time.Time `json:"stability_date,omitempty"`
	RenewalDate   *time.Time `json:"renewal_date,omitempty"` // StabilityDate + 5 calendar years
}

func (StabilityStage) TableName() string { return "stability_stages" }

func (*StabilityStage) Kind() StageKind { return StageKindStability }

// ApplicationStage is the license application filing review
type ApplicationStage struct {
	StageBase
}

func (ApplicationStage) TableName() string { return "application_stages" }

func (*ApplicationStage) Kind() StageKind { return StageKindApplication }

// RenewalStage is the license renewal review
type RenewalStage struct {
	StageBase
}

func (RenewalStage) TableName() string { return "renewal_stages" }

func (*RenewalStage) Kind() StageKind { return StageKindRenewal }
