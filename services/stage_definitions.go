package services

import (
	"time"

	"compliance_flow_app_go/models"
)

// StageDetails carries the kind-specific fields of create, review and upload
// requests. Kinds without extra fields ignore it.
type StageDetails struct {
	LoadType      string `json:"load_type,omitempty"`
	StabilityDate string `json:"stability_date,omitempty"` // YYYY-MM-DD
}

// StageDefinition is the per-kind configuration of the stage workflow
type StageDefinition struct {
	Kind models.StageKind
	// AssigneeRole is the role the assignee must hold
	AssigneeRole string
	// ValidateCreate checks kind-specific fields before anything is written
	ValidateCreate func(details StageDetails) error
	// ApplyDetails copies validated kind-specific fields onto the record.
	// It runs on create and on every approving transition.
	ApplyDetails func(rec models.StageRecord, details StageDetails) error
}

// ReviewCapability returns the capability that finalizes this kind
func (d StageDefinition) ReviewCapability() string {
	return ReviewCapability(d.Kind)
}

// InitialStatus returns the status a new record starts in
func (d StageDefinition) InitialStatus() string {
	return models.InitialStageStatus(d.Kind)
}

func noDetails(StageDetails) error { return nil }

func applyNoDetails(models.StageRecord, StageDetails) error { return nil }

func validateStabilityCreate(details StageDetails) error {
	if !models.IsValidLoadType(details.LoadType) {
		return ValidationError("load_type must be %q or %q", models.LoadTypeWithLoad, models.LoadTypeWithoutLoad)
	}
	if details.StabilityDate != "" {
		if _, err := ParseDate(details.StabilityDate); err != nil {
			return ValidationError("stability_date: %v", err)
		}
	}
	return nil
}

// applyStabilityDetails stores the load type and, when a stability date is
// given, derives the renewal date five calendar years later.
func applyStabilityDetails(rec models.StageRecord, details StageDetails) error {
	stage, ok := rec.(*models.StabilityStage)
	if !ok {
		return InternalError("stability details applied to wrong stage kind", nil)
	}
	if details.LoadType != "" {
		if !models.IsValidLoadType(details.LoadType) {
			return ValidationError("load_type must be %q or %q", models.LoadTypeWithLoad, models.LoadTypeWithoutLoad)
		}
		stage.LoadType = details.LoadType
	}
	if details.StabilityDate == "" {
		return nil
	}
	date, err := ParseDate(details.StabilityDate)
	if err != nil {
		return ValidationError("stability_date: %v", err)
	}
	renewal := AddCalendarYears(date, StabilityRenewalYears)
	stage.StabilityDate = &date
	stage.RenewalDate = &renewal
	return nil
}

// StabilityRenewalYears is the validity of a stability certificate
const StabilityRenewalYears = 5

var stageDefinitions = map[models.StageKind]StageDefinition{
	models.StageKindPlan: {
		Kind:           models.StageKindPlan,
		AssigneeRole:   models.RolePlanManager,
		ValidateCreate: noDetails,
		ApplyDetails:   applyNoDetails,
	},
	models.StageKindStability: {
		Kind:           models.StageKindStability,
		AssigneeRole:   models.RoleStabilityManager,
		ValidateCreate: validateStabilityCreate,
		ApplyDetails:   applyStabilityDetails,
	},
	models.StageKindApplication: {
		Kind:           models.StageKindApplication,
		AssigneeRole:   models.RoleApplicationManager,
		ValidateCreate: noDetails,
		ApplyDetails:   applyNoDetails,
	},
	models.StageKindRenewal: {
		Kind:           models.StageKindRenewal,
		AssigneeRole:   models.RoleRenewalManager,
		ValidateCreate: noDetails,
		ApplyDetails:   applyNoDetails,
	},
}

// DefinitionFor returns the definition of kind
func DefinitionFor(kind models.StageKind) (StageDefinition, error) {
	def, ok := stageDefinitions[kind]
	if !ok {
		return StageDefinition{}, ValidationError("unknown stage kind %q", kind)
	}
	return def, nil
}

// ParseStageKind validates a kind taken from a path parameter
func ParseStageKind(raw string) (models.StageKind, error) {
	if !models.IsValidStageKind(raw) {
		return "", ValidationError("unknown stage kind %q", raw)
	}
	return models.StageKind(raw), nil
}

// stampReview marks the record as finalized by actorID at now
func stampReview(base *models.StageBase, status, actorID string, now time.Time) {
	base.Status = status
	base.ReviewedAt = &now
	reviewer := actorID
	base.ReviewedBy = &reviewer
}
