package services

import (
	"context"
	"errors"
	"fmt"

	"compliance_flow_app_go/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SeedRenewalConfigs creates the default service types that do not exist
// yet. Existing rows keep their edited values.
func SeedRenewalConfigs(db *gorm.DB) error {
	defaults := models.DefaultRenewalConfigs()
	for _, def := range defaults {
		cfg := def
		err := db.Where(models.RenewalConfig{ServiceType: def.ServiceType}).Attrs(def).FirstOrCreate(&cfg).Error
		if err != nil {
			return fmt.Errorf("failed to seed renewal config %s: %w", def.ServiceType, err)
		}
	}
	log.Info().Int("service_types", len(defaults)).Msg("Renewal configs seeded")
	return nil
}

// ListRenewalConfigs returns every config ordered by service type
func ListRenewalConfigs(db *gorm.DB) ([]models.RenewalConfig, error) {
	var configs []models.RenewalConfig
	if err := db.Order("service_type ASC").Find(&configs).Error; err != nil {
		return nil, InternalError("failed to list renewal configs", err)
	}
	return configs, nil
}

// RenewalConfigUpdate holds the editable fields; nil leaves a field unchanged
type RenewalConfigUpdate struct {
	DisplayName   *string `json:"display_name"`
	ReminderTimes *int    `json:"reminder_times"`
	ReminderDays  *int    `json:"reminder_days"`
	IsActive      *bool   `json:"is_active"`
}

// UpdateRenewalConfig edits a config and drops it from the engine cache
func (e *ExpiryEngine) UpdateRenewalConfig(ctx context.Context, caller *Caller, serviceType string, in RenewalConfigUpdate) (*models.RenewalConfig, error) {
	if !e.authorizer.IsAuthorized(caller, CapRenewalConfigManage, "") {
		return nil, ForbiddenError("not allowed to manage renewal configs")
	}

	updates := map[string]interface{}{}
	if in.DisplayName != nil {
		name := SanitizeText(*in.DisplayName)
		if name == "" {
			return nil, ValidationError("display_name must not be empty")
		}
		updates["display_name"] = name
	}
	if in.ReminderTimes != nil {
		if *in.ReminderTimes < 1 {
			return nil, ValidationError("reminder_times must be at least 1")
		}
		updates["reminder_times"] = *in.ReminderTimes
	}
	if in.ReminderDays != nil {
		if *in.ReminderDays < 1 || *in.ReminderDays > 365 {
			return nil, ValidationError("reminder_days must be between 1 and 365")
		}
		updates["reminder_days"] = *in.ReminderDays
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if len(updates) == 0 {
		return nil, ValidationError("nothing to update")
	}

	var cfg models.RenewalConfig
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("service_type = ?", serviceType).First(&cfg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundError("renewal config %s not found", serviceType)
			}
			return InternalError("failed to load renewal config", err)
		}
		if err := tx.Model(&cfg).Updates(updates).Error; err != nil {
			return InternalError("failed to update renewal config", err)
		}
		return tx.First(&cfg, "id = ?", cfg.ID).Error
	})
	if err != nil {
		return nil, asAppError(err, "failed to update renewal config")
	}
	e.InvalidateRenewalConfig(serviceType)

	e.audit.Record(AuditRecord{
		Actor:        caller,
		Action:       models.AuditActionRenewalConfigEdit,
		ResourceType: "renewal_config",
		ResourceID:   cfg.ID,
		Details:      fmt.Sprintf("Updated %s: %d reminder(s) over %d days, active=%t", serviceType, cfg.ReminderTimes, cfg.ReminderDays, cfg.IsActive),
	})
	return &cfg, nil
}
