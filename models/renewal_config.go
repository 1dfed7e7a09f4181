package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service type keys with seeded renewal configuration
const (
	ServiceTypeFactoryLicense       = "factory_license"
	ServiceTypeLabourLicense        = "labour_license"
	ServiceTypeLabourInspection     = "labour_inspection"
	ServiceTypeInsurancePolicy      = "insurance_policy"
	ServiceTypeStabilityCertificate = "stability_certificate"
	ServiceTypeFireNOC              = "fire_noc"
	ServiceTypePollutionConsent     = "pollution_consent"
	ServiceTypeBoilerCertificate    = "boiler_certificate"
)

// Reminder cadence defaults
const (
	DefaultReminderWindowDays          = 30
	LabourInspectionReminderWindowDays = 15
	DefaultReminderTimes               = 4
)

// RenewalConfig parametrizes the reminder cadence for one service type
type RenewalConfig struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ServiceType   string `gorm:"uniqueIndex;not null" json:"service_type"`
	DisplayName   string `gorm:"not null" json:"display_name"`
	ReminderTimes int    `gorm:"not null;default:4" json:"reminder_times"`
	ReminderDays  int    `gorm:"not null;default:30" json:"reminder_days"` // window length before expiry
	IsActive      bool   `gorm:"not null;default:true" json:"is_active"`
}

// BeforeCreate hook to generate UUID
func (c *RenewalConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (RenewalConfig) TableName() string {
	return "renewal_configs"
}

// DefaultRenewalConfigs returns the eight seeded service types
func DefaultRenewalConfigs() []RenewalConfig {
	def := func(key, name string, window int) RenewalConfig {
		return RenewalConfig{
			ServiceType:   key,
			DisplayName:   name,
			ReminderTimes: DefaultReminderTimes,
			ReminderDays:  window,
			IsActive:      true,
		}
	}
	return []RenewalConfig{
		def(ServiceTypeFactoryLicense, "Factory License", DefaultReminderWindowDays),
		def(ServiceTypeLabourLicense, "Labour License", DefaultReminderWindowDays),
		def(ServiceTypeLabourInspection, "Labour Inspection", LabourInspectionReminderWindowDays),
		def(ServiceTypeInsurancePolicy, "Insurance Policy", DefaultReminderWindowDays),
		def(ServiceTypeStabilityCertificate, "Stability Certificate", DefaultReminderWindowDays),
		def(ServiceTypeFireNOC, "Fire NOC", DefaultReminderWindowDays),
		def(ServiceTypePollutionConsent, "Pollution Consent", DefaultReminderWindowDays),
		def(ServiceTypeBoilerCertificate, "Boiler Certificate", DefaultReminderWindowDays),
	}
}
