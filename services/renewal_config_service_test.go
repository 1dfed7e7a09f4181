package services

import (
	"context"
	"testing"

	"compliance_flow_app_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedRenewalConfigs(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SeedRenewalConfigs(db))
	require.NoError(t, SeedRenewalConfigs(db))

	configs, err := ListRenewalConfigs(db)
	require.NoError(t, err)
	require.Len(t, configs, 8)

	byType := map[string]models.RenewalConfig{}
	for _, c := range configs {
		byType[c.ServiceType] = c
	}
	assert.Equal(t, 15, byType[models.ServiceTypeLabourInspection].ReminderDays)
	assert.Equal(t, 30, byType[models.ServiceTypeFireNOC].ReminderDays)
	assert.Equal(t, 4, byType[models.ServiceTypeBoilerCertificate].ReminderTimes)
	assert.True(t, byType[models.ServiceTypeFactoryLicense].IsActive)
}

func TestSeedKeepsEditedValues(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SeedRenewalConfigs(db))
	require.NoError(t, db.Model(&models.RenewalConfig{}).
		Where("service_type = ?", models.ServiceTypeFireNOC).
		Update("reminder_days", 45).Error)

	require.NoError(t, SeedRenewalConfigs(db))

	var cfg models.RenewalConfig
	require.NoError(t, db.First(&cfg, "service_type = ?", models.ServiceTypeFireNOC).Error)
	assert.Equal(t, 45, cfg.ReminderDays)
}

func TestUpdateRenewalConfig(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SeedRenewalConfigs(db))
	engine := newExpiryEngine(t, db, nil)
	admin := createCaller(t, db, "admin", models.RoleAdmin)
	compliance := createCaller(t, db, "compliance", models.RoleCompliance)
	ctx := context.Background()

	cached, err := engine.RenewalConfigFor(ctx, models.ServiceTypeLabourLicense)
	require.NoError(t, err)
	assert.Equal(t, 30, cached.ReminderDays)

	days, active := 60, false
	_, err = engine.UpdateRenewalConfig(ctx, compliance, models.ServiceTypeLabourLicense, RenewalConfigUpdate{ReminderDays: &days})
	assert.True(t, IsKind(err, ErrKindForbidden), "got %v", err)

	cfg, err := engine.UpdateRenewalConfig(ctx, admin, models.ServiceTypeLabourLicense, RenewalConfigUpdate{ReminderDays: &days, IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.ReminderDays)
	assert.False(t, cfg.IsActive)

	fresh, err := engine.RenewalConfigFor(ctx, models.ServiceTypeLabourLicense)
	require.NoError(t, err)
	assert.Equal(t, 60, fresh.ReminderDays)
	assert.False(t, fresh.IsActive)

	zero := 0
	_, err = engine.UpdateRenewalConfig(ctx, admin, models.ServiceTypeLabourLicense, RenewalConfigUpdate{ReminderTimes: &zero})
	assert.True(t, IsKind(err, ErrKindValidation), "got %v", err)

	_, err = engine.UpdateRenewalConfig(ctx, admin, "spaceship_license", RenewalConfigUpdate{ReminderDays: &days})
	assert.True(t, IsKind(err, ErrKindNotFound), "got %v", err)

	_, err = engine.UpdateRenewalConfig(ctx, admin, models.ServiceTypeLabourLicense, RenewalConfigUpdate{})
	assert.True(t, IsKind(err, ErrKindValidation), "got %v", err)

	assert.Equal(t, int64(1), countAudit(t, db, models.AuditActionRenewalConfigEdit))
}

func TestRenewalConfigForUnknownServiceType(t *testing.T) {
	db := setupTestDB(t)
	engine := newExpiryEngine(t, db, nil)

	cfg, err := engine.RenewalConfigFor(context.Background(), models.ServiceTypeLabourInspection)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.ReminderDays)
	assert.Equal(t, models.DefaultReminderTimes, cfg.ReminderTimes)
	assert.True(t, cfg.IsActive)
}
