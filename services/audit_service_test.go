package services

import (
	"testing"

	"compliance_flow_app_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLoggerRecord(t *testing.T) {
	db := setupTestDB(t)
	actor := &Caller{UserID: "11111111-1111-1111-1111-111111111111", Name: "Asha"}
	logger := NewAuditLogger(db).WithContext(AuditContext{IPAddress: "10.0.0.1", UserAgent: "test"})

	logger.Record(AuditRecord{
		Actor:        actor,
		TargetUserID: "22222222-2222-2222-2222-222222222222",
		Action:       models.AuditActionStageCreate,
		ResourceType: "plan_stage",
		ResourceID:   "stage-1",
		CaseID:       "33333333-3333-3333-3333-333333333333",
		Details:      "<b>Created</b> plan stage",
	})

	var entry models.AuditEntry
	require.NoError(t, db.First(&entry, "resource_id = ?", "stage-1").Error)
	assert.Equal(t, actor.UserID, entry.ActorID)
	assert.Equal(t, "Asha", entry.ActorName)
	require.NotNil(t, entry.TargetUserID)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", *entry.TargetUserID)
	assert.Nil(t, entry.RoleID)
	assert.Equal(t, "Created plan stage", entry.Details)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
}

func TestAuditEntriesAreImmutable(t *testing.T) {
	db := setupTestDB(t)
	NewAuditLogger(db).Record(AuditRecord{Action: models.AuditActionCaseCreate, ResourceType: "case", ResourceID: "c1"})

	var entry models.AuditEntry
	require.NoError(t, db.First(&entry).Error)

	entry.Details = "rewritten"
	assert.Error(t, db.Save(&entry).Error)
	assert.Error(t, db.Delete(&entry).Error)

	var count int64
	db.Model(&models.AuditEntry{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAuditFailureIsSwallowed(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Migrator().DropTable(&models.AuditEntry{}))

	assert.NotPanics(t, func() {
		NewAuditLogger(db).Record(AuditRecord{Action: models.AuditActionCaseCreate, ResourceType: "case", ResourceID: "c1"})
	})
}

func TestAuditQueries(t *testing.T) {
	db := setupTestDB(t)
	logger := NewAuditLogger(db)
	caseID := "44444444-4444-4444-4444-444444444444"
	for _, action := range []string{models.AuditActionCaseCreate, models.AuditActionStageCreate, models.AuditActionStageSubmit} {
		logger.Record(AuditRecord{
			Actor:        &Caller{UserID: "actor"},
			Action:       action,
			ResourceType: "case",
			ResourceID:   caseID,
			CaseID:       caseID,
		})
	}

	trail, err := GetCaseAuditTrail(db, caseID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, models.AuditActionCaseCreate, trail[0].Action)
	assert.Equal(t, models.AuditActionStageSubmit, trail[2].Action)
	assert.Less(t, trail[0].ID, trail[1].ID)

	history, err := GetResourceAuditHistory(db, "case", caseID)
	require.NoError(t, err)
	assert.Equal(t, models.AuditActionStageSubmit, history[0].Action)

	entries, total, err := ListAuditEntries(db, AuditFilters{Action: models.AuditActionStageCreate}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, entries, 1)

	entries, total, err = ListAuditEntries(db, AuditFilters{ActorID: "actor"}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, entries, 1)
}
