package services

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	database "compliance_flow_app_go/db"
	"compliance_flow_app_go/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a private in-memory database with every model migrated
// and the role catalogue seeded. A single connection makes concurrent
// transactions run one after the other.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:mem_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.New().String())
	return openTestDB(t, dsn, 1)
}

// setupFileTestDB opens a sqlite file with the production connection
// options and a pool of connections, so transactions really overlap.
func setupFileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, database.LocalDSN(filepath.Join(t.TempDir(), "test.db")), 16)
}

func openTestDB(t *testing.T, dsn string, maxConns int) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(maxConns)
	t.Cleanup(func() { sqlDB.Close() })

	migrate := []interface{}{
		&models.User{}, &models.Role{}, &models.Case{},
		&models.AuditEntry{}, &models.ExpiryRecord{}, &models.RenewalConfig{},
	}
	migrate = append(migrate, StageModels()...)
	require.NoError(t, db.AutoMigrate(migrate...))
	require.NoError(t, SeedRoles(db))
	return db
}

// createCaller creates an active user holding roles and resolves it
func createCaller(t *testing.T, db *gorm.DB, name string, roles ...string) *Caller {
	t.Helper()
	user := models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.New().String()[:8]),
		Password: "hash",
		IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)
	if len(roles) > 0 {
		require.NoError(t, AssignRoles(db, &user, roles...))
	}
	caller, err := ResolveCaller(db, user.ID)
	require.NoError(t, err)
	return caller
}

// fixedClock returns a clock stuck at t
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func countAudit(t *testing.T, db *gorm.DB, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.AuditEntry{}).Where("action = ?", action).Count(&n).Error)
	return n
}
