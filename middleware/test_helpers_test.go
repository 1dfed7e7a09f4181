package middleware

import (
	"fmt"
	"testing"

	"compliance_flow_app_go/models"
	"compliance_flow_app_go/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "middleware-test-secret-0123456789abcdef"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:mw_%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Role{}))
	require.NoError(t, services.SeedRoles(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, roles ...string) *models.User {
	t.Helper()
	user := &models.User{
		Name:     "Test User",
		Email:    uuid.New().String()[:8] + "@example.com",
		Password: "hash",
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	if len(roles) > 0 {
		require.NoError(t, services.AssignRoles(db, user, roles...))
	}
	return user
}
