package handlers

import (
	"net/http"
	"testing"

	"compliance_flow_app_go/models"
	"compliance_flow_app_go/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAuditEntriesHandler(t *testing.T) {
	e, database := setupServer(t)
	compliance := createUser(t, database, models.RoleCompliance)
	planner := createUser(t, database, models.RolePlanManager)

	caseID := createCaseViaAPI(t, e, compliance.Token)
	createCaseViaAPI(t, e, compliance.Token)

	rec, _ := doJSON(t, e, http.MethodGet, "/api/audit", planner.Token, nil)
	assertStatus(t, rec, http.StatusForbidden)

	rec, env := doJSON(t, e, http.MethodGet, "/api/audit?action="+models.AuditActionCaseCreate, compliance.Token, nil)
	assertStatus(t, rec, http.StatusOK)
	var page AuditPage
	decodeData(t, env, &page)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, auditPageSize, page.PageSize)

	rec, env = doJSON(t, e, http.MethodGet, "/api/audit?actor_id="+planner.ID, compliance.Token, nil)
	assertStatus(t, rec, http.StatusOK)
	decodeData(t, env, &page)
	assert.Equal(t, int64(0), page.Total)

	rec, env = doJSON(t, e, http.MethodGet, "/api/audit?date_from=2024-13-01", compliance.Token, nil)
	assertStatus(t, rec, http.StatusBadRequest)
	assert.Contains(t, env.Error, "date_from")

	rec, env = doJSON(t, e, http.MethodGet, "/api/audit/case/"+caseID, compliance.Token, nil)
	assertStatus(t, rec, http.StatusOK)
	var history []models.AuditEntry
	decodeData(t, env, &history)
	if assert.Len(t, history, 1) {
		assert.Equal(t, compliance.ID, history[0].ActorID)
	}
}

func TestListSecurityAlertsHandler(t *testing.T) {
	e, database := setupServer(t)
	admin := createUser(t, database, models.RoleAdmin)

	previous := services.Monitor
	services.Monitor = services.NewSecurityMonitor()
	defer func() { services.Monitor = previous }()

	for i := 0; i < 5; i++ {
		rec, _ := doJSON(t, e, http.MethodGet, "/api/cases/x", "garbage", nil)
		assertStatus(t, rec, http.StatusUnauthorized)
	}

	rec, env := doJSON(t, e, http.MethodGet, "/api/audit/security-alerts", admin.Token, nil)
	assertStatus(t, rec, http.StatusOK)
	var alerts []services.SecurityAlert
	decodeData(t, env, &alerts)
	require.Len(t, alerts, 1)
	assert.Equal(t, "192.0.2.1", alerts[0].IP)
}
