package handlers

import (
	"net/http"
	"strconv"
	"time"

	"compliance_flow_app_go/db"
	"compliance_flow_app_go/models"
	"compliance_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

const auditPageSize = 50

// AuditPage is one page of audit entries
type AuditPage struct {
	Entries  []models.AuditEntry `json:"entries"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// ListAuditEntriesHandler returns filtered and paginated audit entries
// GET /api/audit?actor_id=&action=&date_from=&date_to=&page=
func ListAuditEntriesHandler(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	filters := services.AuditFilters{
		ActorID: c.QueryParam("actor_id"),
		Action:  c.QueryParam("action"),
	}
	if dateFrom := c.QueryParam("date_from"); dateFrom != "" {
		t, err := services.ParseDate(dateFrom)
		if err != nil {
			return respondError(c, services.ValidationError("date_from: %v", err))
		}
		filters.DateFrom = t
	}
	if dateTo := c.QueryParam("date_to"); dateTo != "" {
		t, err := services.ParseDate(dateTo)
		if err != nil {
			return respondError(c, services.ValidationError("date_to: %v", err))
		}
		filters.DateTo = t.Add(24*time.Hour - time.Second) // End of day
	}

	entries, total, err := services.ListAuditEntries(db.DB.WithContext(c.Request().Context()), filters, page, auditPageSize)
	if err != nil {
		return respondError(c, services.InternalError("failed to fetch audit entries", err))
	}
	return respondData(c, http.StatusOK, AuditPage{Entries: entries, Total: total, Page: page, PageSize: auditPageSize})
}

// GetResourceHistoryHandler returns the audit history for a specific resource
// GET /api/audit/:type/:id
func GetResourceHistoryHandler(c echo.Context) error {
	entries, err := services.GetResourceAuditHistory(db.DB.WithContext(c.Request().Context()), c.Param("type"), c.Param("id"))
	if err != nil {
		return respondError(c, services.InternalError("failed to fetch resource history", err))
	}
	return respondData(c, http.StatusOK, entries)
}

// ListSecurityAlertsHandler returns recent alerts for repeated failed
// authentication
// GET /api/audit/security-alerts
func ListSecurityAlertsHandler(c echo.Context) error {
	if services.Monitor == nil {
		return respondData(c, http.StatusOK, []services.SecurityAlert{})
	}
	return respondData(c, http.StatusOK, services.Monitor.GetRecentAlerts())
}
