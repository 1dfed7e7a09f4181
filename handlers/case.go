package handlers

import (
	"net/http"

	"compliance_flow_app_go/db"
	"compliance_flow_app_go/middleware"
	"compliance_flow_app_go/models"
	"compliance_flow_app_go/services"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// CreateCaseRequest is the body of POST /api/cases
type CreateCaseRequest struct {
	CompanyID      string                 `json:"company_id"`
	Items          []models.QuotationItem `json:"items"`
	TaxRatePercent decimal.Decimal        `json:"tax_rate_percent"`
	AssignedRoleID string                 `json:"assigned_role_id"`
	AssignedUserID string                 `json:"assigned_user_id"`
}

// CreateCaseHandler creates a quotation case
// POST /api/cases
func CreateCaseHandler(c echo.Context) error {
	var req CreateCaseRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, services.ValidationError("invalid request body"))
	}

	created, err := workflowFor(c).CreateCase(c.Request().Context(), middleware.GetCaller(c), services.CreateCaseInput{
		CompanyID:      req.CompanyID,
		Items:          req.Items,
		TaxRatePercent: req.TaxRatePercent,
		AssignedRoleID: req.AssignedRoleID,
		AssignedUserID: req.AssignedUserID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusCreated, created)
}

// GetCaseHandler returns a case with its stage records
// GET /api/cases/:id
func GetCaseHandler(c echo.Context) error {
	found, err := workflowFor(c).GetCase(c.Request().Context(), middleware.GetCaller(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, found)
}

// DeleteCaseHandler deletes a case and every stage record of it
// DELETE /api/cases/:id
func DeleteCaseHandler(c echo.Context) error {
	if err := workflowFor(c).DeleteCase(c.Request().Context(), middleware.GetCaller(c), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return respondMessage(c, http.StatusOK, "Case deleted")
}

// GetCaseAuditTrailHandler returns the audit entries of a case in commit order
// GET /api/cases/:id/audit
func GetCaseAuditTrailHandler(c echo.Context) error {
	entries, err := services.GetCaseAuditTrail(db.DB.WithContext(c.Request().Context()), c.Param("id"))
	if err != nil {
		return respondError(c, services.InternalError("failed to load audit trail", err))
	}
	return respondData(c, http.StatusOK, entries)
}
