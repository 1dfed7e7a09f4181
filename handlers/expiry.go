package handlers

import (
	"net/http"

	"compliance_flow_app_go/db"
	"compliance_flow_app_go/middleware"
	"compliance_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UpdateExpiryStatusRequest is the body of PUT /api/expiry-records/:id/status
type UpdateExpiryStatusRequest struct {
	Status string `json:"status"`
}

// CreateExpiryRecordHandler creates an expiry-tracked record
// POST /api/expiry-records
func CreateExpiryRecordHandler(c echo.Context) error {
	var req services.CreateExpiryInput
	if err := c.Bind(&req); err != nil {
		return respondError(c, services.ValidationError("invalid request body"))
	}
	rec, err := expiryFor(c).CreateExpiryRecord(c.Request().Context(), middleware.GetCaller(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusCreated, rec)
}

// GetExpiryRecordHandler returns a record with its suppression evaluation
// GET /api/expiry-records/:id
func GetExpiryRecordHandler(c echo.Context) error {
	view, err := expiryFor(c).GetExpiryRecord(c.Request().Context(), middleware.GetCaller(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, view)
}

// UpdateExpiryStatusHandler changes the status of a record
// PUT /api/expiry-records/:id/status
func UpdateExpiryStatusHandler(c echo.Context) error {
	var req UpdateExpiryStatusRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, services.ValidationError("invalid request body"))
	}
	view, err := expiryFor(c).UpdateExpiryStatus(c.Request().Context(), middleware.GetCaller(c), c.Param("id"), req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, view)
}

// ReactivateEmailsHandler turns reminder emails back on for a record
// POST /api/expiry-records/:id/reactivate
func ReactivateEmailsHandler(c echo.Context) error {
	view, err := expiryFor(c).ReactivateEmails(c.Request().Context(), middleware.GetCaller(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, view)
}

// ImportExpiryRecordsHandler imports records from the uploaded xlsx "file"
// POST /api/expiry-records/import
func ImportExpiryRecordsHandler(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return respondError(c, services.ValidationError("no file uploaded"))
	}
	src, err := file.Open()
	if err != nil {
		return respondError(c, services.InternalError("failed to open file", err))
	}
	defer src.Close()

	result, err := expiryFor(c).ImportExpiryRecords(c.Request().Context(), middleware.GetCaller(c), src)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, result)
}

// GetImportTemplateHandler serves the xlsx import template
// GET /api/expiry-records/import/template
func GetImportTemplateHandler(c echo.Context) error {
	buf, err := services.GenerateExpiryImportTemplate()
	if err != nil {
		return respondError(c, services.InternalError("failed to generate template", err))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=expiry_import_template.xlsx")
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ListRenewalConfigsHandler returns every renewal config
// GET /api/renewal-configs
func ListRenewalConfigsHandler(c echo.Context) error {
	configs, err := services.ListRenewalConfigs(db.DB.WithContext(c.Request().Context()))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, configs)
}

// UpdateRenewalConfigHandler edits the cadence of a service type
// PUT /api/renewal-configs/:serviceType
func UpdateRenewalConfigHandler(c echo.Context) error {
	var req services.RenewalConfigUpdate
	if err := c.Bind(&req); err != nil {
		return respondError(c, services.ValidationError("invalid request body"))
	}
	cfg, err := expiryFor(c).UpdateRenewalConfig(c.Request().Context(), middleware.GetCaller(c), c.Param("serviceType"), req)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, cfg)
}
