package handlers

import (
	"compliance_flow_app_go/middleware"
	"compliance_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

// RegisterAPIRoutes mounts the workflow API on api. The group must already
// resolve the caller. importLimit throttles spreadsheet imports.
func RegisterAPIRoutes(api *echo.Group, importLimit echo.MiddlewareFunc) {
	api.POST("/cases", CreateCaseHandler)
	api.GET("/cases/:id", GetCaseHandler)
	api.DELETE("/cases/:id", DeleteCaseHandler)
	api.GET("/cases/:id/audit", GetCaseAuditTrailHandler, middleware.RequireCapability(services.CapAuditView))
	api.POST("/cases/:id/stages/:kind", CreateStageHandler)

	stages := api.Group("/stages/:kind/:stageId")
	stages.GET("", GetStageHandler)
	stages.POST("/submit", SubmitStageHandler)
	stages.POST("/review", ReviewStageHandler)
	stages.POST("/files", UploadStageFilesHandler)
	stages.DELETE("/files", DeleteStageFileHandler)
	stages.DELETE("/files/:name", DeleteStageFileHandler)

	expiry := api.Group("/expiry-records")
	expiry.POST("", CreateExpiryRecordHandler)
	expiry.POST("/import", ImportExpiryRecordsHandler, importLimit)
	expiry.GET("/import/template", GetImportTemplateHandler)
	expiry.GET("/:id", GetExpiryRecordHandler)
	expiry.PUT("/:id/status", UpdateExpiryStatusHandler)
	expiry.POST("/:id/reactivate", ReactivateEmailsHandler)

	api.GET("/renewal-configs", ListRenewalConfigsHandler)
	api.PUT("/renewal-configs/:serviceType", UpdateRenewalConfigHandler)

	audit := api.Group("/audit", middleware.RequireCapability(services.CapAuditView))
	audit.GET("", ListAuditEntriesHandler)
	audit.GET("/security-alerts", ListSecurityAlertsHandler)
	audit.GET("/:type/:id", GetResourceHistoryHandler)
}
