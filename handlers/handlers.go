package handlers

import (
	"compliance_flow_app_go/middleware"
	"compliance_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

var (
	workflowEngine *services.WorkflowEngine
	expiryEngine   *services.ExpiryEngine
)

// Init wires the engines used by the handlers
func Init(workflow *services.WorkflowEngine, expiry *services.ExpiryEngine) {
	workflowEngine = workflow
	expiryEngine = expiry
}

// workflowFor returns the workflow engine recording request metadata in audit entries
func workflowFor(c echo.Context) *services.WorkflowEngine {
	return workflowEngine.WithAuditContext(middleware.GetAuditContext(c))
}

// expiryFor returns the expiry engine recording request metadata in audit entries
func expiryFor(c echo.Context) *services.ExpiryEngine {
	return expiryEngine.WithAuditContext(middleware.GetAuditContext(c))
}
