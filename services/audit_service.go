package services

import (
	"compliance_flow_app_go/models"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AuditContext contains request metadata attached to audit entries
type AuditContext struct {
	IPAddress string
	UserAgent string
}

// AuditRecord is the input for one audit entry
type AuditRecord struct {
	Actor        *Caller
	TargetUserID string
	RoleID       string
	Action       string
	ResourceType string
	ResourceID   string
	CaseID       string
	Details      string
}

// AuditLogger appends audit entries. It is called only after the audited
// mutation has committed, and a failure to write is logged and swallowed.
type AuditLogger struct {
	db  *gorm.DB
	ctx AuditContext
}

// NewAuditLogger creates an AuditLogger writing through db
func NewAuditLogger(db *gorm.DB) *AuditLogger {
	return &AuditLogger{db: db}
}

// WithContext returns a copy carrying request metadata
func (l *AuditLogger) WithContext(ctx AuditContext) *AuditLogger {
	return &AuditLogger{db: l.db, ctx: ctx}
}

// Record appends one entry. It never returns an error.
func (l *AuditLogger) Record(rec AuditRecord) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("action", rec.Action).Msg("[AUDIT] Recovered while writing audit entry")
		}
	}()

	entry := models.AuditEntry{
		TargetUserID: ptrIfNotEmpty(rec.TargetUserID),
		RoleID:       ptrIfNotEmpty(rec.RoleID),
		ResourceType: rec.ResourceType,
		ResourceID:   rec.ResourceID,
		CaseID:       ptrIfNotEmpty(rec.CaseID),
		Action:       rec.Action,
		Details:      SanitizeText(rec.Details),
		IPAddress:    l.ctx.IPAddress,
		UserAgent:    l.ctx.UserAgent,
	}
	if rec.Actor != nil {
		entry.ActorID = rec.Actor.UserID
		entry.ActorName = rec.Actor.Name
	}

	if err := l.db.Create(&entry).Error; err != nil {
		log.Error().Err(err).
			Str("action", rec.Action).
			Str("resource_id", rec.ResourceID).
			Msg("[AUDIT] Failed to create audit entry")
	}
}

// ptrIfNotEmpty returns a pointer to the string if not empty, nil otherwise
func ptrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetCaseAuditTrail returns the entries of a case in commit order
func GetCaseAuditTrail(db *gorm.DB, caseID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := db.Where("case_id = ?", caseID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// GetResourceAuditHistory retrieves the audit history for a specific resource, newest first
func GetResourceAuditHistory(db *gorm.DB, resourceType, resourceID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("id DESC").
		Find(&entries).Error
	return entries, err
}

// AuditFilters contains filter options for audit queries
type AuditFilters struct {
	ActorID  string
	Action   string
	DateFrom time.Time
	DateTo   time.Time
}

// ListAuditEntries retrieves paginated audit entries in commit order
func ListAuditEntries(db *gorm.DB, filters AuditFilters, page, pageSize int) ([]models.AuditEntry, int64, error) {
	query := db.Model(&models.AuditEntry{})

	if filters.ActorID != "" {
		query = query.Where("actor_id = ?", filters.ActorID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if !filters.DateFrom.IsZero() {
		query = query.Where("created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("created_at <= ?", filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	var entries []models.AuditEntry
	err := query.Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}
