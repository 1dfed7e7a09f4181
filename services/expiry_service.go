package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"compliance_flow_app_go/models"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	// SuppressionCutoffDays is how long after expiry reminders keep going.
	// It is deliberately not part of RenewalConfig.
	SuppressionCutoffDays = 15

	// LabourInspectionOffsetDays is the compliance period of an inspection notice
	LabourInspectionOffsetDays = 15

	reminderSpacingDays = 7
	configCacheSize     = 64
)

// ComputeExpiry returns noticeDate plus offsetDays calendar days
func ComputeExpiry(noticeDate time.Time, offsetDays int) time.Time {
	return noticeDate.AddDate(0, 0, offsetDays)
}

// SuppressionDecision is the outcome of EvaluateSuppression
type SuppressionDecision struct {
	ShouldStop bool   `json:"should_stop"`
	Reason     string `json:"reason,omitempty"`
}

// EvaluateSuppression decides whether reminders for rec must stop. The first
// matching rule wins: an already stopped record stays stopped, then a
// complete or expired status, then more than SuppressionCutoffDays since
// expiry.
func EvaluateSuppression(rec *models.ExpiryRecord, now time.Time) SuppressionDecision {
	if !rec.EmailServiceActive {
		reason := rec.EmailsStopReason
		if reason == "" {
			reason = "email service already stopped"
		}
		return SuppressionDecision{ShouldStop: true, Reason: reason}
	}
	return evaluateSuppressionRules(rec, now)
}

func evaluateSuppressionRules(rec *models.ExpiryRecord, now time.Time) SuppressionDecision {
	if models.IsTerminalExpiryStatus(rec.Status) {
		return SuppressionDecision{ShouldStop: true, Reason: "status marked as complete/expired"}
	}
	if days := rec.DaysSinceExpiry(now); days > SuppressionCutoffDays {
		return SuppressionDecision{
			ShouldStop: true,
			Reason:     fmt.Sprintf("expired more than %d days ago (%d days)", SuppressionCutoffDays, days),
		}
	}
	return SuppressionDecision{}
}

// ReminderDecision is the outcome of ScheduleReminder
type ReminderDecision struct {
	Eligible        bool   `json:"eligible"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
	Ordinal         int    `json:"ordinal,omitempty"`
	Type            string `json:"type,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// ReminderType returns the history label of the reminder with ordinal n
func ReminderType(ordinal int) string {
	return fmt.Sprintf("reminder_%d", ordinal)
}

// ScheduleReminder decides whether now falls in the reminder window of rec
// and which reminder is due. Reminders are spaced weekly from the start of
// the window and capped at cfg.ReminderTimes.
func ScheduleReminder(rec *models.ExpiryRecord, cfg models.RenewalConfig, now time.Time) ReminderDecision {
	days := CeilDays(rec.ExpiryDate.Sub(now))
	d := ReminderDecision{DaysUntilExpiry: days}

	switch {
	case !rec.EmailServiceActive:
		d.Reason = "email service stopped"
		return d
	case !cfg.IsActive:
		d.Reason = "renewal reminders disabled for " + cfg.ServiceType
		return d
	case days < 0:
		d.Reason = "already expired"
		return d
	case days > cfg.ReminderDays:
		d.Reason = fmt.Sprintf("outside the %d day window", cfg.ReminderDays)
		return d
	}

	ordinal := int(math.Ceil(float64(cfg.ReminderDays-days)/reminderSpacingDays)) + 1
	if cfg.ReminderTimes > 0 && ordinal > cfg.ReminderTimes {
		ordinal = cfg.ReminderTimes
	}
	d.Eligible = true
	d.Ordinal = ordinal
	d.Type = ReminderType(ordinal)
	return d
}

// ReminderResult is the outcome of SendReminder. Failures are reported here
// and never returned as errors.
type ReminderResult struct {
	Success bool   `json:"success"`
	Sent    bool   `json:"sent"`
	Type    string `json:"type,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ExpiryEngine computes expiry dates, reminder cadence and email
// suppression for expiry-tracked records.
type ExpiryEngine struct {
	db         *gorm.DB
	authorizer *RoleAuthorizer
	audit      *AuditLogger
	notifier   Notifier
	configs    *lru.Cache[string, models.RenewalConfig]
	now        func() time.Time
}

// NewExpiryEngine wires the engine to its collaborators. notifier may be nil,
// in which case due reminders fail with a reason.
func NewExpiryEngine(db *gorm.DB, authorizer *RoleAuthorizer, audit *AuditLogger, notifier Notifier) (*ExpiryEngine, error) {
	cache, err := lru.New[string, models.RenewalConfig](configCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create renewal config cache: %w", err)
	}
	return &ExpiryEngine{
		db:         db,
		authorizer: authorizer,
		audit:      audit,
		notifier:   notifier,
		configs:    cache,
		now:        time.Now,
	}, nil
}

// WithAuditContext returns an engine whose audit entries carry request metadata
func (e *ExpiryEngine) WithAuditContext(ctx AuditContext) *ExpiryEngine {
	clone := *e
	clone.audit = e.audit.WithContext(ctx)
	return &clone
}

// WithClock returns an engine that reads the time from now
func (e *ExpiryEngine) WithClock(now func() time.Time) *ExpiryEngine {
	clone := *e
	clone.now = now
	return &clone
}

// Now returns the engine clock
func (e *ExpiryEngine) Now() time.Time {
	return e.now()
}

// RenewalConfigFor returns the cadence of serviceType. Unknown service types
// get the default cadence.
func (e *ExpiryEngine) RenewalConfigFor(ctx context.Context, serviceType string) (models.RenewalConfig, error) {
	if cfg, ok := e.configs.Get(serviceType); ok {
		return cfg, nil
	}
	var cfg models.RenewalConfig
	err := e.db.WithContext(ctx).Where("service_type = ?", serviceType).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Debug().Str("service_type", serviceType).Msg("No renewal config, using defaults")
		return defaultRenewalConfig(serviceType), nil
	}
	if err != nil {
		return models.RenewalConfig{}, InternalError("failed to load renewal config", err)
	}
	e.configs.Add(serviceType, cfg)
	return cfg, nil
}

// InvalidateRenewalConfig drops a cached config after it changed
func (e *ExpiryEngine) InvalidateRenewalConfig(serviceType string) {
	e.configs.Remove(serviceType)
}

func defaultRenewalConfig(serviceType string) models.RenewalConfig {
	window := models.DefaultReminderWindowDays
	if serviceType == models.ServiceTypeLabourInspection {
		window = models.LabourInspectionReminderWindowDays
	}
	return models.RenewalConfig{
		ServiceType:   serviceType,
		DisplayName:   serviceType,
		ReminderTimes: models.DefaultReminderTimes,
		ReminderDays:  window,
		IsActive:      true,
	}
}

// ApplySuppression evaluates rec and, when reminders must stop, clears
// EmailServiceActive in the database. The flag is only ever cleared here.
func (e *ExpiryEngine) ApplySuppression(ctx context.Context, rec *models.ExpiryRecord) (SuppressionDecision, error) {
	now := e.now()
	decision := EvaluateSuppression(rec, now)
	if !decision.ShouldStop || !rec.EmailServiceActive {
		return decision, nil
	}

	err := e.db.WithContext(ctx).Model(&models.ExpiryRecord{}).
		Where("id = ? AND email_service_active = ?", rec.ID, true).
		Updates(map[string]interface{}{
			"email_service_active": false,
			"emails_stopped_at":    now,
			"emails_stop_reason":   decision.Reason,
		}).Error
	if err != nil {
		return decision, InternalError("failed to stop reminder emails", err)
	}
	rec.EmailServiceActive = false
	rec.EmailsStoppedAt = &now
	rec.EmailsStopReason = decision.Reason

	log.Info().Str("record_id", rec.ID).Str("reason", decision.Reason).Msg("Reminder emails stopped")
	return decision, nil
}

// SendReminder sends the due reminder of rec, at most once per ordinal. It
// recovers from every failure and reports it in the result so a sweep can
// carry on with the next record.
func (e *ExpiryEngine) SendReminder(ctx context.Context, rec *models.ExpiryRecord) (result ReminderResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("record_id", rec.ID).Msg("Recovered while sending reminder")
			result = ReminderResult{Success: false, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	cfg, err := e.RenewalConfigFor(ctx, rec.ServiceType)
	if err != nil {
		log.Error().Err(err).Str("record_id", rec.ID).Msg("Failed to load renewal config")
		return ReminderResult{Success: false, Reason: err.Error()}
	}

	decision := ScheduleReminder(rec, cfg, e.now())
	if !decision.Eligible {
		return ReminderResult{Success: true, Reason: decision.Reason}
	}
	if rec.HasReminder(decision.Type) {
		return ReminderResult{Success: true, Type: decision.Type, Reason: decision.Type + " already sent"}
	}
	if e.notifier == nil {
		return ReminderResult{Success: false, Type: decision.Type, Reason: "no notifier configured"}
	}

	notice := ReminderNotice{
		RecordID:        rec.ID,
		ServiceName:     cfg.DisplayName,
		ReferenceNumber: rec.ReferenceNumber,
		ContactEmail:    rec.ContactEmail,
		ExpiryDate:      rec.ExpiryDate.Format(DateLayout),
		DaysUntilExpiry: decision.DaysUntilExpiry,
		Ordinal:         decision.Ordinal,
		ReminderTimes:   cfg.ReminderTimes,
	}
	if err := e.notifier.NotifyRenewal(ctx, notice); err != nil {
		log.Error().Err(err).Str("record_id", rec.ID).Str("type", decision.Type).Msg("Failed to send reminder")
		return ReminderResult{Success: false, Type: decision.Type, Reason: err.Error()}
	}

	history := append(rec.ReminderHistory, models.ReminderEntry{
		Type:            decision.Type,
		SentAt:          e.now(),
		DaysUntilExpiry: decision.DaysUntilExpiry,
	})
	err = e.db.WithContext(ctx).Model(&models.ExpiryRecord{}).
		Where("id = ?", rec.ID).
		Update("reminder_history", history).Error
	if err != nil {
		log.Error().Err(err).Str("record_id", rec.ID).Str("type", decision.Type).Msg("Reminder sent but history not saved")
		return ReminderResult{Success: false, Sent: true, Type: decision.Type, Reason: "failed to save reminder history"}
	}
	rec.ReminderHistory = history

	log.Info().Str("record_id", rec.ID).Str("type", decision.Type).Int("days_until_expiry", decision.DaysUntilExpiry).Msg("Reminder sent")
	return ReminderResult{Success: true, Sent: true, Type: decision.Type}
}

// CreateExpiryInput is the input of CreateExpiryRecord. Dates are YYYY-MM-DD.
type CreateExpiryInput struct {
	Kind            string `json:"kind"`
	ServiceType     string `json:"service_type"`
	CompanyID       string `json:"company_id"`
	ReferenceNumber string `json:"reference_number"`
	ContactEmail    string `json:"contact_email"`
	NoticeDate      string `json:"notice_date"`
	PolicyStartDate string `json:"policy_start_date"`
	ExpiryDate      string `json:"expiry_date"`
}

// BuildExpiryRecord validates in and derives the expiry date: notice date
// plus 15 days for inspections, start date plus one year minus a day for
// policies without an explicit expiry. Licenses need an explicit expiry.
func BuildExpiryRecord(in CreateExpiryInput) (*models.ExpiryRecord, error) {
	if !models.IsValidExpiryKind(in.Kind) {
		return nil, ValidationError("unknown record kind %q", in.Kind)
	}
	if in.CompanyID == "" || in.ReferenceNumber == "" {
		return nil, ValidationError("company_id and reference_number are required")
	}

	rec := &models.ExpiryRecord{
		Kind:               in.Kind,
		ServiceType:        in.ServiceType,
		CompanyID:          in.CompanyID,
		ReferenceNumber:    SanitizeText(in.ReferenceNumber),
		ContactEmail:       in.ContactEmail,
		Status:             models.ExpiryStatusActive,
		EmailServiceActive: true,
	}
	if rec.ServiceType == "" {
		rec.ServiceType = in.Kind
	}

	parse := func(field, value string) (*time.Time, error) {
		if value == "" {
			return nil, nil
		}
		t, err := ParseDate(value)
		if err != nil {
			return nil, ValidationError("%s: %v", field, err)
		}
		return &t, nil
	}
	notice, err := parse("notice_date", in.NoticeDate)
	if err != nil {
		return nil, err
	}
	start, err := parse("policy_start_date", in.PolicyStartDate)
	if err != nil {
		return nil, err
	}
	expiry, err := parse("expiry_date", in.ExpiryDate)
	if err != nil {
		return nil, err
	}
	rec.NoticeDate = notice
	rec.PolicyStartDate = start

	switch in.Kind {
	case models.ExpiryKindLabourInspection:
		if notice == nil {
			return nil, ValidationError("notice_date is required for labour inspections")
		}
		rec.ExpiryDate = ComputeExpiry(*notice, LabourInspectionOffsetDays)
	case models.ExpiryKindInsurancePolicy:
		switch {
		case expiry != nil:
			rec.ExpiryDate = *expiry
		case start != nil:
			rec.ExpiryDate = start.AddDate(1, 0, -1)
		default:
			return nil, ValidationError("policy_start_date or expiry_date is required for insurance policies")
		}
	default:
		if expiry == nil {
			return nil, ValidationError("expiry_date is required for %s", in.Kind)
		}
		rec.ExpiryDate = *expiry
	}
	return rec, nil
}

// CreateExpiryRecord stores a new record and applies suppression at once, so
// a record entered after its cutoff never sends a reminder.
func (e *ExpiryEngine) CreateExpiryRecord(ctx context.Context, caller *Caller, in CreateExpiryInput) (*models.ExpiryRecord, error) {
	if !e.authorizer.IsAuthorized(caller, CapExpiryManage, "") {
		return nil, ForbiddenError("not allowed to manage expiry records")
	}
	rec, err := BuildExpiryRecord(in)
	if err != nil {
		return nil, err
	}
	if err := e.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, InternalError("failed to create expiry record", err)
	}
	if _, err := e.ApplySuppression(ctx, rec); err != nil {
		return nil, err
	}

	e.audit.Record(AuditRecord{
		Actor:        caller,
		Action:       models.AuditActionExpiryCreate,
		ResourceType: "expiry_record",
		ResourceID:   rec.ID,
		Details:      fmt.Sprintf("Created %s %s expiring %s", rec.Kind, rec.ReferenceNumber, rec.ExpiryDate.Format(DateLayout)),
	})
	return rec, nil
}

func (e *ExpiryEngine) loadRecord(ctx context.Context, id string) (*models.ExpiryRecord, error) {
	var rec models.ExpiryRecord
	if err := e.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("expiry record %s not found", id)
		}
		return nil, InternalError("failed to load expiry record", err)
	}
	return &rec, nil
}

// ExpiryView is a record together with its derived fields
type ExpiryView struct {
	Record          *models.ExpiryRecord `json:"record"`
	DaysSinceExpiry int                  `json:"days_since_expiry"`
	Suppression     SuppressionDecision  `json:"suppression"`
	NextReminder    ReminderDecision     `json:"next_reminder"`
}

func (e *ExpiryEngine) view(ctx context.Context, rec *models.ExpiryRecord, decision SuppressionDecision) (*ExpiryView, error) {
	cfg, err := e.RenewalConfigFor(ctx, rec.ServiceType)
	if err != nil {
		return nil, err
	}
	now := e.now()
	return &ExpiryView{
		Record:          rec,
		DaysSinceExpiry: rec.DaysSinceExpiry(now),
		Suppression:     decision,
		NextReminder:    ScheduleReminder(rec, cfg, now),
	}, nil
}

// GetExpiryRecord loads a record and applies suppression synchronously
func (e *ExpiryEngine) GetExpiryRecord(ctx context.Context, caller *Caller, id string) (*ExpiryView, error) {
	if !e.authorizer.IsAuthorized(caller, CapExpiryManage, "") {
		return nil, ForbiddenError("not allowed to view expiry records")
	}
	rec, err := e.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	decision, err := e.ApplySuppression(ctx, rec)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, rec, decision)
}

// UpdateExpiryStatus changes the record status and re-applies suppression.
// Setting an active status again never re-enables stopped emails.
func (e *ExpiryEngine) UpdateExpiryStatus(ctx context.Context, caller *Caller, id, status string) (*ExpiryView, error) {
	if !e.authorizer.IsAuthorized(caller, CapExpiryManage, "") {
		return nil, ForbiddenError("not allowed to manage expiry records")
	}
	if !models.IsValidExpiryStatus(status) {
		return nil, ValidationError("unknown status %q", status)
	}
	rec, err := e.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := rec.Status
	if err := e.db.WithContext(ctx).Model(rec).UpdateColumn("status", status).Error; err != nil {
		return nil, InternalError("failed to update status", err)
	}
	rec.Status = status

	decision, err := e.ApplySuppression(ctx, rec)
	if err != nil {
		return nil, err
	}

	e.audit.Record(AuditRecord{
		Actor:        caller,
		Action:       models.AuditActionExpiryStatus,
		ResourceType: "expiry_record",
		ResourceID:   rec.ID,
		Details:      fmt.Sprintf("Status %s -> %s", previous, status),
	})
	return e.view(ctx, rec, decision)
}

// ReactivateEmails turns reminders back on. It is the only path from a
// stopped record back to an active one and is refused while the suppression
// rules would stop it again immediately.
func (e *ExpiryEngine) ReactivateEmails(ctx context.Context, caller *Caller, id string) (*ExpiryView, error) {
	if !e.authorizer.IsAuthorized(caller, CapExpiryReactivate, "") {
		return nil, ForbiddenError("not allowed to reactivate reminder emails")
	}
	rec, err := e.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.EmailServiceActive {
		return nil, InvalidStateError("reminder emails are already active for %s", id)
	}
	if d := evaluateSuppressionRules(rec, e.now()); d.ShouldStop {
		return nil, InvalidStateError("cannot reactivate: %s", d.Reason)
	}

	err = e.db.WithContext(ctx).Model(&models.ExpiryRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"email_service_active": true,
			"emails_stopped_at":    nil,
			"emails_stop_reason":   "",
		}).Error
	if err != nil {
		return nil, InternalError("failed to reactivate emails", err)
	}
	previousReason := rec.EmailsStopReason
	rec.EmailServiceActive = true
	rec.EmailsStoppedAt = nil
	rec.EmailsStopReason = ""

	log.Info().Str("record_id", rec.ID).Str("actor_id", caller.UserID).Msg("Reminder emails reactivated")
	e.audit.Record(AuditRecord{
		Actor:        caller,
		Action:       models.AuditActionExpiryReactivate,
		ResourceType: "expiry_record",
		ResourceID:   rec.ID,
		Details:      "Reactivated reminder emails, previously stopped: " + previousReason,
	})
	return e.view(ctx, rec, SuppressionDecision{})
}
