package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"compliance_flow_app_go/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// WorkflowEngine moves cases through the plan, stability, application and
// renewal stages. Every mutation runs in one transaction and is audited only
// after it commits.
type WorkflowEngine struct {
	db         *gorm.DB
	authorizer *RoleAuthorizer
	audit      *AuditLogger
	storage    StorageProvider
	now        func() time.Time
}

// NewWorkflowEngine wires the engine to its collaborators
func NewWorkflowEngine(db *gorm.DB, authorizer *RoleAuthorizer, audit *AuditLogger, storage StorageProvider) *WorkflowEngine {
	return &WorkflowEngine{
		db:         db,
		authorizer: authorizer,
		audit:      audit,
		storage:    storage,
		now:        time.Now,
	}
}

// WithAuditContext returns an engine whose audit entries carry request metadata
func (e *WorkflowEngine) WithAuditContext(ctx AuditContext) *WorkflowEngine {
	clone := *e
	clone.audit = e.audit.WithContext(ctx)
	return &clone
}

// CreateStageInput is the input of CreateStage
type CreateStageInput struct {
	CaseID     string
	Kind       models.StageKind
	AssigneeID string
	Remarks    string
	Details    StageDetails
}

// CreateStage creates the record of a kind for a case and moves the case
// status to that kind. A case holds at most one record per kind: the check
// is repeated inside the transaction and a concurrent duplicate yields a
// Conflict with nothing written.
func (e *WorkflowEngine) CreateStage(ctx context.Context, caller *Caller, in CreateStageInput) (models.StageRecord, error) {
	if !e.authorizer.IsAuthorized(caller, CapStageCreate, "") {
		return nil, ForbiddenError("not allowed to create stages")
	}
	def, err := DefinitionFor(in.Kind)
	if err != nil {
		return nil, err
	}
	repo, err := RepositoryFor(in.Kind)
	if err != nil {
		return nil, err
	}
	if in.CaseID == "" || in.AssigneeID == "" {
		return nil, ValidationError("case_id and assignee_id are required")
	}
	if err := def.ValidateCreate(in.Details); err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)
	role, err := e.verifyAssignee(db, in.AssigneeID, def.AssigneeRole)
	if err != nil {
		return nil, err
	}

	// Fast path; the authoritative check is repeated in the transaction
	if err := ensureCaseExists(db, in.CaseID); err != nil {
		return nil, err
	}
	if _, err := repo.FindByCase(db, in.CaseID); err == nil {
		stageCreateConflictsTotal.WithLabelValues(string(in.Kind)).Inc()
		return nil, ConflictError("case %s already has a %s stage", in.CaseID, in.Kind)
	} else if !IsKind(err, ErrKindNotFound) {
		return nil, err
	}

	var created models.StageRecord
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := ensureCaseExists(tx, in.CaseID); err != nil {
			return err
		}
		if _, err := repo.FindByCase(tx, in.CaseID); err == nil {
			return ConflictError("case %s already has a %s stage", in.CaseID, in.Kind)
		} else if !IsKind(err, ErrKindNotFound) {
			return err
		}

		rec := repo.New()
		base := rec.Base()
		base.CaseID = in.CaseID
		base.AssigneeID = in.AssigneeID
		base.CreatedBy = caller.UserID
		base.Status = def.InitialStatus()
		if remarks := SanitizeText(in.Remarks); remarks != "" {
			base.Remarks = &remarks
		}
		if err := def.ApplyDetails(rec, in.Details); err != nil {
			return err
		}

		if err := repo.Create(tx, rec); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ConflictError("case %s already has a %s stage", in.CaseID, in.Kind)
			}
			return InternalError("failed to create stage", err)
		}

		res := tx.Model(&models.Case{}).Where("id = ?", in.CaseID).UpdateColumn("status", string(in.Kind))
		if res.Error != nil {
			return InternalError("failed to update case status", res.Error)
		}
		if res.RowsAffected != 1 {
			return NotFoundError("case %s not found", in.CaseID)
		}
		created = rec
		return nil
	})
	if err != nil {
		if IsKind(err, ErrKindConflict) {
			stageCreateConflictsTotal.WithLabelValues(string(in.Kind)).Inc()
		}
		return nil, asAppError(err, "failed to create stage")
	}

	stageTransitionsTotal.WithLabelValues(string(in.Kind), transitionCreate).Inc()
	log.Info().
		Str("case_id", in.CaseID).
		Str("stage_id", created.Base().ID).
		Str("kind", string(in.Kind)).
		Str("actor_id", caller.UserID).
		Msg("Stage created")

	e.audit.Record(AuditRecord{
		Actor:        caller,
		TargetUserID: in.AssigneeID,
		RoleID:       role.ID,
		Action:       models.AuditActionStageCreate,
		ResourceType: string(in.Kind) + "_stage",
		ResourceID:   created.Base().ID,
		CaseID:       in.CaseID,
		Details:      fmt.Sprintf("Created %s stage assigned to %s", in.Kind, in.AssigneeID),
	})
	return created, nil
}

// verifyAssignee checks in the database that the user exists, is active and
// holds roleName, and returns the role.
func (e *WorkflowEngine) verifyAssignee(db *gorm.DB, userID, roleName string) (*models.Role, error) {
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("user %s not found", userID)
		}
		return nil, InternalError("failed to load assignee", err)
	}
	ok, err := UserHasRole(db, userID, roleName)
	if err != nil {
		return nil, InternalError("failed to verify assignee role", err)
	}
	if !ok {
		return nil, ValidationError("assignee %s must hold the %s role", userID, roleName)
	}
	var role models.Role
	if err := db.Where("name = ?", roleName).First(&role).Error; err != nil {
		return nil, InternalError("failed to load role", err)
	}
	return &role, nil
}

func ensureCaseExists(tx *gorm.DB, caseID string) error {
	var count int64
	if err := tx.Model(&models.Case{}).Where("id = ?", caseID).Count(&count).Error; err != nil {
		return InternalError("failed to load case", err)
	}
	if count == 0 {
		return NotFoundError("case %s not found", caseID)
	}
	return nil
}

// asAppError keeps AppErrors as they are and wraps anything else as internal
func asAppError(err error, message string) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError(message, err)
}

// GetStage returns a stage record. Callers need case:view or must be the
// assignee.
func (e *WorkflowEngine) GetStage(ctx context.Context, caller *Caller, kind models.StageKind, stageID string) (models.StageRecord, error) {
	repo, err := RepositoryFor(kind)
	if err != nil {
		return nil, err
	}
	rec, err := repo.FindByID(e.db.WithContext(ctx), stageID)
	if err != nil {
		return nil, err
	}
	if !caller.HasCapability(CapCaseView) && !e.authorizer.IsAuthorized(caller, ActionStageView, rec.Base().AssigneeID) {
		return nil, ForbiddenError("not allowed to view stage %s", stageID)
	}
	return rec, nil
}

// mutateStage loads a stage inside a transaction, applies fn and saves it
func (e *WorkflowEngine) mutateStage(ctx context.Context, kind models.StageKind, stageID string, fn func(rec models.StageRecord) error) (models.StageRecord, error) {
	repo, err := RepositoryFor(kind)
	if err != nil {
		return nil, err
	}
	var out models.StageRecord
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := repo.FindByID(tx, stageID)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		if err := repo.Save(tx, rec); err != nil {
			return InternalError("failed to save stage", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, asAppError(err, "failed to update stage")
	}
	return out, nil
}

// Submit moves a stage from its initial status to submitted. Only the
// assignee or a caller allowed to act on any stage may submit.
func (e *WorkflowEngine) Submit(ctx context.Context, caller *Caller, kind models.StageKind, stageID string) (models.StageRecord, error) {
	def, err := DefinitionFor(kind)
	if err != nil {
		return nil, err
	}
	rec, err := e.mutateStage(ctx, kind, stageID, func(rec models.StageRecord) error {
		base := rec.Base()
		if !e.authorizer.IsAuthorized(caller, ActionStageSubmit, base.AssigneeID) {
			return ForbiddenError("not allowed to submit stage %s", stageID)
		}
		if base.Status != def.InitialStatus() {
			return InvalidStateError("stage %s is %s, only %s stages can be submitted", stageID, base.Status, def.InitialStatus())
		}
		now := e.now()
		base.Status = models.StageStatusSubmitted
		base.SubmittedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterTransition(caller, rec, transitionSubmit, models.AuditActionStageSubmit, "Submitted for review")
	return rec, nil
}

// Review decisions
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ReviewInput is the input of Review
type ReviewInput struct {
	Kind     models.StageKind
	StageID  string
	Decision string
	Remarks  string
	Details  StageDetails
	// Files already stored by the caller; only accepted when approving
	Files []models.StageFile
}

// Review approves or rejects a submitted stage. Rejection requires remarks.
// Only holders of the kind's review capability may review.
func (e *WorkflowEngine) Review(ctx context.Context, caller *Caller, in ReviewInput) (models.StageRecord, error) {
	remarks := SanitizeText(in.Remarks)
	switch in.Decision {
	case DecisionApprove:
	case DecisionReject:
		if remarks == "" {
			return nil, ValidationError("remarks are required when rejecting")
		}
		if len(in.Files) > 0 {
			return nil, ValidationError("files can only be attached when approving")
		}
	default:
		return nil, ValidationError("decision must be %q or %q", DecisionApprove, DecisionReject)
	}
	def, err := DefinitionFor(in.Kind)
	if err != nil {
		return nil, err
	}
	if !e.authorizer.IsAuthorized(caller, def.ReviewCapability(), "") {
		return nil, ForbiddenError("not allowed to review %s stages", in.Kind)
	}

	rec, err := e.mutateStage(ctx, in.Kind, in.StageID, func(rec models.StageRecord) error {
		base := rec.Base()
		if base.Status != models.StageStatusSubmitted {
			return InvalidStateError("stage %s is %s, only submitted stages can be reviewed", in.StageID, base.Status)
		}
		status := models.StageStatusRejected
		if in.Decision == DecisionApprove {
			if err := def.ApplyDetails(rec, in.Details); err != nil {
				return err
			}
			base.Files = append(base.Files, in.Files...)
			status = models.StageStatusApproved
		}
		if remarks != "" {
			base.Remarks = &remarks
		}
		stampReview(base, status, caller.UserID, e.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	transition, action := transitionApprove, models.AuditActionStageReview
	if in.Decision == DecisionReject {
		transition = transitionReject
	}
	e.afterTransition(caller, rec, transition, action, fmt.Sprintf("Review decision: %s", in.Decision))
	return rec, nil
}

// FileUpload is one deliverable handed to UploadAndApprove
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadInput is the input of UploadAndApprove
type UploadInput struct {
	Kind    models.StageKind
	StageID string
	Files   []FileUpload
	Remarks string
	Details StageDetails
}

// UploadAndApprove stores deliverables, appends them to the stage file list
// and approves the stage. Attaching deliverables finalizes the review, so it
// is accepted from the initial, submitted and approved states. Rejected is
// terminal.
func (e *WorkflowEngine) UploadAndApprove(ctx context.Context, caller *Caller, in UploadInput) (models.StageRecord, error) {
	if err := ValidateStageUploads(in.Files); err != nil {
		return nil, err
	}
	def, err := DefinitionFor(in.Kind)
	if err != nil {
		return nil, err
	}
	repo, err := RepositoryFor(in.Kind)
	if err != nil {
		return nil, err
	}
	current, err := repo.FindByID(e.db.WithContext(ctx), in.StageID)
	if err != nil {
		return nil, err
	}
	if err := checkUploadAllowed(e.authorizer, caller, current, in.StageID); err != nil {
		return nil, err
	}

	stored, err := e.storeFiles(ctx, current.Base().CaseID, in.Kind, in.Files)
	if err != nil {
		return nil, err
	}

	remarks := SanitizeText(in.Remarks)
	rec, err := e.mutateStage(ctx, in.Kind, in.StageID, func(rec models.StageRecord) error {
		if err := checkUploadAllowed(e.authorizer, caller, rec, in.StageID); err != nil {
			return err
		}
		if err := def.ApplyDetails(rec, in.Details); err != nil {
			return err
		}
		base := rec.Base()
		base.Files = append(base.Files, stored...)
		if remarks != "" {
			base.Remarks = &remarks
		}
		stampReview(base, models.StageStatusApproved, caller.UserID, e.now())
		return nil
	})
	if err != nil {
		e.removeStoredFiles(ctx, stored)
		return nil, err
	}

	e.afterTransition(caller, rec, transitionUploadApprove, models.AuditActionStageUpload,
		fmt.Sprintf("Uploaded %d file(s) and approved", len(stored)))
	return rec, nil
}

func checkUploadAllowed(authorizer *RoleAuthorizer, caller *Caller, rec models.StageRecord, stageID string) error {
	base := rec.Base()
	if !authorizer.IsAuthorized(caller, ActionStageUpload, base.AssigneeID) {
		return ForbiddenError("not allowed to upload files to stage %s", stageID)
	}
	if base.Status == models.StageStatusRejected {
		return InvalidStateError("stage %s was rejected", stageID)
	}
	return nil
}

func (e *WorkflowEngine) storeFiles(ctx context.Context, caseID string, kind models.StageKind, files []FileUpload) ([]models.StageFile, error) {
	if e.storage == nil {
		return nil, InternalError("file storage is not configured", nil)
	}
	stored := make([]models.StageFile, 0, len(files))
	for _, f := range files {
		name, err := CleanFileName(f.Name)
		if err != nil || f.Body == nil {
			e.removeStoredFiles(ctx, stored)
			return nil, ValidationError("every file needs a name and content")
		}
		obj, err := e.storage.Put(ctx, StageFileKey(caseID, kind, name), f.Body, f.ContentType, f.Size)
		if err != nil {
			e.removeStoredFiles(ctx, stored)
			return nil, InternalError("failed to store file", err)
		}
		stored = append(stored, models.StageFile{
			Name:       name,
			StoredName: obj.Key,
			Size:       obj.Size,
			UploadedAt: e.now(),
		})
	}
	return stored, nil
}

// removeStoredFiles deletes stored bytes best-effort
func (e *WorkflowEngine) removeStoredFiles(ctx context.Context, files []models.StageFile) {
	if e.storage == nil {
		return
	}
	for _, f := range files {
		if err := e.storage.Delete(ctx, f.StoredName); err != nil {
			log.Warn().Err(err).Str("key", f.StoredName).Msg("Failed to remove stored stage file")
		}
	}
}

// DeleteFile removes one file, matched by stored name then by original name,
// from the stage file list and deletes its bytes after the change commits.
func (e *WorkflowEngine) DeleteFile(ctx context.Context, caller *Caller, kind models.StageKind, stageID, name string) (models.StageRecord, error) {
	if name == "" {
		return nil, ValidationError("file name is required")
	}
	var removed models.StageFile
	rec, err := e.mutateStage(ctx, kind, stageID, func(rec models.StageRecord) error {
		base := rec.Base()
		if !e.authorizer.IsAuthorized(caller, ActionStageDeleteFile, base.AssigneeID) {
			return ForbiddenError("not allowed to delete files of stage %s", stageID)
		}
		idx := base.FindFile(name)
		if idx < 0 {
			return NotFoundError("file %s not found on stage %s", name, stageID)
		}
		removed = base.Files[idx]
		files := make([]models.StageFile, 0, len(base.Files)-1)
		files = append(files, base.Files[:idx]...)
		base.Files = append(files, base.Files[idx+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.removeStoredFiles(ctx, []models.StageFile{removed})
	e.afterTransition(caller, rec, transitionDeleteFile, models.AuditActionStageFileDelete,
		fmt.Sprintf("Deleted file %s", removed.Name))
	return rec, nil
}

// afterTransition counts, logs and audits a committed stage change
func (e *WorkflowEngine) afterTransition(caller *Caller, rec models.StageRecord, transition, action, details string) {
	base := rec.Base()
	kind := rec.Kind()
	stageTransitionsTotal.WithLabelValues(string(kind), transition).Inc()
	log.Info().
		Str("case_id", base.CaseID).
		Str("stage_id", base.ID).
		Str("kind", string(kind)).
		Str("transition", transition).
		Str("status", base.Status).
		Str("actor_id", caller.UserID).
		Msg("Stage transition")

	e.audit.Record(AuditRecord{
		Actor:        caller,
		TargetUserID: base.AssigneeID,
		Action:       action,
		ResourceType: string(kind) + "_stage",
		ResourceID:   base.ID,
		CaseID:       base.CaseID,
		Details:      details,
	})
}
