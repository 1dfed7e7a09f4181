package services

import (
	"context"
	"errors"
	"fmt"

	"compliance_flow_app_go/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateCaseInput is the input of CreateCase
type CreateCaseInput struct {
	CompanyID      string
	Items          []models.QuotationItem
	TaxRatePercent decimal.Decimal
	AssignedRoleID string
	AssignedUserID string
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals returns the quotation sub total, tax and total. Tax is
// rounded to two places.
func ComputeTotals(items []models.QuotationItem, taxRatePercent decimal.Decimal) (subTotal, tax, total decimal.Decimal, err error) {
	if len(items) == 0 {
		return decimal.Zero, decimal.Zero, decimal.Zero, ValidationError("at least one quotation item is required")
	}
	if taxRatePercent.IsNegative() || taxRatePercent.GreaterThan(hundred) {
		return decimal.Zero, decimal.Zero, decimal.Zero, ValidationError("tax rate must be between 0 and 100")
	}
	subTotal = decimal.Zero
	for i, item := range items {
		if !item.Quantity.IsPositive() {
			return decimal.Zero, decimal.Zero, decimal.Zero, ValidationError("item %d: quantity must be positive", i+1)
		}
		if item.UnitPrice.IsNegative() {
			return decimal.Zero, decimal.Zero, decimal.Zero, ValidationError("item %d: unit price must not be negative", i+1)
		}
		subTotal = subTotal.Add(item.Amount())
	}
	subTotal = subTotal.Round(2)
	tax = subTotal.Mul(taxRatePercent).Div(hundred).Round(2)
	return subTotal, tax, subTotal.Add(tax), nil
}

// CreateCase records a new quotation in the created status
func (e *WorkflowEngine) CreateCase(ctx context.Context, caller *Caller, in CreateCaseInput) (*models.Case, error) {
	if !e.authorizer.IsAuthorized(caller, CapCaseCreate, "") {
		return nil, ForbiddenError("not allowed to create cases")
	}
	if in.CompanyID == "" {
		return nil, ValidationError("company_id is required")
	}
	subTotal, tax, total, err := ComputeTotals(in.Items, in.TaxRatePercent)
	if err != nil {
		return nil, err
	}

	items := make([]models.QuotationItem, len(in.Items))
	for i, item := range in.Items {
		item.Description = SanitizeText(item.Description)
		items[i] = item
	}

	c := &models.Case{
		CompanyID:      in.CompanyID,
		CreatedBy:      caller.UserID,
		Items:          items,
		TaxRatePercent: in.TaxRatePercent,
		SubTotal:       subTotal,
		TaxAmount:      tax,
		TotalAmount:    total,
		Status:         models.CaseStatusCreated,
		AssignedRoleID: ptrIfNotEmpty(in.AssignedRoleID),
		AssignedUserID: ptrIfNotEmpty(in.AssignedUserID),
	}
	if err := e.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, InternalError("failed to create case", err)
	}

	log.Info().Str("case_id", c.ID).Str("actor_id", caller.UserID).Str("total", total.StringFixed(2)).Msg("Case created")
	e.audit.Record(AuditRecord{
		Actor:        caller,
		TargetUserID: in.AssignedUserID,
		RoleID:       in.AssignedRoleID,
		Action:       models.AuditActionCaseCreate,
		ResourceType: "case",
		ResourceID:   c.ID,
		CaseID:       c.ID,
		Details:      fmt.Sprintf("Created case for company %s, total %s", in.CompanyID, total.StringFixed(2)),
	})
	return c, nil
}

// GetCase returns a case with its stage records. Callers need case:view or
// must have created the case.
func (e *WorkflowEngine) GetCase(ctx context.Context, caller *Caller, caseID string) (*models.Case, error) {
	var c models.Case
	err := e.db.WithContext(ctx).
		Preload("PlanStage").
		Preload("StabilityStage").
		Preload("ApplicationStage").
		Preload("RenewalStage").
		First(&c, "id = ?", caseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("case %s not found", caseID)
		}
		return nil, InternalError("failed to load case", err)
	}
	if !caller.HasCapability(CapCaseView) && (caller == nil || caller.UserID != c.CreatedBy) {
		return nil, ForbiddenError("not allowed to view case %s", caseID)
	}
	return &c, nil
}

// DeleteCase deletes a case and every stage record it owns in one
// transaction, then removes the stored stage files.
func (e *WorkflowEngine) DeleteCase(ctx context.Context, caller *Caller, caseID string) error {
	if !e.authorizer.IsAuthorized(caller, CapCaseDelete, "") {
		return ForbiddenError("not allowed to delete cases")
	}

	var files []models.StageFile
	var stagesDeleted int64
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCaseExists(tx, caseID); err != nil {
			return err
		}
		for _, kind := range models.StageKinds() {
			repo, err := RepositoryFor(kind)
			if err != nil {
				return err
			}
			rec, err := repo.FindByCase(tx, caseID)
			switch {
			case err == nil:
				files = append(files, rec.Base().Files...)
			case !IsKind(err, ErrKindNotFound):
				return err
			}
			n, err := repo.DeleteByCase(tx, caseID)
			if err != nil {
				return InternalError("failed to delete stages", err)
			}
			stagesDeleted += n
		}
		if err := tx.Delete(&models.Case{}, "id = ?", caseID).Error; err != nil {
			return InternalError("failed to delete case", err)
		}
		return nil
	})
	if err != nil {
		return asAppError(err, "failed to delete case")
	}

	e.removeStoredFiles(ctx, files)
	log.Info().Str("case_id", caseID).Int64("stages", stagesDeleted).Str("actor_id", caller.UserID).Msg("Case deleted")
	e.audit.Record(AuditRecord{
		Actor:        caller,
		Action:       models.AuditActionCaseDelete,
		ResourceType: "case",
		ResourceID:   caseID,
		CaseID:       caseID,
		Details:      fmt.Sprintf("Deleted case with %d stage record(s) and %d file(s)", stagesDeleted, len(files)),
	})
	return nil
}
