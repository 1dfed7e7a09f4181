package services

import (
	"context"
	"testing"

	"compliance_flow_app_go/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCase(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	c := f.createCase(t)
	assert.Equal(t, models.CaseStatusCreated, c.Status)
	assert.Equal(t, f.compliance.UserID, c.CreatedBy)
	assert.True(t, c.SubTotal.Equal(decimal.NewFromInt(40001)), "sub total %s", c.SubTotal)
	assert.True(t, c.TaxAmount.Equal(decimal.RequireFromString("7200.18")), "tax %s", c.TaxAmount)
	assert.True(t, c.TotalAmount.Equal(decimal.RequireFromString("47201.18")), "total %s", c.TotalAmount)

	var stored models.Case
	require.NoError(t, f.db.First(&stored, "id = ?", c.ID).Error)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "Stability certificate", stored.Items[1].Description)
	assert.True(t, stored.Items[1].UnitPrice.Equal(decimal.RequireFromString("7500.50")))
	assert.Equal(t, int64(1), countAudit(t, f.db, models.AuditActionCaseCreate))

	t.Run("Sanitizes descriptions", func(t *testing.T) {
		c, err := f.engine.CreateCase(ctx, f.compliance, CreateCaseInput{
			CompanyID: uuid.New().String(),
			Items: []models.QuotationItem{
				{Description: "<script>x</script>Fire NOC", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10)},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "Fire NOC", c.Items[0].Description)
	})

	t.Run("Forbidden", func(t *testing.T) {
		_, err := f.engine.CreateCase(ctx, f.planManager, CreateCaseInput{CompanyID: "x"})
		assert.True(t, IsKind(err, ErrKindForbidden), "got %v", err)
		_, err = f.engine.CreateCase(ctx, nil, CreateCaseInput{CompanyID: "x"})
		assert.True(t, IsKind(err, ErrKindForbidden), "got %v", err)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := f.engine.CreateCase(ctx, f.compliance, CreateCaseInput{
			Items: []models.QuotationItem{{Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)}},
		})
		assert.True(t, IsKind(err, ErrKindValidation), "got %v", err)

		_, err = f.engine.CreateCase(ctx, f.compliance, CreateCaseInput{CompanyID: "x"})
		assert.True(t, IsKind(err, ErrKindValidation), "got %v", err)
	})
}
