package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Case status constants. Apart from created, the status mirrors the kind of
// the most recently created stage record.
const (
	CaseStatusCreated     = "created"
	CaseStatusPlan        = string(StageKindPlan)
	CaseStatusStability   = string(StageKindStability)
	CaseStatusApplication = string(StageKindApplication)
	CaseStatusRenewal     = string(StageKindRenewal)
)

// QuotationItem is one priced line of a factory-license quotation
type QuotationItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Amount returns quantity times unit price
func (i QuotationItem) Amount() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Case represents a factory-license quotation moving through the review stages
type Case struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyID string `gorm:"type:uuid;not null;index" json:"company_id"`
	CreatedBy string `gorm:"type:uuid;not null;index" json:"created_by"`

	// Quotation
	Items          datatypes.JSONSlice[QuotationItem] `json:"items"`
	TaxRatePercent decimal.Decimal                    `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate_percent"`
	SubTotal       decimal.Decimal                    `gorm:"type:decimal(14,2);not null;default:0" json:"sub_total"`
	TaxAmount      decimal.Decimal                    `gorm:"type:decimal(14,2);not null;default:0" json:"tax_amount"`
	TotalAmount    decimal.Decimal                    `gorm:"type:decimal(14,2);not null;default:0" json:"total_amount"`

	// Status and assignment
	Status         string  `gorm:"not null;default:created;index" json:"status"`
	AssignedRoleID *string `gorm:"type:uuid" json:"assigned_role_id,omitempty"`
	AssignedUserID *string `gorm:"type:uuid;index" json:"assigned_user_id,omitempty"`

	// Relationships (read side only)
	PlanStage        *PlanStage        `gorm:"foreignKey:CaseID" json:"plan_stage,omitempty"`
	StabilityStage   *StabilityStage   `gorm:"foreignKey:CaseID" json:"stability_stage,omitempty"`
	ApplicationStage *ApplicationStage `gorm:"foreignKey:CaseID" json:"application_stage,omitempty"`
	RenewalStage     *RenewalStage     `gorm:"foreignKey:CaseID" json:"renewal_stage,omitempty"`
}

// BeforeCreate hook to generate UUID and default status
func (c *Case) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = CaseStatusCreated
	}
	return nil
}

// TableName specifies the table name for Case model
func (Case) TableName() string {
	return "cases"
}
