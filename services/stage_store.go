package services

import (
	"errors"

	"compliance_flow_app_go/models"

	"gorm.io/gorm"
)

// StageRepository is the persistence contract for one stage kind. Every
// method takes the handle to run on so it can join a caller's transaction.
type StageRepository interface {
	Kind() models.StageKind
	New() models.StageRecord
	FindByID(tx *gorm.DB, id string) (models.StageRecord, error)
	FindByCase(tx *gorm.DB, caseID string) (models.StageRecord, error)
	Create(tx *gorm.DB, rec models.StageRecord) error
	Save(tx *gorm.DB, rec models.StageRecord) error
	DeleteByCase(tx *gorm.DB, caseID string) (int64, error)
}

// stageModel constrains P to be a pointer to a concrete stage struct T
type stageModel[T any] interface {
	*T
	models.StageRecord
}

// StageStore implements StageRepository for the stage struct T.
// Lookups return a NotFound AppError when no row matches.
type StageStore[T any, P stageModel[T]] struct{}

func (StageStore[T, P]) Kind() models.StageKind {
	return P(new(T)).Kind()
}

func (StageStore[T, P]) New() models.StageRecord {
	return P(new(T))
}

func (s StageStore[T, P]) FindByID(tx *gorm.DB, id string) (models.StageRecord, error) {
	rec := P(new(T))
	if err := tx.First(rec, "id = ?", id).Error; err != nil {
		return nil, s.lookupError(err, "stage %s not found", id)
	}
	return rec, nil
}

func (s StageStore[T, P]) FindByCase(tx *gorm.DB, caseID string) (models.StageRecord, error) {
	rec := P(new(T))
	if err := tx.Where("case_id = ?", caseID).First(rec).Error; err != nil {
		return nil, s.lookupError(err, "no %s stage for case %s", s.Kind(), caseID)
	}
	return rec, nil
}

func (StageStore[T, P]) Create(tx *gorm.DB, rec models.StageRecord) error {
	return tx.Create(rec).Error
}

func (StageStore[T, P]) Save(tx *gorm.DB, rec models.StageRecord) error {
	return tx.Save(rec).Error
}

func (StageStore[T, P]) DeleteByCase(tx *gorm.DB, caseID string) (int64, error) {
	res := tx.Where("case_id = ?", caseID).Delete(P(new(T)))
	return res.RowsAffected, res.Error
}

func (StageStore[T, P]) lookupError(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError(format, args...)
	}
	return InternalError("stage lookup failed", err)
}

// stageRepositories holds one store per kind
var stageRepositories = map[models.StageKind]StageRepository{
	models.StageKindPlan:        StageStore[models.PlanStage, *models.PlanStage]{},
	models.StageKindStability:   StageStore[models.StabilityStage, *models.StabilityStage]{},
	models.StageKindApplication: StageStore[models.ApplicationStage, *models.ApplicationStage]{},
	models.StageKindRenewal:     StageStore[models.RenewalStage, *models.RenewalStage]{},
}

// RepositoryFor returns the store of kind
func RepositoryFor(kind models.StageKind) (StageRepository, error) {
	repo, ok := stageRepositories[kind]
	if !ok {
		return nil, ValidationError("unknown stage kind %q", kind)
	}
	return repo, nil
}

// StageModels returns one zero value per kind for migrations
func StageModels() []interface{} {
	return []interface{}{
		&models.PlanStage{},
		&models.StabilityStage{},
		&models.ApplicationStage{},
		&models.RenewalStage{},
	}
}
