package services

import (
	"testing"

	"compliance_flow_app_go/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertCase(t *testing.T, db *gorm.DB) *models.Case {
	t.Helper()
	c := &models.Case{CompanyID: uuid.New().String(), CreatedBy: uuid.New().String()}
	require.NoError(t, db.Create(c).Error)
	return c
}

func TestStageStoreRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	c := insertCase(t, db)

	repo, err := RepositoryFor(models.StageKindStability)
	require.NoError(t, err)
	assert.Equal(t, models.StageKindStability, repo.Kind())

	rec := repo.New()
	stab, ok := rec.(*models.StabilityStage)
	require.True(t, ok)
	stab.CaseID = c.ID
	stab.AssigneeID = uuid.New().String()
	stab.CreatedBy = c.CreatedBy
	stab.Status = models.InitialStageStatus(models.StageKindStability)
	stab.LoadType = models.LoadTypeWithLoad
	require.NoError(t, repo.Create(db, rec))

	byID, err := repo.FindByID(db, stab.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, byID.Base().CaseID)
	assert.Equal(t, models.LoadTypeWithLoad, byID.(*models.StabilityStage).LoadType)

	byCase, err := repo.FindByCase(db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, stab.ID, byCase.Base().ID)

	byCase.Base().Status = models.StageStatusSubmitted
	require.NoError(t, repo.Save(db, byCase))
	reloaded, err := repo.FindByID(db, stab.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageStatusSubmitted, reloaded.Base().Status)

	n, err := repo.DeleteByCase(db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindByID(db, stab.ID)
	assert.True(t, IsKind(err, ErrKindNotFound), "got %v", err)
}

func TestStageStoreUniquePerCase(t *testing.T) {
	db := setupTestDB(t)
	c := insertCase(t, db)
	repo, err := RepositoryFor(models.StageKindPlan)
	require.NoError(t, err)

	newPlan := func() models.StageRecord {
		rec := repo.New()
		b := rec.Base()
		b.CaseID = c.ID
		b.AssigneeID = uuid.New().String()
		b.CreatedBy = c.CreatedBy
		b.Status = models.InitialStageStatus(models.StageKindPlan)
		return rec
	}
	require.NoError(t, repo.Create(db, newPlan()))
	err = repo.Create(db, newPlan())
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// other kinds are independent
	other, err := RepositoryFor(models.StageKindRenewal)
	require.NoError(t, err)
	rec := other.New()
	rec.Base().CaseID = c.ID
	rec.Base().AssigneeID = uuid.New().String()
	rec.Base().CreatedBy = c.CreatedBy
	rec.Base().Status = models.InitialStageStatus(models.StageKindRenewal)
	assert.NoError(t, other.Create(db, rec))
}

func TestRepositoryForUnknownKind(t *testing.T) {
	_, err := RepositoryFor("inspection")
	assert.True(t, IsKind(err, ErrKindValidation))

	for _, kind := range models.StageKinds() {
		repo, err := RepositoryFor(kind)
		require.NoError(t, err)
		assert.Equal(t, kind, repo.New().Kind())
	}
}

func TestStageFileLookup(t *testing.T) {
	base := &models.StageBase{Files: []models.StageFile{
		{Name: "plan.pdf", StoredName: "cases/c/plan/a.pdf"},
		{Name: "cases/c/plan/a.pdf", StoredName: "cases/c/plan/b.pdf"},
	}}

	assert.Equal(t, 0, base.FindFile("cases/c/plan/a.pdf"))
	assert.Equal(t, 1, base.FindFile("cases/c/plan/b.pdf"))
	assert.Equal(t, 0, base.FindFile("plan.pdf"))
	assert.Equal(t, -1, base.FindFile("missing.pdf"))
}
