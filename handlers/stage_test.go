package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/url"
	"testing"
	"time"

	"compliance_flow_app_go/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stageJSON struct {
	ID          string             `json:"id"`
	CaseID      string             `json:"case_id"`
	Status      string             `json:"status"`
	Remarks     *string            `json:"remarks"`
	Files       []models.StageFile `json:"files"`
	LoadType    string             `json:"load_type"`
	RenewalDate *time.Time         `json:"renewal_date"`
}

func createCaseViaAPI(t *testing.T, e *echo.Echo, token string) string {
	t.Helper()
	rec, env := doJSON(t, e, http.MethodPost, "/api/cases", token, newCaseBody())
	assertStatus(t, rec, http.StatusCreated)
	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, env, &created)
	return created.ID
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestStageHandlersPlanFlow(t *testing.T) {
	e, database := setupServer(t)
	admin := createUser(t, database, models.RoleAdmin)
	compliance := createUser(t, database, models.RoleCompliance)
	planner := createUser(t, database, models.RolePlanManager)
	caseID := createCaseViaAPI(t, e, compliance.Token)

	path := "/api/cases/" + caseID + "/stages/plan"
	rec, env := doJSON(t, e, http.MethodPost, path, compliance.Token, map[string]string{
		"assignee_id": planner.ID,
		"remarks":     "<i>Prepare</i> the layout",
	})
	assertStatus(t, rec, http.StatusCreated)
	var stage stageJSON
	decodeData(t, env, &stage)
	assert.Equal(t, "plan_assigned", stage.Status)
	require.NotNil(t, stage.Remarks)
	assert.Equal(t, "Prepare the layout", *stage.Remarks)

	t.Run("DuplicateIsConflict", func(t *testing.T) {
		rec, env := doJSON(t, e, http.MethodPost, path, compliance.Token, map[string]string{"assignee_id": planner.ID})
		assertStatus(t, rec, http.StatusBadRequest)
		assert.False(t, env.Success)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		rec, env := doJSON(t, e, http.MethodPost, "/api/cases/"+caseID+"/stages/inspection", compliance.Token, map[string]string{"assignee_id": planner.ID})
		assertStatus(t, rec, http.StatusBadRequest)
		assert.Contains(t, env.Error, "unknown stage kind")
	})

	stagePath := "/api/stages/plan/" + stage.ID

	rec, _ = doJSON(t, e, http.MethodGet, stagePath, planner.Token, nil)
	assertStatus(t, rec, http.StatusOK)

	rec, env = doJSON(t, e, http.MethodPost, stagePath+"/submit", planner.Token, nil)
	assertStatus(t, rec, http.StatusOK)
	decodeData(t, env, &stage)
	assert.Equal(t, models.StageStatusSubmitted, stage.Status)

	t.Run("AssigneeCannotReview", func(t *testing.T) {
		rec, _ := doJSON(t, e, http.MethodPost, stagePath+"/review", planner.Token, map[string]string{"decision": "approve"})
		assertStatus(t, rec, http.StatusForbidden)
	})

	t.Run("RejectNeedsRemarks", func(t *testing.T) {
		rec, env := doJSON(t, e, http.MethodPost, stagePath+"/review", admin.Token, map[string]string{"decision": "reject"})
		assertStatus(t, rec, http.StatusBadRequest)
		assert.Equal(t, "remarks are required when rejecting", env.Error)
	})

	rec, env = doJSON(t, e, http.MethodPost, stagePath+"/review", admin.Token, map[string]string{"decision": "approve"})
	assertStatus(t, rec, http.StatusOK)
	decodeData(t, env, &stage)
	assert.Equal(t, models.StageStatusApproved, stage.Status)

	rec, env = doJSON(t, e, http.MethodPost, stagePath+"/review", admin.Token, map[string]string{"decision": "approve"})
	assertStatus(t, rec, http.StatusBadRequest)
	assert.Contains(t, env.Error, "only submitted stages can be reviewed")

	var c models.Case
	require.NoError(t, database.First(&c, "id = ?", caseID).Error)
	assert.Equal(t, models.CaseStatusPlan, c.Status)
}

func TestStageHandlersUploadAndDeleteFile(t *testing.T) {
	e, database := setupServer(t)
	compliance := createUser(t, database, models.RoleCompliance)
	stability := createUser(t, database, models.RoleStabilityManager)
	other := createUser(t, database, models.RoleStabilityManager)
	caseID := createCaseViaAPI(t, e, compliance.Token)

	rec, env := doJSON(t, e, http.MethodPost, "/api/cases/"+caseID+"/stages/stability", compliance.Token, map[string]string{
		"assignee_id": stability.ID,
		"load_type":   models.LoadTypeWithLoad,
	})
	assertStatus(t, rec, http.StatusCreated)
	var stage stageJSON
	decodeData(t, env, &stage)
	filesPath := "/api/stages/stability/" + stage.ID + "/files"

	t.Run("NoFiles", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"remarks": "empty"}, nil)
		rec, env := doRequest(t, e, http.MethodPost, filesPath, stability.Token, contentType, body)
		assertStatus(t, rec, http.StatusBadRequest)
		assert.Equal(t, "at least one file is required", env.Error)
	})

	t.Run("NotAssignee", func(t *testing.T) {
		body, contentType := multipartBody(t, nil, map[string][]byte{"cert.pdf": []byte("%PDF-1.4")})
		rec, _ := doRequest(t, e, http.MethodPost, filesPath, other.Token, contentType, body)
		assertStatus(t, rec, http.StatusForbidden)
	})

	body, contentType := multipartBody(t,
		map[string]string{"remarks": "certificate attached", "stability_date": "2024-02-29"},
		map[string][]byte{"cert.pdf": []byte("%PDF-1.4 certificate")},
	)
	rec, env = doRequest(t, e, http.MethodPost, filesPath, stability.Token, contentType, body)
	assertStatus(t, rec, http.StatusOK)
	decodeData(t, env, &stage)
	assert.Equal(t, models.StageStatusApproved, stage.Status)
	require.Len(t, stage.Files, 1)
	assert.Equal(t, "cert.pdf", stage.Files[0].Name)
	require.NotNil(t, stage.RenewalDate)
	assert.Equal(t, "2029-02-28", stage.RenewalDate.Format("2006-01-02"))

	t.Run("DeleteUnknownFile", func(t *testing.T) {
		rec, _ := doJSON(t, e, http.MethodDelete, filesPath+"/missing.pdf", stability.Token, nil)
		assertStatus(t, rec, http.StatusNotFound)
	})

	rec, env = doJSON(t, e, http.MethodDelete, filesPath+"?name="+url.QueryEscape(stage.Files[0].StoredName), stability.Token, nil)
	assertStatus(t, rec, http.StatusOK)
	decodeData(t, env, &stage)
	assert.Empty(t, stage.Files)

	assertAuditCount(t, database, models.AuditActionStageUpload, 1)
	assertAuditCount(t, database, models.AuditActionStageFileDelete, 1)
}

func assertAuditCount(t *testing.T, database *gorm.DB, action string, want int64) {
	t.Helper()
	var n int64
	require.NoError(t, database.Model(&models.AuditEntry{}).Where("action = ?", action).Count(&n).Error)
	assert.Equal(t, want, n, action)
}
