package handlers

import (
	"mime/multipart"
	"net/http"
	"net/url"

	"compliance_flow_app_go/middleware"
	"compliance_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

// CreateStageRequest is the body of POST /api/cases/:id/stages/:kind
type CreateStageRequest struct {
	AssigneeID    string `json:"assignee_id"`
	Remarks       string `json:"remarks"`
	LoadType      string `json:"load_type"`
	StabilityDate string `json:"stability_date"`
}

// ReviewRequest is the body of POST /api/stages/:kind/:stageId/review
type ReviewRequest struct {
	Decision      string `json:"decision"`
	Remarks       string `json:"remarks"`
	StabilityDate string `json:"stability_date"`
}

// CreateStageHandler creates the record of a kind for a case
// POST /api/cases/:id/stages/:kind
func CreateStageHandler(c echo.Context) error {
	kind, err := services.ParseStageKind(c.Param("kind"))
	if err != nil {
		return respondError(c, err)
	}
	var req CreateStageRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, services.ValidationError("invalid request body"))
	}

	rec, err := workflowFor(c).CreateStage(c.Request().Context(), middleware.GetCaller(c), services.CreateStageInput{
		CaseID:     c.Param("id"),
		Kind:       kind,
		AssigneeID: req.AssigneeID,
		Remarks:    req.Remarks,
		Details:    services.StageDetails{LoadType: req.LoadType, StabilityDate: req.StabilityDate},
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusCreated, rec)
}

// GetStageHandler returns one stage record
// GET /api/stages/:kind/:stageId
func GetStageHandler(c echo.Context) error {
	kind, err := services.ParseStageKind(c.Param("kind"))
	if err != nil {
		return respondError(c, err)
	}
	rec, err := workflowFor(c).GetStage(c.Request().Context(), middleware.GetCaller(c), kind, c.Param("stageId"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, rec)
}

// SubmitStageHandler moves a stage to submitted
// POST /api/stages/:kind/:stageId/submit
func SubmitStageHandler(c echo.Context) error {
	kind, err := services.ParseStageKind(c.Param("kind"))
	if err != nil {
		return respondError(c, err)
	}
	rec, err := workflowFor(c).Submit(c.Request().Context(), middleware.GetCaller(c), kind, c.Param("stageId"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, rec)
}

// ReviewStageHandler approves or rejects a submitted stage
// POST /api/stages/:kind/:stageId/review
func ReviewStageHandler(c echo.Context) error {
	kind, err := services.ParseStageKind(c.Param("kind"))
	if err != nil {
		return respondError(c, err)
	}
	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, services.ValidationError("invalid request body"))
	}

	rec, err := workflowFor(c).Review(c.Request().Context(), middleware.GetCaller(c), services.ReviewInput{
		Kind:     kind,
		StageID:  c.Param("stageId"),
		Decision: req.Decision,
		Remarks:  req.Remarks,
		Details:  services.StageDetails{StabilityDate: req.StabilityDate},
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, rec)
}

// UploadStageFilesHandler stores the multipart "files" and approves the stage
// POST /api/stages/:kind/:stageId/files
func UploadStageFilesHandler(c echo.Context) error {
	kind, err := services.ParseStageKind(c.Param("kind"))
	if err != nil {
		return respondError(c, err)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return respondError(c, services.ValidationError("expected a multipart form"))
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return respondError(c, services.ValidationError("at least one file is required"))
	}
	if len(headers) > services.MaxUploadFiles {
		return respondError(c, services.ValidationError("at most %d files per upload", services.MaxUploadFiles))
	}

	uploads := make([]services.FileUpload, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range headers {
		if err := services.ValidateStageUpload(fh.Filename, fh.Size); err != nil {
			return respondError(c, err)
		}
		src, err := fh.Open()
		if err != nil {
			return respondError(c, services.InternalError("failed to open uploaded file", err))
		}
		opened = append(opened, src)
		uploads = append(uploads, services.FileUpload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
			Body:        src,
		})
	}

	rec, err := workflowFor(c).UploadAndApprove(c.Request().Context(), middleware.GetCaller(c), services.UploadInput{
		Kind:    kind,
		StageID: c.Param("stageId"),
		Files:   uploads,
		Remarks: c.FormValue("remarks"),
		Details: services.StageDetails{StabilityDate: c.FormValue("stability_date")},
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, rec)
}

// DeleteStageFileHandler removes one file from a stage. Stored names contain
// slashes, so the name may also be passed as the "name" query parameter.
// DELETE /api/stages/:kind/:stageId/files/:name
// DELETE /api/stages/:kind/:stageId/files?name=
func DeleteStageFileHandler(c echo.Context) error {
	kind, err := services.ParseStageKind(c.Param("kind"))
	if err != nil {
		return respondError(c, err)
	}
	name := c.QueryParam("name")
	if name == "" {
		name, err = url.PathUnescape(c.Param("name"))
		if err != nil {
			return respondError(c, services.ValidationError("invalid file name"))
		}
	}

	rec, err := workflowFor(c).DeleteFile(c.Request().Context(), middleware.GetCaller(c), kind, c.Param("stageId"), name)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, http.StatusOK, rec)
}
