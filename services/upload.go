package services

import (
	"path/filepath"
	"strings"
)

const (
	MaxUploadFiles    = 10
	MaxUploadFileSize = 25 << 20 // 25MB
)

var allowedStageExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true,
	".xls": true, ".xlsx": true, ".dwg": true,
	".jpg": true, ".jpeg": true, ".png": true,
}

// ValidateStageUpload checks the name and size of one stage deliverable
func ValidateStageUpload(name string, size int64) error {
	name, err := CleanFileName(name)
	if err != nil {
		return err
	}
	if size > MaxUploadFileSize {
		return ValidationError("file %s exceeds %d MB", name, MaxUploadFileSize>>20)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedStageExtensions[ext] {
		return ValidationError("file %s: type %q not allowed. Accepted formats: PDF, DOC, DOCX, XLS, XLSX, DWG, JPG, PNG", name, ext)
	}
	return nil
}

// ValidateStageUploads checks a whole batch of deliverables
func ValidateStageUploads(files []FileUpload) error {
	if len(files) == 0 {
		return ValidationError("at least one file is required")
	}
	if len(files) > MaxUploadFiles {
		return ValidationError("at most %d files per upload", MaxUploadFiles)
	}
	for _, f := range files {
		if err := ValidateStageUpload(f.Name, f.Size); err != nil {
			return err
		}
	}
	return nil
}
