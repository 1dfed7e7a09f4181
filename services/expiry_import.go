package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"compliance_flow_app_go/models"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const expirySheet = "Records"

var expiryImportHeaders = []string{
	"Kind*",             // A
	"Service Type",      // B
	"Company ID*",       // C
	"Reference Number*", // D
	"Contact Email",     // E
	"Notice Date",       // F
	"Policy Start Date", // G
	"Expiry Date",       // H
}

// ImportResult summarizes an import. Failed rows are listed in Errors and do
// not stop the remaining rows.
type ImportResult struct {
	TotalProcessed int      `json:"total_processed"`
	SuccessCount   int      `json:"success_count"`
	FailedCount    int      `json:"failed_count"`
	Errors         []string `json:"errors"`
}

// GenerateExpiryImportTemplate builds the xlsx template for ImportExpiryRecords
func GenerateExpiryImportTemplate() (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", expirySheet)
	for i, header := range expiryImportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(expirySheet, cell, header)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(expirySheet, "A1", "H1", headerStyle)
	f.SetColWidth(expirySheet, "A", "H", 20)

	// Example rows, dates as YYYY-MM-DD text
	examples := [][]string{
		{models.ExpiryKindLabourInspection, "", "company-id", "LI-2024-001", "ops@example.com", "2024-01-01", "", ""},
		{models.ExpiryKindInsurancePolicy, "", "company-id", "POL-778", "ops@example.com", "", "2024-04-01", ""},
		{models.ExpiryKindLabourLicense, "", "company-id", "LL-42", "ops@example.com", "", "", "2025-03-31"},
	}
	for r, row := range examples {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(expirySheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel buffer: %w", err)
	}
	return buf, nil
}

// ImportExpiryRecords creates one record per non-empty row of the first
// sheet. Bad rows are reported and skipped; good rows are kept.
func (e *ExpiryEngine) ImportExpiryRecords(ctx context.Context, caller *Caller, file io.Reader) (*ImportResult, error) {
	if !e.authorizer.IsAuthorized(caller, CapExpiryManage, "") {
		return nil, ForbiddenError("not allowed to import expiry records")
	}

	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, ValidationError("failed to open excel file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ValidationError("invalid excel format: no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, ValidationError("failed to read sheet %s: %v", sheets[0], err)
	}

	result := &ImportResult{Errors: []string{}}
	db := e.db.WithContext(ctx)
	for i, row := range rows {
		if i == 0 || isBlankRow(row) {
			continue
		}
		result.TotalProcessed++

		in := CreateExpiryInput{
			Kind:            strings.ToLower(cellAt(row, 0)),
			ServiceType:     strings.ToLower(cellAt(row, 1)),
			CompanyID:       cellAt(row, 2),
			ReferenceNumber: cellAt(row, 3),
			ContactEmail:    cellAt(row, 4),
			NoticeDate:      cellAt(row, 5),
			PolicyStartDate: cellAt(row, 6),
			ExpiryDate:      cellAt(row, 7),
		}
		rec, err := BuildExpiryRecord(in)
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", i+1, PublicMessage(err)))
			continue
		}
		if err := db.Create(rec).Error; err != nil {
			log.Error().Err(err).Int("row", i+1).Msg("Failed to import expiry record")
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: failed to save record", i+1))
			continue
		}
		if _, err := e.ApplySuppression(ctx, rec); err != nil {
			log.Warn().Err(err).Str("record_id", rec.ID).Msg("Suppression check failed after import")
		}
		result.SuccessCount++
	}

	log.Info().
		Int("processed", result.TotalProcessed).
		Int("imported", result.SuccessCount).
		Int("failed", result.FailedCount).
		Msg("Expiry records imported")

	if result.SuccessCount > 0 {
		e.audit.Record(AuditRecord{
			Actor:        caller,
			Action:       models.AuditActionExpiryImport,
			ResourceType: "expiry_record",
			ResourceID:   "import",
			Details:      fmt.Sprintf("Imported %d of %d row(s)", result.SuccessCount, result.TotalProcessed),
		})
	}
	return result, nil
}

func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
