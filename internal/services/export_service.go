package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"pathfinder/internal/models"

	"github.com/xuri/excelize/v2"
)

const opportunitySheet = "Opportunities"

var opportunityHeaders = []string{
	"Title", "Organization", "Kind", "Status", "Location", "Remote", "Deadline", "Apply URL", "Tags", "Description", "Created At",
}

// ImportResult summarizes a spreadsheet import
type ImportResult struct {
	Created int           `json:"created"`
	Skipped int           `json:"skipped"`
	Errors  []ImportError `json:"errors"`
}

// ImportError describes a rejected spreadsheet row
type ImportError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ExportService moves opportunities in and out of XLSX workbooks
type ExportService struct {
	opportunities *OpportunityService
}

// NewExportService creates a new export service
func NewExportService(opportunities *OpportunityService) *ExportService {
	return &ExportService{opportunities: opportunities}
}

// ExportOpportunities writes every opportunity to a single-sheet workbook
func (s *ExportService) ExportOpportunities(ctx context.Context) (*bytes.Buffer, error) {
	opps, err := s.opportunities.All(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), opportunitySheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, header := range opportunityHeaders {
		if err := setCell(f, col+1, 1, header); err != nil {
			return nil, err
		}
	}

	for i, opp := range opps {
		row := i + 2
		deadline := ""
		if opp.Deadline != nil {
			deadline = opp.Deadline.Format("2006-01-02")
		}
		tagNames := make([]string, len(opp.Tags))
		for j, tag := range opp.Tags {
			tagNames[j] = tag.Name
		}
		remote := "no"
		if opp.Remote {
			remote = "yes"
		}

		values := []interface{}{
			opp.Title, opp.Organization, opp.Kind, opp.Status, opp.Location, remote, deadline,
			opp.ApplyURL, strings.Join(tagNames, ", "), opp.Description, opp.CreatedAt.Format(time.RFC3339),
		}
		for col, value := range values {
			if err := setCell(f, col+1, row, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	log.Printf("📊 [EXPORT] Exported %d opportunities", len(opps))
	return buf, nil
}

func setCell(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(opportunitySheet, cell, value)
}

// ImportOpportunities creates an opportunity per data row of the first sheet.
// The header row is matched by name, ignoring case; invalid rows are reported
// and skipped.
func (s *ExportService) ImportOpportunities(ctx context.Context, r io.Reader, createdBy string) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable XLSX file", ErrInvalidInput)
	}
	defer f.Close()

	sheetNames := f.GetSheetList()
	if len(sheetNames) == 0 {
		return nil, fmt.Errorf("%w: no sheets found in workbook", ErrInvalidInput)
	}

	rows, err := f.GetRows(sheetNames[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet '%s': %w", sheetNames[0], err)
	}

	result := &ImportResult{Errors: []ImportError{}}
	if len(rows) < 2 {
		return result, nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(row []string, name string) string {
		i, ok := columns[strings.ToLower(name)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			result.Skipped++
			continue
		}

		in := models.OpportunityInput{
			Title:        get(row, "Title"),
			Organization: get(row, "Organization"),
			Kind:         get(row, "Kind"),
			Status:       strings.ToLower(get(row, "Status")),
			Location:     get(row, "Location"),
			Remote:       parseYes(get(row, "Remote")),
			ApplyURL:     get(row, "Apply URL"),
			Description:  get(row, "Description"),
			Tags:         strings.Split(get(row, "Tags"), ","),
		}
		if d := get(row, "Deadline"); d != "" {
			deadline, err := parsePublishedAt(d)
			if err != nil {
				result.Errors = append(result.Errors, ImportError{Row: i + 1, Message: err.Error()})
				continue
			}
			in.Deadline = &deadline
		}

		if _, err := s.opportunities.Create(ctx, in, createdBy); err != nil {
			result.Errors = append(result.Errors, ImportError{Row: i + 1, Message: err.Error()})
			continue
		}
		result.Created++
	}

	log.Printf("📊 [IMPORT] Imported %d opportunities (%d errors)", result.Created, len(result.Errors))
	return result, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseYes(value string) bool {
	switch strings.ToLower(value) {
	case "yes", "y", "true", "1", "remote":
		return true
	}
	return false
}
