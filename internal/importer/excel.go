// Package importer parses Excel workbooks of data entries for bulk upload.
package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/gobotctl/internal/models"
)

// Column indices for the entries spreadsheet (0-based).
const (
	colIdentifier  = 0 // Column A
	colData        = 1 // Column B
	colPriority    = 2 // Column C
	colMaxAttempts = 3 // Column D
	colScheduledAt = 4 // Column E

	headerRowIndex = 1 // Excel rows are 1-based, header is row 1
)

// SheetName is the worksheet the importer reads from.
const SheetName = "Entries"

// EntryRow represents a parsed row from the Excel spreadsheet.
type EntryRow struct {
	Row         int // Excel row number (for error reporting)
	Identifier  string
	Data        string // Raw JSON string
	Priority    int
	MaxAttempts int
	ScheduledAt string // RFC 3339, optional
}

// ImportError represents a validation error for a specific row.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ValidateRow validates a single row and returns an error message or empty string.
func ValidateRow(row EntryRow) string {
	if strings.TrimSpace(row.Identifier) == "" {
		return "identifier is required"
	}

	if row.Data != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			return "data must be valid JSON"
		}
	}

	if row.Priority < 0 {
		return "priority must be non-negative"
	}
	if row.MaxAttempts < 0 {
		return "max_attempts must be non-negative"
	}

	if row.ScheduledAt != "" {
		if _, err := time.Parse(time.RFC3339, row.ScheduledAt); err != nil {
			return "scheduled_at must be an RFC 3339 timestamp"
		}
	}

	return ""
}

// Parse reads the Entries sheet from an xlsx stream. Rows that fail
// validation are reported per row; well-formed rows are still returned so an
// import can partially succeed.
func Parse(r io.Reader) ([]EntryRow, []ImportError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", SheetName, err)
	}

	var (
		parsed    []EntryRow
		rowErrors []ImportError
	)

	for i, cells := range rows {
		rowNum := i + 1
		if rowNum == headerRowIndex {
			continue
		}
		if len(cells) == 0 {
			continue
		}

		row := EntryRow{
			Row:        rowNum,
			Identifier: cell(cells, colIdentifier),
			Data:       cell(cells, colData),
		}

		if raw := cell(cells, colPriority); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil {
				rowErrors = append(rowErrors, ImportError{Row: rowNum, Error: "priority must be an integer"})
				continue
			}
			row.Priority = n
		}
		if raw := cell(cells, colMaxAttempts); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil {
				rowErrors = append(rowErrors, ImportError{Row: rowNum, Error: "max_attempts must be an integer"})
				continue
			}
			row.MaxAttempts = n
		}
		row.ScheduledAt = cell(cells, colScheduledAt)

		if msg := ValidateRow(row); msg != "" {
			rowErrors = append(rowErrors, ImportError{Row: rowNum, Error: msg})
			continue
		}

		parsed = append(parsed, row)
	}

	return parsed, rowErrors, nil
}

// ToEntries converts validated rows into entry models for the given website.
func ToEntries(websiteID int64, rows []EntryRow) ([]*models.DataEntry, error) {
	entries := make([]*models.DataEntry, 0, len(rows))
	for _, row := range rows {
		entry := &models.DataEntry{
			WebsiteID:  websiteID,
			Identifier: row.Identifier,
			Priority:   row.Priority,
		}
		if row.MaxAttempts > 0 {
			entry.MaxAttempts = row.MaxAttempts
		}
		if row.Data != "" {
			if err := json.Unmarshal([]byte(row.Data), &entry.Data); err != nil {
				return nil, fmt.Errorf("row %d: parse data: %w", row.Row, err)
			}
		}
		if row.ScheduledAt != "" {
			at, err := time.Parse(time.RFC3339, row.ScheduledAt)
			if err != nil {
				return nil, fmt.Errorf("row %d: parse scheduled_at: %w", row.Row, err)
			}
			entry.ScheduledAt = &at
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func cell(cells []string, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}
