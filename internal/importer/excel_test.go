package importer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", SheetName))

	header := []string{"identifier", "data", "priority", "max_attempts", "scheduled_at"}
	for col, v := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(SheetName, cell, v))
	}
	for i, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(SheetName, cell, v))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestParseValidRows(t *testing.T) {
	buf := buildWorkbook(t, [][]string{
		{"order-1001", `{"customer":"Ana Soto","amount":"120.50"}`, "5", "3", ""},
		{"order-1002", "", "", "", "2026-09-01T08:00:00Z"},
	})

	rows, rowErrors, err := Parse(buf)
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, rows, 2)

	assert.Equal(t, "order-1001", rows[0].Identifier)
	assert.Equal(t, 5, rows[0].Priority)
	assert.Equal(t, 3, rows[0].MaxAttempts)
	assert.Equal(t, "order-1002", rows[1].Identifier)
	assert.Equal(t, "2026-09-01T08:00:00Z", rows[1].ScheduledAt)
}

func TestParseReportsRowErrors(t *testing.T) {
	buf := buildWorkbook(t, [][]string{
		{"", `{"ok":true}`, "", "", ""},
		{"order-2", "not json", "", "", ""},
		{"order-3", "", "high", "", ""},
		{"order-4", "", "1", "", "tomorrow"},
		{"order-5", `{"ok":true}`, "2", "4", ""},
	})

	rows, rowErrors, err := Parse(buf)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "order-5", rows[0].Identifier)

	require.Len(t, rowErrors, 4)
	assert.Equal(t, 2, rowErrors[0].Row)
	assert.Equal(t, "identifier is required", rowErrors[0].Error)
	assert.Equal(t, "data must be valid JSON", rowErrors[1].Error)
	assert.Equal(t, "priority must be an integer", rowErrors[2].Error)
	assert.Equal(t, "scheduled_at must be an RFC 3339 timestamp", rowErrors[3].Error)
}

func TestValidateRow(t *testing.T) {
	tests := []struct {
		name string
		row  EntryRow
		want string
	}{
		{
			name: "valid minimal row",
			row:  EntryRow{Identifier: "order-1"},
			want: "",
		},
		{
			name: "negative priority",
			row:  EntryRow{Identifier: "order-1", Priority: -1},
			want: "priority must be non-negative",
		},
		{
			name: "negative max attempts",
			row:  EntryRow{Identifier: "order-1", MaxAttempts: -2},
			want: "max_attempts must be non-negative",
		},
		{
			name: "whitespace identifier",
			row:  EntryRow{Identifier: "   "},
			want: "identifier is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateRow(tt.row))
		})
	}
}

func TestToEntries(t *testing.T) {
	rows := []EntryRow{
		{Row: 2, Identifier: "order-1", Data: `{"customer":"Ana"}`, Priority: 5, MaxAttempts: 4},
		{Row: 3, Identifier: "order-2", ScheduledAt: "2026-09-01T08:00:00Z"},
	}

	entries, err := ToEntries(42, rows)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(42), entries[0].WebsiteID)
	assert.Equal(t, "Ana", entries[0].Data["customer"])
	assert.Equal(t, 4, entries[0].MaxAttempts)

	assert.Zero(t, entries[1].MaxAttempts)
	require.NotNil(t, entries[1].ScheduledAt)
	assert.Equal(t, 2026, entries[1].ScheduledAt.Year())
}
