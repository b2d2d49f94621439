// Command gentemplate generates the Excel import template for data entries.
// Usage: go run cmd/gentemplate/main.go
package main

import (
	"log"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/gobotctl/internal/importer"
)

func main() {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", importer.SheetName); err != nil {
		log.Fatal(err)
	}

	headers := []string{"identifier", "data", "priority", "max_attempts", "scheduled_at"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			log.Fatal(err)
		}
		if err := f.SetCellValue(importer.SheetName, cell, h); err != nil {
			log.Fatal(err)
		}
	}

	rows := [][]string{
		{
			"order-1001",
			`{"customer":"Jordan Lee","amount":"120.50","reference":"INV-4410"}`,
			"5",
			"3",
			"",
		},
		{
			"order-1002",
			`{"customer":"Sam Ortiz","amount":"89.00"}`,
			"0",
			"",
			"2026-09-01T08:00:00Z",
		},
	}
	for r, row := range rows {
		for i, v := range row {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				log.Fatal(err)
			}
			if err := f.SetCellValue(importer.SheetName, cell, v); err != nil {
				log.Fatal(err)
			}
		}
	}

	const out = "entries-template.xlsx"
	if err := f.SaveAs(out); err != nil {
		log.Fatal(err)
	}

	if _, err := os.Stat(out); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s", out)
}
