package dataset

// report.go persists the validation report of a staging attempt as a
// workbook next to the staged data, one sheet per ingested module, so the
// registry's maintainers can audit what was coerced. The report travels
// with the version through promotion and into the archive.

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// QualityReportFile is the workbook written into every version directory.
const QualityReportFile = "quality_report.xlsx"

// WriteQualityReport writes one sheet per module. Modules with a clean
// report get a single summary row, so the file always documents that
// validation ran.
func WriteQualityReport(staged *StagedVersion) error {
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for _, m := range staged.Modules {
		sheet := string(m)
		if first {
			// excelize creates a default sheet; rename instead of adding.
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
			first = false
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}

		report := staged.Reports[m]
		if len(report) == 0 {
			if err := f.SetSheetRow(sheet, "A1", &[]any{"estado", "sin_errores_detectados"}); err != nil {
				return err
			}
			continue
		}

		if err := f.SetSheetRow(sheet, "A1", &[]any{"column", "check", "value", "row"}); err != nil {
			return err
		}
		for i, e := range report {
			cell := "A" + strconv.Itoa(i+2)
			if err := f.SetSheetRow(sheet, cell, &[]any{e.Column, e.Check, e.Value, e.Row}); err != nil {
				return err
			}
		}
	}
	if first {
		// No modules staged; should not happen, but keep the file valid.
		if err := f.SetSheetRow("Sheet1", "A1", &[]any{"estado", "sin_modulos"}); err != nil {
			return err
		}
	}

	path := filepath.Join(staged.Dir, QualityReportFile)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", QualityReportFile, err)
	}
	return nil
}
