package excel

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// ReadPayloadColumn reads watermark texts from a spreadsheet: first
// worksheet, column A, row 0 treated as a header, stopping at the first
// empty cell. Cells are interpreted as strings regardless of their
// underlying type, whitespace-trimmed.
func ReadPayloadColumn(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrExcel, path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no worksheets", models.ErrExcel)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read worksheet %s: %v", models.ErrExcel, sheets[0], err)
	}

	var payloads []string
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) == 0 {
			break
		}
		text := strings.TrimSpace(rows[i][0])
		if text == "" {
			break
		}
		payloads = append(payloads, text)
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: no payload texts in column A (row 0 is treated as a header)", models.ErrExcel)
	}
	return payloads, nil
}
