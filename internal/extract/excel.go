package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel renders each sheet as "<sheet>" followed by tab-separated rows.
// Sheets are separated by the section delimiter so each becomes its own section.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var sections []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var buf strings.Builder
		buf.WriteString(sheet)
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			buf.WriteByte('\n')
			buf.WriteString(line)
		}
		if len(rows) > 0 {
			sections = append(sections, buf.String())
		}
	}
	return strings.Join(sections, sheetDelimiter), nil
}

// sheetDelimiter matches the knowledge-base section delimiter.
const sheetDelimiter = "\n====================\n"
