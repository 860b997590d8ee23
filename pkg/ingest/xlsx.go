package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type XLSXParser struct{}

func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

func (p *XLSXParser) FormatName() FileFormat {
	return FileFormatXLSX
}

func (p *XLSXParser) CanParse(content []byte, contentType, fileName string) bool {
	if hasExtension(fileName, ".xlsx") {
		return true
	}

	if hasContentType(contentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet") {
		return true
	}

	// zip container magic
	return len(content) >= 4 && content[0] == 0x50 && content[1] == 0x4B
}

func (p *XLSXParser) Parse(content []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return Table{}, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("failed to read sheet: %w", err)
	}

	if len(rows) == 0 {
		return Table{}, ErrEmptyFile
	}

	headers := rows[0]
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	table := Table{Columns: headers}

	for _, values := range rows[1:] {
		row := make(map[string]string, len(headers))

		for j, value := range values {
			if j < len(headers) && headers[j] != "" {
				row[headers[j]] = strings.TrimSpace(value)
			}
		}

		if len(row) > 0 {
			table.Rows = append(table.Rows, row)
		}
	}

	if len(table.Rows) == 0 {
		return Table{}, ErrNoRows
	}

	return table, nil
}
