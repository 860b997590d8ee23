package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) FormatName() FileFormat {
	return FileFormatCSV
}

func (p *CSVParser) CanParse(content []byte, contentType, fileName string) bool {
	return hasExtension(fileName, ".csv") || hasContentType(contentType, "text/csv", "application/csv")
}

func (p *CSVParser) Parse(content []byte) (Table, error) {
	return parseDelimited(content, ',')
}

type TSVParser struct{}

func NewTSVParser() *TSVParser {
	return &TSVParser{}
}

func (p *TSVParser) FormatName() FileFormat {
	return FileFormatTSV
}

func (p *TSVParser) CanParse(content []byte, contentType, fileName string) bool {
	return hasExtension(fileName, ".tsv") || hasContentType(contentType, "text/tab-separated-values", "text/tsv")
}

func (p *TSVParser) Parse(content []byte) (Table, error) {
	return parseDelimited(content, '\t')
}

func parseDelimited(content []byte, delimiter rune) (Table, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, ErrEmptyFile
		}
		return Table{}, fmt.Errorf("failed to read header: %w", err)
	}

	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	table := Table{Columns: headers}
	lineNum := 1

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("failed to parse line %d: %w", lineNum+1, err)
		}
		lineNum++

		row := make(map[string]string, len(headers))
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return Table{}, ErrNoRows
	}

	return table, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}
