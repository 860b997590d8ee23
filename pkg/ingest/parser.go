// Package ingest reads ticket tables from uploaded files and writes the
// annotated results back out.
package ingest

import (
	"fmt"
	"strings"
)

type FileFormat string

const (
	FileFormatAuto   FileFormat = "auto"
	FileFormatJSON   FileFormat = "json"
	FileFormatNDJSON FileFormat = "ndjson"
	FileFormatCSV    FileFormat = "csv"
	FileFormatTSV    FileFormat = "tsv"
	FileFormatXLSX   FileFormat = "xlsx"
	FileFormatYAML   FileFormat = "yaml"
)

var SupportedFormats = []FileFormat{
	FileFormatJSON,
	FileFormatNDJSON,
	FileFormatCSV,
	FileFormatTSV,
	FileFormatXLSX,
	FileFormatYAML,
}

// Table is a parsed file: ordered column names plus one value map per row.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

type FileParser interface {
	FormatName() FileFormat
	CanParse(content []byte, contentType, fileName string) bool
	Parse(content []byte) (Table, error)
}

type ParserRegistry struct {
	parsers map[FileFormat]FileParser
	order   []FileFormat
}

func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		parsers: make(map[FileFormat]FileParser),
		order:   make([]FileFormat, 0),
	}
}

// NewDefaultRegistry registers every parser, most specific detection first.
func NewDefaultRegistry() *ParserRegistry {
	registry := NewParserRegistry()

	registry.Register(NewNDJSONParser())
	registry.Register(NewXLSXParser())
	registry.Register(NewTSVParser())
	registry.Register(NewCSVParser())
	registry.Register(NewYAMLParser())
	registry.Register(NewJSONParser())

	return registry
}

func (r *ParserRegistry) Register(parser FileParser) {
	format := parser.FormatName()
	r.parsers[format] = parser
	r.order = append(r.order, format)
}

func (r *ParserRegistry) GetParser(format FileFormat) (FileParser, error) {
	if parser, ok := r.parsers[format]; ok {
		return parser, nil
	}
	return nil, fmt.Errorf("unsupported file format: %s", format)
}

func (r *ParserRegistry) DetectAndGetParser(content []byte, contentType, fileName string) (FileParser, error) {
	for _, format := range r.order {
		parser := r.parsers[format]
		if parser.CanParse(content, contentType, fileName) {
			return parser, nil
		}
	}
	return nil, fmt.Errorf("unable to detect file format. Supported formats: %s", strings.Join(formatNames(), ", "))
}

func (r *ParserRegistry) Parse(content []byte, contentType, fileName string, format FileFormat) (Table, error) {
	var parser FileParser
	var err error

	if format == FileFormatAuto || format == "" {
		parser, err = r.DetectAndGetParser(content, contentType, fileName)
	} else {
		parser, err = r.GetParser(format)
	}
	if err != nil {
		return Table{}, err
	}

	return parser.Parse(content)
}

func IsValidFormat(format FileFormat) bool {
	if format == FileFormatAuto {
		return true
	}
	for _, f := range SupportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

func formatNames() []string {
	names := make([]string, len(SupportedFormats))
	for i, f := range SupportedFormats {
		names[i] = string(f)
	}
	return names
}

func hasExtension(fileName string, extensions ...string) bool {
	fileNameLower := strings.ToLower(fileName)
	for _, ext := range extensions {
		if strings.HasSuffix(fileNameLower, ext) {
			return true
		}
	}
	return false
}

func hasContentType(contentType string, types ...string) bool {
	contentTypeLower := strings.ToLower(contentType)
	for _, t := range types {
		if strings.Contains(contentTypeLower, t) {
			return true
		}
	}
	return false
}
