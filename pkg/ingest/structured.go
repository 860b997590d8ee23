package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type JSONParser struct{}

func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) FormatName() FileFormat {
	return FileFormatJSON
}

func (p *JSONParser) CanParse(content []byte, contentType, fileName string) bool {
	if hasExtension(fileName, ".json") || hasContentType(contentType, "application/json") {
		return true
	}

	trimmed := bytes.TrimSpace(content)
	if len(trimmed) > 0 {
		firstChar := trimmed[0]
		if (firstChar == '{' || firstChar == '[') && !bytes.Contains(trimmed, []byte("\n{")) {
			return true
		}
	}

	return false
}

func (p *JSONParser) Parse(content []byte) (Table, error) {
	var result any
	if err := json.Unmarshal(content, &result); err != nil {
		return Table{}, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return tableFromValues(result)
}

type NDJSONParser struct{}

func NewNDJSONParser() *NDJSONParser {
	return &NDJSONParser{}
}

func (p *NDJSONParser) FormatName() FileFormat {
	return FileFormatNDJSON
}

func (p *NDJSONParser) CanParse(content []byte, contentType, fileName string) bool {
	if hasExtension(fileName, ".ndjson", ".jsonl") || hasContentType(contentType, "ndjson", "x-ndjson", "jsonlines") {
		return true
	}

	return bytes.Contains(content, []byte("\n{"))
}

func (p *NDJSONParser) Parse(content []byte) (Table, error) {
	var records []any

	for lineNum, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var record any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return Table{}, fmt.Errorf("failed to parse NDJSON at line %d: %w", lineNum+1, err)
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return Table{}, ErrEmptyFile
	}

	return tableFromValues(records)
}

type YAMLParser struct{}

func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

func (p *YAMLParser) FormatName() FileFormat {
	return FileFormatYAML
}

func (p *YAMLParser) CanParse(content []byte, contentType, fileName string) bool {
	return hasExtension(fileName, ".yaml", ".yml") || hasContentType(contentType, "application/yaml", "text/yaml", "application/x-yaml")
}

func (p *YAMLParser) Parse(content []byte) (Table, error) {
	var result any
	if err := yaml.Unmarshal(content, &result); err != nil {
		return Table{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return tableFromValues(result)
}

// tableFromValues accepts a single object or a list of objects. Ticket
// columns come first, the rest are sorted by name.
func tableFromValues(value any) (Table, error) {
	var records []any

	switch v := value.(type) {
	case []any:
		records = v
	case map[string]any:
		records = []any{v}
	case nil:
		return Table{}, ErrEmptyFile
	default:
		return Table{}, fmt.Errorf("expected an object or a list of objects, got %T", value)
	}

	table := Table{}
	seen := map[string]bool{}
	var extra []string

	for i, record := range records {
		object, ok := record.(map[string]any)
		if !ok {
			return Table{}, fmt.Errorf("record %d is not an object", i+1)
		}

		row := make(map[string]string, len(object))
		for key, field := range object {
			row[key] = stringify(field)

			if !seen[key] {
				seen[key] = true
				if key != ColumnChannel && key != ColumnMessageContent {
					extra = append(extra, key)
				}
			}
		}

		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return Table{}, ErrNoRows
	}

	for _, column := range []string{ColumnChannel, ColumnMessageContent} {
		if seen[column] {
			table.Columns = append(table.Columns, column)
		}
	}

	sort.Strings(extra)
	table.Columns = append(table.Columns, extra...)

	return table, nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
