package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/xuri/excelize/v2"
)

const (
	ColumnTargetLabel    = "target_label"
	ColumnRoutingInfo    = "routing_info"
	ColumnProcessingCost = "processing_cost"
	ColumnVectorID       = "vector_id"

	sheetName = "Sheet1"
)

var ResultColumns = []string{ColumnTargetLabel, ColumnRoutingInfo, ColumnProcessingCost, ColumnVectorID}

// AppendResults returns a copy of table with the classification columns
// filled from results, which must be aligned with the rows. Result columns
// already present in table are overwritten in place.
func AppendResults(table Table, results []domain.BatchResult) (Table, error) {
	if len(results) != len(table.Rows) {
		return Table{}, fmt.Errorf("got %d results for %d rows", len(results), len(table.Rows))
	}

	annotated := Table{
		Columns: withResultColumns(table.Columns),
		Rows:    make([]map[string]string, len(table.Rows)),
	}

	for i, row := range table.Rows {
		out := make(map[string]string, len(row)+len(ResultColumns))
		for key, value := range row {
			out[key] = value
		}

		out[ColumnTargetLabel] = results[i].ClassificationJSON
		out[ColumnRoutingInfo] = results[i].RoutingDisplay
		out[ColumnProcessingCost] = strconv.FormatFloat(results[i].Cost, 'g', -1, 64)
		out[ColumnVectorID] = results[i].CorrelationID

		annotated.Rows[i] = out
	}

	return annotated, nil
}

func withResultColumns(columns []string) []string {
	out := append([]string{}, columns...)

	for _, column := range ResultColumns {
		if !slices.Contains(columns, column) {
			out = append(out, column)
		}
	}

	return out
}

func WriteCSV(w io.Writer, table Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range table.Rows {
		if err := writer.Write(rowValues(table.Columns, row)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()

	return writer.Error()
}

func WriteXLSX(w io.Writer, table Table) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, len(table.Columns))
	for i, column := range table.Columns {
		header[i] = column
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range table.Rows {
		values := rowValues(table.Columns, row)

		cells := make([]any, len(values))
		for j, value := range values {
			cells[j] = value
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}

	return nil
}

func rowValues(columns []string, row map[string]string) []string {
	values := make([]string, len(columns))
	for i, column := range columns {
		values[i] = row[column]
	}
	return values
}
