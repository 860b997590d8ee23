package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ticketsCSV = "channel,message_content,customer_id\n" +
	"email,\"My knee MRI claim was denied, please help\",C-1\n" +
	"chat,I cannot log in,C-2\n"

func TestParserRegistry_Detect(t *testing.T) {
	registry := NewDefaultRegistry()

	tests := []struct {
		name        string
		content     string
		contentType string
		fileName    string
		expected    FileFormat
	}{
		{name: "csv by extension", content: ticketsCSV, fileName: "tickets.csv", expected: FileFormatCSV},
		{name: "csv by content type", content: ticketsCSV, contentType: "text/csv; charset=utf-8", expected: FileFormatCSV},
		{name: "tsv", content: "channel\tmessage_content\n", fileName: "tickets.TSV", expected: FileFormatTSV},
		{name: "json array", content: `[{"channel": "email"}]`, expected: FileFormatJSON},
		{name: "ndjson lines", content: "{\"a\": 1}\n{\"a\": 2}", expected: FileFormatNDJSON},
		{name: "yaml", content: "- channel: email", fileName: "tickets.yml", expected: FileFormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, err := registry.DetectAndGetParser([]byte(tt.content), tt.contentType, tt.fileName)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, parser.FormatName())
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := registry.DetectAndGetParser([]byte("plain text"), "text/plain", "notes.txt")
		assert.ErrorContains(t, err, "unable to detect file format")
	})
}

func TestParse_CSV(t *testing.T) {
	table, err := NewDefaultRegistry().Parse([]byte(ticketsCSV), "", "tickets.csv", FileFormatAuto)
	require.NoError(t, err)

	assert.Equal(t, []string{"channel", "message_content", "customer_id"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "My knee MRI claim was denied, please help", table.Rows[0]["message_content"])
	assert.Equal(t, "C-2", table.Rows[1]["customer_id"])

	tickets, err := Tickets(table)
	require.NoError(t, err)
	assert.Equal(t, []domain.Ticket{
		{Channel: "email", MessageContent: "My knee MRI claim was denied, please help"},
		{Channel: "chat", MessageContent: "I cannot log in"},
	}, tickets)
}

func TestParse_Errors(t *testing.T) {
	registry := NewDefaultRegistry()

	_, err := registry.Parse([]byte(""), "", "empty.csv", FileFormatCSV)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = registry.Parse([]byte("channel,message_content\n"), "", "header.csv", FileFormatCSV)
	assert.ErrorIs(t, err, ErrNoRows)

	_, err = registry.Parse([]byte("a"), "", "", FileFormat("xml"))
	assert.ErrorContains(t, err, "unsupported file format")
}

func TestParse_StructuredFormats(t *testing.T) {
	registry := NewDefaultRegistry()

	tests := []struct {
		name    string
		content string
		format  FileFormat
	}{
		{name: "json", content: `[{"message_content": "billing question", "channel": "email", "priority": 2}]`, format: FileFormatJSON},
		{name: "ndjson", content: "{\"channel\": \"email\", \"message_content\": \"billing question\", \"priority\": 2}\n", format: FileFormatNDJSON},
		{name: "yaml", content: "- channel: email\n  message_content: billing question\n  priority: 2\n", format: FileFormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := registry.Parse([]byte(tt.content), "", "", tt.format)
			require.NoError(t, err)

			assert.Equal(t, []string{"channel", "message_content", "priority"}, table.Columns)
			require.Len(t, table.Rows, 1)
			assert.Equal(t, "billing question", table.Rows[0]["message_content"])
			assert.Equal(t, "2", table.Rows[0]["priority"])
		})
	}
}

func TestTickets_MissingColumns(t *testing.T) {
	_, err := Tickets(Table{Columns: []string{"channel", "body"}, Rows: []map[string]string{{"channel": "x"}}})

	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.ErrorContains(t, err, "missing message_content")
}

func TestTicketsFromMessages(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tickets, err := TicketsFromMessages([]string{"a", "b"}, "web")
		require.NoError(t, err)

		assert.Equal(t, []domain.Ticket{{Channel: "web", MessageContent: "a"}, {Channel: "web", MessageContent: "b"}}, tickets)
	})

	t.Run("empty list", func(t *testing.T) {
		_, err := TicketsFromMessages(nil, "web")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("blank message", func(t *testing.T) {
		_, err := TicketsFromMessages([]string{"ok", "  "}, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("message too long", func(t *testing.T) {
		_, err := TicketsFromMessages([]string{strings.Repeat("a", MaxMessageLength+1)}, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("too many messages", func(t *testing.T) {
		messages := make([]string, MaxMessages+1)
		for i := range messages {
			messages[i] = "m"
		}

		_, err := TicketsFromMessages(messages, "")
		assert.ErrorIs(t, err, ErrTooManyTickets)
	})
}

func annotatedTable(t *testing.T) Table {
	t.Helper()

	table, err := NewCSVParser().Parse([]byte(ticketsCSV))
	require.NoError(t, err)

	annotated, err := AppendResults(table, []domain.BatchResult{
		{ClassificationJSON: `{"category": "claim_denial"}`, RoutingDisplay: "📬 Routed to: Claims Department ⏱ Urgency Level: Escalation Team", Cost: 0.00012, CorrelationID: "id-1"},
		domain.NewPlaceholderResult("id-2", nil),
	})
	require.NoError(t, err)

	return annotated
}

func TestAppendResults(t *testing.T) {
	annotated := annotatedTable(t)

	assert.Equal(t, []string{"channel", "message_content", "customer_id", "target_label", "routing_info", "processing_cost", "vector_id"}, annotated.Columns)
	assert.Equal(t, "0.00012", annotated.Rows[0][ColumnProcessingCost])
	assert.Equal(t, "{}", annotated.Rows[1][ColumnTargetLabel])
	assert.Equal(t, "Error processing", annotated.Rows[1][ColumnRoutingInfo])
	assert.Equal(t, "0", annotated.Rows[1][ColumnProcessingCost])

	_, err := AppendResults(annotated, nil)
	assert.Error(t, err)
}

func TestAppendResults_OverwritesExistingColumns(t *testing.T) {
	annotated := annotatedTable(t)

	reannotated, err := AppendResults(annotated, []domain.BatchResult{
		domain.NewPlaceholderResult("id-3", nil),
		{ClassificationJSON: `{"category": "login_issue"}`, RoutingDisplay: "📬 Routed to: IT Support", Cost: 0.5, CorrelationID: "id-4"},
	})
	require.NoError(t, err)

	assert.Equal(t, annotated.Columns, reannotated.Columns)
	assert.Equal(t, "Error processing", reannotated.Rows[0][ColumnRoutingInfo])
	assert.Equal(t, "id-3", reannotated.Rows[0][ColumnVectorID])
	assert.Equal(t, `{"category": "login_issue"}`, reannotated.Rows[1][ColumnTargetLabel])
	assert.Equal(t, "0.5", reannotated.Rows[1][ColumnProcessingCost])

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, reannotated))

	header, _, _ := strings.Cut(buf.String(), "\n")
	assert.Equal(t, "channel,message_content,customer_id,target_label,routing_info,processing_cost,vector_id", header)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	annotated := annotatedTable(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, annotated))

	reparsed, err := NewCSVParser().Parse(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, annotated.Columns, reparsed.Columns)
	assert.Equal(t, annotated.Rows, reparsed.Rows)
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	annotated := annotatedTable(t)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, annotated))

	parser := NewXLSXParser()
	assert.True(t, parser.CanParse(buf.Bytes(), "", ""))

	reparsed, err := parser.Parse(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, annotated.Columns, reparsed.Columns)
	require.Len(t, reparsed.Rows, 2)
	assert.Equal(t, "id-1", reparsed.Rows[0][ColumnVectorID])
	assert.Equal(t, annotated.Rows[0][ColumnTargetLabel], reparsed.Rows[0][ColumnTargetLabel])
}
