package ingest

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/flowbaker/triage/pkg/domain"
)

const (
	ColumnChannel        = "channel"
	ColumnMessageContent = "message_content"

	MaxMessages      = 1000
	MaxMessageLength = 10000
	MaxChannelLength = 100
)

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrNoRows         = errors.New("file has no data rows")
	ErrMissingColumns = errors.New("missing required columns")
	ErrTooManyTickets = fmt.Errorf("at most %d tickets per batch", MaxMessages)
)

var RequiredColumns = []string{ColumnChannel, ColumnMessageContent}

// Tickets maps the table rows to tickets in row order.
func Tickets(table Table) ([]domain.Ticket, error) {
	var missing []string
	for _, required := range RequiredColumns {
		if !hasColumn(table, required) {
			missing = append(missing, required)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: file must contain %s, missing %s", ErrMissingColumns,
			strings.Join(RequiredColumns, ", "), strings.Join(missing, ", "))
	}

	if len(table.Rows) > MaxMessages {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyTickets, len(table.Rows))
	}

	tickets := make([]domain.Ticket, len(table.Rows))
	for i, row := range table.Rows {
		tickets[i] = domain.Ticket{
			Channel:        row[ColumnChannel],
			MessageContent: row[ColumnMessageContent],
		}
	}

	return tickets, nil
}

// TicketsFromMessages builds a batch that shares one channel, rejecting blank
// or oversized messages up front.
func TicketsFromMessages(messages []string, channel string) ([]domain.Ticket, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: messages list cannot be empty", domain.ErrInvalidInput)
	}

	if len(messages) > MaxMessages {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyTickets, len(messages))
	}

	if utf8.RuneCountInString(channel) > MaxChannelLength {
		return nil, fmt.Errorf("%w: channel exceeds %d characters", domain.ErrInvalidInput, MaxChannelLength)
	}

	tickets := make([]domain.Ticket, len(messages))
	for i, message := range messages {
		if strings.TrimSpace(message) == "" {
			return nil, fmt.Errorf("%w: message %d is empty", domain.ErrInvalidInput, i+1)
		}

		if utf8.RuneCountInString(message) > MaxMessageLength {
			return nil, fmt.Errorf("%w: message %d exceeds %d characters", domain.ErrInvalidInput, i+1, MaxMessageLength)
		}

		tickets[i] = domain.Ticket{Channel: channel, MessageContent: message}
	}

	return tickets, nil
}

func hasColumn(table Table, name string) bool {
	for _, column := range table.Columns {
		if column == name {
			return true
		}
	}
	return false
}
