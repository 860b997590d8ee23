package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for empty or blank ticket text. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRetrievalFailure marks a vector store that was unreachable or answered with a malformed response
	ErrRetrievalFailure = errors.New("retrieval failure")

	// ErrSchemaViolation is returned when the model output does not match the classification schema
	ErrSchemaViolation = errors.New("schema violation")

	// ErrTransientModel is returned when the model call itself failed
	ErrTransientModel = errors.New("transient model error")

	// ErrModelExhausted is returned once every classification attempt has failed
	ErrModelExhausted = errors.New("classification attempts exhausted")

	// ErrPersistenceFailure marks a failed batch write to the interaction store
	ErrPersistenceFailure = errors.New("persistence failure")
)

type ErrorKind string

const (
	ErrorKind_InvalidInput    ErrorKind = "invalid_input"
	ErrorKind_Retrieval       ErrorKind = "retrieval_failure"
	ErrorKind_SchemaViolation ErrorKind = "schema_violation"
	ErrorKind_TransientModel  ErrorKind = "transient_model_error"
	ErrorKind_Persistence     ErrorKind = "persistence_failure"
	ErrorKind_Internal        ErrorKind = "internal"
)

// KindOf maps an error chain to the kind reported to callers.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return ErrorKind_InvalidInput
	case errors.Is(err, ErrSchemaViolation):
		return ErrorKind_SchemaViolation
	case errors.Is(err, ErrTransientModel), errors.Is(err, ErrModelExhausted):
		return ErrorKind_TransientModel
	case errors.Is(err, ErrRetrievalFailure):
		return ErrorKind_Retrieval
	case errors.Is(err, ErrPersistenceFailure):
		return ErrorKind_Persistence
	default:
		return ErrorKind_Internal
	}
}

// TicketError carries the failure kind together with the ticket's correlation id.
type TicketError struct {
	Kind          ErrorKind
	CorrelationID string
	Channel       string
	Err           error
}

func NewTicketError(correlationID string, ticket Ticket, err error) *TicketError {
	return &TicketError{
		Kind:          KindOf(err),
		CorrelationID: correlationID,
		Channel:       ticket.ChannelOrDefault(),
		Err:           err,
	}
}

func (e *TicketError) Error() string {
	return fmt.Sprintf("ticket %s (%s): %v", e.CorrelationID, e.Kind, e.Err)
}

func (e *TicketError) Unwrap() error {
	return e.Err
}
