package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/flowbaker/triage/pkg/domain"
	schemagen "github.com/google/jsonschema-go/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	SchemaName        = "ticket_classification"
	schemaDescription = "Classification of a customer support ticket"
	schemaResourceURL = "ticket_classification.json"
)

// Schema holds the generated classification schema and its compiled validator.
type Schema struct {
	raw       json.RawMessage
	validator *jsonschema.Schema
}

var loadSchema = sync.OnceValues(newSchema)

// ClassificationSchema returns the shared schema for domain.Classification.
func ClassificationSchema() (*Schema, error) {
	return loadSchema()
}

func newSchema() (*Schema, error) {
	generated, err := schemagen.For[domain.Classification](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate classification schema: %w", err)
	}

	properties := generated.Properties

	properties["category"].Enum = enumValues(domain.TicketCategories)
	properties["urgency"].Enum = enumValues(domain.TicketUrgencies)
	properties["sentiment"].Enum = enumValues(domain.CustomerSentiments)

	minConfidence, maxConfidence := 0.0, 1.0
	properties["confidence"].Minimum = &minConfidence
	properties["confidence"].Maximum = &maxConfidence

	// nil slices are generated as ["null","array"]; the model must send an array
	properties["key_information"].Types = nil
	properties["key_information"].Type = "array"

	generated.Required = []string{"category", "urgency", "sentiment", "confidence", "key_information", "suggested_action"}

	data, err := json.Marshal(generated)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classification schema: %w", err)
	}

	// strict structured output wants a literal false here
	document := map[string]any{}
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to decode classification schema: %w", err)
	}
	document["additionalProperties"] = false

	data, err = json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classification schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource(schemaResourceURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add classification schema: %w", err)
	}

	validator, err := compiler.Compile(schemaResourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile classification schema: %w", err)
	}

	return &Schema{
		raw:       data,
		validator: validator,
	}, nil
}

func enumValues[T ~string](values []T) []any {
	enum := make([]any, len(values))
	for i, value := range values {
		enum[i] = string(value)
	}
	return enum
}

func (s *Schema) Raw() json.RawMessage {
	return s.raw
}

// Parse validates payload against the schema and decodes it. Every failure
// wraps domain.ErrSchemaViolation.
func (s *Schema) Parse(payload string) (domain.Classification, error) {
	var document any
	if err := json.Unmarshal([]byte(payload), &document); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: response is not valid JSON: %w", domain.ErrSchemaViolation, err)
	}

	if err := s.validator.Validate(document); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %w", domain.ErrSchemaViolation, err)
	}

	var classification domain.Classification
	if err := json.Unmarshal([]byte(payload), &classification); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %w", domain.ErrSchemaViolation, err)
	}

	if err := classification.Validate(); err != nil {
		return domain.Classification{}, err
	}

	return classification, nil
}
