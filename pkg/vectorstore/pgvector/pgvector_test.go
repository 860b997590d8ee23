package pgvector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatVector(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected string
	}{
		{name: "empty", input: nil, expected: "[]"},
		{name: "single", input: []float32{1}, expected: "[1]"},
		{name: "mixed", input: []float32{0.5, -2, 0.125}, expected: "[0.5,-2,0.125]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatVector(tt.input))
		})
	}
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "triage_customer_policies", tableName(DefaultTablePrefix, "customer_policies"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(StoreDeps{Context: context.Background()}, Opts{URI: "postgres://localhost/triage", Dimensions: 3})
	assert.ErrorContains(t, err, "requires an embedder")
}
