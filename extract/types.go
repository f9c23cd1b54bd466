package extract

import (
	"context"

	"github.com/tbxark/intakeagent/types"
)

// Result maps a field name to the candidate value the user mentioned.
type Result map[string]string

// Extractor proposes field values from the latest user message.
// req.Scope names the fields that may be returned.
type Extractor interface {
	Extract(ctx context.Context, req *types.ToolRequest) (Result, error)
}

// FieldValue is one extracted field as returned by the model.
type FieldValue struct {
	Name  string `json:"name" jsonschema:"required,description=Exact field name from the fields in scope"`
	Value any    `json:"value" jsonschema:"required,description=Value stated or clearly implied by the user"`
}

type extractFieldsArgs struct {
	Fields []FieldValue `json:"fields" jsonschema:"required,description=Only fields the user mentioned; empty when nothing relevant was said"`
}
