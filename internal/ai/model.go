// Package ai defines the narrow language model contract used by skill
// extraction, disambiguation and reply generation.
package ai

import "context"

// Request is a single stateless model call.
type Request struct {
	// Instruction is the system instruction.
	Instruction string
	// Input is the user content.
	Input string
	// Schema constrains the output to JSON when set.
	Schema *Schema
	// SchemaName labels the schema for providers that require a name.
	SchemaName string
}

// Model is a language model backend.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}
