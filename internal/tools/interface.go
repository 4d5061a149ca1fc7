package tools

import (
	"context"
	"encoding/json"
)

// Tool is a named function the model may ask to run. Its result is reported
// back to the model as an observation.
type Tool interface {
	Name() string
	// Signature is the call shape shown in the prompt catalog, e.g. "createTodo(todo: string)".
	Signature() string
	Description() string
	Execute(ctx context.Context, input json.RawMessage) (any, error)
}
