package tools

import (
	"encoding/json"
	"fmt"
)

// MustJSON renders a tool result for display; marshal failures become an error object.
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"ok":false,"error":"marshal result: %s"}`, err.Error())
	}
	return string(data)
}
