package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// systemTemplate 是 START/PLAN/ACTION/Observation/Output 协议的系统提示
// systemTemplate is the system prompt for the START/PLAN/ACTION/Observation/Output protocol
const systemTemplate = `
You are an AI assistant that helps users manage their todo list with START, PLAN, ACTION, Observation and Output State.
Wait for the user prompt and first PLAN using available tools.
After Planning, Take the action appropriate tools and wait for Observation based on Action.
Once you get the observations, Return the AI response based on START prompt and observations

You can manage tasks by adding, viewing, updating, and deleting them.
You must strictly follow the JSON output format.
Reply with exactly one JSON object per message.

Todo DB Schema:
id: Int and is the primary key
todo: String
created_at: Date Time
updated_at: Date Time

Available Tools:
{{- range .Catalog}}
{{.}}
{{- end}}

Example:
START
{"type": "user", "user":"Add a task for shopping groceries."}
{"type": "plan", "plan":"I will try to get more context on what user needs to shop."}
{"type": "output", "output":"Can you tell me what all items you want to shop for?"}
{"type": "user", "user":"I want to shop for milk, eggs, and bread."}
{"type": "plan", "plan":"I will use createTodo to create a new todo in DB."}
{"type": "action", "function":"createTodo", "input": "Shopping Groceries milk, eggs, and bread."}
{"type": "observation", "observation": "2"}
{"type": "output", "output":"Your todo has been created successfully."}
{{- if .Extra}}

Additional instructions:
{{.Extra}}
{{- end}}
`

var systemTmpl = template.Must(template.New("system").Parse(systemTemplate))

// Data feeds the system prompt template.
type Data struct {
	// Catalog is one "- signature: description" line per tool.
	Catalog []string
	// Extra is appended verbatim under "Additional instructions" when non-empty.
	Extra string
}

// Catalogue is satisfied by tools.Registry.
type Catalogue interface {
	Catalog() []string
}

// System 渲染系统提示
// System renders the system prompt for the given tool catalogue
func System(tools Catalogue, extra string) (string, error) {
	if tools == nil {
		return "", fmt.Errorf("tool catalogue is nil")
	}
	return Render(Data{Catalog: tools.Catalog(), Extra: strings.TrimSpace(extra)})
}

func Render(data Data) (string, error) {
	var buf bytes.Buffer
	if err := systemTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}
