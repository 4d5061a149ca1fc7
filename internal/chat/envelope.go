package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EnvelopeType 标记 JSON 消息的种类
// EnvelopeType tags the kind of a JSON protocol message
type EnvelopeType string

const (
	TypeUser        EnvelopeType = "user"
	TypePlan        EnvelopeType = "plan"
	TypeAction      EnvelopeType = "action"
	TypeObservation EnvelopeType = "observation"
	TypeOutput      EnvelopeType = "output"
)

// ErrMalformedReply 模型回复不是合法的协议消息
// ErrMalformedReply means the model reply is not a valid protocol message
var ErrMalformedReply = errors.New("malformed model reply")

// Envelope 是写在消息 content 里的标签联合体
// Envelope is the tagged union carried inside message content:
//
//	{"type":"user","user":"..."}
//	{"type":"plan","plan":"..."}
//	{"type":"action","function":"createTodo","input":"..."}
//	{"type":"observation","observation":...}
//	{"type":"output","output":"..."}
type Envelope struct {
	Type        EnvelopeType    `json:"type"`
	User        string          `json:"user,omitempty"`
	Plan        string          `json:"plan,omitempty"`
	Function    string          `json:"function,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
	Observation json.RawMessage `json:"observation,omitempty"`
	Output      string          `json:"output,omitempty"`
}

// NewUser wraps a line typed by the user.
func NewUser(text string) Envelope {
	return Envelope{Type: TypeUser, User: text}
}

// NewObservation wraps a tool result. The result is embedded as JSON, not as a quoted string.
func NewObservation(result any) (Envelope, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal observation: %w", err)
	}
	return Envelope{Type: TypeObservation, Observation: data}, nil
}

// Encode renders the envelope as compact JSON.
func (e Envelope) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode %s message: %w", e.Type, err)
	}
	return string(data), nil
}

// Text returns the human-readable payload for the envelope type.
func (e Envelope) Text() string {
	switch e.Type {
	case TypeUser:
		return e.User
	case TypePlan:
		return e.Plan
	case TypeOutput:
		return e.Output
	case TypeObservation:
		return string(e.Observation)
	case TypeAction:
		if len(e.Input) == 0 {
			return e.Function + "()"
		}
		return e.Function + "(" + string(e.Input) + ")"
	default:
		return ""
	}
}

type wireEnvelope struct {
	Type        string          `json:"type"`
	User        json.RawMessage `json:"user"`
	Plan        json.RawMessage `json:"plan"`
	Function    string          `json:"function"`
	Input       json.RawMessage `json:"input"`
	Observation json.RawMessage `json:"observation"`
	Output      json.RawMessage `json:"output"`
}

// ParseEnvelope 解析模型回复；plan/output 若不是字符串则回退为紧凑 JSON
// ParseEnvelope decodes a model reply. Non-string plan/output payloads fall back to compact JSON.
func ParseEnvelope(raw string) (Envelope, error) {
	trimmed := strings.TrimSpace(stripCodeFence(raw))
	if trimmed == "" {
		return Envelope{}, fmt.Errorf("%w: empty content", ErrMalformedReply)
	}
	var w wireEnvelope
	if err := json.Unmarshal([]byte(trimmed), &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	kind := strings.ToLower(strings.TrimSpace(w.Type))
	if kind == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedReply)
	}

	env := Envelope{
		Type:        EnvelopeType(kind),
		Function:    strings.TrimSpace(w.Function),
		Input:       nullToEmpty(w.Input),
		Observation: nullToEmpty(w.Observation),
	}
	var err error
	if env.User, err = flexString(w.User); err != nil {
		return Envelope{}, err
	}
	if env.Plan, err = flexString(w.Plan); err != nil {
		return Envelope{}, err
	}
	if env.Output, err = flexString(w.Output); err != nil {
		return Envelope{}, err
	}
	if env.Type == TypeAction && env.Function == "" {
		return Envelope{}, fmt.Errorf("%w: action without function", ErrMalformedReply)
	}
	return env, nil
}

func flexString(raw json.RawMessage) (string, error) {
	raw = nullToEmpty(raw)
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return buf.String(), nil
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	return raw
}

// stripCodeFence 去掉部分模型在 JSON 外包的 ```json 围栏
// stripCodeFence removes a ```json fence some models wrap around JSON mode output
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(t), "```")
}
