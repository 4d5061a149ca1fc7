package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"todoagent/internal/chat"

	openai "github.com/sashabaranov/go-openai"
)

func completionBody(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-3.5-turbo-0125",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc, retries int) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIProvider(OpenAIConfig{
		BaseURL:    srv.URL + "/v1/",
		APIKey:     "sk-test",
		Model:      "gpt-3.5-turbo-0125",
		TimeoutMS:  5000,
		MaxRetries: retries,
	})
}

func TestOpenAIProviderChat_JSONMode(t *testing.T) {
	var gotBody map[string]any
	var gotPath, gotAuth string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(`{"type":"output","output":"hi"}`))
	}, 0)

	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: "prompt"},
			{Role: chat.RoleUser, Content: `{"type":"user","user":"hello"}`},
			{Role: chat.RoleDeveloper, Content: `{"type":"observation","observation":[]}`},
		},
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != `{"type":"output","output":"hi"}` {
		t.Fatalf("Content=%q", resp.Content)
	}
	if resp.FinishReason != "stop" || resp.Usage.TotalTokens != 17 {
		t.Fatalf("unexpected response meta: %+v", resp)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path=%q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth=%q", gotAuth)
	}
	if gotBody["model"] != "gpt-3.5-turbo-0125" {
		t.Fatalf("model=%v", gotBody["model"])
	}
	rf, _ := gotBody["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Fatalf("response_format=%v", gotBody["response_format"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages len=%d, want 3", len(msgs))
	}
	if last, _ := msgs[2].(map[string]any); last["role"] != "developer" {
		t.Fatalf("messages[2]=%v", msgs[2])
	}
}

func TestOpenAIProviderChat_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
			return
		}
		_, _ = io.WriteString(w, completionBody(`{"type":"plan","plan":"x"}`))
	}, 2)

	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []chat.Message{{Role: chat.RoleUser, Content: "x"}}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls=%d, want 2", calls.Load())
	}
	if resp.Content != `{"type":"plan","plan":"x"}` {
		t.Fatalf("Content=%q", resp.Content)
	}
}

func TestOpenAIProviderChat_NoRetryOnAuthError(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}, 3)

	_, err := p.Chat(context.Background(), ChatRequest{Messages: []chat.Message{{Role: chat.RoleUser, Content: "x"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls=%d, want 1", calls.Load())
	}
}

func TestOpenAIProviderChat_NoChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[]}`)
	}, 0)

	_, err := p.Chat(context.Background(), ChatRequest{Messages: []chat.Message{{Role: chat.RoleUser, Content: "x"}}})
	if !errors.Is(err, ErrNoChoices) {
		t.Fatalf("err=%v, want ErrNoChoices", err)
	}
}

func TestOpenAIProviderChat_CanceledContext(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Chat(ctx, ChatRequest{Messages: []chat.Message{{Role: chat.RoleUser, Content: "x"}}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestOpenAIProviderListModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"gpt-4o-mini","object":"model","owned_by":"openai"}]}`)
	}, 0)

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 || models[0].ID != "gpt-4o-mini" || models[0].OwnedBy != "openai" {
		t.Fatalf("models=%+v", models)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{context.Canceled, false},
		{&openai.APIError{HTTPStatusCode: 401}, false},
		{&openai.APIError{HTTPStatusCode: 429}, true},
		{&openai.APIError{HTTPStatusCode: 503}, true},
		{&openai.RequestError{HTTPStatusCode: 400, Err: errors.New("bad")}, false},
		{errors.New("connection reset"), true},
	}
	for _, tc := range cases {
		if got := retryable(tc.err); got != tc.want {
			t.Fatalf("retryable(%v)=%v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestOpenAIProviderSetModel(t *testing.T) {
	p := &OpenAIProvider{model: "gpt-4"}
	if p.CurrentModel() != "gpt-4" {
		t.Fatalf("CurrentModel()=%q, want gpt-4", p.CurrentModel())
	}
	if err := p.SetModel("gpt-3.5-turbo"); err != nil {
		t.Fatalf("SetModel: %v", err)
	}
	if p.CurrentModel() != "gpt-3.5-turbo" {
		t.Fatalf("CurrentModel()=%q after set, want gpt-3.5-turbo", p.CurrentModel())
	}
	if err := p.SetModel(""); err == nil {
		t.Fatal("SetModel empty should error")
	}
}

func TestOpenAIProviderName(t *testing.T) {
	p := &OpenAIProvider{}
	if p.Name() != "openai" {
		t.Fatalf("Name()=%q, want openai", p.Name())
	}
}
