package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoagent/internal/chat"
	"todoagent/internal/provider"
	"todoagent/internal/storage"
	"todoagent/internal/tokens"
	"todoagent/internal/tools"
)

type scriptedProvider struct {
	model     string
	responses []provider.ChatResponse
	errs      []error
	callCount int
	requests  []provider.ChatRequest
}

func (p *scriptedProvider) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if err := ctx.Err(); err != nil {
		return provider.ChatResponse{}, err
	}
	idx := p.callCount
	p.callCount++
	if idx < len(p.errs) && p.errs[idx] != nil {
		return provider.ChatResponse{}, p.errs[idx]
	}
	if idx >= len(p.responses) {
		return provider.ChatResponse{}, errors.New("no scripted response")
	}
	return p.responses[idx], nil
}

func (p *scriptedProvider) ListModels(context.Context) ([]provider.ModelInfo, error) { return nil, nil }
func (p *scriptedProvider) Name() string                                             { return "scripted" }
func (p *scriptedProvider) CurrentModel() string                                     { return p.model }
func (p *scriptedProvider) SetModel(model string) error {
	p.model = model
	return nil
}

func replies(contents ...string) []provider.ChatResponse {
	out := make([]provider.ChatResponse, 0, len(contents))
	for _, c := range contents {
		out = append(out, provider.ChatResponse{Content: c, FinishReason: "stop"})
	}
	return out
}

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestOrchestrator(t *testing.T, p *scriptedProvider, opts Options) (*Orchestrator, *storage.SQLiteStore) {
	t.Helper()
	store := newTestStore(t)
	if p.model == "" {
		p.model = "gpt-3.5-turbo-0125"
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = "system prompt"
	}
	opts.Counter = &tokens.Counter{}
	reg := tools.NewRegistry(tools.TodoTools(store)...)
	return New(p, reg, opts), store
}

func TestRunInput_OutputOnly(t *testing.T) {
	p := &scriptedProvider{responses: replies(`{"type":"output","output":"Hello! How can I help?"}`)}
	o, _ := newTestOrchestrator(t, p, Options{})

	var out bytes.Buffer
	got, err := o.RunInput(context.Background(), "hi", &out)
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", got)
	assert.Equal(t, "🤖: Hello! How can I help?\n", out.String())

	msgs := o.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, chat.RoleSystem, msgs[0].Role)
	assert.Equal(t, chat.Message{Role: chat.RoleUser, Content: `{"type":"user","user":"hi"}`}, msgs[1])
	assert.Equal(t, chat.RoleAssistant, msgs[2].Role)

	require.Len(t, p.requests, 1)
	assert.True(t, p.requests[0].JSONMode)
	assert.Equal(t, "gpt-3.5-turbo-0125", p.requests[0].Model)
	assert.Len(t, p.requests[0].Messages, 2)
}

func TestRunInput_PlanActionOutput(t *testing.T) {
	p := &scriptedProvider{responses: replies(
		`{"type":"plan","plan":"I will use createTodo to create a new todo in DB."}`,
		`{"type":"action","function":"createTodo","input":"Shopping Groceries milk, eggs, and bread."}`,
		`{"type":"output","output":"Your todo has been created successfully."}`,
	)}
	o, store := newTestOrchestrator(t, p, Options{})

	var plans []string
	var events []string
	o.SetPlanCallback(func(text string) { plans = append(plans, text) })
	o.SetToolEventCallback(func(name, summary string, done bool) {
		events = append(events, name+"|"+summary)
	})

	got, err := o.RunInput(context.Background(), "I want to shop for milk, eggs, and bread.", nil)
	require.NoError(t, err)
	assert.Equal(t, "Your todo has been created successfully.", got)

	todos, err := store.ListTodos(context.Background())
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "Shopping Groceries milk, eggs, and bread.", todos[0].Text)

	msgs := o.Messages()
	// system, user, plan, action, observation, output
	require.Len(t, msgs, 6)
	obs := msgs[4]
	assert.Equal(t, chat.RoleDeveloper, obs.Role)
	assert.JSONEq(t, `{"type":"observation","observation":1}`, obs.Content)

	require.Len(t, p.requests, 3)
	last := p.requests[2].Messages
	assert.Equal(t, obs, last[len(last)-1])

	assert.Equal(t, []string{"I will use createTodo to create a new todo in DB."}, plans)
	assert.Equal(t, []string{
		`createTodo|createTodo("Shopping Groceries milk, eggs, and bread.")`,
		"createTodo|1",
	}, events)
}

func TestRunInput_ObservationRoleOption(t *testing.T) {
	p := &scriptedProvider{responses: replies(
		`{"type":"action","function":"getAllTodos"}`,
		`{"type":"output","output":"You have no todos."}`,
	)}
	o, _ := newTestOrchestrator(t, p, Options{ObservationRole: "user"})

	_, err := o.RunInput(context.Background(), "show my todos", nil)
	require.NoError(t, err)
	msgs := o.Messages()
	assert.Equal(t, chat.Message{Role: chat.RoleUser, Content: `{"type":"observation","observation":[]}`}, msgs[3])
}

func TestRunInput_UnknownToolIsFatal(t *testing.T) {
	p := &scriptedProvider{responses: replies(`{"type":"action","function":"updateTodo","input":"x"}`)}
	o, _ := newTestOrchestrator(t, p, Options{})
	var events int
	o.SetToolEventCallback(func(string, string, bool) { events++ })

	_, err := o.RunInput(context.Background(), "rename it", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, tools.ErrUnknownTool)
	assert.Contains(t, err.Error(), "updateTodo")
	assert.Zero(t, events, "no tool event for an unknown tool")
}

func TestToolNamesAndProvider(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedProvider{}, Options{})
	assert.Equal(t, []string{"createTodo", "deleteTodoById", "getAllTodos", "searchTodo"}, o.ToolNames())
	assert.Equal(t, "scripted", o.ProviderName())

	models, err := o.ListModels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestRunInput_MalformedReply(t *testing.T) {
	p := &scriptedProvider{responses: replies(`Sure! Here is your list.`)}
	o, _ := newTestOrchestrator(t, p, Options{})

	_, err := o.RunInput(context.Background(), "list", nil)
	assert.ErrorIs(t, err, chat.ErrMalformedReply)
	// 原始回复仍留在日志中 / the raw reply is still logged
	msgs := o.Messages()
	assert.Equal(t, "Sure! Here is your list.", msgs[len(msgs)-1].Content)
}

func TestRunInput_UnknownTypeContinues(t *testing.T) {
	p := &scriptedProvider{responses: replies(
		`{"type":"thinking","text":"hmm"}`,
		`{"type":"output","output":"done"}`,
	)}
	o, _ := newTestOrchestrator(t, p, Options{})

	got, err := o.RunInput(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 2, p.callCount)
}

func TestRunInput_MaxSteps(t *testing.T) {
	p := &scriptedProvider{responses: replies(
		`{"type":"plan","plan":"a"}`,
		`{"type":"plan","plan":"b"}`,
		`{"type":"output","output":"never"}`,
	)}
	o, _ := newTestOrchestrator(t, p, Options{MaxSteps: 2})

	_, err := o.RunInput(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrMaxSteps)
	assert.Equal(t, 2, p.callCount)
}

func TestRunInput_ProviderError(t *testing.T) {
	boom := errors.New("connection refused")
	p := &scriptedProvider{errs: []error{boom}}
	o, _ := newTestOrchestrator(t, p, Options{})

	_, err := o.RunInput(context.Background(), "x", nil)
	assert.ErrorIs(t, err, boom)
}

func TestRunInput_CanceledContext(t *testing.T) {
	p := &scriptedProvider{responses: replies(`{"type":"output","output":"x"}`)}
	o, _ := newTestOrchestrator(t, p, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.RunInput(ctx, "x", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.callCount)
}

func TestRunInput_BlankInputIsIgnored(t *testing.T) {
	p := &scriptedProvider{}
	o, _ := newTestOrchestrator(t, p, Options{})

	got, err := o.RunInput(context.Background(), "   ", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, p.callCount)
	assert.Len(t, o.Messages(), 1)
}

func TestRunInput_PersistsTranscript(t *testing.T) {
	ctx := context.Background()
	p := &scriptedProvider{responses: replies(
		`{"type":"action","function":"createTodo","input":"Pay rent"}`,
		`{"type":"output","output":"Created."}`,
		`{"type":"output","output":"Bye."}`,
	)}
	store := newTestStore(t)
	require.NoError(t, store.CreateSession(ctx, storage.Session{ID: "sess_1", Model: "gpt-3.5-turbo-0125"}))
	o := New(p, tools.NewRegistry(tools.TodoTools(store)...), Options{
		SystemPrompt: "system prompt",
		Store:        store,
		SessionID:    "sess_1",
		Counter:      &tokens.Counter{},
	})
	p.model = "gpt-3.5-turbo-0125"

	_, err := o.RunInput(ctx, "Add pay rent", nil)
	require.NoError(t, err)
	_, err = o.RunInput(ctx, "thanks", nil)
	require.NoError(t, err)

	saved, err := store.LoadMessages(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, o.Messages(), saved)

	sess, err := store.LoadSession(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, "Add pay rent", sess.Title)

	// 恢复会话后继续追加 / resuming continues the sequence
	p2 := &scriptedProvider{model: "gpt-3.5-turbo-0125", responses: replies(`{"type":"output","output":"Welcome back."}`)}
	resumed := New(p2, tools.NewRegistry(tools.TodoTools(store)...), Options{Store: store, SessionID: "sess_1", Counter: &tokens.Counter{}})
	resumed.LoadMessages(saved)
	_, err = resumed.RunInput(ctx, "hello again", nil)
	require.NoError(t, err)

	saved, err = store.LoadMessages(ctx, "sess_1")
	require.NoError(t, err)
	assert.Len(t, saved, len(o.Messages())+2)
	assert.Len(t, p2.requests[0].Messages, len(o.Messages())+1)
}

func TestCurrentContextStats(t *testing.T) {
	p := &scriptedProvider{responses: []provider.ChatResponse{{
		Content: `{"type":"output","output":"ok"}`,
		Usage:   provider.Usage{PromptTokens: 40, CompletionTokens: 6, TotalTokens: 46},
	}}}
	o, _ := newTestOrchestrator(t, p, Options{ContextLimit: 1000})

	var updates int
	o.SetContextUpdateCallback(func(ContextStats) { updates++ })

	before := o.CurrentContextStats()
	_, err := o.RunInput(context.Background(), strings.Repeat("word ", 50), nil)
	require.NoError(t, err)
	after := o.CurrentContextStats()

	assert.Equal(t, 1000, after.ContextLimit)
	assert.Greater(t, after.EstimatedTokens, before.EstimatedTokens)
	assert.Equal(t, 3, after.MessageCount)
	assert.Equal(t, 46, after.LastUsage.TotalTokens)
	assert.Greater(t, after.UsagePercent, 0.0)
	assert.Equal(t, 2, updates)
}

func TestSetModel(t *testing.T) {
	p := &scriptedProvider{}
	o, _ := newTestOrchestrator(t, p, Options{})
	require.NoError(t, o.SetModel("gpt-4o-mini"))
	assert.Equal(t, "gpt-4o-mini", o.CurrentModel())
}

func TestSetModel_ContextFollowsModel(t *testing.T) {
	p := &scriptedProvider{model: "gpt-3.5-turbo-0125"}
	var built []string
	o := New(p, nil, Options{
		SystemPrompt: "system prompt",
		NewCounter: func(model string) *tokens.Counter {
			built = append(built, model)
			return &tokens.Counter{}
		},
	})
	assert.Equal(t, 16385, o.CurrentContextStats().ContextLimit)

	require.NoError(t, o.SetModel("gpt-4o"))
	stats := o.CurrentContextStats()
	assert.Equal(t, 128000, stats.ContextLimit)
	assert.Equal(t, []string{"gpt-3.5-turbo-0125", "gpt-4o"}, built)
	assert.Greater(t, stats.EstimatedTokens, 0)
}

func TestSetModel_ExplicitLimitIsKept(t *testing.T) {
	p := &scriptedProvider{model: "gpt-3.5-turbo-0125"}
	o, _ := newTestOrchestrator(t, p, Options{ContextLimit: 4096})

	require.NoError(t, o.SetModel("gpt-4o"))
	assert.Equal(t, 4096, o.CurrentContextStats().ContextLimit)
}
