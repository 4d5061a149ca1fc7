package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"todoagent/internal/chat"
	"todoagent/internal/provider"
	"todoagent/internal/tokens"
	"todoagent/internal/tools"
)

type Orchestrator struct {
	provider        provider.Provider
	registry        *tools.Registry
	maxSteps        int
	observationRole string
	renderer        Renderer
	counter         *tokens.Counter
	contextLimit    int
	logger          *slog.Logger

	// 未显式配置时，切换模型会重建计数器和上限
	// unless set explicitly, counter and limit follow the current model
	newCounter   func(model string) *tokens.Counter
	fixedCounter bool
	fixedLimit   bool

	onToolEvent     ToolEventFunc
	onPlan          PlanFunc
	onContextUpdate OnContextUpdate

	store      TranscriptStore
	sessionID  string
	persistedN int
	lastUsage  provider.Usage
	mu         sync.Mutex
	messages   []chat.Message
}

func New(providerClient provider.Provider, registry *tools.Registry, opts Options) *Orchestrator {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	role := strings.TrimSpace(opts.ObservationRole)
	if role == "" {
		role = chat.RoleDeveloper
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = PlainRenderer{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := ""
	if providerClient != nil {
		model = providerClient.CurrentModel()
	}
	newCounter := opts.NewCounter
	if newCounter == nil {
		newCounter = tokens.NewCounterForModel
	}
	counter := opts.Counter
	if counter == nil {
		counter = newCounter(model)
	}
	limit := opts.ContextLimit
	if limit <= 0 {
		limit = tokens.ContextLimit(model)
	}

	o := &Orchestrator{
		provider:        providerClient,
		registry:        registry,
		maxSteps:        maxSteps,
		observationRole: role,
		renderer:        renderer,
		counter:         counter,
		contextLimit:    limit,
		logger:          logger,
		store:           opts.Store,
		sessionID:       strings.TrimSpace(opts.SessionID),
		newCounter:      newCounter,
		fixedCounter:    opts.Counter != nil,
		fixedLimit:      opts.ContextLimit > 0,
	}
	if prompt := strings.TrimSpace(opts.SystemPrompt); prompt != "" {
		o.messages = []chat.Message{{Role: chat.RoleSystem, Content: opts.SystemPrompt}}
	}
	return o
}

func (o *Orchestrator) Messages() []chat.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]chat.Message(nil), o.messages...)
}

// LoadMessages 用已保存的会话替换当前消息序列（用于 --resume）
// LoadMessages replaces the log with a stored transcript; the loaded messages count as persisted
func (o *Orchestrator) LoadMessages(messages []chat.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append([]chat.Message(nil), messages...)
	o.persistedN = len(o.messages)
}

func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

func (o *Orchestrator) appendMessage(msg chat.Message) {
	o.mu.Lock()
	o.messages = append(o.messages, msg)
	o.mu.Unlock()
}

func (o *Orchestrator) CurrentContextStats() ContextStats {
	messages := o.Messages()
	o.mu.Lock()
	counter, limit := o.counter, o.contextLimit
	o.mu.Unlock()
	s := counter.Measure(messages, limit)
	return ContextStats{
		EstimatedTokens: s.Tokens,
		ContextLimit:    s.Limit,
		UsagePercent:    s.Percent,
		MessageCount:    len(messages),
		Precise:         s.Precise,
		Encoding:        counter.EncodingName(),
		LastUsage:       o.lastUsage,
	}
}

func (o *Orchestrator) CurrentModel() string {
	if o.provider == nil {
		return ""
	}
	return o.provider.CurrentModel()
}

// ProviderName 返回后端名称 / ProviderName names the model backend
func (o *Orchestrator) ProviderName() string {
	if o.provider == nil {
		return ""
	}
	return o.provider.Name()
}

// ListModels 列出后端可用的模型
// ListModels lists the models the backend offers
func (o *Orchestrator) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	if o.provider == nil {
		return nil, fmt.Errorf("provider unavailable")
	}
	return o.provider.ListModels(ctx)
}

// ToolNames 返回模型可调用的工具名
// ToolNames returns the tools the model may call
func (o *Orchestrator) ToolNames() []string {
	if o.registry == nil {
		return nil
	}
	return o.registry.Names()
}

func (o *Orchestrator) SetModel(model string) error {
	if o.provider == nil {
		return fmt.Errorf("provider unavailable")
	}
	if err := o.provider.SetModel(model); err != nil {
		return err
	}
	current := o.provider.CurrentModel()

	var counter *tokens.Counter
	if !o.fixedCounter {
		counter = o.newCounter(current)
	}
	o.mu.Lock()
	if counter != nil {
		o.counter = counter
	}
	if !o.fixedLimit {
		o.contextLimit = tokens.ContextLimit(current)
	}
	limit := o.contextLimit
	o.mu.Unlock()

	o.logger.Info("model switched", "model", current, "context_limit", limit)
	return nil
}

func (o *Orchestrator) SetToolEventCallback(fn ToolEventFunc) {
	o.onToolEvent = fn
}

func (o *Orchestrator) SetPlanCallback(fn PlanFunc) {
	o.onPlan = fn
}

func (o *Orchestrator) SetContextUpdateCallback(fn OnContextUpdate) {
	o.onContextUpdate = fn
}

func (o *Orchestrator) emitContextUpdate() {
	if o.onContextUpdate != nil {
		o.onContextUpdate(o.CurrentContextStats())
	}
}

// persist 把本轮新增的消息写入会话存储
// persist appends messages added since the last flush to the transcript store
func (o *Orchestrator) persist(ctx context.Context) error {
	if o.store == nil || o.sessionID == "" {
		return nil
	}
	o.mu.Lock()
	start := o.persistedN
	pending := append([]chat.Message(nil), o.messages[start:]...)
	o.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}
	if err := o.store.AppendMessages(ctx, o.sessionID, start, pending); err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}
	o.mu.Lock()
	o.persistedN = start + len(pending)
	o.mu.Unlock()
	return nil
}
