package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"todoagent/internal/chat"
	"todoagent/internal/provider"
	"todoagent/internal/tools"
)

// RunInput 处理一行用户输入：反复请求模型，直到得到 output
// RunInput handles one line of user input, calling the model until it replies with an output
func (o *Orchestrator) RunInput(ctx context.Context, input string, out io.Writer) (reply string, err error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}
	if o.provider == nil {
		return "", fmt.Errorf("provider unavailable")
	}
	if out == nil {
		out = io.Discard
	}

	userMsg, err := chat.NewUser(input).Encode()
	if err != nil {
		return "", err
	}
	o.appendMessage(chat.Message{Role: chat.RoleUser, Content: userMsg})

	defer func() {
		// 取消后仍保存已产生的消息 / keep the transcript even when the turn was cancelled
		if perr := o.persist(context.WithoutCancel(ctx)); perr != nil {
			if err == nil {
				err = perr
			} else {
				o.logger.Warn("transcript not saved", "session", o.sessionID, "err", perr)
			}
		}
	}()

	for step := 0; step < o.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		o.emitContextUpdate()

		resp, err := o.provider.Chat(ctx, provider.ChatRequest{
			Model:    o.provider.CurrentModel(),
			Messages: o.Messages(),
			JSONMode: true,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return "", ctxErr
			}
			return "", fmt.Errorf("provider chat: %w", err)
		}
		o.lastUsage = resp.Usage
		o.appendMessage(chat.Message{Role: chat.RoleAssistant, Content: resp.Content})

		env, err := chat.ParseEnvelope(resp.Content)
		if err != nil {
			return "", err
		}
		o.logger.Debug("model reply", "step", step, "type", env.Type, "finish_reason", resp.FinishReason)

		switch env.Type {
		case chat.TypeOutput:
			o.renderer.Output(out, env.Output)
			o.emitContextUpdate()
			return env.Output, nil
		case chat.TypePlan:
			if o.onPlan != nil {
				o.onPlan(env.Plan)
			}
			o.renderer.Plan(out, env.Plan)
		case chat.TypeAction:
			if err := o.runAction(ctx, env, out); err != nil {
				return "", err
			}
		default:
			o.logger.Debug("ignoring reply", "type", env.Type)
		}
	}
	return "", fmt.Errorf("%w (%d)", ErrMaxSteps, o.maxSteps)
}

// runAction 执行模型请求的工具，并把结果作为 observation 追加
// runAction executes the requested tool and appends its result as an observation
func (o *Orchestrator) runAction(ctx context.Context, env chat.Envelope, out io.Writer) error {
	if o.registry == nil {
		return fmt.Errorf("tool registry unavailable")
	}
	// 未知工具不触发工具事件 / unknown tools fail before any tool event fires
	if !o.registry.Has(env.Function) {
		return fmt.Errorf("%w: %q", tools.ErrUnknownTool, env.Function)
	}
	startSummary := env.Text()
	if o.onToolEvent != nil {
		o.onToolEvent(env.Function, startSummary, false)
	}
	o.renderer.ToolStart(out, env.Function, env.Input)
	o.logger.Info("tool call", "function", env.Function, "input", summarizeForLog(string(env.Input)))

	result, err := o.registry.Execute(ctx, env.Function, env.Input)
	if err != nil {
		return fmt.Errorf("tool %s: %w", env.Function, err)
	}

	obs, err := chat.NewObservation(result)
	if err != nil {
		return err
	}
	content, err := obs.Encode()
	if err != nil {
		return err
	}
	o.appendMessage(chat.Message{Role: o.observationRole, Content: content})

	summary := summarizeForLog(string(obs.Observation))
	if o.onToolEvent != nil {
		o.onToolEvent(env.Function, summary, true)
	}
	o.renderer.ToolResult(out, env.Function, summary)
	return nil
}

func summarizeForLog(s string) string {
	normalized := strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
	if normalized == "" {
		return "-"
	}
	const maxRunes = 220
	runes := []rune(normalized)
	if len(runes) <= maxRunes {
		return normalized
	}
	return string(runes[:maxRunes]) + "...(truncated)"
}
