package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"

	"todoagent/internal/chat"
	"todoagent/internal/config"
	"todoagent/internal/orchestrator"
	"todoagent/internal/prompt"
	"todoagent/internal/provider"
	"todoagent/internal/storage"
	"todoagent/internal/tools"
)

var errNoAPIKey = errors.New("no API key: set OPENAI_API_KEY or TODOAGENT_API_KEY")

func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.Config, config.Overrides{
		DBPath:  c.DB,
		Model:   c.Model,
		BaseURL: c.BaseURL,
	})
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore 加载配置并打开 SQLite 数据库
// openStore loads the config and opens the SQLite database
func (c *CLI) openStore(ctx context.Context) (config.Config, *storage.SQLiteStore, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	store, err := storage.NewSQLiteStore(ctx, cfg.Storage.DBPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init storage: %w", err)
	}
	return cfg, store, nil
}

type session struct {
	orch *orchestrator.Orchestrator
	id   string
}

// startSession 组装 provider、工具、系统提示和编排器；resume 非空时载入已保存的对话
// startSession wires provider, tools, system prompt and orchestrator; a non-empty resume loads a stored transcript
func startSession(ctx context.Context, cfg config.Config, store *storage.SQLiteStore, renderer orchestrator.Renderer, logger *slog.Logger, resume string) (*session, error) {
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		return nil, errNoAPIKey
	}

	registry := tools.NewRegistry(tools.TodoTools(store)...)
	systemPrompt, err := prompt.System(registry, cfg.Runtime.PromptExtra)
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	client := provider.NewOpenAIProvider(provider.OpenAIConfig{
		BaseURL:    cfg.Provider.BaseURL,
		APIKey:     cfg.Provider.APIKey,
		Model:      cfg.Provider.Model,
		TimeoutMS:  cfg.Provider.TimeoutMS,
		MaxRetries: cfg.Provider.MaxRetries,
		Logger:     logger,
	})

	var resumed []chat.Message
	sessionID := strings.TrimSpace(resume)
	if sessionID != "" {
		sess, err := store.LoadSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		msgs, err := store.LoadMessages(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		resumed = msgs
		logger.Info("resuming session", "session", sess.ID, "messages", len(msgs))
	} else {
		sessionID = storage.NewSessionID()
		if err := store.CreateSession(ctx, storage.Session{ID: sessionID, Model: client.CurrentModel()}); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	orch := orchestrator.New(client, registry, orchestrator.Options{
		MaxSteps:        cfg.Runtime.MaxSteps,
		SystemPrompt:    systemPrompt,
		ObservationRole: cfg.Runtime.ObservationRole,
		Store:           store,
		SessionID:       sessionID,
		Renderer:        renderer,
		ContextLimit:    cfg.Runtime.ContextTokenLimit,
		Logger:          logger,
	})
	if len(resumed) > 0 {
		orch.LoadMessages(resumed)
	}
	return &session{orch: orch, id: sessionID}, nil
}

// persistModel 把 /model 的选择写入当前目录的项目配置
// persistModel stores a /model switch in the project config of the working directory
func persistModel(model string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	return config.WriteProviderModel(afero.NewOsFs(), cwd, model)
}
