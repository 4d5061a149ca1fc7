package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
)

const appName = "todoagent"

type ProviderConfig struct {
	BaseURL    string `json:"base_url" validate:"required,url"`
	Model      string `json:"model" validate:"required"`
	APIKey     string `json:"api_key"`
	TimeoutMS  int    `json:"timeout_ms" validate:"gte=0"`
	MaxRetries int    `json:"max_retries" validate:"gte=0,lte=10"`
}

type RuntimeConfig struct {
	MaxSteps int `json:"max_steps" validate:"gte=1,lte=256"`
	// ObservationRole 工具结果回传时使用的消息角色
	// ObservationRole is the chat role tool results are sent back with
	ObservationRole   string `json:"observation_role" validate:"oneof=developer user system"`
	ContextTokenLimit int    `json:"context_token_limit" validate:"gte=0"`
	// PromptExtra 追加到系统提示末尾 / PromptExtra is appended to the system prompt
	PromptExtra string `json:"prompt_extra"`
}

type StorageConfig struct {
	DBPath      string `json:"db_path" validate:"required"`
	HistoryFile string `json:"history_file"`
	LogFile     string `json:"log_file"`
}

type UIConfig struct {
	Prompt   string `json:"prompt"`
	Verbose  bool   `json:"verbose"`
	Markdown bool   `json:"markdown"`
}

type Config struct {
	Provider ProviderConfig `json:"provider"`
	Runtime  RuntimeConfig  `json:"runtime"`
	Storage  StorageConfig  `json:"storage"`
	UI       UIConfig       `json:"ui"`
}

// 文件层用指针字段，区分“未设置”和显式的零值（如 max_retries: 0）
// File-layer structs use pointers so an explicit zero (max_retries: 0) is distinguishable from unset
type fileProviderConfig struct {
	BaseURL    *string `json:"base_url"`
	Model      *string `json:"model"`
	APIKey     *string `json:"api_key"`
	TimeoutMS  *int    `json:"timeout_ms"`
	MaxRetries *int    `json:"max_retries"`
}

type fileRuntimeConfig struct {
	MaxSteps          *int    `json:"max_steps"`
	ObservationRole   *string `json:"observation_role"`
	ContextTokenLimit *int    `json:"context_token_limit"`
	PromptExtra       *string `json:"prompt_extra"`
}

type fileStorageConfig struct {
	DBPath      *string `json:"db_path"`
	HistoryFile *string `json:"history_file"`
	LogFile     *string `json:"log_file"`
}

type fileUIConfig struct {
	Prompt   *string `json:"prompt"`
	Verbose  *bool   `json:"verbose"`
	Markdown *bool   `json:"markdown"`
}

type fileConfig struct {
	Provider *fileProviderConfig `json:"provider"`
	Runtime  *fileRuntimeConfig  `json:"runtime"`
	Storage  *fileStorageConfig  `json:"storage"`
	UI       *fileUIConfig       `json:"ui"`
}

// Overrides 命令行参数，优先级最高
// Overrides carries command-line flags, which win over files and env
type Overrides struct {
	DBPath  string
	Model   string
	BaseURL string
}

func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

func Default() Config {
	state := StateDir()
	return Config{
		Provider: ProviderConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-3.5-turbo-0125",
			TimeoutMS:  120000,
			MaxRetries: 2,
		},
		Runtime: RuntimeConfig{
			MaxSteps:        16,
			ObservationRole: "developer",
		},
		Storage: StorageConfig{
			DBPath:      filepath.Join(state, "todos.db"),
			HistoryFile: filepath.Join(state, "history"),
			LogFile:     filepath.Join(state, "todoagent.log"),
		},
		UI: UIConfig{
			Prompt: ">> ",
		},
	}
}

// Loader 按 默认值 → 全局配置 → 项目配置 → 环境变量 → 命令行 的顺序合并配置
// Loader merges defaults, global config, project config, env and flags in that order
type Loader struct {
	fs     afero.Fs
	getenv func(string) string
	home   string
	cwd    string
}

func NewLoader(fs afero.Fs) *Loader {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return &Loader{fs: fs, getenv: os.Getenv, home: home, cwd: cwd}
}

// Load 使用真实文件系统加载配置
// Load reads configuration from the real filesystem
func Load(path string, ov Overrides) (Config, error) {
	return NewLoader(afero.NewOsFs()).Load(path, ov)
}

func (l *Loader) Load(path string, ov Overrides) (Config, error) {
	cfg := Default()

	for _, globalPath := range l.globalConfigPaths() {
		if err := l.mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(l.getenv("TODOAGENT_CONFIG_PATH")); envPath != "" && resolvedPath == "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = l.findProjectConfigPath()
	} else if _, err := l.fs.Stat(l.expandPath(resolvedPath)); err != nil {
		return Config{}, fmt.Errorf("config file %q: %w", resolvedPath, err)
	}
	if err := l.mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := l.applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyOverrides(&cfg, ov)
	l.normalize(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) globalConfigPaths() []string {
	paths := []string{filepath.Join(xdg.ConfigHome, appName, "config.json")}
	if l.home != "" {
		paths = append(paths, filepath.Join(l.home, "."+appName, "config.json"))
	}
	return paths
}

func (l *Loader) findProjectConfigPath() string {
	candidates := []string{
		appName + ".config.json",
		filepath.Join("."+appName, "config.json"),
	}
	for _, c := range candidates {
		p := filepath.Join(l.cwd, c)
		if _, err := l.fs.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (l *Loader) mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	resolved := l.expandPath(path)

	data, err := afero.ReadFile(l.fs, resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(stripJSONComments(data), &fc); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fc)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if p := fc.Provider; p != nil {
		setString(&cfg.Provider.BaseURL, p.BaseURL)
		setString(&cfg.Provider.Model, p.Model)
		setString(&cfg.Provider.APIKey, p.APIKey)
		setInt(&cfg.Provider.TimeoutMS, p.TimeoutMS)
		setInt(&cfg.Provider.MaxRetries, p.MaxRetries)
	}
	if r := fc.Runtime; r != nil {
		setInt(&cfg.Runtime.MaxSteps, r.MaxSteps)
		setString(&cfg.Runtime.ObservationRole, r.ObservationRole)
		setInt(&cfg.Runtime.ContextTokenLimit, r.ContextTokenLimit)
		if r.PromptExtra != nil {
			cfg.Runtime.PromptExtra = *r.PromptExtra
		}
	}
	if st := fc.Storage; st != nil {
		setString(&cfg.Storage.DBPath, st.DBPath)
		setString(&cfg.Storage.HistoryFile, st.HistoryFile)
		setString(&cfg.Storage.LogFile, st.LogFile)
	}
	if ui := fc.UI; ui != nil {
		if ui.Prompt != nil {
			cfg.UI.Prompt = *ui.Prompt
		}
		if ui.Verbose != nil {
			cfg.UI.Verbose = *ui.Verbose
		}
		if ui.Markdown != nil {
			cfg.UI.Markdown = *ui.Markdown
		}
	}
}

// setString 只接受非空白字符串 / setString ignores a missing or blank value
func setString(dst *string, v *string) {
	if v != nil && strings.TrimSpace(*v) != "" {
		*dst = *v
	}
}

// setInt 接受任何显式给出的值，包括 0；范围交给 Validate
// setInt takes any explicit value including 0; ranges are left to Validate
func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func (l *Loader) applyEnv(cfg *Config) error {
	// 环境变量覆盖文件里的 api_key；TODOAGENT_API_KEY 优先于 OPENAI_API_KEY
	// env beats a file api_key; TODOAGENT_API_KEY wins over OPENAI_API_KEY
	if v := strings.TrimSpace(l.getenv("TODOAGENT_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(l.getenv("OPENAI_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(l.getenv("TODOAGENT_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(l.getenv("TODOAGENT_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(l.getenv("TODOAGENT_DB_PATH")); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := strings.TrimSpace(l.getenv("TODOAGENT_MAX_STEPS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid TODOAGENT_MAX_STEPS: %q", v)
		}
		cfg.Runtime.MaxSteps = n
	}
	return nil
}

func applyOverrides(cfg *Config, ov Overrides) {
	if v := strings.TrimSpace(ov.DBPath); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := strings.TrimSpace(ov.Model); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(ov.BaseURL); v != "" {
		cfg.Provider.BaseURL = v
	}
}

func (l *Loader) normalize(cfg *Config) {
	cfg.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Provider.BaseURL), "/")
	cfg.Provider.Model = strings.TrimSpace(cfg.Provider.Model)
	cfg.Runtime.ObservationRole = strings.ToLower(strings.TrimSpace(cfg.Runtime.ObservationRole))
	if cfg.Storage.DBPath != ":memory:" {
		cfg.Storage.DBPath = l.expandPath(cfg.Storage.DBPath)
	}
	cfg.Storage.HistoryFile = l.expandPath(cfg.Storage.HistoryFile)
	cfg.Storage.LogFile = l.expandPath(cfg.Storage.LogFile)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验合并后的配置
// Validate checks the merged configuration against its struct tags
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", e.Namespace(), e.Tag(), e.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (l *Loader) expandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if (path == "~" || strings.HasPrefix(path, "~/")) && l.home != "" {
		path = filepath.Join(l.home, strings.TrimPrefix(path, "~"))
	}
	if !filepath.IsAbs(path) && l.cwd != "" {
		path = filepath.Join(l.cwd, path)
	}
	return filepath.Clean(path)
}

// stripJSONComments 去掉 // 与 /* */ 注释（字符串内除外）
// stripJSONComments removes // and /* */ comments outside of strings
func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}
	return out.Bytes()
}
