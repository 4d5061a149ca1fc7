package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// projectConfigPath 项目级配置文件 ./.todoagent/config.json
// projectConfigPath is the project-level ./.todoagent/config.json
func projectConfigPath(projectDir string) string {
	return filepath.Join(strings.TrimSpace(projectDir), "."+appName, "config.json")
}

// InitProjectConfig 在项目目录下写入配置模板；已存在则保持不变
// InitProjectConfig writes a config scaffold into projectDir and leaves an existing file untouched
func InitProjectConfig(fs afero.Fs, projectDir string) (string, bool, error) {
	path := projectConfigPath(projectDir)
	info, err := fs.Stat(path)
	if err == nil {
		if info.IsDir() {
			return path, false, fmt.Errorf("project config path is a directory: %s", path)
		}
		return path, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return path, false, fmt.Errorf("stat project config: %w", err)
	}

	scaffold := map[string]any{
		"provider": map[string]any{
			"model":    Default().Provider.Model,
			"base_url": Default().Provider.BaseURL,
		},
		"runtime": map[string]any{
			"max_steps":        Default().Runtime.MaxSteps,
			"observation_role": Default().Runtime.ObservationRole,
		},
		"ui": map[string]any{
			"verbose":  false,
			"markdown": false,
		},
	}
	if err := writeJSON(fs, path, scaffold); err != nil {
		return path, false, err
	}
	return path, true, nil
}

// WriteProviderModel 将 provider.model 写入项目配置；保留文件里的其他字段
// WriteProviderModel stores provider.model in the project config, keeping other keys
func WriteProviderModel(fs afero.Fs, projectDir, model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("model is empty")
	}
	path := projectConfigPath(projectDir)

	var out map[string]any
	if data, err := afero.ReadFile(fs, path); err == nil {
		if err := json.Unmarshal(stripJSONComments(data), &out); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if out == nil {
		out = make(map[string]any)
	}
	providerMap, _ := out["provider"].(map[string]any)
	if providerMap == nil {
		providerMap = make(map[string]any)
	}
	providerMap["model"] = model
	out["provider"] = providerMap
	return writeJSON(fs, path, out)
}

func writeJSON(fs afero.Fs, path string, v any) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := afero.WriteFile(fs, path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
