package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mendtool/mend/pkg/utils"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	defaultOllamaModel = "qwen2.5-coder:7b"
	defaultOpenAIModel = "gpt-4o-mini"
)

type Config struct {
	Provider        string  `json:"provider"` // "ollama" or "openai"
	Model           string  `json:"model"`
	OllamaServerURL string  `json:"ollama_server_url"`
	OpenAIBaseURL   string  `json:"openai_base_url,omitempty"` // For OpenAI-compatible gateways
	Temperature     float64 `json:"temperature"`
	MaxTokens       int     `json:"max_tokens"`

	// Correction loop
	MaxIterations int `json:"max_iterations"`

	// Diagnostic stabilization
	StabilizationIntervalMs   int `json:"stabilization_interval_ms"`
	StabilizationStableChecks int `json:"stabilization_stable_checks"`
	StabilizationTimeoutSecs  int `json:"stabilization_timeout_secs"`
	StabilizationBackoffCapMs int `json:"stabilization_backoff_cap_ms"`

	// Workspace
	DiagnosticsFile    string `json:"diagnostics_file"`
	ChangeLogFile      string `json:"change_log_file"`
	CommandTimeoutSecs int    `json:"command_timeout_secs"`
	UIListenAddr       string `json:"ui_listen_addr"`

	SkipPrompt bool `json:"-"` // Internal use, not saved to config
	UIEnabled  bool `json:"-"` // Internal use, not saved to config
}

func getHomeConfigPath() (string, string) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	configDir := filepath.Join(home, ".mend")
	return configDir, filepath.Join(configDir, "config.json")
}

func getCurrentConfigPath() (string, string) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", ""
	}
	configDir := filepath.Join(cwd, ".mend")
	return configDir, filepath.Join(configDir, "config.json")
}

func (cfg *Config) setDefaultValues() {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOllama
	}
	if cfg.Model == "" {
		if cfg.Provider == ProviderOpenAI {
			cfg.Model = defaultOpenAIModel
		} else {
			cfg.Model = defaultOllamaModel
		}
	}
	if cfg.OllamaServerURL == "" {
		cfg.OllamaServerURL = "http://localhost:11434"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1 // Very low temperature for consistency
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 5
	}
	if cfg.StabilizationIntervalMs == 0 {
		cfg.StabilizationIntervalMs = 400
	}
	if cfg.StabilizationStableChecks == 0 {
		cfg.StabilizationStableChecks = 2
	}
	if cfg.StabilizationTimeoutSecs == 0 {
		cfg.StabilizationTimeoutSecs = 15
	}
	if cfg.StabilizationBackoffCapMs == 0 {
		cfg.StabilizationBackoffCapMs = 2000
	}
	if cfg.DiagnosticsFile == "" {
		cfg.DiagnosticsFile = ".mend/diagnostics.json"
	}
	if cfg.ChangeLogFile == "" {
		cfg.ChangeLogFile = ".mend/changes.jsonl"
	}
	if cfg.CommandTimeoutSecs == 0 {
		cfg.CommandTimeoutSecs = 20
	}
	if cfg.UIListenAddr == "" {
		cfg.UIListenAddr = "127.0.0.1:8737"
	}
}

// applyEnvOverrides lets the environment win over the config file for the
// fields an editor integration commonly injects.
func (cfg *Config) applyEnvOverrides() {
	if v := os.Getenv("MEND_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("MEND_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MEND_DIAGNOSTICS_FILE"); v != "" {
		cfg.DiagnosticsFile = v
	}
}

// StabilizationInterval returns the base poll interval for diagnostic
// stabilization.
func (cfg *Config) StabilizationInterval() time.Duration {
	return time.Duration(cfg.StabilizationIntervalMs) * time.Millisecond
}

// StabilizationTimeout returns the soft deadline for diagnostic stabilization.
func (cfg *Config) StabilizationTimeout() time.Duration {
	return time.Duration(cfg.StabilizationTimeoutSecs) * time.Second
}

// StabilizationBackoffCap returns the maximum extra backoff added on top of
// the base interval while diagnostics keep changing.
func (cfg *Config) StabilizationBackoffCap() time.Duration {
	return time.Duration(cfg.StabilizationBackoffCapMs) * time.Millisecond
}

// CommandTimeout returns the per-command execution timeout.
func (cfg *Config) CommandTimeout() time.Duration {
	return time.Duration(cfg.CommandTimeoutSecs) * time.Second
}

func loadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// Ensure all fields have a value, especially ones not in older configs.
	cfg.setDefaultValues()
	cfg.applyEnvOverrides()
	return &cfg, nil
}

func saveConfig(filePath string, cfg *Config) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

func createConfig(filePath string, skipPrompt bool) (*Config, error) {
	cfg := &Config{}

	if !skipPrompt {
		reader := bufio.NewReader(os.Stdin)

		fmt.Printf("Enter your preferred provider (ollama, openai) (default: %s): ", ProviderOllama)
		provider, _ := reader.ReadString('\n')
		cfg.Provider = strings.TrimSpace(strings.ToLower(provider))

		modelDefault := defaultOllamaModel
		if cfg.Provider == ProviderOpenAI {
			modelDefault = defaultOpenAIModel
		}
		fmt.Printf("Enter your preferred model (default: %s): ", modelDefault)
		model, _ := reader.ReadString('\n')
		cfg.Model = strings.TrimSpace(model)
	}

	cfg.setDefaultValues()

	if err := saveConfig(filePath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrInit loads the workspace config, falling back to the home config, and
// creates a default one when neither exists.
func LoadOrInit(skipPrompt bool) (*Config, error) {
	logger := utils.GetLogger(skipPrompt)

	_, currentConfigPath := getCurrentConfigPath()
	_, homeConfigPath := getHomeConfigPath()

	if _, err := os.Stat(currentConfigPath); err == nil {
		cfg, lerr := loadConfig(currentConfigPath)
		if lerr != nil {
			return nil, lerr
		}
		cfg.SkipPrompt = skipPrompt
		return cfg, nil
	}
	if _, err := os.Stat(homeConfigPath); err == nil {
		cfg, lerr := loadConfig(homeConfigPath)
		if lerr != nil {
			return nil, lerr
		}
		cfg.SkipPrompt = skipPrompt
		return cfg, nil
	}

	logger.LogUserInteraction("No config found. Creating a new one.")
	cfg, err := createConfig(homeConfigPath, skipPrompt)
	if err != nil {
		return nil, fmt.Errorf("could not create initial config: %w", err)
	}
	cfg.SkipPrompt = skipPrompt
	cfg.applyEnvOverrides()
	logger.LogUserInteraction(fmt.Sprintf("Config saved to %s", homeConfigPath))
	return cfg, nil
}

// InitConfig writes a fresh config into the current workspace's .mend
// directory.
func InitConfig(skipPrompt bool) error {
	logger := utils.GetLogger(skipPrompt)

	_, currentConfigPath := getCurrentConfigPath()
	_, err := createConfig(currentConfigPath, skipPrompt)
	if err != nil {
		return err
	}
	logger.LogUserInteraction(fmt.Sprintf("Config saved to %s", currentConfigPath))
	return nil
}
