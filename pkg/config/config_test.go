package config

import (
	"testing"
	"time"
)

func TestCorrectionDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaultValues()

	if cfg.MaxIterations != 5 {
		t.Errorf("Expected MaxIterations to be 5, got %d", cfg.MaxIterations)
	}

	if cfg.Provider != ProviderOllama {
		t.Errorf("Expected Provider to be %q, got %q", ProviderOllama, cfg.Provider)
	}

	if cfg.Model != defaultOllamaModel {
		t.Errorf("Expected Model to be %q, got %q", defaultOllamaModel, cfg.Model)
	}

	if cfg.DiagnosticsFile != ".mend/diagnostics.json" {
		t.Errorf("Expected default diagnostics file, got %q", cfg.DiagnosticsFile)
	}
}

func TestStabilizationDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaultValues()

	if got := cfg.StabilizationInterval(); got != 400*time.Millisecond {
		t.Errorf("Expected stabilization interval 400ms, got %v", got)
	}

	if cfg.StabilizationStableChecks != 2 {
		t.Errorf("Expected 2 stable checks, got %d", cfg.StabilizationStableChecks)
	}

	if got := cfg.StabilizationTimeout(); got != 15*time.Second {
		t.Errorf("Expected stabilization timeout 15s, got %v", got)
	}

	if got := cfg.StabilizationBackoffCap(); got != 2*time.Second {
		t.Errorf("Expected backoff cap 2s, got %v", got)
	}
}

func TestDefaultsPreserveOverrides(t *testing.T) {
	cfg := &Config{
		Provider:                 ProviderOpenAI,
		Model:                    "custom-model",
		MaxIterations:            3,
		StabilizationIntervalMs:  100,
		StabilizationTimeoutSecs: 5,
	}
	cfg.setDefaultValues()

	if cfg.Provider != ProviderOpenAI {
		t.Errorf("Expected Provider to stay %q, got %q", ProviderOpenAI, cfg.Provider)
	}

	if cfg.Model != "custom-model" {
		t.Errorf("Expected Model to stay custom-model, got %q", cfg.Model)
	}

	if cfg.MaxIterations != 3 {
		t.Errorf("Expected MaxIterations to stay 3, got %d", cfg.MaxIterations)
	}

	if got := cfg.StabilizationInterval(); got != 100*time.Millisecond {
		t.Errorf("Expected stabilization interval 100ms, got %v", got)
	}
}

func TestOpenAIModelDefault(t *testing.T) {
	cfg := &Config{Provider: ProviderOpenAI}
	cfg.setDefaultValues()

	if cfg.Model != defaultOpenAIModel {
		t.Errorf("Expected Model to be %q, got %q", defaultOpenAIModel, cfg.Model)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MEND_PROVIDER", "openai")
	t.Setenv("MEND_MODEL", "env-model")

	cfg := &Config{}
	cfg.setDefaultValues()
	cfg.applyEnvOverrides()

	if cfg.Provider != "openai" {
		t.Errorf("Expected env provider override, got %q", cfg.Provider)
	}

	if cfg.Model != "env-model" {
		t.Errorf("Expected env model override, got %q", cfg.Model)
	}
}
