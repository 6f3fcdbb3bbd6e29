package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearPipelineEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SHEET_EXPORT_URL", "STT_API_URL", "STT_API_KEY",
		"LLM_GATEWAY_URL", "LLM_API_KEY", "LLM_MODEL",
		"OUTPUT_DIR", "TEMP_AUDIO_DIR", "LEDGER_PATH",
		"MAX_CONCURRENT_CALLS", "DELETE_AUDIO_AFTER_PROCESSING",
		"PIPELINE_CONFIG_PATH",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearPipelineEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.STTAPIURL != "https://api.soniox.com" {
		t.Errorf("stt url = %q", cfg.STTAPIURL)
	}
	if cfg.OutputDir != "processed_calls" || cfg.TempAudioDir != "temp_audio" {
		t.Errorf("dirs = %q / %q", cfg.OutputDir, cfg.TempAudioDir)
	}
	if cfg.MaxConcurrent != 3 {
		t.Errorf("maxConcurrent = %d", cfg.MaxConcurrent)
	}
	if cfg.LLMModel != "gpt-4o-mini" || cfg.LLMTemperature != 0.3 {
		t.Errorf("llm = %q @ %v", cfg.LLMModel, cfg.LLMTemperature)
	}
	if cfg.DeleteAudio {
		t.Error("deleteAudio should default to false")
	}
	if len(cfg.VocabularyHints) == 0 {
		t.Error("default vocabulary hints missing")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearPipelineEnv(t)
	t.Setenv("SHEET_EXPORT_URL", "https://docs.google.com/export")
	t.Setenv("MAX_CONCURRENT_CALLS", "7")
	t.Setenv("DELETE_AUDIO_AFTER_PROCESSING", "true")
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("OUTPUT_DIR", "/tmp/artifacts")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SheetExportURL != "https://docs.google.com/export" {
		t.Errorf("sheet url = %q", cfg.SheetExportURL)
	}
	if cfg.MaxConcurrent != 7 {
		t.Errorf("maxConcurrent = %d", cfg.MaxConcurrent)
	}
	if !cfg.DeleteAudio {
		t.Error("deleteAudio not picked up")
	}
	if cfg.LLMModel != "gpt-4o" {
		t.Errorf("model = %q", cfg.LLMModel)
	}
	if cfg.OutputDir != "/tmp/artifacts" {
		t.Errorf("outputDir = %q", cfg.OutputDir)
	}
}

func TestLoadRejectsBadConcurrency(t *testing.T) {
	clearPipelineEnv(t)
	for _, v := range []string{"0", "-2", "many"} {
		t.Setenv("MAX_CONCURRENT_CALLS", v)
		if _, err := Load(); err == nil {
			t.Errorf("MAX_CONCURRENT_CALLS=%q accepted", v)
		}
	}
}

func TestLoadTuningFile(t *testing.T) {
	clearPipelineEnv(t)
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	body := "vocabulary_hints:\n  - chulha\n  - cylinder\nllm_model: file-model\nllm_temperature: 0.7\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PIPELINE_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.VocabularyHints) != 2 || cfg.VocabularyHints[0] != "chulha" {
		t.Errorf("hints = %v", cfg.VocabularyHints)
	}
	if cfg.LLMModel != "file-model" || cfg.LLMTemperature != 0.7 {
		t.Errorf("llm = %q @ %v", cfg.LLMModel, cfg.LLMTemperature)
	}

	// Env still wins over the file.
	t.Setenv("LLM_MODEL", "env-model")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLMModel != "env-model" {
		t.Errorf("model = %q, env should win over tuning file", cfg.LLMModel)
	}
}

func TestLoadTuningFileMissing(t *testing.T) {
	clearPipelineEnv(t)
	t.Setenv("PIPELINE_CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing tuning file")
	}
}

func TestValidate(t *testing.T) {
	full := Config{
		SheetExportURL: "https://sheet",
		STTAPIKey:      "k1",
		LLMGatewayURL:  "https://llm",
		LLMAPIKey:      "k2",
	}
	if err := full.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing sheet url", func(c *Config) { c.SheetExportURL = "" }},
		{"missing stt key", func(c *Config) { c.STTAPIKey = "" }},
		{"missing llm gateway", func(c *Config) { c.LLMGatewayURL = "" }},
		{"missing llm key", func(c *Config) { c.LLMAPIKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := full
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
