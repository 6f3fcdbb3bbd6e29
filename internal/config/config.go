package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds pipeline configuration derived from environment variables,
// optionally layered over a YAML tuning file. Env wins over file, file
// over defaults.
type Config struct {
	SheetExportURL string

	STTAPIURL string
	STTAPIKey string

	LLMGatewayURL  string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64

	OutputDir     string
	TempAudioDir  string
	LedgerPath    string
	MaxConcurrent int
	DeleteAudio   bool

	// VocabularyHints bias STT recognition toward domain terms.
	VocabularyHints []string
}

type fileConfig struct {
	VocabularyHints []string `yaml:"vocabulary_hints"`
	LLMModel        string   `yaml:"llm_model"`
	LLMTemperature  *float64 `yaml:"llm_temperature"`
}

const (
	defaultSTTAPIURL     = "https://api.soniox.com"
	defaultOutputDir     = "processed_calls"
	defaultTempAudioDir  = "temp_audio"
	defaultMaxConcurrent = 3
	defaultLLMModel      = "gpt-4o-mini"
	defaultTemperature   = 0.3
)

// Default recognition hints for partner support calls. Overridable via the
// vocabulary_hints list in the tuning file.
var defaultVocabularyHints = []string{
	"station", "swap station", "penalty", "connector", "battery",
	"subscription", "recharge", "rider", "swap",
}

// Load reads configuration from the environment, applying the optional
// tuning file at PIPELINE_CONFIG_PATH first.
func Load() (Config, error) {
	cfg := Config{
		SheetExportURL:  os.Getenv("SHEET_EXPORT_URL"),
		STTAPIURL:       getEnv("STT_API_URL", defaultSTTAPIURL),
		STTAPIKey:       os.Getenv("STT_API_KEY"),
		LLMGatewayURL:   os.Getenv("LLM_GATEWAY_URL"),
		LLMAPIKey:       os.Getenv("LLM_API_KEY"),
		LLMModel:        defaultLLMModel,
		LLMTemperature:  defaultTemperature,
		OutputDir:       getEnv("OUTPUT_DIR", defaultOutputDir),
		TempAudioDir:    getEnv("TEMP_AUDIO_DIR", defaultTempAudioDir),
		LedgerPath:      os.Getenv("LEDGER_PATH"),
		MaxConcurrent:   defaultMaxConcurrent,
		DeleteAudio:     parseBoolEnv("DELETE_AUDIO_AFTER_PROCESSING"),
		VocabularyHints: append([]string(nil), defaultVocabularyHints...),
	}

	if path := os.Getenv("PIPELINE_CONFIG_PATH"); path != "" {
		fc, err := loadFileConfig(path)
		if err != nil {
			return Config{}, fmt.Errorf("tuning file %s: %w", path, err)
		}
		if len(fc.VocabularyHints) > 0 {
			cfg.VocabularyHints = fc.VocabularyHints
		}
		if fc.LLMModel != "" {
			cfg.LLMModel = fc.LLMModel
		}
		if fc.LLMTemperature != nil {
			cfg.LLMTemperature = *fc.LLMTemperature
		}
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("MAX_CONCURRENT_CALLS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("MAX_CONCURRENT_CALLS must be a positive integer, got %q", v)
		}
		cfg.MaxConcurrent = n
	}

	return cfg, nil
}

// Validate checks the settings a batch run cannot start without.
func (c Config) Validate() error {
	if c.SheetExportURL == "" {
		return errors.New("SHEET_EXPORT_URL not set")
	}
	if c.STTAPIKey == "" {
		return errors.New("STT_API_KEY not set")
	}
	if c.LLMGatewayURL == "" || c.LLMAPIKey == "" {
		return errors.New("llm gateway not configured (LLM_GATEWAY_URL / LLM_API_KEY)")
	}
	return nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}
