// Package config loads the tutorcore configuration from a file and the
// environment.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. TUTORCORE_LOG_LEVEL.
const EnvPrefix = "TUTORCORE"

type Config struct {
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Circuit       CircuitConfig       `mapstructure:"circuit"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	LLM     VendorConfig `mapstructure:"llm"`
	Speech  VendorConfig `mapstructure:"speech"`
	Storage VendorConfig `mapstructure:"storage"`
}

type ChatConfig struct {
	SystemPrompt      string   `mapstructure:"system_prompt"`
	FallbackText      string   `mapstructure:"fallback_text"`
	TopP              float64  `mapstructure:"top_p"`
	TopK              int      `mapstructure:"top_k"`
	MaxTokens         int      `mapstructure:"max_tokens"`
	Temperature       float64  `mapstructure:"temperature"`
	RepetitionPenalty float64  `mapstructure:"repetition_penalty"`
	Stop              []string `mapstructure:"stop"`
	Seed              int      `mapstructure:"seed"`
	IncludeAIFilters  bool     `mapstructure:"include_ai_filters"`
	TimeoutMS         int      `mapstructure:"timeout_ms"`
	MaxHistory        int      `mapstructure:"max_history"`
}

func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type AnalysisConfig struct {
	Instruction      string  `mapstructure:"instruction"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature"`
	IncludeAIFilters bool    `mapstructure:"include_ai_filters"`
	// Timezone is the IANA zone used for due dates without an offset.
	Timezone string `mapstructure:"timezone"`
}

// Location resolves Timezone, falling back to UTC when it is empty.
func (c AnalysisConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

type TranscriptionConfig struct {
	Languages       []string `mapstructure:"languages"`
	DefaultLanguage string   `mapstructure:"default_language"`
	Mode            string   `mapstructure:"mode"`
	ResultPrefix    string   `mapstructure:"result_prefix"`
	ResultSuffix    string   `mapstructure:"result_suffix"`
	UploadPrefix    string   `mapstructure:"upload_prefix"`
	WordAlignment   bool     `mapstructure:"word_alignment"`
	FullText        bool     `mapstructure:"full_text"`
	Diarization     bool     `mapstructure:"diarization"`
	PollIntervalMS  int      `mapstructure:"poll_interval_ms"`
	TurnaroundTTLMS int      `mapstructure:"turnaround_ttl_ms"`
}

func (c TranscriptionConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// TurnaroundTTL is how long an unresolved async job is tracked for
// turnaround reporting.
func (c TranscriptionConfig) TurnaroundTTL() time.Duration {
	return time.Duration(c.TurnaroundTTLMS) * time.Millisecond
}

type CircuitConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Threshold  int  `mapstructure:"threshold"`
	CooldownMS int  `mapstructure:"cooldown_ms"`
}

type MetricsConfig struct {
	JSONLPath  string `mapstructure:"jsonl_path"`
	Prometheus bool   `mapstructure:"prometheus"`
	Listen     string `mapstructure:"listen"`
	Async      bool   `mapstructure:"async"`
	// SampleRate thins out per-frame stream events; 1 keeps all of them.
	SampleRate float64 `mapstructure:"sample_rate"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vendors.llm.provider", "clova")
	v.SetDefault("vendors.speech.provider", "clova")
	v.SetDefault("vendors.storage.provider", "s3")
	v.SetDefault("chat.fallback_text", "I'm sorry, I cannot respond right now.")
	v.SetDefault("chat.top_p", 0.8)
	v.SetDefault("chat.top_k", 0)
	v.SetDefault("chat.max_tokens", 553)
	v.SetDefault("chat.temperature", 0.5)
	v.SetDefault("chat.repetition_penalty", 1.1)
	v.SetDefault("chat.stop", []string{})
	v.SetDefault("chat.seed", 0)
	v.SetDefault("chat.include_ai_filters", true)
	v.SetDefault("chat.timeout_ms", 60000)
	v.SetDefault("chat.max_history", 0)
	v.SetDefault("analysis.instruction", "")
	v.SetDefault("analysis.max_tokens", 2048)
	v.SetDefault("analysis.temperature", 0.5)
	v.SetDefault("analysis.include_ai_filters", true)
	v.SetDefault("analysis.timezone", "")
	v.SetDefault("transcription.languages", []string{"ko-KR", "en-US", "enko", "ja", "zh-cn", "zh-tw"})
	v.SetDefault("transcription.default_language", "ko-KR")
	v.SetDefault("transcription.mode", "sync")
	v.SetDefault("transcription.result_prefix", "")
	v.SetDefault("transcription.result_suffix", ".json")
	v.SetDefault("transcription.upload_prefix", "audio-storage")
	v.SetDefault("transcription.word_alignment", true)
	v.SetDefault("transcription.full_text", true)
	v.SetDefault("transcription.diarization", false)
	v.SetDefault("transcription.poll_interval_ms", 5000)
	v.SetDefault("transcription.turnaround_ttl_ms", 86400000)
	v.SetDefault("circuit.enabled", false)
	v.SetDefault("circuit.threshold", 3)
	v.SetDefault("circuit.cooldown_ms", 30000)
	v.SetDefault("metrics.jsonl_path", "")
	v.SetDefault("metrics.prometheus", false)
	v.SetDefault("metrics.listen", ":9090")
	v.SetDefault("metrics.async", true)
	v.SetDefault("metrics.sample_rate", 1.0)
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads the config file at path, applies defaults and TUTORCORE_*
// environment overrides, expands ${VAR} references and validates the result.
// An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errorsx.Wrap(fmt.Errorf("read config: %w", err), errorsx.ReasonConfig)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errorsx.Wrap(fmt.Errorf("unmarshal: %w", err), errorsx.ReasonConfig)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, errorsx.Wrap(fmt.Errorf("validate config: %w", err), errorsx.ReasonConfig)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Speech.Provider) == "" {
		return fmt.Errorf("vendors.speech.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Storage.Provider) == "" {
		return fmt.Errorf("vendors.storage.provider is required")
	}
	switch strings.ToLower(c.Transcription.Mode) {
	case "sync", "async":
	default:
		return fmt.Errorf("transcription.mode must be sync or async, got %q", c.Transcription.Mode)
	}
	if len(c.Transcription.Languages) == 0 {
		return fmt.Errorf("transcription.languages must not be empty")
	}
	if _, err := c.Analysis.Location(); err != nil {
		return fmt.Errorf("analysis.timezone: %w", err)
	}
	if c.Chat.TimeoutMS < 0 {
		return fmt.Errorf("chat.timeout_ms must not be negative")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Vendors.Speech.Settings = expandSettings(cfg.Vendors.Speech.Settings)
	cfg.Vendors.Storage.Settings = expandSettings(cfg.Vendors.Storage.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
