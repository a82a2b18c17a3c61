// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Durations are Go duration strings ("60s", "5m") in files and env.
// - Load errors wrap ErrLoadConfig, validation errors wrap ErrInvalidConfig.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// LogFile, when set, tees logs into a rotated file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":5001".
	Addr string `koanf:"addr"`

	// LLMHostURL is the chat-completions endpoint of the completion backend.
	LLMHostURL string `koanf:"llm_host_url"`

	// LLMModel is the default model name sent to the completion backend.
	LLMModel string `koanf:"llm_model"`

	// LLMAPIKey is optional; local backends usually ignore it.
	LLMAPIKey string `koanf:"llm_api_key"`

	// LLMTimeout bounds a single completion call.
	LLMTimeout time.Duration `koanf:"llm_timeout"`

	// LLMTemperature is the sampling temperature for completion calls.
	LLMTemperature float32 `koanf:"llm_temperature"`

	// LLMRatePerSec and LLMBurst throttle completion calls. Zero rate disables throttling.
	LLMRatePerSec float64 `koanf:"llm_rate_per_sec"`
	LLMBurst      int     `koanf:"llm_burst"`

	// GHListenerURL is the CAD-side HTTP endpoint used when no push channel exists.
	GHListenerURL string `koanf:"gh_listener_url"`

	// GHTimeout bounds the HTTP fallback delivery.
	GHTimeout time.Duration `koanf:"gh_timeout"`

	// TranscribeURL is the base URL of an OpenAI-compatible transcription API.
	// Empty disables POST /transcribe.
	TranscribeURL string `koanf:"transcribe_url"`

	// WhisperModel is the transcription model size, e.g. "base" or "small".
	WhisperModel string `koanf:"whisper_model"`

	// ResultTTL is how long a request stays retrievable after creation.
	ResultTTL time.Duration `koanf:"result_ttl"`

	// SweepInterval is the period of the expired-result sweep.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// ClampValues clamps accepted parameter values into their declared bounds.
	ClampValues bool `koanf:"clamp_values"`

	// CORSOrigins lists origins allowed to call the HTTP API.
	CORSOrigins []string `koanf:"cors_origins"`

	// WSSendBuffer is the per-connection outbound message buffer.
	WSSendBuffer int `koanf:"ws_send_buffer"`

	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsRefreshInterval is the period of the gauge refresh loops.
	MetricsRefreshInterval time.Duration `koanf:"metrics_refresh_interval"`

	// MetricsLabels are constant labels added to every metric, e.g. instance.
	MetricsLabels map[string]string `koanf:"metrics_labels"`

	// PromptWorkers is the number of goroutines running push prompts.
	// Zero runs them inline on the connection's read goroutine.
	PromptWorkers int `koanf:"prompt_workers"`

	// PromptQueueSize bounds push prompts waiting for a worker. A full
	// queue answers the client with a busy error.
	PromptQueueSize int `koanf:"prompt_queue_size"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":5001",
		LLMHostURL:      "http://localhost:11434/v1/chat/completions",
		LLMModel:        "llama3.2:1b",
		LLMTimeout:      60 * time.Second,
		LLMTemperature:  0.3,
		LLMBurst:        1,
		GHListenerURL:   "http://localhost:8090/params",
		GHTimeout:       10 * time.Second,
		WhisperModel:    "base",
		ResultTTL:       300 * time.Second,
		SweepInterval:   60 * time.Second,
		ClampValues:     true,
		CORSOrigins:     []string{"*"},
		WSSendBuffer:    256,
		PromptWorkers:   4,
		PromptQueueSize: 64,
		MetricsEnabled:  true,

		MetricsRefreshInterval: 10 * time.Second,
	}
}
