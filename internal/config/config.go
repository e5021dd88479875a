package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Agents    AgentsConfig    `yaml:"agents"`
	Runner    RunnerConfig    `yaml:"runner"`
	Store     StoreConfig     `yaml:"store"`
	NATS      NATSConfig      `yaml:"nats"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	MaxRetries int    `yaml:"max_retries"`
}

type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// GeminiConfig targets Gemini through its OpenAI-compatible endpoint.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type AgentModel struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type AgentsConfig struct {
	Chat         AgentModel `yaml:"chat"`
	Orchestrator AgentModel `yaml:"orchestrator"`
	Triage       AgentModel `yaml:"triage"`
	Support      AgentModel `yaml:"support"`
	Escalation   AgentModel `yaml:"escalation"`
}

type RunnerConfig struct {
	MaxRoundTrips      int           `yaml:"max_round_trips"`
	ModelTimeout       time.Duration `yaml:"model_timeout"`
	ToolTimeout        time.Duration `yaml:"tool_timeout"`
	MaxParallelTools   int           `yaml:"max_parallel_tools"`
	MaxConcurrentRuns  int           `yaml:"max_concurrent_runs"`
	FailOnHandoffError bool          `yaml:"fail_on_handoff_error"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // memory or sqlite
	Path   string `yaml:"path"`
}

// NATSConfig enables run event publishing. With URL empty an embedded
// server listens on Port.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Port    int    `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text or console
}

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"

	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model:      "gpt-5",
			MaxRetries: 2,
		},
		Gemini: GeminiConfig{
			BaseURL: DefaultGeminiBaseURL,
		},
		Agents: AgentsConfig{
			Chat:         AgentModel{Model: "gpt-5", MaxTokens: 1000},
			Orchestrator: AgentModel{Model: "gpt-5"},
			Triage:       AgentModel{Model: "gpt-5-nano"},
			Support:      AgentModel{Model: "gpt-5"},
			Escalation:   AgentModel{Model: "gemini-2.5-flash"},
		},
		Runner: RunnerConfig{
			MaxRoundTrips:    10,
			ModelTimeout:     60 * time.Second,
			ToolTimeout:      15 * time.Second,
			MaxParallelTools: 4,
		},
		Store: StoreConfig{
			Driver: StoreMemory,
			Path:   "data/agentproxy.db",
		},
		NATS: NATSConfig{
			Port: 4222,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func Load() (*Config, error) {
	path := os.Getenv("AGENTPROXY_CONFIG")
	if path == "" {
		path = "config/agentproxy.yaml"
	}
	return LoadFile(path)
}

// LoadFile reads path (a missing file means defaults), then applies
// environment overrides and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("AGENTPROXY_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("AGENTPROXY_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("AGENTPROXY_NATS_URL"); v != "" {
		cfg.NATS.Enabled = true
		cfg.NATS.URL = v
	}
	if v := os.Getenv("AGENTPROXY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("AGENTPROXY_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be %q or %q", c.Store.Driver, StoreMemory, StoreSQLite))
	}

	switch c.Log.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json, text or console", c.Log.Format))
	}

	if c.Runner.ModelTimeout < 0 || c.Runner.ToolTimeout < 0 {
		errs = append(errs, errors.New("runner timeouts must not be negative"))
	}

	return errors.Join(errs...)
}

// ApplyProviderFallbacks points agents at the OpenAI default model when their
// configured model needs a provider without credentials. It returns one
// warning per rewritten agent.
func (c *Config) ApplyProviderFallbacks() []string {
	var warnings []string

	for name, am := range c.Agents.byName() {
		var provider string

		switch {
		case strings.HasPrefix(am.Model, "gemini-") && c.Gemini.APIKey == "":
			provider = "gemini"
		case strings.HasPrefix(am.Model, "claude-") && c.Anthropic.APIKey == "":
			provider = "anthropic"
		default:
			continue
		}

		warnings = append(warnings, fmt.Sprintf("agent %s: no %s api key, using %s instead of %s", name, provider, c.OpenAI.Model, am.Model))
		am.Model = c.OpenAI.Model
	}

	slices.Sort(warnings)

	return warnings
}

func (a *AgentsConfig) byName() map[string]*AgentModel {
	return map[string]*AgentModel{
		"chat":         &a.Chat,
		"orchestrator": &a.Orchestrator,
		"triage":       &a.Triage,
		"support":      &a.Support,
		"escalation":   &a.Escalation,
	}
}
