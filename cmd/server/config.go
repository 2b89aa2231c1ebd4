package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/services"
	"github.com/MegaGrindStone/chat-widget/internal/widget"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type providerBuilder interface {
	provider(systemPrompt string, logger *slog.Logger) (widget.Provider, error)
}

type config struct {
	Port           string         `yaml:"port" env:"CHATWIDGET_PORT"`
	LogLevel       string         `yaml:"logLevel" env:"CHATWIDGET_LOG_LEVEL"`
	LogFormat      string         `yaml:"logFormat" env:"CHATWIDGET_LOG_FORMAT"`
	SystemPrompt   string         `yaml:"systemPrompt" env:"CHATWIDGET_SYSTEM_PROMPT"`
	JournalPath    string         `yaml:"journalPath" env:"CHATWIDGET_JOURNAL_PATH"`
	DisableJournal bool           `yaml:"disableJournal" env:"CHATWIDGET_DISABLE_JOURNAL"`
	IdleTimeout    time.Duration  `yaml:"idleTimeout" env:"CHATWIDGET_IDLE_TIMEOUT"`
	SweepInterval  time.Duration  `yaml:"sweepInterval" env:"CHATWIDGET_SWEEP_INTERVAL"`
	Provider       providerConfig `yaml:"provider"`
}

// providerConfig selects the reply provider. Only the sub-config named by Kind is used.
type providerConfig struct {
	Kind      string `env:"CHATWIDGET_PROVIDER"`
	Mock      mockConfig
	HTTP      endpointConfig
	Ollama    ollamaConfig
	OpenAI    openAIConfig
	Anthropic anthropicConfig
}

type mockConfig struct {
	Delay     time.Duration `yaml:"delay" env:"CHATWIDGET_MOCK_DELAY"`
	Responses []string      `yaml:"responses"`
	Seed      uint64        `yaml:"seed" env:"CHATWIDGET_MOCK_SEED"`
}

type endpointConfig struct {
	URL     string        `yaml:"url" env:"CHATWIDGET_HTTP_URL"`
	Token   string        `yaml:"token" env:"CHATWIDGET_HTTP_TOKEN"`
	Timeout time.Duration `yaml:"timeout" env:"CHATWIDGET_HTTP_TIMEOUT"`
}

type ollamaConfig struct {
	Model  string                 `yaml:"model" env:"CHATWIDGET_OLLAMA_MODEL"`
	Host   string                 `yaml:"host" env:"CHATWIDGET_OLLAMA_HOST"`
	Params services.LLMParameters `yaml:",inline"`
}

type openAIConfig struct {
	Model   string                 `yaml:"model" env:"CHATWIDGET_OPENAI_MODEL"`
	APIKey  string                 `yaml:"apiKey" env:"CHATWIDGET_OPENAI_API_KEY"`
	BaseURL string                 `yaml:"baseURL" env:"CHATWIDGET_OPENAI_BASE_URL"`
	Params  services.LLMParameters `yaml:",inline"`
}

type anthropicConfig struct {
	Model    string                 `yaml:"model" env:"CHATWIDGET_ANTHROPIC_MODEL"`
	APIKey   string                 `yaml:"apiKey" env:"CHATWIDGET_ANTHROPIC_API_KEY"`
	Endpoint string                 `yaml:"endpoint" env:"CHATWIDGET_ANTHROPIC_ENDPOINT"`
	Params   services.LLMParameters `yaml:",inline"`
}

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultOllamaHost  = "http://localhost:11434"

	configDirName  = "chatwidget"
	configFileName = "config.yaml"
	journalName    = "journal.db"
)

func defaultConfig() config {
	return config{
		Port:          "8080",
		LogLevel:      "info",
		LogFormat:     "text",
		IdleTimeout:   30 * time.Minute,
		SweepInterval: time.Minute,
		Provider:      providerConfig{Kind: "mock"},
	}
}

// loadConfig reads the YAML file at path on top of the defaults, then applies environment overrides.
// A missing file is not an error.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config{}, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("error parsing environment: %w", err)
	}

	return cfg, nil
}

func (c config) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.LogFormat) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", c.LogFormat)
	}
}

func (p *providerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}

	kind, ok := raw["kind"].(string)
	if !ok {
		return fmt.Errorf("provider kind is required")
	}
	delete(raw, "kind")

	rawYAML, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}

	var target any
	switch kind {
	case "mock":
		target = &p.Mock
	case "http":
		target = &p.HTTP
	case "ollama":
		target = &p.Ollama
	case "openai":
		target = &p.OpenAI
	case "anthropic":
		target = &p.Anthropic
	default:
		return fmt.Errorf("unknown provider: %s", kind)
	}

	if err := yaml.Unmarshal(rawYAML, target); err != nil {
		return err
	}
	p.Kind = kind

	return nil
}

func (p providerConfig) builder() (providerBuilder, error) {
	switch p.Kind {
	case "", "mock":
		return p.Mock, nil
	case "http":
		return p.HTTP, nil
	case "ollama":
		return p.Ollama, nil
	case "openai":
		return p.OpenAI, nil
	case "anthropic":
		return p.Anthropic, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", p.Kind)
	}
}

func (p providerConfig) provider(systemPrompt string, logger *slog.Logger) (widget.Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b, err := p.builder()
	if err != nil {
		return nil, err
	}
	return b.provider(systemPrompt, logger)
}

func (m mockConfig) provider(string, *slog.Logger) (widget.Provider, error) {
	var opts []services.MockOption
	if m.Delay > 0 {
		opts = append(opts, services.WithMockDelay(m.Delay))
	}
	if len(m.Responses) > 0 {
		opts = append(opts, services.WithMockResponses(m.Responses...))
	}
	if m.Seed != 0 {
		opts = append(opts, services.WithMockSeed(m.Seed))
	}
	mock, err := services.NewMock(opts...)
	if err != nil {
		return nil, err
	}
	return mock, nil
}

func (e endpointConfig) provider(_ string, logger *slog.Logger) (widget.Provider, error) {
	if e.URL == "" {
		return nil, fmt.Errorf("url is required")
	}

	timeout := e.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}
	return services.NewEndpoint(e.URL, e.Token, timeout, logger), nil
}

func (o ollamaConfig) provider(systemPrompt string, _ *slog.Logger) (widget.Provider, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}
	return services.NewOllama(host, o.Model, systemPrompt, o.Params)
}

func (o openAIConfig) provider(systemPrompt string, logger *slog.Logger) (widget.Provider, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, o.Params, logger), nil
}

func (a anthropicConfig) provider(systemPrompt string, _ *slog.Logger) (widget.Provider, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.Params.MaxTokens == nil || *a.Params.MaxTokens <= 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Endpoint, a.Model, systemPrompt, *a.Params.MaxTokens, a.Params), nil
}
