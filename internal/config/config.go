package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"
)

var validate = validator.New()

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Store  StoreConfig
	Hub    HubConfig
	AI     AIConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"3000"`
	Addr string `ignored:"true"`
}

// normalizeAddr accepts "3000", ":3000" or "127.0.0.1:3000".
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "3000"
	}

	if strings.Contains(port, ":") {
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`
}

// StoreConfig selects and tunes the message store.
type StoreConfig struct {
	Driver       string        `envconfig:"STORE_DRIVER" default:"sqlite" validate:"oneof=sqlite postgres badger"`
	DSN          string        `envconfig:"STORE_DSN" default:"chathub.db" validate:"required"`
	InitAttempts int           `envconfig:"STORE_INIT_ATTEMPTS" default:"5" validate:"min=1"`
	InitDelay    time.Duration `envconfig:"STORE_INIT_DELAY" default:"5s" validate:"min=0"`
}

// HubConfig holds the coordination timings.
type HubConfig struct {
	ReplyDelay   time.Duration `envconfig:"REPLY_DELAY" default:"1s" validate:"min=0"`
	WelcomeDelay time.Duration `envconfig:"WELCOME_DELAY" default:"1s" validate:"min=0"`
	HistoryLimit int           `envconfig:"HISTORY_LIMIT" default:"100" validate:"min=1,max=1000"`
}

// AIConfig describes the Ark chat model behind the assistant.
type AIConfig struct {
	APIKey      string        `envconfig:"ARK_API_KEY"`
	AccessKey   string        `envconfig:"ARK_ACCESS_KEY"`
	SecretKey   string        `envconfig:"ARK_SECRET_KEY"`
	Model       string        `envconfig:"ARK_MODEL"`
	BaseURL     string        `envconfig:"ARK_BASE_URL" default:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string        `envconfig:"ARK_REGION" default:"cn-beijing"`
	MaxTokens   int           `envconfig:"ARK_MAX_TOKENS" default:"150" validate:"min=1"`
	Temperature float64       `envconfig:"ARK_TEMPERATURE" default:"0.7" validate:"min=0,max=2"`
	Timeout     time.Duration `envconfig:"AI_TIMEOUT" default:"30s" validate:"min=0"`
}

// Enabled reports whether the credentials needed for Ark are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_MODEL with ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   lo.ToPtr(c.MaxTokens),
		Temperature: lo.ToPtr(float32(c.Temperature)),
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return chatModel, nil
}
