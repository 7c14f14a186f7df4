package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/kelseyhightower/envconfig"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Session   SessionConfig
	AI        AIConfig
	RateLimit RateLimitConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	var cfg = Config{Server: server}
	sections := []struct {
		name   string
		target any
	}{
		{"log", &cfg.Log},
		{"session", &cfg.Session},
		{"ai", &cfg.AI},
		{"rate limit", &cfg.RateLimit},
	}
	for _, section := range sections {
		if err := envconfig.Process("", section.target); err != nil {
			return nil, fmt.Errorf("load %s config: %w", section.name, err)
		}
	}

	if err := cfg.RateLimit.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr               string
	CORSAllowedOrigins []string
}

type serverEnv struct {
	Port        string   `envconfig:"PORT" default:"8080"`
	CORSOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	var env serverEnv
	if err := envconfig.Process("", &env); err != nil {
		return ServerConfig{}, fmt.Errorf("load server config: %w", err)
	}

	origins := make([]string, 0, len(env.CORSOrigins))
	for _, origin := range env.CORSOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	port := strings.TrimSpace(env.Port)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	if !strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		port = ":" + port
	}

	return ServerConfig{Addr: port, CORSAllowedOrigins: origins}, nil
}

// LogConfig 控制日志输出格式。
type LogConfig struct {
	Mode string `envconfig:"LOG_MODE" default:"development"`
}

// SessionConfig 描述会话 cookie 的签名配置。
type SessionConfig struct {
	Secret string        `envconfig:"SESSION_SECRET"`
	TTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	Secure bool          `envconfig:"SESSION_SECURE_COOKIE" default:"false"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey         string        `envconfig:"ARK_API_KEY"`
	AccessKey      string        `envconfig:"ARK_ACCESS_KEY"`
	SecretKey      string        `envconfig:"ARK_SECRET_KEY"`
	Model          string        `envconfig:"ARK_MODEL"`
	BaseURL        string        `envconfig:"ARK_BASE_URL" default:"https://ark.cn-beijing.volces.com/api/v3"`
	Region         string        `envconfig:"ARK_REGION" default:"cn-beijing"`
	Temperature    *float64      `envconfig:"ARK_TEMPERATURE"`
	TopP           *float64      `envconfig:"ARK_TOP_P"`
	MaxTokens      *int          `envconfig:"ARK_MAX_TOKENS"`
	MaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"AI_RETRY_BASE_DELAY" default:"1s"`
}

// RateLimitConfig 描述外部调用的固定窗口限流。
type RateLimitConfig struct {
	Requests     int           `envconfig:"AI_RATE_LIMIT_REQUESTS" default:"30"`
	Window       time.Duration `envconfig:"AI_RATE_LIMIT_WINDOW" default:"60s"`
	WaitTimeout  time.Duration `envconfig:"AI_RATE_LIMIT_TIMEOUT" default:"30s"`
	PollInterval time.Duration `envconfig:"AI_RATE_LIMIT_POLL" default:"2s"`
}

func (c RateLimitConfig) validate() error {
	if c.Requests < 1 {
		return fmt.Errorf("invalid AI_RATE_LIMIT_REQUESTS value %d: must be positive", c.Requests)
	}
	if c.Window <= 0 || c.PollInterval <= 0 || c.WaitTimeout <= 0 {
		return fmt.Errorf("rate limit window, timeout and poll interval must be positive")
	}
	return nil
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}
