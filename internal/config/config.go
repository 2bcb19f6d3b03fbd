package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/counsel/internal/llm"
	"github.com/MikeSquared-Agency/counsel/internal/routing"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	MongoURI    string
	MongoDB     string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	LogLevel    string

	AnthropicAPIKey  string
	AnthropicBaseURL string
	GoogleAPIKey     string
	GeminiBaseURL    string
	OllamaURL        string
	OllamaModel      string
	OllamaRPS        float64

	SynthesisModel string
	ParserModel    string
	TimeLimit      time.Duration
	PromptsDir     string
	SkipLocal      bool

	APIToken      string
	SlackBotToken string
	SlackChannel  string

	// From the optional YAML file.
	Catalog []routing.ModelSpec
	Pins    map[routing.Agent]string
}

// File is the optional YAML overlay named by COUNSEL_CONFIG.
type File struct {
	Models         []routing.ModelSpec `yaml:"models"`
	Pins           map[string]string   `yaml:"pins"`
	SynthesisModel string              `yaml:"synthesis_model"`
	ParserModel    string              `yaml:"parser_model"`
}

func Load() (Config, error) {
	cfg := Config{
		Port:        envInt("COUNSEL_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		MongoURI:    envStr("MONGO_URI", ""),
		MongoDB:     envStr("MONGO_DATABASE", "counsel"),
		RedisAddr:   envStr("REDIS_ADDR", ""),
		RedisPass:   envStr("REDIS_PASSWORD", ""),
		RedisDB:     envInt("REDIS_DB", 0),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		AnthropicAPIKey:  envStr("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: envStr("ANTHROPIC_BASE_URL", ""),
		GoogleAPIKey:     envStr("GOOGLE_API_KEY", ""),
		GeminiBaseURL:    envStr("GEMINI_BASE_URL", ""),
		OllamaURL:        envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:      envStr("OLLAMA_MODEL", routing.ModelOllama),
		OllamaRPS:        envFloat("OLLAMA_RPS", 2),

		SynthesisModel: envStr("COUNSEL_SYNTHESIS_MODEL", routing.ModelClaudeSonnet),
		ParserModel:    envStr("COUNSEL_PARSER_MODEL", routing.ModelOllama),
		TimeLimit:      envDuration("COUNSEL_TIME_LIMIT", 15*time.Second),
		PromptsDir:     envStr("PROMPTS_DIR", ""),
		SkipLocal:      envBool("COUNSEL_SKIP_LOCAL", false),

		APIToken:      envStr("COUNSEL_API_TOKEN", ""),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_REVIEW_CHANNEL", ""),

		Pins: make(map[routing.Agent]string),
	}

	path := envStr("COUNSEL_CONFIG", "")
	if path == "" {
		return cfg, nil
	}
	f, err := ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg.apply(f)
	return cfg, nil
}

// ReadFile parses a YAML overlay.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	for i, m := range f.Models {
		if m.Name == "" || m.Provider == "" {
			return nil, fmt.Errorf("parse config %s: model %d needs name and provider", path, i)
		}
		kind, err := llm.ParseKind(string(m.Provider))
		if err != nil {
			return nil, fmt.Errorf("parse config %s: model %s: %w", path, m.Name, err)
		}
		f.Models[i].Provider = kind
	}
	return &f, nil
}

// apply lets the file override the model settings. Environment values win
// only when the file leaves a field empty.
func (c *Config) apply(f *File) {
	if len(f.Models) > 0 {
		c.Catalog = f.Models
	}
	for agent, model := range f.Pins {
		c.Pins[routing.Agent(agent)] = model
	}
	if f.SynthesisModel != "" {
		c.SynthesisModel = f.SynthesisModel
	}
	if f.ParserModel != "" {
		c.ParserModel = f.ParserModel
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
