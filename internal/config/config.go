package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Generation    GenerationConfig
	Transcription TranscriptionConfig
	STT           STTConfig
	LogLevel      slog.Level
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	ScratchDir     string
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string // empty uses the embedded migrations
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string // empty disables auth on /api
}

type GenerationConfig struct {
	DefaultProvider string // gemini, openai, anthropic or ollama
	GoogleAPIKey    string
	GeminiModel     string
	OpenAIKey       string
	OpenAIModel     string
	AnthropicKey    string
	AnthropicModel  string
	OllamaURL       string
	OllamaModel     string
	PromptsDir      string // optional <source>.txt instruction overrides
}

type TranscriptionConfig struct {
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	LanguageCode       string
	SampleRate         int
	Channels           int
	BitDepth           int
	ChunkDuration      time.Duration
	DeviceIndex        int // -1 selects the default input device
}

type STTConfig struct {
	Backend       string // "openai" or "local"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	LocalBaseURL  string // default: "http://localhost:8178"
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	port, err := getEnvInt("PORT", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port == 0 {
		if port, err = getEnvInt("SERVER_PORT", 5000); err != nil {
			return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
		}
	}

	maxUpload, err := getEnvInt("MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	sampleRate, err := getEnvInt("TRANSCRIBE_SAMPLE_RATE", 16000)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSCRIBE_SAMPLE_RATE: %w", err)
	}

	channels, err := getEnvInt("TRANSCRIBE_CHANNELS", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSCRIBE_CHANNELS: %w", err)
	}

	bitDepth, err := getEnvInt("TRANSCRIBE_BIT_DEPTH", 16)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSCRIBE_BIT_DEPTH: %w", err)
	}

	chunkMs, err := getEnvInt("TRANSCRIBE_CHUNK_MS", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSCRIBE_CHUNK_MS: %w", err)
	}

	deviceIndex, err := getEnvInt("AUDIO_DEVICE_INDEX", -1)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIO_DEVICE_INDEX: %w", err)
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
			ScratchDir:     getEnv("SCRATCH_DIR", "uploads"),
			MaxUploadBytes: int64(maxUpload),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Generation: GenerationConfig{
			DefaultProvider: getEnv("CODEGEN_PROVIDER", "gemini"),
			GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
			GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash-preview-04-17"),
			OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o"),
			AnthropicKey:    getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			OllamaURL:       getEnv("OLLAMA_URL", ""),
			OllamaModel:     getEnv("OLLAMA_MODEL", "llava"),
			PromptsDir:      getEnv("PROMPTS_DIR", ""),
		},
		Transcription: TranscriptionConfig{
			AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
			AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			LanguageCode:       getEnv("TRANSCRIBE_LANGUAGE", "en-GB"),
			SampleRate:         sampleRate,
			Channels:           channels,
			BitDepth:           bitDepth,
			ChunkDuration:      time.Duration(chunkMs) * time.Millisecond,
			DeviceIndex:        deviceIndex,
		},
		STT: STTConfig{
			Backend:       getEnv("STT_BACKEND", "openai"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("STT_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("STT_OPENAI_MODEL", ""),
			LocalBaseURL:  getEnv("STT_LOCAL_BASE_URL", "http://localhost:8178"),
		},
		LogLevel: level,
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var problems []string
	t := c.Transcription
	if t.SampleRate <= 0 {
		problems = append(problems, "TRANSCRIBE_SAMPLE_RATE must be positive")
	}
	if t.Channels != 1 {
		// Capture and the streaming request are mono only.
		problems = append(problems, "TRANSCRIBE_CHANNELS must be 1")
	}
	if t.BitDepth != 16 {
		problems = append(problems, "TRANSCRIBE_BIT_DEPTH must be 16")
	}
	if t.ChunkDuration <= 0 {
		problems = append(problems, "TRANSCRIBE_CHUNK_MS must be positive")
	}
	switch c.Generation.DefaultProvider {
	case "gemini", "openai", "anthropic", "ollama":
	default:
		problems = append(problems, fmt.Sprintf("unknown CODEGEN_PROVIDER %q", c.Generation.DefaultProvider))
	}
	switch c.STT.Backend {
	case "openai", "local":
	default:
		problems = append(problems, fmt.Sprintf("unknown STT_BACKEND %q", c.STT.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
