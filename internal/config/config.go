package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Vector   VectorConfig
	Session  SessionConfig
	Pipeline PipelineConfig
	Dispatch DispatchConfig
	Tools    ToolConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string // Postgres DSN, required only for the pgvector backend
}

type APIKeys struct {
	Groq string
}

type AIConfig struct {
	LLMProvider       string // "groq" or "ollama"
	LLMModel          string
	OllamaBaseURL     string
	EmbeddingProvider string // "ollama" or "local"
	EmbeddingModel    string
}

type VectorConfig struct {
	Backend     string // "chromem" or "pgvector"
	ChromemPath string // empty = in-memory
}

type SessionConfig struct {
	WorkspaceDir string
	TTL          time.Duration
	ProgressTTL  time.Duration
}

type PipelineConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	FusionDelay     time.Duration
	FusionAfterSumm time.Duration
	TaskTimeLimit   time.Duration // hard kill
	TaskSoftWarning time.Duration // log a warning before the hard limit
}

type DispatchConfig struct {
	Backend string // "nats" or "channel"
}

type ToolConfig struct {
	FFmpegBinary  string
	YtDlpBinary   string
	WhisperBinary string
	WhisperModel  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			Groq: getEnv("GROQ_API_KEY", ""),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "groq"),
			LLMModel:          getEnv("LLM_MODEL", ""),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		},
		Vector: VectorConfig{
			Backend:     getEnv("VECTOR_BACKEND", "chromem"),
			ChromemPath: getEnv("CHROMEM_PATH", ""),
		},
		Session: SessionConfig{
			WorkspaceDir: getEnv("WORKSPACE_DIR", "/tmp/commonbook"),
			TTL:          getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			ProgressTTL:  getEnvAsDuration("PROGRESS_TTL", 24*time.Hour),
		},
		Pipeline: PipelineConfig{
			ChunkSize:       getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap:    getEnvAsInt("CHUNK_OVERLAP", 200),
			FusionDelay:     getEnvAsDuration("FUSION_CALL_DELAY", 4*time.Second),
			FusionAfterSumm: getEnvAsDuration("FUSION_SUMMARY_DELAY", 3*time.Second),
			TaskTimeLimit:   getEnvAsDuration("TASK_TIME_LIMIT", time.Hour),
			TaskSoftWarning: getEnvAsDuration("TASK_SOFT_WARNING", 55*time.Minute),
		},
		Dispatch: DispatchConfig{
			Backend: getEnv("DISPATCH_BACKEND", "nats"),
		},
		Tools: ToolConfig{
			FFmpegBinary:  getEnv("FFMPEG_BINARY", "ffmpeg"),
			YtDlpBinary:   getEnv("YTDLP_BINARY", "yt-dlp"),
			WhisperBinary: getEnv("WHISPER_BINARY", "whisper"),
			WhisperModel:  getEnv("WHISPER_MODEL", "large-v3"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
