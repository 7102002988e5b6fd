package config

import (
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	HTTPAddr string
	DataDir  string
	DBDSN    string

	// AI provider
	AIProvider        string
	OllamaBaseURL     string
	OllamaModel       string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAISiteURL     string
	OpenAIAppName     string
	EmbeddingProvider string
	EmbeddingModel    string

	// chat pipeline
	RetrievalTopK      int
	MaxContextMessages int
	LLMTimeoutSeconds  int

	// share links
	ShareSecret  string
	ShareBaseURL string

	// rabbitMQ (optional; empty URL disables async indexing)
	RabbitURL   string
	RabbitQueue string

	// redis (optional; empty addr disables rate limiting)
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ChatRateLimit   int
	ChatRateWindowS int
}

func Load() Config {
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	// SQLite file by default; a mysql DSN like
	// app:apppass@tcp(127.0.0.1:3306)/gopherchat?parseTime=true switches drivers.
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = filepath.Join(dataDir, "gopherchat.db")
	}

	aiProvider := os.Getenv("AI_PROVIDER")
	if aiProvider == "" {
		aiProvider = "ollama"
	}

	ollamaBaseURL := os.Getenv("OLLAMA_BASE_URL")
	if ollamaBaseURL == "" {
		ollamaBaseURL = "http://localhost:11434"
	}
	ollamaModel := os.Getenv("OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = "llama3:latest"
	}

	openAIBaseURL := os.Getenv("OPENAI_BASE_URL")
	if openAIBaseURL == "" {
		openAIBaseURL = "https://openrouter.ai/api/v1"
	}
	openAIModel := os.Getenv("OPENAI_MODEL")
	if openAIModel == "" {
		openAIModel = "openrouter/auto"
	}

	embeddingProvider := os.Getenv("EMBEDDING_PROVIDER")
	if embeddingProvider == "" {
		embeddingProvider = aiProvider
	}
	embeddingModel := os.Getenv("EMBEDDING_MODEL")
	if embeddingModel == "" {
		embeddingModel = "nomic-embed-text"
	}

	topK := 4
	if v := os.Getenv("RETRIEVAL_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topK = n
		}
	}

	maxContext := 6
	if v := os.Getenv("MAX_CONTEXT_MESSAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxContext = n
		}
	}

	llmTimeout := 60
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			llmTimeout = n
		}
	}

	shareSecret := os.Getenv("SHARE_SECRET")
	if shareSecret == "" {
		shareSecret = "dev-secret-change-me"
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "embed_jobs"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	chatRateLimit := 30
	if v := os.Getenv("CHAT_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			chatRateLimit = n
		}
	}
	chatRateWindow := 60
	if v := os.Getenv("CHAT_RATE_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			chatRateWindow = n
		}
	}

	return Config{
		HTTPAddr: httpAddr,
		DataDir:  dataDir,
		DBDSN:    dsn,

		AIProvider:        aiProvider,
		OllamaBaseURL:     ollamaBaseURL,
		OllamaModel:       ollamaModel,
		OpenAIBaseURL:     openAIBaseURL,
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       openAIModel,
		OpenAISiteURL:     os.Getenv("OPENAI_SITE_URL"),
		OpenAIAppName:     os.Getenv("OPENAI_APP_NAME"),
		EmbeddingProvider: embeddingProvider,
		EmbeddingModel:    embeddingModel,

		RetrievalTopK:      topK,
		MaxContextMessages: maxContext,
		LLMTimeoutSeconds:  llmTimeout,

		ShareSecret:  shareSecret,
		ShareBaseURL: os.Getenv("SHARE_BASE_URL"),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		ChatRateLimit:   chatRateLimit,
		ChatRateWindowS: chatRateWindow,
	}
}
