package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gopherchat/gopherchat/internal/ai"
	"github.com/gopherchat/gopherchat/internal/chat"
	"github.com/gopherchat/gopherchat/internal/config"
	"github.com/gopherchat/gopherchat/internal/conversation"
	"github.com/gopherchat/gopherchat/internal/db"
	"github.com/gopherchat/gopherchat/internal/document"
	"github.com/gopherchat/gopherchat/internal/httpapi"
	"github.com/gopherchat/gopherchat/internal/store/rabbitmq"
	"github.com/gopherchat/gopherchat/internal/store/redisstore"
	"github.com/gopherchat/gopherchat/internal/vectorstore"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	if err := gdb.AutoMigrate(
		&conversation.Conversation{},
		&conversation.Message{},
		&vectorstore.Record{},
		&vectorstore.DocChunk{},
		&document.Document{},
	); err != nil {
		logger.Fatal("automigrate", zap.Error(err))
	}

	registry := buildRegistry(cfg)

	embedder, err := registry.GetEmbedder(context.Background(), cfg.EmbeddingProvider, cfg.EmbeddingModel)
	if err != nil {
		logger.Fatal("embedding provider", zap.Error(err))
	}
	vectors := vectorstore.NewStore(gdb, embedder)

	repo := conversation.NewRepo(gdb)
	convSvc := conversation.NewService(repo, vectors, cfg.ShareSecret, cfg.ShareBaseURL, logger)
	docSvc := document.NewService(document.NewRepo(gdb), vectors, logger)

	var publisher chat.IndexPublisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			logger.Fatal("rabbit connect", zap.Error(err))
		}
		defer func() { _ = pub.Close() }()
		publisher = pub
		logger.Info("async embedding indexing enabled", zap.String("queue", cfg.RabbitQueue))
	}

	chatSvc := chat.NewService(repo, vectors, vectors, registry, publisher, logger, chat.Options{
		Provider:   cfg.AIProvider,
		Model:      chatModel(cfg),
		TopK:       cfg.RetrievalTopK,
		MaxHistory: cfg.MaxContextMessages,
		LLMTimeout: time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
	})

	var rds *redisstore.Store
	if cfg.RedisAddr != "" {
		rds = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer func() { _ = rds.Close() }()
	}

	router := httpapi.NewRouter(chatSvc, convSvc, docSvc, logger, httpapi.RouterOptions{
		Redis:          rds,
		ChatRateLimit:  cfg.ChatRateLimit,
		ChatRateWindow: time.Duration(cfg.ChatRateWindowS) * time.Second,
		StaticDir:      "web/static",
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func buildRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m, cfg.EmbeddingModel), nil
	})
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, m, cfg.EmbeddingModel, cfg.OpenAISiteURL, cfg.OpenAIAppName), nil
	})
	// openrouter is just an openai-compatible endpoint
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, m, cfg.EmbeddingModel, cfg.OpenAISiteURL, cfg.OpenAIAppName), nil
	})

	reg.RegisterEmbedder("ollama", func(ctx context.Context, model string) (ai.Embedder, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.EmbeddingModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, m), nil
	})
	openAIEmbedder := func(ctx context.Context, model string) (ai.Embedder, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.EmbeddingModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, m, cfg.OpenAISiteURL, cfg.OpenAIAppName), nil
	}
	reg.RegisterEmbedder("openai", openAIEmbedder)
	reg.RegisterEmbedder("openrouter", openAIEmbedder)

	return reg
}

func chatModel(cfg config.Config) string {
	switch strings.ToLower(cfg.AIProvider) {
	case "openai", "openrouter":
		return cfg.OpenAIModel
	default:
		return cfg.OllamaModel
	}
}
