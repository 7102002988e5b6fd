package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gopherchat/gopherchat/internal/ai"
	"github.com/gopherchat/gopherchat/internal/config"
	"github.com/gopherchat/gopherchat/internal/conversation"
	"github.com/gopherchat/gopherchat/internal/db"
	"github.com/gopherchat/gopherchat/internal/store/rabbitmq"
	"github.com/gopherchat/gopherchat/internal/vectorstore"
)

const maxAttempts = 3

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	if cfg.RabbitURL == "" {
		logger.Fatal("RABBIT_URL is required for the worker")
	}

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}

	repo := conversation.NewRepo(gdb)

	reg := ai.NewRegistry()
	reg.RegisterEmbedder("ollama", func(ctx context.Context, model string) (ai.Embedder, error) {
		_ = ctx
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, model), nil
	})
	openAIEmbedder := func(ctx context.Context, model string) (ai.Embedder, error) {
		_ = ctx
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, model, cfg.OpenAISiteURL, cfg.OpenAIAppName), nil
	}
	reg.RegisterEmbedder("openai", openAIEmbedder)
	reg.RegisterEmbedder("openrouter", openAIEmbedder)

	embedder, err := reg.GetEmbedder(context.Background(), cfg.EmbeddingProvider, cfg.EmbeddingModel)
	if err != nil {
		logger.Fatal("embedding provider", zap.Error(err))
	}
	vectors := vectorstore.NewStore(gdb, embedder)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		logger.Fatal("declare topology", zap.Error(err))
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		logger.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatal("consume", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started",
		zap.String("queue", cfg.RabbitQueue),
		zap.Int("concurrency", concurrency))

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var job rabbitmq.IndexJob
				if err := json.Unmarshal(d.Body, &job); err != nil || job.MessageID == 0 {
					logger.Warn("bad message", zap.Int("worker", workerID), zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				err := handleJob(ctx, repo, vectors, job.MessageID)
				if err == nil {
					if err := d.Ack(false); err != nil {
						logger.Warn("ack failed",
							zap.Int("worker", workerID),
							zap.Uint64("message_id", job.MessageID),
							zap.Error(err))
					}
					continue
				}

				logger.Warn("index job failed",
					zap.Int("worker", workerID),
					zap.Uint64("message_id", job.MessageID),
					zap.Duration("cost", time.Since(start)),
					zap.Error(err))

				if errors.Is(err, gorm.ErrRecordNotFound) {
					// message was deleted since enqueue, no point retrying
					_ = d.Nack(false, false)
					continue
				}

				if attemptsOf(d) >= maxAttempts {
					_ = d.Nack(false, false) // dead-letters to the DLQ
					continue
				}
				if err := requeue(ctx, ch, cfg.RabbitQueue, d); err != nil {
					logger.Error("requeue failed", zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func handleJob(ctx context.Context, repo *conversation.Repo, vectors *vectorstore.Store, messageID uint64) error {
	msg, err := repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.IndexedAt != nil {
		return nil // duplicate delivery
	}
	if err := vectors.Upsert(ctx, msg.ConversationID, msg.Role, msg.Content); err != nil {
		return err
	}
	return repo.MarkMessageIndexed(ctx, messageID)
}

func attemptsOf(d amqp.Delivery) int {
	if d.Headers == nil {
		return 1
	}
	if v, ok := d.Headers["x-attempts"]; ok {
		switch n := v.(type) {
		case int32:
			return int(n)
		case int64:
			return int(n)
		case int:
			return n
		}
	}
	return 1
}

// requeue publishes the delivery onto the retry queue, which TTLs it back to
// the main queue, with the attempt counter bumped.
func requeue(ctx context.Context, ch *amqp.Channel, queue string, d amqp.Delivery) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return ch.PublishWithContext(cctx,
		"",
		queue+".retry",
		false,
		false,
		amqp.Publishing{
			ContentType:  d.ContentType,
			DeliveryMode: amqp.Persistent,
			Body:         d.Body,
			Timestamp:    time.Now(),
			Expiration:   "10000",
			Headers:      amqp.Table{"x-attempts": int32(attemptsOf(d) + 1)},
		},
	)
}
