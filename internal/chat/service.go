package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gopherchat/gopherchat/internal/ai"
	"github.com/gopherchat/gopherchat/internal/common"
	"github.com/gopherchat/gopherchat/internal/conversation"
	"github.com/gopherchat/gopherchat/internal/vectorstore"
)

const (
	autoTitlePreviewLen = 50

	// how many uploaded-document chunks a turn grounds on
	docTopK = 3
)

// Retriever is the slice of the vector store the chat pipeline needs.
type Retriever interface {
	Upsert(ctx context.Context, conversationID, role, text string) error
	Query(ctx context.Context, conversationID, text string, k int) ([]vectorstore.Snippet, error)
}

// DocumentRetriever surfaces chunks of uploaded documents. Nil disables
// document grounding.
type DocumentRetriever interface {
	QueryDocuments(ctx context.Context, text string, k int, documentIDs []string) ([]vectorstore.DocSnippet, error)
}

// IndexPublisher hands embedding work to the background worker. Nil disables
// async indexing and embeddings are written synchronously.
type IndexPublisher interface {
	PublishIndexJob(ctx context.Context, messageID uint64) error
}

type Service struct {
	repo       *conversation.Repo
	vectors    Retriever
	docs       DocumentRetriever
	registry   *ai.Registry
	publisher  IndexPublisher
	logger     *zap.Logger
	provider   string
	model      string
	topK       int
	maxHistory int
	llmTimeout time.Duration
}

type Options struct {
	Provider   string
	Model      string
	TopK       int
	MaxHistory int
	LLMTimeout time.Duration
}

func NewService(repo *conversation.Repo, vectors Retriever, docs DocumentRetriever, registry *ai.Registry, publisher IndexPublisher, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 6
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 60 * time.Second
	}
	return &Service{
		repo:       repo,
		vectors:    vectors,
		docs:       docs,
		registry:   registry,
		publisher:  publisher,
		logger:     logger,
		provider:   opts.Provider,
		model:      opts.Model,
		topK:       opts.TopK,
		maxHistory: opts.MaxHistory,
		llmTimeout: opts.LLMTimeout,
	}
}

// Result is one completed turn.
type Result struct {
	ConversationID   string   `json:"conversation_id"`
	Response         string   `json:"response"`
	ReasoningSteps   []string `json:"reasoning_steps"`
	RetrievedContext []string `json:"retrieved_context"`
}

// Send runs one chat turn: resolve (or auto-create) the conversation,
// retrieve grounding context, call the model, then persist and index both
// turn halves. Nothing is persisted unless the model call succeeds.
func (s *Service) Send(ctx context.Context, conversationID, message string) (*Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message must not be empty", common.ErrValidation)
	}

	conv, err := s.resolveConversation(ctx, conversationID, message)
	if err != nil {
		return nil, err
	}

	contextSnippets := s.retrieveContext(ctx, conv.ID, message)
	history, err := s.recentHistory(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	provider, err := s.registry.Get(ctx, s.provider, s.model)
	if err != nil {
		return nil, err
	}

	llmCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	raw, err := provider.Chat(llmCtx, buildMessages(message, history, contextSnippets))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}

	answer, steps, err := parseStructuredReply(raw)
	if err != nil {
		return nil, err
	}

	userMsg := &conversation.Message{
		ConversationID: conv.ID,
		Role:           conversation.RoleUser,
		Content:        message,
	}
	assistantMsg := &conversation.Message{
		ConversationID: conv.ID,
		Role:           conversation.RoleAssistant,
		Content:        answer,
		ReasoningSteps: steps,
	}
	if err := s.repo.AppendTurn(ctx, userMsg, assistantMsg); err != nil {
		return nil, err
	}

	s.indexTurn(ctx, userMsg)
	s.indexTurn(ctx, assistantMsg)

	return &Result{
		ConversationID:   conv.ID,
		Response:         answer,
		ReasoningSteps:   steps,
		RetrievedContext: contextSnippets,
	}, nil
}

// resolveConversation loads the target conversation, auto-creating one titled
// after the first message when the id is absent or unknown.
func (s *Service) resolveConversation(ctx context.Context, id, message string) (*conversation.Conversation, error) {
	if id != "" {
		conv, err := s.repo.Get(ctx, id)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	newID, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	conv := &conversation.Conversation{
		ID:    newID,
		Title: autoTitle(message),
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func autoTitle(message string) string {
	runes := []rune(message)
	if len(runes) > autoTitlePreviewLen {
		return "Chat: " + string(runes[:autoTitlePreviewLen]) + "..."
	}
	return "Chat: " + message
}

// retrieveContext is best-effort: a failing vector store degrades the turn to
// an ungrounded reply instead of failing it. Document chunks ride along after
// the conversation snippets when a document retriever is wired.
func (s *Service) retrieveContext(ctx context.Context, conversationID, message string) []string {
	var out []string

	snippets, err := s.vectors.Query(ctx, conversationID, message, s.topK)
	if err != nil {
		s.logger.Warn("context retrieval failed, continuing without context",
			zap.String("conversation_id", conversationID), zap.Error(err))
	} else {
		for _, sn := range snippets {
			out = append(out, sn.Text())
		}
	}

	if s.docs != nil {
		docSnippets, err := s.docs.QueryDocuments(ctx, message, docTopK, nil)
		if err != nil {
			s.logger.Warn("document retrieval failed, continuing without document context",
				zap.String("conversation_id", conversationID), zap.Error(err))
		} else {
			for _, sn := range docSnippets {
				out = append(out, sn.Text())
			}
		}
	}
	return out
}

func (s *Service) recentHistory(ctx context.Context, conversationID string) ([]string, error) {
	msgs, err := s.repo.ListRecentMessages(ctx, conversationID, s.maxHistory)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return out, nil
}

// indexTurn embeds one persisted message, via the queue when configured.
// Failures are logged, never fatal: the relational row is authoritative and
// the message simply stays out of retrieval until reindexed.
func (s *Service) indexTurn(ctx context.Context, msg *conversation.Message) {
	if s.publisher != nil {
		err := s.publisher.PublishIndexJob(ctx, msg.ID)
		if err == nil {
			return
		}
		s.logger.Warn("index job publish failed, indexing synchronously",
			zap.Uint64("message_id", msg.ID), zap.Error(err))
	}

	if err := s.vectors.Upsert(ctx, msg.ConversationID, msg.Role, msg.Content); err != nil {
		s.logger.Warn("embedding upsert failed",
			zap.Uint64("message_id", msg.ID), zap.Error(err))
		return
	}
	if err := s.repo.MarkMessageIndexed(ctx, msg.ID); err != nil {
		s.logger.Warn("failed to stamp indexed_at", zap.Uint64("message_id", msg.ID), zap.Error(err))
	}
}
