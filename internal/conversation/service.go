package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gopherchat/gopherchat/internal/auth"
	"github.com/gopherchat/gopherchat/internal/common"
)

const (
	defaultTitle        = "New Conversation"
	defaultShareDays    = 7
	maxShareDays        = 365
	maxTitleLen         = 200
	defaultSearchLimit  = 10
	sharePathPrefix     = "/api/shared/"
	maxSearchLimitValue = 100
)

// VectorIndex is the slice of the vector store this service needs: cascading
// deletes of a conversation's embeddings.
type VectorIndex interface {
	DeleteConversation(ctx context.Context, conversationID string) error
}

type Service struct {
	repo         *Repo
	vectors      VectorIndex
	shareSecret  string
	shareBaseURL string
	logger       *zap.Logger
}

func NewService(repo *Repo, vectors VectorIndex, shareSecret, shareBaseURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:         repo,
		vectors:      vectors,
		shareSecret:  shareSecret,
		shareBaseURL: strings.TrimRight(shareBaseURL, "/"),
		logger:       logger,
	}
}

func (s *Service) Create(ctx context.Context, title string) (*Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}
	if len(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title longer than %d characters", common.ErrValidation, maxTitleLen)
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	c := &Conversation{ID: id, Title: title}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Conversation, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: conversation %s", common.ErrNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, limit int, includeArchived bool) ([]Conversation, error) {
	return s.repo.List(ctx, limit, includeArchived)
}

func (s *Service) Rename(ctx context.Context, id, title string) (*Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title must not be empty", common.ErrValidation)
	}
	if len(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title longer than %d characters", common.ErrValidation, maxTitleLen)
	}
	c, err := s.repo.Update(ctx, id, map[string]any{"title": title})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: conversation %s", common.ErrNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) SetArchived(ctx context.Context, id string, archived bool) (*Conversation, error) {
	c, err := s.repo.Update(ctx, id, map[string]any{"is_archived": archived})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: conversation %s", common.ErrNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

// Delete removes the conversation, its messages and its embeddings. A second
// delete of the same id reports NotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: conversation %s", common.ErrNotFound, id)
		}
		return err
	}
	if s.vectors != nil {
		if err := s.vectors.DeleteConversation(ctx, id); err != nil {
			// metadata and messages are gone; orphaned vectors are unreachable
			// because retrieval is conversation-scoped
			s.logger.Warn("failed to delete conversation embeddings",
				zap.String("conversation_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) Messages(ctx context.Context, id string) ([]Message, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, id)
}

// Search falls back to an exact List for an empty query, so the caller's
// limit passes through unchanged there (0 = unlimited, same as List).
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Conversation, error) {
	if strings.TrimSpace(query) == "" {
		return s.repo.List(ctx, limit, false)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimitValue {
		limit = maxSearchLimitValue
	}
	return s.repo.Search(ctx, query, limit)
}

type ShareLink struct {
	Token     string    `json:"share_token"`
	URL       string    `json:"share_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Share mints a signed link. expiresInDays < 0 or > 365 is rejected; 0 yields
// a link that is already expired, which callers sometimes use to revoke by
// construction in tests.
func (s *Service) Share(ctx context.Context, id string, expiresInDays *int) (*ShareLink, error) {
	days := defaultShareDays
	if expiresInDays != nil {
		days = *expiresInDays
	}
	if days < 0 || days > maxShareDays {
		return nil, fmt.Errorf("%w: expires_in_days must be between 0 and %d", common.ErrValidation, maxShareDays)
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	token, err := auth.SignShareToken(s.shareSecret, id, expiresAt)
	if err != nil {
		return nil, err
	}

	return &ShareLink{
		Token:     token,
		URL:       s.shareBaseURL + sharePathPrefix + token,
		ExpiresAt: expiresAt,
	}, nil
}

// SharedView is the read-only projection served to share-link visitors.
type SharedView struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	Messages       []Message `json:"messages"`
	SharedAt       time.Time `json:"shared_at"`
}

func (s *Service) AccessShared(ctx context.Context, token string) (*SharedView, error) {
	id, issuedAt, err := auth.ParseShareToken(s.shareSecret, token)
	if err != nil {
		return nil, err
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	msgs, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	return &SharedView{
		ConversationID: c.ID,
		Title:          c.Title,
		Messages:       msgs,
		SharedAt:       issuedAt,
	}, nil
}
