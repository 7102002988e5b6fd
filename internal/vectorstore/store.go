// Package vectorstore persists message embeddings in the relational store and
// answers conversation-scoped similarity queries. Vectors are JSON-encoded per
// row and compared with brute-force cosine similarity; conversation histories
// are small enough that an ANN index would be overkill.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gopherchat/gopherchat/internal/ai"
	"github.com/gopherchat/gopherchat/internal/common"
)

// Record is one embedded message scoped to its conversation.
type Record struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ConversationID string    `gorm:"size:26;index;not null"`
	Role           string    `gorm:"size:16;not null"`
	Content        string    `gorm:"type:text;not null"`
	Embedding      []byte    `gorm:"type:blob;not null"`
	CreatedAt      time.Time
}

func (Record) TableName() string { return "message_embeddings" }

// Snippet is a retrieval hit, most similar first.
type Snippet struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Text renders the snippet the way prompts and API responses carry it.
func (s Snippet) Text() string {
	return fmt.Sprintf("%s: %s", s.Role, s.Content)
}

type Store struct {
	db       *gorm.DB
	embedder ai.Embedder
}

func NewStore(db *gorm.DB, embedder ai.Embedder) *Store {
	return &Store{db: db, embedder: embedder}
}

// Upsert embeds text and stores it under the conversation.
func (s *Store) Upsert(ctx context.Context, conversationID, role, text string) error {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("%w: embedding failed: %v", common.ErrUpstream, err)
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	rec := &Record{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        text,
		Embedding:      raw,
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// Query embeds the query text and returns the k most similar snippets stored
// for the same conversation, most similar first.
func (s *Store) Query(ctx context.Context, conversationID, text string, k int) ([]Snippet, error) {
	if k <= 0 {
		k = 4
	}

	queryVec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding failed: %v", common.ErrUpstream, err)
	}

	var records []Record
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Find(&records).Error; err != nil {
		return nil, err
	}

	snippets := make([]Snippet, 0, len(records))
	for _, rec := range records {
		var vec []float32
		if err := json.Unmarshal(rec.Embedding, &vec); err != nil {
			continue // skip corrupted rows
		}
		snippets = append(snippets, Snippet{
			Role:    rec.Role,
			Content: rec.Content,
			Score:   cosineSimilarity(queryVec, vec),
		})
	}

	sort.Slice(snippets, func(i, j int) bool {
		return snippets[i].Score > snippets[j].Score
	})
	if len(snippets) > k {
		snippets = snippets[:k]
	}
	return snippets, nil
}

// DeleteConversation removes every embedding owned by the conversation.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	return s.db.WithContext(ctx).
		Delete(&Record{}, "conversation_id = ?", conversationID).Error
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
