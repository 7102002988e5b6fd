package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gopherchat/gopherchat/internal/common"
)

// DocChunk is one embedded slice of an uploaded document. Chunks share the
// store's embedder with message records but live in their own table because
// their scope is the whole workspace, not a conversation.
type DocChunk struct {
	ID          string `gorm:"primaryKey;size:64"`
	DocumentID  string `gorm:"size:36;index;not null"`
	Filename    string `gorm:"size:255;not null"`
	ChunkIndex  int    `gorm:"not null"`
	TotalChunks int    `gorm:"not null"`
	Content     string `gorm:"type:text;not null"`
	Embedding   []byte `gorm:"type:blob;not null"`
	CreatedAt   time.Time
}

func (DocChunk) TableName() string { return "document_chunks" }

// DocSnippet is a document retrieval hit.
type DocSnippet struct {
	DocumentID  string  `json:"document_id"`
	Filename    string  `json:"filename"`
	ChunkIndex  int     `json:"chunk_index"`
	TotalChunks int     `json:"total_chunks"`
	Content     string  `json:"content"`
	Score       float64 `json:"score"`
}

// Text renders the snippet the way prompts carry it, naming the source file.
func (s DocSnippet) Text() string {
	return fmt.Sprintf("[Document: %s]: %s", s.Filename, s.Content)
}

// UpsertDocumentChunks embeds and stores every chunk of one document.
func (s *Store) UpsertDocumentChunks(ctx context.Context, documentID, filename string, chunks []string) error {
	for i, text := range chunks {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("%w: embedding failed: %v", common.ErrUpstream, err)
		}
		raw, err := json.Marshal(vec)
		if err != nil {
			return err
		}
		rec := &DocChunk{
			ID:          fmt.Sprintf("%s_chunk_%d", documentID, i),
			DocumentID:  documentID,
			Filename:    filename,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			Content:     text,
			Embedding:   raw,
		}
		if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
			return err
		}
	}
	return nil
}

// QueryDocuments embeds the query and returns the k most similar chunks,
// optionally restricted to the given document ids.
func (s *Store) QueryDocuments(ctx context.Context, text string, k int, documentIDs []string) ([]DocSnippet, error) {
	if k <= 0 {
		k = 5
	}

	queryVec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding failed: %v", common.ErrUpstream, err)
	}

	q := s.db.WithContext(ctx)
	if len(documentIDs) > 0 {
		q = q.Where("document_id IN ?", documentIDs)
	}
	var records []DocChunk
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}

	snippets := make([]DocSnippet, 0, len(records))
	for _, rec := range records {
		var vec []float32
		if err := json.Unmarshal(rec.Embedding, &vec); err != nil {
			continue // skip corrupted rows
		}
		snippets = append(snippets, DocSnippet{
			DocumentID:  rec.DocumentID,
			Filename:    rec.Filename,
			ChunkIndex:  rec.ChunkIndex,
			TotalChunks: rec.TotalChunks,
			Content:     rec.Content,
			Score:       cosineSimilarity(queryVec, vec),
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

// DeleteDocument removes every chunk owned by the document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	return s.db.WithContext(ctx).
		Delete(&DocChunk{}, "document_id = ?", documentID).Error
}
