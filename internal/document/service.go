package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gopherchat/gopherchat/internal/common"
	"github.com/gopherchat/gopherchat/internal/vectorstore"
)

const (
	maxFileSize = 5 << 20

	methodAuto       = "auto"
	methodSimilarity = "similarity"
	methodHybrid     = "hybrid"
	methodRerank     = "rerank"

	defaultRetrieveK = 5
	maxRetrieveK     = 20
)

// ChunkIndex is the slice of the vector store the document pipeline needs.
type ChunkIndex interface {
	UpsertDocumentChunks(ctx context.Context, documentID, filename string, chunks []string) error
	QueryDocuments(ctx context.Context, text string, k int, documentIDs []string) ([]vectorstore.DocSnippet, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

type Service struct {
	repo   *Repo
	chunks ChunkIndex
	logger *zap.Logger
}

func NewService(repo *Repo, chunks ChunkIndex, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, chunks: chunks, logger: logger}
}

type UploadResult struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message"`
}

// Upload extracts, chunks, embeds and catalogs one file. The chunks are
// written before the catalog row so a row never points at missing chunks.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", common.ErrValidation)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("%w: file size exceeds %d MB limit", common.ErrValidation, maxFileSize>>20)
	}

	text, err := ExtractText(data, filename)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text content could be extracted", common.ErrValidation)
	}

	chunks := chunkText(text)
	id := uuid.NewString()

	if err := s.chunks.UpsertDocumentChunks(ctx, id, filename, chunks); err != nil {
		return nil, err
	}
	doc := &Document{
		ID:         id,
		Filename:   filename,
		SizeBytes:  int64(len(data)),
		ChunkCount: len(chunks),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		// don't leave orphaned chunks behind
		if derr := s.chunks.DeleteDocument(ctx, id); derr != nil {
			s.logger.Warn("chunk cleanup after failed catalog insert",
				zap.String("document_id", id), zap.Error(derr))
		}
		return nil, err
	}

	s.logger.Info("document ingested",
		zap.String("document_id", id),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)))

	return &UploadResult{
		DocumentID:    id,
		Filename:      filename,
		ChunksCreated: len(chunks),
		Message:       fmt.Sprintf("Successfully processed %s into %d chunks", filename, len(chunks)),
	}, nil
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

// Delete removes the catalog row and the document's chunks. Chunk removal is
// best-effort once the row is gone.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: document %s", common.ErrNotFound, id)
		}
		return err
	}
	if err := s.chunks.DeleteDocument(ctx, id); err != nil {
		s.logger.Warn("failed to delete document chunks",
			zap.String("document_id", id), zap.Error(err))
	}
	return nil
}

// RetrievedChunk is one hit of an explicit retrieval request.
type RetrievedChunk struct {
	Content     string  `json:"content"`
	DocumentID  string  `json:"document_id"`
	Filename    string  `json:"filename"`
	ChunkIndex  int     `json:"chunk_index"`
	TotalChunks int     `json:"total_chunks"`
	Score       float64 `json:"score"`
}

type RetrievalResult struct {
	Chunks []RetrievedChunk `json:"chunks"`
	Method string           `json:"retrieval_method"`
	Total  int              `json:"total_chunks"`
}

// Retrieve answers an explicit retrieval query. An empty method (or "auto")
// picks the strategy from the query shape; documentIDs restricts the corpus.
func (s *Service) Retrieve(ctx context.Context, query, method string, k int, documentIDs []string) (*RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", common.ErrValidation)
	}
	if k <= 0 {
		k = defaultRetrieveK
	}
	if k > maxRetrieveK {
		k = maxRetrieveK
	}

	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" || method == methodAuto {
		method = selectMethod(query)
	}

	var snippets []vectorstore.DocSnippet
	var err error
	switch method {
	case methodSimilarity:
		snippets, err = s.chunks.QueryDocuments(ctx, query, k, documentIDs)
	case methodHybrid:
		snippets, err = s.chunks.QueryDocuments(ctx, query, k*2, documentIDs)
		if err == nil {
			snippets = hybridRank(query, snippets, k)
		}
	case methodRerank:
		snippets, err = s.chunks.QueryDocuments(ctx, query, k*3, documentIDs)
		if err == nil {
			snippets = rerank(query, snippets, k)
		}
	default:
		return nil, fmt.Errorf("%w: unknown retrieval method %q", common.ErrValidation, method)
	}
	if err != nil {
		return nil, err
	}

	chunks := make([]RetrievedChunk, 0, len(snippets))
	for _, sn := range snippets {
		chunks = append(chunks, RetrievedChunk{
			Content:     sn.Content,
			DocumentID:  sn.DocumentID,
			Filename:    sn.Filename,
			ChunkIndex:  sn.ChunkIndex,
			TotalChunks: sn.TotalChunks,
			Score:       sn.Score,
		})
	}
	return &RetrievalResult{Chunks: chunks, Method: method, Total: len(chunks)}, nil
}
