// Package document ingests uploaded files into the retrieval corpus: it
// extracts text, splits it into overlapping chunks, and hands the chunks to
// the vector store so chat turns can ground on them.
package document

import "time"

// Document is the catalog row for one uploaded file. The chunk bodies and
// their embeddings live in the vector store under the document's id.
type Document struct {
	ID         string    `gorm:"primaryKey;size:36" json:"document_id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	SizeBytes  int64     `gorm:"not null" json:"size_bytes"`
	ChunkCount int       `gorm:"not null" json:"chunk_count"`
	CreatedAt  time.Time `json:"uploaded_at"`
}

func (Document) TableName() string { return "documents" }
