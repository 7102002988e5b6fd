package conversation

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, c *Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) Get(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns conversations ordered by updated_at descending. Archived
// conversations are hidden unless asked for.
func (r *Repo) List(ctx context.Context, limit int, includeArchived bool) ([]Conversation, error) {
	q := r.db.WithContext(ctx).Order("updated_at DESC")
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Conversation
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, id string, updates map[string]any) (*Conversation, error) {
	res := r.db.WithContext(ctx).Model(&Conversation{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes the conversation and its messages in one transaction.
// Returns gorm.ErrRecordNotFound when the id is unknown so a repeated delete
// is distinguishable.
func (r *Repo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Conversation{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Delete(&Message{}, "conversation_id = ?", id).Error
	})
}

// AppendTurn persists a user/assistant pair and keeps the owning
// conversation's derived fields (message_count, preview, updated_at) in sync.
// Both messages land or neither does.
func (r *Repo) AppendTurn(ctx context.Context, userMsg, assistantMsg *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(userMsg).Error; err != nil {
			return err
		}
		if err := tx.Create(assistantMsg).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).
			Where("id = ?", userMsg.ConversationID).
			Updates(map[string]any{
				"message_count": gorm.Expr("message_count + ?", 2),
				"preview":       previewOf(assistantMsg.Content),
			}).Error
	})
}

// ListMessages returns the full ordered history, oldest first.
func (r *Repo) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListRecentMessages returns the newest messages in ASC order, at most limit.
func (r *Repo) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var recent []Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(limit).
		Find(&recent).Error; err != nil {
		return nil, err
	}
	// reverse to oldest -> newest
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

func (r *Repo) GetMessage(ctx context.Context, id uint64) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) MarkMessageIndexed(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Update("indexed_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// Search matches query as a substring of the title or of any message body,
// most recently updated first. An empty query matches everything.
func (r *Repo) Search(ctx context.Context, query string, limit int) ([]Conversation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.List(ctx, limit, false)
	}
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + query + "%"
	var out []Conversation
	err := r.db.WithContext(ctx).
		Where("is_archived = ?", false).
		Where(
			r.db.Where("title LIKE ?", pattern).
				Or("id IN (?)", r.db.Model(&Message{}).
					Select("conversation_id").
					Where("content LIKE ?", pattern)),
		).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
