package conversation

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is a titled, timestamped thread of messages. MessageCount and
// Preview are maintained on every mutation so list views never scan messages.
type Conversation struct {
	ID           string    `gorm:"primaryKey;size:26" json:"conversation_id"`
	Title        string    `gorm:"size:200;not null" json:"title"`
	MessageCount int       `gorm:"not null;default:0" json:"message_count"`
	Preview      string    `gorm:"size:128" json:"preview,omitempty"`
	IsArchived   bool      `gorm:"not null;default:false" json:"is_archived"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `gorm:"index" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Message is one turn half. Immutable once created; assistant messages carry
// the model's stated reasoning steps. IndexedAt is stamped once the text has
// been embedded into the vector store.
type Message struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string     `gorm:"size:26;index;not null" json:"conversation_id"`
	Role           string     `gorm:"size:16;not null" json:"role"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	ReasoningSteps []string   `gorm:"serializer:json;type:text" json:"reasoning_steps,omitempty"`
	IndexedAt      *time.Time `json:"-"`
	CreatedAt      time.Time  `gorm:"index" json:"timestamp"`
}

func (Message) TableName() string { return "messages" }

const previewMaxLen = 100

// previewOf truncates content the way list views display it.
func previewOf(content string) string {
	runes := []rune(content)
	if len(runes) > previewMaxLen {
		return string(runes[:previewMaxLen]) + "..."
	}
	return content
}
