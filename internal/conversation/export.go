package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/gopherchat/gopherchat/internal/common"
)

// Export renders the full ordered history in the requested format and returns
// the payload with a download filename and content type.
func (s *Service) Export(ctx context.Context, id, format string) ([]byte, string, string, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	msgs, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, "", "", err
	}

	base := fmt.Sprintf("conversation_%s", shortID(id))
	switch strings.ToLower(format) {
	case "json":
		data, err := exportJSON(c, msgs)
		return data, base + ".json", "application/json", err
	case "txt":
		return exportTXT(c, msgs), base + ".txt", "text/plain; charset=utf-8", nil
	case "pdf":
		data, err := exportPDF(c, msgs)
		return data, base + ".pdf", "application/pdf", err
	default:
		return nil, "", "", fmt.Errorf("%w: %q (want pdf, txt or json)", common.ErrUnsupportedFormat, format)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type exportMessage struct {
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	ReasoningSteps []string  `json:"reasoning_steps,omitempty"`
}

type exportDocument struct {
	ConversationID string          `json:"conversation_id"`
	Title          string          `json:"title"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	MessageCount   int             `json:"message_count"`
	Messages       []exportMessage `json:"messages"`
}

func exportJSON(c *Conversation, msgs []Message) ([]byte, error) {
	doc := exportDocument{
		ConversationID: c.ID,
		Title:          c.Title,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		MessageCount:   len(msgs),
		Messages:       make([]exportMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		doc.Messages = append(doc.Messages, exportMessage{
			Role:           m.Role,
			Content:        m.Content,
			Timestamp:      m.CreatedAt,
			ReasoningSteps: m.ReasoningSteps,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

func exportTXT(c *Conversation, msgs []Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation: %s\n", c.Title)
	fmt.Fprintf(&b, "ID: %s\n", c.ID)
	fmt.Fprintf(&b, "Created: %s\n", c.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Updated: %s\n", c.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Messages: %d\n\n", len(msgs))
	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n\n")

	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] (%s)\n", strings.ToUpper(m.Role), m.CreatedAt.Format(time.RFC3339))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}

func exportPDF(c *Conversation, msgs []Message) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr(c.Title), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(90, 90, 90)
	meta := fmt.Sprintf("ID: %s\nCreated: %s\nUpdated: %s\nMessages: %d",
		c.ID,
		c.CreatedAt.Format(time.RFC3339),
		c.UpdatedAt.Format(time.RFC3339),
		len(msgs),
	)
	pdf.MultiCell(0, 5, tr(meta), "", "L", false)
	pdf.Ln(4)
	pdf.SetTextColor(0, 0, 0)

	for _, m := range msgs {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("[%s] (%s)", strings.ToUpper(m.Role), m.CreatedAt.Format(time.RFC3339))
		pdf.MultiCell(0, 5, tr(header), "", "L", false)

		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(m.Content), "", "L", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
