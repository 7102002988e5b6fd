package chat

import (
	"strings"

	"github.com/gopherchat/gopherchat/internal/ai"
)

const systemPrompt = "You are an advanced assistant with strong reasoning skills. " +
	"You must ground answers in the provided context snippets when relevant. " +
	"When document chunks are provided, prioritize information from those documents. " +
	"If the context is empty, rely on your own knowledge but acknowledge when information is missing. " +
	"Respond concisely, clearly, and directly answer the user's intent. " +
	"Highlight key points and avoid unnecessary verbosity."

const formatInstructions = "Return a single JSON object with exactly these fields:\n" +
	`{"reasoning_steps": ["step-by-step reasoning leading to the answer"], "response": "the final reply the user will see"}` + "\n" +
	"Do not wrap the JSON in markdown fences and do not add any other fields or text."

// buildMessages assembles the provider payload: persona, grounding context,
// then the user turn with strict format instructions.
func buildMessages(userMessage string, history, contextSnippets []string) []ai.Message {
	formattedHistory := strings.Join(history, "\n")
	if formattedHistory == "" {
		formattedHistory = "(no prior messages)"
	}
	formattedContext := strings.Join(contextSnippets, "\n")
	if formattedContext == "" {
		formattedContext = "(no retrieved context)"
	}

	var grounding strings.Builder
	grounding.WriteString("Conversation history:\n")
	grounding.WriteString(formattedHistory)
	grounding.WriteString("\n\nRelevant context (from this conversation and uploaded documents):\n")
	grounding.WriteString(formattedContext)

	return []ai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "system", Content: grounding.String()},
		{Role: "user", Content: userMessage + "\n\n" + formatInstructions},
	}
}
