package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gopherchat/gopherchat/internal/common"
)

// structuredReply is the contract the prompt demands from the model. Some
// providers answer with "answer" instead of "response"; both are accepted,
// anything else is a protocol violation and fails the turn.
type structuredReply struct {
	Response       string   `json:"response"`
	Answer         string   `json:"answer"`
	ReasoningSteps []string `json:"reasoning_steps"`
}

func parseStructuredReply(raw string) (answer string, steps []string, err error) {
	payload := stripFences(strings.TrimSpace(raw))

	var reply structuredReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return "", nil, fmt.Errorf("%w: malformed structured reply", common.ErrUpstream)
	}

	answer = reply.Response
	if answer == "" {
		answer = reply.Answer
	}
	if strings.TrimSpace(answer) == "" {
		return "", nil, fmt.Errorf("%w: structured reply missing response field", common.ErrUpstream)
	}
	if reply.ReasoningSteps == nil {
		reply.ReasoningSteps = []string{}
	}
	return answer, reply.ReasoningSteps, nil
}

// stripFences removes a surrounding markdown code fence, which models emit
// despite instructions.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
