package api

import (
	"encoding/json"
	"fmt"
)

// ChatRequest accepts questions as either a single string or an array of
// strings.
type ChatRequest struct {
	Questions       []string
	QuestionContext string
}

func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Questions       json.RawMessage `json:"questions"`
		QuestionContext string          `json:"question_context"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.QuestionContext = raw.QuestionContext

	if len(raw.Questions) == 0 {
		return fmt.Errorf("questions is required")
	}

	var single string
	if err := json.Unmarshal(raw.Questions, &single); err == nil {
		r.Questions = []string{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(raw.Questions, &many); err != nil {
		return fmt.Errorf("questions must be a string or an array of strings")
	}
	r.Questions = many
	return nil
}

type UsageResponse struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	Content string        `json:"content"`
	Usage   UsageResponse `json:"usage"`
}

type DocResponse struct {
	PageContent string            `json:"page_content"`
	Metadata    map[string]string `json:"metadata"`
}

type DocsResponse struct {
	Docs []DocResponse `json:"docs"`
}

type SyncResponse struct {
	Skipped  int      `json:"skipped"`
	Updated  int      `json:"updated"`
	Deleted  int      `json:"deleted"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
