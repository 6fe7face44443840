package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fabfab/docs-assistant/chat"
	"github.com/fabfab/docs-assistant/ingestion"
	"github.com/fabfab/docs-assistant/llm"
	"github.com/fabfab/docs-assistant/vectorstore"
)

// ChatService is the slice of the chat pipeline the HTTP layer needs.
type ChatService interface {
	Answer(ctx context.Context, query chat.Query) (chat.Answer, error)
	AnswerStream(ctx context.Context, query chat.Query, fn func(string) error) (llm.Usage, error)
	Docs(ctx context.Context, question string, count int) ([]vectorstore.ScoredChunk, error)
}

// Syncer triggers one sync pass.
type Syncer interface {
	Sync(ctx context.Context) (ingestion.Report, error)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	s.logRequest(r)

	query, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	answer, err := s.service.Answer(r.Context(), query)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, "questions must not be empty")
			return
		}
		s.logger.Printf("api: chat failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to answer the question")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Content: answer.Content,
		Usage: UsageResponse{
			PromptTokens:     answer.Usage.PromptTokens,
			CompletionTokens: answer.Usage.CompletionTokens,
			TotalTokens:      answer.Usage.TotalTokens,
		},
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	s.logRequest(r)

	query, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	usage, err := s.service.AnswerStream(ctx, query, func(fragment string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		writeSSE(w, "chunk", map[string]string{"content": fragment})
		flusher.Flush()
		return nil
	})
	if err != nil {
		s.logger.Printf("api: stream failed: %v", err)
		writeSSE(w, "error", ErrorResponse{Detail: "failed to answer the question"})
		flusher.Flush()
		return
	}

	writeSSE(w, "done", map[string]UsageResponse{"usage": {
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}})
	flusher.Flush()
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	question := strings.TrimSpace(r.URL.Query().Get("question"))
	if question == "" {
		writeError(w, http.StatusBadRequest, "question query parameter is required")
		return
	}

	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "count must be an integer")
			return
		}
		count = parsed
	}

	chunks, err := s.service.Docs(r.Context(), question, count)
	if err != nil {
		s.logger.Printf("api: docs retrieval failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve docs")
		return
	}

	docs := make([]DocResponse, len(chunks))
	for i, chunk := range chunks {
		docs[i] = DocResponse{PageContent: chunk.Content, Metadata: chunk.Metadata}
	}
	writeJSON(w, http.StatusOK, DocsResponse{Docs: docs})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	s.logRequest(r)

	if !s.syncGate.TryLock() {
		writeError(w, http.StatusConflict, "a sync run is already in progress")
		return
	}
	defer s.syncGate.Unlock()

	report, err := s.syncer.Sync(r.Context())
	if err != nil {
		s.logger.Printf("api: sync failed: %v", err)
		writeError(w, http.StatusInternalServerError, "sync run failed")
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		Skipped:  report.Skipped,
		Updated:  report.Updated,
		Deleted:  report.Deleted,
		Failed:   report.Failed,
		Failures: report.Failures,
	})
}

func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (chat.Query, bool) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return chat.Query{}, false
	}

	if len(req.Questions) == 0 || strings.TrimSpace(strings.Join(req.Questions, "")) == "" {
		writeError(w, http.StatusBadRequest, "questions must not be empty")
		return chat.Query{}, false
	}

	return chat.Query{
		Questions: req.Questions,
		Context:   req.QuestionContext,
	}, true
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
