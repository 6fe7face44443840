package chat

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/fabfab/docs-assistant/llm"
	"github.com/fabfab/docs-assistant/vectorstore"
)

type stubEmbedder struct {
	lastText string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return nil, fmt.Errorf("expected a single question, got %d texts", len(texts))
	}
	s.lastText = texts[0]
	return [][]float32{{0.1, 0.2}}, nil
}

type stubIndex struct {
	chunks   []vectorstore.ScoredChunk
	lastTopK int
}

func (s *stubIndex) Upsert(context.Context, []vectorstore.Record) error { return nil }
func (s *stubIndex) DeleteByDoc(context.Context, string) error          { return nil }

func (s *stubIndex) Search(_ context.Context, _ []float32, topK int) ([]vectorstore.ScoredChunk, error) {
	s.lastTopK = topK
	if topK < len(s.chunks) {
		return s.chunks[:topK], nil
	}
	return s.chunks, nil
}

type failingReranker struct{}

func (failingReranker) Rerank(context.Context, string, []vectorstore.ScoredChunk) ([]vectorstore.ScoredChunk, error) {
	return nil, fmt.Errorf("rerank backend unavailable")
}

type reverseReranker struct{}

func (reverseReranker) Rerank(_ context.Context, _ string, chunks []vectorstore.ScoredChunk) ([]vectorstore.ScoredChunk, error) {
	out := make([]vectorstore.ScoredChunk, len(chunks))
	for i, chunk := range chunks {
		out[len(chunks)-1-i] = chunk
	}
	return out, nil
}

type stubLLM struct {
	lastMessages []llm.Message
	content      string
	err          error
}

func (s *stubLLM) Generate(_ context.Context, messages []llm.Message) (llm.Result, error) {
	s.lastMessages = messages
	if s.err != nil {
		return llm.Result{}, s.err
	}
	return llm.Result{
		Content: s.content,
		Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

type stubStreamLLM struct {
	stubLLM
	fragments []string
}

func (s *stubStreamLLM) GenerateStream(_ context.Context, messages []llm.Message, fn func(string) error) (llm.Usage, error) {
	s.lastMessages = messages
	for _, fragment := range s.fragments {
		if err := fn(fragment); err != nil {
			return llm.Usage{}, err
		}
	}
	return llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

var (
	_ Embedder          = (*stubEmbedder)(nil)
	_ vectorstore.Index = (*stubIndex)(nil)
	_ llm.Client        = (*stubLLM)(nil)
	_ llm.StreamClient  = (*stubStreamLLM)(nil)
)

func chunk(docID, content string, score float64) vectorstore.ScoredChunk {
	return vectorstore.ScoredChunk{
		DocID:    docID,
		Content:  content,
		Metadata: map[string]string{"filename": docID},
		Score:    score,
	}
}

func newTestService(embedder Embedder, index vectorstore.Index, client llm.Client, opts Options) *Service {
	opts.Embedder = embedder
	opts.Index = index
	opts.LLM = client
	opts.Logger = log.New(io.Discard, "", 0)
	return NewService(opts)
}

func TestAnswerBuildsPromptFromRetrievedChunks(t *testing.T) {
	embedder := &stubEmbedder{}
	index := &stubIndex{chunks: []vectorstore.ScoredChunk{
		chunk("a.md", "alpha text", 0.9),
		chunk("b.md", "beta text", 0.8),
	}}
	client := &stubLLM{content: "the answer"}

	svc := newTestService(embedder, index, client, Options{})
	answer, err := svc.Answer(context.Background(), Query{Questions: []string{"how do I set up SSO?"}})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if answer.Content != "the answer" {
		t.Errorf("unexpected content %q", answer.Content)
	}
	if answer.Usage.TotalTokens != 15 {
		t.Errorf("unexpected usage %+v", answer.Usage)
	}

	if len(client.lastMessages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(client.lastMessages))
	}
	if client.lastMessages[0].Role != llm.RoleSystem {
		t.Errorf("first message role %q", client.lastMessages[0].Role)
	}
	user := client.lastMessages[1].Content
	if !strings.Contains(user, "User's Question: how do I set up SSO?") {
		t.Errorf("question missing from prompt: %q", user)
	}
	if !strings.Contains(user, "alpha text") || !strings.Contains(user, "beta text") {
		t.Errorf("retrieved chunks missing from prompt: %q", user)
	}
	// Most relevant chunk comes first.
	if strings.Index(user, "alpha text") > strings.Index(user, "beta text") {
		t.Error("chunks not ordered by relevance in the prompt")
	}
}

func TestAnswerJoinsMultipleQuestions(t *testing.T) {
	embedder := &stubEmbedder{}
	client := &stubLLM{content: "ok"}
	svc := newTestService(embedder, &stubIndex{}, client, Options{})

	_, err := svc.Answer(context.Background(), Query{Questions: []string{"first?", "second?"}})
	if err != nil {
		t.Fatal(err)
	}
	if embedder.lastText != "first? second?" {
		t.Errorf("expected joined questions, got %q", embedder.lastText)
	}
}

func TestAnswerScrubsProductName(t *testing.T) {
	embedder := &stubEmbedder{}
	client := &stubLLM{content: "ok"}
	svc := newTestService(embedder, &stubIndex{}, client, Options{ProductName: "Exampleo"})

	_, err := svc.Answer(context.Background(), Query{Questions: []string{"how do I enable MFA in Exampleo?"}})
	if err != nil {
		t.Fatal(err)
	}
	if embedder.lastText != "how do I enable MFA?" {
		t.Errorf("expected product name scrubbed, got %q", embedder.lastText)
	}
}

func TestAnswerEmptyQuestion(t *testing.T) {
	svc := newTestService(&stubEmbedder{}, &stubIndex{}, &stubLLM{}, Options{})
	if _, err := svc.Answer(context.Background(), Query{Questions: []string{"  "}}); err == nil {
		t.Fatal("expected an error for an empty question")
	}
}

func TestAnswerUsesPlaceholderWhenNothingRetrieved(t *testing.T) {
	client := &stubLLM{content: "cannot help"}
	svc := newTestService(&stubEmbedder{}, &stubIndex{}, client, Options{})

	if _, err := svc.Answer(context.Background(), Query{Questions: []string{"anything?"}}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(client.lastMessages[1].Content, noDocsPlaceholder) {
		t.Errorf("expected placeholder in prompt: %q", client.lastMessages[1].Content)
	}
}

func TestAnswerAppliesReranker(t *testing.T) {
	index := &stubIndex{chunks: []vectorstore.ScoredChunk{
		chunk("a.md", "alpha text", 0.9),
		chunk("b.md", "beta text", 0.8),
	}}
	client := &stubLLM{content: "ok"}
	svc := newTestService(&stubEmbedder{}, index, client, Options{Reranker: reverseReranker{}})

	if _, err := svc.Answer(context.Background(), Query{Questions: []string{"q?"}}); err != nil {
		t.Fatal(err)
	}
	user := client.lastMessages[1].Content
	if strings.Index(user, "beta text") > strings.Index(user, "alpha text") {
		t.Error("expected reranked order in the prompt")
	}
}

func TestAnswerRespectsContextBudget(t *testing.T) {
	big := strings.Repeat("x", 300)
	index := &stubIndex{chunks: []vectorstore.ScoredChunk{
		chunk("a.md", big, 0.9),
		chunk("b.md", "small but dropped "+big, 0.8),
	}}
	client := &stubLLM{content: "ok"}
	svc := newTestService(&stubEmbedder{}, index, client, Options{ContextBudget: 400})

	if _, err := svc.Answer(context.Background(), Query{Questions: []string{"q?"}}); err != nil {
		t.Fatal(err)
	}
	user := client.lastMessages[1].Content
	if !strings.Contains(user, big) {
		t.Error("expected the first chunk within budget")
	}
	if strings.Contains(user, "small but dropped") {
		t.Error("expected the over-budget chunk dropped")
	}
}

func TestAnswerStreamForwardsFragmentsInOrder(t *testing.T) {
	client := &stubStreamLLM{fragments: []string{"Hello", ", ", "world"}}
	svc := newTestService(&stubEmbedder{}, &stubIndex{}, client, Options{})

	var got []string
	usage, err := svc.AnswerStream(context.Background(), Query{Questions: []string{"q?"}}, func(fragment string) error {
		got = append(got, fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("AnswerStream: %v", err)
	}
	if strings.Join(got, "") != "Hello, world" {
		t.Errorf("unexpected stream %v", got)
	}
	if usage.TotalTokens != 15 {
		t.Errorf("unexpected usage %+v", usage)
	}
}

func TestAnswerStreamCallbackErrorAborts(t *testing.T) {
	client := &stubStreamLLM{fragments: []string{"a", "b"}}
	svc := newTestService(&stubEmbedder{}, &stubIndex{}, client, Options{})

	wantErr := fmt.Errorf("consumer gone")
	_, err := svc.AnswerStream(context.Background(), Query{Questions: []string{"q?"}}, func(string) error {
		return wantErr
	})
	if err == nil {
		t.Fatal("expected the callback error to abort the stream")
	}
}

func TestDocsAppliesReranker(t *testing.T) {
	index := &stubIndex{chunks: []vectorstore.ScoredChunk{
		chunk("a.md", "alpha text", 0.9),
		chunk("b.md", "beta text", 0.8),
	}}
	svc := newTestService(&stubEmbedder{}, index, &stubLLM{}, Options{Reranker: reverseReranker{}})

	docs, err := svc.Docs(context.Background(), "q?", 0)
	if err != nil {
		t.Fatalf("Docs: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].DocID != "b.md" || docs[1].DocID != "a.md" {
		t.Errorf("expected reranked order, got %s then %s", docs[0].DocID, docs[1].DocID)
	}
}

func TestDocsRerankerErrorPropagates(t *testing.T) {
	index := &stubIndex{chunks: []vectorstore.ScoredChunk{chunk("a.md", "alpha", 0.9)}}
	svc := newTestService(&stubEmbedder{}, index, &stubLLM{}, Options{Reranker: failingReranker{}})

	if _, err := svc.Docs(context.Background(), "q?", 0); err == nil {
		t.Fatal("expected the reranker error to propagate")
	}
}

func TestDocsFallsBackToDefaultCount(t *testing.T) {
	index := &stubIndex{chunks: []vectorstore.ScoredChunk{chunk("a.md", "alpha", 0.9)}}
	svc := newTestService(&stubEmbedder{}, index, &stubLLM{}, Options{TopK: 7})

	if _, err := svc.Docs(context.Background(), "q?", 0); err != nil {
		t.Fatal(err)
	}
	if index.lastTopK != 7 {
		t.Errorf("expected default top-K 7, got %d", index.lastTopK)
	}

	if _, err := svc.Docs(context.Background(), "q?", 3); err != nil {
		t.Fatal(err)
	}
	if index.lastTopK != 3 {
		t.Errorf("expected requested count 3, got %d", index.lastTopK)
	}
}
