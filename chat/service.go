// Package chat implements the query pipeline: retrieve relevant chunks,
// optionally rerank them, assemble a bounded context and generate an answer.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/fabfab/docs-assistant/llm"
	"github.com/fabfab/docs-assistant/rerank"
	"github.com/fabfab/docs-assistant/vectorstore"
)

const noDocsPlaceholder = "No docs found for the question"

// ErrEmptyQuestion marks a query with no usable question text, a caller
// error rather than a backend failure.
var ErrEmptyQuestion = errors.New("empty question")

const systemPrompt = `You are a documentation assistant. You answer questions
strictly from the documentation excerpts provided to you. If the excerpts do
not contain the answer, say so plainly instead of guessing. Include relevant
doc links from the excerpt metadata when they help the user read further.`

// Query is one answered question. Questions holds one or more user
// questions; Context optionally carries conversational context and defaults
// to the first question.
type Query struct {
	Questions []string
	Context   string
}

// Answer is a completed generation with provider-reported usage.
type Answer struct {
	Content string
	Usage   llm.Usage
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Service struct {
	embedder Embedder
	index    vectorstore.Index
	reranker rerank.Reranker
	llm      llm.Client
	logger   *log.Logger

	topK        int
	budget      int
	productScrb *regexp.Regexp
}

type Options struct {
	Embedder Embedder
	Index    vectorstore.Index
	Reranker rerank.Reranker
	LLM      llm.Client
	Logger   *log.Logger

	// TopK is the retrieval depth when the caller does not ask for one.
	TopK int

	// ContextBudget caps the assembled context size in characters.
	ContextBudget int

	// ProductName, when set, is scrubbed from questions in the phrase
	// "in <product>" before retrieval. Docs rarely repeat their own product
	// name, so leaving it in skews similarity search.
	ProductName string
}

func NewService(opts Options) *Service {
	reranker := opts.Reranker
	if reranker == nil {
		reranker = rerank.NoopReranker{}
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}
	budget := opts.ContextBudget
	if budget <= 0 {
		budget = 24000
	}

	var scrub *regexp.Regexp
	if opts.ProductName != "" {
		scrub = regexp.MustCompile(`(?i)\s+in\s+` + regexp.QuoteMeta(opts.ProductName) + `\b`)
	}

	return &Service{
		embedder:    opts.Embedder,
		index:       opts.Index,
		reranker:    reranker,
		llm:         opts.LLM,
		logger:      opts.Logger,
		topK:        topK,
		budget:      budget,
		productScrb: scrub,
	}
}

// Answer runs the full pipeline and blocks until the generation completes.
func (s *Service) Answer(ctx context.Context, query Query) (Answer, error) {
	messages, err := s.prepare(ctx, query)
	if err != nil {
		return Answer{}, err
	}

	s.logger.Printf("chat: generating")
	result, err := s.llm.Generate(ctx, messages)
	if err != nil {
		s.logger.Printf("chat: generation failed: %v", err)
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	s.logger.Printf("chat: completed tokens=%d", result.Usage.TotalTokens)
	return Answer{Content: result.Content, Usage: result.Usage}, nil
}

// AnswerStream runs the pipeline and forwards answer fragments to fn in
// order. A nil error means the stream completed; fn errors and context
// cancellation abort the generation.
func (s *Service) AnswerStream(ctx context.Context, query Query, fn func(string) error) (llm.Usage, error) {
	messages, err := s.prepare(ctx, query)
	if err != nil {
		return llm.Usage{}, err
	}

	s.logger.Printf("chat: generating (stream)")

	streamer, ok := s.llm.(llm.StreamClient)
	if !ok {
		result, err := s.llm.Generate(ctx, messages)
		if err != nil {
			s.logger.Printf("chat: generation failed: %v", err)
			return llm.Usage{}, fmt.Errorf("generate answer: %w", err)
		}
		if err := fn(result.Content); err != nil {
			return llm.Usage{}, err
		}
		return result.Usage, nil
	}

	usage, err := streamer.GenerateStream(ctx, messages, fn)
	if err != nil {
		s.logger.Printf("chat: stream failed: %v", err)
		return usage, fmt.Errorf("stream answer: %w", err)
	}

	s.logger.Printf("chat: completed tokens=%d", usage.TotalTokens)
	return usage, nil
}

// Docs returns the retrieval hits for a question without generation,
// reranked the same way the answer pipeline sees them. count<=0 falls back
// to the configured retrieval depth.
func (s *Service) Docs(ctx context.Context, question string, count int) ([]vectorstore.ScoredChunk, error) {
	if count <= 0 {
		count = s.topK
	}

	scrubbed := s.scrub(question)
	chunks, err := s.retrieve(ctx, scrubbed, count)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return chunks, nil
	}

	reranked, err := s.reranker.Rerank(ctx, scrubbed, chunks)
	if err != nil {
		return nil, fmt.Errorf("rerank chunks: %w", err)
	}
	return reranked, nil
}

// prepare runs retrieval and rerank, then builds the prompt messages.
func (s *Service) prepare(ctx context.Context, query Query) ([]llm.Message, error) {
	question := s.scrub(strings.TrimSpace(strings.Join(query.Questions, " ")))
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	questionContext := strings.TrimSpace(query.Context)
	if questionContext == "" && len(query.Questions) > 0 {
		questionContext = query.Questions[0]
	}

	s.logger.Printf("chat: retrieving")
	chunks, err := s.retrieve(ctx, question, s.topK)
	if err != nil {
		s.logger.Printf("chat: retrieval failed: %v", err)
		return nil, err
	}

	if len(chunks) > 0 {
		s.logger.Printf("chat: reranking %d chunks", len(chunks))
		reranked, err := s.reranker.Rerank(ctx, question, chunks)
		if err != nil {
			s.logger.Printf("chat: rerank failed: %v", err)
			return nil, fmt.Errorf("rerank chunks: %w", err)
		}
		chunks = reranked
	}

	docsContext := assembleContext(chunks, s.budget)

	userPrompt := fmt.Sprintf("User's Question: %s\n\nQuestion's context: %s\n\nInformation from docs:\n%s",
		question, questionContext, docsContext)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userPrompt},
	}, nil
}

func (s *Service) retrieve(ctx context.Context, question string, topK int) ([]vectorstore.ScoredChunk, error) {
	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one question", len(vectors))
	}

	chunks, err := s.index.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return chunks, nil
}

func (s *Service) scrub(question string) string {
	if s.productScrb == nil {
		return question
	}
	return strings.TrimSpace(s.productScrb.ReplaceAllString(question, ""))
}

// assembleContext renders chunks most-relevant-first until the character
// budget is exhausted. Chunks past the budget are dropped whole.
func assembleContext(chunks []vectorstore.ScoredChunk, budget int) string {
	if len(chunks) == 0 {
		return noDocsPlaceholder
	}

	var b strings.Builder
	for _, chunk := range chunks {
		line := formatChunk(chunk)
		if b.Len() > 0 && b.Len()+len(line)+1 > budget {
			break
		}
		if b.Len() == 0 && len(line) > budget {
			break
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}

	if b.Len() == 0 {
		return noDocsPlaceholder
	}
	return b.String()
}

func formatChunk(chunk vectorstore.ScoredChunk) string {
	var meta strings.Builder
	for _, key := range sortedKeys(chunk.Metadata) {
		if meta.Len() > 0 {
			meta.WriteString(", ")
		}
		fmt.Fprintf(&meta, "%s: %s", key, chunk.Metadata[key])
	}
	return fmt.Sprintf("Document: {content: %s, metadata: {%s}}", chunk.Content, meta.String())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
