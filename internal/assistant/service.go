// Package assistant answers Clarity questions by combining retrieval, prompt
// assembly and a language model.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/clarirag/internal/generation"
	"github.com/starford/clarirag/internal/models"
	"github.com/starford/clarirag/internal/prompt"
	"github.com/starford/clarirag/internal/retrieval"
)

// CodeInstruction is prepended to the question for code generation requests.
const CodeInstruction = "Generate complete, working Clarity smart contract code for the request below. " +
	"Put the full contract in a single ```clarity code block and follow it with a short explanation " +
	"of the public functions.\n\nRequest: "

// ErrNoGenerator is returned by Answer and GenerateCode when the service was
// built without a generator.
var ErrNoGenerator = errors.New("assistant: no generator configured")

// Answer is the result of a generation request.
type Answer struct {
	Answer    string             `json:"answer"`
	Model     string             `json:"model"`
	Warning   string             `json:"warning,omitempty"`
	Retrieval retrieval.Response `json:"retrieval"`
	Elapsed   time.Duration      `json:"elapsed_ns"`
}

// PromptResult is an assembled prompt together with the hits it was built from.
type PromptResult struct {
	Prompt    string             `json:"prompt"`
	Warning   string             `json:"warning,omitempty"`
	Retrieval retrieval.Response `json:"retrieval"`
}

// Service coordinates the retriever and the generator.
type Service struct {
	retriever     *retrieval.Retriever
	generator     generation.Generator
	systemMessage string
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSystemMessage replaces the default system message.
func WithSystemMessage(msg string) Option {
	return func(s *Service) {
		if msg != "" {
			s.systemMessage = msg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service. generator may be nil, in which case only
// Retrieve and Prompt are available.
func NewService(r *retrieval.Retriever, g generation.Generator, opts ...Option) *Service {
	s := &Service{
		retriever:     r,
		generator:     g,
		systemMessage: prompt.DefaultSystemMessage,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve runs a plain retrieval.
func (s *Service) Retrieve(ctx context.Context, req retrieval.Request) (retrieval.Response, error) {
	return s.retriever.Handle(ctx, req)
}

// Prompt retrieves context for req and assembles the generation prompt.
func (s *Service) Prompt(ctx context.Context, req retrieval.Request) (PromptResult, error) {
	text, res, err := s.build(ctx, req, req.Query)
	if err != nil {
		return PromptResult{}, err
	}
	return PromptResult{
		Prompt:    text,
		Warning:   res.Warning,
		Retrieval: retrieval.NewResponse(res),
	}, nil
}

// Answer retrieves context for req and asks the generator.
func (s *Service) Answer(ctx context.Context, req retrieval.Request) (Answer, error) {
	return s.ask(ctx, req, req.Query)
}

// GenerateCode is Answer with the question framed as a code generation
// request. Retrieval still uses the bare question.
func (s *Service) GenerateCode(ctx context.Context, req retrieval.Request) (Answer, error) {
	return s.ask(ctx, req, CodeInstruction+req.Query)
}

// Model names the configured generator, or "" when there is none.
func (s *Service) Model() string {
	if s.generator == nil {
		return ""
	}
	return s.generator.Model()
}

func (s *Service) ask(ctx context.Context, req retrieval.Request, question string) (Answer, error) {
	if s.generator == nil {
		return Answer{}, ErrNoGenerator
	}

	start := time.Now()
	text, res, err := s.build(ctx, req, question)
	if err != nil {
		return Answer{}, err
	}

	out, err := s.generator.Generate(ctx, text)
	if err != nil {
		return Answer{}, fmt.Errorf("assistant: generate: %w", err)
	}

	elapsed := time.Since(start)
	s.logger.Info("assistant: answered",
		slog.String("model", s.generator.Model()),
		slog.Int("code_hits", len(res.Code)),
		slog.Int("docs_hits", len(res.Docs)),
		slog.Duration("elapsed", elapsed),
	)

	return Answer{
		Answer:    out,
		Model:     s.generator.Model(),
		Warning:   res.Warning,
		Retrieval: retrieval.NewResponse(res),
		Elapsed:   elapsed,
	}, nil
}

func (s *Service) build(ctx context.Context, req retrieval.Request, question string) (string, models.Retrieval, error) {
	res, err := s.retriever.Do(ctx, req)
	if err != nil {
		return "", models.Retrieval{}, err
	}
	return prompt.Build(res, question, s.systemMessage), res, nil
}
