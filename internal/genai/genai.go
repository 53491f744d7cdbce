// Package genai wraps the OpenAI chat API for the assistant's free-form
// answers and for the final project document.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// ErrNoChoicesReturned indicates the API answered without any completion
// choices.
var ErrNoChoicesReturned = errors.New("no choices returned from completion API")

// DefaultModel is used unless WithModel overrides it.
const DefaultModel = openai.ChatModelGPT4o

// DefaultMaxRounds bounds the continuation loop for answers the model could
// not finish in one completion.
const DefaultMaxRounds = 3

const continuePrompt = "Continúa exactamente donde quedaste, sin repetir lo ya escrito."

// SystemPrimer grounds every completion in the Colombian public investment
// context.
const SystemPrimer = "Eres un asistente experto en la formulación de proyectos de inversión pública en Colombia, " +
	"bajo la Metodología General Ajustada (MGA) del Departamento Nacional de Planeación, " +
	"con énfasis en Infraestructura de Datos (IDEC) e Inteligencia Artificial (IA). " +
	"Responde siempre en español, con precisión técnica y lenguaje claro. " +
	"Nunca menciones códigos internos de árboles (como C1, C1CI1 u O1MI1) en tus respuestas."

// chatService is the minimal surface of the OpenAI client the package uses,
// kept narrow so tests can substitute a mock.
type chatService interface {
	CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type openaiService struct {
	client openai.Client
}

func (s *openaiService) CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return s.client.Chat.Completions.New(ctx, params)
}

// Client produces completions with a bounded continuation loop.
type Client struct {
	svc         chatService
	model       string
	maxRounds   int
	temperature float64
	maxTokens   int64
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey builds the underlying OpenAI client with an explicit key
// instead of the OPENAI_API_KEY environment variable.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		svc := &openaiService{client: openai.NewClient(option.WithAPIKey(key))}
		c.svc = svc
	}
}

// WithBaseURL points the client at a compatible alternative endpoint.
func WithBaseURL(apiKey, baseURL string) Option {
	return func(c *Client) {
		svc := &openaiService{client: openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL))}
		c.svc = svc
	}
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxRounds overrides the continuation bound.
func WithMaxRounds(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRounds = n
		}
	}
}

// WithMaxTokens caps each completion round.
func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// withService is how tests inject a mock completion backend.
func withService(svc chatService) Option {
	return func(c *Client) { c.svc = svc }
}

// NewClient builds a Client. Without WithAPIKey or WithBaseURL the OpenAI
// client reads its key from the environment.
func NewClient(opts ...Option) *Client {
	c := &Client{
		model:       DefaultModel,
		maxRounds:   DefaultMaxRounds,
		temperature: 0.4,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.svc == nil {
		c.svc = &openaiService{client: openai.NewClient()}
	}
	return c
}

// AskMarkdown sends the messages and returns the full markdown answer,
// issuing up to maxRounds-1 continuation requests when a round stops short
// on length or a content filter.
func (c *Client) AskMarkdown(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	msgs := append([]openai.ChatCompletionMessageParamUnion(nil), messages...)
	var out strings.Builder

	for round := 1; ; round++ {
		params := openai.ChatCompletionNewParams{
			Model:       c.model,
			Messages:    msgs,
			Temperature: param.NewOpt(c.temperature),
		}
		if c.maxTokens > 0 {
			params.MaxTokens = param.NewOpt(c.maxTokens)
		}
		resp, err := c.svc.CreateCompletion(ctx, params)
		if err != nil {
			return "", fmt.Errorf("chat completion round %d: %w", round, err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrNoChoicesReturned
		}
		choice := resp.Choices[0]
		out.WriteString(choice.Message.Content)

		finish := choice.FinishReason
		c.logger.Debug("GenAI.AskMarkdown: round complete", "round", round, "finish_reason", finish)
		if finish != "length" && finish != "content_filter" {
			break
		}
		if round >= c.maxRounds {
			c.logger.Warn("GenAI.AskMarkdown: answer still truncated after max rounds", "rounds", round)
			break
		}
		msgs = append(msgs,
			openai.AssistantMessage(choice.Message.Content),
			openai.UserMessage(continuePrompt),
		)
	}
	return strings.TrimSpace(out.String()), nil
}

// Answer responds to one free-form question under the system primer.
func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	return c.AskMarkdown(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(SystemPrimer),
		openai.UserMessage(question),
	})
}
