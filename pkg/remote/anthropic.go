package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ogulcanaydogan/energy-advisor/pkg/reliability"
)

// AnthropicConfig configures an AnthropicService.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	BaseURL   string // optional, for proxies and tests
}

// AnthropicService asks a Claude model for the enhancement.
type AnthropicService struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

var _ Service = (*AnthropicService)(nil)

// NewAnthropicService creates a service backed by the Anthropic SDK. The
// SDK's own retries are disabled; the reliability guard owns retry policy.
func NewAnthropicService(cfg AnthropicConfig) (*AnthropicService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicService{
		client:    sdk.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (s *AnthropicService) Endpoint() string { return "anthropic:" + s.model }
func (s *AnthropicService) Provider() string { return "anthropic" }
func (s *AnthropicService) Model() string    { return s.model }

func (s *AnthropicService) Analyze(ctx context.Context, req Request) (*Response, error) {
	prompt, err := req.Prompt()
	if err != nil {
		return nil, err
	}

	msg, err := s.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    []sdk.TextBlockParam{{Text: SystemPrompt}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	analysis, err := DecodeAnalysis([]byte(text.String()), req.Tags)
	if err != nil {
		return nil, err
	}

	return &Response{
		Analysis: analysis,
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
		Provider: "anthropic",
		Model:    string(msg.Model),
	}, nil
}

func classifyAnthropicError(err error) error {
	wrapped := fmt.Errorf("anthropic: create message: %w", err)

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if reliability.IsTransientHTTPStatus(apiErr.StatusCode) || apiErr.StatusCode == 529 {
			return reliability.NewTransientError(wrapped, apiErr.StatusCode)
		}
		return wrapped
	}
	if errors.Is(err, context.Canceled) {
		return wrapped
	}
	// no API error means the request never got a response
	return reliability.NewTransientError(wrapped, 0)
}
