package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/reliability"
)

const maxResponseBytes = 1 << 20

// HTTPConfig configures an HTTPService.
type HTTPConfig struct {
	URL      string
	APIKey   string
	Provider string
	Model    string
	Timeout  time.Duration // client-level bound; per-attempt timeouts come from the guard
}

// HTTPService posts analysis requests as JSON to a self-hosted endpoint.
type HTTPService struct {
	cfg    HTTPConfig
	client *http.Client
}

var _ Service = (*HTTPService)(nil)

// NewHTTPService creates an HTTP-backed service.
func NewHTTPService(cfg HTTPConfig) (*HTTPService, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q", cfg.URL)
	}
	if cfg.Provider == "" {
		cfg.Provider = "advisor"
	}
	if cfg.Model == "" {
		cfg.Model = "advisor-v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPService{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (s *HTTPService) Endpoint() string { return s.cfg.Provider + ":" + s.cfg.URL }
func (s *HTTPService) Provider() string { return s.cfg.Provider }
func (s *HTTPService) Model() string    { return s.cfg.Model }

type httpRequest struct {
	Model   string  `json:"model"`
	System  string  `json:"system"`
	Request Request `json:"request"`
}

func (s *HTTPService) Analyze(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(httpRequest{Model: s.cfg.Model, System: SystemPrompt, Request: req})
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "energy-advisor/1.0")
	if s.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, reliability.NewTransientError(fmt.Errorf("post analysis: %w", err), 0)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, reliability.NewTransientError(fmt.Errorf("read analysis response: %w", err), resp.StatusCode)
	}

	switch {
	case reliability.IsTransientHTTPStatus(resp.StatusCode):
		return nil, reliability.NewTransientError(fmt.Errorf("analysis service returned status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	raw, usage, modelName, err := parseEnvelope(data)
	if err != nil {
		return nil, reliability.NewMalformedError(fmt.Errorf("decode response: %w", err), "body")
	}
	analysis, err := DecodeAnalysis(raw, req.Tags)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = s.cfg.Model
	}

	return &Response{
		Analysis: analysis,
		Usage:    usage,
		Provider: s.cfg.Provider,
		Model:    modelName,
	}, nil
}
