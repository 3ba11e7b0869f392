package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel      = "claude-sonnet-4-20250514"
	DefaultFastModel  = "claude-haiku-4-5-20251001"
	DefaultMaxTokens  = 1024
	DefaultMaxRetries = 2
)

var ErrNotConfigured = errors.New("llm: api key not configured")

// Request is one generation call. Fast selects the cheaper model.
type Request struct {
	System    string
	Prompt    string
	Fast      bool
	MaxTokens int
}

// Stream yields text chunks until io.EOF.
type Stream interface {
	Next() (string, error)
	Close() error
}

// Generator is what the HTTP layer needs from a text model.
type Generator interface {
	Open(ctx context.Context, req Request) (Stream, error)
	Complete(ctx context.Context, req Request) (string, error)
}

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	FastModel string
	MaxTokens int
	// MaxRetries is handed to the SDK as is; zero disables retries.
	MaxRetries int
	HTTPClient *http.Client
}

// Client wraps the Anthropic SDK behind Generator.
type Client struct {
	cfg Config
	api anthropic.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.FastModel == "" {
		cfg.FastModel = DefaultFastModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	hc := cfg.HTTPClient
	if hc == nil {
		// no overall timeout: streams are bounded by the request context
		hc = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 60 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   16,
		}}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{cfg: cfg, api: anthropic.NewClient(opts...)}
}

func (c *Client) params(req Request) anthropic.MessageNewParams {
	model := c.cfg.Model
	if req.Fast {
		model = c.cfg.FastModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		p.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return p
}

// Complete runs a non-streaming call and returns the concatenated text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}
	msg, err := c.api.Messages.New(ctx, c.params(req))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String(), nil
}

// Open starts a streaming call. The caller must Close the stream.
func (c *Client) Open(ctx context.Context, req Request) (Stream, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	stream := c.api.Messages.NewStreaming(ctx, c.params(req))
	// a rejected request surfaces before the first event
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return &textStream{events: stream}, nil
}
