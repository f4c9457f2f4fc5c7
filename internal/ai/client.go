// Package ai refines text with a remote chat-completion model. It builds
// the tone-specific prompt, streams the response, and classifies
// failures.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/arin/gramo/internal/config"
)

// Client refines text through a completion provider. A Client holds no
// per-request state and is safe for concurrent use.
type Client struct {
	provider Provider
	err      error // configuration problem reported on every call
}

// Option customises a Client built by NewClient.
type Option func(*OpenAIOptions)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *OpenAIOptions) { o.HTTPClient = hc }
}

// WithRequestHook registers a callback that receives the client request
// id of every outgoing request.
func WithRequestHook(fn func(requestID string)) Option {
	return func(o *OpenAIOptions) { o.OnRequest = fn }
}

// NewClient builds a Client for the provider named in cfg. An unknown
// provider is not reported here; every call fails with a configuration
// error instead.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	preset, ok := LookupPreset(cfg.Provider)
	if !ok {
		return &Client{err: configError(fmt.Sprintf("unknown provider %q (known: %s)",
			cfg.Provider, strings.Join(PresetNames(), ", ")))}
	}

	o := OpenAIOptions{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Decoder:     preset.Decoder,
	}
	if o.BaseURL == "" {
		o.BaseURL = preset.BaseURL
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{provider: NewOpenAIProvider(o)}
}

// NewClientWithProvider creates a Client backed by an explicit provider.
func NewClientWithProvider(p Provider) *Client {
	return &Client{provider: p}
}

func refineMessages(text string, tone Tone) []Message {
	return []Message{
		{Role: RoleSystem, Content: BuildSystemPrompt(tone)},
		{Role: RoleUser, Content: text},
	}
}

// Refine corrects text and adjusts it to tone. onIncrement, when non-nil,
// receives each non-empty fragment in arrival order before Refine
// returns. The result is the trimmed concatenation of the fragments; an
// empty result is not an error. Callers must not pass empty text.
func (c *Client) Refine(ctx context.Context, text string, tone Tone, onIncrement func(string)) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	out, err := collectStream(c.streamOrFallback(ctx, refineMessages(text, tone)), onIncrement)
	if err != nil {
		if errors.Is(err, ErrStreamClosed) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RefineStream is the channel form of Refine. The channel yields content
// fragments and is closed after a final delta with Done or Err set. The
// caller must drain it until it closes; cancelling ctx ends the stream
// early with an Err delta.
func (c *Client) RefineStream(ctx context.Context, text string, tone Tone) <-chan StreamDelta {
	if c.err != nil {
		ch := make(chan StreamDelta, 1)
		ch <- StreamDelta{Err: c.err}
		close(ch)
		return ch
	}
	return c.streamOrFallback(ctx, refineMessages(text, tone))
}

// streamOrFallback uses CompleteStream when the provider supports it and
// otherwise wraps Complete in a single-token stream.
func (c *Client) streamOrFallback(ctx context.Context, messages []Message) <-chan StreamDelta {
	if sp, ok := c.provider.(StreamingProvider); ok {
		return sp.CompleteStream(ctx, messages)
	}

	ch := make(chan StreamDelta, 2)
	go func() {
		defer close(ch)
		text, err := c.provider.Complete(ctx, messages)
		if err != nil {
			ch <- StreamDelta{Err: err}
			return
		}
		if text != "" {
			ch <- StreamDelta{Token: text}
		}
		ch <- StreamDelta{Done: true}
	}()
	return ch
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Ping verifies the configuration and the endpoint without sending a
// prompt. Providers that cannot be pinged report success.
func (c *Client) Ping(ctx context.Context) error {
	if c.err != nil {
		return c.err
	}
	if p, ok := c.provider.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
