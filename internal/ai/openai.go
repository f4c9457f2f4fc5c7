package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/arin/gramo/internal/config"
	"github.com/google/uuid"
)

const (
	completionsPath   = "/chat/completions"
	requestIDHeader   = "X-Client-Request-Id"
	maxErrorBodyBytes = 64 * 1024
	defaultMaxTokens  = 2000
)

// OpenAIProvider implements StreamingProvider for any chat-completions
// endpoint that speaks the OpenAI streaming protocol.
type OpenAIProvider struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	decoder     DeltaDecoder
	httpClient  *http.Client
	onRequest   func(requestID string)
}

// OpenAIOptions configures an OpenAIProvider. Zero values select the
// defaults, except Temperature: zero is sent as is, and values outside
// [0, config.MaxTemperature] are clamped.
type OpenAIOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Decoder     DeltaDecoder
	HTTPClient  *http.Client

	// OnRequest, when set, is called with the client request id right
	// before each request is sent.
	OnRequest func(requestID string)
}

// NewOpenAIProvider creates a provider for the given options. The client
// has no overall timeout; a stream lasts as long as the server keeps it
// open unless the caller's context says otherwise.
func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:      opts.APIKey,
		model:       opts.Model,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		temperature: config.ClampTemperature(opts.Temperature),
		maxTokens:   opts.MaxTokens,
		decoder:     opts.Decoder,
		httpClient:  opts.HTTPClient,
		onRequest:   opts.OnRequest,
	}
	if p.maxTokens <= 0 {
		p.maxTokens = defaultMaxTokens
	}
	if p.decoder == nil {
		p.decoder = chatDeltaDecoder{}
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{}
	}
	return p
}

// Complete streams the response and returns it in one piece.
func (o *OpenAIProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	text, err := collectStream(o.CompleteStream(ctx, messages), nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// CompleteStream sends messages with streaming enabled and emits content
// fragments as they are decoded. Token sends stop when ctx is done, but
// the final Done or Err delta is always delivered, so the caller must
// drain the channel until it closes.
func (o *OpenAIProvider) CompleteStream(ctx context.Context, messages []Message) <-chan StreamDelta {
	ch := make(chan StreamDelta, 1)
	go func() {
		defer close(ch)
		err := o.stream(ctx, messages, func(token string) error {
			if !send(ctx, ch, StreamDelta{Token: token}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			finish(ch, StreamDelta{Err: err})
			return
		}
		finish(ch, StreamDelta{Done: true})
	}()
	return ch
}

func (o *OpenAIProvider) stream(ctx context.Context, messages []Message, emit func(string) error) error {
	if strings.TrimSpace(o.apiKey) == "" {
		return configError(msgMissingKey)
	}

	wire := make([]chatMessage, len(messages))
	for i, m := range messages {
		wire[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	body, err := json.Marshal(chatRequest{
		Model:       o.model,
		Messages:    wire,
		Stream:      true,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return networkError(fmt.Errorf("marshal request: %w", err), "")
	}

	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return networkError(fmt.Errorf("create request: %w", err), requestID)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set(requestIDHeader, requestID)

	if o.onRequest != nil {
		o.onRequest(requestID)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return networkError(err, requestID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		ce := ClassifyStatus(resp.StatusCode, raw)
		ce.RequestID = requestID
		return ce
	}

	if err := decodeStream(ctx, resp.Body, o.decoder, emit); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return networkError(fmt.Errorf("read stream: %w", err), requestID)
	}
	return nil
}

// Ping checks that the endpoint accepts the credential by listing
// models. It sends no prompt.
func (o *OpenAIProvider) Ping(ctx context.Context) error {
	if strings.TrimSpace(o.apiKey) == "" {
		return configError(msgMissingKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return networkError(fmt.Errorf("create request: %w", err), "")
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return networkError(err, "")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return ClassifyStatus(resp.StatusCode, raw)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
