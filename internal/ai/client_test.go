package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arin/gramo/internal/config"
)

// --- Mock providers ---

// mockProvider is a test double that returns canned responses (non-streaming).
type mockProvider struct {
	response string
	err      error
	// Track calls for verification.
	calls    int
	lastMsgs []Message
}

func (m *mockProvider) Complete(_ context.Context, msgs []Message) (string, error) {
	m.calls++
	m.lastMsgs = msgs
	return m.response, m.err
}

// mockStreamProvider implements both Provider and StreamingProvider.
type mockStreamProvider struct {
	mockProvider
	tokens    []string // Tokens to emit one by one.
	streamErr error    // Error to emit mid-stream.
}

func (m *mockStreamProvider) CompleteStream(_ context.Context, msgs []Message) <-chan StreamDelta {
	m.calls++
	m.lastMsgs = msgs
	ch := make(chan StreamDelta)
	go func() {
		defer close(ch)
		for _, tok := range m.tokens {
			ch <- StreamDelta{Token: tok}
		}
		if m.streamErr != nil {
			ch <- StreamDelta{Err: m.streamErr}
			return
		}
		ch <- StreamDelta{Done: true}
	}()
	return ch
}

// --- HTTP helpers ---

// sseHandler streams each content fragment as one event, then [DONE].
func sseHandler(fragments ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, f := range fragments {
			fmt.Fprintf(w, "%s\n\n", chunk(f))
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

// countingServer wraps h and counts requests.
func countingServer(t *testing.T, h http.Handler) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &n
}

func testConfig(baseURL, key string) *config.Config {
	return &config.Config{
		APIKey:      key,
		Model:       "test-model",
		Provider:    "openai",
		BaseURL:     baseURL,
		Temperature: 0.3,
		MaxTokens:   2000,
	}
}

// --- Refine over HTTP ---

func TestRefine_StreamsDeltasInOrder(t *testing.T) {
	srv, _ := countingServer(t, sseHandler("I ", "don't ", "know."))
	client := NewClient(testConfig(srv.URL, "sk-test"))

	var got []string
	result, err := client.Refine(context.Background(), "i dont know", ToneNeutral, func(s string) {
		got = append(got, s)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "I don't know." {
		t.Errorf("expected %q, got %q", "I don't know.", result)
	}
	if len(got) != 3 || got[0] != "I " || got[1] != "don't " || got[2] != "know." {
		t.Errorf("unexpected increments %q", got)
	}
}

func TestRefine_IncrementsMatchTrimmedResult(t *testing.T) {
	fragments := []string{"\n  Hello", ", ", "world", "!\n\n"}
	srv, _ := countingServer(t, sseHandler(fragments...))
	client := NewClient(testConfig(srv.URL, "sk-test"))

	var joined strings.Builder
	result, err := client.Refine(context.Background(), "hello world", ToneCasual, func(s string) {
		joined.WriteString(s)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(joined.String()) != result {
		t.Errorf("increments %q do not match result %q", joined.String(), result)
	}
	if result != "Hello, world!" {
		t.Errorf("unexpected result %q", result)
	}
}

func TestRefine_MalformedFrameIsSkipped(t *testing.T) {
	srv, _ := countingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s\n\ndata: {not valid json}\n\n%s\n\ndata: [DONE]\n\n", chunk("Good "), chunk("morning"))
	}))
	client := NewClient(testConfig(srv.URL, "sk-test"))

	calls := 0
	result, err := client.Refine(context.Background(), "good morning", ToneNeutral, func(string) { calls++ })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Good morning" {
		t.Errorf("expected %q, got %q", "Good morning", result)
	}
	if calls != 2 {
		t.Errorf("expected 2 increments, got %d", calls)
	}
}

func TestRefine_EmptyStreamIsEmptyResult(t *testing.T) {
	srv, _ := countingServer(t, sseHandler())
	client := NewClient(testConfig(srv.URL, "sk-test"))

	calls := 0
	result, err := client.Refine(context.Background(), "x", ToneNeutral, func(string) { calls++ })
	if err != nil {
		t.Fatalf("empty stream should not fail, got %v", err)
	}
	if result != "" {
		t.Errorf("expected empty result, got %q", result)
	}
	if calls != 0 {
		t.Errorf("expected no increments, got %d", calls)
	}
}

func TestRefine_StreamWithoutTerminator(t *testing.T) {
	srv, _ := countingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s\n\n%s", chunk("no "), chunk("terminator"))
	}))
	client := NewClient(testConfig(srv.URL, "sk-test"))

	result, err := client.Refine(context.Background(), "x", ToneNeutral, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "no terminator" {
		t.Errorf("unexpected result %q", result)
	}
}

func TestRefine_RequestShape(t *testing.T) {
	var (
		got     chatRequest
		headers http.Header
		path    string
	)
	srv, _ := countingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		sseHandler("ok")(w, r)
	}))

	var hookID string
	client := NewClient(testConfig(srv.URL+"/", "sk-secret"), WithRequestHook(func(id string) { hookID = id }))
	if _, err := client.Refine(context.Background(), "please fix this", ToneFormal, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if path != "/chat/completions" {
		t.Errorf("unexpected path %q", path)
	}
	if ct := headers.Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	if auth := headers.Get("Authorization"); auth != "Bearer sk-secret" {
		t.Errorf("unexpected authorization %q", auth)
	}
	if id := headers.Get(requestIDHeader); id == "" || id != hookID {
		t.Errorf("request id header %q should match hook id %q", id, hookID)
	}
	if !got.Stream {
		t.Error("stream must be enabled")
	}
	if got.Model != "test-model" || got.MaxTokens != 2000 || got.Temperature != 0.3 {
		t.Errorf("unexpected generation params %+v", got)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != RoleSystem || got.Messages[0].Content != BuildSystemPrompt(ToneFormal) {
		t.Errorf("unexpected system message %+v", got.Messages[0])
	}
	if got.Messages[1].Role != RoleUser || got.Messages[1].Content != "please fix this" {
		t.Errorf("unexpected user message %+v", got.Messages[1])
	}
}

func TestRefine_TemperatureIsBounded(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.2, 0.2},
		{1.9, config.MaxTemperature},
		{-0.5, 0},
	}
	for _, tt := range tests {
		var got chatRequest
		srv, _ := countingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decode request: %v", err)
			}
			sseHandler("ok")(w, r)
		}))
		cfg := testConfig(srv.URL, "sk-test")
		cfg.Temperature = tt.in

		if _, err := NewClient(cfg).Refine(context.Background(), "text", ToneNeutral, nil); err != nil {
			t.Fatalf("temperature %v: unexpected error: %v", tt.in, err)
		}
		if got.Temperature != tt.want {
			t.Errorf("temperature %v: expected %v on the wire, got %v", tt.in, tt.want, got.Temperature)
		}
	}
}

func TestRefine_MissingKeyMakesNoRequest(t *testing.T) {
	srv, requests := countingServer(t, sseHandler("never"))
	client := NewClient(testConfig(srv.URL, ""))

	_, err := client.Refine(context.Background(), "text", ToneNeutral, nil)
	if !IsKind(err, KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("expected no network calls, got %d", n)
	}
}

func TestRefine_UnknownProvider(t *testing.T) {
	srv, requests := countingServer(t, sseHandler("never"))
	cfg := testConfig(srv.URL, "sk-test")
	cfg.Provider = "nope"
	client := NewClient(cfg)

	_, err := client.Refine(context.Background(), "text", ToneNeutral, nil)
	if !IsKind(err, KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("error should name the provider, got %v", err)
	}
	if requests.Load() != 0 {
		t.Error("unknown provider must not reach the network")
	}
}

func TestRefine_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   ErrorKind
		want   string
	}{
		{http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`, KindAuthentication, "Incorrect API key"},
		{http.StatusForbidden, "", KindAuthorization, "access denied"},
		{http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, KindRateLimit, "slow down"},
		{http.StatusInternalServerError, `{"error":{"message":"upstream exploded"}}`, KindAPI, "upstream exploded"},
		{http.StatusServiceUnavailable, "oops", KindAPI, msgAPIFallback},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv, requests := countingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			client := NewClient(testConfig(srv.URL, "sk-test"))

			calls := 0
			_, err := client.Refine(context.Background(), "text", ToneNeutral, func(string) { calls++ })
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("expected classified error, got %v", err)
			}
			if ce.Kind != tc.kind {
				t.Errorf("expected kind %q, got %q", tc.kind, ce.Kind)
			}
			if ce.StatusCode != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, ce.StatusCode)
			}
			if !strings.Contains(ce.Message, tc.want) {
				t.Errorf("expected message containing %q, got %q", tc.want, ce.Message)
			}
			if ce.RequestID == "" {
				t.Error("expected request id on classified error")
			}
			if calls != 0 {
				t.Errorf("failed request should not emit increments, got %d", calls)
			}
			if requests.Load() != 1 {
				t.Errorf("expected exactly one request (no retry), got %d", requests.Load())
			}
		})
	}
}

func TestRefine_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(testConfig(url, "sk-test"))
	_, err := client.Refine(context.Background(), "text", ToneNeutral, nil)
	if !IsKind(err, KindNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestRefine_InvalidBaseURL(t *testing.T) {
	client := NewClient(testConfig("://bad url", "sk-test"))
	_, err := client.Refine(context.Background(), "text", ToneNeutral, nil)
	if !IsKind(err, KindNetwork) {
		t.Fatalf("request construction failure should be a network error, got %v", err)
	}
}

func TestRefine_Cancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv, _ := countingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s\n\n", chunk("first"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		case <-time.After(5 * time.Second):
		}
	}))
	client := NewClient(testConfig(srv.URL, "sk-test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := client.Refine(ctx, "text", ToneNeutral, func(string) { cancel() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRefineStream_CancelledEndsWithErr(t *testing.T) {
	srv, _ := countingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s\n\n", chunk("partial "))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	client := NewClient(testConfig(srv.URL, "sk-test"))

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		var last StreamDelta
		for delta := range client.RefineStream(ctx, "text", ToneNeutral) {
			if delta.Token != "" {
				cancel()
			}
			last = delta
		}
		cancel()
		if !errors.Is(last.Err, context.Canceled) {
			t.Fatalf("run %d: expected final Err delta with context.Canceled, got %+v", i, last)
		}
	}
}

func TestRefine_ConcurrentCallsAreIndependent(t *testing.T) {
	srv, requests := countingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		user := req.Messages[len(req.Messages)-1].Content
		sseHandler(strings.Split(user, " ")...)(w, r)
	}))
	client := NewClient(testConfig(srv.URL, "sk-test"))

	inputs := []string{"a b c", "d e", "f", "g h i j"}
	results := make([]string, len(inputs))
	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in string) {
			defer wg.Done()
			out, err := client.Refine(context.Background(), in, ToneNeutral, nil)
			if err != nil {
				t.Errorf("call %d: %v", i, err)
				return
			}
			results[i] = out
		}(i, in)
	}
	wg.Wait()

	for i, in := range inputs {
		if want := strings.ReplaceAll(in, " ", ""); results[i] != want {
			t.Errorf("call %d: expected %q, got %q", i, want, results[i])
		}
	}
	if int(requests.Load()) != len(inputs) {
		t.Errorf("expected %d requests, got %d", len(inputs), requests.Load())
	}
}

func TestRefineStream_YieldsTokensThenDone(t *testing.T) {
	srv, _ := countingServer(t, sseHandler("one ", "two"))
	client := NewClient(testConfig(srv.URL, "sk-test"))

	var tokens []string
	done := false
	for d := range client.RefineStream(context.Background(), "x", ToneNeutral) {
		if d.Err != nil {
			t.Fatalf("unexpected error: %v", d.Err)
		}
		if d.Done {
			done = true
			continue
		}
		tokens = append(tokens, d.Token)
	}
	if !done {
		t.Error("expected a final Done delta")
	}
	if strings.Join(tokens, "") != "one two" {
		t.Errorf("unexpected tokens %q", tokens)
	}
}

func TestRefineStream_ConfigurationError(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1", "sk-test")
	cfg.Provider = "unknown"
	client := NewClient(cfg)

	_, err := collectStream(client.RefineStream(context.Background(), "x", ToneNeutral), nil)
	if !IsKind(err, KindConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	srv, _ := countingServer(t, sseHandler("  full ", "answer  "))
	p := NewOpenAIProvider(OpenAIOptions{APIKey: "sk-test", Model: "m", BaseURL: srv.URL})

	got, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "q"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "full answer" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestOpenAIProvider_TextDecoder(t *testing.T) {
	srv, _ := countingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"text\":\"plain \"}]}\n\ndata: {\"choices\":[{\"text\":\"text\"}]}\n\ndata: [DONE]\n\n")
	}))
	cfg := testConfig(srv.URL, "sk-test")
	cfg.Provider = "completions"
	client := NewClient(cfg)

	got, err := client.Refine(context.Background(), "x", ToneNeutral, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "plain text" {
		t.Errorf("unexpected result %q", got)
	}
}

// --- Provider fallback ---

func TestRefine_WithStreamingProvider(t *testing.T) {
	mock := &mockStreamProvider{tokens: []string{"I ", "don't ", "know."}}
	client := NewClientWithProvider(mock)

	var got []string
	result, err := client.Refine(context.Background(), "i dont know", ToneNeutral, func(s string) { got = append(got, s) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "I don't know." {
		t.Errorf("unexpected result %q", result)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 increments, got %d", len(got))
	}
	if mock.lastMsgs[0].Content != BuildSystemPrompt(ToneNeutral) {
		t.Error("system message should carry the tone prompt")
	}
	if mock.lastMsgs[1].Content != "i dont know" {
		t.Errorf("user message should carry the raw input, got %q", mock.lastMsgs[1].Content)
	}
}

func TestStreamOrFallback_FallsBackToComplete(t *testing.T) {
	// mockProvider does NOT implement StreamingProvider.
	mock := &mockProvider{response: "full response"}
	client := NewClientWithProvider(mock)

	ch := client.streamOrFallback(context.Background(), []Message{{Role: RoleUser, Content: "test"}})
	result, err := collectStream(ch, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "full response" {
		t.Errorf("expected 'full response', got %q", result)
	}
}

func TestStreamOrFallback_FallbackError(t *testing.T) {
	mock := &mockProvider{err: fmt.Errorf("provider down")}
	client := NewClientWithProvider(mock)

	_, err := client.Refine(context.Background(), "text", ToneNeutral, nil)
	if err == nil || !strings.Contains(err.Error(), "provider down") {
		t.Fatalf("expected 'provider down', got: %v", err)
	}
}

func TestStreamOrFallback_EmptyCompleteIsEmptyResult(t *testing.T) {
	mock := &mockProvider{response: ""}
	client := NewClientWithProvider(mock)

	result, err := client.Refine(context.Background(), "text", ToneNeutral, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty result, got %q", result)
	}
}

func TestStreamOrFallback_StreamError(t *testing.T) {
	mock := &mockStreamProvider{
		tokens:    []string{"partial"},
		streamErr: &Error{Kind: KindNetwork, Message: "stream interrupted"},
	}
	client := NewClientWithProvider(mock)

	result, err := client.Refine(context.Background(), "text", ToneNeutral, nil)
	if !IsKind(err, KindNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if result != "" {
		t.Errorf("failed call should not return partial text, got %q", result)
	}
}

func TestPing(t *testing.T) {
	var auth, path string
	srv, _ := countingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, path = r.Header.Get("Authorization"), r.URL.Path
		fmt.Fprint(w, `{"data":[]}`)
	}))
	client := NewClient(testConfig(srv.URL, "sk-test"))

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/models" || auth != "Bearer sk-test" {
		t.Errorf("unexpected request path=%q auth=%q", path, auth)
	}
}

func TestPing_Unauthorized(t *testing.T) {
	srv, _ := countingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	client := NewClient(testConfig(srv.URL, "sk-bad"))

	if err := client.Ping(context.Background()); !IsKind(err, KindAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestPing_MissingKey(t *testing.T) {
	srv, requests := countingServer(t, http.NotFoundHandler())
	client := NewClient(testConfig(srv.URL, ""))

	if err := client.Ping(context.Background()); !IsKind(err, KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if requests.Load() != 0 {
		t.Error("ping without a key must not reach the network")
	}
}

func TestPing_ProviderWithoutPing(t *testing.T) {
	client := NewClientWithProvider(&mockProvider{})
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("expected nil for providers without ping, got %v", err)
	}
}
