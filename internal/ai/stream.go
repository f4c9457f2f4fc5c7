// Package ai — stream.go provides the streaming interface and the
// line decoder for `data:` event streams.
package ai

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

const (
	dataPrefix     = "data:"
	doneSentinel   = "[DONE]"
	readBufferSize = 64 * 1024
)

// StreamDelta represents a single chunk from a streaming response.
type StreamDelta struct {
	// Token is the text fragment. Never empty unless Done or Err is set.
	Token string
	// Done is true when the stream is complete.
	Done bool
	// Err is non-nil if the stream failed. No further deltas follow it.
	Err error
}

// StreamingProvider extends Provider with token-by-token streaming.
// Providers that don't support streaming can omit this interface and
// the Client will fall back to Complete.
type StreamingProvider interface {
	Provider
	// CompleteStream sends messages and returns a channel that emits
	// tokens as they arrive. The channel is closed after a delta with
	// Done or Err set.
	CompleteStream(ctx context.Context, messages []Message) <-chan StreamDelta
}

// decodeStream reads r line by line and calls emit with every non-empty
// content fragment, in order. It returns nil at end of input or at the
// terminator, and the read error otherwise. Frames the decoder rejects
// are skipped.
func decodeStream(ctx context.Context, r io.Reader, dec DeltaDecoder, emit func(string) error) error {
	br := bufio.NewReaderSize(r, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := err != nil

		if payload, ok := dataPayload(line); ok {
			if payload == doneSentinel {
				return nil
			}
			token, decErr := dec.Delta([]byte(payload))
			if decErr == nil && token != "" {
				if err := emit(token); err != nil {
					return err
				}
			}
		}
		if eof {
			return nil
		}
	}
}

// dataPayload returns the payload of an event-data line. One optional
// space after the colon is stripped.
func dataPayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload := strings.TrimPrefix(line[len(dataPrefix):], " ")
	return strings.TrimSpace(payload), true
}

// send delivers d unless ctx is done first.
func send(ctx context.Context, ch chan<- StreamDelta, d StreamDelta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish delivers the terminal delta of a stream. It does not give up on
// a done context, so a consumer that drains the channel always learns
// how the stream ended.
func finish(ch chan<- StreamDelta, d StreamDelta) {
	ch <- d
}

// ErrStreamClosed reports a stream channel that closed without a Done or
// Err delta. Consumers treat it as a failure, never as a short result.
var ErrStreamClosed = errors.New("stream closed before completion")

// collectStream drains a stream channel and returns the concatenated
// tokens, calling onToken for each one when it is non-nil.
func collectStream(ch <-chan StreamDelta, onToken func(string)) (string, error) {
	var full strings.Builder
	for delta := range ch {
		if delta.Err != nil {
			return full.String(), delta.Err
		}
		if delta.Done {
			return full.String(), nil
		}
		if delta.Token == "" {
			continue
		}
		full.WriteString(delta.Token)
		if onToken != nil {
			onToken(delta.Token)
		}
	}
	return full.String(), ErrStreamClosed
}
