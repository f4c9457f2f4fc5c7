// Package ui — stream.go renders streaming tokens to the terminal with an
// indent that is kept across line breaks.
package ui

import (
	"io"
	"strings"

	"github.com/arin/gramo/internal/ai"
)

// RenderStream reads deltas from ch and writes each token to w as it
// arrives. Every output line, including lines that start inside a token,
// is prefixed with prefix. onFirst, when non-nil, runs once before the
// first token is written (used to stop a spinner). It returns the
// trimmed text and the stream's error, if any. A channel that closes
// without a Done delta yields ai.ErrStreamClosed.
func RenderStream(w io.Writer, ch <-chan ai.StreamDelta, prefix string, onFirst func()) (string, error) {
	var full strings.Builder
	atLineStart := true
	started := false
	done := false

	for delta := range ch {
		if delta.Err != nil {
			if started {
				io.WriteString(w, "\n")
			}
			return strings.TrimSpace(full.String()), delta.Err
		}
		if delta.Done {
			done = true
			break
		}
		if delta.Token == "" {
			continue
		}

		// Leading whitespace is dropped from the screen so the first
		// visible line lines up with the prefix.
		token := delta.Token
		full.WriteString(token)
		if !started {
			token = strings.TrimLeft(token, " \t\r\n")
			if token == "" {
				continue
			}
			if onFirst != nil {
				onFirst()
			}
			started = true
		}

		atLineStart = writeIndented(w, token, prefix, atLineStart)
	}

	if started && !atLineStart {
		io.WriteString(w, "\n")
	}
	if !done {
		return strings.TrimSpace(full.String()), ai.ErrStreamClosed
	}
	io.WriteString(w, "\n")

	return strings.TrimSpace(full.String()), nil
}

// writeIndented writes s, inserting prefix at the start of every line.
// It returns whether the output now ends at a line start.
func writeIndented(w io.Writer, s, prefix string, atLineStart bool) bool {
	for s != "" {
		if atLineStart {
			io.WriteString(w, prefix)
			atLineStart = false
		}
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			io.WriteString(w, s)
			return false
		}
		io.WriteString(w, s[:i+1])
		s = s[i+1:]
		atLineStart = true
	}
	return atLineStart
}
