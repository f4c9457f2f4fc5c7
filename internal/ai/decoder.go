package ai

import (
	"encoding/json"
	"sort"
	"strings"
)

// DeltaDecoder extracts the incremental content from one stream payload.
// A payload without content yields "" and a nil error.
type DeltaDecoder interface {
	Delta(payload []byte) (string, error)
}

// chatDeltaDecoder reads choices[0].delta.content, the chat-completions
// chunk shape.
type chatDeltaDecoder struct{}

func (chatDeltaDecoder) Delta(payload []byte) (string, error) {
	var chunk chatChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", err
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}

// textDeltaDecoder reads choices[0].text, the completion-style chunk shape
// some OpenAI-compatible servers emit.
type textDeltaDecoder struct{}

func (textDeltaDecoder) Delta(payload []byte) (string, error) {
	var chunk chatChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", err
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Text, nil
}

// Preset is the wiring for a named provider.
type Preset struct {
	Name    string
	BaseURL string
	Decoder DeltaDecoder
}

var presets = map[string]Preset{
	"openai":     {Name: "openai", BaseURL: "https://api.openai.com/v1", Decoder: chatDeltaDecoder{}},
	"groq":       {Name: "groq", BaseURL: "https://api.groq.com/openai/v1", Decoder: chatDeltaDecoder{}},
	"deepseek":   {Name: "deepseek", BaseURL: "https://api.deepseek.com/v1", Decoder: chatDeltaDecoder{}},
	"openrouter": {Name: "openrouter", BaseURL: "https://openrouter.ai/api/v1", Decoder: chatDeltaDecoder{}},
	"ollama":     {Name: "ollama", BaseURL: "http://localhost:11434/v1", Decoder: chatDeltaDecoder{}},
	"completions": {
		Name:    "completions",
		BaseURL: "http://localhost:8000/v1",
		Decoder: textDeltaDecoder{},
	},
}

// LookupPreset returns the preset registered under name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// PresetNames lists the registered provider names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
