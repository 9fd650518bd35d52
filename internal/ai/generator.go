// Package ai wraps the text-generation providers used to turn a technical
// explanation into prose. Every provider satisfies Generator; the Humanizer
// builds the prompt and bounds the call.
package ai

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyOutput is returned when a provider answers without usable text.
var ErrEmptyOutput = errors.New("ai: provider returned no text")

// Generator turns one free-text prompt into free-text output.
//
// Implementations must be safe to call concurrently and must honour ctx
// cancellation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Named is implemented by providers that can identify themselves in logs.
type Named interface {
	Name() string
}

// nameOf returns g's provider name, or "unknown".
func nameOf(g Generator) string {
	if n, ok := g.(Named); ok {
		return n.Name()
	}
	return "unknown"
}

// stripFences removes markdown code fences a model may wrap its answer in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.Contains(s[:i], " ") {
		s = s[i+1:] // drop a language tag such as ```text
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
