package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// fallbackGenerator tries each configured provider in order and returns the
// first usable answer. Every provider gets one attempt; the caller's context
// bounds the whole chain.
type fallbackGenerator struct {
	providers []Generator
	logger    *slog.Logger
}

// NewFallbackGenerator returns a Generator over the non-nil providers, in
// order. It returns nil when no provider is given, which callers treat as
// "text generation not configured", and the provider itself when there is
// only one.
func NewFallbackGenerator(logger *slog.Logger, providers ...Generator) Generator {
	var configured []Generator
	for _, p := range providers {
		if p != nil {
			configured = append(configured, p)
		}
	}
	switch len(configured) {
	case 0:
		return nil
	case 1:
		return configured[0]
	}
	return &fallbackGenerator{providers: configured, logger: logger}
}

// Name lists the chain in call order, e.g. "gemini>anthropic".
func (f *fallbackGenerator) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = nameOf(p)
	}
	return strings.Join(names, ">")
}

// Generate calls providers in order until one succeeds. A cancelled or
// expired context stops the chain immediately.
func (f *fallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var errs []error
	for i, p := range f.providers {
		text, err := p.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", nameOf(p), err))

		if ctx.Err() != nil {
			break
		}
		if i < len(f.providers)-1 {
			f.logger.Warn("ai: provider failed, trying next",
				"provider", nameOf(p),
				"next", nameOf(f.providers[i+1]),
				"error", err,
			)
		}
	}
	return "", fmt.Errorf("ai: all providers failed: %w", errors.Join(errs...))
}
