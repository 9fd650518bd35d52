package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultHumanizeTimeout bounds one humanization when no timeout is given.
const DefaultHumanizeTimeout = 8 * time.Second

const maxOutputTokens = 400

const systemPrompt = `You explain machine-learning predictions to non-technical government officials.
Write in plain English. Do not use jargon such as "SHAP", "feature importance" or "base value" without saying what it means.
Answer with the explanation text only: no headings, no bullet points, no markdown.`

// Humanizer rewrites a technical explanation into a short prose summary.
// A nil *Humanizer, or one built without a Generator, is disabled.
type Humanizer struct {
	gen     Generator
	timeout time.Duration
}

// NewHumanizer returns a Humanizer over gen. gen may be nil when no
// text-generation credential is configured; Enabled then reports false.
func NewHumanizer(gen Generator, timeout time.Duration) *Humanizer {
	if timeout <= 0 {
		timeout = DefaultHumanizeTimeout
	}
	return &Humanizer{gen: gen, timeout: timeout}
}

// Enabled reports whether a text-generation provider is configured.
func (h *Humanizer) Enabled() bool {
	return h != nil && h.gen != nil
}

// Provider names the configured provider, or "" when disabled.
func (h *Humanizer) Provider() string {
	if !h.Enabled() {
		return ""
	}
	return nameOf(h.gen)
}

// Humanize returns a 3–4 sentence summary of technical. The call is bounded
// by the Humanizer's timeout in addition to ctx.
func (h *Humanizer) Humanize(ctx context.Context, technical json.RawMessage) (string, error) {
	if !h.Enabled() {
		return "", fmt.Errorf("ai: humanizer is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	text, err := h.gen.Generate(ctx, BuildHumanizePrompt(technical))
	if err != nil {
		return "", fmt.Errorf("ai: humanize: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// BuildHumanizePrompt embeds technical verbatim (indented when it is valid
// JSON) and asks for exactly 3–4 sentences covering four fixed elements.
func BuildHumanizePrompt(technical json.RawMessage) string {
	var data bytes.Buffer
	if err := json.Indent(&data, technical, "", "  "); err != nil {
		data.Reset()
		data.Write(technical)
	}

	var sb strings.Builder
	sb.WriteString("Here is the technical explanation of a machine-learning prediction:\n\n")
	sb.WriteString(data.String())
	sb.WriteString("\n\nWrite exactly 3-4 sentences explaining this prediction to a non-technical reader. Include:\n")
	sb.WriteString("1. An overall summary of what the prediction means.\n")
	sb.WriteString("2. The top 3 factors that influenced it.\n")
	sb.WriteString("3. Why those factors matter.\n")
	sb.WriteString("4. One suggested action, if applicable.\n")
	return sb.String()
}
