// Package relevance judges retrieved messages against a retrieval intent
// and formats a report naming only the matches.
package relevance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arkshorizon/mailmind/internal/inference"
	"github.com/arkshorizon/mailmind/internal/mailbox"
	"github.com/arkshorizon/mailmind/internal/metrics"
)

// NoMatches is returned when the inference call fails; the user sees an
// empty result rather than a transport error.
const NoMatches = "No matching emails found."

const (
	maxTokens           = 500
	defaultPreviewLimit = 200
)

const systemPrompt = `You are an expert email classifier. For each email:
1. Carefully assess its relevance to the given intent
2. Provide a brief description of 100 words
3. If matching, extract key details
4. Organize results for easy user comprehension
5. Don't give non-matching emails and don't mention about this
6. Ignore non-matching emails
7. Reply in Markdown, using a heading per matching email, but don't mention this to the user
8. Add all relevant emails under a "Matching Emails" heading`

// Filter produces the relevance report with one completion call.
type Filter struct {
	completer    inference.Completer
	model        string
	previewLimit int
	logger       *zap.Logger
}

// NewFilter builds a Filter. previewLimit caps the per-message body
// excerpt embedded in the prompt; values below 1 select the default. The
// preview is deliberately shorter than the already-truncated body so
// prompt size stays bounded as message count grows.
func NewFilter(completer inference.Completer, model string, previewLimit int, logger *zap.Logger) *Filter {
	if previewLimit < 1 {
		previewLimit = defaultPreviewLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{
		completer:    completer,
		model:        model,
		previewLimit: previewLimit,
		logger:       logger,
	}
}

// Filter never fails: inference errors are logged and replaced with the
// NoMatches sentinel. Message order in the prompt follows the input
// (newest first).
func (f *Filter) Filter(ctx context.Context, messages []mailbox.Message, intent string) string {
	start := time.Now()
	out, err := f.completer.Complete(ctx, inference.Request{
		Model:       f.model,
		MaxTokens:   maxTokens,
		Temperature: 0,
		Messages: []inference.Message{
			{Role: inference.RoleSystem, Content: systemPrompt},
			{Role: inference.RoleUser, Content: f.buildPrompt(messages, intent)},
		},
	})
	if err != nil {
		metrics.RecordInferenceCall("relevance", "error", time.Since(start))
		f.logger.Warn("relevance filtering failed", zap.Error(err))
		return NoMatches
	}
	metrics.RecordInferenceCall("relevance", "success", time.Since(start))

	out = strings.TrimSpace(out)
	if out == "" {
		return NoMatches
	}
	return out
}

// buildPrompt enumerates the intent and each message's subject, sender,
// date and a short body preview.
func (f *Filter) buildPrompt(messages []mailbox.Message, intent string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Intent: '%s'\n\nEmails:\n", intent)
	for i, m := range messages {
		fmt.Fprintf(&sb,
			"Email %d:\nSubject: %s\nSender: %s\nDate: %s\nBody Preview: %s\n",
			i+1, m.Subject, m.Sender, m.Date, preview(m.Body, f.previewLimit))
	}
	return sb.String()
}

func preview(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit])
}
