// Package intent derives a short natural-language retrieval intent from a
// raw user query.
package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arkshorizon/mailmind/internal/inference"
	"github.com/arkshorizon/mailmind/internal/metrics"
)

// Fallback is returned whenever the inference call fails, so filtering
// degrades to a broad pass instead of total failure.
const Fallback = "general email search"

const maxTokens = 150

const systemPrompt = `You are an intelligent email assistant. Accurately interpret the user's intent from their query.
Possible intents include:
- Finding emails from a specific sender
- Searching for emails about a particular topic
- Locating emails within a date range
- Finding emails with specific keywords

Provide a clear, concise intent description that guides precise email filtering.`

// Extractor turns a free-text query into a retrieval intent with one
// completion call. Intents are stateless; nothing is cached across
// queries.
type Extractor struct {
	completer inference.Completer
	model     string
	logger    *zap.Logger
}

// NewExtractor builds an Extractor. An empty model name defers to the
// completer's default.
func NewExtractor(completer inference.Completer, model string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{completer: completer, model: model, logger: logger}
}

// Extract never fails: any transport, timeout or malformed-response error
// is logged and replaced with the generic Fallback intent. Output length
// is bounded and temperature pinned to zero, since this string directly
// drives the filtering stage.
func (e *Extractor) Extract(ctx context.Context, query string) string {
	start := time.Now()
	out, err := e.completer.Complete(ctx, inference.Request{
		Model:       e.model,
		MaxTokens:   maxTokens,
		Temperature: 0,
		Messages: []inference.Message{
			{Role: inference.RoleSystem, Content: systemPrompt},
			{Role: inference.RoleUser, Content: fmt.Sprintf(
				"Interpret the intent behind: '%s'", query)},
		},
	})
	if err != nil {
		metrics.RecordInferenceCall("intent", "error", time.Since(start))
		e.logger.Warn("intent extraction failed", zap.Error(err))
		return Fallback
	}
	metrics.RecordInferenceCall("intent", "success", time.Since(start))

	out = strings.TrimSpace(out)
	if out == "" {
		return Fallback
	}
	return out
}
