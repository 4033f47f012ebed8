// Package pipeline coordinates mailbox retrieval, intent extraction and
// relevance filtering into a single caller-facing operation.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkshorizon/mailmind/internal/mailbox"
	"github.com/arkshorizon/mailmind/internal/metrics"
)

// Terminal results. These are user-facing sentences, not errors: the
// pipeline's contract is to always return text.
const (
	InvalidInput = "Invalid input provided."
	NoEmails     = "No emails found."
)

const (
	defaultFetchLimit       = 10
	defaultRetrievalTimeout = 30 * time.Second
)

// Retriever fetches recent inbox messages. An empty result means "no
// mail", whether the inbox is empty or retrieval failed; the distinction
// lives in the retriever's log, not in this contract.
type Retriever interface {
	FetchRecent(ctx context.Context, limit int) []mailbox.Message
}

// IntentExtractor derives the retrieval intent from the raw query,
// degrading to a generic intent on failure.
type IntentExtractor interface {
	Extract(ctx context.Context, query string) string
}

// RelevanceFilter reports the messages matching the intent, degrading to
// a fixed sentinel on failure.
type RelevanceFilter interface {
	Filter(ctx context.Context, messages []mailbox.Message, intent string) string
}

// Options configures an Orchestrator. Zero values select the defaults.
type Options struct {
	FetchLimit       int
	RetrievalTimeout time.Duration
	Logger           *zap.Logger
}

// Orchestrator owns the end-to-end result contract of one query. Each
// invocation is independent; no state carries over between requests.
type Orchestrator struct {
	retriever        Retriever
	intents          IntentExtractor
	filter           RelevanceFilter
	fetchLimit       int
	retrievalTimeout time.Duration
	logger           *zap.Logger
}

// New wires the three stages into an Orchestrator.
func New(retriever Retriever, intents IntentExtractor, filter RelevanceFilter, opts Options) *Orchestrator {
	fetchLimit := opts.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = defaultFetchLimit
	}
	retrievalTimeout := opts.RetrievalTimeout
	if retrievalTimeout <= 0 {
		retrievalTimeout = defaultRetrievalTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		retriever:        retriever,
		intents:          intents,
		filter:           filter,
		fetchLimit:       fetchLimit,
		retrievalTimeout: retrievalTimeout,
		logger:           logger,
	}
}

// ProcessRequest runs the full pipeline for one query and always returns
// user-facing text, never an error. Retrieval and intent extraction run
// concurrently; the filter call is strictly ordered after both. A blank
// query terminates before any network activity, and an empty retrieval
// short-circuits the filter stage so no inference call is wasted.
func (o *Orchestrator) ProcessRequest(ctx context.Context, query string) (report string) {
	logger := o.logger.With(zap.String("request_id", uuid.NewString()))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline failure", zap.Any("cause", r))
			metrics.RecordRequest("panic")
			report = fmt.Sprintf("Processing failed: %v", r)
		}
	}()

	if strings.TrimSpace(query) == "" {
		metrics.RecordRequest("invalid_input")
		return InvalidInput
	}

	start := time.Now()

	var (
		wg        sync.WaitGroup
		messages  []mailbox.Message
		rawIntent string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		fetchCtx, cancel := context.WithTimeout(ctx, o.retrievalTimeout)
		defer cancel()
		messages = o.retriever.FetchRecent(fetchCtx, o.fetchLimit)
	}()
	go func() {
		defer wg.Done()
		rawIntent = o.intents.Extract(ctx, query)
	}()
	wg.Wait()

	metrics.ObserveEmailsRetrieved(len(messages))

	if len(messages) == 0 {
		logger.Info("no messages retrieved",
			zap.Duration("elapsed", time.Since(start)))
		metrics.RecordRequest("no_emails")
		return NoEmails
	}

	logger.Info("pipeline inputs ready",
		zap.Int("messages", len(messages)),
		zap.Duration("elapsed", time.Since(start)))

	report = o.filter.Filter(ctx, messages, rawIntent)
	metrics.RecordRequest("ok")

	logger.Info("request complete",
		zap.Duration("elapsed", time.Since(start)))
	return report
}
