package mailbox

import (
	"context"

	"go.uber.org/zap"
)

// Retriever runs one complete open-fetch-close cycle per call and absorbs
// mailbox failures into an empty result. The consumer sees the same shape
// for an unreachable server, a failed login and an empty inbox: no
// messages.
type Retriever struct {
	creds  Credentials
	opts   SessionOptions
	logger *zap.Logger
}

// NewRetriever builds a Retriever for the given account. The credentials
// are held read-only and are never written anywhere.
func NewRetriever(creds Credentials, opts SessionOptions) *Retriever {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
		opts.Logger = logger
	}
	return &Retriever{creds: creds, opts: opts, logger: logger}
}

// FetchRecent returns up to limit normalized messages, newest first. The
// context bounds both the dial and how long the caller waits; when it
// expires the result is empty, indistinguishable from any other retrieval
// failure. An established session always runs to Close, even when the
// wait is abandoned.
func (r *Retriever) FetchRecent(ctx context.Context, limit int) []Message {
	done := make(chan []Message, 1)
	go func() {
		done <- r.fetch(ctx, limit)
	}()

	select {
	case messages := <-done:
		return messages
	case <-ctx.Done():
		r.logger.Warn("mailbox retrieval abandoned",
			zap.String("addr", r.creds.Addr()),
			zap.Error(ctx.Err()))
		return nil
	}
}

func (r *Retriever) fetch(ctx context.Context, limit int) []Message {
	session, err := Open(ctx, r.creds, r.opts)
	if err != nil {
		r.logger.Warn("mailbox connection failed",
			zap.String("addr", r.creds.Addr()),
			zap.Error(err))
		return nil
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("mailbox teardown failed", zap.Error(err))
		}
	}()

	messages, err := session.FetchRecent(limit)
	if err != nil {
		r.logger.Warn("mailbox retrieval failed", zap.Error(err))
		return nil
	}
	return messages
}
