// Package inference defines the outbound port to a remote text-completion
// service and an OpenAI-compatible HTTP client implementing it. The rest
// of the pipeline depends only on the Completer interface, never on a
// vendor's call shape.
package inference

import "context"

// Role tags one turn of a chat exchange.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged turn.
type Message struct {
	Role    Role
	Content string
}

// Request describes one completion call: an ordered list of turns, the
// model to use and generation bounds. Temperature is always transmitted,
// so a zero value pins the service to its most deterministic output.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Completer executes one completion request against a remote service. It
// may fail with transport or timeout errors or return malformed content;
// callers own the fallback behavior.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
