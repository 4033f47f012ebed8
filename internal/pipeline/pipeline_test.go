package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arkshorizon/mailmind/internal/inference"
	"github.com/arkshorizon/mailmind/internal/intent"
	"github.com/arkshorizon/mailmind/internal/mailbox"
	"github.com/arkshorizon/mailmind/internal/relevance"
)

type fakeRetriever struct {
	messages []mailbox.Message
	calls    atomic.Int32
}

func (f *fakeRetriever) FetchRecent(ctx context.Context, limit int) []mailbox.Message {
	f.calls.Add(1)
	if len(f.messages) > limit {
		return f.messages[:limit]
	}
	return f.messages
}

type fakeExtractor struct {
	intent string
	calls  atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, query string) string {
	f.calls.Add(1)
	return f.intent
}

type fakeFilter struct {
	report     string
	calls      atomic.Int32
	lastIntent string
	lastCount  int
}

func (f *fakeFilter) Filter(ctx context.Context, messages []mailbox.Message, intentStr string) string {
	f.calls.Add(1)
	f.lastIntent = intentStr
	f.lastCount = len(messages)
	return f.report
}

func inboxOf(n int) []mailbox.Message {
	messages := make([]mailbox.Message, n)
	for i := range messages {
		messages[i] = mailbox.Message{
			Subject: "subject",
			Sender:  "sender@example.com",
			Date:    "date",
			UID:     "1",
		}
	}
	return messages
}

func TestProcessRequestEmptyQuery(t *testing.T) {
	retriever := &fakeRetriever{messages: inboxOf(1)}
	extractor := &fakeExtractor{intent: "x"}
	filter := &fakeFilter{report: "r"}
	orch := New(retriever, extractor, filter, Options{})

	for _, query := range []string{"", "   ", "\n\t"} {
		if got := orch.ProcessRequest(context.Background(), query); got != InvalidInput {
			t.Fatalf("query %q: expected %q, got %q", query, InvalidInput, got)
		}
	}

	if retriever.calls.Load() != 0 || extractor.calls.Load() != 0 || filter.calls.Load() != 0 {
		t.Fatal("no network activity may happen for an invalid query")
	}
}

func TestProcessRequestNoEmailsShortCircuitsFilter(t *testing.T) {
	retriever := &fakeRetriever{}
	extractor := &fakeExtractor{intent: "some intent"}
	filter := &fakeFilter{report: "should not be seen"}
	orch := New(retriever, extractor, filter, Options{})

	if got := orch.ProcessRequest(context.Background(), "anything"); got != NoEmails {
		t.Fatalf("expected %q, got %q", NoEmails, got)
	}
	if filter.calls.Load() != 0 {
		t.Fatal("the relevance filter must not run for an empty retrieval")
	}
}

func TestProcessRequestHappyPath(t *testing.T) {
	retriever := &fakeRetriever{messages: inboxOf(3)}
	extractor := &fakeExtractor{intent: "emails from Alice"}
	filter := &fakeFilter{report: "## Matching Emails\n- one"}
	orch := New(retriever, extractor, filter, Options{FetchLimit: 10})

	got := orch.ProcessRequest(context.Background(), "find Alice's mail")
	if got != "## Matching Emails\n- one" {
		t.Fatalf("unexpected report %q", got)
	}
	if filter.lastIntent != "emails from Alice" {
		t.Fatalf("filter received intent %q", filter.lastIntent)
	}
	if filter.lastCount != 3 {
		t.Fatalf("filter received %d messages", filter.lastCount)
	}
}

func TestProcessRequestHonorsFetchLimit(t *testing.T) {
	retriever := &fakeRetriever{messages: inboxOf(20)}
	extractor := &fakeExtractor{intent: "x"}
	filter := &fakeFilter{report: "r"}
	orch := New(retriever, extractor, filter, Options{FetchLimit: 5})

	orch.ProcessRequest(context.Background(), "q")
	if filter.lastCount != 5 {
		t.Fatalf("expected at most 5 messages, filter saw %d", filter.lastCount)
	}
}

func TestProcessRequestRecoversPanics(t *testing.T) {
	retriever := &fakeRetriever{messages: inboxOf(1)}
	extractor := &fakeExtractor{intent: "x"}
	orch := New(retriever, extractor, panickyFilter{}, Options{})

	got := orch.ProcessRequest(context.Background(), "q")
	if !strings.HasPrefix(got, "Processing failed:") {
		t.Fatalf("expected a failure description, got %q", got)
	}
}

type panickyFilter struct{}

func (panickyFilter) Filter(context.Context, []mailbox.Message, string) string {
	panic("unexpected condition")
}

// scriptedCompleter drives the real intent and relevance stages: the first
// call is intent extraction, the second builds a report from the prompt by
// echoing only the entries matching both "alice" and "budget".
type scriptedCompleter struct {
	calls      atomic.Int32
	intentOut  string
	intentErr  error
	relevances func(prompt string) string
}

func (s *scriptedCompleter) Complete(ctx context.Context, req inference.Request) (string, error) {
	if s.calls.Add(1) == 1 {
		return s.intentOut, s.intentErr
	}
	return s.relevances(req.Messages[1].Content), nil
}

func TestEndToEndAliceBudgetScenario(t *testing.T) {
	retriever := &fakeRetriever{messages: []mailbox.Message{
		{Subject: "Budget proposal", Sender: "alice@example.com", Date: "d1", Body: "the budget draft", UID: "3"},
		{Subject: "Team offsite", Sender: "carol@example.com", Date: "d2", Body: "venue options", UID: "2"},
		{Subject: "Invoice overdue", Sender: "billing@vendor.com", Date: "d3", Body: "please pay", UID: "1"},
	}}

	completer := &scriptedCompleter{
		intentOut: "find emails sent by Alice about the budget",
		relevances: func(prompt string) string {
			var sb strings.Builder
			sb.WriteString("## Matching Emails\n")
			for _, block := range strings.Split(prompt, "Email ") {
				lower := strings.ToLower(block)
				if strings.Contains(lower, "alice") && strings.Contains(lower, "budget") {
					sb.WriteString("- Budget proposal from alice@example.com\n")
				}
			}
			return sb.String()
		},
	}

	orch := New(
		retriever,
		intent.NewExtractor(completer, "m", nil),
		relevance.NewFilter(completer, "m", 0, nil),
		Options{FetchLimit: 10},
	)

	report := orch.ProcessRequest(context.Background(), "emails from Alice about the budget")

	if strings.Count(report, "Budget proposal") != 1 {
		t.Fatalf("expected exactly one matching entry:\n%s", report)
	}
	for _, excluded := range []string{"Team offsite", "Invoice overdue", "excluded"} {
		if strings.Contains(report, excluded) {
			t.Fatalf("report must not mention %q:\n%s", excluded, report)
		}
	}
}

func TestIntentTimeoutStillCompletes(t *testing.T) {
	retriever := &fakeRetriever{messages: inboxOf(2)}

	completer := &scriptedCompleter{
		intentErr: context.DeadlineExceeded,
		relevances: func(prompt string) string {
			if !strings.Contains(prompt, intent.Fallback) {
				return "missing fallback intent"
			}
			return "degraded but useful report"
		},
	}

	orch := New(
		retriever,
		intent.NewExtractor(completer, "m", nil),
		relevance.NewFilter(completer, "m", 0, nil),
		Options{},
	)

	done := make(chan string, 1)
	go func() { done <- orch.ProcessRequest(context.Background(), "q") }()

	select {
	case report := <-done:
		if report != "degraded but useful report" {
			t.Fatalf("unexpected report %q", report)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline hung on intent failure")
	}
}

func TestSlowRetrievalIsBounded(t *testing.T) {
	retriever := blockingRetriever{}
	extractor := &fakeExtractor{intent: "x"}
	filter := &fakeFilter{report: "r"}
	orch := New(retriever, extractor, filter, Options{
		RetrievalTimeout: 30 * time.Millisecond,
	})

	done := make(chan string, 1)
	go func() { done <- orch.ProcessRequest(context.Background(), "q") }()

	select {
	case got := <-done:
		if got != NoEmails {
			t.Fatalf("expected %q, got %q", NoEmails, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline hung on slow retrieval")
	}
}

type blockingRetriever struct{}

func (blockingRetriever) FetchRecent(ctx context.Context, limit int) []mailbox.Message {
	<-ctx.Done()
	return nil
}

func TestErrorsNeverEscape(t *testing.T) {
	retriever := &fakeRetriever{}
	extractor := &fakeExtractor{}
	filter := &fakeFilter{}
	orch := New(retriever, extractor, filter, Options{})

	if got := orch.ProcessRequest(context.Background(), "q"); got == "" {
		t.Fatal("the pipeline must always return text")
	}
}
