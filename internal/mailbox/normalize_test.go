package mailbox

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeSimpleMessage(t *testing.T) {
	raw := []byte("Subject: Weekly report\r\n" +
		"From: alice@example.com\r\n" +
		"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Here is the report.")

	msg := Normalize(raw, "42", 500)

	if msg.Subject != "Weekly report" {
		t.Fatalf("subject: %q", msg.Subject)
	}
	if msg.Sender != "alice@example.com" {
		t.Fatalf("sender: %q", msg.Sender)
	}
	if msg.Date != "Mon, 02 Jan 2006 15:04:05 -0700" {
		t.Fatalf("date: %q", msg.Date)
	}
	if strings.TrimSpace(msg.Body) != "Here is the report." {
		t.Fatalf("body: %q", msg.Body)
	}
	if msg.UID != "42" {
		t.Fatalf("uid: %q", msg.UID)
	}
}

func TestNormalizeMissingHeadersUseSentinels(t *testing.T) {
	raw := []byte("\r\n\r\njust a body")

	msg := Normalize(raw, "1", 500)

	if msg.Subject != NoSubject {
		t.Fatalf("expected %q, got %q", NoSubject, msg.Subject)
	}
	if msg.Sender != UnknownSender {
		t.Fatalf("expected %q, got %q", UnknownSender, msg.Sender)
	}
	if msg.Date != NoDate {
		t.Fatalf("expected %q, got %q", NoDate, msg.Date)
	}
}

func TestNormalizeEmptyMessage(t *testing.T) {
	msg := Normalize(nil, "1", 500)

	if msg.Subject != NoSubject || msg.Sender != UnknownSender || msg.Date != NoDate {
		t.Fatalf("expected sentinels, got %+v", msg)
	}
	if msg.Body != "" {
		t.Fatalf("expected empty body, got %q", msg.Body)
	}
}

func TestNormalizeFoldedSubjectCollapsesWhitespace(t *testing.T) {
	raw := []byte("Subject: Quarterly budget\r\n review\r\n" +
		"From: bob@example.com\r\n" +
		"\r\n" +
		"body")

	msg := Normalize(raw, "1", 500)

	if msg.Subject != "Quarterly budget review" {
		t.Fatalf("subject: %q", msg.Subject)
	}
}

func TestNormalizeEncodedSubject(t *testing.T) {
	// "日本語" in RFC 2047 base64.
	raw := []byte("Subject: =?UTF-8?B?5pel5pys6Kqe?=\r\n" +
		"From: carol@example.jp\r\n" +
		"\r\n" +
		"body")

	msg := Normalize(raw, "1", 500)

	if msg.Subject != "日本語" {
		t.Fatalf("subject: %q", msg.Subject)
	}
}

func TestNormalizeMultipartPicksFirstPlainText(t *testing.T) {
	raw := []byte("From: dave@example.com\r\n" +
		"Subject: multipart\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=frontier\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>markup version</p>\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"plain version\r\n" +
		"--frontier--\r\n")

	msg := Normalize(raw, "1", 500)

	if strings.TrimSpace(msg.Body) != "plain version" {
		t.Fatalf("body: %q", msg.Body)
	}
}

func TestNormalizeSinglePartHTMLBody(t *testing.T) {
	raw := []byte("From: eve@example.com\r\n" +
		"Subject: newsletter\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>read me</p>")

	msg := Normalize(raw, "1", 500)

	if strings.TrimSpace(msg.Body) != "<p>read me</p>" {
		t.Fatalf("sole payload must be decoded directly, got %q", msg.Body)
	}
}

func TestNormalizeMultipartWithoutPlainTextFallsBackToFirstPart(t *testing.T) {
	raw := []byte("From: eve@example.com\r\n" +
		"Subject: markup only\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=frontier\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>first</p>\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>second</p>\r\n" +
		"--frontier--\r\n")

	msg := Normalize(raw, "1", 500)

	if strings.TrimSpace(msg.Body) != "<p>first</p>" {
		t.Fatalf("expected the first inline part, got %q", msg.Body)
	}
}

func TestNormalizeTruncatesBodyAtCap(t *testing.T) {
	body := strings.Repeat("a", 700)
	raw := []byte("Subject: long\r\n\r\n" + body)

	msg := Normalize(raw, "1", 500)

	if got := utf8.RuneCountInString(msg.Body); got != 500 {
		t.Fatalf("expected body of exactly 500 runes, got %d", got)
	}
}

func TestNormalizeTruncationCountsRunes(t *testing.T) {
	body := strings.Repeat("é", 700)
	raw := []byte("Subject: long\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n" + body)

	msg := Normalize(raw, "1", 500)

	if got := utf8.RuneCountInString(msg.Body); got != 500 {
		t.Fatalf("expected 500 runes, got %d", got)
	}
	if !utf8.ValidString(msg.Body) {
		t.Fatal("truncation split a multi-byte sequence")
	}
}

func TestNormalizeShortBodyUnchanged(t *testing.T) {
	raw := []byte("Subject: short\r\n\r\nbrief")

	msg := Normalize(raw, "1", 500)

	if strings.TrimSpace(msg.Body) != "brief" {
		t.Fatalf("body: %q", msg.Body)
	}
}

func TestClampBodyLimit(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, MinBodyLimit},
		{50, MinBodyLimit},
		{500, 500},
		{750, 750},
		{1000, 1000},
		{5000, MaxBodyLimit},
	}
	for _, c := range cases {
		if got := ClampBodyLimit(c.in); got != c.want {
			t.Errorf("ClampBodyLimit(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
