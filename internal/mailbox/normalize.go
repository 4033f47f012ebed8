package mailbox

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"

	// Register extra charset decoders (iso-8859-*, windows-125x, koi8-r,
	// ...) so headers and bodies in legacy encodings decode leniently.
	_ "github.com/emersion/go-message/charset"
)

// Normalize decodes a raw RFC 822 message into a Message. It never fails:
// anything that cannot be decoded degrades to a sentinel value or an empty
// body. The body is capped at bodyLimit runes (clamped to
// [MinBodyLimit, MaxBodyLimit]).
func Normalize(raw []byte, uid string, bodyLimit int) Message {
	bodyLimit = ClampBodyLimit(bodyLimit)

	msg := Message{
		Subject: NoSubject,
		Sender:  UnknownSender,
		Date:    NoDate,
		UID:     uid,
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil || err != nil && mr.Header.Len() == 0 {
		// Unparsable message: salvage whatever follows the header block.
		msg.Body = truncate(rawBody(raw), bodyLimit)
		return msg
	}
	defer mr.Close()

	if v := headerText(mr.Header, "Subject"); v != "" {
		msg.Subject = v
	}
	if v := headerText(mr.Header, "From"); v != "" {
		msg.Sender = v
	}
	if v := strings.TrimSpace(mr.Header.Get("Date")); v != "" {
		msg.Date = v
	}

	msg.Body = truncate(extractBody(mr), bodyLimit)
	return msg
}

// ClampBodyLimit forces a configured body cap into the supported range.
func ClampBodyLimit(limit int) int {
	if limit < MinBodyLimit {
		return MinBodyLimit
	}
	if limit > MaxBodyLimit {
		return MaxBodyLimit
	}
	return limit
}

// headerText returns the decoded header value with encoded-word fragments
// joined by single spaces. A fragment that fails to decode is kept
// verbatim rather than dropped.
func headerText(h mail.Header, key string) string {
	text, err := h.Text(key)
	if err != nil || text == "" {
		text = h.Get(key)
	}
	return strings.Join(strings.Fields(text), " ")
}

// extractBody walks the message parts and returns the first text/plain
// part. When no plain-text part exists the first inline payload is used
// instead, whatever its content type: a single-part message always
// yields its sole payload. Returns "" when no inline part decodes.
func extractBody(mr *mail.Reader) string {
	var fallback string
	haveFallback := false
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		contentType, _, _ := h.ContentType()
		if strings.HasPrefix(contentType, "text/plain") {
			return string(body)
		}
		if !haveFallback {
			fallback = string(body)
			haveFallback = true
		}
	}
	return fallback
}

// rawBody returns the bytes after the header block of an unparsable
// message.
func rawBody(raw []byte) string {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return string(raw[i+4:])
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return string(raw[i+2:])
	}
	return ""
}

// truncate caps s at limit runes. Counting runes keeps the cap from
// splitting a multi-byte sequence.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
