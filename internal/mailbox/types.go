package mailbox

import "fmt"

// Sentinel values used when a header is absent or cannot be decoded.
// Message fields are never empty; callers can rely on that.
const (
	NoSubject     = "No Subject"
	UnknownSender = "Unknown Sender"
	NoDate        = "No Date"
)

// Body truncation bounds. The configured cap is clamped into this range.
const (
	MinBodyLimit = 500
	MaxBodyLimit = 1000
)

// Credentials holds the account settings for one IMAP session. They are
// supplied by the caller at session construction and are read-only for
// the lifetime of the session.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Addr returns the host:port dial address.
func (c Credentials) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Message is the canonical decoded form of one inbox message. Instances
// are immutable once constructed; Subject, Sender and Date always carry
// either the decoded header or its sentinel, and Body never exceeds the
// configured cap.
type Message struct {
	Subject string
	Sender  string
	Date    string
	Body    string
	UID     string
}
