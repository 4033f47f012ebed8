package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"
)

var errSessionClosed = errors.New("session is closed")

// protocolClient is the subset of IMAP operations a Session issues. The
// production implementation wraps imapclient.Client; tests substitute a
// recording mock through SessionOptions.Connector.
type protocolClient interface {
	Login(username, password string) error
	Select(mailbox string) error
	SearchAll() ([]imap.UID, error)
	FetchRaw(uid imap.UID) ([]byte, error)
	Logout() error
	Close() error
}

// Connector dials the mail server and returns an unauthenticated protocol
// client. The context bounds the dial and TLS handshake.
type Connector func(ctx context.Context, creds Credentials) (protocolClient, error)

// SessionOptions configures session construction. The zero value selects a
// TLS dial, a nop logger and the default body cap.
type SessionOptions struct {
	BodyLimit int
	Logger    *zap.Logger
	Connector Connector
}

// Session is a live, authenticated connection to an IMAP server, owned by
// a single retrieval call. It is not safe for concurrent use; the protocol
// does not support interleaved commands on one connection.
type Session struct {
	client    protocolClient
	logger    *zap.Logger
	bodyLimit int
	closed    bool
}

// Open establishes a TLS-secured session and authenticates with the given
// credentials. The context bounds the dial and handshake; the session
// itself outlives it. Any dial, TLS or authentication failure is returned
// as a *ConnectionError; callers treat "no session" as an expected
// outcome. On authentication failure the connection is dropped without
// issuing further protocol commands.
func Open(ctx context.Context, creds Credentials, opts SessionOptions) (*Session, error) {
	connect := opts.Connector
	if connect == nil {
		connect = dialTLS
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := connect(ctx, creds)
	if err != nil {
		return nil, &ConnectionError{Addr: creds.Addr(), Err: err}
	}

	if err := client.Login(creds.Username, creds.Password); err != nil {
		_ = client.Close()
		return nil, &ConnectionError{
			Addr: creds.Addr(),
			Err:  fmt.Errorf("authenticating %s: %w", creds.Username, err),
		}
	}

	return &Session{
		client:    client,
		logger:    logger,
		bodyLimit: ClampBodyLimit(opts.BodyLimit),
	}, nil
}

// FetchRecent selects INBOX, enumerates every message, and fetches the
// most recent limit messages individually, returning them newest first.
// A message that fails to fetch or produces unusable bytes is skipped and
// logged; the rest of the batch is still returned.
func (s *Session) FetchRecent(limit int) ([]Message, error) {
	if s.closed {
		return nil, &RetrievalError{Op: "fetch", Err: errSessionClosed}
	}
	if limit <= 0 {
		return nil, nil
	}

	if err := s.client.Select("INBOX"); err != nil {
		return nil, &RetrievalError{Op: "selecting INBOX", Err: err}
	}

	uids, err := s.client.SearchAll()
	if err != nil {
		return nil, &RetrievalError{Op: "searching messages", Err: err}
	}
	if len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	// UID SEARCH yields ascending order; walk backwards so the newest
	// message comes first.
	messages := make([]Message, 0, len(uids))
	for i := len(uids) - 1; i >= 0; i-- {
		uid := uids[i]
		raw, err := s.client.FetchRaw(uid)
		if err != nil {
			s.logger.Warn("skipping message",
				zap.Uint32("uid", uint32(uid)),
				zap.Error(err))
			continue
		}
		id := strconv.FormatUint(uint64(uid), 10)
		messages = append(messages, Normalize(raw, id, s.bodyLimit))
	}

	return messages, nil
}

// Close logs out and releases the connection. It is idempotent and runs on
// every exit path; a failed logout is reported but never fatal to the
// request.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.client.Logout(); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// imapProtocol adapts imapclient.Client to the protocolClient interface,
// waiting on each command so callers see plain error returns.
type imapProtocol struct {
	client *imapclient.Client
}

func dialTLS(ctx context.Context, creds Credentials) (protocolClient, error) {
	dialer := tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    &tls.Config{ServerName: creds.Host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", creds.Addr())
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", creds.Addr(), err)
	}
	return &imapProtocol{client: imapclient.New(conn, &imapclient.Options{})}, nil
}

func (p *imapProtocol) Login(username, password string) error {
	return p.client.Login(username, password).Wait()
}

func (p *imapProtocol) Select(mailbox string) error {
	_, err := p.client.Select(mailbox, nil).Wait()
	return err
}

func (p *imapProtocol) SearchAll() ([]imap.UID, error) {
	data, err := p.client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, err
	}
	return data.AllUIDs(), nil
}

func (p *imapProtocol) FetchRaw(uid imap.UID) ([]byte, error) {
	section := &imap.FetchItemBodySection{Peek: true}
	cmd := p.client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer cmd.Close()

	msg := cmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message %d: %w", uid, err)
	}

	raw := buf.FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("message %d has no body section", uid)
	}
	return raw, nil
}

func (p *imapProtocol) Logout() error {
	return p.client.Logout().Wait()
}

func (p *imapProtocol) Close() error {
	return p.client.Close()
}
