package mailbox

import "fmt"

// ConnectionError reports that a secure session could not be established
// or authenticated. Callers treat it as an expected outcome: the inbox is
// simply unreachable for this request.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RetrievalError reports that a search or fetch against an open session
// failed.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }
