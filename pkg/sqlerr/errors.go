// Package sqlerr classifies every failure the toolkit can surface into a
// small set of kinds. A kind is attached to an error once, close to where
// the failure is observed, and checked by callers with IsKind without
// caring which backend produced the underlying error.
package sqlerr

import (
	"fmt"

	"github.com/pingcap/errors"
)

type Kind int

const (
	KindUnknown Kind = iota

	// KindConfig: bad connection string or options. Fatal, no retry.
	KindConfig

	// KindConnection: transport open or handshake failure. The pool may
	// open a different connection but never retries the broken one.
	KindConnection

	// KindAuth: the server rejected the credentials.
	KindAuth

	// KindPoolTimeout: acquire exceeded its deadline. Recoverable.
	KindPoolTimeout

	// KindPoolClosed: the pool has been shut down.
	KindPoolClosed

	// KindProtocol: malformed or unsynchronizable wire data. Always
	// closes the connection.
	KindProtocol

	// KindQuery: the server rejected the statement. The connection
	// remains usable.
	KindQuery

	// KindTypeMismatch: value/column type incompatibility. Local, no IO
	// was performed.
	KindTypeMismatch
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config error"
	case KindConnection:
		return "connection error"
	case KindAuth:
		return "auth error"
	case KindPoolTimeout:
		return "pool timeout"
	case KindPoolClosed:
		return "pool closed"
	case KindProtocol:
		return "protocol error"
	case KindQuery:
		return "query error"
	case KindTypeMismatch:
		return "type mismatch"
	default:
		return "unknown error"
	}
}

// Fatal reports whether errors of this kind break the connection they
// were observed on. Fatal errors latch: the connection is discarded, not
// returned to the pool.
func (k Kind) Fatal() bool {
	switch k {
	case KindConnection, KindAuth, KindProtocol:
		return true
	default:
		return false
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string {
	return e.kind.String() + ": " + e.err.Error()
}

func (e *kindError) Unwrap() error { return e.err }

func (e *kindError) Cause() error { return e.err }

// New creates a fresh error of the given kind.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// Newf creates a fresh error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: fmt.Errorf(format, args...)}
}

// WithKind attaches a kind to err. The innermost kind wins on lookup, so
// re-wrapping an already classified error does not reclassify it.
func WithKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// KindOf walks the cause chain and returns the innermost attached kind,
// or KindUnknown if the error was never classified.
func KindOf(err error) Kind {
	kind := KindUnknown
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			kind = ke.kind
		}
		err = unwrapOnce(err)
	}
	return kind
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsFatal reports whether err is connection-fatal (see Kind.Fatal).
func IsFatal(err error) bool {
	return KindOf(err).Fatal()
}

func unwrapOnce(err error) error {
	switch v := err.(type) {
	case interface{ Unwrap() error }:
		return v.Unwrap()
	case interface{ Cause() error }:
		return v.Cause()
	default:
		return nil
	}
}

// ServerError is the structured payload of a server-reported statement
// failure. It is always classified KindQuery: the connection that carried
// it stays usable.
type ServerError struct {
	Code     uint32
	SQLState string
	Message  string
}

func (e *ServerError) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("server error %d (%s): %s", e.Code, e.SQLState, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// NewServerError wraps a server-reported failure as a KindQuery error.
func NewServerError(code uint32, sqlState, message string) error {
	return WithKind(&ServerError{Code: code, SQLState: sqlState, Message: message}, KindQuery)
}

// AsServerError extracts the server payload from err, if present.
func AsServerError(err error) (*ServerError, bool) {
	for err != nil {
		if se, ok := err.(*ServerError); ok {
			return se, true
		}
		err = unwrapOnce(err)
	}
	return nil, false
}
