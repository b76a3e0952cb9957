// Package proto defines the contract every backend protocol plugs into:
// the Framer interface covering the request/response cycle, the row batch
// handle it produces, and the Session phase tracker that enforces the
// legal state transitions of one live protocol session.
package proto

import (
	"context"

	"github.com/wireql/wireql/pkg/codec"
)

// ServerInfo carries the session parameters the server reported during
// the handshake.
type ServerInfo struct {
	// Backend is the backend identity string, e.g. "mysql" or "sqlite".
	Backend string
	// Version is the server-reported version.
	Version string
	// ProcessID is the server-side session identifier, zero where the
	// backend has no such concept.
	ProcessID uint32
	// Parameters holds any further key/value session parameters.
	Parameters map[string]string
}

// Identity is the string keying offline describe metadata to a backend.
func (si ServerInfo) Identity() string {
	if si.Version == "" {
		return si.Backend
	}
	return si.Backend + " " + si.Version
}

// Capabilities declares which optional protocol facilities a backend
// supports, so the layers above never probe for them at runtime.
type Capabilities struct {
	// Savepoints: nested transactions map onto SAVEPOINT statements.
	// Without it, inner begin/commit pairs are tracked locally as no-ops.
	Savepoints bool
	// NativeDescribe: the server can describe a statement without
	// executing it. Without it, describe prepares without executing.
	NativeDescribe bool
	// ExplicitDeallocate: evicted prepared statements must be closed on
	// the server.
	ExplicitDeallocate bool
	// PreferredFormat is the row format negotiated with the server.
	PreferredFormat codec.Format
}

// StatementHandle is the server-side prepared form of one query text.
// Handles are per-connection; they never travel across connections.
type StatementHandle struct {
	ID      uint32
	Query   string
	Params  []codec.TypeInfo
	Columns []codec.TypeInfo
}

// RowData is one undecoded row: the raw per-column payloads in the format
// the batch reports. A nil column payload is the out-of-band NULL marker.
// The payloads alias the framer's read buffer and are only valid until
// the next call into the batch.
type RowData struct {
	Values [][]byte
}

// RowBatch is the framer-level handle over one executing statement's
// response. It is forward-only and single-consumption.
type RowBatch interface {
	// Columns describes the result columns. Stable for the batch's life.
	Columns() []codec.TypeInfo

	// Format is the wire format of the row payloads.
	Format() codec.Format

	// Next returns the next row, or io.EOF after the final one. Any other
	// error means the response cannot continue; whether the connection
	// survives is decided by the error's kind.
	Next() (RowData, error)

	// Cancel abandons the remaining response, draining or cancelling it
	// so the session is protocol-clean. An error from Cancel means the
	// session is left mid-response and must be latched broken.
	Cancel() error

	// RowsAffected is valid once Next returned io.EOF.
	RowsAffected() int64
}

// Framer is the per-backend protocol state machine. One framer owns one
// transport session. Implementations are not safe for concurrent use: a
// framer is exclusively owned by the connection wrapping it.
type Framer interface {
	// Connect opens the transport and performs the handshake and
	// authentication. Failures surface as KindConnection or KindAuth and
	// leave the framer closed.
	Connect(ctx context.Context) error

	// Prepare creates a server-side prepared statement for the exact
	// query text.
	Prepare(ctx context.Context, query string) (*StatementHandle, error)

	// Describe reports the statement's parameter and column types without
	// executing it and without side effects observable to other sessions.
	Describe(ctx context.Context, query string) (*StatementHandle, error)

	// Execute binds the encoded parameters (nil payload = NULL) and runs
	// the statement. The returned batch must be consumed to io.EOF or
	// cancelled before the framer accepts another request.
	Execute(ctx context.Context, stmt *StatementHandle, params [][]byte) (RowBatch, error)

	// Command runs one parameterless statement over the protocol's simple
	// query path, outside the prepared-statement cycle. Transaction control
	// goes through here: some protocols reject BEGIN and SAVEPOINT as
	// prepared statements.
	Command(ctx context.Context, query string) error

	// CloseStatement deallocates a prepared statement on the server.
	CloseStatement(ctx context.Context, stmt *StatementHandle) error

	// Ping verifies the session is alive with the cheapest round trip the
	// protocol has.
	Ping(ctx context.Context) error

	// Registry is the codec registry carrying this backend's wire type
	// table.
	Registry() *codec.Registry

	ServerInfo() ServerInfo
	Capabilities() Capabilities

	// Close terminates the session. Safe to call in any phase and more
	// than once.
	Close() error
}
