// Package mem is an in-process backend speaking the framer contract over
// scripted responses instead of a network. It exists for tests: the pool,
// connection and pipeline suites run against it without a server, and
// failure modes (handshake rejection, fatal protocol errors, cancel
// failures) are injected per framer.
package mem

import (
	"context"
	"io"
	"sync"

	"github.com/wireql/wireql/pkg/backend"
	"github.com/wireql/wireql/pkg/codec"
	"github.com/wireql/wireql/pkg/config"
	"github.com/wireql/wireql/pkg/proto"
	"github.com/wireql/wireql/pkg/sqlerr"
	"github.com/wireql/wireql/pkg/util/sync2"
)

const Scheme = "mem"

func init() {
	backend.Register(Scheme, &Driver{})
}

// Driver builds empty framers for URL-based opens. Tests that need
// scripted responses set Setup to configure each framer as it is built.
type Driver struct {
	Setup func(*Framer)
}

func (d *Driver) Open(ctx context.Context, opts *config.Options) (proto.Framer, error) {
	f := NewFramer()
	if d.Setup != nil {
		d.Setup(f)
	}
	return f, nil
}

// Script is one query's canned response.
type Script struct {
	Params   []codec.TypeInfo
	Columns  []codec.TypeInfo
	Rows     [][]codec.Value
	Affected int64

	// Err is returned from Execute as a server-side rejection: the
	// session stays usable.
	Err error
	// CancelErr makes abandoning this response fail, simulating a
	// session that cannot be drained clean.
	CancelErr error
}

// NewRegistry builds the mem backend's codec registry: every kind is its
// own wire type.
func NewRegistry() *codec.Registry {
	reg := codec.NewRegistry()
	for k := codec.KindBool; k <= codec.KindBigInt; k++ {
		reg.RegisterWireType(uint32(k), k.String(), k)
	}
	return reg
}

type Framer struct {
	mu       sync.Mutex
	reg      *codec.Registry
	scripts  map[string]*Script
	nextID   uint32
	executed []string
	dealloc  int

	connectErr   error
	pingErr      error
	executeErr   error // injected once, fatal
	closed       sync2.AtomicBool
	savepoints   bool
	noNativeDesc bool
}

func NewFramer() *Framer {
	return &Framer{
		reg:        NewRegistry(),
		scripts:    make(map[string]*Script),
		savepoints: true,
	}
}

// ScriptQuery registers the canned response for the exact query text.
// Unscripted queries succeed with no columns, no rows and zero affected
// rows, so transaction control statements need no scripting.
func (f *Framer) ScriptQuery(query string, s *Script) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[query] = s
}

// FailConnect makes the handshake fail.
func (f *Framer) FailConnect(err error) { f.connectErr = err }

// FailPing makes health checks fail.
func (f *Framer) FailPing(err error) { f.pingErr = err }

// FailNextExecute injects a fatal error into the next Execute call.
func (f *Framer) FailNextExecute(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executeErr = err
}

// DisableSavepoints flips the capability off so nested transactions fall
// back to local tracking.
func (f *Framer) DisableSavepoints() { f.savepoints = false }

// DisableNativeDescribe flips the capability off so describes fall back
// to prepare-without-execute.
func (f *Framer) DisableNativeDescribe() { f.noNativeDesc = true }

// Executed returns the executed query texts in order.
func (f *Framer) Executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.executed))
	copy(out, f.executed)
	return out
}

// Deallocated returns how many statements were explicitly closed.
func (f *Framer) Deallocated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dealloc
}

func (f *Framer) Closed() bool { return f.closed.Get() }

func (f *Framer) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	return nil
}

func (f *Framer) Prepare(ctx context.Context, query string) (*proto.StatementHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	handle := &proto.StatementHandle{ID: f.nextID, Query: query}
	if s, ok := f.scripts[query]; ok {
		handle.Params = s.Params
		handle.Columns = s.Columns
	}
	return handle, nil
}

func (f *Framer) Describe(ctx context.Context, query string) (*proto.StatementHandle, error) {
	return f.Prepare(ctx, query)
}

func (f *Framer) Execute(ctx context.Context, stmt *proto.StatementHandle, params [][]byte) (proto.RowBatch, error) {
	f.mu.Lock()
	if err := f.executeErr; err != nil {
		f.executeErr = nil
		f.mu.Unlock()
		return nil, err
	}
	f.executed = append(f.executed, stmt.Query)
	s := f.scripts[stmt.Query]
	f.mu.Unlock()

	if s == nil {
		return &batch{format: codec.FormatBinary}, nil
	}
	if s.Err != nil {
		return nil, s.Err
	}
	rows, err := encodeRows(f.reg, s.Columns, s.Rows)
	if err != nil {
		return nil, err
	}
	return &batch{
		cols:      s.Columns,
		rows:      rows,
		affected:  s.Affected,
		cancelErr: s.CancelErr,
		format:    codec.FormatBinary,
	}, nil
}

// Command records the query like Execute does, but never creates a
// statement: the real backends run these outside the prepared cycle.
func (f *Framer) Command(ctx context.Context, query string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.executeErr; err != nil {
		f.executeErr = nil
		return err
	}
	f.executed = append(f.executed, query)
	if s := f.scripts[query]; s != nil && s.Err != nil {
		return s.Err
	}
	return nil
}

func (f *Framer) CloseStatement(ctx context.Context, stmt *proto.StatementHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dealloc++
	return nil
}

func (f *Framer) Ping(ctx context.Context) error {
	if f.pingErr != nil {
		return f.pingErr
	}
	return nil
}

func (f *Framer) Registry() *codec.Registry { return f.reg }

func (f *Framer) ServerInfo() proto.ServerInfo {
	return proto.ServerInfo{Backend: "mem", Version: "1.0"}
}

func (f *Framer) Capabilities() proto.Capabilities {
	return proto.Capabilities{
		Savepoints:         f.savepoints,
		NativeDescribe:     !f.noNativeDesc,
		ExplicitDeallocate: true,
		PreferredFormat:    codec.FormatBinary,
	}
}

func (f *Framer) Close() error {
	f.closed.Set(true)
	return nil
}

func encodeRows(reg *codec.Registry, cols []codec.TypeInfo, rows [][]codec.Value) ([][][]byte, error) {
	out := make([][][]byte, len(rows))
	for i, row := range rows {
		if len(row) != len(cols) {
			return nil, sqlerr.Newf(sqlerr.KindProtocol, "scripted row %d has %d values for %d columns", i, len(row), len(cols))
		}
		encoded := make([][]byte, len(row))
		for j, v := range row {
			if v.IsNull() {
				encoded[j] = nil
				continue
			}
			buf, err := reg.Encode(nil, v, cols[j], codec.FormatBinary)
			if err != nil {
				return nil, err
			}
			if buf == nil {
				buf = []byte{}
			}
			encoded[j] = buf
		}
		out[i] = encoded
	}
	return out, nil
}

type batch struct {
	cols      []codec.TypeInfo
	rows      [][][]byte
	next      int
	affected  int64
	cancelErr error
	done      bool
	format    codec.Format
}

func (b *batch) Columns() []codec.TypeInfo { return b.cols }
func (b *batch) Format() codec.Format      { return b.format }

func (b *batch) Next() (proto.RowData, error) {
	if b.done || b.next >= len(b.rows) {
		b.done = true
		return proto.RowData{}, io.EOF
	}
	row := b.rows[b.next]
	b.next++
	return proto.RowData{Values: row}, nil
}

func (b *batch) Cancel() error {
	if b.cancelErr != nil {
		return b.cancelErr
	}
	b.done = true
	return nil
}

func (b *batch) RowsAffected() int64 { return b.affected }
