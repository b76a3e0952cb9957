// Package sqlite adapts an embedded sqlite database to the framer
// contract. There is no network: "framing" here is marshalling calls onto
// the worker goroutine that owns the C connection handle, and re-encoding
// sqlite's dynamically typed cells through the codec registry.
package sqlite

import (
	"context"
	"database/sql/driver"
	"io"

	"github.com/mattn/go-sqlite3"

	"github.com/wireql/wireql/pkg/backend"
	"github.com/wireql/wireql/pkg/codec"
	"github.com/wireql/wireql/pkg/config"
	"github.com/wireql/wireql/pkg/proto"
	"github.com/wireql/wireql/pkg/sqlerr"
)

const Scheme = "sqlite"

func init() {
	backend.Register(Scheme, sqliteDriver{})
}

type sqliteDriver struct{}

func (sqliteDriver) Open(ctx context.Context, opts *config.Options) (proto.Framer, error) {
	dsn := opts.Database
	if dsn == "" {
		dsn = ":memory:"
	}
	return &framer{dsn: dsn, reg: newRegistry(), stmts: make(map[uint32]*stmtEntry)}, nil
}

type stmtEntry struct {
	ds   driver.Stmt
	cols []codec.TypeInfo
}

type framer struct {
	dsn    string
	reg    *codec.Registry
	w      *worker
	conn   *sqlite3.SQLiteConn
	stmts  map[uint32]*stmtEntry
	nextID uint32
}

func (f *framer) Connect(ctx context.Context) error {
	f.w = newWorker()
	var err error
	werr := f.w.do(ctx, func() {
		var ci driver.Conn
		ci, err = (&sqlite3.SQLiteDriver{}).Open(f.dsn)
		if err == nil {
			f.conn = ci.(*sqlite3.SQLiteConn)
		}
	})
	if werr != nil {
		return werr
	}
	if err != nil {
		return sqlerr.WithKind(err, sqlerr.KindConnection)
	}
	return nil
}

// inspect binds placeholders to NULL and opens a cursor without stepping
// it: column names and declared types are readable before the first step,
// so statements with side effects are never run.
func (f *framer) inspect(ds driver.Stmt) ([]codec.TypeInfo, error) {
	rows, err := ds.Query(make([]driver.Value, ds.NumInput()))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	names := rows.Columns()
	decls := rows.(*sqlite3.SQLiteRows).DeclTypes()
	cols := make([]codec.TypeInfo, len(names))
	for i, name := range names {
		decl := ""
		if i < len(decls) {
			decl = decls[i]
		}
		cols[i] = columnTypeInfo(name, decl)
	}
	return cols, nil
}

func (f *framer) prepare(query string) (*stmtEntry, *proto.StatementHandle, error) {
	ds, err := f.conn.Prepare(query)
	if err != nil {
		return nil, nil, classify(err)
	}
	cols, err := f.inspect(ds)
	if err != nil {
		ds.Close()
		return nil, nil, err
	}
	entry := &stmtEntry{ds: ds, cols: cols}
	handle := &proto.StatementHandle{
		Query: query,
		// Parameter slots in sqlite are untyped; they stay unknown and
		// values travel as text for the column affinity rules to coerce.
		Params:  make([]codec.TypeInfo, ds.NumInput()),
		Columns: cols,
	}
	return entry, handle, nil
}

func (f *framer) Prepare(ctx context.Context, query string) (*proto.StatementHandle, error) {
	var handle *proto.StatementHandle
	var err error
	werr := f.w.do(ctx, func() {
		var entry *stmtEntry
		entry, handle, err = f.prepare(query)
		if err != nil {
			return
		}
		f.nextID++
		handle.ID = f.nextID
		f.stmts[handle.ID] = entry
	})
	if werr != nil {
		return nil, werr
	}
	return handle, err
}

// Describe prepares, reads the metadata and discards the statement
// immediately: nothing is retained on the connection.
func (f *framer) Describe(ctx context.Context, query string) (*proto.StatementHandle, error) {
	var handle *proto.StatementHandle
	var err error
	werr := f.w.do(ctx, func() {
		var entry *stmtEntry
		entry, handle, err = f.prepare(query)
		if err != nil {
			return
		}
		entry.ds.Close()
	})
	if werr != nil {
		return nil, werr
	}
	return handle, err
}

func (f *framer) Execute(ctx context.Context, stmt *proto.StatementHandle, params [][]byte) (proto.RowBatch, error) {
	args := make([]driver.Value, len(params))
	for i, payload := range params {
		if payload == nil {
			args[i] = nil
		} else {
			args[i] = string(payload)
		}
	}

	var b *batch
	var err error
	werr := f.w.do(ctx, func() {
		entry, ok := f.stmts[stmt.ID]
		if !ok {
			err = sqlerr.Newf(sqlerr.KindProtocol, "statement %d is not prepared on this connection", stmt.ID)
			return
		}
		if len(entry.cols) == 0 {
			// No result columns: run to completion and report the
			// affected row count.
			var res driver.Result
			res, err = entry.ds.Exec(args)
			if err != nil {
				err = classify(err)
				return
			}
			affected, _ := res.RowsAffected()
			b = &batch{affected: affected, done: true}
			return
		}
		var rows driver.Rows
		rows, err = entry.ds.Query(args)
		if err != nil {
			err = classify(err)
			return
		}
		b = &batch{
			w:    f.w,
			reg:  f.reg,
			cols: entry.cols,
			rows: rows,
			dest: make([]driver.Value, len(entry.cols)),
		}
	})
	if werr != nil {
		return nil, werr
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Command runs the statement directly on the connection, skipping the
// prepared-statement table.
func (f *framer) Command(ctx context.Context, query string) error {
	var err error
	werr := f.w.do(ctx, func() {
		_, err = f.conn.Exec(query, nil)
	})
	if werr != nil {
		return werr
	}
	if err != nil {
		return classify(err)
	}
	return nil
}

func (f *framer) CloseStatement(ctx context.Context, stmt *proto.StatementHandle) error {
	var err error
	werr := f.w.do(ctx, func() {
		entry, ok := f.stmts[stmt.ID]
		if !ok {
			return
		}
		delete(f.stmts, stmt.ID)
		err = entry.ds.Close()
	})
	if werr != nil {
		return werr
	}
	if err != nil {
		return classify(err)
	}
	return nil
}

func (f *framer) Ping(ctx context.Context) error {
	var err error
	werr := f.w.do(ctx, func() {
		err = f.conn.Ping(ctx)
	})
	if werr != nil {
		return werr
	}
	if err != nil {
		return sqlerr.WithKind(err, sqlerr.KindConnection)
	}
	return nil
}

func (f *framer) Registry() *codec.Registry { return f.reg }

func (f *framer) ServerInfo() proto.ServerInfo {
	version, _, _ := sqlite3.Version()
	return proto.ServerInfo{Backend: "sqlite", Version: version}
}

func (f *framer) Capabilities() proto.Capabilities {
	return proto.Capabilities{
		Savepoints:         true,
		NativeDescribe:     true,
		ExplicitDeallocate: true,
		PreferredFormat:    codec.FormatText,
	}
}

func (f *framer) Close() error {
	if f.w == nil {
		return nil
	}
	var err error
	f.w.do(context.Background(), func() {
		if f.conn != nil {
			err = f.conn.Close()
		}
	})
	f.w.stop()
	return err
}

// classify maps sqlite errors: anything the library reports with a result
// code is a server-side rejection, the rest is treated as a broken handle.
func classify(err error) error {
	if se, ok := err.(sqlite3.Error); ok {
		return sqlerr.NewServerError(uint32(se.Code), "", se.Error())
	}
	return sqlerr.WithKind(err, sqlerr.KindConnection)
}

// batch streams rows off the cursor, one step per Next, each step run on
// the worker goroutine.
type batch struct {
	w        *worker
	reg      *codec.Registry
	cols     []codec.TypeInfo
	rows     driver.Rows
	dest     []driver.Value
	affected int64
	done     bool
}

func (b *batch) Columns() []codec.TypeInfo { return b.cols }
func (b *batch) Format() codec.Format      { return codec.FormatText }

func (b *batch) Next() (proto.RowData, error) {
	if b.done {
		return proto.RowData{}, io.EOF
	}
	var row proto.RowData
	var err error
	werr := b.w.do(context.Background(), func() {
		err = b.rows.Next(b.dest)
		if err != nil {
			b.done = true
			b.rows.Close()
			if err != io.EOF {
				err = classify(err)
			}
			return
		}
		row, err = b.encodeRow()
	})
	if werr != nil {
		return proto.RowData{}, werr
	}
	if err != nil {
		return proto.RowData{}, err
	}
	return row, nil
}

func (b *batch) encodeRow() (proto.RowData, error) {
	values := make([][]byte, len(b.dest))
	for i, native := range b.dest {
		if native == nil {
			values[i] = nil
			continue
		}
		v, err := convertNative(b.cols[i], native)
		if err != nil {
			return proto.RowData{}, err
		}
		buf, err := b.reg.Encode(nil, v, b.cols[i], codec.FormatText)
		if err != nil {
			return proto.RowData{}, err
		}
		if buf == nil {
			buf = []byte{}
		}
		values[i] = buf
	}
	return proto.RowData{Values: values}, nil
}

func (b *batch) Cancel() error {
	if b.done {
		return nil
	}
	b.done = true
	var err error
	werr := b.w.do(context.Background(), func() {
		err = b.rows.Close()
	})
	if werr != nil {
		return werr
	}
	if err != nil {
		return classify(err)
	}
	return nil
}

func (b *batch) RowsAffected() int64 { return b.affected }
