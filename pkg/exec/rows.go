// Package exec is the query execution pipeline: statement-cache aware
// prepare, parameter binding through the codec registry, execution, lazy
// row streaming, and the describe path used for offline verification.
package exec

import (
	"fmt"
	"io"

	"github.com/wireql/wireql/pkg/codec"
	"github.com/wireql/wireql/pkg/proto"
	"github.com/wireql/wireql/pkg/sqlerr"
)

// Rows is a lazy, forward-only, single-consumption stream of decoded
// rows. It is finite and not restartable: re-running requires re-executing
// the query.
//
// A Rows must be closed (or consumed to the end) before its connection is
// reused; Close drains or cancels the remaining server response so the
// connection is never released mid-protocol.
type Rows struct {
	batch  proto.RowBatch
	reg    *codec.Registry
	cols   []codec.TypeInfo
	names  map[string]int
	format codec.Format

	cur    proto.RowData
	hasRow bool
	done   bool
	closed bool
	err    error

	finish     func(clean bool)
	afterClose func()
	finished   bool
}

func newRows(batch proto.RowBatch, reg *codec.Registry, finish func(clean bool)) *Rows {
	cols := batch.Columns()
	names := make(map[string]int, len(cols))
	for i, col := range cols {
		if _, dup := names[col.Name]; !dup {
			names[col.Name] = i
		}
	}
	return &Rows{
		batch:  batch,
		reg:    reg,
		cols:   cols,
		names:  names,
		format: batch.Format(),
		finish: finish,
	}
}

// Columns describes the result columns in order.
func (r *Rows) Columns() []codec.TypeInfo { return r.cols }

// Next advances to the next row, reporting false at the end of the stream
// or on error. Check Err after the loop.
func (r *Rows) Next() bool {
	if r.closed || r.done || r.err != nil {
		return false
	}
	rd, err := r.batch.Next()
	if err == io.EOF {
		r.done = true
		r.hasRow = false
		r.finishOnce(true)
		return false
	}
	if err != nil {
		r.err = err
		r.hasRow = false
		r.finishOnce(!sqlerr.IsFatal(err))
		return false
	}
	r.cur = rd
	r.hasRow = true
	return true
}

// Err returns the error that terminated the stream, if any.
func (r *Rows) Err() error { return r.err }

// Value decodes the column at index i of the current row. The returned
// value may borrow the row's wire buffer: Clone it before the next call
// to Next. Calling Value without a current row, or with an out-of-range
// index, is a programmer error and panics.
func (r *Rows) Value(i int) (codec.Value, error) {
	if !r.hasRow {
		panic("exec: Value called without a current row")
	}
	if i < 0 || i >= len(r.cols) {
		panic(fmt.Sprintf("exec: column index %d out of range [0,%d)", i, len(r.cols)))
	}
	v, err := r.reg.Decode(r.cur.Values[i], r.cols[i], r.format)
	if err != nil {
		return codec.Value{}, err
	}
	return v, nil
}

// ValueByName decodes the named column of the current row. An unknown
// name is a programmer error and panics.
func (r *Rows) ValueByName(name string) (codec.Value, error) {
	i, ok := r.names[name]
	if !ok {
		panic(fmt.Sprintf("exec: unknown column %q", name))
	}
	return r.Value(i)
}

// Close releases the stream. When rows remain unconsumed the response is
// cancelled first; if that fails the connection is reported unclean and
// will be discarded instead of reused.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.hasRow = false
	if r.done || r.err != nil {
		// Terminal state already reported through finishOnce.
		return nil
	}
	if err := r.batch.Cancel(); err != nil {
		r.finishOnce(false)
		return err
	}
	r.finishOnce(true)
	return nil
}

// RowsAffected is valid once the stream has been fully consumed.
func (r *Rows) RowsAffected() int64 { return r.batch.RowsAffected() }

func (r *Rows) finishOnce(clean bool) {
	if r.finished {
		return
	}
	r.finished = true
	if r.finish != nil {
		r.finish(clean)
	}
	if r.afterClose != nil {
		r.afterClose()
	}
}
