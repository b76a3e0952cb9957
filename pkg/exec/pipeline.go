package exec

import (
	"context"
	"time"

	"github.com/wireql/wireql/pkg/codec"
	"github.com/wireql/wireql/pkg/conn"
	"github.com/wireql/wireql/pkg/describe"
	"github.com/wireql/wireql/pkg/metrics"
	"github.com/wireql/wireql/pkg/sqlerr"
)

// Pipeline executes queries over one connection the caller already owns
// (directly opened, or held under a pool lease).
type Pipeline struct {
	c *conn.Conn
}

func New(c *conn.Conn) *Pipeline {
	return &Pipeline{c: c}
}

// Fetch prepares (or reuses the cached statement for) the query, binds
// the parameters, executes, and returns the lazy row stream.
func (p *Pipeline) Fetch(ctx context.Context, query string, params ...codec.Value) (*Rows, error) {
	start := time.Now()
	rows, err := p.fetch(ctx, query, params)
	backend := p.c.ServerInfo().Backend
	metrics.QueryTotalCounter.WithLabelValues(backend, metrics.RetLabel(err)).Inc()
	metrics.QueryDurationHistogram.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	return rows, err
}

func (p *Pipeline) fetch(ctx context.Context, query string, params []codec.Value) (*Rows, error) {
	stmt, err := p.c.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	encoded, err := encodeParams(p.c, stmt.Params, params)
	if err != nil {
		return nil, err
	}
	batch, err := p.c.Run(ctx, stmt, encoded)
	if err != nil {
		return nil, err
	}
	return newRows(batch, p.c.Registry(), p.c.FinishQuery), nil
}

// Execute runs the query and returns the affected row count, draining any
// rows the backend produces.
func (p *Pipeline) Execute(ctx context.Context, query string, params ...codec.Value) (int64, error) {
	rows, err := p.Fetch(ctx, query, params...)
	if err != nil {
		return 0, err
	}
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return rows.RowsAffected(), nil
}

// Describe reports the query's output column and input parameter types
// without executing it and without side effects observable to concurrent
// queries.
func (p *Pipeline) Describe(ctx context.Context, query string) (describe.Result, error) {
	stmt, err := p.c.Describe(ctx, query)
	if err != nil {
		return describe.Result{}, err
	}
	return describe.FromStatement(stmt), nil
}

// encodeParams converts the supplied values into the wire payloads of the
// declared parameter slots. Arity or kind mismatches fail here, before
// any IO.
func encodeParams(c *conn.Conn, declared []codec.TypeInfo, params []codec.Value) ([][]byte, error) {
	if len(params) != len(declared) {
		return nil, sqlerr.Newf(sqlerr.KindTypeMismatch,
			"statement declares %d parameters, got %d", len(declared), len(params))
	}
	if len(params) == 0 {
		return nil, nil
	}
	format := c.Capabilities().PreferredFormat
	encoded := make([][]byte, len(params))
	for i, v := range params {
		if v.IsNull() {
			encoded[i] = nil
			continue
		}
		ti, slotFormat := declared[i], format
		if ti.Kind == codec.KindInvalid {
			// Backends that cannot report declared parameter types mark
			// the slot unknown; such slots travel in text format under
			// the value's own kind and the server coerces.
			ti = codec.TypeInfo{Kind: v.Kind(), Nullable: true}
			slotFormat = codec.FormatText
		}
		buf, err := c.Registry().Encode(nil, v, ti, slotFormat)
		if err != nil {
			return nil, err
		}
		if buf == nil {
			// An empty payload (e.g. the empty string) is not NULL; only
			// a nil slice marks NULL on the wire.
			buf = []byte{}
		}
		encoded[i] = buf
	}
	return encoded, nil
}
