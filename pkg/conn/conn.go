// Package conn wraps one backend framer into a live session: it tracks
// the protocol phase, caches prepared statements, keeps the transaction
// depth, and latches the first fatal error so a broken connection fails
// fast instead of re-attempting IO.
package conn

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/wireql/wireql/pkg/codec"
	"github.com/wireql/wireql/pkg/config"
	"github.com/wireql/wireql/pkg/metrics"
	"github.com/wireql/wireql/pkg/proto"
	"github.com/wireql/wireql/pkg/sqlerr"
	"github.com/wireql/wireql/pkg/wlog"
)

// Conn owns exactly one protocol session. It is exclusively owned by one
// caller at a time (the pool lease enforces this), so it carries no lock
// of its own.
type Conn struct {
	framer  proto.Framer
	session *proto.Session
	stmts   *stmtCache

	// transient is the statement of the in-flight request when caching is
	// disabled; it is deallocated as soon as the response is finished.
	transient *proto.StatementHandle

	txnDepth  int
	createdAt time.Time
}

// Connect performs the handshake on framer and returns the live
// connection. On failure the framer is closed and never reused.
func Connect(ctx context.Context, framer proto.Framer, opts *config.Options) (*Conn, error) {
	c := &Conn{
		framer:    framer,
		session:   proto.NewSession(),
		createdAt: time.Now(),
	}

	capacity := config.DefaultStatementCacheCapacity
	if opts != nil {
		capacity = opts.StatementCacheCapacity
	}
	c.stmts = newStmtCache(capacity, c.deallocate)

	if err := framer.Connect(ctx); err != nil {
		c.session.Latch(err)
		_ = framer.Close()
		return nil, err
	}
	// The framer owns the byte-level handshake; the session only records
	// that both phases completed.
	if err := c.session.Transition(proto.PhaseAuthenticating); err != nil {
		return nil, err
	}
	if err := c.session.Transition(proto.PhaseReady); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conn) Registry() *codec.Registry          { return c.framer.Registry() }
func (c *Conn) Capabilities() proto.Capabilities   { return c.framer.Capabilities() }
func (c *Conn) ServerInfo() proto.ServerInfo       { return c.framer.ServerInfo() }
func (c *Conn) CreatedAt() time.Time               { return c.createdAt }
func (c *Conn) Phase() proto.Phase                 { return c.session.Phase() }

// Broken reports whether a fatal error has been latched on this
// connection. A broken connection is discarded, never pooled again.
func (c *Conn) Broken() bool { return c.session.Broken() }

// BrokenErr returns the latched fatal error, if any.
func (c *Conn) BrokenErr() error { return c.session.Fatal() }

// guard fails immediately when the connection cannot accept a request.
func (c *Conn) guard() error {
	if err := c.session.Fatal(); err != nil {
		return sqlerr.WithKind(err, sqlerr.KindConnection)
	}
	switch c.session.Phase() {
	case proto.PhaseReady:
		return nil
	case proto.PhaseClosed:
		return sqlerr.New(sqlerr.KindConnection, "connection is closed")
	default:
		return sqlerr.Newf(sqlerr.KindProtocol, "connection is %s, not ready", c.session.Phase())
	}
}

// check latches connection-fatal errors so the next operation fails
// without touching the wire.
func (c *Conn) check(err error) error {
	if err != nil && sqlerr.IsFatal(err) {
		c.session.Latch(err)
	}
	return err
}

// Prepare returns the cached statement handle for the exact query text,
// preparing it on the server on a cache miss. The cache is bounded; the
// least recently used handle is deallocated to make room.
func (c *Conn) Prepare(ctx context.Context, query string) (*proto.StatementHandle, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	backend := c.framer.ServerInfo().Backend
	if stmt, ok := c.stmts.get(query); ok {
		metrics.StmtCacheHitCounter.WithLabelValues(backend, metrics.CacheHit).Inc()
		return stmt, nil
	}
	metrics.StmtCacheHitCounter.WithLabelValues(backend, metrics.CacheMiss).Inc()
	stmt, err := c.framer.Prepare(ctx, query)
	if err != nil {
		return nil, c.check(err)
	}
	// With caching disabled this is a no-op; the statement is deallocated
	// once its response is finished instead.
	c.stmts.put(query, stmt)
	return stmt, nil
}

// Describe reports the query's parameter and column types without
// executing it, via the server's native describe facility when the
// backend has one and by preparing without executing otherwise.
func (c *Conn) Describe(ctx context.Context, query string) (*proto.StatementHandle, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	if c.framer.Capabilities().NativeDescribe {
		stmt, err := c.framer.Describe(ctx, query)
		if err != nil {
			return nil, c.check(err)
		}
		return stmt, nil
	}
	stmt, err := c.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	if c.stmts.disabled {
		// Nothing retains the statement; the metadata stays valid.
		c.deallocate(stmt)
	}
	return stmt, nil
}

// Run sends one execute request for a prepared statement. The connection
// stays in the querying phase until FinishQuery is called; exactly one
// request may be in flight.
func (c *Conn) Run(ctx context.Context, stmt *proto.StatementHandle, params [][]byte) (proto.RowBatch, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	if err := c.session.Transition(proto.PhaseQuerying); err != nil {
		return nil, err
	}
	if c.stmts.disabled {
		c.transient = stmt
	}
	batch, err := c.framer.Execute(ctx, stmt, params)
	if err != nil {
		c.check(err)
		// Server-side statement rejection leaves the session usable.
		if !sqlerr.IsFatal(err) {
			_ = c.session.Transition(proto.PhaseReady)
		}
		c.releaseTransient()
		return nil, err
	}
	return batch, nil
}

// FinishQuery returns the session to ready after a response has been
// fully consumed or cleanly cancelled. clean=false means the response was
// abandoned mid-protocol: the connection is latched broken rather than
// handed to another caller in an undefined state.
func (c *Conn) FinishQuery(clean bool) {
	if !clean {
		c.session.Latch(sqlerr.New(sqlerr.KindProtocol, "response abandoned mid-protocol"))
		c.releaseTransient()
		return
	}
	_ = c.session.Transition(proto.PhaseReady)
	c.releaseTransient()
}

// releaseTransient deallocates the in-flight statement of a cache-disabled
// connection once its response is finished.
func (c *Conn) releaseTransient() {
	if c.transient == nil {
		return
	}
	stmt := c.transient
	c.transient = nil
	c.deallocate(stmt)
}

// Exec prepares and runs a statement, draining the response, and returns
// the affected row count.
func (c *Conn) Exec(ctx context.Context, query string, params [][]byte) (int64, error) {
	stmt, err := c.Prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	batch, err := c.Run(ctx, stmt, params)
	if err != nil {
		return 0, err
	}
	for {
		_, err := batch.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.check(err)
			c.FinishQuery(!sqlerr.IsFatal(err))
			return 0, err
		}
	}
	c.FinishQuery(true)
	return batch.RowsAffected(), nil
}

// Command runs a parameterless statement over the simple query path,
// outside the prepared-statement cycle and the statement cache.
// Transaction control goes through here: some protocols reject BEGIN and
// SAVEPOINT as prepared statements.
func (c *Conn) Command(ctx context.Context, query string) error {
	if err := c.guard(); err != nil {
		return err
	}
	if err := c.session.Transition(proto.PhaseQuerying); err != nil {
		return err
	}
	err := c.framer.Command(ctx, query)
	if err != nil {
		c.check(err)
		if sqlerr.IsFatal(err) {
			return err
		}
	}
	_ = c.session.Transition(proto.PhaseReady)
	return err
}

// Ping verifies the session is alive.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.check(c.framer.Ping(ctx))
}

// Close terminates the session. Safe to call more than once.
func (c *Conn) Close() error {
	if c.session.Phase() == proto.PhaseClosed && !c.session.Broken() {
		return nil
	}
	c.stmts.drop()
	_ = c.session.Transition(proto.PhaseClosed)
	return c.framer.Close()
}

// deallocate is the statement cache eviction hook.
func (c *Conn) deallocate(stmt *proto.StatementHandle) {
	if !c.framer.Capabilities().ExplicitDeallocate || c.Broken() {
		return
	}
	if err := c.framer.CloseStatement(context.Background(), stmt); err != nil {
		wlog.BgLogger().Warn("deallocate evicted statement",
			zap.String("backend", c.framer.ServerInfo().Backend),
			zap.Error(err))
	}
}

// StmtCacheLen exposes the number of cached statements, for tests and
// stats.
func (c *Conn) StmtCacheLen() int { return c.stmts.len() }
