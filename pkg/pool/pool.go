// Package pool manages a bounded set of reusable connections with
// asynchronous acquire, FIFO fairness across waiting callers, idle
// reaping, and health verification.
//
// The idle list and the waiter queue are the only state shared across
// callers. Both live under one mutex that is never held across dialing,
// pinging or any other IO: connections are opened and validated outside
// the lock against reserved slot counts.
package pool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wireql/wireql/pkg/config"
	"github.com/wireql/wireql/pkg/conn"
	"github.com/wireql/wireql/pkg/metrics"
	"github.com/wireql/wireql/pkg/sqlerr"
	"github.com/wireql/wireql/pkg/util/sync2"
	"github.com/wireql/wireql/pkg/wlog"
)

var (
	ErrPoolClosed     = sqlerr.New(sqlerr.KindPoolClosed, "pool is closed")
	ErrAcquireTimeout = sqlerr.New(sqlerr.KindPoolTimeout, "timed out waiting for a connection")
)

const (
	defaultMaxConns       = 10
	defaultAcquireTimeout = 30 * time.Second
)

// Connector opens one fresh connection. The pool calls it whenever it
// needs to grow; failures surface to the acquirer that triggered them.
type Connector func(ctx context.Context) (*conn.Conn, error)

type pooledConn struct {
	conn      *conn.Conn
	idleSince time.Time
}

type waiter struct {
	ready   chan *pooledConn // buffered(1); nil payload means "retry"
	elem    *list.Element    // non-nil while queued, guarded by pool.mu
	retried bool
}

type Pool struct {
	cfg     config.PoolConfig
	connect Connector
	backend string

	mu       sync.Mutex
	released *sync.Cond // signalled whenever leased drops
	idle     []*pooledConn
	waiters  *list.List
	total    int // open connections plus reserved opening slots
	leased   int
	closed   bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a pool over the given connector. backend labels the pool's
// metrics and log lines.
func New(backend string, cfg config.PoolConfig, connect Connector) *Pool {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaultMaxConns
	}
	if cfg.MinConns < 0 {
		cfg.MinConns = 0
	}
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaultAcquireTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = config.DefaultConnectTimeout
	}
	p := &Pool{
		cfg:     cfg,
		connect: connect,
		backend: backend,
		waiters: list.New(),
		done:    make(chan struct{}),
	}
	p.released = sync.NewCond(&p.mu)
	return p
}

// Init pre-opens the configured minimum of connections and starts the
// reaper. A pool is usable without Init; it then grows purely on demand.
func (p *Pool) Init() error {
	if err := p.topUp(); err != nil {
		return err
	}
	p.startReaper()
	return nil
}

// Acquire returns a leased connection. Idle connections are handed out
// first (health-checked when the pool is configured to); a new connection
// is opened while under the maximum; otherwise the caller suspends in
// FIFO order until a release or the acquire timeout, whichever first.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	start := time.Now()
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	lease, err := p.acquire(ctx)
	metrics.PoolAcquireCounter.WithLabelValues(p.backend, metrics.RetLabel(err)).Inc()
	if err == nil {
		metrics.PoolAcquireDurationHistogram.WithLabelValues(p.backend).Observe(time.Since(start).Seconds())
	}
	p.publishGauges()
	return lease, err
}

func (p *Pool) acquire(ctx context.Context) (*Lease, error) {
	retried := false
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		if n := len(p.idle); n > 0 {
			pc := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.leased++
			p.mu.Unlock()
			if !p.validate(ctx, pc) {
				continue
			}
			return &Lease{pool: p, conn: pc.conn}, nil
		}

		if p.total < p.cfg.MaxConns {
			p.total++
			p.leased++
			p.mu.Unlock()
			c, err := p.open(ctx)
			if err != nil {
				p.mu.Lock()
				p.total--
				p.leased--
				p.wakeOneForRetry()
				p.mu.Unlock()
				return nil, err
			}
			return &Lease{pool: p, conn: c}, nil
		}

		w := &waiter{ready: make(chan *pooledConn, 1), retried: retried}
		if retried {
			// A retried waiter keeps its original place in line.
			w.elem = p.waiters.PushFront(w)
		} else {
			w.elem = p.waiters.PushBack(w)
		}
		p.mu.Unlock()

		select {
		case pc := <-w.ready:
			if pc == nil {
				// A slot freed up; go around and try to open.
				retried = true
				continue
			}
			return &Lease{pool: p, conn: pc.conn}, nil

		case <-ctx.Done():
			p.unqueue(w)
			return nil, ErrAcquireTimeout

		case <-p.done:
			p.unqueue(w)
			return nil, ErrPoolClosed
		}
	}
}

// unqueue removes a waiter that stopped waiting. If a connection was
// already handed to it, the connection goes back to the pool.
func (p *Pool) unqueue(w *waiter) {
	p.mu.Lock()
	if w.elem != nil {
		p.waiters.Remove(w.elem)
		w.elem = nil
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	select {
	case pc := <-w.ready:
		if pc != nil {
			p.put(pc.conn)
			return
		}
		// The retry token was meant to let a waiter open a fresh
		// connection; this waiter is gone, so pass it on.
		p.mu.Lock()
		p.wakeOneForRetry()
		p.mu.Unlock()
	default:
	}
}

// open dials a fresh connection against a reserved slot. The slot counts
// are already taken; only the failure path rolls them back (the caller
// does).
func (p *Pool) open(ctx context.Context) (*conn.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()
	c, err := p.connect(dialCtx)
	if err != nil {
		return nil, sqlerr.WithKind(err, sqlerr.KindConnection)
	}
	return c, nil
}

// validate decides whether an idle connection may be handed out. Called
// with the connection already counted as leased; a rejected connection is
// destroyed and the caller retries.
func (p *Pool) validate(ctx context.Context, pc *pooledConn) bool {
	if pc.conn.Broken() {
		p.destroyLeased(pc.conn, metrics.DiscardBroken)
		return false
	}
	if p.expired(pc.conn) {
		p.destroyLeased(pc.conn, metrics.DiscardLifetime)
		return false
	}
	if p.cfg.TestBeforeAcquire {
		if err := pc.conn.Ping(ctx); err != nil {
			wlog.BgLogger().Debug("pool discarding connection that failed health check",
				zap.String("backend", p.backend), zap.Error(err))
			p.destroyLeased(pc.conn, metrics.DiscardBroken)
			return false
		}
	}
	return true
}

func (p *Pool) expired(c *conn.Conn) bool {
	return p.cfg.MaxLifetime > 0 && time.Since(c.CreatedAt()) > p.cfg.MaxLifetime
}

// put returns a leased connection to the pool: straight to the oldest
// waiter when one exists, to the idle list otherwise. Broken, expired and
// in-transaction connections are destroyed instead.
func (p *Pool) put(c *conn.Conn) {
	reason := ""
	switch {
	case c.Broken():
		reason = metrics.DiscardBroken
	case c.InTransaction():
		// Returned mid-transaction: state is unknown to the next caller.
		reason = metrics.DiscardBroken
	case p.expired(c):
		reason = metrics.DiscardLifetime
	}

	p.mu.Lock()
	p.leased--
	if p.closed {
		p.total--
		p.released.Broadcast()
		p.mu.Unlock()
		closeConn(c)
		metrics.PoolDiscardCounter.WithLabelValues(p.backend, metrics.DiscardClosing).Inc()
		p.publishGauges()
		return
	}
	if reason != "" {
		p.total--
		p.wakeOneForRetry()
		p.released.Broadcast()
		p.mu.Unlock()
		closeConn(c)
		metrics.PoolDiscardCounter.WithLabelValues(p.backend, reason).Inc()
		p.publishGauges()
		return
	}
	if w := p.popWaiter(); w != nil {
		p.leased++
		p.mu.Unlock()
		w.ready <- &pooledConn{conn: c}
		p.publishGauges()
		return
	}
	p.idle = append(p.idle, &pooledConn{conn: c, idleSince: time.Now()})
	p.released.Broadcast()
	p.mu.Unlock()
	p.publishGauges()
}

// destroyLeased drops a connection that was counted as leased.
func (p *Pool) destroyLeased(c *conn.Conn, reason string) {
	p.mu.Lock()
	p.leased--
	p.total--
	p.wakeOneForRetry()
	p.released.Broadcast()
	p.mu.Unlock()
	closeConn(c)
	metrics.PoolDiscardCounter.WithLabelValues(p.backend, reason).Inc()
	p.publishGauges()
}

// popWaiter dequeues the longest-waiting acquirer. Caller holds p.mu.
func (p *Pool) popWaiter() *waiter {
	front := p.waiters.Front()
	if front == nil {
		return nil
	}
	w := front.Value.(*waiter)
	p.waiters.Remove(front)
	w.elem = nil
	return w
}

// wakeOneForRetry tells one waiter a slot freed up so it can open a fresh
// connection. Caller holds p.mu.
func (p *Pool) wakeOneForRetry() {
	if w := p.popWaiter(); w != nil {
		w.ready <- nil
	}
}

// Close stops issuing connections, fails all waiters, waits for leased
// connections to come back and closes every idle one.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	for {
		w := p.popWaiter()
		if w == nil {
			break
		}
		// Waiters also select on p.done; clearing the queue just makes
		// sure none is handed a connection from here on.
	}
	idle := p.idle
	p.idle = nil
	p.total -= len(idle)
	for p.leased > 0 {
		p.released.Wait()
	}
	p.mu.Unlock()

	for _, pc := range idle {
		closeConn(pc.conn)
		metrics.PoolDiscardCounter.WithLabelValues(p.backend, metrics.DiscardClosing).Inc()
	}
	p.wg.Wait()
	p.publishGauges()
}

// Stats is a point-in-time snapshot of the pool counters.
type Stats struct {
	Total   int
	Idle    int
	Leased  int
	Waiting int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Total:   p.total,
		Idle:    len(p.idle),
		Leased:  p.leased,
		Waiting: p.waiters.Len(),
	}
}

func (p *Pool) publishGauges() {
	s := p.Stats()
	metrics.PoolIdleGauge.WithLabelValues(p.backend).Set(float64(s.Idle))
	metrics.PoolInUseGauge.WithLabelValues(p.backend).Set(float64(s.Leased))
	metrics.PoolWaitingGauge.WithLabelValues(p.backend).Set(float64(s.Waiting))
}

func closeConn(c *conn.Conn) {
	if err := c.Close(); err != nil {
		wlog.BgLogger().Debug("close pooled connection", zap.Error(err))
	}
}

// Lease is exclusive ownership of one pooled connection. Exactly one of
// Release or Discard returns ownership; both are idempotent together.
type Lease struct {
	pool *Pool
	conn *conn.Conn
	done sync2.AtomicBool
}

func (l *Lease) Conn() *conn.Conn { return l.conn }

// Release returns the connection to the pool. Broken or expired
// connections are destroyed rather than pooled.
func (l *Lease) Release() {
	if !l.done.CompareAndSwap(false, true) {
		return
	}
	l.pool.put(l.conn)
}

// Discard closes the connection instead of returning it, freeing its pool
// slot.
func (l *Lease) Discard() {
	if !l.done.CompareAndSwap(false, true) {
		return
	}
	l.pool.destroyLeased(l.conn, metrics.DiscardBroken)
}
