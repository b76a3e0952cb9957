package pool

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wireql/wireql/pkg/conn"
	"github.com/wireql/wireql/pkg/metrics"
	"github.com/wireql/wireql/pkg/wlog"
)

const (
	minReapInterval     = 100 * time.Millisecond
	maxReapInterval     = 30 * time.Second
	defaultReapInterval = 15 * time.Second
)

func (p *Pool) reapInterval() time.Duration {
	interval := defaultReapInterval
	if p.cfg.IdleTimeout > 0 {
		interval = p.cfg.IdleTimeout / 2
	}
	if p.cfg.MaxLifetime > 0 && p.cfg.MaxLifetime/2 < interval {
		interval = p.cfg.MaxLifetime / 2
	}
	if interval < minReapInterval {
		interval = minReapInterval
	}
	if interval > maxReapInterval {
		interval = maxReapInterval
	}
	return interval
}

func (p *Pool) startReaper() {
	if p.cfg.IdleTimeout <= 0 && p.cfg.MaxLifetime <= 0 && p.cfg.MinConns <= 0 {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.reapInterval())
		defer ticker.Stop()
		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
				p.reapOnce()
				if err := p.topUp(); err != nil {
					wlog.BgLogger().Warn("pool top-up failed",
						zap.String("backend", p.backend), zap.Error(err))
				}
			}
		}
	}()
}

// reapOnce closes idle connections that sat unused past the idle timeout
// or outlived the lifetime limit.
func (p *Pool) reapOnce() {
	now := time.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	var drop []*pooledConn
	keep := p.idle[:0]
	for _, pc := range p.idle {
		switch {
		case p.cfg.IdleTimeout > 0 && now.Sub(pc.idleSince) > p.cfg.IdleTimeout:
			drop = append(drop, pc)
			metrics.PoolDiscardCounter.WithLabelValues(p.backend, metrics.DiscardIdle).Inc()
		case p.expired(pc.conn):
			drop = append(drop, pc)
			metrics.PoolDiscardCounter.WithLabelValues(p.backend, metrics.DiscardLifetime).Inc()
		default:
			keep = append(keep, pc)
		}
	}
	p.idle = keep
	p.total -= len(drop)
	p.mu.Unlock()

	for _, pc := range drop {
		closeConn(pc.conn)
	}
	if len(drop) > 0 {
		p.publishGauges()
	}
}

// topUp opens connections until the pool holds the configured minimum.
func (p *Pool) topUp() error {
	for {
		p.mu.Lock()
		if p.closed || p.total >= p.cfg.MinConns {
			p.mu.Unlock()
			return nil
		}
		p.total++
		p.mu.Unlock()

		c, err := p.open(context.Background())
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return err
		}
		p.park(c)
	}
}

// park places a fresh, unleased connection into the pool: to the oldest
// waiter when one exists, to the idle list otherwise.
func (p *Pool) park(c *conn.Conn) {
	p.mu.Lock()
	if p.closed {
		p.total--
		p.mu.Unlock()
		closeConn(c)
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
	p.mu.Unlock()
	p.publishGauges()
}
