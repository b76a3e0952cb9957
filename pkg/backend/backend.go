// Package backend is the plug-in point for database protocols. A backend
// module provides a Driver that builds proto.Framer instances plus a wire
// type table for the codec registry; it registers itself under its URL
// scheme, usually from an init function, the way database/sql drivers do.
//
// The postgres-family and tabular-stream backends live in external
// modules; in-tree drivers cover the mysql-family protocol, the embedded
// sqlite engine, and the scripted in-process backend used by tests.
package backend

import (
	"context"
	"sort"
	"sync"

	"github.com/wireql/wireql/pkg/config"
	"github.com/wireql/wireql/pkg/conn"
	"github.com/wireql/wireql/pkg/pool"
	"github.com/wireql/wireql/pkg/proto"
	"github.com/wireql/wireql/pkg/sqlerr"
)

// Driver builds one framer per connection. Open must not touch the
// network: dialing happens later, inside Framer.Connect, under the
// connect timeout.
type Driver interface {
	Open(ctx context.Context, opts *config.Options) (proto.Framer, error)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under the given URL scheme. It
// panics when called twice for one scheme or with a nil driver.
func Register(scheme string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if d == nil {
		panic("backend: Register driver is nil")
	}
	if _, dup := drivers[scheme]; dup {
		panic("backend: Register called twice for scheme " + scheme)
	}
	drivers[scheme] = d
}

// Schemes lists the registered backend schemes, sorted.
func Schemes() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	out := make([]string, 0, len(drivers))
	for scheme := range drivers {
		out = append(out, scheme)
	}
	sort.Strings(out)
	return out
}

func lookup(scheme string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[scheme]
	if !ok {
		return nil, sqlerr.Newf(sqlerr.KindConfig, "unknown backend scheme %q (registered: %v)", scheme, Schemes())
	}
	return d, nil
}

// Connect opens one connection described by a connection URL.
func Connect(ctx context.Context, url string) (*conn.Conn, error) {
	opts, err := config.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return ConnectOptions(ctx, opts)
}

// ConnectOptions opens one connection from already parsed options.
func ConnectOptions(ctx context.Context, opts *config.Options) (*conn.Conn, error) {
	d, err := lookup(opts.Scheme)
	if err != nil {
		return nil, err
	}
	framer, err := d.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	return conn.Connect(dialCtx, framer, opts)
}

// NewPool builds a pool whose connector opens connections for the given
// URL. The pool is returned uninitialized; call Init to pre-open the
// configured minimum.
func NewPool(url string, cfg config.PoolConfig) (*pool.Pool, error) {
	opts, err := config.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if _, err := lookup(opts.Scheme); err != nil {
		return nil, err
	}
	connector := func(ctx context.Context) (*conn.Conn, error) {
		return ConnectOptions(ctx, opts)
	}
	return pool.New(opts.Scheme, cfg, connector), nil
}
