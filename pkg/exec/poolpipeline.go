package exec

import (
	"context"

	"github.com/wireql/wireql/pkg/codec"
	"github.com/wireql/wireql/pkg/describe"
	"github.com/wireql/wireql/pkg/pool"
)

// describeCacheCapacity bounds the per-pipeline describe cache. Describe
// results are metadata only; a few hundred distinct query shapes cover any
// realistic workload.
const describeCacheCapacity = 256

// PoolPipeline executes each call on a connection acquired from the pool
// for just that call, returning it protocol-clean afterwards.
type PoolPipeline struct {
	pool      *pool.Pool
	describes *describe.Cache
}

func NewPoolPipeline(p *pool.Pool) *PoolPipeline {
	return &PoolPipeline{
		pool:      p,
		describes: describe.NewCache(describeCacheCapacity),
	}
}

// Fetch acquires a connection and streams the query's rows. The lease is
// held until the stream ends or is closed; closing the stream releases
// the connection back to the pool.
func (p *PoolPipeline) Fetch(ctx context.Context, query string, params ...codec.Value) (*Rows, error) {
	lease, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := New(lease.Conn()).Fetch(ctx, query, params...)
	if err != nil {
		lease.Release()
		return nil, err
	}
	rows.afterClose = lease.Release
	return rows, nil
}

// Execute acquires a connection for the duration of one statement.
func (p *PoolPipeline) Execute(ctx context.Context, query string, params ...codec.Value) (int64, error) {
	lease, err := p.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer lease.Release()
	return New(lease.Conn()).Execute(ctx, query, params...)
}

// Describe acquires a connection for the duration of one describe.
// Results are cached per query text: a repeat describe never touches the
// pool.
func (p *PoolPipeline) Describe(ctx context.Context, query string) (describe.Result, error) {
	if r, ok := p.describes.Get(query); ok {
		return r, nil
	}
	lease, err := p.pool.Acquire(ctx)
	if err != nil {
		return describe.Result{}, err
	}
	defer lease.Release()
	r, err := New(lease.Conn()).Describe(ctx, query)
	if err != nil {
		return describe.Result{}, err
	}
	p.describes.Put(query, r)
	return r, nil
}
