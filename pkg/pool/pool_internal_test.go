package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wireql/wireql/pkg/config"
)

// A waiter can receive its retry token in the same instant it gives up
// waiting. The token must travel on to the next queued waiter, or that
// waiter stalls until its own timeout with a free slot available.
func TestUnqueue_PassesRetryTokenToNextWaiter(t *testing.T) {
	p := New("mem", config.PoolConfig{MaxConns: 1}, nil)

	gone := &waiter{ready: make(chan *pooledConn, 1)}
	gone.ready <- nil

	next := &waiter{ready: make(chan *pooledConn, 1)}
	p.mu.Lock()
	next.elem = p.waiters.PushBack(next)
	p.mu.Unlock()

	p.unqueue(gone)

	select {
	case pc := <-next.ready:
		assert.Nil(t, pc)
	default:
		t.Fatal("retry token was dropped instead of handed on")
	}
	assert.Equal(t, 0, p.Stats().Waiting)
}
