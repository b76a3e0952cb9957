package sqlite

import (
	"context"

	"github.com/wireql/wireql/pkg/sqlerr"
	"github.com/wireql/wireql/pkg/util/sync2"
)

// worker serializes every touch of the sqlite connection onto one
// goroutine. The C handle is not safe for concurrent use, and pinning it
// to a single goroutine also keeps thread-local sqlite state coherent.
type worker struct {
	calls   chan func()
	done    chan struct{}
	stopped sync2.AtomicBool
}

func newWorker() *worker {
	w := &worker{
		calls: make(chan func()),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *worker) loop() {
	defer close(w.done)
	for fn := range w.calls {
		fn()
	}
}

// do runs fn on the worker goroutine and waits for it to finish. The
// context only guards the submit: once fn is running it runs to
// completion, since abandoning a call mid-flight would leave the handle
// in an unknown state.
func (w *worker) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	select {
	case w.calls <- func() { fn(); close(ran) }:
	case <-ctx.Done():
		return sqlerr.WithKind(ctx.Err(), sqlerr.KindConnection)
	case <-w.done:
		return sqlerr.New(sqlerr.KindConnection, "sqlite worker is stopped")
	}
	<-ran
	return nil
}

// stop shuts the worker down and waits for the loop to drain. Safe to
// call more than once.
func (w *worker) stop() {
	if !w.stopped.CompareAndSwap(false, true) {
		<-w.done
		return
	}
	close(w.calls)
	<-w.done
}
