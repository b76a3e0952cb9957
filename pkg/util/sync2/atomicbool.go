package sync2

import "sync/atomic"

// AtomicBool gives an atomic boolean with CAS semantics.
type AtomicBool struct {
	val int32
}

func (b *AtomicBool) Get() bool {
	return atomic.LoadInt32(&b.val) != 0
}

func (b *AtomicBool) Set(v bool) {
	if v {
		atomic.StoreInt32(&b.val, 1)
	} else {
		atomic.StoreInt32(&b.val, 0)
	}
}

// CompareAndSwap sets the value to new iff it currently equals old, and
// reports whether the swap happened.
func (b *AtomicBool) CompareAndSwap(old, new bool) bool {
	var o, n int32
	if old {
		o = 1
	}
	if new {
		n = 1
	}
	return atomic.CompareAndSwapInt32(&b.val, o, n)
}
