package conn

import (
	"github.com/wireql/wireql/pkg/proto"
	"github.com/wireql/wireql/pkg/util/lru"
)

// stmtCache is the per-connection prepared statement cache, keyed by the
// exact query text. Statements are not portable across connections, so
// the cache lives and dies with its connection. Capacity zero disables
// caching entirely: nothing is stored and nothing is evicted, the
// connection deallocates each statement once its response is finished.
type stmtCache struct {
	cache    *lru.Cache
	disabled bool
}

func newStmtCache(capacity int, onEvict func(*proto.StatementHandle)) *stmtCache {
	return &stmtCache{
		disabled: capacity <= 0,
		cache: lru.New(capacity, func(_ string, value interface{}) {
			if onEvict != nil {
				onEvict(value.(*proto.StatementHandle))
			}
		}),
	}
}

func (s *stmtCache) get(query string) (*proto.StatementHandle, bool) {
	v, ok := s.cache.Get(query)
	if !ok {
		return nil, false
	}
	return v.(*proto.StatementHandle), true
}

func (s *stmtCache) put(query string, stmt *proto.StatementHandle) {
	if s.disabled {
		return
	}
	s.cache.Put(query, stmt)
}

func (s *stmtCache) len() int { return s.cache.Len() }

// drop empties the cache without deallocating: used on connection close,
// when the server-side statements die with the session anyway.
func (s *stmtCache) drop() {
	s.cache = lru.New(0, nil)
}
