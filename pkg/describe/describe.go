// Package describe models the metadata produced by describing a query
// without executing it: the ordered output column types and the ordered
// input parameter types. Results are immutable once produced and can be
// persisted for offline replay.
package describe

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/wireql/wireql/pkg/codec"
	"github.com/wireql/wireql/pkg/proto"
)

// Result is one query's describe metadata. Column and parameter order is
// significant and preserved exactly.
type Result struct {
	Columns []codec.TypeInfo `json:"columns"`
	Params  []codec.TypeInfo `json:"parameters"`
}

// FromStatement snapshots a prepared statement's metadata. The slices are
// copied: the handle may be evicted and deallocated later.
func FromStatement(stmt *proto.StatementHandle) Result {
	r := Result{
		Columns: make([]codec.TypeInfo, len(stmt.Columns)),
		Params:  make([]codec.TypeInfo, len(stmt.Params)),
	}
	copy(r.Columns, stmt.Columns)
	copy(r.Params, stmt.Params)
	return r
}

// QueryHash content-addresses the exact query text. Any whitespace or
// parameter-order change produces a different hash, deliberately
// invalidating cached metadata.
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}
