package sqlerr

import (
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_InnermostWins(t *testing.T) {
	inner := New(KindQuery, "syntax error near FROM")
	outer := WithKind(errors.Annotate(inner, "execute failed"), KindConnection)

	assert.Equal(t, KindQuery, KindOf(outer))
	assert.True(t, IsKind(outer, KindQuery))
	assert.False(t, IsKind(outer, KindConnection))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOf_WalksAnnotations(t *testing.T) {
	err := errors.Annotate(New(KindPoolTimeout, "waited too long"), "acquire")
	assert.Equal(t, KindPoolTimeout, KindOf(err))
}

func TestWithKind_NilPassthrough(t *testing.T) {
	assert.NoError(t, WithKind(nil, KindConnection))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(KindConnection, "reset by peer")))
	assert.True(t, IsFatal(New(KindAuth, "denied")))
	assert.True(t, IsFatal(New(KindProtocol, "garbage frame")))

	assert.False(t, IsFatal(New(KindQuery, "bad statement")))
	assert.False(t, IsFatal(New(KindTypeMismatch, "int for text")))
	assert.False(t, IsFatal(New(KindPoolTimeout, "timeout")))
	assert.False(t, IsFatal(New(KindPoolClosed, "closed")))
	assert.False(t, IsFatal(New(KindConfig, "bad url")))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestServerError(t *testing.T) {
	err := NewServerError(1064, "42000", "You have an error in your SQL syntax")
	assert.Equal(t, KindQuery, KindOf(err))
	assert.False(t, IsFatal(err))

	se, ok := AsServerError(errors.Annotate(err, "run query"))
	require.True(t, ok)
	assert.Equal(t, uint32(1064), se.Code)
	assert.Equal(t, "42000", se.SQLState)
	assert.Contains(t, se.Message, "SQL syntax")

	_, ok = AsServerError(New(KindQuery, "not structured"))
	assert.False(t, ok)
}

func TestErrorMessageCarriesKind(t *testing.T) {
	err := New(KindPoolTimeout, "no connection in 30s")
	assert.Contains(t, err.Error(), "pool timeout")
	assert.Contains(t, err.Error(), "no connection in 30s")
}
