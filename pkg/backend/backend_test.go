package backend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireql/wireql/pkg/backend"
	"github.com/wireql/wireql/pkg/backend/mem"
	"github.com/wireql/wireql/pkg/config"
	"github.com/wireql/wireql/pkg/proto"
	"github.com/wireql/wireql/pkg/sqlerr"
)

func TestRegister_DuplicateSchemePanics(t *testing.T) {
	backend.Register("backend-test-dup", &mem.Driver{})
	assert.Panics(t, func() {
		backend.Register("backend-test-dup", &mem.Driver{})
	})
}

func TestRegister_NilDriverPanics(t *testing.T) {
	assert.Panics(t, func() {
		backend.Register("backend-test-nil", nil)
	})
}

func TestSchemes_ContainsInTreeDrivers(t *testing.T) {
	schemes := backend.Schemes()
	assert.Contains(t, schemes, "mem")
}

func TestConnect_UnknownScheme(t *testing.T) {
	_, err := backend.Connect(context.Background(), "warpdrive://localhost/db")
	require.Error(t, err)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindConfig))
	assert.Contains(t, err.Error(), "warpdrive")
}

func TestConnect_ByURL(t *testing.T) {
	c, err := backend.Connect(context.Background(), "mem://localhost/test")
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, proto.PhaseReady, c.Phase())
	assert.Equal(t, "mem", c.ServerInfo().Backend)
}

func TestConnect_MalformedURL(t *testing.T) {
	_, err := backend.Connect(context.Background(), "not a url")
	require.Error(t, err)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindConfig))
}

func TestNewPool_ValidatesSchemeUpFront(t *testing.T) {
	_, err := backend.NewPool("warpdrive://localhost/db", config.PoolConfig{})
	require.Error(t, err)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindConfig))
}

func TestNewPool_EndToEnd(t *testing.T) {
	p, err := backend.NewPool("mem://localhost/test", config.PoolConfig{MaxConns: 2})
	require.NoError(t, err)
	require.NoError(t, p.Init())
	t.Cleanup(p.Close)

	l, err := p.Acquire(context.Background())
	require.NoError(t, err)
	affected, err := l.Conn().Exec(context.Background(), "DELETE FROM t", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
	l.Release()
}
