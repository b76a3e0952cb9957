package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireql/wireql/pkg/sqlerr"
)

func TestSession_LegalCycle(t *testing.T) {
	s := NewSession()
	assert.Equal(t, PhaseConnecting, s.Phase())

	require.NoError(t, s.Transition(PhaseAuthenticating))
	require.NoError(t, s.Transition(PhaseReady))
	require.NoError(t, s.Transition(PhaseQuerying))
	require.NoError(t, s.Transition(PhaseReady))
	require.NoError(t, s.Transition(PhaseQuerying))
	require.NoError(t, s.Transition(PhaseReady))
	require.NoError(t, s.Transition(PhaseClosed))
	assert.False(t, s.Broken())
}

func TestSession_IllegalTransitionLatches(t *testing.T) {
	s := NewSession()
	err := s.Transition(PhaseQuerying)
	require.Error(t, err)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindProtocol))

	assert.Equal(t, PhaseClosed, s.Phase())
	assert.True(t, s.Broken())
	assert.Equal(t, err, s.Fatal())
}

func TestSession_ClosedIsTerminal(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Transition(PhaseClosed))

	err := s.Transition(PhaseAuthenticating)
	require.Error(t, err)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindProtocol))
	assert.Equal(t, PhaseClosed, s.Phase())
}

func TestSession_LatchKeepsFirstError(t *testing.T) {
	s := NewSession()
	first := sqlerr.New(sqlerr.KindConnection, "broken pipe")
	second := sqlerr.New(sqlerr.KindProtocol, "later")

	s.Latch(first)
	s.Latch(second)

	assert.Equal(t, first, s.Fatal())
	assert.Equal(t, PhaseClosed, s.Phase())
}

func TestSession_CloseReachableFromEveryPhase(t *testing.T) {
	for _, phase := range []Phase{PhaseConnecting, PhaseAuthenticating, PhaseReady, PhaseQuerying} {
		s := NewSession()
		switch phase {
		case PhaseAuthenticating:
			require.NoError(t, s.Transition(PhaseAuthenticating))
		case PhaseReady:
			require.NoError(t, s.Transition(PhaseAuthenticating))
			require.NoError(t, s.Transition(PhaseReady))
		case PhaseQuerying:
			require.NoError(t, s.Transition(PhaseAuthenticating))
			require.NoError(t, s.Transition(PhaseReady))
			require.NoError(t, s.Transition(PhaseQuerying))
		}
		assert.NoError(t, s.Transition(PhaseClosed), "from %s", phase)
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "ready", PhaseReady.String())
	assert.Equal(t, "querying", PhaseQuerying.String())
	assert.Equal(t, "invalid", Phase(42).String())
}
