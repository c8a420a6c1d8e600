package packet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopHandler() Handler {
	return HandlerFunc(func(Conn, []byte) (any, error) { return nil, nil })
}

func TestBuilderRequiresEverySlot(t *testing.T) {
	_, err := NewBuilder().
		Command(TOSERVER_INIT, "TOSERVER_INIT", Requires(StateNotConnected), nopHandler()).
		Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnassignedOpcode))
}

func TestBuilderRejectsDuplicates(t *testing.T) {
	_, err := NewBuilder().
		NullRange(0, NumToServer-1).
		Command(TOSERVER_INIT, "TOSERVER_INIT", Requires(StateNotConnected), nopHandler()).
		Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateOpcode))
}

func TestBuilderRejectsOutOfRangeAndNilHandler(t *testing.T) {
	_, err := NewBuilder().
		NullRange(0, NumToServer-2).
		Command(NumToServer, "BEYOND", Any, nopHandler()).
		Command(NumToServer-1, "NIL", Any, nil).
		Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOpcodeRange))
	assert.True(t, errors.Is(err, ErrNilHandler))
	assert.True(t, errors.Is(err, ErrUnassignedOpcode), "slot with nil handler stays unassigned")
}

func TestRegistryLookupIsTotal(t *testing.T) {
	reg, err := NewBuilder().
		NullRange(0, TOSERVER_INIT-1).
		Command(TOSERVER_INIT, "TOSERVER_INIT", Requires(StateNotConnected), nopHandler()).
		Deprecated(TOSERVER_INIT2, "TOSERVER_INIT2", Requires(StateNotConnected)).
		NullRange(TOSERVER_INIT2+1, NumToServer-1).
		Build()
	require.NoError(t, err)
	require.Equal(t, NumToServer, reg.Len())

	for i := 0; i < reg.Len(); i++ {
		op := Opcode(i)
		require.True(t, reg.Valid(op))
		d := reg.Lookup(op)
		require.NotNil(t, d.Handler, "slot %s", op)
		switch op {
		case TOSERVER_INIT:
			assert.False(t, d.IsNull())
			assert.Equal(t, "TOSERVER_INIT", d.Name)
		case TOSERVER_INIT2:
			assert.True(t, d.Deprecated)
			assert.Equal(t, DeprecatedStub, d.Handler)
		default:
			assert.True(t, d.IsNull(), "slot %s", op)
			assert.Equal(t, "TOSERVER_NULL", d.Name)
			assert.True(t, d.Requires.IsAny())
		}
	}
	assert.False(t, reg.Valid(NumToServer))
	assert.False(t, reg.Valid(0xFFFF))
}

func TestRegistryRangeVisitsAllSlotsInOrder(t *testing.T) {
	reg, err := NewBuilder().NullRange(0, NumToServer-1).Build()
	require.NoError(t, err)

	var seen []Opcode
	reg.Range(func(op Opcode, _ Descriptor) { seen = append(seen, op) })
	require.Len(t, seen, NumToServer)
	for i, op := range seen {
		assert.Equal(t, Opcode(i), op)
	}
}
