package registry

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func incrementStep(by int) protocol.StepFunc {
	return func(_ context.Context, state models.DataState) (models.DataState, error) {
		state.Iteration += by

		return state, nil
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.RegisterFunc("double", incrementStep(1))

	step, err := reg.Lookup("double")
	require.NoError(t, err)

	state, err := step.Apply(context.Background(), models.DataState{})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Iteration)
}

func TestRegistry_Lookup_UnknownNode(t *testing.T) {
	reg := NewRegistry(testLogger())

	_, err := reg.Lookup("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownNode)
	assert.Contains(t, err.Error(), "missing")
}

func TestRegistry_Register_LastWins(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.RegisterFunc("double", incrementStep(1))
	reg.RegisterFunc("double", incrementStep(10))

	step, err := reg.Lookup("double")
	require.NoError(t, err)

	state, err := step.Apply(context.Background(), models.DataState{})
	require.NoError(t, err)
	assert.Equal(t, 10, state.Iteration)
}

func TestRegistry_List_Sorted(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.RegisterFunc("b", incrementStep(1))
	reg.RegisterFunc("a", incrementStep(1))
	reg.RegisterFunc("c", incrementStep(1))

	assert.Equal(t, []string{"a", "b", "c"}, reg.List())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.RegisterFunc("double", incrementStep(1))

	done := make(chan struct{})

	go func() {
		defer close(done)

		for i := 0; i < 100; i++ {
			reg.RegisterFunc("double", incrementStep(i))
		}
	}()

	for i := 0; i < 100; i++ {
		_, err := reg.Lookup("double")
		require.NoError(t, err)
	}

	<-done
}
