package services_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/services"
	"github.com/MegaGrindStone/chat-widget/internal/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGenerate(t *testing.T) {
	m, err := services.NewMock(services.WithMockDelay(time.Millisecond))
	require.NoError(t, err)

	for range 20 {
		reply, err := m.Generate(context.Background(), "hello")
		require.NoError(t, err)
		assert.Contains(t, services.DefaultMockResponses, reply)
	}
}

func TestMockSeedIsDeterministic(t *testing.T) {
	replies := func() []string {
		m, err := services.NewMock(services.WithMockDelay(0), services.WithMockSeed(42))
		require.NoError(t, err)

		var out []string
		for range 10 {
			reply, err := m.Generate(context.Background(), "")
			require.NoError(t, err)
			out = append(out, reply)
		}
		return out
	}

	assert.Equal(t, replies(), replies())
}

func TestMockWaitsForDelay(t *testing.T) {
	m, err := services.NewMock(services.WithMockDelay(30 * time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = m.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestMockCustomResponses(t *testing.T) {
	m, err := services.NewMock(services.WithMockDelay(0), services.WithMockResponses("only"))
	require.NoError(t, err)

	reply, err := m.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "only", reply)
}

func TestMockNeedsResponses(t *testing.T) {
	_, err := services.NewMock(services.WithMockResponses())
	assert.Error(t, err)
}

func TestMockFailure(t *testing.T) {
	cause := errors.New("simulated outage")
	m, err := services.NewMock(services.WithMockDelay(0), services.WithMockFailure(cause))
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), "hello")

	var netErr *widget.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "mock", netErr.Provider)
	assert.ErrorIs(t, err, cause)
}

func TestMockCanceled(t *testing.T) {
	m, err := services.NewMock(services.WithMockDelay(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.Generate(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultMockResponses(t *testing.T) {
	assert.Len(t, services.DefaultMockResponses, 4)
	for _, r := range services.DefaultMockResponses {
		assert.NotEmpty(t, r)
	}
}

func TestMockOwnsItsResponses(t *testing.T) {
	responses := []string{"first"}
	m, err := services.NewMock(services.WithMockDelay(0), services.WithMockResponses(responses...))
	require.NoError(t, err)

	responses[0] = "changed"

	reply, err := m.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "first", reply)
}

func TestMockDoesNotShareDefaults(t *testing.T) {
	saved := slices.Clone(services.DefaultMockResponses)
	t.Cleanup(func() { copy(services.DefaultMockResponses, saved) })

	m, err := services.NewMock(services.WithMockDelay(0), services.WithMockSeed(1))
	require.NoError(t, err)

	for i := range services.DefaultMockResponses {
		services.DefaultMockResponses[i] = "changed"
	}

	for range 10 {
		reply, err := m.Generate(context.Background(), "hello")
		require.NoError(t, err)
		assert.Contains(t, saved, reply)
	}
}
