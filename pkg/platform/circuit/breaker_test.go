package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fail(b *Breaker, n int) {
	for range n {
		b.RecordFailure()
	}
}

func succeed(b *Breaker, n int) {
	for range n {
		b.RecordSuccess()
	}
}

func TestNewBreakerIsClosed(t *testing.T) {
	b := New("identity-registry")
	assert.Equal(t, "identity-registry", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}

func TestOpening(t *testing.T) {
	t.Run("opens on the threshold failure and reports it once", func(t *testing.T) {
		b := New("registry", WithFailureThreshold(3))
		fail(b, 2)
		require.False(t, b.IsOpen())

		useFallback, change := b.RecordFailure()
		assert.True(t, useFallback)
		assert.True(t, change.Opened)
		assert.Equal(t, "open", b.State().String())

		useFallback, change = b.RecordFailure()
		assert.True(t, useFallback)
		assert.False(t, change.Opened)
	})

	t.Run("failures must be consecutive", func(t *testing.T) {
		b := New("registry", WithFailureThreshold(3))
		fail(b, 2)
		succeed(b, 1)
		fail(b, 2)
		assert.False(t, b.IsOpen())
		fail(b, 1)
		assert.True(t, b.IsOpen())
	})

	t.Run("non-positive thresholds keep the defaults", func(t *testing.T) {
		b := New("registry", WithFailureThreshold(0), WithSuccessThreshold(-1))
		fail(b, 4)
		assert.False(t, b.IsOpen())
		fail(b, 1)
		assert.True(t, b.IsOpen())
	})
}

func TestClosing(t *testing.T) {
	t.Run("answers are not trusted until enough successes", func(t *testing.T) {
		b := New("registry", WithFailureThreshold(1), WithSuccessThreshold(2))
		fail(b, 1)

		usePrimary, change := b.RecordSuccess()
		assert.False(t, usePrimary)
		assert.False(t, change.Closed)

		usePrimary, change = b.RecordSuccess()
		assert.True(t, usePrimary)
		assert.True(t, change.Closed)
		assert.False(t, b.IsOpen())
	})

	t.Run("a failure while open restarts the success count", func(t *testing.T) {
		b := New("registry", WithFailureThreshold(1), WithSuccessThreshold(3))
		fail(b, 1)
		succeed(b, 2)
		fail(b, 1)
		succeed(b, 2)
		assert.True(t, b.IsOpen())
		succeed(b, 1)
		assert.False(t, b.IsOpen())
	})

	t.Run("reset closes immediately", func(t *testing.T) {
		b := New("registry", WithFailureThreshold(1))
		fail(b, 1)
		b.Reset()
		assert.Equal(t, StateClosed, b.State())
		usePrimary, _ := b.RecordSuccess()
		assert.True(t, usePrimary)
	})
}
