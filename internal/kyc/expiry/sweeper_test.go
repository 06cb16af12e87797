package expiry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwagate/internal/platform/logger"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (c *countingExpirer) ExpireDue(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestSweeper_Run(t *testing.T) {
	t.Run("sweeps immediately and on every tick until cancelled", func(t *testing.T) {
		exp := &countingExpirer{}
		s, err := New(exp, WithInterval(5*time.Millisecond), WithLogger(logger.Discard()))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
		defer cancel()
		err = s.Run(ctx)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.GreaterOrEqual(t, exp.calls.Load(), int32(2))
	})

	t.Run("sweep errors do not stop the loop", func(t *testing.T) {
		exp := &countingExpirer{err: errors.New("store down")}
		s, err := New(exp, WithInterval(5*time.Millisecond), WithLogger(logger.Discard()))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_ = s.Run(ctx)
		assert.GreaterOrEqual(t, exp.calls.Load(), int32(2))
	})

	t.Run("nil expirer", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})
}
