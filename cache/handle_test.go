package cache

import (
	"context"
	"testing"

	"github.com/iov-one/idgov/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	value int
}

func TestHandleUpdate(t *testing.T) {
	cases := map[string]struct {
		fn        func(context.Context, *counter) error
		cancel    bool
		wantErr   *errors.Error
		wantStale bool
	}{
		"success": {
			fn: func(_ context.Context, c *counter) error {
				c.value++
				return nil
			},
		},
		"failed unit": {
			fn: func(_ context.Context, c *counter) error {
				c.value++
				return errors.ErrTransactionExecution.New("aborted")
			},
			wantErr:   errors.ErrTransactionExecution,
			wantStale: true,
		},
		"cancelled unit": {
			fn: func(_ context.Context, c *counter) error {
				c.value++
				return nil
			},
			cancel:    true,
			wantStale: true,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			loads := 0
			h := NewHandle(&counter{value: 1}, func(context.Context) (*counter, error) {
				loads++
				return &counter{value: 10}, nil
			})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tc.cancel {
				cancel()
			}

			err := h.Update(ctx, tc.fn)
			if tc.wantErr != nil {
				require.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)
			} else if !tc.cancel {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantStale, h.Stale())

			var got int
			require.NoError(t, h.Read(context.Background(), func(c *counter) error {
				got = c.value
				return nil
			}))
			if tc.wantStale {
				assert.Equal(t, 1, loads)
				assert.Equal(t, 10, got)
			} else {
				assert.Equal(t, 0, loads)
				assert.Equal(t, 2, got)
			}
			assert.False(t, h.Stale())
		})
	}
}

func TestHandleBusy(t *testing.T) {
	h := NewHandle(&counter{}, nil)
	ctx := context.Background()

	err := h.Read(ctx, func(*counter) error {
		err := h.Update(ctx, func(context.Context, *counter) error { return nil })
		assert.True(t, errors.ErrBusy.Is(err))
		// Shared access is allowed.
		return h.Read(ctx, func(*counter) error { return nil })
	})
	require.NoError(t, err)

	err = h.Update(ctx, func(context.Context, *counter) error {
		return h.Read(ctx, func(*counter) error { return nil })
	})
	assert.True(t, errors.ErrBusy.Is(err))
	assert.True(t, h.Stale())

	// Without a loader a stale handle cannot be used anymore.
	err = h.Read(ctx, func(*counter) error { return nil })
	assert.True(t, errors.ErrState.Is(err))
}

func TestHandleReloadFailure(t *testing.T) {
	h := NewHandle(&counter{}, func(context.Context) (*counter, error) {
		return nil, errors.ErrRpc.New("unreachable")
	})
	h.Invalidate()

	called := false
	err := h.Update(context.Background(), func(context.Context, *counter) error {
		called = true
		return nil
	})
	assert.True(t, errors.ErrRpc.Is(err))
	assert.False(t, called)
	assert.True(t, h.Stale())
}
