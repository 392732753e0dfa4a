package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ledgerq/engine"
	"github.com/hupe1980/ledgerq/filter"
	"github.com/hupe1980/ledgerq/internal/server"
	"github.com/hupe1980/ledgerq/model"
	"github.com/hupe1980/ledgerq/retry"
	"github.com/hupe1980/ledgerq/testutil"
)

func newNode(t *testing.T) (*Client, *engine.Engine) {
	t.Helper()
	e, err := engine.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	srv := httptest.NewServer(server.New(e).Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL), e
}

func fastRetry() []retry.Option {
	return []retry.Option{retry.WithTimeout(5 * time.Second), retry.WithInterval(10 * time.Millisecond)}
}

func TestRegisteredAccountScenarios(t *testing.T) {
	c, _ := newNode(t)
	ctx := context.Background()

	// Registrations land after the waits start.
	go func() {
		time.Sleep(50 * time.Millisecond)
		for _, id := range []string{"alice@wonderland", "bob@wonderland", "alice@looking_glass"} {
			_, _ = c.Register(ctx, model.MustParseAccountID(id), nil)
		}
	}()

	t.Run("FilterByDomain", func(t *testing.T) {
		ids, err := c.WaitForFilter(ctx, filter.EndsWith{Suffix: "@wonderland"}, func(ids []model.AccountID) bool {
			return len(ids) == 2
		}, fastRetry()...)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice@wonderland", "bob@wonderland"}, testutil.Strings(ids))
	})

	t.Run("FilterByAccountName", func(t *testing.T) {
		ids, err := c.WaitForFilter(ctx, filter.StartsWith{Prefix: "alice@"}, func(ids []model.AccountID) bool {
			return len(ids) == 2
		}, fastRetry()...)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice@looking_glass", "alice@wonderland"}, testutil.Strings(ids))
	})

	t.Run("FilterByAccountID", func(t *testing.T) {
		ids, err := c.WaitForFilter(ctx, filter.Is{ID: "alice@wonderland"}, func(ids []model.AccountID) bool {
			return len(ids) == 1
		}, fastRetry()...)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice@wonderland"}, testutil.Strings(ids))
	})
}

func TestWaitForFilter_Timeout(t *testing.T) {
	c, _ := newNode(t)
	_, err := c.WaitForFilter(context.Background(), filter.Is{ID: "ghost@nowhere"}, func(ids []model.AccountID) bool {
		return len(ids) > 0
	}, retry.WithTimeout(100*time.Millisecond), retry.WithInterval(10*time.Millisecond))
	assert.ErrorIs(t, err, retry.ErrTimeout)
}

func TestWaitForFilter_MalformedIsNotRetried(t *testing.T) {
	c, _ := newNode(t)
	_, err := c.WaitForFilter(context.Background(), filter.And{}, func([]model.AccountID) bool { return true }, fastRetry()...)
	assert.ErrorIs(t, err, filter.ErrMalformedFilter)
}

func TestWaitForFilter_RetriesUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"Recovering", http.StatusServiceUnavailable, `{"error":"unavailable","message":"recovery in progress"}`},
		{"Busy", http.StatusTooManyRequests, `{"error":"busy","message":"too many concurrent queries"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(tt.body))
					return
				}
				_, _ = w.Write([]byte(`{"accounts":["alice@wonderland"],"lsn":1}`))
			}))
			defer srv.Close()

			ids, err := New(srv.URL).WaitForFilter(context.Background(), filter.Is{ID: "alice@wonderland"}, func(ids []model.AccountID) bool {
				return len(ids) == 1
			}, fastRetry()...)
			require.NoError(t, err)
			assert.Len(t, ids, 1)
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestWaitForFilter_StopsOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"malformed_filter","message":"unknown variant"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).WaitForFilter(context.Background(), filter.Is{ID: "alice@wonderland"}, func([]model.AccountID) bool {
		return true
	}, fastRetry()...)
	require.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, int32(1), calls.Load())
}

func TestErrorMapping(t *testing.T) {
	c, _ := newNode(t)
	ctx := context.Background()
	alice := model.MustParseAccountID("alice@wonderland")

	rec, err := c.Register(ctx, alice, map[string]string{"tier": "gold"})
	require.NoError(t, err)
	assert.Equal(t, alice, rec.ID)

	_, err = c.Register(ctx, alice, nil)
	assert.ErrorIs(t, err, ErrConflict)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "duplicate_id", apiErr.Code)

	got, err := c.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "gold", got.Metadata["tier"])

	require.NoError(t, c.Unregister(ctx, alice))
	assert.ErrorIs(t, c.Unregister(ctx, alice), ErrNotFound)

	_, err = c.Register(ctx, model.AccountID{Name: "nodomain"}, nil)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestQuery_Pagination(t *testing.T) {
	c, e := newNode(t)
	for _, id := range []string{"a@x", "b@x", "c@x"} {
		_, err := e.Register(context.Background(), model.MustParseAccountID(id), nil)
		require.NoError(t, err)
	}

	res, err := c.Query(context.Background(), filter.EndsWith{Suffix: "@x"}, QueryOptions{Offset: 1, Limit: 5, Records: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"b@x", "c@x"}, testutil.Strings(res.Accounts))
	assert.Len(t, res.Records, 2)
	assert.Equal(t, uint64(3), res.LSN)
}

func TestHealth(t *testing.T) {
	c, e := newNode(t)
	require.NoError(t, c.Health(context.Background()))

	require.NoError(t, e.Close())
	assert.ErrorIs(t, c.Health(context.Background()), ErrUnavailable)
}

func TestCheckpoint(t *testing.T) {
	c, _ := newNode(t)
	_, err := c.Checkpoint(context.Background())
	assert.ErrorIs(t, err, ErrConflict)
}
