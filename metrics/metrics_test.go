package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ledgerq/engine"
	"github.com/hupe1980/ledgerq/filter"
	"github.com/hupe1980/ledgerq/model"
)

func TestObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewObserver(reg, "ledgerq")

	o.OnRegister(time.Millisecond, nil)
	o.OnRegister(time.Millisecond, errors.New("dup"))
	o.OnUnregister(time.Millisecond, nil)
	o.OnQuery("suffix", time.Millisecond, 3, false, nil)
	o.OnQuery("suffix", time.Millisecond, 3, true, nil)
	o.OnCompaction(time.Millisecond, 5, nil)
	o.OnCheckpoint(time.Millisecond, 42, nil)
	o.OnRecovery(time.Millisecond, 7, nil)
	o.OnQueueDepth("compaction_queue", 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(o.writes.WithLabelValues("register", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.writes.WithLabelValues("register", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.writes.WithLabelValues("unregister", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.queries.WithLabelValues("suffix", "true")))
	assert.Equal(t, 5.0, testutil.ToFloat64(o.compacted))
	assert.Equal(t, 42.0, testutil.ToFloat64(o.checkpointSize))
	assert.Equal(t, 7.0, testutil.ToFloat64(o.replayed))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.queueDepth.WithLabelValues("compaction_queue")))

	n, err := testutil.GatherAndCount(reg, "ledgerq_operation_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestObserver_WithEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewObserver(reg, "test")

	e, err := engine.Open(context.Background(), engine.WithMetricsObserver(o))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Register(context.Background(), model.MustParseAccountID("alice@wonderland"), nil)
	require.NoError(t, err)
	_, err = e.Query(context.Background(), filter.Is{ID: "alice@wonderland"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(o.queries.WithLabelValues("exact", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.writes.WithLabelValues("register", "success")))
}

func TestObserver_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewObserver(reg, "dup")
	assert.Panics(t, func() { NewObserver(reg, "dup") })
}
