package pubsub_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submux/internal/broker"
	"submux/internal/core/metrics"
	"submux/internal/pubsub"
)

// waitNumSub 等待服务端确认频道的订阅连接数
func waitNumSub(t *testing.T, eb *broker.EmbeddedBroker, channel string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return eb.NumSub(channel) == n
	}, 10*time.Second, 10*time.Millisecond, "channel %s", channel)
}

func TestMultiplexer_RedisEndToEnd(t *testing.T) {
	ctx := context.Background()
	eb, err := broker.NewEmbeddedBroker(ctx, nil)
	require.NoError(t, err)
	defer eb.Close()

	reg := prometheus.NewRegistry()
	m := newMux(t, eb, pubsub.WithObserver(metrics.NewCollector(reg, "e2e")))
	require.True(t, m.Ready())

	orders, audit := newRecorder(), newRecorder()
	_, err = m.Subscribe(ctx, []byte("orders"), orders)
	require.NoError(t, err)
	_, err = m.SubscribeAll(ctx, audit, "audit", "orders")
	require.NoError(t, err)
	waitNumSub(t, eb, "orders", 1)
	waitNumSub(t, eb, "audit", 1)

	publish(t, eb, "orders", "o-1")
	orders.expect(t, "orders=o-1")
	audit.expect(t, "orders=o-1")

	publish(t, eb, "audit", "a-1")
	audit.expect(t, "audit=a-1")
	orders.expectNone(t, 100*time.Millisecond)

	removed, err := m.Unsubscribe(audit)
	require.NoError(t, err)
	assert.True(t, removed)
	waitNumSub(t, eb, "audit", 0)
	assert.Equal(t, 1, eb.NumSub("orders"), "channel stays subscribed while a listener remains")

	publish(t, eb, "orders", "o-2")
	orders.expect(t, "orders=o-2")
	audit.expectNone(t, 100*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetGauge() != nil:
				values[f.GetName()] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				values[f.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["e2e_ready"])
	assert.Equal(t, 1.0, values["e2e_channels"])
	assert.Equal(t, 1.0, values["e2e_resubscribes_total"])
	assert.Equal(t, 3.0, values["e2e_messages_received_total"])
}

func TestMultiplexer_RedisRestart(t *testing.T) {
	ctx := context.Background()
	eb, err := broker.NewEmbeddedBroker(ctx, &broker.RedisBrokerConfig{
		DialTimeout:         time.Second,
		HealthCheckInterval: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	defer eb.Close()

	m := newMux(t, eb)
	rec := newRecorder()
	_, err = m.Subscribe(ctx, []byte("jobs"), rec)
	require.NoError(t, err)
	waitNumSub(t, eb, "jobs", 1)
	publish(t, eb, "jobs", "before")
	rec.expect(t, "jobs=before")
	before := m.ResubscribeCount()

	require.NoError(t, eb.Restart())
	require.Eventually(t, func() bool {
		return m.ResubscribeCount() > before && m.Ready()
	}, 10*time.Second, 20*time.Millisecond)

	waitNumSub(t, eb, "jobs", 1)
	publish(t, eb, "jobs", "after")
	rec.expect(t, "jobs=after")
}
