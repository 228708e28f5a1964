package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submux/internal/broker"
	"submux/internal/config/schema"
	"submux/internal/config/source"
	coreerrors "submux/internal/core/errors"
	"submux/internal/core/metrics"
	"submux/internal/pubsub"
)

// lockedBuffer 并发安全的输出缓冲
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) *schema.Root {
	t.Helper()
	cfg := &schema.Root{}
	require.NoError(t, source.NewDefaultSource().LoadInto(cfg))
	cfg.Metrics.Enabled = false
	cfg.Mux.ReconnectInterval = 10 * time.Millisecond
	return cfg
}

func publishUntilDelivered(t *testing.T, mb *broker.MemoryBroker, channel, message string) {
	t.Helper()
	require.Eventually(t, func() bool {
		n, err := mb.Publish(context.Background(), channel, []byte(message))
		return err == nil && n > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestBrokerConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Broker.Type = schema.BrokerRedis
	cfg.Broker.Redis.Addrs = []string{"redis-1:6379", "redis-2:6379"}
	cfg.Broker.Redis.Password = schema.Secret("hunter2")
	cfg.Broker.Redis.ClusterMode = true

	bc := BrokerConfig(cfg)
	assert.Equal(t, broker.BrokerTypeRedis, bc.Type)
	require.NotNil(t, bc.Redis)
	assert.Equal(t, "hunter2", bc.Redis.Password)
	assert.True(t, bc.Redis.ClusterMode)
	assert.Equal(t, cfg.Broker.Redis.Addrs, bc.Redis.Addrs)

	bc.Redis.Addrs[0] = "changed"
	assert.Equal(t, "redis-1:6379", cfg.Broker.Redis.Addrs[0])
}

func TestMuxOptions_LazyStart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mux.LazyStart = true
	cfg.Mux.Workers = 2

	mb := broker.NewMemoryBroker(context.Background(), 16)
	defer mb.Close()

	mux, err := pubsub.New(context.Background(), mb, MuxOptions(cfg, nil)...)
	require.NoError(t, err)
	defer mux.Close()

	assert.False(t, mux.Started())
	assert.IsType(t, &pubsub.PoolExecutor{}, mux.Executor())
}

func TestListen_PrintsMessages(t *testing.T) {
	mb := broker.NewMemoryBroker(context.Background(), 16)
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	result := make(chan error, 1)
	go func() {
		result <- listen(ctx, testConfig(t), mb, []string{"news", "alerts"}, out)
	}()

	publishUntilDelivered(t, mb, "news", "hello")
	publishUntilDelivered(t, mb, "alerts", "fire")
	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "news\thello\n") && strings.Contains(s, "alerts\tfire\n")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not return after cancel")
	}
}

func TestListen_SourceClosed(t *testing.T) {
	mb := broker.NewMemoryBroker(context.Background(), 16)

	result := make(chan error, 1)
	go func() {
		result <- listen(context.Background(), testConfig(t), mb, []string{"news"}, &lockedBuffer{})
	}()

	publishUntilDelivered(t, mb, "news", "first")
	require.NoError(t, mb.Close())

	select {
	case err := <-result:
		require.Error(t, err)
		assert.True(t, coreerrors.IsCode(err, coreerrors.CodeUnavailable))
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not return after broker close")
	}
}

func TestMetricsHandler(t *testing.T) {
	mb := broker.NewMemoryBroker(context.Background(), 16)
	defer mb.Close()

	reg := prometheus.NewRegistry()
	mux, err := pubsub.New(context.Background(), mb,
		pubsub.WithObserver(metrics.NewCollector(reg, "cli")))
	require.NoError(t, err)
	defer mux.Close()

	srv := httptest.NewServer(metricsHandler(reg, "/metrics", mux))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/readyz", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body := new(bytes.Buffer)
		if _, err := body.ReadFrom(resp.Body); err != nil {
			return false
		}
		return strings.Contains(body.String(), "cli_ready 1")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, mux.Close())
	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRootCommand_Version(t *testing.T) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "submux v")
}

func TestRootCommand_Publish(t *testing.T) {
	t.Setenv("SUBMUX_LOG_LEVEL", "error")

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"publish", "--broker", "memory", "news", "hello"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "0\n", out.String())
}

func TestRootCommand_ConfigMasksPassword(t *testing.T) {
	t.Setenv("SUBMUX_REDIS_PASSWORD", "hunter2")
	t.Setenv("SUBMUX_LOG_LEVEL", "error")

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"config", "--broker", "redis", "--redis-addr", "r1:6379"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "type: redis")
	assert.Contains(t, out.String(), "r1:6379")
	assert.Contains(t, out.String(), "******")
	assert.NotContains(t, out.String(), "hunter2")
}

func TestRootCommand_InvalidBroker(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"publish", "--broker", "carrier-pigeon", "news", "hello"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))
}

func TestRootCommand_ListenRequiresChannel(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"listen"})

	assert.Error(t, cmd.Execute())
}
