package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "submux/internal/core/errors"
)

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	mb := NewMemoryBroker(ctx, 0)
	defer mb.Close()

	sess, err := mb.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	h := newRecordingHandler()
	errCh := runSession(ctx, sess, []string{"sentinel", "orders"}, h)
	h.expectSubscribed(t, "sentinel", "orders")

	n, err := mb.Publish(ctx, "orders", []byte("order-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, received{channel: "orders", payload: "order-1"}, h.expectMessage(t))

	n, err = mb.Publish(ctx, "nobody", []byte("dropped"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, sess.Unsubscribe(ctx))
	assert.NoError(t, waitRunResult(t, errCh))
}

func TestMemoryBroker_PayloadIsCopied(t *testing.T) {
	ctx := context.Background()
	mb := NewMemoryBroker(ctx, 0)
	defer mb.Close()

	sess, err := mb.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	h := newRecordingHandler()
	runSession(ctx, sess, []string{"c"}, h)
	h.expectSubscribed(t, "c")

	payload := []byte("original")
	_, err = mb.Publish(ctx, "c", payload)
	require.NoError(t, err)
	copy(payload, "mutated!")

	assert.Equal(t, "original", h.expectMessage(t).payload)
}

func TestMemoryBroker_MultipleSessions(t *testing.T) {
	ctx := context.Background()
	mb := NewMemoryBroker(ctx, 0)
	defer mb.Close()

	s1, err := mb.Open(ctx)
	require.NoError(t, err)
	s2, err := mb.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, mb.SessionCount())

	h1, h2 := newRecordingHandler(), newRecordingHandler()
	runSession(ctx, s1, []string{"shared"}, h1)
	runSession(ctx, s2, []string{"shared", "only-2"}, h2)
	h1.expectSubscribed(t, "shared")
	h2.expectSubscribed(t, "shared", "only-2")

	n, err := mb.Publish(ctx, "shared", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	h1.expectMessage(t)
	h2.expectMessage(t)

	n, err = mb.Publish(ctx, "only-2", []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	h1.expectNoMessage(t, 50*time.Millisecond)
	assert.Equal(t, "y", h2.expectMessage(t).payload)

	require.NoError(t, s1.Close())
	require.NoError(t, s2.Close())
	assert.Equal(t, 0, mb.SessionCount())
}

func TestMemoryBroker_KillSessions(t *testing.T) {
	ctx := context.Background()
	mb := NewMemoryBroker(ctx, 0)
	defer mb.Close()

	sess, err := mb.Open(ctx)
	require.NoError(t, err)

	h := newRecordingHandler()
	errCh := runSession(ctx, sess, []string{"sentinel"}, h)
	h.expectSubscribed(t, "sentinel")

	assert.Equal(t, 1, mb.KillSessions())
	err = waitRunResult(t, errCh)
	assert.ErrorIs(t, err, ErrSessionKilled)
	assert.Equal(t, 0, mb.SessionCount())

	assert.ErrorIs(t, sess.Subscribe(ctx, "late"), coreerrors.ErrResourceClosed)
}

func TestMemoryBroker_BufferLimit(t *testing.T) {
	ctx := context.Background()
	mb := NewMemoryBroker(ctx, 2)
	defer mb.Close()

	sess, err := mb.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	// 未运行 Run 时消息堆积在缓冲里
	require.NoError(t, sess.Subscribe(ctx, "c"))
	for i := 0; i < 3; i++ {
		_, err := mb.Publish(ctx, "c", []byte{byte('0' + i)})
		require.NoError(t, err)
	}

	h := newRecordingHandler()
	runSession(ctx, sess, nil, h)
	h.expectSubscribed(t, "c")
	assert.Equal(t, "0", h.expectMessage(t).payload)
	assert.Equal(t, "1", h.expectMessage(t).payload)
	h.expectNoMessage(t, 50*time.Millisecond)
}

func TestMemoryBroker_UnsubscribeAllWithoutChannels(t *testing.T) {
	ctx := context.Background()
	mb := NewMemoryBroker(ctx, 0)
	defer mb.Close()

	sess, err := mb.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Unsubscribe(ctx))
	errCh := runSession(ctx, sess, nil, newRecordingHandler())
	assert.NoError(t, waitRunResult(t, errCh))
}

func TestMemoryBroker_ContextCancelEndsRun(t *testing.T) {
	mb := NewMemoryBroker(context.Background(), 0)
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := mb.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	errCh := runSession(ctx, sess, []string{"c"}, newRecordingHandler())
	cancel()
	assert.ErrorIs(t, waitRunResult(t, errCh), context.Canceled)
}

func TestMemoryBroker_Close(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	mb := NewMemoryBroker(parent, 0)

	sess, err := mb.Open(context.Background())
	require.NoError(t, err)
	errCh := runSession(context.Background(), sess, []string{"c"}, newRecordingHandler())

	// 父 context 取消等同于 Close
	cancel()
	assert.ErrorIs(t, waitRunResult(t, errCh), coreerrors.ErrResourceClosed)
	assert.Eventually(t, mb.IsClosed, time.Second, 10*time.Millisecond)

	_, err = mb.Open(context.Background())
	assert.ErrorIs(t, err, coreerrors.ErrResourceClosed)
	_, err = mb.Publish(context.Background(), "c", nil)
	assert.ErrorIs(t, err, coreerrors.ErrResourceClosed)
	assert.Error(t, mb.Ping(context.Background()))
	assert.NoError(t, mb.Close())
}

func TestNewBroker(t *testing.T) {
	ctx := context.Background()

	b, err := NewBroker(ctx, DefaultBrokerConfig())
	require.NoError(t, err)
	assert.IsType(t, &MemoryBroker{}, b)
	require.NoError(t, b.Close())

	b, err = NewBroker(ctx, &BrokerConfig{Type: BrokerTypeEmbedded})
	require.NoError(t, err)
	assert.IsType(t, &EmbeddedBroker{}, b)
	require.NoError(t, b.Ping(ctx))
	require.NoError(t, b.Close())

	_, err = NewBroker(ctx, nil)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeInvalidParam))

	_, err = NewBroker(ctx, &BrokerConfig{Type: BrokerTypeRedis})
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))

	_, err = NewBroker(ctx, &BrokerConfig{Type: "nats"})
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))
}
