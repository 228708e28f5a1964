package pubsub_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	corelog "submux/internal/core/log"
	"submux/internal/pubsub"
)

// recorder 记录收到的消息
type recorder struct {
	ch chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 128)}
}

func (r *recorder) OnMessage(channel, message []byte) error {
	r.ch <- string(channel) + "=" + string(message)
	return nil
}

func (r *recorder) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.ch:
		require.Equal(t, want, got)
	case <-time.After(10 * time.Second):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func (r *recorder) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case got := <-r.ch:
		t.Fatalf("unexpected message %q", got)
	case <-time.After(wait):
	}
}

// countingObserver 统计 Observer 回调次数
type countingObserver struct {
	resubscribed    atomic.Int64
	sessionFailures atomic.Int64
	channels        atomic.Int64
	received        atomic.Int64
	dropped         sync.Map // reason -> *atomic.Int64
	listenerFailed  atomic.Int64
}

func (o *countingObserver) Resubscribed() { o.resubscribed.Add(1) }
func (o *countingObserver) SessionEnded(err error) {
	if err != nil {
		o.sessionFailures.Add(1)
	}
}
func (o *countingObserver) ChannelsChanged(n int)   { o.channels.Store(int64(n)) }
func (o *countingObserver) MessageReceived(int)     { o.received.Add(1) }
func (o *countingObserver) ListenerFailed()         { o.listenerFailed.Add(1) }
func (o *countingObserver) MessageDropped(r string) { o.droppedCounter(r).Add(1) }

func (o *countingObserver) droppedCounter(reason string) *atomic.Int64 {
	v, _ := o.dropped.LoadOrStore(reason, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// newMux 创建 Multiplexer，测试结束时关闭并等待订阅循环退出
func newMux(t *testing.T, src pubsub.Source, opts ...pubsub.Option) *pubsub.Multiplexer {
	t.Helper()
	opts = append([]pubsub.Option{
		pubsub.WithLogger(corelog.NewTestLogger(t)),
		pubsub.WithReconnectInterval(10 * time.Millisecond),
	}, opts...)
	m, err := pubsub.New(context.Background(), src, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Close()
		waitDone(t, m)
	})
	return m
}

func waitDone(t *testing.T, m *pubsub.Multiplexer) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not exit")
	}
}

// silentSource 会话永不确认订阅
type silentSource struct {
	opened atomic.Int32
}

func (s *silentSource) Open(ctx context.Context) (pubsub.Session, error) {
	s.opened.Add(1)
	return &silentSession{done: make(chan struct{})}, nil
}

func (s *silentSource) IsClosed() bool { return false }

type silentSession struct {
	once sync.Once
	done chan struct{}
}

func (s *silentSession) Run(ctx context.Context, _ []string, _ pubsub.SessionHandler) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	}
}

func (s *silentSession) Subscribe(context.Context, ...string) error   { return nil }
func (s *silentSession) Unsubscribe(context.Context, ...string) error { return nil }
func (s *silentSession) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// hookedSource 包装真实 Source，可让订阅命令卡住并统计退订
type hookedSource struct {
	pubsub.Source
	stallSubscribe atomic.Bool
	unsubscribeAll atomic.Int32
}

func (s *hookedSource) Open(ctx context.Context) (pubsub.Session, error) {
	sess, err := s.Source.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &hookedSession{Session: sess, src: s}, nil
}

type hookedSession struct {
	pubsub.Session
	src *hookedSource
}

func (s *hookedSession) Subscribe(ctx context.Context, channels ...string) error {
	if s.src.stallSubscribe.Load() {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.Session.Subscribe(ctx, channels...)
}

func (s *hookedSession) Unsubscribe(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		s.src.unsubscribeAll.Add(1)
	}
	return s.Session.Unsubscribe(ctx, channels...)
}
