// Package pubsub 在单个物理订阅连接上复用任意数量的逻辑订阅
//
// 连接断开后自动重连并按注册表恢复全部频道；每个实例持有一个
// 随机哨兵频道，哨兵的订阅确认即为握手完成的信号。
package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"submux/internal/core/dispose"
	coreerrors "submux/internal/core/errors"
	corelog "submux/internal/core/log"
	"submux/internal/core/safe"
)

// Multiplexer 订阅复用器
type Multiplexer struct {
	source   Source
	opts     options
	log      corelog.Logger
	executor Executor
	observer Observer
	sentinel string
	svc      *dispose.ServiceBase

	mu               sync.Mutex
	registry         *registry
	session          Session
	commands         *sessionCommands
	readiness        readiness
	resubscribeCount int64
	closed           bool

	paused    atomic.Bool
	started   atomic.Bool
	startOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// New 创建 Multiplexer
//
// 默认立即建立物理订阅并等待握手，超时或失败时关闭并返回错误；
// WithLazyStart 时推迟到首次 Subscribe。parentCtx 取消等同于 Close。
func New(parentCtx context.Context, source Source, opts ...Option) (*Multiplexer, error) {
	if source == nil {
		return nil, coreerrors.New(coreerrors.CodeInvalidParam, "connection source is required")
	}
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	m := &Multiplexer{
		source:    source,
		opts:      o,
		executor:  o.executor,
		observer:  o.observer,
		sentinel:  o.sentinelPrefix + ":" + uuid.NewString(),
		registry:  newRegistry(),
		readiness: newReadiness(),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	m.log = o.logger
	if m.log == nil {
		m.log = corelog.Component("pubsub")
	}
	if m.observer == nil {
		m.observer = nopObserver{}
	}

	m.svc = dispose.NewService("Multiplexer", parentCtx)
	if m.executor == nil {
		if o.poolWorkers > 0 {
			pool := NewPoolExecutor(m.svc.Ctx(), "pubsub-dispatch", o.poolWorkers, o.poolQueue)
			m.executor = pool
			m.svc.AddCleanHandler(pool.Close)
		} else {
			m.executor = GoExecutor("pubsub-listener")
		}
	}
	m.svc.AddCleanHandler(m.shutdown)

	if o.lazy {
		m.log.Debugf("multiplexer created, physical subscription deferred to first subscribe")
		return m, nil
	}

	m.start()
	if err := m.awaitReady(parentCtx); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Multiplexer) start() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		safe.Go("pubsub-supervisor", m.supervise)
	})
}

// Subscribe 为 listener 订阅单个频道，返回同一个 listener 作为退订句柄
//
// 在物理订阅就绪前阻塞，最长 ReadyTimeout。
func (m *Multiplexer) Subscribe(ctx context.Context, channel []byte, l Listener) (Listener, error) {
	if err := validateListener(l); err != nil {
		return nil, err
	}
	if err := m.subscribe(ctx, l, []ChannelKey{KeyOf(channel)}); err != nil {
		return nil, err
	}
	return l, nil
}

// SubscribeAll 为 listener 一次订阅多个频道
func (m *Multiplexer) SubscribeAll(ctx context.Context, l Listener, channels ...string) (Listener, error) {
	if err := validateListener(l); err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidParam, "at least one channel is required")
	}
	keys := make([]ChannelKey, 0, len(channels))
	for _, ch := range channels {
		keys = append(keys, ChannelKey(ch))
	}
	if err := m.subscribe(ctx, l, keys); err != nil {
		return nil, err
	}
	return l, nil
}

func (m *Multiplexer) subscribe(ctx context.Context, l Listener, keys []ChannelKey) error {
	for _, key := range keys {
		if string(key) == m.sentinel {
			return coreerrors.Newf(coreerrors.CodeInvalidParam, "channel %q is reserved", key)
		}
	}
	if m.IsClosed() {
		return ErrClosed
	}
	if m.opts.lazy {
		m.start()
	}
	if err := m.awaitReady(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	var added []string
	for _, key := range keys {
		if m.registry.add(key, l) {
			added = append(added, key.String())
		}
	}
	var done <-chan struct{}
	if len(added) > 0 {
		m.observer.ChannelsChanged(m.registry.len())
		if m.commands != nil {
			done = m.commands.submit(opSubscribe, added)
		}
	}
	m.mu.Unlock()

	m.log.WithFields(map[string]interface{}{
		corelog.FieldChannel:  keysToStrings(keys),
		corelog.FieldListener: describeListener(l),
	}).Debugf("listener subscribed")
	if len(added) == 0 {
		return nil
	}

	// 等待本次命令写出，返回后新频道的消息即可送达
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		case <-m.closing:
		}
	}
	m.log.WithField(corelog.FieldChannel, added).Infof("subscribed to new channels")
	return nil
}

// Unsubscribe 移除 listener 的全部订阅
//
// 返回 listener 是否确实被移除；不等待就绪，也不会触发延迟启动。
func (m *Multiplexer) Unsubscribe(l Listener) (bool, error) {
	if err := validateListener(l); err != nil {
		return false, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, ErrClosed
	}
	removed, emptied := m.registry.remove(l)
	channels := keysToStrings(emptied)
	if len(channels) > 0 {
		m.observer.ChannelsChanged(m.registry.len())
		if m.commands != nil {
			m.commands.submit(opUnsubscribe, channels)
		}
	}
	m.mu.Unlock()

	if !removed {
		return false, nil
	}
	m.log.WithField(corelog.FieldListener, describeListener(l)).Debugf("listener unsubscribed")
	if len(channels) > 0 {
		m.log.WithField(corelog.FieldChannel, channels).Infof("unsubscribed from idle channels")
	}
	return true, nil
}

// Close 关闭复用器，可重复调用
//
// 清空注册表，释放当前会话，唤醒所有等待就绪的调用方。
// 不等待订阅循环退出，需要时使用 Done。
func (m *Multiplexer) Close() error {
	return m.svc.Close()
}

func (m *Multiplexer) shutdown() error {
	m.mu.Lock()
	m.closed = true
	sess, commands := m.session, m.commands
	m.session, m.commands = nil, nil
	m.readiness.reset()
	m.registry.clear()
	close(m.closing)
	m.mu.Unlock()

	// 从未启动时由这里关闭 done，并阻止之后再启动
	m.startOnce.Do(func() { close(m.done) })

	if sess != nil {
		// 退订全部排在已提交的命令之后，最多等待一个命令超时
		timer := time.NewTimer(m.opts.commandTimeout)
		select {
		case <-commands.submit(opUnsubscribe, nil):
		case <-timer.C:
			m.log.Debugf("unsubscribe on close still pending, releasing session")
		}
		timer.Stop()
		if err := sess.Close(); err != nil {
			m.log.WithError(err).Warnf("failed to release subscription session")
		}
	}
	m.observer.ChannelsChanged(0)
	m.log.Infof("multiplexer closed")
	return nil
}

// IsClosed 是否已关闭
func (m *Multiplexer) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetPaused 暂停时到达的消息直接丢弃，不会补发
func (m *Multiplexer) SetPaused(paused bool) {
	if m.paused.Swap(paused) != paused {
		m.log.Infof("message delivery paused=%t", paused)
	}
}

// Paused 是否暂停
func (m *Multiplexer) Paused() bool {
	return m.paused.Load()
}

// ResubscribeCount 握手完成次数，包含首次
func (m *Multiplexer) ResubscribeCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resubscribeCount
}

// Ready 当前是否存在已握手的物理订阅
func (m *Multiplexer) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.readiness.subscribed
}

// Started 订阅循环是否已启动
func (m *Multiplexer) Started() bool {
	return m.started.Load()
}

// Subscriptions 频道到监听器的快照
func (m *Multiplexer) Subscriptions() map[string][]Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.snapshot()
}

// Session 当前物理订阅会话，可能为 nil
func (m *Multiplexer) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Source 连接来源
func (m *Multiplexer) Source() Source {
	return m.source
}

// Executor 回调执行器
func (m *Multiplexer) Executor() Executor {
	return m.executor
}

// Done 订阅循环退出后关闭
func (m *Multiplexer) Done() <-chan struct{} {
	return m.done
}

func keysToStrings(keys []ChannelKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
