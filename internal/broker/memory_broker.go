package broker

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"submux/internal/core/dispose"
	coreerrors "submux/internal/core/errors"
	corelog "submux/internal/core/log"
	"submux/internal/pubsub"
)

// DefaultMemoryBuffer 每个内存会话最多缓存的未读消息数
const DefaultMemoryBuffer = 1024

// ErrSessionKilled 会话被 KillSessions 强制结束
var ErrSessionKilled = coreerrors.New(coreerrors.CodeConnectionError, "memory session killed")

// MemoryBroker 内存消息代理（单进程，无持久化）
//
// 行为与 Redis 一致：订阅/退订逐频道回复确认，全部退订后会话结束。
type MemoryBroker struct {
	*dispose.ServiceBase
	buffer int
	nextID atomic.Int64

	mu       sync.RWMutex
	sessions map[*memorySession]struct{}
}

// NewMemoryBroker 创建内存消息代理，buffer <= 0 时使用 DefaultMemoryBuffer
func NewMemoryBroker(parentCtx context.Context, buffer int) *MemoryBroker {
	if buffer <= 0 {
		buffer = DefaultMemoryBuffer
	}
	b := &MemoryBroker{
		ServiceBase: dispose.NewService("MemoryBroker", parentCtx),
		buffer:      buffer,
		sessions:    make(map[*memorySession]struct{}),
	}
	b.AddCleanHandler(b.onClose)

	corelog.Infof("MemoryBroker initialized (buffer: %d)", buffer)
	return b
}

// Open 创建新的会话
func (m *MemoryBroker) Open(ctx context.Context) (pubsub.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IsClosed() {
		return nil, coreerrors.ErrResourceClosed
	}

	s := &memorySession{
		id:       m.nextID.Add(1),
		broker:   m,
		limit:    m.buffer,
		channels: make(map[string]struct{}),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	m.sessions[s] = struct{}{}
	corelog.Debugf("MemoryBroker: session %d opened", s.id)
	return s, nil
}

// Publish 发布消息到频道，会话缓冲已满时丢弃
func (m *MemoryBroker) Publish(ctx context.Context, channel string, message []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.IsClosed() {
		return 0, coreerrors.ErrResourceClosed
	}

	var delivered int64
	for s := range m.sessions {
		if s.deliver(channel, message) {
			delivered++
		}
	}
	corelog.Debugf("MemoryBroker: published message to %s, %d receivers", channel, delivered)
	return delivered, nil
}

// Ping 已关闭时返回错误
func (m *MemoryBroker) Ping(ctx context.Context) error {
	if m.IsClosed() {
		return coreerrors.ErrResourceClosed
	}
	return ctx.Err()
}

// KillSessions 强制结束全部会话，模拟连接断开，返回结束的会话数
func (m *MemoryBroker) KillSessions() int {
	sessions := m.snapshot()
	for _, s := range sessions {
		s.terminate(ErrSessionKilled)
	}
	corelog.Infof("MemoryBroker: killed %d sessions", len(sessions))
	return len(sessions)
}

// SessionCount 当前会话数
func (m *MemoryBroker) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryBroker) snapshot() []*memorySession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*memorySession, 0, len(m.sessions))
	for s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *MemoryBroker) release(s *memorySession) {
	m.mu.Lock()
	delete(m.sessions, s)
	m.mu.Unlock()
}

func (m *MemoryBroker) onClose() error {
	for _, s := range m.snapshot() {
		s.terminate(coreerrors.ErrResourceClosed)
	}
	corelog.Infof("MemoryBroker closed")
	return nil
}

type eventKind int

const (
	eventSubscribe eventKind = iota
	eventUnsubscribe
	eventMessage
)

type memoryEvent struct {
	kind    eventKind
	channel string
	payload []byte
	count   int
}

// memorySession 内存会话
//
// 确认事件无界排队，消息受 limit 约束；事件按产生顺序交给 Run。
type memorySession struct {
	id     int64
	broker *MemoryBroker
	limit  int

	mu       sync.Mutex
	channels map[string]struct{}
	queue    []memoryEvent
	pending  int
	closed   bool
	err      error

	notify chan struct{}
	done   chan struct{}
}

func (s *memorySession) Run(ctx context.Context, channels []string, h pubsub.SessionHandler) error {
	if err := s.Subscribe(ctx, channels...); err != nil {
		return err
	}
	for {
		e, ok := s.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.done:
				return s.closeErr()
			case <-s.notify:
			}
			continue
		}

		switch e.kind {
		case eventSubscribe:
			h.OnSubscribe(e.channel, e.count)
		case eventUnsubscribe:
			if e.count == 0 {
				return nil
			}
		case eventMessage:
			h.OnMessage(e.channel, e.payload)
		}
	}
}

func (s *memorySession) Subscribe(ctx context.Context, channels ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return coreerrors.ErrResourceClosed
	}
	for _, ch := range channels {
		s.channels[ch] = struct{}{}
		s.queue = append(s.queue, memoryEvent{kind: eventSubscribe, channel: ch, count: len(s.channels)})
	}
	s.mu.Unlock()
	s.wake()
	return nil
}

func (s *memorySession) Unsubscribe(ctx context.Context, channels ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return coreerrors.ErrResourceClosed
	}
	if len(channels) == 0 {
		for ch := range s.channels {
			channels = append(channels, ch)
		}
		sort.Strings(channels)
		if len(channels) == 0 {
			s.queue = append(s.queue, memoryEvent{kind: eventUnsubscribe})
		}
	}
	for _, ch := range channels {
		delete(s.channels, ch)
		s.queue = append(s.queue, memoryEvent{kind: eventUnsubscribe, channel: ch, count: len(s.channels)})
	}
	s.mu.Unlock()
	s.wake()
	return nil
}

func (s *memorySession) Close() error {
	s.terminate(nil)
	return nil
}

// deliver 投递一条消息，未订阅该频道或缓冲已满时返回 false
func (s *memorySession) deliver(channel string, payload []byte) bool {
	s.mu.Lock()
	if _, ok := s.channels[channel]; !ok || s.closed {
		s.mu.Unlock()
		return false
	}
	if s.pending >= s.limit {
		s.mu.Unlock()
		corelog.Warnf("MemoryBroker: session %d buffer full, dropping message on %s", s.id, channel)
		return false
	}
	msg := append([]byte(nil), payload...)
	s.queue = append(s.queue, memoryEvent{kind: eventMessage, channel: channel, payload: msg})
	s.pending++
	s.mu.Unlock()
	s.wake()
	return true
}

func (s *memorySession) next() (memoryEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return memoryEvent{}, false
	}
	e := s.queue[0]
	s.queue[0] = memoryEvent{}
	s.queue = s.queue[1:]
	if e.kind == eventMessage {
		s.pending--
	}
	return e, true
}

func (s *memorySession) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *memorySession) terminate(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	s.queue = nil
	s.pending = 0
	close(s.done)
	s.mu.Unlock()

	s.broker.release(s)
	corelog.Debugf("MemoryBroker: session %d closed", s.id)
}

func (s *memorySession) closeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
