package pubsub

import (
	corelog "submux/internal/core/log"
	"submux/internal/core/safe"
)

// dispatch 把一条消息分发给频道的全部监听器
//
// 在订阅循环的 goroutine 上调用；监听器列表在锁内拷贝，回调在锁外经 Executor 执行。
func (m *Multiplexer) dispatch(channel string, payload []byte) {
	if m.paused.Load() {
		m.observer.MessageDropped(DropReasonPaused)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.observer.MessageDropped(DropReasonClosed)
		return
	}
	listeners := m.registry.listeners(ChannelKey(channel))
	m.mu.Unlock()

	m.observer.MessageReceived(len(listeners))
	for _, l := range listeners {
		m.executor.Execute(func() {
			m.deliver(channel, payload, l)
		})
	}
}

// deliver 调用单个监听器，错误与 panic 只记录日志，不影响其他监听器
func (m *Multiplexer) deliver(channel string, payload []byte, l Listener) {
	ch := []byte(channel)
	msg := append([]byte(nil), payload...)

	err := safe.Call("pubsub-listener", func() error {
		return l.OnMessage(ch, msg)
	})
	if err == nil {
		return
	}
	m.log.WithError(err).WithFields(map[string]interface{}{
		corelog.FieldChannel:  channel,
		corelog.FieldListener: describeListener(l),
		"message":             string(payload),
	}).Errorf("listener failed to handle message")
	m.observer.ListenerFailed()
}
