package pubsub

import (
	"context"
	"time"

	coreerrors "submux/internal/core/errors"
)

// readiness 就绪屏障，所有字段由 Multiplexer.mu 保护
//
// ready 在当前会话握手完成时关闭；会话结束后换成新的未关闭 channel，
// 等待方总是拿到最新一代的 channel。
type readiness struct {
	subscribed bool
	ready      chan struct{}
}

func newReadiness() readiness {
	return readiness{ready: make(chan struct{})}
}

func (r *readiness) signal() bool {
	if r.subscribed {
		return false
	}
	r.subscribed = true
	close(r.ready)
	return true
}

func (r *readiness) reset() {
	if !r.subscribed {
		return
	}
	r.subscribed = false
	r.ready = make(chan struct{})
}

// awaitReady 等待物理订阅就绪，受 ReadyTimeout、ctx 与关闭三者约束
func (m *Multiplexer) awaitReady(ctx context.Context) error {
	timer := time.NewTimer(m.opts.readyTimeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return ErrClosed
		}
		if m.session != nil && m.readiness.subscribed {
			m.mu.Unlock()
			return nil
		}
		ready := m.readiness.ready
		m.mu.Unlock()

		select {
		case <-ready:
		case <-m.closing:
		case <-timer.C:
			return coreerrors.Newf(coreerrors.CodeTimeout,
				"timed out waiting for subscription handshake after %s", m.opts.readyTimeout)
		case <-ctx.Done():
			return coreerrors.Wrap(ctx.Err(), coreerrors.CodeCancelled, "wait for subscription handshake cancelled")
		}
	}
}
