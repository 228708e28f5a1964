package pubsub

import (
	"context"

	"golang.org/x/time/rate"

	coreerrors "submux/internal/core/errors"
	corelog "submux/internal/core/log"
)

// supervise 订阅循环：借连接、订阅注册表中的全部频道与哨兵、阻塞到会话结束，然后重来
//
// 直到 Multiplexer 关闭或连接来源永久关闭才退出；退出时关闭 Multiplexer。
func (m *Multiplexer) supervise() {
	defer close(m.done)
	defer func() { _ = m.Close() }()

	ctx := m.svc.Ctx()
	limit := rate.Inf
	if m.opts.reconnectInterval > 0 {
		limit = rate.Every(m.opts.reconnectInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	m.log.WithField(corelog.FieldSession, m.sentinel).Debugf("subscription supervisor started")
	for {
		if m.IsClosed() || ctx.Err() != nil {
			return
		}
		if m.source.IsClosed() {
			m.log.Warnf("connection source closed, stopping subscription supervisor")
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		err := m.runSession(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.log.WithError(err).Warnf("physical subscription lost, reconnecting")
		} else {
			m.log.Debugf("physical subscription ended, resubscribing")
		}
	}
}

// runSession 运行一次物理订阅会话，返回会话结束的原因
func (m *Multiplexer) runSession(ctx context.Context) error {
	sess, err := m.source.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		m.observer.SessionEnded(err)
		return coreerrors.Wrap(err, coreerrors.CodeConnectionError, "failed to open subscription session")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = sess.Close()
		return nil
	}
	channels := m.registry.channels(m.sentinel)
	m.session = sess
	m.commands = newSessionCommands(sess, m.opts.commandTimeout, m.log)
	m.mu.Unlock()

	m.log.WithField(corelog.FieldChannel, len(channels)-1).Debugf("opening physical subscription")
	runErr := sess.Run(ctx, channels, &sessionHandler{m: m, session: sess})

	m.mu.Lock()
	if m.session == sess {
		m.session, m.commands = nil, nil
		m.readiness.reset()
	}
	m.mu.Unlock()

	if err := sess.Close(); err != nil {
		m.log.WithError(err).Debugf("release subscription session")
	}
	if ctx.Err() != nil {
		m.observer.SessionEnded(nil)
		return nil
	}
	m.observer.SessionEnded(runErr)
	if runErr != nil {
		return coreerrors.Wrap(runErr, coreerrors.CodeConnectionError, "physical subscription failed")
	}
	return nil
}

// handshake 哨兵订阅确认；只对当前会话生效，每个会话只计一次
func (m *Multiplexer) handshake(sess Session) {
	m.mu.Lock()
	if m.closed || m.session != sess || !m.readiness.signal() {
		m.mu.Unlock()
		return
	}
	m.resubscribeCount++
	n := m.resubscribeCount
	m.mu.Unlock()

	m.observer.Resubscribed()
	if n > 1 {
		m.log.Infof("physical subscription re-established, resubscribed %d times", n)
	} else {
		m.log.Debugf("physical subscription established")
	}
}

type sessionHandler struct {
	m       *Multiplexer
	session Session
}

func (h *sessionHandler) OnMessage(channel string, payload []byte) {
	h.m.dispatch(channel, payload)
}

func (h *sessionHandler) OnSubscribe(channel string, _ int) {
	if channel == h.m.sentinel {
		h.m.handshake(h.session)
	}
}
