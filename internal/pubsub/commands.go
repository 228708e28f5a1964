package pubsub

import (
	"context"
	"sync"
	"time"

	corelog "submux/internal/core/log"
	"submux/internal/core/safe"
)

const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
)

// sessionCommands 按提交顺序在一个会话上串行执行订阅命令
//
// submit 只追加队列，可在持有复用器锁时调用；网络 I/O 在独立的
// goroutine 中完成，队列为空时该 goroutine 退出。
type sessionCommands struct {
	sess    Session
	timeout time.Duration
	log     corelog.Logger

	mu      sync.Mutex
	queue   []sessionCommand
	running bool
}

type sessionCommand struct {
	op       string
	channels []string
	done     chan struct{}
}

func newSessionCommands(sess Session, timeout time.Duration, log corelog.Logger) *sessionCommands {
	return &sessionCommands{sess: sess, timeout: timeout, log: log}
}

// submit 入队一条命令，返回的通道在命令执行结束后关闭
// channels 为空的 unsubscribe 表示退订全部
func (c *sessionCommands) submit(op string, channels []string) <-chan struct{} {
	cmd := sessionCommand{op: op, channels: channels, done: make(chan struct{})}

	c.mu.Lock()
	c.queue = append(c.queue, cmd)
	start := !c.running
	c.running = true
	c.mu.Unlock()

	if start {
		safe.Go("pubsub-commands", c.drain)
	}
	return cmd.done
}

func (c *sessionCommands) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.running = false
			c.mu.Unlock()
			return
		}
		cmd := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.exec(cmd)
		close(cmd.done)
	}
}

// exec 失败只记日志，由下次重连按注册表修正
func (c *sessionCommands) exec(cmd sessionCommand) {
	err := safe.Call("pubsub-command", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if cmd.op == opSubscribe {
			return c.sess.Subscribe(ctx, cmd.channels...)
		}
		return c.sess.Unsubscribe(ctx, cmd.channels...)
	})
	if err != nil {
		c.log.WithError(err).WithField(corelog.FieldChannel, cmd.channels).
			Warnf("%s on live session failed, will be reconciled on reconnect", cmd.op)
	}
}
