package broker

import (
	"context"

	"github.com/alicebob/miniredis/v2"

	coreerrors "submux/internal/core/errors"
	corelog "submux/internal/core/log"
)

// EmbeddedBroker 内嵌 Redis (miniredis) 上的 RedisBroker
// 用于单机演示和测试，无需外部 Redis
type EmbeddedBroker struct {
	*RedisBroker
	server *miniredis.Miniredis
}

// NewEmbeddedBroker 启动 miniredis 并连接
func NewEmbeddedBroker(parentCtx context.Context, config *RedisBrokerConfig) (*EmbeddedBroker, error) {
	server, err := miniredis.Run()
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeUnavailable, "start miniredis failed")
	}

	cfg := RedisBrokerConfig{}
	if config != nil {
		cfg = *config
	}
	cfg.Addrs = []string{server.Addr()}
	cfg.ClusterMode = false

	rb, err := NewRedisBroker(parentCtx, &cfg)
	if err != nil {
		server.Close()
		return nil, err
	}
	rb.AddCleanHandler(func() error {
		server.Close()
		return nil
	})

	corelog.Infof("EmbeddedBroker: miniredis listening on %s", server.Addr())
	return &EmbeddedBroker{RedisBroker: rb, server: server}, nil
}

// Addr 内嵌服务地址
func (e *EmbeddedBroker) Addr() string {
	return e.server.Addr()
}

// Restart 重启内嵌服务，断开全部现有连接
func (e *EmbeddedBroker) Restart() error {
	e.server.Close()
	return e.server.Restart()
}

// NumSub 频道在服务端的订阅连接数
func (e *EmbeddedBroker) NumSub(channel string) int {
	return e.server.PubSubNumSub(channel)[channel]
}
