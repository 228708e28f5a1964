// Package broker 提供物理订阅连接来源（pubsub.Source）与发布能力
package broker

import (
	"context"

	"submux/internal/pubsub"
)

// Publisher 发布消息
type Publisher interface {
	// Publish 发布消息到频道，返回收到消息的订阅连接数
	Publish(ctx context.Context, channel string, message []byte) (int64, error)
}

// Broker 消息代理：既是订阅连接来源，也能发布
type Broker interface {
	pubsub.Source
	Publisher

	// Ping 检查后端可用
	Ping(ctx context.Context) error

	// Close 关闭代理，已借出的会话随之结束
	Close() error
}

var (
	_ Broker = (*MemoryBroker)(nil)
	_ Broker = (*RedisBroker)(nil)
)
