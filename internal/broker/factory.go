package broker

import (
	"context"

	coreerrors "submux/internal/core/errors"
)

// BrokerType 消息代理类型
type BrokerType string

const (
	BrokerTypeMemory   BrokerType = "memory"
	BrokerTypeRedis    BrokerType = "redis"
	BrokerTypeEmbedded BrokerType = "embedded"
)

// BrokerConfig 消息代理配置
type BrokerConfig struct {
	Type BrokerType // 类型：memory / redis / embedded

	// MemoryBuffer 内存会话缓冲
	MemoryBuffer int

	// Redis 配置，embedded 模式下地址被忽略
	Redis *RedisBrokerConfig
}

// NewBroker 创建消息代理
func NewBroker(ctx context.Context, config *BrokerConfig) (Broker, error) {
	if config == nil {
		return nil, coreerrors.New(coreerrors.CodeInvalidParam, "broker config is required")
	}

	switch config.Type {
	case BrokerTypeMemory:
		return NewMemoryBroker(ctx, config.MemoryBuffer), nil

	case BrokerTypeRedis:
		if config.Redis == nil {
			return nil, coreerrors.New(coreerrors.CodeConfigError, "redis config is required for redis broker")
		}
		return NewRedisBroker(ctx, config.Redis)

	case BrokerTypeEmbedded:
		return NewEmbeddedBroker(ctx, config.Redis)

	default:
		return nil, coreerrors.Newf(coreerrors.CodeConfigError, "unsupported broker type: %s", config.Type)
	}
}

// DefaultBrokerConfig 默认配置（单进程内存模式）
func DefaultBrokerConfig() *BrokerConfig {
	return &BrokerConfig{
		Type:         BrokerTypeMemory,
		MemoryBuffer: DefaultMemoryBuffer,
	}
}
