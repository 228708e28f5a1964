package cli

import (
	"submux/internal/broker"
	"submux/internal/config/schema"
	corelog "submux/internal/core/log"
	"submux/internal/pubsub"
)

// BrokerConfig 把配置映射为代理工厂参数
func BrokerConfig(cfg *schema.Root) *broker.BrokerConfig {
	r := cfg.Broker.Redis
	return &broker.BrokerConfig{
		Type:         broker.BrokerType(cfg.Broker.Type),
		MemoryBuffer: cfg.Broker.MemoryBuffer,
		Redis: &broker.RedisBrokerConfig{
			Addrs:               append([]string(nil), r.Addrs...),
			Username:            r.Username,
			Password:            r.Password.Value(),
			DB:                  r.DB,
			ClusterMode:         r.ClusterMode,
			PoolSize:            r.PoolSize,
			DialTimeout:         r.DialTimeout,
			HealthCheckInterval: r.HealthCheckInterval,
		},
	}
}

// MuxOptions 把配置映射为复用器选项，observer 可为 nil
func MuxOptions(cfg *schema.Root, observer pubsub.Observer) []pubsub.Option {
	m := cfg.Mux
	opts := []pubsub.Option{
		pubsub.WithLogger(corelog.Component("pubsub")),
		pubsub.WithReconnectInterval(m.ReconnectInterval),
	}
	if m.ReadyTimeout > 0 {
		opts = append(opts, pubsub.WithReadyTimeout(m.ReadyTimeout))
	}
	if m.CommandTimeout > 0 {
		opts = append(opts, pubsub.WithCommandTimeout(m.CommandTimeout))
	}
	if m.SentinelPrefix != "" {
		opts = append(opts, pubsub.WithSentinelPrefix(m.SentinelPrefix))
	}
	if m.LazyStart {
		opts = append(opts, pubsub.WithLazyStart())
	}
	if m.Workers > 0 {
		opts = append(opts, pubsub.WithWorkerPool(int32(m.Workers), int32(m.QueueSize)))
	}
	if observer != nil {
		opts = append(opts, pubsub.WithObserver(observer))
	}
	return opts
}

// LogConfig 日志配置映射
func LogConfig(cfg *schema.Root) corelog.Config {
	return corelog.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		File:   cfg.Log.File,
	}
}
