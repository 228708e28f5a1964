package pubsub

import (
	"time"

	corelog "submux/internal/core/log"
)

const (
	// DefaultReadyTimeout 等待握手的默认超时
	DefaultReadyTimeout = 10 * time.Second
	// DefaultReconnectInterval 两次建连之间的最小间隔
	DefaultReconnectInterval = 500 * time.Millisecond
	// DefaultCommandTimeout 尽力而为的订阅/退订命令超时
	DefaultCommandTimeout = 5 * time.Second
	// DefaultSentinelPrefix 哨兵频道前缀
	DefaultSentinelPrefix = "submux-sentinel"
)

type options struct {
	lazy              bool
	readyTimeout      time.Duration
	reconnectInterval time.Duration
	commandTimeout    time.Duration
	sentinelPrefix    string
	executor          Executor
	poolWorkers       int32
	poolQueue         int32
	logger            corelog.Logger
	observer          Observer
}

func defaultOptions() options {
	return options{
		readyTimeout:      DefaultReadyTimeout,
		reconnectInterval: DefaultReconnectInterval,
		commandTimeout:    DefaultCommandTimeout,
		sentinelPrefix:    DefaultSentinelPrefix,
	}
}

// Option Multiplexer 选项
type Option func(*options)

// WithLazyStart 推迟到首次 Subscribe 时才建立物理订阅
func WithLazyStart() Option {
	return func(o *options) { o.lazy = true }
}

// WithReadyTimeout 设置等待握手的超时
func WithReadyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.readyTimeout = d
		}
	}
}

// WithReconnectInterval 设置两次建连之间的最小间隔，0 表示不限速
func WithReconnectInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.reconnectInterval = d
		}
	}
}

// WithCommandTimeout 设置追加订阅/退订命令的超时
func WithCommandTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.commandTimeout = d
		}
	}
}

// WithSentinelPrefix 设置哨兵频道前缀，实际频道名会追加随机后缀
func WithSentinelPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.sentinelPrefix = prefix
		}
	}
}

// WithExecutor 使用调用方提供的执行器，生命周期由调用方负责
func WithExecutor(e Executor) Option {
	return func(o *options) { o.executor = e }
}

// WithWorkerPool 使用内部有界执行器，随 Multiplexer 关闭
func WithWorkerPool(workers, queueSize int32) Option {
	return func(o *options) {
		o.poolWorkers = workers
		o.poolQueue = queueSize
	}
}

// WithLogger 设置日志
func WithLogger(l corelog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver 设置运行状态观察者
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}
