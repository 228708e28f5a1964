package source

import (
	"time"

	"submux/internal/config/schema"
)

// DefaultSource provides default configuration values
type DefaultSource struct{}

// NewDefaultSource creates a new DefaultSource
func NewDefaultSource() *DefaultSource {
	return &DefaultSource{}
}

// Name returns the source name
func (s *DefaultSource) Name() string {
	return "defaults"
}

// Priority returns the source priority
func (s *DefaultSource) Priority() int {
	return PriorityDefaults
}

// LoadInto loads default values into the configuration
func (s *DefaultSource) LoadInto(cfg *schema.Root) error {
	// Broker defaults
	cfg.Broker.Type = schema.BrokerMemory
	cfg.Broker.MemoryBuffer = 1024
	cfg.Broker.Redis.Addrs = []string{"localhost:6379"}
	cfg.Broker.Redis.PoolSize = 10
	cfg.Broker.Redis.DialTimeout = 5 * time.Second
	cfg.Broker.Redis.HealthCheckInterval = 30 * time.Second

	// Mux defaults
	cfg.Mux.ReadyTimeout = 10 * time.Second
	cfg.Mux.ReconnectInterval = 500 * time.Millisecond
	cfg.Mux.CommandTimeout = 5 * time.Second
	cfg.Mux.SentinelPrefix = "submux-sentinel"
	cfg.Mux.QueueSize = 256

	// Metrics defaults
	cfg.Metrics.Listen = "127.0.0.1:9464"
	cfg.Metrics.Path = "/metrics"
	cfg.Metrics.Namespace = "submux"

	// Log defaults
	cfg.Log.Level = "info"
	cfg.Log.Format = "auto"
	cfg.Log.Output = "stderr"

	return nil
}
