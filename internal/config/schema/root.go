// Package schema defines configuration structure types
package schema

import "time"

// Root is the top-level configuration structure
type Root struct {
	Broker  BrokerConfig  `yaml:"broker" json:"broker"`
	Mux     MuxConfig     `yaml:"mux" json:"mux"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// Broker types
const (
	BrokerMemory   = "memory"
	BrokerRedis    = "redis"
	BrokerEmbedded = "embedded"
)

// BrokerConfig selects and configures the connection source
type BrokerConfig struct {
	Type         string      `yaml:"type" json:"type"`                   // memory/redis/embedded
	MemoryBuffer int         `yaml:"memory_buffer" json:"memory_buffer"` // per-session queue for the memory broker
	Redis        RedisConfig `yaml:"redis" json:"redis"`
}

// MuxConfig contains multiplexer settings
type MuxConfig struct {
	LazyStart         bool          `yaml:"lazy_start" json:"lazy_start"`
	ReadyTimeout      time.Duration `yaml:"ready_timeout" json:"ready_timeout"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval" json:"reconnect_interval"`
	CommandTimeout    time.Duration `yaml:"command_timeout" json:"command_timeout"`
	SentinelPrefix    string        `yaml:"sentinel_prefix" json:"sentinel_prefix"`
	Workers           int           `yaml:"workers" json:"workers"`       // 0 = goroutine per delivery
	QueueSize         int           `yaml:"queue_size" json:"queue_size"` // worker pool queue
}

// MetricsConfig contains Prometheus exporter settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Listen    string `yaml:"listen" json:"listen"`
	Path      string `yaml:"path" json:"path"`
	Namespace string `yaml:"namespace" json:"namespace"`
}
