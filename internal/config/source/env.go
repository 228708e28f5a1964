package source

import (
	"os"
	"strconv"
	"strings"
	"time"

	"submux/internal/config/schema"
)

// EnvSource loads configuration from environment variables
type EnvSource struct {
	prefix string
}

// NewEnvSource creates a new EnvSource with the specified prefix
func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{
		prefix: prefix,
	}
}

// Name returns the source name
func (s *EnvSource) Name() string {
	return "env"
}

// Priority returns the source priority
func (s *EnvSource) Priority() int {
	return PriorityEnv
}

// LoadInto loads environment variables into the config structure
func (s *EnvSource) LoadInto(cfg *schema.Root) error {
	// Broker
	s.loadString("BROKER_TYPE", &cfg.Broker.Type)
	s.loadInt("BROKER_MEMORY_BUFFER", &cfg.Broker.MemoryBuffer)
	s.loadStringSlice("REDIS_ADDRS", &cfg.Broker.Redis.Addrs)
	s.loadString("REDIS_USERNAME", &cfg.Broker.Redis.Username)
	s.loadSecret("REDIS_PASSWORD", &cfg.Broker.Redis.Password)
	s.loadInt("REDIS_DB", &cfg.Broker.Redis.DB)
	s.loadBool("REDIS_CLUSTER_MODE", &cfg.Broker.Redis.ClusterMode)
	s.loadInt("REDIS_POOL_SIZE", &cfg.Broker.Redis.PoolSize)
	s.loadDuration("REDIS_DIAL_TIMEOUT", &cfg.Broker.Redis.DialTimeout)
	s.loadDuration("REDIS_HEALTH_CHECK_INTERVAL", &cfg.Broker.Redis.HealthCheckInterval)

	// Mux
	s.loadBool("MUX_LAZY_START", &cfg.Mux.LazyStart)
	s.loadDuration("MUX_READY_TIMEOUT", &cfg.Mux.ReadyTimeout)
	s.loadDuration("MUX_RECONNECT_INTERVAL", &cfg.Mux.ReconnectInterval)
	s.loadDuration("MUX_COMMAND_TIMEOUT", &cfg.Mux.CommandTimeout)
	s.loadString("MUX_SENTINEL_PREFIX", &cfg.Mux.SentinelPrefix)
	s.loadInt("MUX_WORKERS", &cfg.Mux.Workers)
	s.loadInt("MUX_QUEUE_SIZE", &cfg.Mux.QueueSize)

	// Metrics
	s.loadBool("METRICS_ENABLED", &cfg.Metrics.Enabled)
	s.loadString("METRICS_LISTEN", &cfg.Metrics.Listen)
	s.loadString("METRICS_PATH", &cfg.Metrics.Path)
	s.loadString("METRICS_NAMESPACE", &cfg.Metrics.Namespace)

	// Log
	s.loadString("LOG_LEVEL", &cfg.Log.Level)
	s.loadString("LOG_FORMAT", &cfg.Log.Format)
	s.loadString("LOG_OUTPUT", &cfg.Log.Output)
	s.loadString("LOG_FILE", &cfg.Log.File)

	return nil
}

// getEnv gets environment variable with the configured prefix
func (s *EnvSource) getEnv(key string) (string, bool) {
	prefixedKey := s.prefix + "_" + key
	if v := os.Getenv(prefixedKey); v != "" {
		return v, true
	}
	return "", false
}

func (s *EnvSource) loadString(key string, target *string) {
	if v, ok := s.getEnv(key); ok {
		*target = v
	}
}

func (s *EnvSource) loadSecret(key string, target *schema.Secret) {
	if v, ok := s.getEnv(key); ok {
		*target = schema.Secret(v)
	}
}

func (s *EnvSource) loadBool(key string, target *bool) {
	if v, ok := s.getEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func (s *EnvSource) loadInt(key string, target *int) {
	if v, ok := s.getEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func (s *EnvSource) loadDuration(key string, target *time.Duration) {
	if v, ok := s.getEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

func (s *EnvSource) loadStringSlice(key string, target *[]string) {
	if v, ok := s.getEnv(key); ok {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}
