// Package validator provides configuration validation
package validator

import (
	"fmt"
	"net"
	"strings"
	"time"

	"submux/internal/config/schema"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string // Field path (e.g., "mux.ready_timeout")
	Value   string // Current value (masked for secrets)
	Message string // Error message
	Hint    string // Fix suggestion
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains all validation errors
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid returns true if there are no validation errors
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a formatted error message
func (r *ValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n\n")

	for i, err := range r.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Field))
		if err.Value != "" {
			sb.WriteString(fmt.Sprintf("     Current value: %s\n", err.Value))
		}
		sb.WriteString(fmt.Sprintf("     Error: %s\n", err.Message))
		if err.Hint != "" {
			sb.WriteString(fmt.Sprintf("     Hint: %s\n", err.Hint))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// AddError adds a validation error
func (r *ValidationResult) AddError(field, value, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Hint:    hint,
	})
}

// Validator validates configuration
type Validator struct {
	rules []ValidationRule
}

// ValidationRule is a function that validates configuration
type ValidationRule func(cfg *schema.Root, result *ValidationResult)

// NewValidator creates a new Validator with default rules
func NewValidator() *Validator {
	v := &Validator{
		rules: make([]ValidationRule, 0),
	}

	v.AddRule(validateBroker)
	v.AddRule(validateMux)
	v.AddRule(validateMetrics)
	v.AddRule(validateLog)

	return v
}

// AddRule adds a validation rule
func (v *Validator) AddRule(rule ValidationRule) {
	v.rules = append(v.rules, rule)
}

// Validate validates the configuration
func (v *Validator) Validate(cfg *schema.Root) *ValidationResult {
	result := &ValidationResult{
		Errors: make([]ValidationError, 0),
	}

	for _, rule := range v.rules {
		rule(cfg, result)
	}

	return result
}

// ValidateConfig is a convenience function that creates a validator and validates
func ValidateConfig(cfg *schema.Root) *ValidationResult {
	return NewValidator().Validate(cfg)
}

// ============================================================================
// Validation Rules
// ============================================================================

func validateBroker(cfg *schema.Root, result *ValidationResult) {
	switch cfg.Broker.Type {
	case schema.BrokerMemory:
		if cfg.Broker.MemoryBuffer < 1 {
			result.AddError("broker.memory_buffer",
				fmt.Sprintf("%d", cfg.Broker.MemoryBuffer),
				"memory_buffer must be at least 1",
				"Set a positive value, e.g., 1024")
		}
	case schema.BrokerRedis:
		redis := cfg.Broker.Redis
		if len(redis.Addrs) == 0 {
			result.AddError("broker.redis.addrs", "",
				"at least one redis address is required",
				"Set broker.redis.addrs or SUBMUX_REDIS_ADDRS")
		}
		for _, addr := range redis.Addrs {
			validateHostPort("broker.redis.addrs", addr, result)
		}
		if redis.ClusterMode && redis.DB != 0 {
			result.AddError("broker.redis.db",
				fmt.Sprintf("%d", redis.DB),
				"db must be 0 in cluster mode",
				"Remove db or disable cluster_mode")
		}
		fallthrough
	case schema.BrokerEmbedded:
		redis := cfg.Broker.Redis
		if redis.PoolSize < 1 {
			result.AddError("broker.redis.pool_size",
				fmt.Sprintf("%d", redis.PoolSize),
				"pool_size must be at least 1",
				"Set a positive value")
		}
		validateMinDuration("broker.redis.health_check_interval", redis.HealthCheckInterval, time.Second, result)
	default:
		result.AddError("broker.type", cfg.Broker.Type,
			"unsupported broker type",
			"Use one of: memory, redis, embedded")
	}
}

func validateMux(cfg *schema.Root, result *ValidationResult) {
	validateMinDuration("mux.ready_timeout", cfg.Mux.ReadyTimeout, 100*time.Millisecond, result)
	validateMinDuration("mux.command_timeout", cfg.Mux.CommandTimeout, 100*time.Millisecond, result)

	if cfg.Mux.ReconnectInterval < 0 {
		result.AddError("mux.reconnect_interval", cfg.Mux.ReconnectInterval.String(),
			"reconnect_interval must not be negative",
			"Use 0 to disable reconnect throttling")
	}
	if cfg.Mux.Workers < 0 {
		result.AddError("mux.workers", fmt.Sprintf("%d", cfg.Mux.Workers),
			"workers must not be negative",
			"Use 0 for a goroutine per delivery")
	}
	if cfg.Mux.Workers > 0 && cfg.Mux.QueueSize < 0 {
		result.AddError("mux.queue_size", fmt.Sprintf("%d", cfg.Mux.QueueSize),
			"queue_size must not be negative", "")
	}
	if strings.TrimSpace(cfg.Mux.SentinelPrefix) == "" {
		result.AddError("mux.sentinel_prefix", "",
			"sentinel_prefix must not be empty",
			"Set a prefix unlikely to collide with application channels")
	}
}

func validateMetrics(cfg *schema.Root, result *ValidationResult) {
	if !cfg.Metrics.Enabled {
		return
	}
	validateHostPort("metrics.listen", cfg.Metrics.Listen, result)
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		result.AddError("metrics.path", cfg.Metrics.Path,
			"path must start with /",
			"e.g., /metrics")
	}
}

func validateLog(cfg *schema.Root, result *ValidationResult) {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		result.AddError("log.level", cfg.Log.Level,
			"invalid log level",
			"Use one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"text": true, "json": true, "auto": true, "": true}
	if !validFormats[strings.ToLower(cfg.Log.Format)] {
		result.AddError("log.format", cfg.Log.Format,
			"invalid log format",
			"Use one of: text, json, auto")
	}

	switch strings.ToLower(cfg.Log.Output) {
	case "", "stdout", "stderr":
	case "file":
		if cfg.Log.File == "" {
			result.AddError("log.file", "",
				"file is required when output is file",
				"Set log.file or SUBMUX_LOG_FILE")
		}
	default:
		result.AddError("log.output", cfg.Log.Output,
			"invalid log output",
			"Use one of: stdout, stderr, file")
	}
}

// ============================================================================
// Helpers
// ============================================================================

func validateHostPort(field, addr string, result *ValidationResult) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		result.AddError(field, addr,
			"address must be in host:port form",
			"e.g., 127.0.0.1:6379")
	}
}

func validateMinDuration(field string, d, minimum time.Duration, result *ValidationResult) {
	if d < minimum {
		result.AddError(field, d.String(),
			fmt.Sprintf("%s must be at least %s", field[strings.LastIndex(field, ".")+1:], minimum),
			"")
	}
}
