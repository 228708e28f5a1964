package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addrs               []string      `yaml:"addrs" json:"addrs"`
	Username            string        `yaml:"username" json:"username"`
	Password            Secret        `yaml:"password" json:"password"`
	DB                  int           `yaml:"db" json:"db"`
	ClusterMode         bool          `yaml:"cluster_mode" json:"cluster_mode"`
	PoolSize            int           `yaml:"pool_size" json:"pool_size"`
	DialTimeout         time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// String is a log-safe summary; the password only shows as set or unset
func (r RedisConfig) String() string {
	mode := "standalone"
	if r.ClusterMode {
		mode = "cluster"
	}
	auth := "none"
	switch {
	case r.Username != "" && r.Password.IsSet():
		auth = r.Username + ":" + r.Password.String()
	case r.Password.IsSet():
		auth = r.Password.String()
	}
	return fmt.Sprintf("%s %s db=%d auth=%s", mode, strings.Join(r.Addrs, ","), r.DB, auth)
}

const secretMask = "******"

// Secret holds the Redis password. It never prints or serializes in clear text.
type Secret string

// String returns a fixed mask so the length does not leak either
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return secretMask
}

// Value returns the clear-text password for the Redis client
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether a password was configured
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON writes the mask
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalYAML writes the mask
func (s Secret) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML reads the clear-text value from a config file
func (s *Secret) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("redis password must be a string, line %d", node.Line)
	}
	*s = Secret(node.Value)
	return nil
}
