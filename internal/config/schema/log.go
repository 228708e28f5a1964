package schema

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug/info/warn/error
	Format string `yaml:"format" json:"format"` // text/json/auto
	Output string `yaml:"output" json:"output"` // stdout/stderr/file
	File   string `yaml:"file" json:"file"`     // log file path when output is file
}
