package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"submux/internal/core/dispose"
)

// 日志格式与输出
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatAuto = "auto"

	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// 常用字段名
const (
	FieldComponent = "component"
	FieldChannel   = "channel"
	FieldListener  = "listener"
	FieldSession   = "session"
)

// Config 日志配置
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Output string `json:"output" yaml:"output"`
	File   string `json:"file" yaml:"file"`
}

// Init 根据配置构建 logrus 实例并设置为默认 Logger
// 同时把 dispose 包的日志钩子接到默认 Logger 上
// 返回的 io.Closer 负责关闭日志文件（输出到终端时为空操作）
func Init(cfg Config) (io.Closer, error) {
	l := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
		}
		level = parsed
	}
	l.SetLevel(level)

	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	switch strings.ToLower(cfg.Output) {
	case "", OutputStdout:
	case OutputStderr:
		out = os.Stderr
	case OutputFile:
		if cfg.File == "" {
			return nil, fmt.Errorf("log output is file but no file path given")
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	default:
		return nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}
	l.SetOutput(out)

	format := strings.ToLower(cfg.Format)
	if format == "" || format == FormatAuto {
		format = FormatJSON
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = FormatText
		}
	}
	switch format {
	case FormatText:
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	case FormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		_ = closer.Close()
		return nil, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	SetDefaultFromLogrus(l)
	dispose.SetLogger(disposeHook)
	return closer, nil
}

func disposeHook(level string, format string, args ...interface{}) {
	logger := Component("dispose")
	switch level {
	case "debug":
		logger.Debugf(format, args...)
	case "info":
		logger.Infof(format, args...)
	case "warn":
		logger.Warnf(format, args...)
	default:
		logger.Errorf(format, args...)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
