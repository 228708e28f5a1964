// Package cli 提供 submux 命令行
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"submux/internal/config/loader"
	"submux/internal/config/schema"
	corelog "submux/internal/core/log"
	"submux/internal/version"
)

// globalOptions 全局标志
type globalOptions struct {
	configFile string
	brokerType string
	redisAddrs []string
	logLevel   string
	logFile    string

	cfg       *schema.Root
	logCloser io.Closer
}

// NewRootCommand 构建根命令
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "submux",
		Short: "submux - resilient Redis pub/sub multiplexer",
		Long: `submux shares one physical Redis subscription between any number of
in-process listeners and re-establishes it after connection loss.

Quick Start:
  submux listen news alerts             Print messages from two channels
  submux publish news "hello"           Publish a message
  submux listen --broker embedded demo  Run against an in-process Redis`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if opts.logCloser != nil {
				return opts.logCloser.Close()
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Config file path")
	flags.StringVarP(&opts.brokerType, "broker", "b", "", "Broker type: memory/redis/embedded")
	flags.StringSliceVar(&opts.redisAddrs, "redis-addr", nil, "Redis address (repeatable)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug/info/warn/error")
	flags.StringVar(&opts.logFile, "log", "", "Log file path")

	rootCmd.AddCommand(newListenCommand(opts))
	rootCmd.AddCommand(newPublishCommand(opts))
	rootCmd.AddCommand(newConfigCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute 执行根命令
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			corelog.Errorf("FATAL: main goroutine panic recovered: %v", r)
			fmt.Fprintf(os.Stderr, "\nPANIC: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(debug.Stack()))
			os.Exit(2)
		}
	}()

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// load 加载配置并初始化日志，命令行标志优先级最高
func (o *globalOptions) load(cmd *cobra.Command) error {
	switch cmd.Name() {
	case "version", "help":
		return nil
	}

	flags := cmd.Flags()
	cfg, err := loader.NewLoaderBuilder().
		WithConfigFile(o.configFile).
		WithOverride(func(cfg *schema.Root) error {
			if flags.Changed("broker") {
				cfg.Broker.Type = o.brokerType
			}
			if flags.Changed("redis-addr") {
				cfg.Broker.Redis.Addrs = o.redisAddrs
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = o.logLevel
			}
			if flags.Changed("log") {
				cfg.Log.Output = corelog.OutputFile
				cfg.Log.File = o.logFile
			}
			return nil
		}).
		Build().
		Load()
	if err != nil {
		return err
	}

	closer, err := corelog.Init(LogConfig(cfg))
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logCloser = closer
	return nil
}
