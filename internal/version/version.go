// Package version 版本信息，构建时通过 -ldflags 注入
package version

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// Version 版本号，默认 "dev"，未注入时依次尝试 VERSION 文件与模块构建信息
	Version = "dev"

	// BuildTime 构建时间
	BuildTime = ""

	// GitCommit Git 提交哈希
	GitCommit = ""
)

func init() {
	if Version == "dev" {
		Version = resolveVersion(readVersionFile, debug.ReadBuildInfo)
	}
}

// resolveVersion 按 VERSION 文件、模块版本的顺序取第一个可用值
func resolveVersion(readFile func(string) ([]byte, error), buildInfo func() (*debug.BuildInfo, bool)) string {
	for _, path := range []string{"VERSION", "../VERSION"} {
		if data, err := readFile(path); err == nil {
			if v := normalize(string(data)); v != "" {
				return v
			}
		}
	}
	if info, ok := buildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return normalize(info.Main.Version)
	}
	return "dev"
}

func readVersionFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func normalize(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// GetVersion 完整版本信息
func GetVersion() string {
	v := GetShortVersion()
	if BuildTime != "" {
		v += " (built " + BuildTime + ")"
	}
	if GitCommit != "" {
		commit := GitCommit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		v += " commit " + commit
	}
	return v
}

// GetShortVersion 简短版本号
func GetShortVersion() string {
	return "v" + Version
}

// Platform 运行平台，如 linux/amd64 go1.24
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH + " " + runtime.Version()
}
