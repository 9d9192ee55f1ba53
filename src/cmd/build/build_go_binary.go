package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	constsPath = "github.com/diskpulse/diskpulse/src/consts"
	mainPkg    = "./src/cmd/diskpulse"
	binDir     = "bin"
)

// target 一个 GOOS/GOARCH 组合
type target struct {
	OS   string
	Arch string
}

func (t target) String() string { return t.OS + "/" + t.Arch }

// binaryName diskpulse-<os>-<arch>，windows 加 .exe
func (t target) binaryName() string {
	name := "diskpulse-" + t.OS + "-" + t.Arch
	if t.OS == "windows" {
		name += ".exe"
	}
	return name
}

// releaseTargets IOPS 只在 macOS 上可用，linux 只有带宽和设备统计
var releaseTargets = []target{
	{OS: "darwin", Arch: "arm64"},
	{OS: "darwin", Arch: "amd64"},
	{OS: "linux", Arch: "amd64"},
	{OS: "linux", Arch: "arm64"},
}

// hostTarget 当前平台，可以用 PLATFORM/ARCH 环境变量覆盖
func hostTarget() target {
	t := target{OS: runtime.GOOS, Arch: runtime.GOARCH}
	if v := os.Getenv("PLATFORM"); v != "" {
		t.OS = v
	}
	if v := os.Getenv("ARCH"); v != "" {
		t.Arch = v
	}
	return t
}

func parseTarget(s string) (target, error) {
	osName, arch, ok := strings.Cut(s, "/")
	if !ok || osName == "" || arch == "" {
		return target{}, fmt.Errorf("无效的目标平台 %q，格式为 os/arch", s)
	}
	return target{OS: osName, Arch: arch}, nil
}

// buildInfo 链接阶段注入的版本信息
type buildInfo struct {
	Version   string
	Commit    string
	Time      time.Time
	SentryDSN string
}

// currentBuildInfo 版本号优先取环境变量 APP_VERSION，其次是 git tag
func currentBuildInfo() buildInfo {
	version := os.Getenv("APP_VERSION")
	if version == "" {
		version = gitOutput("describe", "--tags", "--always")
	}
	return buildInfo{
		Version:   version,
		Commit:    gitOutput("rev-parse", "HEAD"),
		Time:      time.Now(),
		SentryDSN: os.Getenv("SENTRY_DSN"),
	}
}

// ldflags release 构建去掉符号表
func (b buildInfo) ldflags(strip bool) string {
	var parts []string
	if strip {
		parts = append(parts, "-s", "-w")
	}
	set := func(name, value string) {
		parts = append(parts, "-X", name+"="+value)
	}
	set(constsPath+".BuildTime", strconv.FormatInt(b.Time.Unix(), 10))
	set(constsPath+".AppVersion", b.Version)
	set(constsPath+".GitHash", b.Commit)
	if b.SentryDSN != "" {
		set("main.SentryDSN", b.SentryDSN)
	}
	return strings.Join(parts, " ")
}

// goBuildArgs 组装 go build 参数
func goBuildArgs(info buildInfo, dev bool, output string) []string {
	args := []string{"go", "build"}
	if dev {
		args = append(args, "-tags", "dev", "-gcflags=all=-N -l")
	} else {
		args = append(args, "-tags", "release", "-trimpath")
	}
	return append(args, "-ldflags="+info.ldflags(!dev), "-o", output, mainPkg)
}

// buildTarget 交叉编译一个目标到 bin/ 下，返回输出路径
func buildTarget(info buildInfo, t target, dev bool) (string, error) {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return "", err
	}
	output := filepath.Join(binDir, t.binaryName())
	args := goBuildArgs(info, dev, output)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), "GOOS="+t.OS, "GOARCH="+t.Arch, "CGO_ENABLED=0")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	log.WithFields(log.Fields{
		"target":  t.String(),
		"version": info.Version,
		"go":      runtime.Version(),
	}).Info("building diskpulse")
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("go build %s: %w", t, err)
	}
	return output, nil
}

func gitOutput(args ...string) string {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}
