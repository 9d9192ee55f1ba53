package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/alecthomas/kingpin"
	log "github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		version string
		targets []string
	)
	app := kingpin.New("build", "diskpulse 构建工具")

	dev := app.Command("dev", "构建当前平台的调试版本")
	dev.Flag("version", "自定义版本号").StringVar(&version)
	dev.Action(func(*kingpin.ParseContext) error {
		info := currentBuildInfo()
		if version != "" {
			info.Version = version
		}
		_, err := buildTarget(info, hostTarget(), true)
		return err
	})

	release := app.Command("release", "构建发布版本")
	release.Flag("target", "目标平台 os/arch，可重复，默认构建全部发布平台").StringsVar(&targets)
	release.Action(func(*kingpin.ParseContext) error {
		return releaseBuild(targets)
	})

	app.Command("test", "运行测试").Action(func(*kingpin.ParseContext) error {
		return execCommand("go", "test", "-race", "-cover", "-coverprofile=coverage.txt", "./src/...")
	})
	app.Command("generate", "go generate ./...").Action(func(*kingpin.ParseContext) error {
		return execCommand("go", "generate", "./...")
	})
	app.Command("clean", "清理构建产物").Action(func(*kingpin.ParseContext) error {
		return clean(binDir, "coverage.txt")
	})

	if _, err := app.Parse(args); err != nil {
		log.WithError(err).Error("构建失败")
		return 1
	}
	return 0
}

func releaseBuild(specs []string) error {
	list := releaseTargets
	if len(specs) > 0 {
		list = make([]target, 0, len(specs))
		for _, s := range specs {
			t, err := parseTarget(s)
			if err != nil {
				return err
			}
			list = append(list, t)
		}
	}
	info := currentBuildInfo()
	for _, t := range list {
		out, err := buildTarget(info, t, false)
		if err != nil {
			return err
		}
		fmt.Println(out)
	}
	return nil
}

func clean(paths ...string) error {
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("删除 %s 失败: %w", p, err)
		}
		fmt.Println("已删除:", p)
	}
	return nil
}

func execCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	log.Info(cmd.String())
	return cmd.Run()
}
