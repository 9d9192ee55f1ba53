package configs

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const fileHeadComment = `# 这个配置文件内的注释是自动生成的，请不要手动修改。
# 需要修改注释时，请在 src/configs/config_comments.go 文件内修改。`

// fieldComment 以点号分隔的键路径定位字段，head 写在字段上方，line 写在行尾
type fieldComment struct {
	path string
	head string
	line string
}

var fieldComments = []fieldComment{
	{path: "interval", line: "# 刷新间隔，例如 1s、500ms，最小 100ms"},
	{path: "row_limit", line: "# 每个面板显示的进程数，运行中可以用 +/- 调整"},
	{path: "debug", line: "# 输出 debug 日志并打印调用位置"},
	{path: "iops", head: "# IOPS 采集需要 root 权限（sudo），没有权限时只显示带宽"},
	{path: "iops.tracer_path", line: "# 磁盘事件跟踪程序，默认 /usr/bin/fs_usage"},
	{path: "iops.tracer_args", line: "# 只输出磁盘 I/O 事件，宽格式"},
	{path: "log.out_put_folder", line: "# 为空时不写日志文件"},
	{path: "log.rotate_days", line: "# 日志按天滚动，最多保留的天数，<=0 表示不清理"},
	{path: "rpc", head: "# HTTP 接口：/metrics（Prometheus）、/api/processes、/api/devices、/api/status"},
	{path: "sentry", head: "# 崩溃上报，DSN 通过环境变量 SENTRY_DSN 提供"},
	{path: "name_cache", head: "# 进程名缓存，以 pid 和进程启动时间为键"},
}

// DecorateConfigNode 给序列化后的配置节点树加上中文注释
func DecorateConfigNode(doc *yaml.Node) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return
	}
	root.HeadComment = fileHeadComment
	for _, fc := range fieldComments {
		key := lookupKey(root, strings.Split(fc.path, "."))
		if key == nil {
			continue
		}
		if fc.head != "" {
			key.HeadComment = fc.head
		}
		if fc.line != "" {
			key.LineComment = fc.line
		}
	}
}

// lookupKey 沿路径逐层查找，返回最后一层的键节点
func lookupKey(mapping *yaml.Node, path []string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if key.Value != path[0] {
			continue
		}
		if len(path) == 1 {
			return key
		}
		if value.Kind != yaml.MappingNode {
			return nil
		}
		return lookupKey(value, path[1:])
	}
	return nil
}
