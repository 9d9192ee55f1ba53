package sentry

import (
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
)

const redacted = "[REDACTED]"

var sensitiveKeywords = []string{
	"token", "password", "passwd", "secret", "key", "auth", "credential", "dsn",
}

var (
	// 用户主目录，例如 /Users/alice/...、/home/alice/...
	homeDirPattern = regexp.MustCompile(`(/Users|/home|C:\\Users)[/\\][^/\\\s]+`)
	// keyword=value 或 keyword: value
	keyValuePatterns = compileKeyValuePatterns(sensitiveKeywords)
)

func compileKeyValuePatterns(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, keyword := range keywords {
		patterns = append(patterns, regexp.MustCompile(`(?i)(`+regexp.QuoteMeta(keyword)+`)\s*[=:]\s*[^\s,}"\]]+`))
	}
	return patterns
}

// beforeSendHook 在发送事件前清理敏感数据
func beforeSendHook(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.Message = sanitizeString(event.Message)

	for i := range event.Exception {
		event.Exception[i].Value = sanitizeString(event.Exception[i].Value)
		if st := event.Exception[i].Stacktrace; st != nil {
			for j := range st.Frames {
				st.Frames[j].Vars = sanitizeMap(st.Frames[j].Vars)
				st.Frames[j].AbsPath = sanitizeString(st.Frames[j].AbsPath)
			}
		}
	}

	event.Extra = sanitizeMap(event.Extra)
	for key, ctxData := range event.Contexts {
		event.Contexts[key] = sanitizeMap(ctxData)
	}

	// 进程名和命令行可能包含用户目录
	for key, value := range event.Tags {
		if isSensitiveKey(key) {
			event.Tags[key] = redacted
		} else {
			event.Tags[key] = sanitizeString(value)
		}
	}

	if event.Request != nil {
		event.Request.URL = sanitizeString(event.Request.URL)
		event.Request.QueryString = sanitizeString(event.Request.QueryString)
		event.Request.Cookies = ""
	}
	return event
}

// sanitizeString 清理字符串中的敏感数据
func sanitizeString(s string) string {
	if s == "" {
		return s
	}
	result := homeDirPattern.ReplaceAllString(s, "$1/"+redacted)
	for _, p := range keyValuePatterns {
		result = p.ReplaceAllString(result, "$1="+redacted)
	}
	return result
}

// sanitizeMap 清理 map 中的敏感数据，嵌套 map 递归处理
func sanitizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	result := make(map[string]interface{}, len(m))
	for key, value := range m {
		switch v := value.(type) {
		case string:
			if isSensitiveKey(key) {
				result[key] = redacted
			} else {
				result[key] = sanitizeString(v)
			}
		case map[string]interface{}:
			result[key] = sanitizeMap(v)
		default:
			if isSensitiveKey(key) {
				result[key] = redacted
			} else {
				result[key] = v
			}
		}
	}
	return result
}

// isSensitiveKey 检查键名是否为敏感键
func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}
