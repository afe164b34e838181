package debug

import (
	"encoding/json"
	"os"

	"github.com/mcp2api/internal/logging"
	"go.uber.org/zap"
)

// IsDebugEnabled 是否启用调试模式
var IsDebugEnabled bool

// InitDebug 初始化调试模式
func InitDebug() {
	debugEnv := os.Getenv("DEBUG")
	IsDebugEnabled = debugEnv == "true" || debugEnv == "1" || debugEnv == "yes"

	if IsDebugEnabled {
		logging.Logger.Info("调试模式已启用", zap.String("DEBUG", debugEnv))
	}
}

// LogRequest 记录入站请求详情
func LogRequest(method, path string, headers map[string]string, body []byte) {
	if !IsDebugEnabled {
		return
	}

	logging.Logger.Debug("请求详情",
		zap.String("method", method),
		zap.String("path", path),
		zap.Any("headers", headers),
		zap.String("body", prettyBody(body)),
	)
}

// LogResponse 记录出站响应详情
func LogResponse(statusCode int, headers map[string]string, body []byte) {
	if !IsDebugEnabled {
		return
	}

	logging.Logger.Debug("响应详情",
		zap.Int("status", statusCode),
		zap.Any("headers", headers),
		zap.String("body", prettyBody(body)),
	)
}

// LogHTTPCall 记录上游HTTP调用详情
func LogHTTPCall(method, url string, status int, body []byte) {
	if !IsDebugEnabled {
		return
	}

	logging.Logger.Debug("上游HTTP调用",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", status),
		zap.String("body", prettyBody(body)),
	)
}

// LogError 记录错误详情
func LogError(message string, err error) {
	if !IsDebugEnabled {
		return
	}

	logging.Logger.Debug(message, zap.Error(err))
}

// prettyBody 尽量格式化JSON正文，失败则原样返回
func prettyBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if pretty, err := json.MarshalIndent(decoded, "", "  "); err == nil {
			return string(pretty)
		}
	}
	return string(body)
}
