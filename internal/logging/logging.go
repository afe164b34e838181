package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 全局日志记录器
// stdio模式下stdout属于MCP传输层，因此日志必须写入文件
var Logger *zap.Logger

// InitLogger 初始化日志，日志文件按可执行文件名和进程ID命名
func InitLogger() error {
	// 获取可执行文件路径
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("无法获取可执行文件路径: %w", err)
	}

	// 获取可执行文件所在目录
	exeDir := filepath.Dir(exePath)

	// 如果可执行文件在 bin 目录下，使用上级目录
	if filepath.Base(exeDir) == "bin" {
		exeDir = filepath.Dir(exeDir)
	}

	// 创建日志目录
	logDir := filepath.Join(exeDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("无法创建日志目录: %w", err)
	}

	// 获取可执行文件名(不带路径和扩展名)
	exeName := filepath.Base(exePath)
	exeName = exeName[:len(exeName)-len(filepath.Ext(exeName))]

	// 生成按可执行文件名和进程ID命名的日志文件名
	logFile := filepath.Join(logDir, fmt.Sprintf("%s_pid_%d.log", exeName, os.Getpid()))

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("无法创建日志文件: %w", err)
	}

	level := zapcore.InfoLevel
	if debugEnabled() {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(file),
		level,
	)

	Logger = zap.New(core, zap.AddCaller())
	return nil
}

// InitTestLogger 测试中使用的空日志记录器
func InitTestLogger() {
	Logger = zap.NewNop()
}

// Sync 刷新缓冲的日志条目
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

func debugEnabled() bool {
	v := os.Getenv("DEBUG")
	return v == "true" || v == "1" || v == "yes"
}
