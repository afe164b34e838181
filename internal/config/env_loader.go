package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnvFile 加载 .env 文件并设置环境变量
// 已经存在的环境变量不会被覆盖
func LoadEnvFile(envPath string) error {
	// 如果路径为空，尝试自动查找 .env 文件
	if envPath == "" {
		envPath = findEnvFile()
		if envPath == "" {
			// 没有找到 .env 文件，不是错误
			return nil
		}
	}

	// 检查文件是否存在
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return fmt.Errorf("环境变量文件不存在: %s", envPath)
	}

	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("加载环境变量文件失败: %w", err)
	}

	return nil
}

// findEnvFile 查找 .env 文件
func findEnvFile() string {
	// 获取可执行文件路径
	exePath, err := os.Executable()
	if err != nil {
		exePath = ""
	}

	// 可能的 .env 文件路径
	possiblePaths := []string{
		".env",         // 当前工作目录
		"configs/.env", // configs 目录
	}

	// 如果可执行文件路径可用，添加基于可执行文件的路径
	if exePath != "" {
		exeDir := filepath.Dir(exePath)
		possiblePaths = append(possiblePaths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "configs", ".env"),
			filepath.Join(filepath.Dir(exeDir), ".env"),
			filepath.Join(filepath.Dir(exeDir), "configs", ".env"),
		)
	}

	// 检查每个可能的路径
	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
