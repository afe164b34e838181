package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// API类型选择器的合法取值
const (
	APITypeOpenAPI = "openapi"
	APITypePostman = "postman"
)

// Config 表示整个配置文件
type Config struct {
	Server ServerConfig `yaml:"server"`
	Global GlobalConfig `yaml:"global"`
	API    APIConfig    `yaml:"api"`
}

// ServerConfig 表示服务器配置
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	Mode string `yaml:"mode"` // "stdio"、"sse" 或 "websocket"
}

// GlobalConfig 表示全局设置
type GlobalConfig struct {
	Timeout        time.Duration     `yaml:"timeout"`
	DefaultHeaders map[string]string `yaml:"default_headers"`
}

// APIConfig 表示目标API的配置
type APIConfig struct {
	Type        string           `yaml:"type"`        // "openapi" 或 "postman"
	SpecSource  string           `yaml:"spec"`        // 规范的URL或本地路径
	Environment string           `yaml:"environment"` // Postman环境文件，可选
	BaseURL     string           `yaml:"base_url"`    // 覆盖规范中声明的服务器地址
	Auth        *AuthConfig      `yaml:"auth"`        // 默认认证配置，可选
	Transform   *TransformConfig `yaml:"transform"`   // 响应转换配置，可选
}

// AuthConfig 表示一份凭证配置
// 同一结构体既用于配置文件中的默认认证，也用于工具调用时传入的auth参数
type AuthConfig struct {
	Type       string `yaml:"type" json:"type"` // "basic"、"bearer"、"apiKey"、"oauth2"
	Username   string `yaml:"username" json:"username,omitempty"`
	Password   string `yaml:"password" json:"password,omitempty"`
	Token      string `yaml:"token" json:"token,omitempty"`
	APIKey     string `yaml:"api_key" json:"apiKey,omitempty"`
	APIKeyName string `yaml:"api_key_name" json:"apiKeyName,omitempty"`
	APIKeyIn   string `yaml:"api_key_in" json:"apiKeyIn,omitempty"` // "header" 或 "query"

	// 环境变量间接引用，加载配置时解析到上面的字面字段
	TokenEnv    string `yaml:"token_env" json:"-"`
	KeyEnv      string `yaml:"key_env" json:"-"`
	UsernameEnv string `yaml:"username_env" json:"-"`
	PasswordEnv string `yaml:"password_env" json:"-"`
}

// TransformConfig 表示响应转换配置
type TransformConfig struct {
	Type       string `yaml:"type"`       // "direct"、"jq" 或 "template"
	Expression string `yaml:"expression"` // JQ表达式
	Template   string `yaml:"template"`   // 模板字符串
}

// GetDefaultServerConfig 返回默认的服务器配置
func GetDefaultServerConfig() (ServerConfig, GlobalConfig) {
	server := ServerConfig{
		Port: 8080,
		Host: "0.0.0.0",
		Mode: "stdio",
	}

	global := GlobalConfig{
		Timeout: 30 * time.Second,
	}

	return server, global
}

// LoadConfig 从配置文件加载并验证完整配置
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	applyDefaults(&cfg)
	resolveAuthEnv(cfg.API.Auth)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults 设置默认值（如果配置文件中未指定）
func applyDefaults(cfg *Config) {
	defServer, defGlobal := GetDefaultServerConfig()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defServer.Port
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = defServer.Host
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = defServer.Mode
	}
	if cfg.Global.Timeout == 0 {
		cfg.Global.Timeout = defGlobal.Timeout
	}
	if cfg.API.Auth != nil && cfg.API.Auth.Type == "apiKey" && cfg.API.Auth.APIKeyIn == "" {
		cfg.API.Auth.APIKeyIn = "header"
	}
}

// resolveAuthEnv 将环境变量间接引用解析为字面凭证
// 字面值优先，环境变量仅在对应字段为空时生效
func resolveAuthEnv(auth *AuthConfig) {
	if auth == nil {
		return
	}
	if auth.Token == "" && auth.TokenEnv != "" {
		auth.Token = os.Getenv(auth.TokenEnv)
	}
	if auth.APIKey == "" && auth.KeyEnv != "" {
		auth.APIKey = os.Getenv(auth.KeyEnv)
	}
	if auth.Username == "" && auth.UsernameEnv != "" {
		auth.Username = os.Getenv(auth.UsernameEnv)
	}
	if auth.Password == "" && auth.PasswordEnv != "" {
		auth.Password = os.Getenv(auth.PasswordEnv)
	}
}

// Validate 在核心构建之前验证配置
func Validate(cfg *Config) error {
	switch cfg.API.Type {
	case APITypeOpenAPI, APITypePostman:
	case "":
		return fmt.Errorf("缺少API类型: api.type 必须为 openapi 或 postman")
	default:
		return fmt.Errorf("不支持的API类型: %s", cfg.API.Type)
	}

	if cfg.API.SpecSource == "" {
		return fmt.Errorf("缺少规范来源: api.spec 不能为空")
	}

	switch cfg.Server.Mode {
	case "stdio", "sse", "websocket":
	default:
		return fmt.Errorf("不支持的服务器模式: %s (支持: stdio, sse, websocket)", cfg.Server.Mode)
	}

	if auth := cfg.API.Auth; auth != nil && auth.Type != "" {
		switch auth.Type {
		case "basic", "bearer", "apiKey", "oauth2":
		default:
			return fmt.Errorf("不支持的认证类型: %s", auth.Type)
		}
		if auth.Type == "apiKey" {
			if auth.APIKeyIn != "header" && auth.APIKeyIn != "query" {
				return fmt.Errorf("无效的 api_key_in: %s (支持: header, query)", auth.APIKeyIn)
			}
		}
	}

	return nil
}
