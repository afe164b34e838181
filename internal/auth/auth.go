package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mcp2api/internal/config"
	"github.com/mcp2api/internal/endpoint"
)

// Resolver 将凭证配置解析为具体的请求头和查询参数
// 解析是尽力而为的策略：所选类型缺少必要字段时静默不产出，从不报错
type Resolver struct {
	defaultAuth *config.AuthConfig
}

// NewResolver 创建新的认证解析器，defaultAuth可以为nil
func NewResolver(defaultAuth *config.AuthConfig) *Resolver {
	return &Resolver{defaultAuth: defaultAuth}
}

// Headers 计算一次出站调用需要附加的认证请求头
// 调用级auth覆盖默认配置；显式声明为无认证的端点永远不注入凭证
func (r *Resolver) Headers(override *config.AuthConfig, ep *endpoint.Endpoint) map[string]string {
	headers := make(map[string]string)

	if ep != nil && ep.Unauthenticated() {
		return headers
	}

	auth := r.effective(override)
	if auth == nil || auth.Type == "" {
		return headers
	}

	switch auth.Type {
	case "basic":
		if auth.Username != "" && auth.Password != "" {
			encoded := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
			headers["Authorization"] = "Basic " + encoded
		}
	case "bearer", "oauth2":
		// oauth2只携带调用方提供的令牌，与bearer一致
		if auth.Token != "" {
			headers["Authorization"] = "Bearer " + auth.Token
		}
	case "apiKey":
		if auth.APIKey != "" && auth.APIKeyName != "" && keyLocation(auth) == "header" {
			headers[auth.APIKeyName] = auth.APIKey
		}
	}

	return headers
}

// QueryParams 计算一次出站调用需要附加的认证查询参数
func (r *Resolver) QueryParams(override *config.AuthConfig, ep *endpoint.Endpoint) map[string]string {
	params := make(map[string]string)

	if ep != nil && ep.Unauthenticated() {
		return params
	}

	auth := r.effective(override)
	if auth == nil {
		return params
	}

	if auth.Type == "apiKey" && auth.APIKey != "" && auth.APIKeyName != "" && keyLocation(auth) == "query" {
		params[auth.APIKeyName] = auth.APIKey
	}

	return params
}

// effective 返回本次调用实际生效的凭证配置：调用级优先，其次默认配置
func (r *Resolver) effective(override *config.AuthConfig) *config.AuthConfig {
	if override != nil && override.Type != "" {
		return override
	}
	return r.defaultAuth
}

func keyLocation(auth *config.AuthConfig) string {
	if auth.APIKeyIn == "" {
		return "header"
	}
	return auth.APIKeyIn
}

// ParseCallAuth 解析工具调用参数中的auth对象
func ParseCallAuth(raw interface{}) (*config.AuthConfig, error) {
	if raw == nil {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("序列化auth参数失败: %w", err)
	}

	var auth config.AuthConfig
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("解析auth参数失败: %w", err)
	}

	if auth.Type == "" {
		return nil, nil
	}
	return &auth, nil
}
