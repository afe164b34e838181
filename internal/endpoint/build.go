package endpoint

import (
	"context"
	"fmt"

	"github.com/mcp2api/internal/config"
	"github.com/mcp2api/internal/spec"
	"go.uber.org/zap"
)

// BuildCatalog 按配置加载规范文档并归一化为端点目录
// 规范加载或解析失败是致命错误，调用方应当终止启动
func BuildCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Catalog, error) {
	loader := spec.NewLoader(cfg.Global.Timeout, logger)

	switch cfg.API.Type {
	case config.APITypeOpenAPI:
		doc, err := loader.LoadOpenAPI(ctx, cfg.API.SpecSource)
		if err != nil {
			return nil, fmt.Errorf("加载OpenAPI规范失败: %w", err)
		}
		baseURL := cfg.API.BaseURL
		if baseURL == "" {
			baseURL = doc.BaseURL()
		}
		return NormalizeOpenAPI(doc, baseURL), nil

	case config.APITypePostman:
		col, env, err := loader.LoadPostman(ctx, cfg.API.SpecSource, cfg.API.Environment)
		if err != nil {
			return nil, fmt.Errorf("加载Postman集合失败: %w", err)
		}
		return NormalizePostman(col, env, cfg.API.BaseURL), nil

	default:
		return nil, fmt.Errorf("不支持的API规范类型: %s", cfg.API.Type)
	}
}
