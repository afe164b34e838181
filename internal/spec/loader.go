package spec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Loader 从URL或本地路径获取规范数据
type Loader struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewLoader 创建新的规范加载器
func NewLoader(timeout time.Duration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Loader{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("component", "spec_loader")),
	}
}

// LoadOpenAPI 加载并解析OpenAPI规范
func (l *Loader) LoadOpenAPI(ctx context.Context, source string) (*OpenAPIDocument, error) {
	data, err := l.fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("加载OpenAPI规范失败: %w", err)
	}

	doc, err := ParseOpenAPI(data)
	if err != nil {
		return nil, err
	}

	if len(doc.Paths) == 0 {
		return nil, fmt.Errorf("OpenAPI规范不包含任何路径: %s", source)
	}

	l.logger.Info("OpenAPI规范加载成功",
		zap.String("source", source),
		zap.String("title", doc.Info.Title),
		zap.Int("paths", len(doc.Paths)),
	)

	return doc, nil
}

// LoadPostman 加载并解析Postman集合以及可选的环境文件
func (l *Loader) LoadPostman(ctx context.Context, collectionSource, envSource string) (*PostmanCollection, *PostmanEnvironment, error) {
	data, err := l.fetch(ctx, collectionSource)
	if err != nil {
		return nil, nil, fmt.Errorf("加载Postman集合失败: %w", err)
	}

	col, err := ParsePostmanCollection(data)
	if err != nil {
		return nil, nil, err
	}

	var env *PostmanEnvironment
	if envSource != "" {
		envData, err := l.fetch(ctx, envSource)
		if err != nil {
			return nil, nil, fmt.Errorf("加载Postman环境失败: %w", err)
		}
		env, err = ParsePostmanEnvironment(envData)
		if err != nil {
			return nil, nil, err
		}
	}

	l.logger.Info("Postman集合加载成功",
		zap.String("source", collectionSource),
		zap.String("name", col.Info.Name),
		zap.Bool("environment", env != nil),
	)

	return col, env, nil
}

// fetch 获取原始规范数据，来源可以是http(s) URL或本地文件路径
func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return l.fetchFromURL(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("读取规范文件失败: %w", err)
	}
	return data, nil
}

func (l *Loader) fetchFromURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求规范URL失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("规范URL返回状态码 %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
