package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mcp2api/internal/auth"
	"github.com/mcp2api/internal/config"
	"github.com/mcp2api/internal/debug"
	"github.com/mcp2api/internal/endpoint"
	"go.uber.org/zap"
)

// Dispatcher 将工具调用参数装配为HTTP请求并执行
// 每次调用相互独立，除目录和环境表外不持有可变状态
type Dispatcher struct {
	catalog        *endpoint.Catalog
	resolver       *auth.Resolver
	httpClient     *http.Client
	transformer    *Transformer
	defaultHeaders map[string]string
	logger         *zap.Logger
}

// NewDispatcher 创建新的请求调度器
func NewDispatcher(catalog *endpoint.Catalog, resolver *auth.Resolver, cfg *config.Config, logger *zap.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	transformer, err := NewTransformer(cfg.API.Transform)
	if err != nil {
		return nil, fmt.Errorf("创建响应转换器失败: %w", err)
	}

	return &Dispatcher{
		catalog:        catalog,
		resolver:       resolver,
		httpClient:     &http.Client{Timeout: cfg.Global.Timeout},
		transformer:    transformer,
		defaultHeaders: cfg.Global.DefaultHeaders,
		logger:         logger.With(zap.String("component", "dispatcher")),
	}, nil
}

// Call 表示一次调度请求的输入
type Call struct {
	ID         string
	Locator    string
	Method     string
	Parameters map[string]interface{}
	Body       interface{}
	Auth       *config.AuthConfig
}

// Result 表示上游响应的结构化结果
// Error为true表示上游返回了失败状态码，但响应本身是完整的
type Result struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText,omitempty"`
	Headers    map[string]string `json:"headers"`
	Data       interface{}       `json:"data"`
	Error      bool              `json:"error,omitempty"`
}

// Execute 解析目标端点并执行一次HTTP调用
// 端点未命中时返回提示文本；网络层失败（无响应）作为硬错误返回
func (d *Dispatcher) Execute(ctx context.Context, call Call) (*Result, string, error) {
	ep := d.catalog.Resolve(call.ID, call.Locator, call.Method)
	if ep == nil {
		return nil, d.notFoundMessage(call), nil
	}

	fullURL, queryParams, consumed := d.buildURL(ep, call.Parameters)

	// 认证产出的查询参数先行合并
	for k, v := range d.resolver.QueryParams(call.Auth, ep) {
		queryParams.Set(k, v)
	}

	headers := make(map[string]string)
	for k, v := range d.defaultHeaders {
		headers[k] = v
	}
	for k, v := range d.resolver.Headers(call.Auth, ep) {
		headers[k] = v
	}

	body := call.Body
	for name, value := range call.Parameters {
		if consumed[name] {
			continue
		}

		// header_前缀和归一化模型中声明为header的参数进入请求头
		if strings.HasPrefix(name, "header_") {
			headers[strings.TrimPrefix(name, "header_")] = coerceString(value)
			continue
		}
		switch paramLocation(ep, name) {
		case endpoint.LocationHeader:
			headers[name] = coerceString(value)
		case endpoint.LocationBody:
			if body == nil {
				body = value
			}
		default:
			appendQueryValue(queryParams, name, value)
		}
	}

	if encoded := queryParams.Encode(); encoded != "" {
		if strings.Contains(fullURL, "?") {
			fullURL += "&" + encoded
		} else {
			fullURL += "?" + encoded
		}
	}

	bodyBytes, err := serializeBody(body)
	if err != nil {
		return nil, "", err
	}
	if bodyBytes != nil {
		if _, ok := headerValue(headers, "Content-Type"); !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	return d.send(ctx, ep.Method, fullURL, headers, bodyBytes)
}

// buildURL 按端点所属格式做变量替换，返回完整URL、查询参数和已消耗的参数名
func (d *Dispatcher) buildURL(ep *endpoint.Endpoint, params map[string]interface{}) (string, url.Values, map[string]bool) {
	consumed := make(map[string]bool)
	queryParams := url.Values{}

	if ep.Source == endpoint.FormatOpenAPI {
		locator := ep.Locator
		for name := range ep.PathParamNames() {
			value, ok := params[name]
			if !ok {
				// 缺失的路径参数按宽松策略保留字面量
				continue
			}
			locator = strings.ReplaceAll(locator, "{"+name+"}", url.PathEscape(coerceString(value)))
			consumed[name] = true
		}
		return d.catalog.BaseURL + locator, queryParams, consumed
	}

	// Postman：先解析{{var}}，调用参数覆盖环境变量，未命中的保留字面量
	raw := substituteTemplateVars(ep.Locator, params, d.catalog.Environment, consumed)

	// 再做 :name 路径段替换
	raw = substituteColonParams(raw, params, consumed)

	// 替换后仍是相对地址时补上配置的基础URL
	if d.catalog.BaseURL != "" && !strings.Contains(raw, "://") {
		raw = strings.TrimSuffix(d.catalog.BaseURL, "/") + "/" + strings.TrimPrefix(raw, "/")
	}

	return raw, queryParams, consumed
}

// send 执行单次HTTP调用，不做任何隐式重试
func (d *Dispatcher) send(ctx context.Context, method, fullURL string, headers map[string]string, body []byte) (*Result, string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	d.logger.Info("执行上游调用",
		zap.String("method", method),
		zap.String("url", fullURL),
	)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		// 无响应的网络层失败向上传播，进程保持存活
		return nil, "", fmt.Errorf("上游请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("读取响应体失败: %w", err)
	}

	debug.LogHTTPCall(method, fullURL, resp.StatusCode, respBody)

	result := &Result{
		Status:     resp.StatusCode,
		StatusText: resp.Status,
		Headers:    flattenHeaders(resp.Header),
		Data:       decodeBody(respBody),
		Error:      resp.StatusCode < 200 || resp.StatusCode >= 300,
	}

	// 转换仅作用于成功响应
	if !result.Error && d.transformer != nil {
		transformed, err := d.transformer.Apply(result.Data)
		if err != nil {
			d.logger.Warn("响应转换失败，返回原始数据", zap.Error(err))
		} else {
			result.Data = transformed
		}
	}

	return result, "", nil
}

// substituteTemplateVars 解析 {{name}} 形式的变量
// 调用参数优先于环境变量，都未命中时保留 {{name}} 字面量
func substituteTemplateVars(raw string, params map[string]interface{}, env map[string]string, consumed map[string]bool) string {
	var b strings.Builder
	for {
		start := strings.Index(raw, "{{")
		if start < 0 {
			b.WriteString(raw)
			break
		}
		end := strings.Index(raw[start:], "}}")
		if end < 0 {
			b.WriteString(raw)
			break
		}

		name := raw[start+2 : start+end]
		b.WriteString(raw[:start])

		if value, ok := params[name]; ok {
			b.WriteString(coerceString(value))
			consumed[name] = true
		} else if value, ok := env[name]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(raw[start : start+end+2])
		}

		raw = raw[start+end+2:]
	}
	return b.String()
}

// substituteColonParams 替换 :name 形式的路径段，缺失的参数保留字面量
func substituteColonParams(raw string, params map[string]interface{}, consumed map[string]bool) string {
	path := raw
	query := ""
	if idx := strings.IndexByte(raw, '?'); idx >= 0 {
		path, query = raw[:idx], raw[idx:]
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if len(seg) < 2 || seg[0] != ':' {
			continue
		}
		name := seg[1:]
		if value, ok := params[name]; ok {
			segments[i] = url.PathEscape(coerceString(value))
			consumed[name] = true
		}
	}

	return strings.Join(segments, "/") + query
}

// paramLocation 查找参数在归一化模型中声明的位置，未声明返回空串
func paramLocation(ep *endpoint.Endpoint, name string) string {
	for _, p := range ep.Parameters {
		if p.Name == name {
			return p.Location
		}
	}
	return ""
}

// serializeBody 序列化请求体：字符串原样透传，其余JSON编码
func serializeBody(body interface{}) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if s, ok := body.(string); ok {
		return []byte(s), nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}
	return data, nil
}

// decodeBody 尽量把响应体解析为JSON，失败时退回原始文本
func decodeBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		return decoded
	}
	return string(body)
}

func flattenHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for key, values := range h {
		headers[key] = strings.Join(values, ", ")
	}
	return headers
}

func headerValue(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func appendQueryValue(values url.Values, name string, value interface{}) {
	if list, ok := value.([]interface{}); ok {
		for _, item := range list {
			values.Add(name, coerceString(item))
		}
		return
	}
	values.Set(name, coerceString(value))
}

// notFoundMessage 构造端点未命中的提示文本
func (d *Dispatcher) notFoundMessage(call Call) string {
	listOp := "list_endpoints"
	if d.catalog.Format == endpoint.FormatPostman {
		listOp = "list_requests"
	}

	ref := call.ID
	if ref == "" {
		ref = strings.TrimSpace(call.Method + " " + call.Locator)
	}
	return "No endpoint found for '" + ref + "'. Use " + listOp + " to see available endpoints."
}
