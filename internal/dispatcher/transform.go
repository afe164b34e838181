package dispatcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/itchyny/gojq"
	"github.com/mcp2api/internal/config"
)

// Transformer 对成功响应的JSON数据做可选转换
// jq表达式和模板在启动时编译一次，调用期只执行
type Transformer struct {
	cfg   *config.TransformConfig
	query *gojq.Query
	tmpl  *template.Template
}

// NewTransformer 创建响应转换器，配置为空或direct类型时返回nil
func NewTransformer(cfg *config.TransformConfig) (*Transformer, error) {
	if cfg == nil || cfg.Type == "" || cfg.Type == "direct" {
		return nil, nil
	}

	t := &Transformer{cfg: cfg}

	switch cfg.Type {
	case "jq":
		if cfg.Expression == "" {
			return nil, fmt.Errorf("JQ表达式不能为空")
		}
		query, err := gojq.Parse(cfg.Expression)
		if err != nil {
			return nil, fmt.Errorf("解析JQ表达式失败: %w", err)
		}
		t.query = query
	case "template":
		if cfg.Template == "" {
			return nil, fmt.Errorf("模板字符串不能为空")
		}
		tmpl, err := template.New("response").Parse(cfg.Template)
		if err != nil {
			return nil, fmt.Errorf("解析模板失败: %w", err)
		}
		t.tmpl = tmpl
	default:
		return nil, fmt.Errorf("不支持的转换类型: %s", cfg.Type)
	}

	return t, nil
}

// Apply 对解码后的响应数据执行配置的转换
func (t *Transformer) Apply(data interface{}) (interface{}, error) {
	switch t.cfg.Type {
	case "jq":
		return t.applyJQ(data)
	case "template":
		return t.applyTemplate(data)
	}
	return data, nil
}

// applyJQ 执行JQ查询，多个输出时保留最后一个（与jq管道语义一致）
func (t *Transformer) applyJQ(data interface{}) (interface{}, error) {
	iter := t.query.Run(data)
	var result interface{}
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("执行JQ表达式失败: %w", err)
		}
		result = v
	}
	return result, nil
}

// applyTemplate 执行模板，输出如果是合法JSON则解码返回
func (t *Transformer) applyTemplate(data interface{}) (interface{}, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("执行模板失败: %w", err)
	}

	var result interface{}
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		// 不是有效的JSON，返回字符串
		return buf.String(), nil
	}
	return result, nil
}
