package spec

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// OpenAPIDocument 表示解析后的OpenAPI规范，同时覆盖v2(Swagger)和v3字段
type OpenAPIDocument struct {
	OpenAPI string              `json:"openapi" yaml:"openapi"`
	Swagger string              `json:"swagger" yaml:"swagger"`
	Info    Info                `json:"info" yaml:"info"`
	Servers []Server            `json:"servers" yaml:"servers"`
	Paths   map[string]PathItem `json:"paths" yaml:"paths"`

	// v2 专用字段
	Host                string                    `json:"host" yaml:"host"`
	BasePath            string                    `json:"basePath" yaml:"basePath"`
	Schemes             []string                  `json:"schemes" yaml:"schemes"`
	SecurityDefinitions map[string]SecurityScheme `json:"securityDefinitions" yaml:"securityDefinitions"`

	Components Components `json:"components" yaml:"components"`
}

// Info 表示API元数据
type Info struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Version     string `json:"version" yaml:"version"`
}

// Server 表示API服务器地址
type Server struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description" yaml:"description"`
}

// Components 表示v3的components节点，目前只消费安全方案
type Components struct {
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes" yaml:"securitySchemes"`
}

// SecurityScheme 表示一个命名的安全方案
type SecurityScheme struct {
	Type        string `json:"type" yaml:"type"`
	Name        string `json:"name" yaml:"name"`
	In          string `json:"in" yaml:"in"`
	Scheme      string `json:"scheme" yaml:"scheme"`
	Description string `json:"description" yaml:"description"`
}

// PathItem 表示一个路径模板下的所有操作
// 非操作键（$ref、summary、parameters等）是独立字段，遍历操作时自然被跳过
type PathItem struct {
	Ref         string      `json:"$ref" yaml:"$ref"`
	Summary     string      `json:"summary" yaml:"summary"`
	Description string      `json:"description" yaml:"description"`
	Parameters  []Parameter `json:"parameters" yaml:"parameters"`

	Get     *Operation `json:"get" yaml:"get"`
	Put     *Operation `json:"put" yaml:"put"`
	Post    *Operation `json:"post" yaml:"post"`
	Delete  *Operation `json:"delete" yaml:"delete"`
	Options *Operation `json:"options" yaml:"options"`
	Head    *Operation `json:"head" yaml:"head"`
	Patch   *Operation `json:"patch" yaml:"patch"`
	Trace   *Operation `json:"trace" yaml:"trace"`
}

// operationMethods HTTP动词的固定遍历顺序，保证端点集合构建的确定性
var operationMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// Operations 按固定顺序返回该路径下的全部操作，键为大写HTTP动词
func (p *PathItem) Operations() []MethodOperation {
	byMethod := map[string]*Operation{
		"get": p.Get, "put": p.Put, "post": p.Post, "delete": p.Delete,
		"options": p.Options, "head": p.Head, "patch": p.Patch, "trace": p.Trace,
	}

	var ops []MethodOperation
	for _, m := range operationMethods {
		if op := byMethod[m]; op != nil {
			ops = append(ops, MethodOperation{Method: strings.ToUpper(m), Operation: op})
		}
	}
	return ops
}

// MethodOperation 表示动词与操作的配对
type MethodOperation struct {
	Method    string
	Operation *Operation
}

// SecurityRequirement 表示一条安全要求，键为方案名
type SecurityRequirement map[string][]string

// Operation 表示一个API操作
type Operation struct {
	OperationID string               `json:"operationId" yaml:"operationId"`
	Summary     string               `json:"summary" yaml:"summary"`
	Description string               `json:"description" yaml:"description"`
	Tags        []string             `json:"tags" yaml:"tags"`
	Deprecated  bool                 `json:"deprecated" yaml:"deprecated"`
	Parameters  []Parameter          `json:"parameters" yaml:"parameters"`
	RequestBody *RequestBody         `json:"requestBody" yaml:"requestBody"`
	Responses   map[string]Response  `json:"responses" yaml:"responses"`
	Security    []SecurityRequirement `json:"security" yaml:"security"` // nil表示未声明，空切片表示显式无认证
}

// Parameter 表示一个操作参数，v2的内联类型和v3的schema都保留
type Parameter struct {
	Name        string      `json:"name" yaml:"name"`
	In          string      `json:"in" yaml:"in"` // "path"、"query"、"header"、"body"(v2)
	Description string      `json:"description" yaml:"description"`
	Required    bool        `json:"required" yaml:"required"`
	Schema      *Schema     `json:"schema" yaml:"schema"`
	Type        string      `json:"type" yaml:"type"` // v2 内联类型
	Example     interface{} `json:"example" yaml:"example"`
}

// RequestBody 表示v3的请求体
type RequestBody struct {
	Description string               `json:"description" yaml:"description"`
	Required    bool                 `json:"required" yaml:"required"`
	Content     map[string]MediaType `json:"content" yaml:"content"`
}

// MediaType 表示一种媒体类型的内容描述
type MediaType struct {
	Schema  *Schema     `json:"schema" yaml:"schema"`
	Example interface{} `json:"example" yaml:"example"`
}

// Response 表示一个状态码的响应描述，v2直接挂schema，v3嵌在content里
type Response struct {
	Description string               `json:"description" yaml:"description"`
	Content     map[string]MediaType `json:"content" yaml:"content"`
	Schema      *Schema              `json:"schema" yaml:"schema"`
}

// Schema 表示JSON Schema的子集
type Schema struct {
	Ref         string             `json:"$ref" yaml:"$ref"`
	Type        string             `json:"type" yaml:"type"`
	Format      string             `json:"format" yaml:"format"`
	Description string             `json:"description" yaml:"description"`
	Properties  map[string]*Schema `json:"properties" yaml:"properties"`
	Required    []string           `json:"required" yaml:"required"`
	Items       *Schema            `json:"items" yaml:"items"`
	Enum        []interface{}      `json:"enum" yaml:"enum"`
	Example     interface{}        `json:"example" yaml:"example"`
}

// IsSwagger2 判断文档是否为Swagger v2规范
func (d *OpenAPIDocument) IsSwagger2() bool {
	return strings.HasPrefix(d.Swagger, "2")
}

// BaseURL 返回规范中声明的基础URL，v2由schemes/host/basePath拼装
func (d *OpenAPIDocument) BaseURL() string {
	if len(d.Servers) > 0 {
		return d.Servers[0].URL
	}

	if d.Host != "" {
		scheme := "https"
		if len(d.Schemes) > 0 {
			scheme = d.Schemes[0]
		}
		return scheme + "://" + d.Host + d.BasePath
	}

	return ""
}

// SecuritySchemes 返回规范声明的安全方案表，v2取securityDefinitions
func (d *OpenAPIDocument) SecuritySchemes() map[string]SecurityScheme {
	if d.IsSwagger2() {
		return d.SecurityDefinitions
	}
	return d.Components.SecuritySchemes
}

// ParseOpenAPI 解析OpenAPI规范数据，先尝试JSON再回退到YAML
func ParseOpenAPI(data []byte) (*OpenAPIDocument, error) {
	var doc OpenAPIDocument

	if err := json.Unmarshal(data, &doc); err == nil {
		return &doc, nil
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("解析OpenAPI规范失败: %w", err)
	}

	return &doc, nil
}
