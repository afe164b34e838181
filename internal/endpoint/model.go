package endpoint

import "strings"

// SourceFormat 标识端点来源的规范格式
type SourceFormat string

const (
	FormatOpenAPI SourceFormat = "openapi"
	FormatPostman SourceFormat = "postman"
)

// 参数位置的合法取值
const (
	LocationPath   = "path"
	LocationQuery  = "query"
	LocationHeader = "header"
	LocationBody   = "body"
)

// Endpoint 表示统一后的一个可调用HTTP操作
// 两种规范格式都归一到这一个实体，仅在路径参数语法和安全要求上保留格式差异
type Endpoint struct {
	ID          string           `json:"id"`
	Method      string           `json:"method"`
	Locator     string           `json:"locator"` // OpenAPI为路径模板，Postman为原始URL
	FolderPath  string           `json:"folderPath,omitempty"`
	Summary     string           `json:"summary"`
	Description string           `json:"description"`
	Tags        []string         `json:"tags"`
	Parameters  []Parameter      `json:"parameters"`
	Bodies      []BodySchema     `json:"requestBodySchemas"`
	Responses   map[string]ResponseSchema `json:"responseSchemas"`
	Security    []string         `json:"security"` // 方案名列表，仅OpenAPI
	Deprecated  bool             `json:"deprecated"`
	Source      SourceFormat     `json:"source"`

	// securityDeclared 区分"未声明"与"显式声明为空"
	// 显式为空的端点永远不注入凭证
	securityDeclared bool
}

// Parameter 表示一个归一化后的参数
type Parameter struct {
	Name        string      `json:"name"`
	Location    string      `json:"location"` // path、query、header、body
	Required    bool        `json:"required"`
	Type        string      `json:"type,omitempty"`
	Description string      `json:"description,omitempty"`
	Example     interface{} `json:"example,omitempty"`
}

// BodySchema 表示一种媒体类型的请求体描述
type BodySchema struct {
	MediaType string      `json:"mediaType"`
	Schema    interface{} `json:"schema,omitempty"`
	Required  bool        `json:"required"`
}

// ResponseSchema 表示一个状态码的响应描述
type ResponseSchema struct {
	Description string      `json:"description"`
	Schema      interface{} `json:"schema,omitempty"`
}

// SecurityScheme 表示一个命名的安全方案（仅OpenAPI）
// Name是方案名，KeyName是apiKey类型方案实际使用的头或查询参数名
type SecurityScheme struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	In          string `json:"in,omitempty"`
	Scheme      string `json:"scheme,omitempty"`
	KeyName     string `json:"keyName,omitempty"`
	Description string `json:"description,omitempty"`
}

// Unauthenticated 判断该端点是否显式声明为无需认证
func (e *Endpoint) Unauthenticated() bool {
	return e.securityDeclared && len(e.Security) == 0
}

// SearchBlob 返回用于搜索匹配的文本拼接：locator、summary、description、
// tags/folder和id以空格连接，统一小写
func (e *Endpoint) SearchBlob() string {
	parts := []string{e.Locator, e.Summary, e.Description}
	parts = append(parts, e.Tags...)
	if e.FolderPath != "" {
		parts = append(parts, e.FolderPath)
	}
	parts = append(parts, e.ID)
	return strings.ToLower(strings.Join(parts, " "))
}

// PathParamNames 返回按所属格式语法识别出的路径参数名集合
// OpenAPI使用{name}段，Postman使用:name段和{{name}}变量
func (e *Endpoint) PathParamNames() map[string]bool {
	names := make(map[string]bool)

	if e.Source == FormatOpenAPI {
		for _, seg := range extractBraceParams(e.Locator) {
			names[seg] = true
		}
		return names
	}

	for _, seg := range extractColonParams(e.Locator) {
		names[seg] = true
	}
	for _, seg := range extractDoubleBraceParams(e.Locator) {
		names[seg] = true
	}
	for _, p := range e.Parameters {
		if p.Location == LocationPath {
			names[p.Name] = true
		}
	}
	return names
}

// extractBraceParams 提取 {name} 形式的参数名，跳过Postman的 {{name}} 变量
func extractBraceParams(locator string) []string {
	var names []string
	for i := 0; i < len(locator); i++ {
		if locator[i] != '{' {
			continue
		}
		if i+1 < len(locator) && locator[i+1] == '{' {
			i++
			continue
		}
		end := strings.IndexByte(locator[i:], '}')
		if end < 0 {
			break
		}
		name := locator[i+1 : i+end]
		if name != "" {
			names = append(names, name)
		}
		i += end
	}
	return names
}

// extractColonParams 提取 :name 形式的路径段参数名
func extractColonParams(locator string) []string {
	// 查询串不参与路径参数识别
	if idx := strings.IndexByte(locator, '?'); idx >= 0 {
		locator = locator[:idx]
	}

	var names []string
	for _, seg := range strings.Split(locator, "/") {
		if len(seg) > 1 && seg[0] == ':' {
			names = append(names, seg[1:])
		}
	}
	return names
}

// extractDoubleBraceParams 提取 {{name}} 形式的变量名
func extractDoubleBraceParams(locator string) []string {
	var names []string
	for {
		start := strings.Index(locator, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(locator[start:], "}}")
		if end < 0 {
			break
		}
		name := locator[start+2 : start+end]
		if name != "" {
			names = append(names, name)
		}
		locator = locator[start+end+2:]
	}
	return names
}
