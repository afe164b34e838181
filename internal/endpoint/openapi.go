package endpoint

import (
	"fmt"
	"sort"

	"github.com/mcp2api/internal/spec"
)

// NormalizeOpenAPI 将OpenAPI文档归一化为端点目录
// baseURL为空时使用文档自身声明的服务器地址
func NormalizeOpenAPI(doc *spec.OpenAPIDocument, baseURL string) *Catalog {
	cat := newCatalog(FormatOpenAPI)

	cat.BaseURL = baseURL
	if cat.BaseURL == "" {
		cat.BaseURL = doc.BaseURL()
	}

	cat.Schemes = make(map[string]SecurityScheme)
	for name, s := range doc.SecuritySchemes() {
		cat.Schemes[name] = SecurityScheme{
			Name:        name,
			Type:        s.Type,
			In:          s.In,
			Scheme:      s.Scheme,
			KeyName:     s.Name,
			Description: s.Description,
		}
	}

	// 路径按字典序遍历，保证端点集合的构建顺序确定
	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		item := doc.Paths[path]
		for _, mo := range item.Operations() {
			cat.add(normalizeOperation(cat, path, mo.Method, mo.Operation))
		}
	}

	return cat
}

// normalizeOperation 将一个操作转换为端点
func normalizeOperation(cat *Catalog, path, method string, op *spec.Operation) *Endpoint {
	ep := &Endpoint{
		ID:          operationID(cat, op.OperationID, method, path),
		Method:      method,
		Locator:     path,
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        op.Tags,
		Deprecated:  op.Deprecated,
		Source:      FormatOpenAPI,
		Parameters:  make([]Parameter, 0, len(op.Parameters)),
		Bodies:      make([]BodySchema, 0),
		Responses:   make(map[string]ResponseSchema),
	}
	if ep.Tags == nil {
		ep.Tags = make([]string, 0)
	}

	for _, p := range op.Parameters {
		if p.In == "body" {
			// Swagger v2 将请求体声明为 in: body 参数
			ep.Bodies = append(ep.Bodies, BodySchema{
				MediaType: "application/json",
				Schema:    p.Schema,
				Required:  p.Required,
			})
			continue
		}

		location := p.In
		if location == "formData" {
			location = LocationBody
		}

		ep.Parameters = append(ep.Parameters, Parameter{
			Name:        p.Name,
			Location:    location,
			Required:    p.Required,
			Type:        parameterType(p),
			Description: p.Description,
			Example:     p.Example,
		})
	}

	// 路径模板中按语法识别的 {name} 段，未声明的也要纳入参数列表
	declared := make(map[string]bool)
	for _, p := range ep.Parameters {
		if p.Location == LocationPath {
			declared[p.Name] = true
		}
	}
	for _, name := range extractBraceParams(path) {
		if declared[name] {
			continue
		}
		ep.Parameters = append(ep.Parameters, Parameter{
			Name:     name,
			Location: LocationPath,
			Required: true,
			Type:     "string",
		})
	}

	if op.RequestBody != nil {
		mediaTypes := make([]string, 0, len(op.RequestBody.Content))
		for mt := range op.RequestBody.Content {
			mediaTypes = append(mediaTypes, mt)
		}
		sort.Strings(mediaTypes)
		for _, mt := range mediaTypes {
			ep.Bodies = append(ep.Bodies, BodySchema{
				MediaType: mt,
				Schema:    op.RequestBody.Content[mt].Schema,
				Required:  op.RequestBody.Required,
			})
		}
	}

	for status, resp := range op.Responses {
		ep.Responses[status] = ResponseSchema{
			Description: resp.Description,
			Schema:      responseSchema(resp),
		}
	}

	// nil与空切片的区别必须保留：显式声明为空的端点不注入凭证
	if op.Security != nil {
		ep.securityDeclared = true
		ep.Security = make([]string, 0, len(op.Security))
		for _, req := range op.Security {
			names := make([]string, 0, len(req))
			for name := range req {
				names = append(names, name)
			}
			sort.Strings(names)
			ep.Security = append(ep.Security, names...)
		}
	} else {
		ep.Security = make([]string, 0)
	}

	return ep
}

// operationID 计算端点id：有operationId直接使用，否则按 "{METHOD}-{path}" 派生
// id冲突时追加数字后缀，保证目录内唯一
func operationID(cat *Catalog, explicit, method, path string) string {
	id := explicit
	if id == "" {
		id = fmt.Sprintf("%s-%s", method, path)
	}

	if !cat.hasID(id) {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", id, n)
		if !cat.hasID(candidate) {
			return candidate
		}
	}
}

// parameterType 取参数类型：v2内联type优先，否则取schema.type
func parameterType(p spec.Parameter) string {
	if p.Type != "" {
		return p.Type
	}
	if p.Schema != nil {
		return p.Schema.Type
	}
	return ""
}

// responseSchema 取响应schema：v2直接挂在响应上，v3优先application/json
func responseSchema(resp spec.Response) interface{} {
	if resp.Schema != nil {
		return resp.Schema
	}
	if len(resp.Content) == 0 {
		return nil
	}
	if mt, ok := resp.Content["application/json"]; ok && mt.Schema != nil {
		return mt.Schema
	}

	mediaTypes := make([]string, 0, len(resp.Content))
	for mt := range resp.Content {
		mediaTypes = append(mediaTypes, mt)
	}
	sort.Strings(mediaTypes)
	for _, mt := range mediaTypes {
		if s := resp.Content[mt].Schema; s != nil {
			return s
		}
	}
	return nil
}
