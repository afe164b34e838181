package endpoint

import (
	"fmt"
	"strings"

	"github.com/mcp2api/internal/spec"
)

// NormalizePostman 将Postman集合归一化为端点目录
// 环境变量表由集合级variable和环境文件合并而来，环境文件优先
func NormalizePostman(col *spec.PostmanCollection, env *spec.PostmanEnvironment, baseURL string) *Catalog {
	cat := newCatalog(FormatPostman)
	cat.BaseURL = baseURL

	cat.Environment = make(map[string]string)
	for _, v := range col.Variables {
		cat.Environment[v.Key] = v.Value
	}
	if env != nil {
		for _, v := range env.Values {
			if v.Enabled != nil && !*v.Enabled {
				continue
			}
			cat.Environment[v.Key] = v.Value
		}
	}

	walkItems(cat, col.Items, "")
	return cat
}

// walkItems 深度优先遍历条目树，文件夹名逐级累积为文件夹路径
func walkItems(cat *Catalog, items []spec.PostmanItem, folder string) {
	for i := range items {
		item := &items[i]

		if item.Request != nil {
			cat.add(normalizeItem(cat, item, folder))
			continue
		}

		if item.Items != nil {
			childFolder := item.Name
			if folder != "" {
				childFolder = folder + " / " + item.Name
			}
			walkItems(cat, item.Items, childFolder)
		}
	}
}

// normalizeItem 将一个叶子请求条目转换为端点
func normalizeItem(cat *Catalog, item *spec.PostmanItem, folder string) *Endpoint {
	req := item.Request

	ep := &Endpoint{
		ID:          itemID(cat, item.Name, folder),
		Method:      strings.ToUpper(req.Method),
		Locator:     req.URL.Raw,
		FolderPath:  folder,
		Summary:     item.Name,
		Description: req.Description.String(),
		Tags:        make([]string, 0),
		Source:      FormatPostman,
		Parameters:  make([]Parameter, 0),
		Bodies:      make([]BodySchema, 0),
		Responses:   make(map[string]ResponseSchema),
	}
	if ep.Description == "" {
		ep.Description = item.Description.String()
	}

	// 路径参数：url.variable声明携带描述和示例，优先于裸 :name 段
	seen := make(map[string]bool)
	for _, v := range req.URL.Variables {
		if v.Key == "" || seen[v.Key] {
			continue
		}
		seen[v.Key] = true
		ep.Parameters = append(ep.Parameters, Parameter{
			Name:        v.Key,
			Location:    LocationPath,
			Required:    true,
			Type:        "string",
			Description: v.Description.String(),
			Example:     exampleOrNil(v.Value),
		})
	}
	for _, name := range extractColonParams(req.URL.Raw) {
		if seen[name] {
			continue
		}
		seen[name] = true
		ep.Parameters = append(ep.Parameters, Parameter{
			Name:     name,
			Location: LocationPath,
			Required: true,
			Type:     "string",
		})
	}

	for _, q := range req.URL.Query {
		if q.Disabled || q.Key == "" {
			continue
		}
		ep.Parameters = append(ep.Parameters, Parameter{
			Name:        q.Key,
			Location:    LocationQuery,
			Type:        "string",
			Description: q.Description.String(),
			Example:     exampleOrNil(q.Value),
		})
	}

	for _, h := range req.Header {
		if h.Disabled || h.Key == "" {
			continue
		}
		ep.Parameters = append(ep.Parameters, Parameter{
			Name:        h.Key,
			Location:    LocationHeader,
			Type:        "string",
			Description: h.Description.String(),
			Example:     exampleOrNil(h.Value),
		})
	}

	if req.Body != nil && req.Body.Raw != "" {
		ep.Parameters = append(ep.Parameters, Parameter{
			Name:        "body",
			Location:    LocationBody,
			Type:        "string",
			Description: "原始请求体",
			Example:     req.Body.Raw,
		})
		ep.Bodies = append(ep.Bodies, BodySchema{
			MediaType: bodyMediaType(req),
			Required:  false,
		})
	}

	return ep
}

// itemID 将条目名规范化为唯一id
// 冲突时先追加文件夹路径，仍冲突则追加数字后缀
func itemID(cat *Catalog, name, folder string) string {
	id := slugify(name)
	if id == "" {
		id = "request"
	}
	if !cat.hasID(id) {
		return id
	}

	if folder != "" {
		withFolder := slugify(name + "_" + folder)
		if !cat.hasID(withFolder) {
			return withFolder
		}
		id = withFolder
	}

	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if !cat.hasID(candidate) {
			return candidate
		}
	}
}

// slugify 将名称中 [A-Za-z0-9_] 之外的字符替换为下划线
// 连续、开头和结尾的下划线都会被折叠掉
func slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true // 开头的下划线直接丢弃
	for _, r := range name {
		ok := r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		if ok && r != '_' {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// bodyMediaType 根据请求头推断请求体媒体类型，默认application/json
func bodyMediaType(req *spec.PostmanRequest) string {
	for _, h := range req.Header {
		if strings.EqualFold(h.Key, "Content-Type") && !h.Disabled && h.Value != "" {
			return h.Value
		}
	}
	return "application/json"
}

func exampleOrNil(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
