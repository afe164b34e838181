package endpoint

import "strings"

// Catalog 表示一次规范加载产出的全部归一化状态
// 构建完成后只读，可被并发读取
type Catalog struct {
	Format      SourceFormat
	Endpoints   []*Endpoint
	Schemes     map[string]SecurityScheme // 仅OpenAPI
	Environment map[string]string         // 仅Postman
	BaseURL     string

	byID      map[string]*Endpoint
	byLocator map[string]*Endpoint
}

// newCatalog 创建空目录
func newCatalog(format SourceFormat) *Catalog {
	return &Catalog{
		Format:    format,
		byID:      make(map[string]*Endpoint),
		byLocator: make(map[string]*Endpoint),
	}
}

// add 登记一个端点并维护索引
func (c *Catalog) add(ep *Endpoint) {
	c.Endpoints = append(c.Endpoints, ep)
	c.byID[ep.ID] = ep
	c.byLocator[locatorKey(ep.Method, ep.Locator)] = ep
}

// hasID 判断id是否已被占用
func (c *Catalog) hasID(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// ByID 按id查找端点
func (c *Catalog) ByID(id string) (*Endpoint, bool) {
	ep, ok := c.byID[id]
	return ep, ok
}

// ByLocatorMethod 按定位串和方法查找端点
func (c *Catalog) ByLocatorMethod(locator, method string) (*Endpoint, bool) {
	ep, ok := c.byLocator[locatorKey(method, locator)]
	return ep, ok
}

// Resolve 先按id再按(locator, method)查找端点，找不到返回nil
func (c *Catalog) Resolve(id, locator, method string) *Endpoint {
	if id != "" {
		if ep, ok := c.ByID(id); ok {
			return ep
		}
	}
	if locator != "" && method != "" {
		if ep, ok := c.ByLocatorMethod(locator, method); ok {
			return ep
		}
	}
	return nil
}

func locatorKey(method, locator string) string {
	return strings.ToUpper(method) + " " + locator
}
