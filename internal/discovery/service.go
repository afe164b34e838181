package discovery

import (
	"sort"
	"strings"

	"github.com/mcp2api/internal/endpoint"
	"go.uber.org/zap"
)

// 列表与搜索的默认截断上限
const (
	DefaultListLimit   = 50
	DefaultSearchLimit = 20
)

// Service 在归一化端点目录上提供列表、详情和搜索操作
type Service struct {
	catalog *endpoint.Catalog
	logger  *zap.Logger
}

// NewService 创建新的发现服务
func NewService(catalog *endpoint.Catalog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog: catalog,
		logger:  logger.With(zap.String("component", "discovery")),
	}
}

// Overview 表示列表和搜索结果中的端点摘要
type Overview struct {
	ID         string   `json:"id"`
	Method     string   `json:"method"`
	Locator    string   `json:"locator"`
	Summary    string   `json:"summary,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	FolderPath string   `json:"folderPath,omitempty"`
	Deprecated bool     `json:"deprecated,omitempty"`
}

// ListResult 表示列表操作的输出
type ListResult struct {
	Total     int        `json:"total"`
	Endpoints []Overview `json:"endpoints"`
}

// List 返回端点列表，支持按方法精确匹配和按tag/folder子串过滤
// limit是硬上限：达到上限立即停止遍历，而不是取完再切片
func (s *Service) List(method, tag string, limit int) *ListResult {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	result := &ListResult{Endpoints: make([]Overview, 0)}
	tagLower := strings.ToLower(tag)

	for _, ep := range s.catalog.Endpoints {
		if method != "" && !strings.EqualFold(ep.Method, method) {
			continue
		}
		if tag != "" && !matchesTag(ep, tagLower) {
			continue
		}

		result.Endpoints = append(result.Endpoints, overview(ep))
		if len(result.Endpoints) >= limit {
			break
		}
	}

	result.Total = len(result.Endpoints)
	s.logger.Debug("列出端点",
		zap.String("method", method),
		zap.String("tag", tag),
		zap.Int("count", result.Total),
	)
	return result
}

// DetailsResult 表示详情操作的输出，OpenAPI端点附带解析后的安全方案
type DetailsResult struct {
	*endpoint.Endpoint
	SecuritySchemes []endpoint.SecurityScheme `json:"securitySchemes,omitempty"`
}

// Details 按id或(locator, method)解析单个端点的完整元数据
// 未命中时返回面向调用方的提示文本，而不是错误
func (s *Service) Details(id, locator, method string) (*DetailsResult, string) {
	ep := s.catalog.Resolve(id, locator, method)
	if ep == nil {
		s.logger.Debug("端点未命中",
			zap.String("id", id),
			zap.String("locator", locator),
			zap.String("method", method),
		)
		return nil, notFoundMessage(s.catalog.Format, id, locator, method)
	}

	result := &DetailsResult{Endpoint: ep}
	for _, name := range ep.Security {
		if scheme, ok := s.catalog.Schemes[name]; ok {
			result.SecuritySchemes = append(result.SecuritySchemes, scheme)
		}
	}

	return result, ""
}

// SearchResult 表示搜索操作的输出，相关性分数不对外暴露
type SearchResult struct {
	Query   string     `json:"query"`
	Total   int        `json:"total"`
	Results []Overview `json:"results"`
}

// Search 对端点做大小写不敏感的子串搜索并按相关性排序
// 每个查询词出现记1分，整词匹配额外加0.5分；全量扫描后排序再截断
func (s *Service) Search(query string, limit int) *SearchResult {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	words := distinctWords(query)

	type scored struct {
		ep    *endpoint.Endpoint
		score float64
	}
	var matches []scored

	for _, ep := range s.catalog.Endpoints {
		blob := ep.SearchBlob()
		score := 0.0
		for _, w := range words {
			if !strings.Contains(blob, w) {
				continue
			}
			score += 1
			if containsWholeWord(blob, w) {
				score += 0.5
			}
		}
		if score > 0 {
			matches = append(matches, scored{ep: ep, score: score})
		}
	}

	// 稳定排序保证同分结果维持遍历顺序
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	result := &SearchResult{Query: query, Results: make([]Overview, 0, len(matches))}
	for _, m := range matches {
		result.Results = append(result.Results, overview(m.ep))
	}
	result.Total = len(result.Results)

	s.logger.Debug("搜索端点",
		zap.String("query", query),
		zap.Int("count", result.Total),
	)
	return result
}

// matchesTag 判断tag过滤串是否命中端点的tags或文件夹路径
func matchesTag(ep *endpoint.Endpoint, tagLower string) bool {
	for _, t := range ep.Tags {
		if strings.Contains(strings.ToLower(t), tagLower) {
			return true
		}
	}
	return ep.FolderPath != "" && strings.Contains(strings.ToLower(ep.FolderPath), tagLower)
}

// distinctWords 拆分查询词并去重，保持首次出现的顺序
func distinctWords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	var words []string
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		words = append(words, f)
	}
	return words
}

// containsWholeWord 判断word是否以整词形式出现在blob中
// 词边界为非[a-z0-9_]字符或字符串首尾
func containsWholeWord(blob, word string) bool {
	for start := 0; ; {
		idx := strings.Index(blob[start:], word)
		if idx < 0 {
			return false
		}
		idx += start

		before := idx == 0 || !isWordChar(blob[idx-1])
		afterPos := idx + len(word)
		after := afterPos >= len(blob) || !isWordChar(blob[afterPos])
		if before && after {
			return true
		}

		start = idx + 1
	}
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9')
}

func overview(ep *endpoint.Endpoint) Overview {
	return Overview{
		ID:         ep.ID,
		Method:     ep.Method,
		Locator:    ep.Locator,
		Summary:    ep.Summary,
		Tags:       ep.Tags,
		FolderPath: ep.FolderPath,
		Deprecated: ep.Deprecated,
	}
}

// notFoundMessage 构造未命中端点时的提示文本，引导调用方先执行列表操作
func notFoundMessage(format endpoint.SourceFormat, id, locator, method string) string {
	listOp := "list_endpoints"
	if format == endpoint.FormatPostman {
		listOp = "list_requests"
	}

	ref := id
	if ref == "" {
		ref = method + " " + locator
	}
	return "No endpoint found for '" + strings.TrimSpace(ref) + "'. Use " + listOp + " to see available endpoints."
}
