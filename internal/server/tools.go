package server

import (
	"encoding/json"
	"fmt"

	"github.com/mcp2api/internal/auth"
	"github.com/mcp2api/internal/dispatcher"
	"github.com/mcp2api/internal/endpoint"
	"github.com/mcp2api/pkg/mcp"
)

// 工具名按加载的规范格式变化，分发操作两种格式共用
const toolMakeAPICall = "make_api_call"

// toolNames 返回当前格式下的发现操作工具名：列表、详情、搜索
func (s *Server) toolNames() (string, string, string) {
	if s.catalog.Format == endpoint.FormatPostman {
		return "list_requests", "get_request_details", "search_requests"
	}
	return "list_endpoints", "get_endpoint_details", "search_endpoints"
}

// locatorArgName Postman的定位串是完整URL，OpenAPI是路径模板
func (s *Server) locatorArgName() string {
	if s.catalog.Format == endpoint.FormatPostman {
		return "url"
	}
	return "path"
}

// groupArgName 过滤参数名：OpenAPI按tag，Postman按folder
func (s *Server) groupArgName() string {
	if s.catalog.Format == endpoint.FormatPostman {
		return "folder"
	}
	return "tag"
}

// toolDefinitions 构建对外公开的四个工具定义
func (s *Server) toolDefinitions() []mcp.Tool {
	listName, detailsName, searchName := s.toolNames()
	locatorArg := s.locatorArgName()
	groupArg := s.groupArgName()

	idDescription := "Endpoint identifier returned by " + listName
	locatorDescription := "Path template of the endpoint, e.g. /users/{id}"
	if s.catalog.Format == endpoint.FormatPostman {
		locatorDescription = "Raw request URL, e.g. {{baseUrl}}/users/:id"
	}

	return []mcp.Tool{
		{
			Name:        listName,
			Description: "List available API endpoints, optionally filtered by HTTP method or " + groupArg,
			InputSchema: objectSchema(map[string]interface{}{
				"method": stringProp("Filter by HTTP method (exact, case-insensitive)"),
				groupArg: stringProp("Filter by " + groupArg + " substring"),
				"limit":  integerProp("Maximum number of endpoints to return (default 50)"),
			}, nil),
		},
		{
			Name:        detailsName,
			Description: "Get full metadata for one endpoint: parameters, request body, responses and security",
			InputSchema: objectSchema(map[string]interface{}{
				"id":       stringProp(idDescription),
				locatorArg: stringProp(locatorDescription),
				"method":   stringProp("HTTP method, required when using " + locatorArg + " instead of id"),
			}, nil),
		},
		{
			Name:        searchName,
			Description: "Search endpoints by keywords with relevance ranking",
			InputSchema: objectSchema(map[string]interface{}{
				"query": stringProp("Space-separated keywords to search for"),
				"limit": integerProp("Maximum number of results to return (default 20)"),
			}, []string{"query"}),
		},
		{
			Name:        toolMakeAPICall,
			Description: "Execute an HTTP request against the target API",
			InputSchema: objectSchema(map[string]interface{}{
				"id":       stringProp(idDescription),
				locatorArg: stringProp(locatorDescription),
				"method":   stringProp("HTTP method, required when using " + locatorArg + " instead of id"),
				"parameters": map[string]interface{}{
					"type":        "object",
					"description": "Path, query and header parameters keyed by name; header_ prefixed keys become request headers",
				},
				"body": map[string]interface{}{
					"description": "Request body: strings pass through unchanged, other values are JSON-encoded",
				},
				"auth": map[string]interface{}{
					"type":        "object",
					"description": "Per-call credentials overriding the configured default: {type, username, password, token, apiKey, apiKeyName, apiKeyIn}",
				},
			}, nil),
		},
	}
}

// callTool 将工具调用路由到发现服务或调度器，输出统一为文本结果
func (s *Server) callTool(name string, args map[string]interface{}) (*mcp.ToolCallResult, error) {
	listName, detailsName, searchName := s.toolNames()
	if args == nil {
		args = make(map[string]interface{})
	}

	switch name {
	case listName:
		result := s.discovery.List(
			stringArg(args, "method"),
			stringArg(args, s.groupArgName()),
			intArg(args, "limit"),
		)
		return textResult(result, false)

	case detailsName:
		details, message := s.discovery.Details(
			stringArg(args, "id"),
			stringArg(args, s.locatorArgName()),
			stringArg(args, "method"),
		)
		if message != "" {
			return mcp.NewToolResultText(message, true), nil
		}
		return textResult(details, false)

	case searchName:
		query := stringArg(args, "query")
		if query == "" {
			return mcp.NewToolResultText("Parameter 'query' is required.", true), nil
		}
		result := s.discovery.Search(query, intArg(args, "limit"))
		return textResult(result, false)

	case toolMakeAPICall:
		return s.callMakeAPICall(args)

	default:
		return mcp.NewToolResultText(fmt.Sprintf("Unknown tool: %s", name), true), nil
	}
}

// callMakeAPICall 装配调度输入并执行
func (s *Server) callMakeAPICall(args map[string]interface{}) (*mcp.ToolCallResult, error) {
	callAuth, err := auth.ParseCallAuth(args["auth"])
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Invalid auth parameter: %v", err), true), nil
	}

	parameters, _ := args["parameters"].(map[string]interface{})

	call := dispatcher.Call{
		ID:         stringArg(args, "id"),
		Locator:    stringArg(args, s.locatorArgName()),
		Method:     stringArg(args, "method"),
		Parameters: parameters,
		Body:       args["body"],
		Auth:       callAuth,
	}

	result, message, err := s.dispatcher.Execute(s.ctx, call)
	if err != nil {
		// 无响应的传输层失败向调用方传播为硬错误
		return nil, err
	}
	if message != "" {
		return mcp.NewToolResultText(message, true), nil
	}

	return textResult(result, result.Error)
}

// textResult 将结构化结果序列化为缩进JSON文本
func textResult(v interface{}, isError bool) (*mcp.ToolCallResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("序列化工具结果失败: %w", err)
	}
	return mcp.NewToolResultText(string(data), isError), nil
}

func objectSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func integerProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return 0
}
