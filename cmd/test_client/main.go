package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/mcp2api/pkg/mcp"
)

// TestClient MCP 测试客户端
// 以子进程方式启动stdio模式的服务器，通过管道交互
type TestClient struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	reader *bufio.Reader
}

// NewTestClient 创建新的测试客户端
func NewTestClient(serverPath, configPath string) (*TestClient, error) {
	cmd := exec.Command(serverPath, "-config", configPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("创建标准输入管道失败: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("创建标准输出管道失败: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("启动服务器失败: %w", err)
	}

	return &TestClient{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		reader: bufio.NewReader(stdout),
	}, nil
}

// SendRequest 发送一条MCP请求并等待响应
func (tc *TestClient) SendRequest(method string, params interface{}) (*mcp.MCPResponse, error) {
	idStr := fmt.Sprintf("test_%d", time.Now().UnixNano())
	idBytes, _ := json.Marshal(idStr)

	request := mcp.MCPRequest{
		JSONRPC: "2.0",
		ID:      idBytes,
		Method:  method,
	}

	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("序列化参数失败: %w", err)
	}
	request.Params = paramsBytes

	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	if _, err := tc.stdin.Write(append(requestBytes, '\n')); err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}

	responseChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		responseStr, err := tc.reader.ReadString('\n')
		if err != nil {
			errChan <- err
			return
		}
		responseChan <- responseStr
	}()

	select {
	case responseStr := <-responseChan:
		var response mcp.MCPResponse
		if err := json.Unmarshal([]byte(strings.TrimSpace(responseStr)), &response); err != nil {
			return nil, fmt.Errorf("解析响应失败: %w, 原始响应: %s", err, strings.TrimSpace(responseStr))
		}
		return &response, nil
	case err := <-errChan:
		return nil, fmt.Errorf("读取响应失败: %w", err)
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("读取响应超时")
	}
}

// Initialize 初始化 MCP 连接
func (tc *TestClient) Initialize() error {
	initParams := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{
				"listChanged": true,
			},
		},
		"clientInfo": map[string]interface{}{
			"name":    "MCP2API-TestClient",
			"version": "1.0.0",
		},
	}

	response, err := tc.SendRequest("initialize", initParams)
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}
	if response.Error != nil {
		return fmt.Errorf("初始化错误: %+v", response.Error)
	}

	fmt.Println("✅ MCP 连接初始化成功")
	return nil
}

// SendInitialized 发送初始化完成通知，通知没有响应
func (tc *TestClient) SendInitialized() error {
	request := mcp.MCPRequest{
		JSONRPC: "2.0",
		ID:      []byte("null"),
		Method:  "notifications/initialized",
		Params:  []byte("{}"),
	}

	requestBytes, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	if _, err := tc.stdin.Write(append(requestBytes, '\n')); err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}

	time.Sleep(100 * time.Millisecond)
	fmt.Println("✅ 初始化完成通知已发送")
	return nil
}

// GetToolsList 获取工具列表
func (tc *TestClient) GetToolsList() ([]map[string]interface{}, error) {
	response, err := tc.SendRequest("tools/list", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, fmt.Errorf("获取工具列表错误: %+v", response.Error)
	}

	var result struct {
		Tools []map[string]interface{} `json:"tools"`
	}
	if response.Result != nil {
		if err := json.Unmarshal(response.Result, &result); err != nil {
			return nil, fmt.Errorf("解析工具列表失败: %w", err)
		}
	}
	return result.Tools, nil
}

// CallTool 调用一个工具
func (tc *TestClient) CallTool(name string, arguments map[string]interface{}) (*mcp.MCPResponse, error) {
	return tc.SendRequest("tools/call", map[string]interface{}{
		"name":      name,
		"arguments": arguments,
	})
}

// Close 关闭客户端：先发exit，再SIGTERM，最后强杀
func (tc *TestClient) Close() error {
	if tc.cmd == nil || tc.cmd.Process == nil {
		return nil
	}

	exitRequest := mcp.MCPRequest{
		JSONRPC: "2.0",
		ID:      []byte(`"exit"`),
		Method:  "exit",
		Params:  []byte("{}"),
	}
	if exitBytes, err := json.Marshal(exitRequest); err == nil {
		tc.stdin.Write(append(exitBytes, '\n'))
		time.Sleep(500 * time.Millisecond)
	}

	if err := tc.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		fmt.Printf("发送 SIGTERM 失败: %v\n", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := tc.cmd.Process.Wait()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		fmt.Println("进程退出超时，强制终止...")
		return tc.cmd.Process.Kill()
	}
}

// printToolResult 解析并打印工具调用结果的文本内容
func printToolResult(response *mcp.MCPResponse) {
	if response == nil || response.Result == nil {
		return
	}

	var result mcp.ToolCallResult
	if err := json.Unmarshal(response.Result, &result); err != nil {
		fmt.Printf("响应: %s\n", string(response.Result))
		return
	}

	for _, item := range result.Content {
		if item.Type == "text" {
			fmt.Println(item.Text)
		}
	}
	if result.IsError {
		fmt.Println("(工具返回错误结果)")
	}
}

func main() {
	serverPath := flag.String("server", "./bin/mcp2api", "服务器可执行文件路径")
	configPath := flag.String("config", "./configs/api_config.yaml", "API配置文件路径")
	flag.Parse()

	if _, err := os.Stat(*serverPath); os.IsNotExist(err) {
		log.Fatalf("服务器可执行文件不存在: %s", *serverPath)
	}
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		log.Fatalf("配置文件不存在: %s", *configPath)
	}

	client, err := NewTestClient(*serverPath, *configPath)
	if err != nil {
		log.Fatalf("创建测试客户端失败: %v", err)
	}
	defer client.Close()

	fmt.Println("等待服务器启动...")
	time.Sleep(2 * time.Second)

	// 1. 初始化握手
	fmt.Println("1. 测试初始化...")
	if err := client.Initialize(); err != nil {
		log.Fatalf("初始化 MCP 连接失败: %v", err)
	}

	// 2. 初始化完成通知
	fmt.Println("2. 发送初始化完成通知...")
	if err := client.SendInitialized(); err != nil {
		log.Fatalf("发送初始化完成通知失败: %v", err)
	}

	// 3. 工具列表
	fmt.Println("3. 获取工具列表...")
	tools, err := client.GetToolsList()
	if err != nil {
		log.Fatalf("获取工具列表失败: %v", err)
	}

	fmt.Printf("✅ 发现 %d 个可用工具:\n", len(tools))
	var listTool, searchTool string
	for i, tool := range tools {
		name, _ := tool["name"].(string)
		description, _ := tool["description"].(string)
		fmt.Printf("  %d. %s: %s\n", i+1, name, description)
		if strings.HasPrefix(name, "list_") {
			listTool = name
		}
		if strings.HasPrefix(name, "search_") {
			searchTool = name
		}
	}

	// 4. 列出端点
	if listTool != "" {
		fmt.Printf("4. 调用 %s...\n", listTool)
		response, err := client.CallTool(listTool, map[string]interface{}{"limit": 10})
		if err != nil {
			fmt.Printf("❌ 工具调用失败: %v\n", err)
		} else if response.Error != nil {
			fmt.Printf("❌ 工具调用返回错误: %+v\n", response.Error)
		} else {
			fmt.Println("✅ 端点列表:")
			printToolResult(response)
		}
	}

	// 5. 搜索端点
	if searchTool != "" {
		query := "user"
		if args := flag.Args(); len(args) > 0 {
			query = strings.Join(args, " ")
		}
		fmt.Printf("5. 调用 %s (query=%q)...\n", searchTool, query)
		response, err := client.CallTool(searchTool, map[string]interface{}{"query": query})
		if err != nil {
			fmt.Printf("❌ 工具调用失败: %v\n", err)
		} else if response.Error != nil {
			fmt.Printf("❌ 工具调用返回错误: %+v\n", response.Error)
		} else {
			fmt.Println("✅ 搜索结果:")
			printToolResult(response)
		}
	}

	fmt.Println("🎉 测试完成")
}
