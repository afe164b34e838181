package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mcp2api/internal/auth"
	"github.com/mcp2api/internal/config"
	"github.com/mcp2api/internal/discovery"
	"github.com/mcp2api/internal/dispatcher"
	"github.com/mcp2api/internal/endpoint"
	"github.com/mcp2api/internal/logging"
	"github.com/mcp2api/pkg/mcp"
	"go.uber.org/zap"
)

const (
	serverVersion   = "1.0.0"
	protocolVersion = "2024-11-05"
)

// Server MCP服务器
// 归一化目录在构造时一次性建好，之后只读，所有模式共享同一套工具实现
type Server struct {
	config     *config.Config
	catalog    *endpoint.Catalog
	discovery  *discovery.Service
	dispatcher *dispatcher.Dispatcher
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	// 工作协程池共享标准输出，响应写入必须串行
	stdoutMutex sync.Mutex

	// SSE 连接与会话管理
	sseConnections map[string]*SSEConnection
	sseMutex       sync.RWMutex
	sessions       map[string]*MCPSession
	sessionMutex   sync.RWMutex
}

// MCPSession MCP会话
type MCPSession struct {
	ID           string
	ClientID     string
	Endpoint     string
	CreatedAt    time.Time
	LastActivity time.Time
}

// NewServer 创建新的服务器实例
// 目录必须已经完整构建：规范加载失败时不允许走到这一步
func NewServer(cfg *config.Config, catalog *endpoint.Catalog) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	resolver := auth.NewResolver(cfg.API.Auth)

	disp, err := dispatcher.NewDispatcher(catalog, resolver, cfg, logging.Logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("创建请求调度器失败: %w", err)
	}

	return &Server{
		config:         cfg,
		catalog:        catalog,
		discovery:      discovery.NewService(catalog, logging.Logger),
		dispatcher:     disp,
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		sseConnections: make(map[string]*SSEConnection),
		sessions:       make(map[string]*MCPSession),
	}, nil
}

// Start 启动服务器
func (s *Server) Start() error {
	switch s.config.Server.Mode {
	case "stdio":
		return s.startStdioServer()
	case "sse":
		return s.startSSEServer()
	case "websocket":
		return s.startWebSocketServer()
	default:
		return fmt.Errorf("不支持的服务器模式: %s (支持: stdio, sse, websocket)", s.config.Server.Mode)
	}
}

// Stop 停止服务器
func (s *Server) Stop() error {
	logging.Logger.Info("正在停止服务器")
	s.cancel()

	if s.httpServer != nil {
		err := s.httpServer.Shutdown(context.Background())
		s.closeDone()
		return err
	}

	s.closeDone()
	return nil
}

// StopWithContext 使用上下文停止服务器
func (s *Server) StopWithContext(ctx context.Context) error {
	logging.Logger.Info("正在停止服务器")
	s.cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.closeDone()
			return err
		}
		s.closeDone()
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.closeDone()
		return ctx.Err()
	}
}

// Done 返回完成通道
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// closeDone 安全关闭 done 通道
func (s *Server) closeDone() {
	select {
	case <-s.done:
		// 通道已经关闭
	default:
		close(s.done)
	}
}

// serverName 根据模式获取服务器名称
func (s *Server) serverName() string {
	switch s.config.Server.Mode {
	case "sse":
		return "MCP2API-SSE"
	case "websocket":
		return "MCP2API-WS"
	default:
		return "MCP2API"
	}
}

// handleMCPRequest 处理一条MCP请求，返回待发送的响应字节
// 通知类请求返回nil表示无需响应
func (s *Server) handleMCPRequest(data []byte) ([]byte, error) {
	var request mcp.MCPRequest
	if err := json.Unmarshal(data, &request); err != nil {
		logging.Logger.Warn("解析MCP请求失败", zap.Error(err))
		errResp := mcp.NewErrorResponse("", -32700, "parse error")
		return json.Marshal(errResp)
	}

	logging.Logger.Info("收到MCP请求",
		zap.String("id", request.GetIDString()),
		zap.String("method", request.Method),
	)

	if request.JSONRPC != "2.0" {
		errResp := mcp.NewErrorResponse(request.GetIDString(), -32600, "unsupported JSON-RPC version")
		return json.Marshal(errResp)
	}

	switch request.Method {
	case "initialize":
		return s.handleInitialize(request)
	case "notifications/initialized", "notifications/cancelled":
		// 通知类请求无需响应
		return nil, nil
	case "tools/list":
		return s.handleToolsList(request)
	case "toolCall", "tools/call":
		return s.handleToolCall(request)
	case "exit":
		return s.handleExit(request)
	default:
		errResp := mcp.NewErrorResponse(request.GetIDString(), -32601, "method not found")
		return json.Marshal(errResp)
	}
}

// handleInitialize 处理初始化请求
func (s *Server) handleInitialize(request mcp.MCPRequest) ([]byte, error) {
	var initParams struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}

	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &initParams); err != nil {
			errResp := mcp.NewErrorResponse(request.GetIDString(), -32602, "invalid initialize params")
			return json.Marshal(errResp)
		}
	}

	logging.Logger.Info("客户端初始化",
		zap.String("client", initParams.ClientInfo.Name),
		zap.String("version", initParams.ClientInfo.Version),
		zap.String("protocol", initParams.ProtocolVersion),
	)

	initResult := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{
				"listChanged": false,
			},
		},
		"serverInfo": map[string]interface{}{
			"name":    s.serverName(),
			"version": serverVersion,
		},
	}

	return s.marshalSuccess(request, initResult)
}

// handleToolsList 处理工具列表请求
func (s *Server) handleToolsList(request mcp.MCPRequest) ([]byte, error) {
	tools := s.toolDefinitions()

	logging.Logger.Info("返回工具列表", zap.Int("count", len(tools)))

	return s.marshalSuccess(request, map[string]interface{}{
		"tools": tools,
	})
}

// handleToolCall 处理工具调用请求
func (s *Server) handleToolCall(request mcp.MCPRequest) ([]byte, error) {
	startTime := time.Now()

	toolParams, err := mcp.ParseToolCallParams(request.Params)
	if err != nil {
		errResp := mcp.NewErrorResponse(request.GetIDString(), -32602, fmt.Sprintf("invalid params: %v", err))
		return json.Marshal(errResp)
	}

	logging.Logger.Info("工具调用",
		zap.String("tool", toolParams.Name),
	)

	result, err := s.callTool(toolParams.Name, toolParams.Args())
	if err != nil {
		// 硬失败（网络层无响应等）映射为JSON-RPC内部错误，进程保持存活
		logging.Logger.Error("工具调用失败", zap.String("tool", toolParams.Name), zap.Error(err))
		errResp := mcp.NewErrorResponse(request.GetIDString(), -32603, fmt.Sprintf("internal error: %v", err))
		return json.Marshal(errResp)
	}

	logging.Logger.Info("工具调用完成",
		zap.String("tool", toolParams.Name),
		zap.Duration("duration", time.Since(startTime)),
	)

	return s.marshalSuccess(request, result)
}

// handleExit 处理退出请求
func (s *Server) handleExit(request mcp.MCPRequest) ([]byte, error) {
	logging.Logger.Info("收到退出请求，准备关闭服务器")

	responseBytes, err := s.marshalSuccess(request, nil)
	if err != nil {
		return nil, err
	}

	go func() {
		// 给响应发送留一点时间
		time.Sleep(50 * time.Millisecond)
		s.Stop()
		os.Exit(0)
	}()

	return responseBytes, nil
}

// marshalSuccess 构造并序列化成功响应
func (s *Server) marshalSuccess(request mcp.MCPRequest, result interface{}) ([]byte, error) {
	response, err := mcp.NewSuccessResponse(request.GetIDString(), result)
	if err != nil {
		errResp := mcp.NewErrorResponse(request.GetIDString(), -32603, "failed to build response")
		return json.Marshal(errResp)
	}
	return json.Marshal(response)
}
