package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcp2api/internal/debug"
	"github.com/mcp2api/internal/logging"
	"go.uber.org/zap"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	// MCP客户端通常从本地工具发起，来源检查交给部署层
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startWebSocketServer 启动WebSocket服务器
// 每个连接一条独立的JSON-RPC消息流，请求在连接的读循环内串行处理
func (s *Server) startWebSocketServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocketConnection)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logging.Logger.Info("WebSocket服务器启动",
		zap.String("addr", addr),
		zap.String("endpoint", "/ws"),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleWebSocketConnection 处理WebSocket连接 (GET /ws)
func (s *Server) handleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Warn("WebSocket升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	logging.Logger.Info("WebSocket客户端连接", zap.String("remote", r.RemoteAddr))

	// 写操作可能来自读循环和关闭通知两条路径
	var writeMutex sync.Mutex
	writeMessage := func(data []byte) error {
		writeMutex.Lock()
		defer writeMutex.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	// 服务器关闭时通知客户端
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-s.ctx.Done():
			writeMutex.Lock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			writeMutex.Unlock()
			conn.Close()
		case <-closed:
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Logger.Warn("WebSocket连接异常关闭", zap.Error(err))
			} else {
				logging.Logger.Info("WebSocket客户端断开", zap.String("remote", r.RemoteAddr))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		debug.LogRequest("WS", "/ws", map[string]string{
			"Remote-Addr": r.RemoteAddr,
		}, data)

		response, err := s.handleMCPRequest(data)
		if err != nil {
			logging.Logger.Error("处理MCP请求失败", zap.Error(err))
			continue
		}

		// 通知类请求没有响应
		if response == nil {
			continue
		}

		debug.LogResponse(200, map[string]string{
			"Content-Type": "application/json",
		}, response)

		if err := writeMessage(response); err != nil {
			logging.Logger.Warn("WebSocket写入失败", zap.Error(err))
			return
		}
	}
}
