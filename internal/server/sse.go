package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcp2api/internal/debug"
	"github.com/mcp2api/internal/logging"
	"go.uber.org/zap"
)

// SSEConnection SSE连接
type SSEConnection struct {
	ID         string
	Writer     http.ResponseWriter
	Flusher    http.Flusher
	Context    context.Context
	Cancel     context.CancelFunc
	RemoteAddr string
	SessionID  string

	// 心跳协程和消息推送共用同一个响应流，写入必须串行
	writeMutex sync.Mutex
}

// writeEvent 以SSE帧格式写出一个事件并立即刷新
func (c *SSEConnection) writeEvent(event string, data []byte) {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	c.Flusher.Flush()
}

// startSSEServer 启动SSE服务器
// 按照MCP SSE规范：GET /sse 建立事件流，POST /messages/?session_id= 提交请求
func (s *Server) startSSEServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", s.handleSSEConnection)
	mux.HandleFunc("/messages/", s.handleMCPMessages)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logging.Logger.Info("SSE服务器启动",
		zap.String("addr", addr),
		zap.String("sse_endpoint", "/sse"),
		zap.String("message_endpoint", "/messages/"),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleSSEConnection 处理SSE连接建立 (GET /sse)
func (s *Server) handleSSEConnection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientID := fmt.Sprintf("%s-%d", r.RemoteAddr, time.Now().UnixNano())
	sessionID := uuid.NewString()
	connCtx, connCancel := context.WithCancel(r.Context())

	conn := &SSEConnection{
		ID:         clientID,
		Writer:     w,
		Flusher:    flusher,
		Context:    connCtx,
		Cancel:     connCancel,
		RemoteAddr: r.RemoteAddr,
		SessionID:  sessionID,
	}

	session := &MCPSession{
		ID:           sessionID,
		ClientID:     clientID,
		Endpoint:     fmt.Sprintf("/messages/?session_id=%s", sessionID),
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
	}

	s.sseMutex.Lock()
	s.sseConnections[clientID] = conn
	s.sseMutex.Unlock()

	s.sessionMutex.Lock()
	s.sessions[sessionID] = session
	s.sessionMutex.Unlock()

	logging.Logger.Info("SSE客户端连接",
		zap.String("client", clientID),
		zap.String("session", sessionID),
	)

	// 按照MCP规范先下发专用消息端点
	conn.writeEvent("endpoint", []byte(session.Endpoint))

	for {
		select {
		case <-s.ctx.Done():
			s.removeSSEConnection(clientID)
			return
		case <-connCtx.Done():
			logging.Logger.Info("SSE客户端断开", zap.String("client", clientID))
			s.removeSSEConnection(clientID)
			return
		case <-time.After(30 * time.Second):
			// 心跳保持连接活跃
			s.sseMutex.RLock()
			currentConn, exists := s.sseConnections[clientID]
			s.sseMutex.RUnlock()
			if exists {
				heartbeat := fmt.Sprintf(`{"timestamp":"%s","session_id":"%s"}`,
					time.Now().Format(time.RFC3339), sessionID)
				currentConn.writeEvent("heartbeat", []byte(heartbeat))
			}
		}
	}
}

// handleMCPMessages 处理MCP消息 (POST /messages/?session_id=xxx)
// 同步返回202，实际响应通过会话对应的SSE流推送
func (s *Server) handleMCPMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "Missing session_id", http.StatusBadRequest)
		return
	}

	s.sessionMutex.RLock()
	session, exists := s.sessions[sessionID]
	s.sessionMutex.RUnlock()
	if !exists {
		http.Error(w, "Invalid session_id", http.StatusBadRequest)
		return
	}

	s.sessionMutex.Lock()
	session.LastActivity = time.Now()
	s.sessionMutex.Unlock()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logging.Logger.Warn("读取请求体失败", zap.Error(err))
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	debug.LogRequest("POST", r.URL.Path, map[string]string{
		"Content-Type": r.Header.Get("Content-Type"),
		"Session-ID":   sessionID,
	}, body)

	response, err := s.handleMCPRequest(body)
	if err != nil {
		logging.Logger.Error("处理MCP请求失败", zap.Error(err))
		http.Error(w, "failed to process request", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"Accepted"}`))

	// 通知类请求没有可推送的响应
	if response != nil {
		s.pushMessageToSession(sessionID, response)
	}
}

// pushMessageToSession 向指定会话的SSE流推送消息
func (s *Server) pushMessageToSession(sessionID string, message []byte) {
	s.sessionMutex.RLock()
	session, exists := s.sessions[sessionID]
	s.sessionMutex.RUnlock()
	if !exists {
		logging.Logger.Warn("会话不存在", zap.String("session", sessionID))
		return
	}

	s.sseMutex.RLock()
	conn, exists := s.sseConnections[session.ClientID]
	s.sseMutex.RUnlock()
	if !exists {
		logging.Logger.Warn("SSE连接不存在", zap.String("client", session.ClientID))
		return
	}

	conn.writeEvent("message", message)
}

// removeSSEConnection 移除SSE连接并清理对应会话
func (s *Server) removeSSEConnection(clientID string) {
	s.sseMutex.Lock()
	defer s.sseMutex.Unlock()

	conn, exists := s.sseConnections[clientID]
	if !exists {
		return
	}
	conn.Cancel()
	delete(s.sseConnections, clientID)

	s.sessionMutex.Lock()
	for sessionID, session := range s.sessions {
		if session.ClientID == clientID {
			delete(s.sessions, sessionID)
			break
		}
	}
	s.sessionMutex.Unlock()

	logging.Logger.Info("SSE连接已移除", zap.String("client", clientID))
}
