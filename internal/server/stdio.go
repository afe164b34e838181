package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mcp2api/internal/debug"
	"github.com/mcp2api/internal/logging"
	"github.com/mcp2api/pkg/mcp"
	"go.uber.org/zap"
)

// requestTask 请求任务
type requestTask struct {
	data []byte
}

// startStdioServer 启动标准输入/输出服务器
// 读取协程按行切分请求，工作协程池并发处理，响应写入由各自的处理流程完成
func (s *Server) startStdioServer() error {
	logging.Logger.Info("启动标准输入/输出服务器")

	reader := bufio.NewReaderSize(os.Stdin, 64*1024)

	requestChan := make(chan *requestTask, 100)

	var wg sync.WaitGroup

	// 启动工作协程池
	workerCount := 4
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.stdioWorker(requestChan)
			logging.Logger.Debug("工作协程已退出", zap.Int("worker", workerID))
		}(i)
	}

	// 启动读取协程
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(requestChan)
		defer func() {
			if r := recover(); r != nil {
				logging.Logger.Error("标准输入读取协程发生panic", zap.Any("panic", r))
			}
			// 读取结束即触发整体关闭
			s.cancel()
		}()

		for {
			select {
			case <-s.ctx.Done():
				return
			default:
			}

			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					// 标准输入关闭是stdio模式最可靠的关闭信号
					logging.Logger.Info("标准输入已关闭 (EOF)")
					return
				}
				logging.Logger.Warn("从标准输入读取失败", zap.Error(err))
				s.writeStdioError("", -32700, fmt.Sprintf("读取输入失败: %v", err))
				continue
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			task := &requestTask{data: []byte(line)}

			select {
			case requestChan <- task:
			case <-s.ctx.Done():
				return
			default:
				// 通道已满时在读取协程内直接处理，避免丢请求
				s.processRequest(task)
			}
		}
	}()

	<-s.ctx.Done()
	wg.Wait()

	s.closeDone()
	logging.Logger.Info("标准输入/输出服务器已停止")
	return nil
}

// stdioWorker 标准输入/输出工作协程
func (s *Server) stdioWorker(requestChan <-chan *requestTask) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case task, ok := <-requestChan:
			if !ok {
				return
			}
			s.processRequest(task)
		}
	}
}

// processRequest 处理单个请求并把响应写回标准输出
// 单条请求受全局超时约束，超时只影响该条请求，进程继续服务
func (s *Server) processRequest(task *requestTask) {
	debug.LogRequest("STDIO", "stdin", map[string]string{
		"Content-Type": "application/json",
	}, task.data)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Global.Timeout)
	defer cancel()

	type result struct {
		response []byte
		err      error
	}
	resultChan := make(chan result, 1)

	go func() {
		response, err := s.handleMCPRequest(task.data)
		resultChan <- result{response: response, err: err}
	}()

	select {
	case <-ctx.Done():
		logging.Logger.Warn("请求处理超时", zap.Duration("timeout", s.config.Global.Timeout))
		s.writeStdioError("", -32001, "Request timed out")
	case res := <-resultChan:
		if res.err != nil {
			logging.Logger.Error("处理MCP请求失败", zap.Error(res.err))
			s.writeStdioError("", -32603, fmt.Sprintf("处理请求失败: %v", res.err))
			return
		}

		// 通知类请求没有响应
		if res.response == nil {
			return
		}

		debug.LogResponse(200, map[string]string{
			"Content-Type": "application/json",
		}, res.response)

		s.writeStdioLine(res.response)
	}
}

// writeStdioLine 向标准输出写一行响应，写失败视为客户端断开
// 响应和换行符合并为一次写入并加锁，避免并发请求交错成帧
func (s *Server) writeStdioLine(response []byte) {
	line := make([]byte, 0, len(response)+1)
	line = append(line, response...)
	line = append(line, '\n')

	s.stdoutMutex.Lock()
	_, err := os.Stdout.Write(line)
	s.stdoutMutex.Unlock()

	if err != nil {
		logging.Logger.Warn("写入stdout失败，客户端可能已断开", zap.Error(err))
		s.cancel()
	}
}

// writeStdioError 构造并写出一条JSON-RPC错误响应
func (s *Server) writeStdioError(id string, code int, message string) {
	errResp := mcp.NewErrorResponse(id, code, message)
	response, err := json.Marshal(errResp)
	if err != nil {
		logging.Logger.Error("序列化错误响应失败", zap.Error(err))
		return
	}
	s.writeStdioLine(response)
}
