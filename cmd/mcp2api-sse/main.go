package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcp2api/internal/config"
	"github.com/mcp2api/internal/debug"
	"github.com/mcp2api/internal/endpoint"
	"github.com/mcp2api/internal/logging"
	"github.com/mcp2api/internal/server"
	"go.uber.org/zap"
)

// SSE专用入口：无论配置里写的是什么模式，都以SSE模式启动
func main() {
	if err := config.LoadEnvFile(""); err != nil {
		log.Printf("加载环境变量文件失败: %v", err)
	}

	if err := logging.InitLogger(); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logging.Sync()

	debug.InitDebug()

	logging.Logger.Info("===== 启动 MCP2API-SSE 服务器 =====",
		zap.Int("pid", os.Getpid()),
	)

	configFile := flag.String("config", "configs/api_config.yaml", "API配置文件路径")
	port := flag.Int("port", 0, "监听端口，覆盖配置文件")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logging.Logger.Fatal("加载配置失败", zap.Error(err))
	}

	cfg.Server.Mode = "sse"
	if *port > 0 {
		cfg.Server.Port = *port
	}

	catalog, err := endpoint.BuildCatalog(context.Background(), cfg, logging.Logger)
	if err != nil {
		logging.Logger.Fatal("构建端点目录失败", zap.Error(err))
	}
	logging.Logger.Info("端点目录构建完成",
		zap.String("format", string(catalog.Format)),
		zap.Int("endpoints", len(catalog.Endpoints)),
	)

	srv, err := server.NewServer(cfg, catalog)
	if err != nil {
		logging.Logger.Fatal("创建服务器失败", zap.Error(err))
	}

	go func() {
		if err := srv.Start(); err != nil {
			logging.Logger.Error("服务器启动失败", zap.Error(err))
			os.Exit(1)
		}
	}()

	logging.Logger.Info("MCP2API-SSE 服务器已启动",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logging.Logger.Info("收到信号，开始优雅关闭", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.StopWithContext(ctx); err != nil {
			logging.Logger.Warn("服务器关闭超时", zap.Error(err))
		}
	case <-srv.Done():
		logging.Logger.Info("服务器已停止")
	}

	logging.Sync()
	os.Exit(0)
}
