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

func main() {
	// 自动加载 .env 文件
	if err := config.LoadEnvFile(""); err != nil {
		log.Printf("加载环境变量文件失败: %v", err)
	}

	// 初始化日志
	if err := logging.InitLogger(); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logging.Sync()

	// 初始化调试模式
	debug.InitDebug()

	logging.Logger.Info("===== 启动 MCP2API 服务器 =====",
		zap.Int("pid", os.Getpid()),
		zap.Int("ppid", os.Getppid()),
	)

	// 命令行参数
	configFile := flag.String("config", "configs/api_config.yaml", "API配置文件路径")
	flag.Parse()
	logging.Logger.Info("命令行参数", zap.String("config", *configFile))

	// 加载配置
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logging.Logger.Fatal("加载配置失败", zap.Error(err))
	}
	logging.Logger.Info("配置加载成功",
		zap.String("mode", cfg.Server.Mode),
		zap.String("type", cfg.API.Type),
		zap.String("spec", cfg.API.SpecSource),
	)

	// 加载并归一化API规范
	catalog, err := endpoint.BuildCatalog(context.Background(), cfg, logging.Logger)
	if err != nil {
		logging.Logger.Fatal("构建端点目录失败", zap.Error(err))
	}
	logging.Logger.Info("端点目录构建完成",
		zap.String("format", string(catalog.Format)),
		zap.Int("endpoints", len(catalog.Endpoints)),
		zap.String("base_url", catalog.BaseURL),
	)

	// 创建服务器
	srv, err := server.NewServer(cfg, catalog)
	if err != nil {
		logging.Logger.Fatal("创建服务器失败", zap.Error(err))
	}

	// 启动服务器
	go func() {
		if err := srv.Start(); err != nil {
			logging.Logger.Error("服务器启动失败", zap.Error(err))
			os.Exit(1)
		}
	}()

	logging.Logger.Info("MCP2API 服务器已启动", zap.String("mode", cfg.Server.Mode))

	// 等待信号或服务器自行停止
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Logger.Info("收到信号，开始关闭", zap.String("signal", sig.String()))
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
