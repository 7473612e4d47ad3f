package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mieluoxxx/Lumina-API/internal/api"
	"github.com/Mieluoxxx/Lumina-API/internal/config"
	"github.com/Mieluoxxx/Lumina-API/internal/db"
	"github.com/Mieluoxxx/Lumina-API/internal/runner"
	"github.com/Mieluoxxx/Lumina-API/internal/storage"
)

const (
	// Version 项目版本
	Version = "0.1.0"
	// AppName 应用名称
	AppName = "Lumina-API"
)

func main() {
	configPath := flag.String("config", "", "yaml 配置文件路径（可选）")
	flag.Parse()

	log.Printf("=== %s v%s ===", AppName, Version)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}

	database, err := db.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatalf("❌ 初始化数据库失败: %v", err)
	}
	defer func() {
		if err := db.CloseDatabase(database); err != nil {
			log.Printf("⚠️ 关闭数据库失败: %v", err)
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(database); err != nil {
			log.Fatalf("❌ 数据库迁移失败: %v", err)
		}
	}

	runnerClient := runner.NewClient(cfg.Runner.BaseURL, cfg.Runner.SubmitTimeout)
	storageClient, err := storage.NewClient(cfg.Storage)
	if err != nil {
		log.Fatalf("❌ 初始化对象存储失败: %v", err)
	}
	if !storageClient.Enabled() {
		log.Println("ℹ️ 未配置对象存储，remote 环境的图片落地不可用")
	}

	router := api.SetupRouter(database, runnerClient, storageClient)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("🚀 服务启动: http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ 服务异常退出: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 收到退出信号，开始优雅关闭...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ 优雅关闭失败: %v", err)
	}
}
