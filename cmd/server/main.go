package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"room-webhooks/internal/bootstrap"
)

func main() {
	// 1. 初始化应用
	app, err := bootstrap.NewApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// 2. 启动应用 (HTTP 服务器、Worker、周期任务)
	app.Start()

	// 3. 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.Log.Info("Shutdown signal received...")

	// 4. 优雅关闭
	app.Shutdown()
}
