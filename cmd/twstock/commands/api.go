package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jorseph/tw-stock/internal/api"
	"github.com/jorseph/tw-stock/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "啟動 API 伺服器",
	Long: `啟動 REST API 伺服器。

這個命令會:
- 啟動 HTTP API 伺服器
- 提供掃描控制與個股估值端點
- 以 WebSocket 推播掃描進度

Endpoints:
  GET  /health            - Health check
  POST /api/scan/start    - 啟動背景掃描
  POST /api/scan/cancel   - 取消掃描
  GET  /api/scan/status   - 掃描狀態
  GET  /api/scan/results  - 最近一次掃描結果
  GET  /api/stock/{code}  - 個股估值
  WS   /ws/scan           - 掃描進度串流

Example:
  go run ./cmd/twstock api
  go run ./cmd/twstock api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 伺服器埠 (預設讀 PORT 環境變數)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== tw-stock API Server ===")

	ctx := context.Background()
	stack, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	if apiPort != "" {
		stack.cfg.Port = apiPort
	}

	// Progress hub feeds WebSocket clients from batch boundaries, and the
	// terminal result when the run ends
	hub := api.NewHub(stack.log)
	stack.runner.OnProgress(hub.BroadcastProgress)
	stack.runner.OnComplete(hub.BroadcastResult)

	scanHandler := handlers.NewScanHandler(stack.runner, stack.cfg.Scan, stack.log)
	stockHandler := handlers.NewStockHandler(stack.quotes, stack.bundles, stack.uniRepo, stack.cfg.Scan, stack.log)

	router := api.NewRouter(scanHandler, stockHandler, hub, stack.log)
	server := api.New(stack.cfg, stack.log, router)

	go func() {
		if err := server.Start(); err != nil {
			stack.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", stack.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	// 先讓掃描停在 batch 邊界再關伺服器
	stack.runner.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	stack.log.Info("Server stopped")
	return nil
}
