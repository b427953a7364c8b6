package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"pixelcoop/server"
)

// PixelCoop 入口：启动 HTTP + WebSocket 服务，房间按需创建
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}
	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(server.LogOptionsFromConfig(cfg)); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { err = multierr.Append(err, server.SyncLogger()) }()

	srv := server.NewServer(cfg, server.NewTemplateGenerator())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWS)
	// 前后端分离：将 / 映射到静态资源目录
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	// 管理与监控接口
	mux.HandleFunc("/admin/rooms", srv.HandleAdminRooms)
	mux.HandleFunc("/metrics", srv.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	httpSrv := &http.Server{Addr: cfg.Addr(), Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	srv.StartStatsTicker(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		server.Log.Infof("PixelCoop listening on %s; open http://localhost%v/", cfg.Addr(), cfg.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
		close(errCh)
	}()

	// 优雅退出（Ctrl+C）
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	server.Log.Info("Shutting down...")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown()
	return httpSrv.Shutdown(shutCtx)
}
