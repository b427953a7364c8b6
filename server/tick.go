package server

import (
	"context"
	"time"
)

// StartStatsTicker 周期性把运行指标写入日志，ctx 取消时退出
func (s *Server) StartStatsTicker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				Log.Infow("stats",
					"rooms", s.store.Count(),
					"connections", s.hub.ConnCount(),
					"members", s.registry.Len(),
					"metrics", s.metrics.Snapshot(),
				)
			}
		}
	}()
}
