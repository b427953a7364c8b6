package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminRooms 房间查询接口
// GET /admin/rooms              返回所有房间概要
// GET /admin/rooms?room=ABC123  返回单个房间的玩家、开关与门状态
func (s *Server) HandleAdminRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	code := r.URL.Query().Get("room")
	if code == "" {
		writeJSON(w, http.StatusOK, map[string]any{"rooms": s.store.Infos()})
		return
	}
	if _, err := NormalizeRoomCode(code); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	room, ok := s.store.Get(code)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, room.Detail())
}

// HandleMetrics 输出进程运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms":       s.store.Count(),
		"connections": s.hub.ConnCount(),
		"members":     s.registry.Len(),
		"metrics":     s.metrics.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
