package server

import (
	"encoding/json"
	"sync"
)

// Broadcaster 广播网关：按房间分组扇出，或定向回复单个连接。
// 实现必须非阻塞，房间会在持锁状态下调用。
type Broadcaster interface {
	Subscribe(room string, id ConnID)
	Unsubscribe(room string, id ConnID)
	ToRoom(room string, msg Outbound)
	ToRoomExcept(room string, except ConnID, msg Outbound)
	ToConn(id ConnID, msg Outbound)
}

// Sender 连接的发送端；队列满时返回 false
type Sender interface {
	Enqueue(b []byte) bool
}

// Hub 管理所有连接与房间广播组
type Hub struct {
	mu      sync.RWMutex
	conns   map[ConnID]Sender
	groups  map[string]map[ConnID]struct{}
	metrics *Metrics
}

func NewHub(metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Hub{
		conns:   make(map[ConnID]Sender),
		groups:  make(map[string]map[ConnID]struct{}),
		metrics: metrics,
	}
}

func (h *Hub) Register(id ConnID, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = s
}

// Unregister 移除连接并清理其所在的所有广播组
func (h *Hub) Unregister(id ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
	for room, members := range h.groups {
		delete(members, id)
		if len(members) == 0 {
			delete(h.groups, room)
		}
	}
}

func (h *Hub) Subscribe(room string, id ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[room]
	if !ok {
		members = make(map[ConnID]struct{})
		h.groups[room] = members
	}
	members[id] = struct{}{}
}

func (h *Hub) Unsubscribe(room string, id ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(h.groups, room)
		}
	}
}

func (h *Hub) ToRoom(room string, msg Outbound) {
	h.ToRoomExcept(room, "", msg)
}

func (h *Hub) ToRoomExcept(room string, except ConnID, msg Outbound) {
	b, ok := encode(msg)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range h.groups[room] {
		if id == except {
			continue
		}
		h.send(id, b)
	}
}

func (h *Hub) ToConn(id ConnID, msg Outbound) {
	b, ok := encode(msg)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.send(id, b)
}

// send 调用方持有 h.mu 读锁
func (h *Hub) send(id ConnID, b []byte) {
	s, ok := h.conns[id]
	if !ok {
		return
	}
	if !s.Enqueue(b) {
		h.metrics.IncChanFullDiscarded()
	}
}

// GroupSize 房间广播组当前人数
func (h *Hub) GroupSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[room])
}

func encode(msg Outbound) ([]byte, bool) {
	b, err := json.Marshal(msg)
	if err != nil {
		Log.Errorf("encode %s: %v", msg.Event, err)
		return nil, false
	}
	return b, true
}

// ConnCount 当前已注册的连接数
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
