package server

import "sync"

// ConnRegistry 连接 → 房间号 的显式关联表，每个连接同一时刻最多属于一个房间
type ConnRegistry struct {
	mu    sync.RWMutex
	rooms map[ConnID]string
}

func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{rooms: make(map[ConnID]string)}
}

// Bind 关联到新房间，返回之前关联的房间号（若有）
func (c *ConnRegistry) Bind(id ConnID, code string) (prev string, had bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, had = c.rooms[id]
	c.rooms[id] = code
	return prev, had
}

func (c *ConnRegistry) Lookup(id ConnID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	code, ok := c.rooms[id]
	return code, ok
}

// Unbind 解除关联并返回原房间号
func (c *ConnRegistry) Unbind(id ConnID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	code, ok := c.rooms[id]
	delete(c.rooms, id)
	return code, ok
}

func (c *ConnRegistry) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}
