package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ClientConn 负责发送（写）数据到客户端的轻量包装，并对高频事件限流
type ClientConn struct {
	id   ConnID
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}

	moveLimiter *rate.Limiter
	chatLimiter *rate.Limiter
}

// ConnLimits 单连接限流参数
type ConnLimits struct {
	MoveRate  rate.Limit
	MoveBurst int
	ChatRate  rate.Limit
	ChatBurst int
	ReadLimit int64
}

func ConnLimitsFromConfig(c Config) ConnLimits {
	return ConnLimits{
		MoveRate:  rate.Limit(c.MoveRatePerSec),
		MoveBurst: c.MoveBurst,
		ChatRate:  rate.Limit(c.ChatRatePerSec),
		ChatBurst: c.ChatBurst,
		ReadLimit: c.WSReadLimit,
	}
}

func NewClientConn(ws *websocket.Conn, id ConnID, limits ConnLimits) *ClientConn {
	return &ClientConn{
		id:          id,
		ws:          ws,
		send:        make(chan []byte, 64),
		done:        make(chan struct{}),
		moveLimiter: rate.NewLimiter(limits.MoveRate, limits.MoveBurst),
		chatLimiter: rate.NewLimiter(limits.ChatRate, limits.ChatBurst),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃新消息（防止阻塞房间）
		return false
	}
}

// Close 关闭底层连接并结束写协程
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// allow 位置与聊天类事件按连接限流，其余事件不限
func (c *ClientConn) allow(event string) bool {
	switch event {
	case EventPlayerMove:
		return c.moveLimiter.Allow()
	case EventChatMessage, EventEmojiReaction:
		return c.chatLimiter.Allow()
	default:
		return true
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端事件并交给 Game 分发；退出时离开房间
func (c *ClientConn) readPump(s *Server, readLimit int64) {
	defer func() {
		s.game.Disconnect(c.id)
		s.hub.Unregister(c.id)
		c.Close()
		Log.Infof("player disconnected: %s", c.id)
	}()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil || validate.Struct(env) != nil {
			s.metrics.IncMalformed()
			continue
		}
		if !c.allow(env.Event) {
			s.metrics.IncRateLimited()
			continue
		}
		s.game.Dispatch(c.id, env)
	}
}

// Server 组装房间存储、连接关联表、广播网关与 HTTP 入口
type Server struct {
	cfg      Config
	limits   ConnLimits
	metrics  *Metrics
	hub      *Hub
	store    *RoomStore
	registry *ConnRegistry
	game     *Game
	upgrader websocket.Upgrader
}

// NewServer 进程启动时构造全部组件（无隐藏的全局单例）
func NewServer(cfg Config, gen LevelGenerator) *Server {
	metrics := &Metrics{}
	hub := NewHub(metrics)
	store := NewRoomStore(cfg.Rules(), gen, hub, metrics)
	registry := NewConnRegistry()
	return &Server{
		cfg:      cfg,
		limits:   ConnLimitsFromConfig(cfg),
		metrics:  metrics,
		hub:      hub,
		store:    store,
		registry: registry,
		game:     NewGame(store, registry, hub, metrics),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 演示环境：允许所有来源（生产环境需严格限制）
				return true
			},
		},
	}
}

// HandleWS WebSocket 接入；连接标识由服务端分配
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}
	id := ConnID(uuid.NewString())
	client := NewClientConn(ws, id, s.limits)
	s.hub.Register(id, client)
	Log.Infof("player connected: %s from %s", id, r.RemoteAddr)

	go client.writePump()
	go client.readPump(s, s.limits.ReadLimit)
}

// Shutdown 关闭所有房间（取消所有延迟任务）
func (s *Server) Shutdown() {
	s.store.CloseAll()
}
