package server

import (
	"fmt"
	"time"
)

// ConnID 连接唯一标识（每条 WebSocket 连接一个，生命周期内不变）
type ConnID string

const (
	spawnBaseX   = 100.0
	spawnStepX   = 40.0
	spawnY       = 600.0
	playerWidth  = 30.0
	playerHeight = 30.0
)

// playerColors 头像颜色调色板，按槽位号循环取色
var playerColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FECA57", "#FF9FF3", "#54A0FF", "#5F27CD",
	"#00D2D3", "#FF9F43", "#E74C3C", "#3498DB", "#2ECC71", "#F39C12", "#9B59B6", "#1ABC9C",
}

// ColorForSlot 槽位号从 1 开始，超出调色板长度后回绕
func ColorForSlot(slot int) string {
	if slot < 1 {
		slot = 1
	}
	return playerColors[(slot-1)%len(playerColors)]
}

// SpawnForSlot 出生点只由槽位号决定
func SpawnForSlot(slot int) (x, y float64) {
	return spawnBaseX + spawnStepX*float64(slot), spawnY
}

// Kinematics 客户端上报的运动状态（服务端只保存最近一次，不做校验）
type Kinematics struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
	OnGround  bool    `json:"onGround"`
}

// Player 房间内的玩家实体
type Player struct {
	ID        ConnID
	Slot      int
	Name      string
	Color     string
	State     Kinematics
	Connected bool
	JoinedAt  time.Time
}

func newPlayer(id ConnID, slot int, name string, now time.Time) *Player {
	if name == "" {
		name = fmt.Sprintf("Player %d", slot)
	}
	x, y := SpawnForSlot(slot)
	return &Player{
		ID:        id,
		Slot:      slot,
		Name:      name,
		Color:     ColorForSlot(slot),
		State:     Kinematics{X: x, Y: y},
		Connected: true,
		JoinedAt:  now,
	}
}

// respawn 回到槽位出生点并清零速度
func (p *Player) respawn() {
	x, y := SpawnForSlot(p.Slot)
	p.State = Kinematics{X: x, Y: y}
}

// PlayerView 为广播给客户端的玩家快照
type PlayerView struct {
	ID        string  `json:"id"`
	Number    int     `json:"number"`
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
	OnGround  bool    `json:"onGround"`
	Connected bool    `json:"isConnected"`
	JoinedAt  int64   `json:"joinedAt"`
}

func (p *Player) view() PlayerView {
	return PlayerView{
		ID:        string(p.ID),
		Number:    p.Slot,
		Name:      p.Name,
		Color:     p.Color,
		X:         p.State.X,
		Y:         p.State.Y,
		Width:     playerWidth,
		Height:    playerHeight,
		VelocityX: p.State.VelocityX,
		VelocityY: p.State.VelocityY,
		OnGround:  p.State.OnGround,
		Connected: p.Connected,
		JoinedAt:  p.JoinedAt.UnixMilli(),
	}
}
