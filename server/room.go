package server

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Phase 房间阶段
type Phase int

const (
	PhaseWaiting Phase = iota
	PhasePlaying
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhasePlaying:
		return "playing"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "waiting":
		*p = PhaseWaiting
	case "playing":
		*p = PhasePlaying
	case "completed":
		*p = PhaseCompleted
	default:
		return fmt.Errorf("unknown phase %q", b)
	}
	return nil
}

// JoinOutcome 加入结果：新分配槽位或同一连接的重复加入
type JoinOutcome int

const (
	JoinCreated JoinOutcome = iota + 1
	JoinRefreshed
)

// RoomFullError 携带满员时的人数，便于回复客户端
type RoomFullError struct {
	Current int
	Max     int
}

func (e *RoomFullError) Error() string {
	return fmt.Sprintf("room is full (%d/%d)", e.Current, e.Max)
}

func (e *RoomFullError) Unwrap() error { return ErrRoomFull }

// Room 房间聚合：玩家槽位、开关状态、关卡号与阶段。
// 所有读写与由此产生的广播都在 mu 内串行完成，不同房间互不阻塞。
type Room struct {
	mu sync.Mutex

	code    string
	rules   Rules
	gen     LevelGenerator
	out     Broadcaster
	metrics *Metrics
	onEmpty func(*Room)
	now     func() time.Time

	phase        Phase
	level        int
	levelDef     *Level
	createdAt    time.Time
	lastActivity time.Time

	players  []*Player // 加入顺序
	nextSlot int
	switches map[string]*SwitchState

	// 本关谜题簿记
	solved        bool // 同步/序列谜题已解开：全部门打开
	coopSolved    bool
	patternFailed bool // 等待序列重置期间忽略新的序列开关
	patternRank   int

	timers roomTimers
	closed bool
}

// NewRoom 创建处于 waiting 阶段、关卡 1 的空房间
func NewRoom(code string, rules Rules, gen LevelGenerator, out Broadcaster, metrics *Metrics) *Room {
	now := time.Now()
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Room{
		code:         code,
		rules:        rules,
		gen:          gen,
		out:          out,
		metrics:      metrics,
		now:          time.Now,
		phase:        PhaseWaiting,
		level:        1,
		createdAt:    now,
		lastActivity: now,
		switches:     make(map[string]*SwitchState),
		timers:       newRoomTimers(),
	}
}

// Code 房间号（已规范化）
func (r *Room) Code() string { return r.code }

// Join 将连接加入房间；同一连接重复加入只刷新名字与连接状态
func (r *Room) Join(id ConnID, name string) (PlayerView, JoinOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return PlayerView{}, 0, errRoomClosed
	}
	now := r.now()
	if p := r.player(id); p != nil {
		if name != "" {
			p.Name = name
		}
		p.Connected = true
		r.lastActivity = now
		r.announceJoin(p)
		return p.view(), JoinRefreshed, nil
	}
	if len(r.players) >= r.rules.MaxPlayers {
		return PlayerView{}, 0, &RoomFullError{Current: len(r.players), Max: r.rules.MaxPlayers}
	}
	// 槽位号单调递增，离开后不复用
	r.nextSlot++
	p := newPlayer(id, r.nextSlot, name, now)
	r.players = append(r.players, p)
	r.lastActivity = now
	r.out.Subscribe(r.code, id)
	r.announceJoin(p)
	return p.view(), JoinCreated, nil
}

func (r *Room) announceJoin(p *Player) {
	state := gameStateMsg{
		Players:    r.roster(),
		GameState:  r.phase,
		Level:      r.level,
		PlayerID:   string(p.ID),
		RoomID:     r.code,
		PlayerName: p.Name,
		LevelData:  r.levelDef,
	}
	if r.levelDef != nil {
		state.Switches = r.switchViews()
		state.Doors = r.doors()
	}
	r.out.ToConn(p.ID, Outbound{Event: EventGameState, Data: state})
	r.out.ToRoom(r.code, Outbound{Event: EventPlayerJoined, Data: playerJoinedMsg{
		Players:   r.roster(),
		GameState: r.phase,
		NewPlayer: newPlayerRef{ID: string(p.ID), Name: p.Name},
	}})
	r.out.ToConn(p.ID, Outbound{Event: EventRoomJoined, Data: roomJoinedMsg{
		RoomID:      r.code,
		PlayerCount: len(r.players),
		MaxPlayers:  r.rules.MaxPlayers,
	}})
}

// Leave 移除玩家；不在房间内时为空操作。房间变空时关闭并返回 true。
func (r *Room) Leave(id ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	idx := slices.IndexFunc(r.players, func(p *Player) bool { return p.ID == id })
	if idx < 0 {
		return false
	}
	r.players = slices.Delete(r.players, idx, idx+1)
	r.lastActivity = r.now()
	r.out.Unsubscribe(r.code, id)
	if len(r.players) == 0 {
		r.close()
		return true
	}
	r.out.ToRoom(r.code, Outbound{Event: EventPlayerLeft, Data: playerLeftMsg{
		PlayerID:    string(id),
		Players:     r.roster(),
		PlayerCount: len(r.players),
	}})
	return false
}

// Close 强制关闭房间（进程退出或 Store.Remove）
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for _, p := range r.players {
		r.out.Unsubscribe(r.code, p.ID)
	}
	r.players = nil
	r.close()
}

// close 调用方必须持有 r.mu；此后所有定时回调都变为空操作
func (r *Room) close() {
	r.closed = true
	r.cancelAll()
	if r.onEmpty != nil {
		r.onEmpty(r)
	}
}

// UpdatePlayerState 覆盖玩家上报的运动状态并转发给其他成员（不回发给发送者）
func (r *Room) UpdatePlayerState(id ConnID, k Kinematics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.player(id)
	if p == nil || r.closed {
		return ErrNotInRoom
	}
	p.State = k
	r.lastActivity = r.now()
	r.out.ToRoomExcept(r.code, id, Outbound{Event: EventPlayerUpdate, Data: playerUpdateMsg{
		PlayerID:   string(id),
		PlayerData: k,
	}})
	return nil
}

// CanStart 人数达到下限且仍在等待阶段
func (r *Room) CanStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canStart()
}

func (r *Room) canStart() bool {
	return !r.closed && len(r.players) >= r.rules.MinPlayers && r.phase == PhaseWaiting
}

// Start 条件不满足时静默忽略；成功时按当前人数生成关卡并广播 gameStarted
func (r *Room) Start(id ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.player(id) == nil || !r.canStart() {
		return false
	}
	r.phase = PhasePlaying
	r.lastActivity = r.now()
	r.loadLevel(r.gen.Generate(r.level, len(r.players)))
	r.out.ToRoom(r.code, Outbound{Event: EventGameStarted, Data: gameStartedMsg{
		GameState:   r.phase,
		Level:       r.level,
		PlayerCount: len(r.players),
		LevelData:   r.levelDef,
	}})
	return true
}

// loadLevel 用新关卡替换开关状态并清空谜题簿记；调用方必须持有 r.mu
func (r *Room) loadLevel(lvl Level) {
	r.levelDef = &lvl
	r.switches = make(map[string]*SwitchState, len(lvl.Switches))
	for _, def := range lvl.Switches {
		r.switches[def.ID] = newSwitchState(def)
	}
	r.solved = false
	r.coopSolved = false
	r.patternFailed = false
	r.patternRank = 0
	r.cancel(timerSyncRecheck)
	r.cancel(timerPatternReset)
}

// Relay 无状态转发（聊天、表情），仅限房间成员
func (r *Room) Relay(id ConnID, msg Outbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.player(id) == nil || r.closed {
		return ErrNotInRoom
	}
	r.lastActivity = r.now()
	r.out.ToRoom(r.code, msg)
	return nil
}

// RoomInfo 房间概要（validateRoom 与管理接口使用）
type RoomInfo struct {
	ID           string `json:"id"`
	PlayerCount  int    `json:"playerCount"`
	MaxPlayers   int    `json:"maxPlayers"`
	GameState    Phase  `json:"gameState"`
	Level        int    `json:"level"`
	CreatedAt    int64  `json:"createdAt"`
	LastActivity int64  `json:"lastActivity"`
}

func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info()
}

func (r *Room) info() RoomInfo {
	return RoomInfo{
		ID:           r.code,
		PlayerCount:  len(r.players),
		MaxPlayers:   r.rules.MaxPlayers,
		GameState:    r.phase,
		Level:        r.level,
		CreatedAt:    r.createdAt.UnixMilli(),
		LastActivity: r.lastActivity.UnixMilli(),
	}
}

// RoomDetail 管理接口用的完整快照
type RoomDetail struct {
	RoomInfo
	Players  []PlayerView `json:"players"`
	Switches []SwitchView `json:"switches"`
	Doors    []DoorView   `json:"doors"`
}

func (r *Room) Detail() RoomDetail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomDetail{
		RoomInfo: r.info(),
		Players:  r.roster(),
		Switches: r.switchViews(),
		Doors:    r.doors(),
	}
}

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Room) Level() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Players 按加入顺序返回玩家快照
func (r *Room) Players() []PlayerView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roster()
}

// Switch 返回单个开关快照
func (r *Room) Switch(id string) (SwitchView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.switches[id]
	if !ok {
		return SwitchView{}, fmt.Errorf("%w: %s", ErrUnknownSwitch, id)
	}
	return s.view(), nil
}

// Door 返回单扇门的推导状态
func (r *Room) Door(id string) (DoorView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := lo.Find(r.doors(), func(d DoorView) bool { return d.ID == id })
	if !ok {
		return DoorView{}, fmt.Errorf("%w: %s", ErrUnknownDoor, id)
	}
	return d, nil
}

func (r *Room) player(id ConnID) *Player {
	p, _ := lo.Find(r.players, func(p *Player) bool { return p.ID == id })
	return p
}

func (r *Room) roster() []PlayerView {
	return lo.Map(r.players, func(p *Player, _ int) PlayerView { return p.view() })
}

func (r *Room) switchViews() []SwitchView {
	ids := lo.Keys(r.switches)
	slices.Sort(ids)
	return lo.Map(ids, func(id string, _ int) SwitchView { return r.switches[id].view() })
}

func (r *Room) doors() []DoorView {
	if r.levelDef == nil {
		return []DoorView{}
	}
	return DoorStates(r.levelDef.Doors, r.switches, r.solved)
}
