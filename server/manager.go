package server

import (
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// RoomCodeLength 房间号规范化后的固定长度
const RoomCodeLength = 6

// NormalizeRoomCode 去除首尾空白并转大写；长度不为 6 时返回 ErrInvalidRoomCode
func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := validate.Var(code, "len=6"); err != nil {
		return "", ErrInvalidRoomCode
	}
	return code, nil
}

// RoomStore 管理多个房间的生命周期：首次引用时创建，最后一名玩家离开时销毁
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	rules   Rules
	gen     LevelGenerator
	out     Broadcaster
	metrics *Metrics
}

// NewRoomStore 在进程启动时显式构造
func NewRoomStore(rules Rules, gen LevelGenerator, out Broadcaster, metrics *Metrics) *RoomStore {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &RoomStore{
		rooms:   make(map[string]*Room),
		rules:   rules,
		gen:     gen,
		out:     out,
		metrics: metrics,
	}
}

// GetOrCreate 获取或创建房间；房间号非法时不做任何修改
func (m *RoomStore) GetOrCreate(code string) (*Room, error) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[code]
	if !ok {
		r = NewRoom(code, m.rules, m.gen, m.out, m.metrics)
		r.onEmpty = m.forget
		m.rooms[code] = r
		m.metrics.IncRoomsCreated()
		Log.Infof("created new room: %s", code)
	}
	return r, nil
}

// Get 只读查找
func (m *RoomStore) Get(code string) (*Room, bool) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	return r, ok
}

// Remove 移除并关闭房间（关闭会取消其所有定时器）
func (m *RoomStore) Remove(code string) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return
	}
	m.mu.Lock()
	r, ok := m.rooms[code]
	delete(m.rooms, code)
	m.mu.Unlock()
	if ok {
		r.Close()
	}
}

// forget 房间关闭回调（在房间锁内调用，锁顺序为 房间 → Store）。
// 只有映射仍指向该房间时才删除，避免旧房间误删同名新房间。
func (m *RoomStore) forget(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[r.code]; ok && cur == r {
		delete(m.rooms, r.code)
		m.metrics.IncRoomsDestroyed()
		Log.Infof("room %s deleted (no players left)", r.code)
	}
}

// Count 当前房间数
func (m *RoomStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Infos 按房间号排序的房间概要
func (m *RoomStore) Infos() []RoomInfo {
	m.mu.RLock()
	rooms := lo.Values(m.rooms)
	m.mu.RUnlock()
	infos := lo.Map(rooms, func(r *Room, _ int) RoomInfo { return r.Info() })
	slices.SortFunc(infos, func(a, b RoomInfo) int { return strings.Compare(a.ID, b.ID) })
	return infos
}

// CloseAll 进程退出时关闭所有房间
func (m *RoomStore) CloseAll() {
	m.mu.Lock()
	rooms := lo.Values(m.rooms)
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
}
