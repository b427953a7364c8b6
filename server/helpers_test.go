package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder 记录房间发出的所有消息，替代真实 Hub
type recorder struct {
	mu     sync.Mutex
	sent   []sentMsg
	groups map[string]map[ConnID]bool
}

type sentMsg struct {
	room   string // 房间广播时非空
	conn   ConnID // 定向发送时非空
	except ConnID
	msg    Outbound
}

func newRecorder() *recorder {
	return &recorder{groups: make(map[string]map[ConnID]bool)}
}

func (r *recorder) Subscribe(room string, id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.groups[room] == nil {
		r.groups[room] = make(map[ConnID]bool)
	}
	r.groups[room][id] = true
}

func (r *recorder) Unsubscribe(room string, id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.groups[room], id)
}

func (r *recorder) ToRoom(room string, msg Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMsg{room: room, msg: msg})
}

func (r *recorder) ToRoomExcept(room string, except ConnID, msg Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMsg{room: room, except: except, msg: msg})
}

func (r *recorder) ToConn(id ConnID, msg Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMsg{conn: id, msg: msg})
}

// byEvent 按事件名筛选
func (r *recorder) byEvent(event string) []sentMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMsg
	for _, s := range r.sent {
		if s.msg.Event == event {
			out = append(out, s)
		}
	}
	return out
}

func (r *recorder) count(event string) int { return len(r.byEvent(event)) }

func (r *recorder) last(t *testing.T, event string) sentMsg {
	t.Helper()
	msgs := r.byEvent(event)
	require.NotEmpty(t, msgs, "no %s message sent", event)
	return msgs[len(msgs)-1]
}

func (r *recorder) members(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups[room])
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// genFunc 让普通函数满足 LevelGenerator
type genFunc func(levelNumber, playerCount int) Level

func (f genFunc) Generate(levelNumber, playerCount int) Level { return f(levelNumber, playerCount) }

func fastRules() Rules {
	return Rules{
		MinPlayers:        2,
		MaxPlayers:        16,
		SyncWindow:        40 * time.Millisecond,
		PatternResetDelay: 20 * time.Millisecond,
		LevelAdvanceDelay: 20 * time.Millisecond,
	}
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

// coopLevel n 个合作开关，一扇依赖全部开关的门
func coopLevel(n, required int) Level {
	lvl := Level{PuzzleType: PuzzleCooperative}
	for _, id := range ids("switch", n) {
		lvl.Switches = append(lvl.Switches, SwitchDef{ID: id, Type: PuzzleCooperative, RequiredPlayers: required})
	}
	lvl.Doors = []DoorDef{{ID: "door1", Type: PuzzleCooperative, RequiredSwitches: ids("switch", n)}}
	return lvl
}

func syncLevel(n int) Level {
	lvl := Level{PuzzleType: PuzzleSynchronized}
	for _, id := range ids("switch", n) {
		lvl.Switches = append(lvl.Switches, SwitchDef{ID: id, Type: PuzzleSynchronized, RequiredPlayers: 1})
	}
	lvl.Doors = []DoorDef{{ID: "master_door", Type: PuzzleSynchronized, RequiredSwitches: ids("switch", n)}}
	return lvl
}

// patternLevel orders[i] 为 switch(i+1) 的序号
func patternLevel(orders ...int) Level {
	lvl := Level{PuzzleType: PuzzlePattern}
	for i, o := range orders {
		lvl.Switches = append(lvl.Switches, SwitchDef{
			ID: fmt.Sprintf("switch%d", i+1), Type: PuzzlePattern, RequiredPlayers: 1, SequenceOrder: o,
		})
	}
	lvl.Doors = []DoorDef{{ID: "door1", Type: PuzzlePattern, RequiredSwitches: ids("switch", len(orders))}}
	return lvl
}

func fixedLevel(lvl Level) LevelGenerator {
	return genFunc(func(levelNumber, playerCount int) Level {
		l := lvl
		l.Number = levelNumber
		l.PlayerCount = playerCount
		return l
	})
}

// startedRoom 两名玩家加入并开始游戏
func startedRoom(t *testing.T, gen LevelGenerator) (*Room, *recorder) {
	t.Helper()
	rec := newRecorder()
	room := NewRoom("ABC123", fastRules(), gen, rec, &Metrics{})
	_, _, err := room.Join("p1", "alice")
	require.NoError(t, err)
	_, _, err = room.Join("p2", "bob")
	require.NoError(t, err)
	require.True(t, room.Start("p1"))
	return room, rec
}

// payload 把 Outbound.Data 经 JSON 往返转成 map，便于断言字段
func payload(t *testing.T, m sentMsg) map[string]any {
	t.Helper()
	b, err := json.Marshal(m.msg.Data)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func switchesFrom(lvl Level) map[string]*SwitchState {
	out := make(map[string]*SwitchState, len(lvl.Switches))
	for _, def := range lvl.Switches {
		out[def.ID] = newSwitchState(def)
	}
	return out
}
