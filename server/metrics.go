package server

import (
	"sync/atomic"
)

// Metrics 记录进程运行期的关键指标（用于监控与调试）
type Metrics struct {
	RoomsCreated      int64 // 创建的房间数
	RoomsDestroyed    int64 // 因无人而销毁的房间数
	JoinsAccepted     int64 // 成功加入（含重复加入）
	JoinsRejectedFull int64 // 因满员被拒绝
	InvalidRoomCodes  int64 // 房间号格式错误
	SwitchEvents      int64 // 开关激活/松开事件
	PuzzlesSolved     int64
	PuzzlesReset      int64
	LevelsCompleted   int64
	RateLimited       int64 // 因连接限流被丢弃的消息数
	MalformedMessages int64 // 无法解析或校验失败的消息数
	ChanFullDiscarded int64 // 因发送队列满被丢弃的消息数
}

func (m *Metrics) IncRoomsCreated()      { atomic.AddInt64(&m.RoomsCreated, 1) }
func (m *Metrics) IncRoomsDestroyed()    { atomic.AddInt64(&m.RoomsDestroyed, 1) }
func (m *Metrics) IncJoinsAccepted()     { atomic.AddInt64(&m.JoinsAccepted, 1) }
func (m *Metrics) IncJoinsRejectedFull() { atomic.AddInt64(&m.JoinsRejectedFull, 1) }
func (m *Metrics) IncInvalidRoomCodes()  { atomic.AddInt64(&m.InvalidRoomCodes, 1) }
func (m *Metrics) IncSwitchEvents()      { atomic.AddInt64(&m.SwitchEvents, 1) }
func (m *Metrics) IncPuzzlesSolved()     { atomic.AddInt64(&m.PuzzlesSolved, 1) }
func (m *Metrics) IncPuzzlesReset()      { atomic.AddInt64(&m.PuzzlesReset, 1) }
func (m *Metrics) IncLevelsCompleted()   { atomic.AddInt64(&m.LevelsCompleted, 1) }
func (m *Metrics) IncRateLimited()       { atomic.AddInt64(&m.RateLimited, 1) }
func (m *Metrics) IncMalformed()         { atomic.AddInt64(&m.MalformedMessages, 1) }
func (m *Metrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"rooms_created":       atomic.LoadInt64(&m.RoomsCreated),
		"rooms_destroyed":     atomic.LoadInt64(&m.RoomsDestroyed),
		"joins_accepted":      atomic.LoadInt64(&m.JoinsAccepted),
		"joins_rejected_full": atomic.LoadInt64(&m.JoinsRejectedFull),
		"invalid_room_codes":  atomic.LoadInt64(&m.InvalidRoomCodes),
		"switch_events":       atomic.LoadInt64(&m.SwitchEvents),
		"puzzles_solved":      atomic.LoadInt64(&m.PuzzlesSolved),
		"puzzles_reset":       atomic.LoadInt64(&m.PuzzlesReset),
		"levels_completed":    atomic.LoadInt64(&m.LevelsCompleted),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"malformed_messages":  atomic.LoadInt64(&m.MalformedMessages),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
	}
}
