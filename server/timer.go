package server

import "time"

// timerKey 每个房间内每类延迟任务最多只有一个有效定时器
type timerKey string

const (
	timerSyncRecheck  timerKey = "sync-recheck"
	timerPatternReset timerKey = "pattern-reset"
	timerLevelAdvance timerKey = "level-advance"
)

// roomTimers 房间持有的可取消定时器。每次调度或取消都会递增代数，
// 过期回调发现代数不匹配（或房间已关闭）时直接返回。
type roomTimers struct {
	gens    map[timerKey]uint64
	pending map[timerKey]*time.Timer
}

func newRoomTimers() roomTimers {
	return roomTimers{
		gens:    make(map[timerKey]uint64),
		pending: make(map[timerKey]*time.Timer),
	}
}

// schedule 调用方必须持有 r.mu；fn 在持锁状态下执行
func (r *Room) schedule(key timerKey, d time.Duration, fn func()) {
	r.cancel(key)
	gen := r.timers.gens[key]
	r.timers.pending[key] = time.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed || r.timers.gens[key] != gen {
			return
		}
		delete(r.timers.pending, key)
		fn()
	})
}

// cancel 调用方必须持有 r.mu
func (r *Room) cancel(key timerKey) {
	r.timers.gens[key]++
	if t, ok := r.timers.pending[key]; ok {
		t.Stop()
		delete(r.timers.pending, key)
	}
}

func (r *Room) scheduled(key timerKey) bool {
	_, ok := r.timers.pending[key]
	return ok
}

func (r *Room) cancelAll() {
	for key := range r.timers.pending {
		r.cancel(key)
	}
}
