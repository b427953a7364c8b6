package server

// LevelReport 客户端检测到全员到达终点后上报
type LevelReport struct {
	Level          int
	PlayerCount    int
	CompletionTime int64
}

// CompleteLevel 关卡推进：关卡号加一、进入 completed，延迟后生成下一关并回到 playing。
// 只在 playing 阶段且人数达到下限时生效；其他客户端的重复上报会被阶段检查挡住。
func (r *Room) CompleteLevel(id ConnID, rep LevelReport) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.player(id) == nil {
		return false
	}
	if r.phase != PhasePlaying || len(r.players) < r.rules.MinPlayers {
		return false
	}
	// 上一关的迟到上报
	if rep.Level != 0 && rep.Level != r.level {
		return false
	}
	finished := r.level
	r.level++
	r.phase = PhaseCompleted
	r.lastActivity = r.now()
	r.cancel(timerSyncRecheck)
	r.cancel(timerPatternReset)
	r.metrics.IncLevelsCompleted()

	r.out.ToRoom(r.code, Outbound{Event: EventLevelCompleted, Data: levelCompletedMsg{
		Level:          finished,
		NextLevel:      r.level,
		PlayerCount:    len(r.players),
		CompletionTime: rep.CompletionTime,
	}})
	Log.Infof("level %d completed in room %s by %d players", finished, r.code, len(r.players))

	r.schedule(timerLevelAdvance, r.rules.LevelAdvanceDelay, r.advanceLevel)
	return true
}

// advanceLevel 定时器回调（持锁）：按当前人数生成新关卡，所有玩家回到各自出生点
func (r *Room) advanceLevel() {
	if r.phase != PhaseCompleted {
		return
	}
	r.loadLevel(r.gen.Generate(r.level, len(r.players)))
	for _, p := range r.players {
		p.respawn()
	}
	r.phase = PhasePlaying
	r.lastActivity = r.now()
	r.out.ToRoom(r.code, Outbound{Event: EventNextLevel, Data: nextLevelMsg{
		Level:       r.level,
		PlayerCount: len(r.players),
		Players:     r.roster(),
		LevelData:   r.levelDef,
	}})
}
