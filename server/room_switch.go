package server

import (
	"fmt"
)

// SwitchActivation 客户端上报的开关激活，类型专属字段只读取与开关类型匹配的那一项
type SwitchActivation struct {
	SwitchID        string
	Type            PuzzleType
	PlayersOnSwitch int
	ActivationTime  int64 // 毫秒
}

const (
	msgCooperativeSolved  = "Everyone is on the switches! Doors opened!"
	msgSynchronizedSolved = "Perfect synchronization! Doors opened!"
	msgSynchronizedReset  = "Timing window exceeded. Try again!"
	msgPatternSolved      = "Correct sequence! Doors opened!"
	msgPatternReset       = "Wrong sequence. Try again!"
)

// ActivateSwitch 按收到顺序应用开关激活并运行对应的谜题评估
func (r *Room) ActivateSwitch(id ConnID, a SwitchActivation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.player(id) == nil {
		return ErrNotInRoom
	}
	if r.phase != PhasePlaying {
		return nil
	}
	s, ok := r.switches[a.SwitchID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSwitch, a.SwitchID)
	}
	if s.Type() != a.Type {
		return fmt.Errorf("%w: %s is %s, reported as %s", ErrUnknownSwitch, s.ID, s.Type(), a.Type)
	}
	r.lastActivity = r.now()
	r.metrics.IncSwitchEvents()

	switch p := s.Payload.(type) {
	case *CooperativePayload:
		// 占用人数不足视为松开
		if a.PlayersOnSwitch < p.RequiredPlayers {
			s.deactivate()
			r.coopSolved = false
			r.broadcastSwitch(s)
			return nil
		}
		s.Active = true
		s.ActivatedBy = id
		p.PlayersOnSwitch = a.PlayersOnSwitch
		r.broadcastSwitch(s)
		r.evaluateCooperative()

	case *SynchronizedPayload:
		stamp := a.ActivationTime
		if stamp == 0 {
			stamp = r.now().UnixMilli()
		}
		s.Active = true
		s.ActivatedBy = id
		p.ActivatedAt = stamp
		r.broadcastSwitch(s)
		r.evaluateSynchronized()

	case *PatternPayload:
		// 本轮已踩过或正在等待失败重置时忽略
		if p.Activated || r.patternFailed || r.solved {
			return nil
		}
		r.patternRank++
		s.Active = true
		s.ActivatedBy = id
		p.Activated = true
		p.Rank = r.patternRank
		r.broadcastSwitch(s)
		r.evaluatePattern()
	}
	return nil
}

// DeactivateSwitch 松开开关。序列开关只清除 active，本轮的踩踏记录保留到计分结束。
func (r *Room) DeactivateSwitch(id ConnID, switchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.player(id) == nil {
		return ErrNotInRoom
	}
	if r.phase != PhasePlaying {
		return nil
	}
	s, ok := r.switches[switchID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSwitch, switchID)
	}
	r.lastActivity = r.now()
	r.metrics.IncSwitchEvents()
	switch s.Payload.(type) {
	case *PatternPayload:
		s.Active = false
	case *CooperativePayload:
		s.deactivate()
		r.coopSolved = false
	default:
		s.deactivate()
	}
	r.broadcastSwitch(s)
	return nil
}

func (r *Room) evaluateCooperative() {
	if EvaluateCooperative(r.switches) != OutcomeSolved || r.coopSolved {
		return
	}
	// 合作门完全由开关推导，任一开关松开即关闭，因此不设置 solved
	r.coopSolved = true
	r.puzzleSolved(PuzzleCooperative, msgCooperativeSolved)
}

func (r *Room) evaluateSynchronized() {
	if r.solved {
		return
	}
	if EvaluateSynchronized(r.switches, r.rules.SyncWindow) == OutcomeSolved {
		r.cancel(timerSyncRecheck)
		r.solved = true
		r.puzzleSolved(PuzzleSynchronized, msgSynchronizedSolved)
		return
	}
	// 同一轮只保留一个复查定时器，从本轮第一次激活开始计时；后续激活不重新计时（见 DESIGN.md 决策 3）
	if !r.scheduled(timerSyncRecheck) {
		r.schedule(timerSyncRecheck, r.rules.SyncWindow, r.recheckSynchronized)
	}
}

// recheckSynchronized 窗口结束仍未解开：全部同步开关复位
func (r *Room) recheckSynchronized() {
	if r.solved || r.phase != PhasePlaying {
		return
	}
	if EvaluateSynchronized(r.switches, r.rules.SyncWindow) == OutcomeSolved {
		r.solved = true
		r.puzzleSolved(PuzzleSynchronized, msgSynchronizedSolved)
		return
	}
	for _, s := range switchesOfType(r.switches, PuzzleSynchronized) {
		s.deactivate()
	}
	r.puzzleReset(PuzzleSynchronized, msgSynchronizedReset)
}

func (r *Room) evaluatePattern() {
	switch EvaluatePattern(r.switches) {
	case OutcomeSolved:
		r.cancel(timerPatternReset)
		r.solved = true
		r.puzzleSolved(PuzzlePattern, msgPatternSolved)
	case OutcomeFailed:
		r.patternFailed = true
		r.schedule(timerPatternReset, r.rules.PatternResetDelay, r.resetPattern)
	}
}

// resetPattern 失败后开始新一轮：清除所有序列开关的激活与踩踏记录
func (r *Room) resetPattern() {
	for _, s := range switchesOfType(r.switches, PuzzlePattern) {
		s.deactivate()
	}
	r.patternFailed = false
	r.patternRank = 0
	r.puzzleReset(PuzzlePattern, msgPatternReset)
}

func (r *Room) broadcastSwitch(s *SwitchState) {
	r.out.ToRoom(r.code, Outbound{Event: EventSwitchUpdate, Data: switchUpdateMsg{
		SwitchView: s.view(),
		Doors:      r.doors(),
	}})
}

func (r *Room) puzzleSolved(t PuzzleType, msg string) {
	r.metrics.IncPuzzlesSolved()
	Log.Infof("puzzle solved: room=%s level=%d type=%s", r.code, r.level, t)
	r.out.ToRoom(r.code, Outbound{Event: EventPuzzleSolved, Data: puzzleMsg{Type: t, Message: msg, Doors: r.doors()}})
}

func (r *Room) puzzleReset(t PuzzleType, msg string) {
	r.metrics.IncPuzzlesReset()
	Log.Infof("puzzle reset: room=%s level=%d type=%s", r.code, r.level, t)
	r.out.ToRoom(r.code, Outbound{Event: EventPuzzleReset, Data: puzzleMsg{Type: t, Message: msg, Doors: r.doors()}})
}
