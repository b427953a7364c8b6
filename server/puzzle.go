package server

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Outcome 谜题评估结果
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSolved
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSolved:
		return "solved"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// switchesOfType 按 id 排序，保证评估与广播顺序稳定
func switchesOfType(switches map[string]*SwitchState, t PuzzleType) []*SwitchState {
	out := lo.Filter(lo.Values(switches), func(s *SwitchState, _ int) bool { return s.Type() == t })
	slices.SortFunc(out, func(a, b *SwitchState) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func allActive(ss []*SwitchState) bool {
	return lo.EveryBy(ss, func(s *SwitchState) bool { return s.Active })
}

// EvaluateCooperative 所有合作开关同时激活即为解开；没有定时器
func EvaluateCooperative(switches map[string]*SwitchState) Outcome {
	coop := switchesOfType(switches, PuzzleCooperative)
	if len(coop) > 0 && allActive(coop) {
		return OutcomeSolved
	}
	return OutcomePending
}

// EvaluateSynchronized 所有同步开关均已激活，且最早与最晚激活时间差不超过 window 时解开。
// 超时失败不在这里判定，由房间的延迟复查负责。
func EvaluateSynchronized(switches map[string]*SwitchState, window time.Duration) Outcome {
	sync := switchesOfType(switches, PuzzleSynchronized)
	if len(sync) == 0 || !allActive(sync) {
		return OutcomePending
	}
	stamps := lo.Map(sync, func(s *SwitchState, _ int) int64 {
		return s.Payload.(*SynchronizedPayload).ActivatedAt
	})
	span := lo.Max(stamps) - lo.Min(stamps)
	if span <= window.Milliseconds() {
		return OutcomeSolved
	}
	return OutcomePending
}

// EvaluatePattern 按本轮踩下的先后顺序检查序号：必须依次为 1,2,3...
// 是正确前缀则等待，完整则解开，否则失败。
func EvaluatePattern(switches map[string]*SwitchState) Outcome {
	pattern := switchesOfType(switches, PuzzlePattern)
	pressed := lo.Filter(pattern, func(s *SwitchState, _ int) bool {
		return s.Payload.(*PatternPayload).Activated
	})
	if len(pressed) == 0 {
		return OutcomePending
	}
	slices.SortFunc(pressed, func(a, b *SwitchState) int {
		return a.Payload.(*PatternPayload).Rank - b.Payload.(*PatternPayload).Rank
	})
	for i, s := range pressed {
		if s.Payload.(*PatternPayload).SequenceOrder != i+1 {
			return OutcomeFailed
		}
	}
	if len(pressed) == len(pattern) {
		return OutcomeSolved
	}
	return OutcomePending
}

// DoorStates 推导每扇门的开关状态：
// 已有谜题解开时所有门打开；否则合作门在其依赖全部激活时打开，其余门关闭。
// 依赖了不存在的开关的门保持关闭。
func DoorStates(doors []DoorDef, switches map[string]*SwitchState, solved bool) []DoorView {
	return lo.Map(doors, func(d DoorDef, _ int) DoorView {
		return DoorView{ID: d.ID, Type: d.Type, Open: solved || (d.Type == PuzzleCooperative && dependenciesMet(d, switches))}
	})
}

func dependenciesMet(d DoorDef, switches map[string]*SwitchState) bool {
	if len(d.RequiredSwitches) == 0 {
		return false
	}
	for _, id := range d.RequiredSwitches {
		s, ok := switches[id]
		if !ok || !s.Active {
			return false
		}
	}
	return true
}
