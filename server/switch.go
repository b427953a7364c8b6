package server

import "fmt"

// PuzzleType 开关所属的谜题类型，决定激活语义
type PuzzleType string

const (
	PuzzleCooperative  PuzzleType = "cooperative"
	PuzzleSynchronized PuzzleType = "synchronized"
	PuzzlePattern      PuzzleType = "pattern"
)

// ParsePuzzleType 将客户端字符串解析为谜题类型
func ParsePuzzleType(s string) (PuzzleType, error) {
	switch t := PuzzleType(s); t {
	case PuzzleCooperative, PuzzleSynchronized, PuzzlePattern:
		return t, nil
	default:
		return "", fmt.Errorf("unknown puzzle type %q", s)
	}
}

// SwitchPayload 各谜题类型专属的数据，创建时确定，之后不会被重新解释
type SwitchPayload interface {
	puzzleType() PuzzleType
}

// CooperativePayload 合作开关：需要的人数与客户端观察到的占用人数
type CooperativePayload struct {
	RequiredPlayers int
	PlayersOnSwitch int
}

// SynchronizedPayload 同步开关：客户端上报的激活时间（毫秒）
type SynchronizedPayload struct {
	ActivatedAt int64
}

// PatternPayload 序列开关：固定序号，本轮是否已踩过，以及本轮踩下的先后名次
type PatternPayload struct {
	SequenceOrder int
	Activated     bool
	Rank          int
}

func (*CooperativePayload) puzzleType() PuzzleType  { return PuzzleCooperative }
func (*SynchronizedPayload) puzzleType() PuzzleType { return PuzzleSynchronized }
func (*PatternPayload) puzzleType() PuzzleType      { return PuzzlePattern }

// SwitchState 房间内单个开关的权威状态
type SwitchState struct {
	ID          string
	Active      bool
	ActivatedBy ConnID
	Payload     SwitchPayload
}

// Type 由 payload 唯一决定
func (s *SwitchState) Type() PuzzleType { return s.Payload.puzzleType() }

func (s *SwitchState) deactivate() {
	s.Active = false
	s.ActivatedBy = ""
	switch p := s.Payload.(type) {
	case *CooperativePayload:
		p.PlayersOnSwitch = 0
	case *SynchronizedPayload:
		p.ActivatedAt = 0
	case *PatternPayload:
		p.Activated = false
		p.Rank = 0
	}
}

// newSwitchState 按关卡描述创建初始（未激活）开关
func newSwitchState(def SwitchDef) *SwitchState {
	s := &SwitchState{ID: def.ID}
	switch def.Type {
	case PuzzleSynchronized:
		s.Payload = &SynchronizedPayload{}
	case PuzzlePattern:
		s.Payload = &PatternPayload{SequenceOrder: def.SequenceOrder}
	default:
		s.Payload = &CooperativePayload{RequiredPlayers: def.RequiredPlayers}
	}
	return s
}

// SwitchView 开关的广播形态
type SwitchView struct {
	SwitchID        string     `json:"switchId"`
	Type            PuzzleType `json:"type"`
	Active          bool       `json:"active"`
	ActivatedBy     string     `json:"activatedBy,omitempty"`
	PlayersOnSwitch int        `json:"playersOnSwitch,omitempty"`
	RequiredPlayers int        `json:"requiredPlayers,omitempty"`
	ActivationTime  int64      `json:"activationTime,omitempty"`
	SequenceOrder   int        `json:"sequenceOrder,omitempty"`
	Activated       bool       `json:"activated,omitempty"`
}

func (s *SwitchState) view() SwitchView {
	v := SwitchView{
		SwitchID:    s.ID,
		Type:        s.Type(),
		Active:      s.Active,
		ActivatedBy: string(s.ActivatedBy),
	}
	switch p := s.Payload.(type) {
	case *CooperativePayload:
		v.PlayersOnSwitch = p.PlayersOnSwitch
		v.RequiredPlayers = p.RequiredPlayers
	case *SynchronizedPayload:
		v.ActivationTime = p.ActivatedAt
	case *PatternPayload:
		v.SequenceOrder = p.SequenceOrder
		v.Activated = p.Activated
	}
	return v
}

// DoorView 门的广播形态；open 由评估器推导，不单独存储
type DoorView struct {
	ID   string     `json:"id"`
	Type PuzzleType `json:"type"`
	Open bool       `json:"open"`
}
