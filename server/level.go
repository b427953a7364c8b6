package server

import (
	"fmt"
	"math/rand/v2"

	"github.com/samber/lo"
)

// Rect 轴对齐矩形（平台、终点、开关、门的几何）
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SwitchDef 关卡中的开关定义
type SwitchDef struct {
	Rect
	ID              string     `json:"id"`
	Type            PuzzleType `json:"type"`
	RequiredPlayers int        `json:"requiredPlayers"`
	SequenceOrder   int        `json:"sequenceOrder,omitempty"`
}

// DoorDef 关卡中的门定义，RequiredSwitches 为其依赖的开关
type DoorDef struct {
	Rect
	ID               string     `json:"id"`
	Type             PuzzleType `json:"type"`
	RequiredSwitches []string   `json:"requiredSwitches"`
}

// Level 关卡描述；服务端只使用开关与门，几何原样下发给客户端
type Level struct {
	Number      int         `json:"number"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	PuzzleType  PuzzleType  `json:"puzzleType"`
	PlayerCount int         `json:"playerCount"`
	Platforms   []Rect      `json:"platforms"`
	Switches    []SwitchDef `json:"switches"`
	Doors       []DoorDef   `json:"doors"`
	Goal        Rect        `json:"goal"`
}

// LevelGenerator 关卡生成器（纯函数式协作者）
type LevelGenerator interface {
	Generate(levelNumber, playerCount int) Level
}

type levelTemplate struct {
	name        string
	description string
	puzzle      PuzzleType
	platforms   []Rect
	goal        Rect
}

var levelTemplates = []levelTemplate{
	{
		name:        "Cooperative Switches",
		description: "All players must work together to activate switches",
		puzzle:      PuzzleCooperative,
		platforms: []Rect{
			{0, 670, 1280, 50},
			{200, 570, 150, 20},
			{400, 470, 150, 20},
			{600, 370, 150, 20},
			{800, 270, 150, 20},
			{1000, 170, 150, 20},
		},
		goal: Rect{1150, 90, 80, 80},
	},
	{
		name:        "Synchronized Timing",
		description: "Players must activate switches in perfect synchronization",
		puzzle:      PuzzleSynchronized,
		platforms: []Rect{
			{0, 670, 1280, 50},
			{150, 570, 100, 20},
			{300, 470, 100, 20},
			{450, 370, 100, 20},
			{600, 270, 100, 20},
			{750, 170, 100, 20},
			{900, 70, 100, 20},
		},
		goal: Rect{1050, 20, 80, 80},
	},
	{
		name:        "Pattern Recognition",
		description: "Players must follow a specific sequence to unlock doors",
		puzzle:      PuzzlePattern,
		platforms: []Rect{
			{0, 670, 1280, 50},
			{200, 570, 120, 20},
			{400, 470, 120, 20},
			{600, 370, 120, 20},
			{800, 270, 120, 20},
			{1000, 170, 120, 20},
		},
		goal: Rect{1150, 90, 80, 80},
	},
}

// TemplateGenerator 按关卡号循环使用三种模板；Perm 用于生成序列开关的顺序
type TemplateGenerator struct {
	Perm func(n int) []int
}

// NewTemplateGenerator 使用 math/rand/v2 的全局源（并发安全）
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{Perm: rand.Perm}
}

// Generate 生成关卡；相同输入与相同 Perm 结果得到相同关卡
func (g *TemplateGenerator) Generate(levelNumber, playerCount int) Level {
	if levelNumber < 1 {
		levelNumber = 1
	}
	if playerCount < 1 {
		playerCount = 1
	}
	tpl := levelTemplates[(levelNumber-1)%len(levelTemplates)]
	lvl := Level{
		Number:      levelNumber,
		Name:        tpl.name,
		Description: tpl.description,
		PuzzleType:  tpl.puzzle,
		PlayerCount: playerCount,
		Platforms:   append([]Rect(nil), tpl.platforms...),
		Goal:        tpl.goal,
	}
	switch tpl.puzzle {
	case PuzzleSynchronized:
		g.synchronized(&lvl, playerCount)
	case PuzzlePattern:
		g.pattern(&lvl, playerCount)
	default:
		g.cooperative(&lvl, playerCount)
	}
	return lvl
}

func (g *TemplateGenerator) cooperative(lvl *Level, playerCount int) {
	n := min(playerCount, 4)
	for i := 0; i < n; i++ {
		lvl.Switches = append(lvl.Switches, SwitchDef{
			Rect:            switchRectOn(platformOr(lvl.Platforms, i+1, 0)),
			ID:              fmt.Sprintf("switch%d", i+1),
			Type:            PuzzleCooperative,
			RequiredPlayers: playerCount,
		})
	}
	ids := switchIDs(lvl.Switches)
	for i := 0; i < n; i++ {
		lvl.Doors = append(lvl.Doors, DoorDef{
			Rect:             doorRectBeside(platformOr(lvl.Platforms, i+2, len(lvl.Platforms)-1), 30, 100),
			ID:               fmt.Sprintf("door%d", i+1),
			Type:             PuzzleCooperative,
			RequiredSwitches: ids,
		})
	}
}

func (g *TemplateGenerator) synchronized(lvl *Level, playerCount int) {
	for i := 0; i < playerCount; i++ {
		lvl.Switches = append(lvl.Switches, SwitchDef{
			Rect:            switchRectOn(platformOr(lvl.Platforms, i+1, 0)),
			ID:              fmt.Sprintf("switch%d", i+1),
			Type:            PuzzleSynchronized,
			RequiredPlayers: 1,
		})
	}
	last := lvl.Platforms[len(lvl.Platforms)-1]
	lvl.Doors = append(lvl.Doors, DoorDef{
		Rect:             doorRectBeside(last, 40, 120),
		ID:               "master_door",
		Type:             PuzzleSynchronized,
		RequiredSwitches: switchIDs(lvl.Switches),
	})
}

func (g *TemplateGenerator) pattern(lvl *Level, playerCount int) {
	n := min(playerCount, 5)
	perm := g.Perm(n)
	for i := 0; i < n; i++ {
		lvl.Switches = append(lvl.Switches, SwitchDef{
			Rect:            switchRectOn(platformOr(lvl.Platforms, i+1, 0)),
			ID:              fmt.Sprintf("switch%d", i+1),
			Type:            PuzzlePattern,
			RequiredPlayers: 1,
			SequenceOrder:   perm[i] + 1,
		})
	}
	ids := switchIDs(lvl.Switches)
	for i := 0; i < n; i++ {
		lvl.Doors = append(lvl.Doors, DoorDef{
			Rect:             doorRectBeside(platformOr(lvl.Platforms, i+2, len(lvl.Platforms)-1), 30, 100),
			ID:               fmt.Sprintf("door%d", i+1),
			Type:             PuzzlePattern,
			RequiredSwitches: ids,
		})
	}
}

// platformOr 越界时回退到 fallback 指定的平台
func platformOr(platforms []Rect, i, fallback int) Rect {
	if i < len(platforms) {
		return platforms[i]
	}
	return platforms[fallback]
}

func switchRectOn(p Rect) Rect {
	return Rect{X: p.X + p.Width/2 - 20, Y: p.Y - 35, Width: 40, Height: 35}
}

func doorRectBeside(p Rect, w, h float64) Rect {
	return Rect{X: p.X + p.Width + 5, Y: p.Y - h, Width: w, Height: h}
}

func switchIDs(defs []SwitchDef) []string {
	return lo.Map(defs, func(d SwitchDef, _ int) string { return d.ID })
}
