package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// 入站事件名
const (
	EventJoinRoom          = "joinRoom"
	EventStartGame         = "startGame"
	EventPlayerMove        = "playerMove"
	EventSwitchActivated   = "switchActivated"
	EventSwitchDeactivated = "switchDeactivated"
	EventLevelCompleted    = "levelCompleted"
	EventChatMessage       = "chatMessage"
	EventEmojiReaction     = "emojiReaction"
	EventValidateRoom      = "validateRoom"
)

// 出站事件名（chatMessage/emojiReaction/levelCompleted 与入站同名）
const (
	EventGameState      = "gameState"
	EventRoomJoined     = "roomJoined"
	EventPlayerJoined   = "playerJoined"
	EventPlayerLeft     = "playerLeft"
	EventPlayerUpdate   = "playerUpdate"
	EventSwitchUpdate   = "switchUpdate"
	EventPuzzleSolved   = "puzzleSolved"
	EventPuzzleReset    = "puzzleReset"
	EventGameStarted    = "gameStarted"
	EventNextLevel      = "nextLevel"
	EventRoomFull       = "roomFull"
	EventRoomError      = "roomError"
	EventRoomValidation = "roomValidation"
)

// Envelope 入站 WebSocket 文本消息
// 示例：{"event":"joinRoom","data":{"roomId":"ABC123","playerName":"alice"}}
type Envelope struct {
	Event string          `json:"event" validate:"required"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound 出站消息，序列化一次后扇出
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// MaxPlayerNameLen 玩家名最大长度（按字符计），超出部分截断
const MaxPlayerNameLen = 32

type JoinRoomRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type SwitchActivatedRequest struct {
	ID              string `json:"id" validate:"required,max=64"`
	Type            string `json:"type" validate:"required,oneof=cooperative synchronized pattern"`
	PlayersOnSwitch int    `json:"playersOnSwitch" validate:"gte=0"`
	ActivationTime  int64  `json:"activationTime" validate:"gte=0"`
}

type SwitchDeactivatedRequest struct {
	ID string `json:"id" validate:"required,max=64"`
}

type LevelCompletedRequest struct {
	Level          int   `json:"level" validate:"gte=0"`
	PlayerCount    int   `json:"playerCount" validate:"gte=0"`
	CompletionTime int64 `json:"completionTime"`
}

type ChatRequest struct {
	Message    string `json:"message" validate:"required,max=500"`
	PlayerName string `json:"playerName" validate:"max=32"`
}

type EmojiRequest struct {
	Emoji      string `json:"emoji" validate:"required,max=16"`
	PlayerName string `json:"playerName" validate:"max=32"`
}

type ValidateRoomRequest struct {
	RoomID string `json:"roomId"`
}

// decodeJoin 兼容旧版客户端直接发送房间号字符串
func decodeJoin(raw json.RawMessage) (JoinRoomRequest, error) {
	var code string
	if err := json.Unmarshal(raw, &code); err == nil {
		return JoinRoomRequest{RoomID: code}, nil
	}
	var req JoinRoomRequest
	if err := decodeInto(raw, &req); err != nil {
		return JoinRoomRequest{}, err
	}
	req.PlayerName = truncateName(strings.TrimSpace(req.PlayerName))
	return req, nil
}

// truncateName 按字符截断，不拆分多字节字符
func truncateName(name string) string {
	if utf8.RuneCountInString(name) <= MaxPlayerNameLen {
		return name
	}
	return string([]rune(name)[:MaxPlayerNameLen])
}

// decodeInto 解析并校验载荷；空载荷按零值处理后再校验
func decodeInto(raw json.RawMessage, v any) error {
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	return nil
}

// 出站载荷

type gameStateMsg struct {
	Players    []PlayerView `json:"players"`
	GameState  Phase        `json:"gameState"`
	Level      int          `json:"level"`
	PlayerID   string       `json:"playerId"`
	RoomID     string       `json:"roomId"`
	PlayerName string       `json:"playerName"`
	LevelData  *Level       `json:"levelData,omitempty"`
	Switches   []SwitchView `json:"switches,omitempty"`
	Doors      []DoorView   `json:"doors,omitempty"`
}

type roomJoinedMsg struct {
	RoomID      string `json:"roomId"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}

type newPlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type playerJoinedMsg struct {
	Players   []PlayerView `json:"players"`
	GameState Phase        `json:"gameState"`
	NewPlayer newPlayerRef `json:"newPlayer"`
}

type playerLeftMsg struct {
	PlayerID    string       `json:"playerId"`
	Players     []PlayerView `json:"players"`
	PlayerCount int          `json:"playerCount"`
}

type playerUpdateMsg struct {
	PlayerID   string     `json:"playerId"`
	PlayerData Kinematics `json:"playerData"`
}

type switchUpdateMsg struct {
	SwitchView
	Doors []DoorView `json:"doors"`
}

type puzzleMsg struct {
	Type    PuzzleType `json:"type"`
	Message string     `json:"message"`
	Doors   []DoorView `json:"doors"`
}

type gameStartedMsg struct {
	GameState   Phase  `json:"gameState"`
	Level       int    `json:"level"`
	PlayerCount int    `json:"playerCount"`
	LevelData   *Level `json:"levelData,omitempty"`
}

type levelCompletedMsg struct {
	Level          int   `json:"level"`
	NextLevel      int   `json:"nextLevel"`
	PlayerCount    int   `json:"playerCount"`
	CompletionTime int64 `json:"completionTime"`
}

type nextLevelMsg struct {
	Level       int          `json:"level"`
	PlayerCount int          `json:"playerCount"`
	Players     []PlayerView `json:"players"`
	LevelData   *Level       `json:"levelData"`
}

type roomFullMsg struct {
	Message        string `json:"message"`
	CurrentPlayers int    `json:"currentPlayers"`
	MaxPlayers     int    `json:"maxPlayers"`
}

type roomErrorMsg struct {
	Message string `json:"message"`
}

type roomValidationMsg struct {
	Valid    bool      `json:"valid"`
	Message  string    `json:"message,omitempty"`
	RoomInfo *RoomInfo `json:"roomInfo,omitempty"`
}

type chatMsg struct {
	Message    string `json:"message"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId"`
}

type emojiMsg struct {
	Emoji      string `json:"emoji"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId"`
}
