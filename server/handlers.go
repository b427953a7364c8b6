package server

import (
	"errors"
	"fmt"
)

// Game 入站事件分发：通过连接关联表找到房间，再交给房间处理
type Game struct {
	store    *RoomStore
	registry *ConnRegistry
	out      Broadcaster
	metrics  *Metrics
}

func NewGame(store *RoomStore, registry *ConnRegistry, out Broadcaster, metrics *Metrics) *Game {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Game{store: store, registry: registry, out: out, metrics: metrics}
}

// Dispatch 处理一条入站消息；所有错误都只影响本连接
func (g *Game) Dispatch(id ConnID, env Envelope) {
	var err error
	switch env.Event {
	case EventJoinRoom:
		var req JoinRoomRequest
		if req, err = decodeJoin(env.Data); err == nil {
			g.JoinRoom(id, req)
		}
	case EventValidateRoom:
		var req ValidateRoomRequest
		if err = decodeInto(env.Data, &req); err == nil {
			g.ValidateRoom(id, req)
		}
	case EventStartGame:
		err = g.StartGame(id)
	case EventPlayerMove:
		var k Kinematics
		if err = decodeInto(env.Data, &k); err == nil {
			err = g.PlayerMove(id, k)
		}
	case EventSwitchActivated:
		var req SwitchActivatedRequest
		if err = decodeInto(env.Data, &req); err == nil {
			err = g.SwitchActivated(id, req)
		}
	case EventSwitchDeactivated:
		var req SwitchDeactivatedRequest
		if err = decodeInto(env.Data, &req); err == nil {
			err = g.SwitchDeactivated(id, req)
		}
	case EventLevelCompleted:
		var req LevelCompletedRequest
		if err = decodeInto(env.Data, &req); err == nil {
			err = g.LevelCompleted(id, req)
		}
	case EventChatMessage:
		var req ChatRequest
		if err = decodeInto(env.Data, &req); err == nil {
			err = g.relay(id, Outbound{Event: EventChatMessage, Data: chatMsg{
				Message: req.Message, PlayerName: req.PlayerName, PlayerID: string(id),
			}})
		}
	case EventEmojiReaction:
		var req EmojiRequest
		if err = decodeInto(env.Data, &req); err == nil {
			err = g.relay(id, Outbound{Event: EventEmojiReaction, Data: emojiMsg{
				Emoji: req.Emoji, PlayerName: req.PlayerName, PlayerID: string(id),
			}})
		}
	default:
		err = fmt.Errorf("unknown event %q", env.Event)
	}
	g.report(id, env.Event, err)
}

// report NotInRoom 静默忽略；未知开关/门只记日志；其余视为畸形消息
func (g *Game) report(id ConnID, event string, err error) {
	switch {
	case err == nil, errors.Is(err, ErrNotInRoom):
	case errors.Is(err, ErrUnknownSwitch), errors.Is(err, ErrUnknownDoor):
		Log.Debugf("ignored %s from %s: %v", event, id, err)
	default:
		g.metrics.IncMalformed()
		Log.Debugf("dropped %s from %s: %v", event, id, err)
	}
}

// JoinRoom 加入（必要时创建）房间；已在其他房间时先离开原房间
func (g *Game) JoinRoom(id ConnID, req JoinRoomRequest) {
	code, err := NormalizeRoomCode(req.RoomID)
	if err != nil {
		g.metrics.IncInvalidRoomCodes()
		g.out.ToConn(id, Outbound{Event: EventRoomError, Data: roomErrorMsg{Message: "Invalid room code format"}})
		return
	}
	if prev, ok := g.registry.Lookup(id); ok && prev != code {
		g.leave(id)
	}
	for {
		room, err := g.store.GetOrCreate(code)
		if err != nil {
			return
		}
		p, outcome, err := room.Join(id, req.PlayerName)
		if errors.Is(err, errRoomClosed) {
			// 房间刚被销毁，重新获取会得到新房间
			continue
		}
		var full *RoomFullError
		if errors.As(err, &full) {
			g.metrics.IncJoinsRejectedFull()
			g.out.ToConn(id, Outbound{Event: EventRoomFull, Data: roomFullMsg{
				Message:        fmt.Sprintf("Room is full! Maximum %d players allowed.", full.Max),
				CurrentPlayers: full.Current,
				MaxPlayers:     full.Max,
			}})
			return
		}
		if err != nil {
			Log.Warnf("join %s failed for %s: %v", code, id, err)
			return
		}
		g.registry.Bind(id, code)
		g.metrics.IncJoinsAccepted()
		if outcome == JoinCreated {
			Log.Infof("player %s (%s) joined room %s as #%d", id, p.Name, code, p.Number)
		}
		return
	}
}

// ValidateRoom 只读检查房间号格式与房间是否存在
func (g *Game) ValidateRoom(id ConnID, req ValidateRoomRequest) {
	reply := func(m roomValidationMsg) {
		g.out.ToConn(id, Outbound{Event: EventRoomValidation, Data: m})
	}
	code, err := NormalizeRoomCode(req.RoomID)
	if err != nil {
		reply(roomValidationMsg{Valid: false, Message: "Invalid room code format"})
		return
	}
	room, ok := g.store.Get(code)
	if !ok {
		reply(roomValidationMsg{Valid: false, Message: "Room does not exist"})
		return
	}
	info := room.Info()
	reply(roomValidationMsg{Valid: true, RoomInfo: &info})
}

func (g *Game) StartGame(id ConnID) error {
	room, err := g.roomOf(id)
	if err != nil {
		return err
	}
	if room.Start(id) {
		Log.Infof("game started in room %s with %d players", room.Code(), room.PlayerCount())
	}
	return nil
}

func (g *Game) PlayerMove(id ConnID, k Kinematics) error {
	room, err := g.roomOf(id)
	if err != nil {
		return err
	}
	return room.UpdatePlayerState(id, k)
}

func (g *Game) SwitchActivated(id ConnID, req SwitchActivatedRequest) error {
	room, err := g.roomOf(id)
	if err != nil {
		return err
	}
	t, err := ParsePuzzleType(req.Type)
	if err != nil {
		return err
	}
	return room.ActivateSwitch(id, SwitchActivation{
		SwitchID:        req.ID,
		Type:            t,
		PlayersOnSwitch: req.PlayersOnSwitch,
		ActivationTime:  req.ActivationTime,
	})
}

func (g *Game) SwitchDeactivated(id ConnID, req SwitchDeactivatedRequest) error {
	room, err := g.roomOf(id)
	if err != nil {
		return err
	}
	return room.DeactivateSwitch(id, req.ID)
}

func (g *Game) LevelCompleted(id ConnID, req LevelCompletedRequest) error {
	room, err := g.roomOf(id)
	if err != nil {
		return err
	}
	room.CompleteLevel(id, LevelReport{
		Level:          req.Level,
		PlayerCount:    req.PlayerCount,
		CompletionTime: req.CompletionTime,
	})
	return nil
}

func (g *Game) relay(id ConnID, msg Outbound) error {
	room, err := g.roomOf(id)
	if err != nil {
		return err
	}
	return room.Relay(id, msg)
}

// Disconnect 连接断开：离开所在房间（房间变空时由房间自行销毁）
func (g *Game) Disconnect(id ConnID) {
	g.leave(id)
}

func (g *Game) leave(id ConnID) {
	code, ok := g.registry.Unbind(id)
	if !ok {
		return
	}
	room, ok := g.store.Get(code)
	if !ok {
		return
	}
	if !room.Leave(id) {
		Log.Infof("player %s left room %s. players: %d", id, code, room.PlayerCount())
	}
}

func (g *Game) roomOf(id ConnID) (*Room, error) {
	code, ok := g.registry.Lookup(id)
	if !ok {
		return nil, ErrNotInRoom
	}
	room, ok := g.store.Get(code)
	if !ok {
		return nil, ErrNotInRoom
	}
	return room, nil
}
