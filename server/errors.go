package server

import "errors"

// 房间核心的错误分类：全部为局部错误，只回复给发起连接（或仅记录日志）
var (
	ErrInvalidRoomCode = errors.New("invalid room code format")
	ErrRoomFull        = errors.New("room is full")
	ErrNotInRoom       = errors.New("connection is not in a room")
	ErrUnknownSwitch   = errors.New("unknown switch")
	ErrUnknownDoor     = errors.New("unknown door")

	// errRoomClosed 房间已因最后一名玩家离开而关闭，调用方应向 Store 重新获取
	errRoomClosed = errors.New("room closed")
)
