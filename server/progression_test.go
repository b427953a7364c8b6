package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteLevel_AdvancesAndRespawns(t *testing.T) {
	var generated []int
	gen := genFunc(func(levelNumber, playerCount int) Level {
		generated = append(generated, levelNumber)
		lvl := coopLevel(playerCount, 1)
		lvl.Number = levelNumber
		lvl.PlayerCount = playerCount
		return lvl
	})
	room, rec := startedRoom(t, gen)
	require.NoError(t, room.UpdatePlayerState("p1", Kinematics{X: 999, Y: 1, VelocityX: 5}))
	require.NoError(t, room.ActivateSwitch("p1", coop("switch1", 1)))

	require.True(t, room.CompleteLevel("p1", LevelReport{Level: 1, PlayerCount: 2, CompletionTime: 4200}))
	assert.Equal(t, PhaseCompleted, room.Phase())
	assert.Equal(t, 2, room.Level())

	done := payload(t, rec.last(t, EventLevelCompleted))
	assert.EqualValues(t, 1, done["level"])
	assert.EqualValues(t, 2, done["nextLevel"])
	assert.EqualValues(t, 2, done["playerCount"])
	assert.EqualValues(t, 4200, done["completionTime"])

	// 其他客户端的重复上报被阶段检查挡住
	assert.False(t, room.CompleteLevel("p2", LevelReport{Level: 1}))
	assert.Equal(t, 1, rec.count(EventLevelCompleted))

	assert.Eventually(t, func() bool { return rec.count(EventNextLevel) == 1 }, eventuallyWait, eventuallyTick)
	assert.Equal(t, PhasePlaying, room.Phase())
	assert.Equal(t, []int{1, 2}, generated)

	next := payload(t, rec.last(t, EventNextLevel))
	assert.EqualValues(t, 2, next["level"])
	require.Contains(t, next, "levelData")

	p1 := room.Players()[0]
	x, y := SpawnForSlot(1)
	assert.Equal(t, x, p1.X)
	assert.Equal(t, y, p1.Y)
	assert.Zero(t, p1.VelocityX)

	s, err := room.Switch("switch1")
	require.NoError(t, err)
	assert.False(t, s.Active, "switch state is rebuilt for the new level")
}

func TestCompleteLevel_Guards(t *testing.T) {
	rec := newRecorder()
	room := NewRoom("ABC123", fastRules(), fixedLevel(coopLevel(2, 1)), rec, nil)
	_, _, _ = room.Join("p1", "")
	_, _, _ = room.Join("p2", "")

	assert.False(t, room.CompleteLevel("p1", LevelReport{}), "not playing yet")
	require.True(t, room.Start("p1"))

	assert.False(t, room.CompleteLevel("ghost", LevelReport{}), "non-member")
	assert.False(t, room.CompleteLevel("p1", LevelReport{Level: 7}), "stale level number")
	assert.Zero(t, rec.count(EventLevelCompleted))

	// 人数跌破下限后不再推进
	assert.False(t, room.Leave("p2"))
	assert.False(t, room.CompleteLevel("p1", LevelReport{}))
	assert.Equal(t, 1, room.Level())
}

func TestCompleteLevel_AdvanceCancelledByClose(t *testing.T) {
	room, rec := startedRoom(t, fixedLevel(coopLevel(2, 1)))
	require.True(t, room.CompleteLevel("p1", LevelReport{}))

	room.Close()
	time.Sleep(3 * fastRules().LevelAdvanceDelay)
	assert.Zero(t, rec.count(EventNextLevel))
}

func TestCompleteLevel_CancelsPendingPuzzleTimers(t *testing.T) {
	room, rec := startedRoom(t, fixedLevel(syncLevel(2)))
	require.NoError(t, room.ActivateSwitch("p1", SwitchActivation{SwitchID: "switch1", Type: PuzzleSynchronized}))
	require.True(t, room.CompleteLevel("p2", LevelReport{Level: 1}))

	assert.Eventually(t, func() bool { return rec.count(EventNextLevel) == 1 }, eventuallyWait, eventuallyTick)
	time.Sleep(2 * fastRules().SyncWindow)
	assert.Zero(t, rec.count(EventPuzzleReset))
}
