package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := LoadConfig("testdata-does-not-exist.env")
	require.NoError(t, err)
	return NewServer(cfg, &TemplateGenerator{Perm: identityPerm})
}

func TestHandleAdminRooms(t *testing.T) {
	s := newTestServer(t)
	room, err := s.store.GetOrCreate("ABC123")
	require.NoError(t, err)
	_, _, err = room.Join("a", "alice")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	s.HandleAdminRooms(rr, httptest.NewRequest(http.MethodGet, "/admin/rooms", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Rooms []RoomInfo `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, "ABC123", list.Rooms[0].ID)
	assert.Equal(t, PhaseWaiting, list.Rooms[0].GameState)

	rr = httptest.NewRecorder()
	s.HandleAdminRooms(rr, httptest.NewRequest(http.MethodGet, "/admin/rooms?room=abc123", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var detail map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, "ABC123", detail["id"])
	assert.Len(t, detail["players"], 1)

	rr = httptest.NewRecorder()
	s.HandleAdminRooms(rr, httptest.NewRequest(http.MethodGet, "/admin/rooms?room=bad", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	s.HandleAdminRooms(rr, httptest.NewRequest(http.MethodGet, "/admin/rooms?room=ZZZ999", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	s.HandleAdminRooms(rr, httptest.NewRequest(http.MethodPost, "/admin/rooms", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleMetrics(t *testing.T) {
	s := newTestServer(t)
	s.game.JoinRoom("a", JoinRoomRequest{RoomID: "ABC123"})
	s.game.JoinRoom("b", JoinRoomRequest{RoomID: "nope"})

	rr := httptest.NewRecorder()
	s.HandleMetrics(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Rooms   int              `json:"rooms"`
		Members int              `json:"members"`
		Metrics map[string]int64 `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Rooms)
	assert.Equal(t, 1, body.Members)
	assert.EqualValues(t, 1, body.Metrics["joins_accepted"])
	assert.EqualValues(t, 1, body.Metrics["invalid_room_codes"])
}
