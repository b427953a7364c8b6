package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoomCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ABC123", "ABC123", false},
		{"abc123", "ABC123", false},
		{"  xyz789 \n", "XYZ789", false},
		{"", "", true},
		{"ABC12", "", true},
		{"ABC1234", "", true},
		{"   ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeRoomCode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRoomCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestStore() (*RoomStore, *recorder, *Metrics) {
	rec := newRecorder()
	metrics := &Metrics{}
	return NewRoomStore(fastRules(), fixedLevel(coopLevel(2, 1)), rec, metrics), rec, metrics
}

func TestRoomStore_GetOrCreate(t *testing.T) {
	store, _, metrics := newTestStore()

	a, err := store.GetOrCreate("abc123")
	require.NoError(t, err)
	b, err := store.GetOrCreate(" ABC123 ")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "ABC123", a.Code())
	assert.Equal(t, 1, store.Count())
	assert.EqualValues(t, 1, metrics.RoomsCreated)

	_, err = store.GetOrCreate("bad")
	assert.ErrorIs(t, err, ErrInvalidRoomCode)
	assert.Equal(t, 1, store.Count(), "invalid code leaves the store untouched")

	_, ok := store.Get("nope!!")
	assert.False(t, ok)
}

func TestRoomStore_EmptyRoomIsForgotten(t *testing.T) {
	store, _, metrics := newTestStore()
	room, err := store.GetOrCreate("ABC123")
	require.NoError(t, err)
	_, _, err = room.Join("a", "")
	require.NoError(t, err)

	assert.True(t, room.Leave("a"))
	_, ok := store.Get("ABC123")
	assert.False(t, ok)
	assert.Zero(t, store.Count())
	assert.EqualValues(t, 1, metrics.RoomsDestroyed)

	fresh, err := store.GetOrCreate("ABC123")
	require.NoError(t, err)
	assert.NotSame(t, room, fresh)
	p, _, err := fresh.Join("a", "")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 1, fresh.Level())
}

func TestRoomStore_StaleRoomDoesNotEvictReplacement(t *testing.T) {
	store, _, _ := newTestStore()
	old, err := store.GetOrCreate("ABC123")
	require.NoError(t, err)
	store.Remove("ABC123")

	fresh, err := store.GetOrCreate("ABC123")
	require.NoError(t, err)
	store.forget(old)

	got, ok := store.Get("ABC123")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestRoomStore_InfosAndCloseAll(t *testing.T) {
	store, _, _ := newTestStore()
	for _, code := range []string{"ZZZ999", "AAA111", "MMM555"} {
		r, err := store.GetOrCreate(code)
		require.NoError(t, err)
		_, _, err = r.Join(ConnID("p-"+code), "")
		require.NoError(t, err)
	}

	infos := store.Infos()
	require.Len(t, infos, 3)
	assert.Equal(t, []string{"AAA111", "MMM555", "ZZZ999"}, []string{infos[0].ID, infos[1].ID, infos[2].ID})
	assert.Equal(t, 1, infos[0].PlayerCount)

	store.CloseAll()
	assert.Zero(t, store.Count())
}
