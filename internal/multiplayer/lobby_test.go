package multiplayer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/duel2048/internal/duel"
	"github.com/vovakirdan/duel2048/internal/transport"
)

func hostConn(t *testing.T, inv *Invite) transport.Conn {
	t.Helper()
	select {
	case c := <-inv.Conn:
		return c
	case <-time.After(time.Second):
		t.Fatal("host never got a link")
		return nil
	}
}

func TestLobbyPairsSessions(t *testing.T) {
	l := NewLobby(LobbyConfig{})
	defer l.Stop()

	inv, err := l.Host("alice")
	require.NoError(t, err)
	assert.Len(t, inv.Code, 6)
	assert.Equal(t, strings.ToUpper(inv.Code), inv.Code)

	joinEnd, err := l.Join("bob", " "+strings.ToLower(inv.Code)+" ")
	require.NoError(t, err)
	hostEnd := hostConn(t, inv)

	require.NoError(t, hostEnd.Send(duel.ConnectedMessage()))
	select {
	case msg := <-joinEnd.Messages():
		assert.Equal(t, duel.KindConnected, msg.Kind())
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	assert.Equal(t, 1, l.Rooms())
}

func TestLobbyJoinErrors(t *testing.T) {
	l := NewLobby(LobbyConfig{})
	defer l.Stop()

	inv, err := l.Host("alice")
	require.NoError(t, err)

	_, err = l.Host("alice")
	assert.ErrorIs(t, err, ErrAlreadyHosting)

	_, err = l.Join("alice", inv.Code)
	assert.ErrorIs(t, err, ErrOwnRoom)

	_, err = l.Join("bob", "NOPE00")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = l.Join("bob", inv.Code)
	require.NoError(t, err)
	_, err = l.Join("carol", inv.Code)
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestLobbyReleasesRoomWhenLinkCloses(t *testing.T) {
	l := NewLobby(LobbyConfig{})
	defer l.Stop()

	inv, err := l.Host("alice")
	require.NoError(t, err)
	joinEnd, err := l.Join("bob", inv.Code)
	require.NoError(t, err)

	require.NoError(t, joinEnd.Close())
	require.Eventually(t, func() bool { return l.Rooms() == 0 }, time.Second, 10*time.Millisecond)

	_, err = l.Host("alice")
	assert.NoError(t, err, "host can open a new room after the match")
}

func TestLobbyCancel(t *testing.T) {
	l := NewLobby(LobbyConfig{})
	defer l.Stop()

	inv, err := l.Host("alice")
	require.NoError(t, err)

	l.Cancel("bob")
	assert.Equal(t, 1, l.Rooms())

	l.Cancel("alice")
	assert.Equal(t, 0, l.Rooms())
	select {
	case <-inv.Expired:
	default:
		t.Error("cancelled invite should be expired")
	}
	_, err = l.Join("bob", inv.Code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLobbyExpiresUnjoinedRooms(t *testing.T) {
	l := NewLobby(LobbyConfig{RoomTimeout: time.Minute})
	defer l.Stop()

	idle, err := l.Host("alice")
	require.NoError(t, err)
	busy, err := l.Host("bob")
	require.NoError(t, err)
	_, err = l.Join("carol", busy.Code)
	require.NoError(t, err)

	l.cleanupExpiredRooms(time.Now().Add(2 * time.Minute))

	assert.Equal(t, 1, l.Rooms(), "joined rooms never expire")
	select {
	case <-idle.Expired:
	default:
		t.Error("idle invite should be expired")
	}
}

func TestLobbyCleanupLoop(t *testing.T) {
	l := NewLobby(LobbyConfig{RoomTimeout: 10 * time.Millisecond, CleanupPeriod: 10 * time.Millisecond})
	l.Start()
	defer l.Stop()

	inv, err := l.Host("alice")
	require.NoError(t, err)

	select {
	case <-inv.Expired:
	case <-time.After(2 * time.Second):
		t.Fatal("room did not expire")
	}
	assert.Equal(t, 0, l.Rooms())
}

func TestLobbyPeersPlay(t *testing.T) {
	l := NewLobby(LobbyConfig{})
	defer l.Stop()

	inv, err := l.Host("alice")
	require.NoError(t, err)
	joinEnd, err := l.Join("bob", inv.Code)
	require.NoError(t, err)

	hostCfg := DefaultPeerConfig()
	hostCfg.Game.RoomID = inv.Code
	joinCfg := DefaultPeerConfig()
	joinCfg.Host = false
	joinCfg.Game.RoomID = inv.Code

	host := NewPeer(hostConn(t, inv), hostCfg)
	joiner := NewPeer(joinEnd, joinCfg)
	hostErr := startPeer(t, t.Context(), host)
	startPeer(t, t.Context(), joiner)

	a := waitActuation(t, joiner, func(a duel.Actuation) bool { return len(a.Grid.Cells) > 0 })
	assert.Equal(t, inv.Code, a.RoomID)
	assert.False(t, a.MyTurn(), "host moves first")

	require.NoError(t, joinEnd.Close())
	assert.ErrorIs(t, <-hostErr, ErrPeerClosed)
}
