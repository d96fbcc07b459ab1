/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSession records everything a Room delivers to it.
type mockSession struct {
	id string

	mu     sync.Mutex
	msgs   []any
	kicked bool
}

func newMockSession(id string) *mockSession {
	return &mockSession{id: id}
}

func (m *mockSession) SessionID() string { return m.id }

func (m *mockSession) Deliver(msg any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func (m *mockSession) DeliverVolatile(msg any) {
	m.Deliver(msg)
}

func (m *mockSession) Kick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kicked = true
}

func (m *mockSession) wasKicked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kicked
}

func (m *mockSession) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = nil
}

func messagesOf[T any](m *mockSession) []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []T
	for _, msg := range m.msgs {
		if typed, ok := msg.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func lastMessageOf[T any](t *testing.T, m *mockSession) T {
	t.Helper()

	msgs := messagesOf[T](m)
	require.NotEmpty(t, msgs, "expected at least one %T", *new(T))
	return msgs[len(msgs)-1]
}

func testConfig() *Config {
	return &Config{
		roomCapacity: 5,
		fuse:         45 * time.Second,
		idleWarning:  110 * time.Second,
		idleKick:     120 * time.Second,
		reapInterval: time.Second,
	}
}

func mustJoin(t *testing.T, room *Room, s session, name, teamPreference string) {
	t.Helper()
	require.NoError(t, room.join(s, name, teamPreference, false))
}

func TestRoomCapacity(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	for i := 0; i < 5; i++ {
		mustJoin(t, room, newMockSession(fmt.Sprintf("conn-%d", i)), fmt.Sprintf("p%d", i), "")
	}

	sixth := newMockSession("conn-5")
	err := room.join(sixth, "p5", "", false)
	require.Error(t, err)
	assert.Equal(t, "Room is full (Max 5)", err.Error())

	room.mu.Lock()
	assert.Len(t, room.players, 5)
	_, present := room.players["conn-5"]
	room.mu.Unlock()
	assert.False(t, present)

	// The liveness bot does not count against capacity.
	bot := newMockSession("conn-bot")
	require.NoError(t, room.join(bot, "zombie", "", true))

	room.mu.Lock()
	occupancy := room.occupancyLocked()
	total := len(room.players)
	room.mu.Unlock()
	assert.Equal(t, 5, occupancy)
	assert.Equal(t, 6, total)
}

func TestJoinSnapshotAndAnnounce(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	first := newMockSession("c1")
	mustJoin(t, room, first, "alice", "")

	joined := lastMessageOf[JoinedMessage](t, first)
	assert.Equal(t, "c1", joined.ID)
	assert.Len(t, joined.Players, 1)
	assert.Equal(t, maxHP, joined.Players["c1"].HP)
	assert.Equal(t, spawnY, joined.Players["c1"].Y)

	second := newMockSession("c2")
	mustJoin(t, room, second, "bob", "")

	announced := lastMessageOf[PlayerJoinedMessage](t, first)
	assert.Equal(t, "c2", announced.Player.ID)
	assert.Equal(t, "bob", announced.Player.Name)

	joined = lastMessageOf[JoinedMessage](t, second)
	assert.Len(t, joined.Players, 2)
}

func TestJoinDefaultName(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	s := newMockSession("abcd1234")
	mustJoin(t, room, s, "", "")

	joined := lastMessageOf[JoinedMessage](t, s)
	assert.Equal(t, "Player abcd", joined.Players["abcd1234"].Name)
}

func TestHitSequenceClampAndSingleDeath(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	p1 := newMockSession("p1")
	p2 := newMockSession("p2")
	mustJoin(t, room, p1, "one", "")
	mustJoin(t, room, p2, "two", "")

	room.applyHit("p1", "p2", 60)

	damaged := lastMessageOf[PlayerDamagedMessage](t, p1)
	assert.Equal(t, 40, damaged.HP)
	assert.Equal(t, "p2", damaged.ID)
	assert.Equal(t, "p1", damaged.AttackerID)
	assert.Empty(t, messagesOf[PlayerDiedMessage](p1))

	room.applyHit("p1", "p2", 60)

	damaged = lastMessageOf[PlayerDamagedMessage](t, p1)
	assert.Equal(t, 0, damaged.HP, "hp is clamped at zero")

	died := messagesOf[PlayerDiedMessage](p1)
	require.Len(t, died, 1)
	assert.Equal(t, "p2", died[0].ID)
	assert.Equal(t, 1, died[0].Deaths)
	assert.Equal(t, 1, died[0].AttackerKills)

	scoreboard := lastMessageOf[ScoreboardMessage](t, p2)
	assert.Equal(t, 1, scoreboard.Players["p1"].Kills)
	assert.Equal(t, 1, scoreboard.Players["p2"].Deaths)
	assert.True(t, scoreboard.Players["p2"].IsDead)

	// A further hit on a dead player cannot double-count the death.
	room.applyHit("p1", "p2", 60)

	died = messagesOf[PlayerDiedMessage](p1)
	assert.Len(t, died, 1)

	room.mu.Lock()
	assert.Equal(t, 1, room.players["p1"].Kills)
	assert.Equal(t, 1, room.players["p2"].Deaths)
	room.mu.Unlock()
}

func TestHitUnknownTargetIgnored(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	p1 := newMockSession("p1")
	mustJoin(t, room, p1, "one", "")
	p1.reset()

	room.applyHit("p1", "ghost", 60)

	assert.Empty(t, messagesOf[PlayerDamagedMessage](p1))
}

func TestRespawn(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	p1 := newMockSession("p1")
	p2 := newMockSession("p2")
	mustJoin(t, room, p1, "one", "")
	mustJoin(t, room, p2, "two", "")

	room.applyHit("p1", "p2", 150)
	room.respawn("p2")

	respawn := lastMessageOf[PlayerRespawnMessage](t, p1)
	assert.Equal(t, "p2", respawn.ID)
	assert.Equal(t, spawnY, respawn.Y)

	room.mu.Lock()
	assert.Equal(t, maxHP, room.players["p2"].HP)
	assert.False(t, room.players["p2"].IsDead)
	room.mu.Unlock()
}

func TestLeaveDestroysEmptyRoom(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	p1 := newMockSession("p1")
	p2 := newMockSession("p2")
	mustJoin(t, room, p1, "one", "")
	mustJoin(t, room, p2, "two", "")

	room.leave("p1")

	left := lastMessageOf[PlayerLeftMessage](t, p2)
	assert.Equal(t, "p1", left.ID)
	assert.Len(t, rm.list(), 1)

	room.leave("p2")
	assert.Empty(t, rm.list())

	// A join against the destroyed room is refused so the caller can
	// resolve a fresh one.
	err := room.join(newMockSession("p3"), "three", "", false)
	assert.ErrorIs(t, err, errRoomClosed)
}

func TestModeFixedAtCreation(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeCTT)

	again := rm.getOrCreate("r1", modeFFA)
	assert.Same(t, room, again)
	assert.Equal(t, modeCTT, again.mode)
}

func TestTeamBalancing(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeCTT)

	p1 := newMockSession("p1")
	mustJoin(t, room, p1, "one", teamCT)

	room.mu.Lock()
	team1 := room.players["p1"].Team
	room.mu.Unlock()
	assert.Equal(t, teamCT, team1, "tie is broken toward the caller's preference")

	p2 := newMockSession("p2")
	mustJoin(t, room, p2, "two", teamCT)

	room.mu.Lock()
	team2 := room.players["p2"].Team
	room.mu.Unlock()
	assert.Equal(t, teamT, team2, "balancing beats preference")

	assignments := messagesOf[TeamAssignmentMessage](p1)
	require.Len(t, assignments, 2)
	assert.Equal(t, teamT, assignments[1].Team)
	assert.Equal(t, modeCTT, assignments[1].Mode)
}

func TestChatRelay(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	p1 := newMockSession("p1")
	p2 := newMockSession("p2")
	mustJoin(t, room, p1, "alice", "")
	mustJoin(t, room, p2, "bob", "")

	room.relayChat("p1", "rush b", "mid-1", 1234)

	chat := lastMessageOf[ChatRelayMessage](t, p2)
	assert.Equal(t, "p1", chat.ID)
	assert.Equal(t, "alice", chat.Name)
	assert.Equal(t, "rush b", chat.Msg)
	assert.Equal(t, "mid-1", chat.Mid)
	assert.Equal(t, int64(1234), chat.Ts)

	p2.reset()
	room.relayChat("p1", "", "mid-2", 1235)
	assert.Empty(t, messagesOf[ChatRelayMessage](p2), "empty messages are dropped")
}

func TestUpdateBroadcastAndActivityEpsilon(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	p1 := newMockSession("p1")
	p2 := newMockSession("p2")
	mustJoin(t, room, p1, "one", "")
	mustJoin(t, room, p2, "two", "")

	stale := time.Now().Add(-time.Minute)
	room.mu.Lock()
	room.players["p1"].lastActivity = stale
	room.mu.Unlock()

	// Sub-epsilon jitter is relayed but does not reset the idle clock.
	room.applyUpdate("p1", ClientMessage{X: spawnX + 0.001, Y: spawnY, Z: spawnZ})

	room.mu.Lock()
	assert.Equal(t, stale, room.players["p1"].lastActivity)
	room.mu.Unlock()

	room.applyUpdate("p1", ClientMessage{X: 12, Y: spawnY, Z: -3, RY: 1.5})

	room.mu.Lock()
	assert.True(t, room.players["p1"].lastActivity.After(stale))
	room.mu.Unlock()

	updates := messagesOf[PlayerUpdateMessage](p2)
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, "p1", last.ID)
	assert.Equal(t, 12.0, last.X)
	assert.Equal(t, 1.5, last.RY)

	assert.Empty(t, messagesOf[PlayerUpdateMessage](p1), "updates are not echoed to the sender")
}

func TestShootRelay(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	p1 := newMockSession("p1")
	p2 := newMockSession("p2")
	mustJoin(t, room, p1, "one", "")
	mustJoin(t, room, p2, "two", "")

	room.relayShoot("p1")

	shot := lastMessageOf[RemoteShootMessage](t, p2)
	assert.Equal(t, "p1", shot.ID)
	assert.Empty(t, messagesOf[RemoteShootMessage](p1))
}

func TestVoiceTeamScoped(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeCTT)

	attacker := newMockSession("t1")
	teammate := newMockSession("t2")
	defender := newMockSession("ct1")
	mustJoin(t, room, attacker, "t-one", teamT)
	mustJoin(t, room, defender, "ct-one", teamCT)
	mustJoin(t, room, teammate, "t-two", teamT)

	attacker.reset()
	teammate.reset()
	defender.reset()

	room.relayVoiceStart("t1")
	room.relayVoiceData("t1", []byte(`"chunk"`))
	room.relayVoiceEnd("t1")

	assert.Len(t, messagesOf[VoiceStartMessage](teammate), 1)
	assert.Len(t, messagesOf[VoiceDataMessage](teammate), 1)
	assert.Len(t, messagesOf[VoiceEndMessage](teammate), 1)

	assert.Empty(t, messagesOf[VoiceStartMessage](defender), "voice stays within the team in objective mode")
	assert.Empty(t, messagesOf[VoiceDataMessage](defender))
	assert.Empty(t, messagesOf[VoiceStartMessage](attacker), "voice is not echoed to the sender")
}

func TestVoiceWholeRoomInFFA(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	p1 := newMockSession("p1")
	p2 := newMockSession("p2")
	mustJoin(t, room, p1, "one", "")
	mustJoin(t, room, p2, "two", "")

	room.relayVoiceData("p1", []byte(`"chunk"`))

	data := lastMessageOf[VoiceDataMessage](t, p2)
	assert.Equal(t, "p1", data.ID)
}

func TestSnowballRelayTargetOnly(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	p1 := newMockSession("p1")
	p2 := newMockSession("p2")
	p3 := newMockSession("p3")
	mustJoin(t, room, p1, "one", "")
	mustJoin(t, room, p2, "two", "")
	mustJoin(t, room, p3, "three", "")

	room.relaySnowball("p1", "p2", &Vector{X: 1, Y: 2, Z: 3})

	hit := lastMessageOf[SnowballHitMessage](t, p2)
	assert.Equal(t, "p1", hit.ID)
	assert.Equal(t, Vector{X: 1, Y: 2, Z: 3}, hit.Impulse)
	assert.Empty(t, messagesOf[SnowballHitMessage](p3))
}

func TestProjectileRelay(t *testing.T) {
	rm := newRoomManager(testConfig())
	room := rm.getOrCreate("r1", modeFFA)

	p1 := newMockSession("p1")
	p2 := newMockSession("p2")
	mustJoin(t, room, p1, "one", "")
	mustJoin(t, room, p2, "two", "")

	room.relayProjectile("p1", []byte(`{"kind":"grenade"}`))

	spawn := lastMessageOf[ProjectileSpawnMessage](t, p2)
	assert.Equal(t, "p1", spawn.ID)
	assert.JSONEq(t, `{"kind":"grenade"}`, string(spawn.Data))
	assert.Empty(t, messagesOf[ProjectileSpawnMessage](p1))
}
