/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	modeFFA = "ffa"
	modeCTT = "ctt"

	teamCT = "CT"
	teamT  = "T"

	spawnX, spawnY, spawnZ = 0.0, 10.0, 0.0
	maxHP                  = 100

	// Movement below this threshold is treated as noise and does not reset
	// the idle timer.
	activityEpsilon = 0.01
)

var errRoomClosed = errors.New("room closed")

// session is the connection surface a Room needs: an identity, a reliable
// and a droppable delivery path, and a way to force a disconnect.
type session interface {
	SessionID() string
	Deliver(msg any)
	DeliverVolatile(msg any)
	Kick()
}

// PlayerState is the authoritative per-connection state, and doubles as the
// wire representation in snapshots and scoreboards.
type PlayerState struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	RX       float64 `json:"rx"`
	RY       float64 `json:"ry"`
	HP       int     `json:"hp"`
	IsDead   bool    `json:"isDead"`
	Kills    int     `json:"kills"`
	Deaths   int     `json:"deaths"`
	Team     string  `json:"team,omitempty"`
	IsZombie bool    `json:"isZombie,omitempty"`
}

type player struct {
	PlayerState

	sess         session
	joinedAt     time.Time
	lastActivity time.Time
	warned       bool
}

// Room is one isolated game session. All mutation happens under mu; methods
// with a Locked suffix assume mu is already held.
type Room struct {
	id   string
	mode string
	cfg  *Config
	rm   *RoomManager

	mu      sync.Mutex
	closed  bool
	players map[string]*player

	// team-objective state
	bomb      *Bomb
	fuseTimer *time.Timer
	roundGen  uint64
}

func newRoom(cfg *Config, rm *RoomManager, id, mode string) *Room {
	if mode != modeCTT {
		mode = modeFFA
	}

	room := &Room{
		id:      id,
		mode:    mode,
		cfg:     cfg,
		rm:      rm,
		players: make(map[string]*player),
	}

	if mode == modeCTT {
		room.bomb = &Bomb{}
	}

	return room
}

// join registers a connection, sends the room snapshot back to it, and
// announces it to everyone else. A full room rejects the join without
// tearing down the connection.
func (room *Room) join(s session, name, teamPreference string, bot bool) error {
	id := s.SessionID()

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed {
		return errRoomClosed
	}

	if !bot && room.occupancyLocked() >= room.cfg.roomCapacity {
		return fmt.Errorf("Room is full (Max %d)", room.cfg.roomCapacity)
	}

	if name == "" {
		short := id
		if len(short) > 4 {
			short = short[:4]
		}
		name = "Player " + short
	}

	now := time.Now()
	p := &player{
		PlayerState: PlayerState{
			ID:       id,
			Name:     name,
			X:        spawnX,
			Y:        spawnY,
			Z:        spawnZ,
			HP:       maxHP,
			IsZombie: bot,
		},
		sess:         s,
		joinedAt:     now,
		lastActivity: now,
	}

	if room.mode == modeCTT {
		p.Team = room.pickTeamLocked(teamPreference)
	}

	room.players[id] = p

	s.Deliver(JoinedMessage{
		Type:    "joined",
		ID:      id,
		Players: room.snapshotLocked(),
	})
	room.broadcastExceptLocked(id, PlayerJoinedMessage{
		Type:   "player_joined",
		Player: p.PlayerState,
	})

	if room.mode == modeCTT {
		room.broadcastLocked(TeamAssignmentMessage{
			Type:      "team_assignment",
			ID:        id,
			Team:      p.Team,
			Mode:      room.mode,
			IsCarrier: false,
		})
		if p.Team == teamT && !room.bomb.Planted && room.bomb.CarrierID == "" {
			room.assignCarrierLocked(id)
		}
	}

	logf(room.cfg, "ROOMS: %q joined room %s (%d players)", name, room.id, len(room.players))

	return nil
}

// leave removes the connection and destroys the room if it is now empty.
// Safe to call for ids that already left.
func (room *Room) leave(id string) {
	room.mu.Lock()

	p, ok := room.players[id]
	if !ok {
		room.mu.Unlock()
		return
	}

	delete(room.players, id)

	if room.mode == modeCTT && room.bomb.CarrierID == id {
		room.bomb.CarrierID = ""
		room.assignCarrierLocked("")
	}

	room.broadcastLocked(PlayerLeftMessage{
		Type: "player_left",
		ID:   id,
	})

	empty := len(room.players) == 0
	if empty {
		room.closeLocked()
	}

	logf(room.cfg, "ROOMS: %q left room %s (%d players)", p.Name, room.id, len(room.players))

	room.mu.Unlock()

	if empty {
		room.rm.remove(room)
	}
}

// closeLocked cancels room-scoped timers so nothing fires against a
// destroyed or recreated room.
func (room *Room) closeLocked() {
	room.closed = true
	room.roundGen++
	if room.fuseTimer != nil {
		room.fuseTimer.Stop()
		room.fuseTimer = nil
	}
}

// applyUpdate overwrites the player's transform with the client-reported
// one and streams it to the rest of the room as a volatile broadcast.
func (room *Room) applyUpdate(id string, msg ClientMessage) {
	room.mu.Lock()
	defer room.mu.Unlock()

	p, ok := room.players[id]
	if !ok {
		return
	}

	moved := math.Abs(msg.X-p.X) > activityEpsilon ||
		math.Abs(msg.Y-p.Y) > activityEpsilon ||
		math.Abs(msg.Z-p.Z) > activityEpsilon ||
		math.Abs(msg.RX-p.RX) > activityEpsilon ||
		math.Abs(msg.RY-p.RY) > activityEpsilon

	p.X, p.Y, p.Z = msg.X, msg.Y, msg.Z
	p.RX, p.RY = msg.RX, msg.RY

	if moved {
		room.touchLocked(p)
	}

	update := PlayerUpdateMessage{
		Type: "player_update",
		ID:   id,
		X:    p.X,
		Y:    p.Y,
		Z:    p.Z,
		RX:   p.RX,
		RY:   p.RY,
	}
	for _, other := range room.players {
		if other.ID == id {
			continue
		}
		other.sess.DeliverVolatile(update)
	}
}

// applyHit arbitrates a client-reported hit. Damage values are trusted as
// sent; hp is clamped at zero and a death is counted once per life.
func (room *Room) applyHit(attackerID, targetID string, damage int) {
	room.mu.Lock()
	defer room.mu.Unlock()

	target, ok := room.players[targetID]
	if !ok {
		return
	}

	attacker := room.players[attackerID]
	if attacker != nil {
		room.touchLocked(attacker)
	}

	target.HP -= damage
	if target.HP < 0 {
		target.HP = 0
	}

	room.broadcastLocked(PlayerDamagedMessage{
		Type:       "player_damaged",
		ID:         targetID,
		HP:         target.HP,
		AttackerID: attackerID,
	})

	if target.HP > 0 || target.IsDead {
		return
	}

	target.IsDead = true
	target.Deaths++

	attackerKills := 0
	if attacker != nil {
		attacker.Kills++
		attackerKills = attacker.Kills
	}

	room.broadcastLocked(PlayerDiedMessage{
		Type:          "player_died",
		ID:            targetID,
		AttackerID:    attackerID,
		Deaths:        target.Deaths,
		AttackerKills: attackerKills,
	})
	room.broadcastLocked(ScoreboardMessage{
		Type:    "scoreboard_update",
		Players: room.snapshotLocked(),
	})
}

func (room *Room) respawn(id string) {
	room.mu.Lock()
	defer room.mu.Unlock()

	p, ok := room.players[id]
	if !ok {
		return
	}

	p.HP = maxHP
	p.IsDead = false
	p.X, p.Y, p.Z = spawnX, spawnY, spawnZ
	room.touchLocked(p)

	room.broadcastLocked(PlayerRespawnMessage{
		Type: "player_respawn",
		ID:   id,
		X:    p.X,
		Y:    p.Y,
		Z:    p.Z,
	})
}

func (room *Room) relayShoot(id string) {
	room.mu.Lock()
	defer room.mu.Unlock()

	p, ok := room.players[id]
	if !ok {
		return
	}
	room.touchLocked(p)

	room.broadcastExceptLocked(id, RemoteShootMessage{
		Type: "remote_shoot",
		ID:   id,
	})
}

func (room *Room) relayChat(id, msg, mid string, ts int64) {
	if msg == "" {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	p, ok := room.players[id]
	if !ok {
		return
	}
	room.touchLocked(p)

	room.broadcastLocked(ChatRelayMessage{
		Type: "chat_message",
		ID:   id,
		Name: p.Name,
		Msg:  msg,
		Mid:  mid,
		Ts:   ts,
	})
}

func (room *Room) relayProjectile(id string, data json.RawMessage) {
	room.mu.Lock()
	defer room.mu.Unlock()

	p, ok := room.players[id]
	if !ok {
		return
	}
	room.touchLocked(p)

	room.broadcastExceptLocked(id, ProjectileSpawnMessage{
		Type: "projectile_spawn",
		ID:   id,
		Data: data,
	})
}

func (room *Room) relaySnowball(id, targetID string, impulse *Vector) {
	if impulse == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	target, ok := room.players[targetID]
	if !ok {
		return
	}

	target.sess.Deliver(SnowballHitMessage{
		Type:    "snowball_hit",
		ID:      id,
		Impulse: *impulse,
	})
}

func (room *Room) relayVoiceStart(id string) {
	room.mu.Lock()
	defer room.mu.Unlock()
	room.relayVoiceLocked(id, VoiceStartMessage{Type: "voice_start", ID: id})
}

func (room *Room) relayVoiceEnd(id string) {
	room.mu.Lock()
	defer room.mu.Unlock()
	room.relayVoiceLocked(id, VoiceEndMessage{Type: "voice_end", ID: id})
}

func (room *Room) relayVoiceData(id string, data json.RawMessage) {
	room.mu.Lock()
	defer room.mu.Unlock()
	room.relayVoiceLocked(id, VoiceDataMessage{Type: "voice_data", ID: id, Data: data})
}

// relayVoiceLocked fans voice traffic out to the rest of the room, or only
// to teammates in team-objective mode.
func (room *Room) relayVoiceLocked(id string, msg any) {
	sender, ok := room.players[id]
	if !ok {
		return
	}

	for _, p := range room.players {
		if p.ID == id {
			continue
		}
		if room.mode == modeCTT && p.Team != sender.Team {
			continue
		}
		p.sess.Deliver(msg)
	}
}

// reapIdle enforces the idle policy for every non-bot occupant: a one-time
// warning past warnAfter, a forced disconnect past kickAfter. Kicked
// connections clean up through the normal disconnect path.
func (room *Room) reapIdle(now time.Time, warnAfter, kickAfter time.Duration) {
	room.mu.Lock()
	defer room.mu.Unlock()

	for _, p := range room.players {
		if p.IsZombie {
			continue
		}

		idle := now.Sub(p.lastActivity)

		switch {
		case idle >= kickAfter:
			p.sess.Deliver(ErrorMessage{
				Type:    "error_msg",
				Message: "Kicked for inactivity",
			})
			p.sess.Kick()
			logf(room.cfg, "REAP: Kicked %q from room %s after %s idle", p.Name, room.id, idle.Round(time.Second))
		case idle >= warnAfter && !p.warned:
			p.warned = true
			p.sess.Deliver(ChatRelayMessage{
				Type: "chat_message",
				ID:   "server",
				Name: "SERVER",
				Msg:  fmt.Sprintf("You will be kicked for inactivity in %s.", (kickAfter - warnAfter).Round(time.Second)),
				Mid:  fmt.Sprintf("idle-%s-%d", p.ID, now.UnixMilli()),
				Ts:   now.UnixMilli(),
			})
		}
	}
}

func (room *Room) touchLocked(p *player) {
	p.lastActivity = time.Now()
	p.warned = false
}

// occupancyLocked counts real players; the liveness bot does not take a slot.
func (room *Room) occupancyLocked() int {
	count := 0
	for _, p := range room.players {
		if !p.IsZombie {
			count++
		}
	}
	return count
}

// pickTeamLocked balances toward the least populated team, breaking ties
// with the caller's preference when it names a valid team, else T so the
// bomb has an eligible carrier as early as possible.
func (room *Room) pickTeamLocked(preference string) string {
	ct, t := 0, 0
	for _, p := range room.players {
		switch p.Team {
		case teamCT:
			ct++
		case teamT:
			t++
		}
	}

	switch {
	case t < ct:
		return teamT
	case ct < t:
		return teamCT
	case preference == teamCT || preference == teamT:
		return preference
	default:
		return teamT
	}
}

func (room *Room) snapshotLocked() map[string]PlayerState {
	players := make(map[string]PlayerState, len(room.players))
	for id, p := range room.players {
		players[id] = p.PlayerState
	}
	return players
}

func (room *Room) broadcastLocked(msg any) {
	for _, p := range room.players {
		p.sess.Deliver(msg)
	}
}

func (room *Room) broadcastExceptLocked(id string, msg any) {
	for _, p := range room.players {
		if p.ID == id {
			continue
		}
		p.sess.Deliver(msg)
	}
}

// RoomManager owns the registry of live rooms, keyed by room id. Rooms are
// created on first join and removed once their last occupant leaves.
type RoomManager struct {
	cfg *Config

	mu    sync.Mutex
	rooms map[string]*Room
}

func newRoomManager(cfg *Config) *RoomManager {
	return &RoomManager{
		cfg:   cfg,
		rooms: make(map[string]*Room),
	}
}

// getOrCreate never overwrites an existing room's mode; a later join with a
// different mode lands in the room as it was created.
func (rm *RoomManager) getOrCreate(id, mode string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if room, ok := rm.rooms[id]; ok {
		room.mu.Lock()
		closed := room.closed
		room.mu.Unlock()

		// A closed room may linger briefly between its last leave and its
		// registry removal; recreate rather than hand it out.
		if !closed {
			return room
		}
	}

	room := newRoom(rm.cfg, rm, id, mode)
	rm.rooms[id] = room
	logf(rm.cfg, "ROOMS: Created room %s (%s)", id, room.mode)

	return room
}

// remove drops a room from the registry, comparing identity so a room
// recreated under the same id is left alone.
func (rm *RoomManager) remove(room *Room) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.rooms[room.id] == room {
		delete(rm.rooms, room.id)
		logf(rm.cfg, "ROOMS: Destroyed room %s", room.id)
	}
}

func (rm *RoomManager) list() []*Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
