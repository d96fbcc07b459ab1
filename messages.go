/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
)

// Vector is a client-supplied impulse or offset.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ClientMessage covers every inbound event. Unused fields are left at their
// zero value; the Type field decides which ones matter.
type ClientMessage struct {
	Type string `json:"type"` // "join", "update", "shoot", "hit", "respawn", "chat_message", "plant_bomb", "defuse_bomb", "projectile_launch", "snowball_impulse", "voice_start", "voice_end", "voice_data"

	// join
	Name           string `json:"name,omitempty"`
	Room           string `json:"room,omitempty"`
	Mode           string `json:"mode,omitempty"`
	TeamPreference string `json:"teamPreference,omitempty"`
	Bot            bool   `json:"bot,omitempty"`

	// update
	X  float64 `json:"x,omitempty"`
	Y  float64 `json:"y,omitempty"`
	Z  float64 `json:"z,omitempty"`
	RX float64 `json:"rx,omitempty"`
	RY float64 `json:"ry,omitempty"`

	// hit / snowball_impulse
	TargetID string  `json:"targetId,omitempty"`
	Damage   int     `json:"damage,omitempty"`
	Impulse  *Vector `json:"impulse,omitempty"`

	// chat_message
	Msg string `json:"msg,omitempty"`
	Mid string `json:"mid,omitempty"`
	Ts  int64  `json:"ts,omitempty"`

	// plant_bomb
	Site string `json:"site,omitempty"`

	// voice_data / projectile_launch payloads, passed through opaque
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinedMessage acknowledges a join with the room snapshot.
type JoinedMessage struct {
	Type    string                 `json:"type"` // "joined"
	ID      string                 `json:"id"`
	Players map[string]PlayerState `json:"players"`
}

type PlayerJoinedMessage struct {
	Type   string      `json:"type"` // "player_joined"
	Player PlayerState `json:"player"`
}

type PlayerLeftMessage struct {
	Type string `json:"type"` // "player_left"
	ID   string `json:"id"`
}

// PlayerUpdateMessage is the volatile position stream; it may be dropped
// under backpressure since the next tick supersedes it.
type PlayerUpdateMessage struct {
	Type string  `json:"type"` // "player_update"
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	RX   float64 `json:"rx"`
	RY   float64 `json:"ry"`
}

type RemoteShootMessage struct {
	Type string `json:"type"` // "remote_shoot"
	ID   string `json:"id"`
}

type PlayerDamagedMessage struct {
	Type       string `json:"type"` // "player_damaged"
	ID         string `json:"id"`
	HP         int    `json:"hp"`
	AttackerID string `json:"attackerId"`
}

type PlayerDiedMessage struct {
	Type          string `json:"type"` // "player_died"
	ID            string `json:"id"`
	AttackerID    string `json:"attackerId"`
	Deaths        int    `json:"deaths"`
	AttackerKills int    `json:"attackerKills"`
}

type PlayerRespawnMessage struct {
	Type string  `json:"type"` // "player_respawn"
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

type ScoreboardMessage struct {
	Type    string                 `json:"type"` // "scoreboard_update"
	Players map[string]PlayerState `json:"players"`
}

// ChatRelayMessage is a chat line relayed verbatim with the sender attached.
// Clients deduplicate on Mid.
type ChatRelayMessage struct {
	Type string `json:"type"` // "chat_message"
	ID   string `json:"id"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
	Mid  string `json:"mid"`
	Ts   int64  `json:"ts"`
}

type TeamAssignmentMessage struct {
	Type      string `json:"type"` // "team_assignment"
	ID        string `json:"id"`
	Team      string `json:"team"`
	Mode      string `json:"mode"`
	IsCarrier bool   `json:"isCarrier"`
}

type BombCarrierMessage struct {
	Type string `json:"type"` // "bomb_carrier"
	ID   string `json:"id"`
}

// BombPlantedMessage carries wall-clock times in unix milliseconds so clients
// run their own countdown without a server push per tick.
type BombPlantedMessage struct {
	Type        string `json:"type"` // "bomb_planted"
	Site        string `json:"site"`
	PlantedAt   int64  `json:"plantedAt"`
	ExplodeTime int64  `json:"explodeTime"`
}

type BombDefusedMessage struct {
	Type    string `json:"type"` // "bomb_defused"
	Message string `json:"message"`
}

type RoundResultMessage struct {
	Type      string `json:"type"` // "round_result"
	Winner    string `json:"winner"`
	Message   string `json:"message"`
	Color     string `json:"color"`
	CarrierID string `json:"carrierId"`
}

type VoiceStartMessage struct {
	Type string `json:"type"` // "voice_start"
	ID   string `json:"id"`
}

type VoiceEndMessage struct {
	Type string `json:"type"` // "voice_end"
	ID   string `json:"id"`
}

type VoiceDataMessage struct {
	Type string          `json:"type"` // "voice_data"
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type ProjectileSpawnMessage struct {
	Type string          `json:"type"` // "projectile_spawn"
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type SnowballHitMessage struct {
	Type    string `json:"type"` // "snowball_hit"
	ID      string `json:"id"`
	Impulse Vector `json:"impulse"`
}

// ErrorMessage is for user-visible rejections ("Room is full", idle kicks).
type ErrorMessage struct {
	Type    string `json:"type"` // "error_msg"
	Message string `json:"message"`
}
