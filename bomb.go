/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"time"
)

const (
	winnerT  = "TERRORISTS"
	winnerCT = "COUNTER-TERRORISTS"

	resultColorT  = "rgba(255,64,64,0.9)"
	resultColorCT = "rgba(76,175,80,0.85)"
)

// Bomb is the one contested objective of a team-objective room. It is either
// carried by an attacking-team player or planted, never both; after a round
// resolves it is recreated and handed to a new carrier.
type Bomb struct {
	CarrierID string
	Planted   bool
	Site      string
	PlantedAt time.Time
	ExplodeAt time.Time
}

// plantBomb moves the bomb from carried to planted and arms the fuse.
// Requests from the wrong mode, team, state, or a non-carrier are silent
// no-ops.
func (room *Room) plantBomb(id, site string) {
	if site != "A" && site != "B" {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.mode != modeCTT || room.bomb.Planted {
		return
	}

	p, ok := room.players[id]
	if !ok || p.Team != teamT || room.bomb.CarrierID != id {
		return
	}
	room.touchLocked(p)

	now := time.Now()
	room.bomb.CarrierID = ""
	room.bomb.Planted = true
	room.bomb.Site = site
	room.bomb.PlantedAt = now
	room.bomb.ExplodeAt = now.Add(room.cfg.fuse)

	// The timer callback races room teardown and defusal; the generation
	// check makes a stale callback a no-op.
	gen := room.roundGen
	room.fuseTimer = time.AfterFunc(room.cfg.fuse, func() {
		room.fuseExpired(gen)
	})

	room.broadcastLocked(BombPlantedMessage{
		Type:        "bomb_planted",
		Site:        site,
		PlantedAt:   now.UnixMilli(),
		ExplodeTime: room.bomb.ExplodeAt.UnixMilli(),
	})

	logf(room.cfg, "BOMB: %q planted at site %s in room %s", p.Name, site, room.id)
}

// defuseBomb resolves the round for the defending team. Only a defender may
// defuse, and only while the bomb is planted.
func (room *Room) defuseBomb(id string) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.mode != modeCTT || !room.bomb.Planted {
		return
	}

	p, ok := room.players[id]
	if !ok || p.Team != teamCT {
		return
	}
	room.touchLocked(p)

	if room.fuseTimer != nil {
		room.fuseTimer.Stop()
		room.fuseTimer = nil
	}

	room.broadcastLocked(BombDefusedMessage{
		Type:    "bomb_defused",
		Message: "Bomb defused!",
	})

	logf(room.cfg, "BOMB: %q defused in room %s", p.Name, room.id)

	room.endRoundLocked(winnerCT, "Bomb defused! Counter-Terrorists win the round.", resultColorCT)
}

// fuseExpired fires when a planted bomb runs out its fuse.
func (room *Room) fuseExpired(gen uint64) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed || room.roundGen != gen || !room.bomb.Planted {
		return
	}

	logf(room.cfg, "BOMB: Exploded at site %s in room %s", room.bomb.Site, room.id)

	room.endRoundLocked(winnerT, "The bomb exploded! Terrorists win the round.", resultColorT)
}

// endRoundLocked resets the bomb, reassigns a carrier, and announces the
// result with the new carrier so clients pick up the next round directly.
func (room *Room) endRoundLocked(winner, message, color string) {
	room.roundGen++
	room.fuseTimer = nil
	room.bomb = &Bomb{}

	carrierID := room.nextCarrierLocked("")
	room.bomb.CarrierID = carrierID

	room.broadcastLocked(RoundResultMessage{
		Type:      "round_result",
		Winner:    winner,
		Message:   message,
		Color:     color,
		CarrierID: carrierID,
	})

	if carrierID != "" {
		room.broadcastLocked(BombCarrierMessage{
			Type: "bomb_carrier",
			ID:   carrierID,
		})
	}
}

// assignCarrierLocked hands the bomb to the given attacker, or to the
// longest-connected attacker when none is named. With no attackers left the
// carrier stays empty until one joins.
func (room *Room) assignCarrierLocked(preferredID string) {
	if room.bomb.Planted {
		return
	}

	carrierID := room.nextCarrierLocked(preferredID)
	room.bomb.CarrierID = carrierID

	if carrierID != "" {
		room.broadcastLocked(BombCarrierMessage{
			Type: "bomb_carrier",
			ID:   carrierID,
		})
	}
}

func (room *Room) nextCarrierLocked(preferredID string) string {
	if p, ok := room.players[preferredID]; ok && p.Team == teamT {
		return preferredID
	}

	var pick *player
	for _, p := range room.players {
		if p.Team != teamT {
			continue
		}
		if pick == nil || p.joinedAt.Before(pick.joinedAt) {
			pick = p
		}
	}

	if pick == nil {
		return ""
	}
	return pick.ID
}
