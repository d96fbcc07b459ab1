/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	sendBufferSize = 64
	writeDeadline  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection. Outbound messages go through send so
// the room never blocks on a slow socket; writePump is the only writer.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan any
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan any, sendBufferSize),
	}
}

func (c *Client) SessionID() string {
	return c.id
}

// Deliver queues a reliable message. If the client's buffer is full it cannot
// keep up with the event stream, so the connection is closed; cleanup then
// runs through the normal disconnect path.
func (c *Client) Deliver(msg any) {
	select {
	case c.send <- msg:
	default:
		_ = c.conn.Close()
	}
}

// DeliverVolatile queues a droppable message. Position snapshots are
// superseded by the next tick, so a full buffer just loses this one.
func (c *Client) DeliverVolatile(msg any) {
	select {
	case c.send <- msg:
	default:
	}
}

// Kick tears the transport down; the read pump notices and runs the normal
// disconnect path.
func (c *Client) Kick() {
	_ = c.conn.Close()
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(cfg *Config, rm *RoomManager) {
	var room *Room

	defer func() {
		if room != nil {
			room.leave(c.id)
		}
		close(c.send)
		_ = c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// One malformed payload must not take down the room or the
			// connection; skip the event.
			continue
		}

		if room == nil {
			if msg.Type == "join" && msg.Room != "" {
				room = c.handleJoin(cfg, rm, msg)
			}
			continue
		}

		switch msg.Type {
		case "update":
			room.applyUpdate(c.id, msg)
		case "shoot":
			room.relayShoot(c.id)
		case "hit":
			room.applyHit(c.id, msg.TargetID, msg.Damage)
		case "respawn":
			room.respawn(c.id)
		case "chat_message":
			room.relayChat(c.id, msg.Msg, msg.Mid, msg.Ts)
		case "plant_bomb":
			room.plantBomb(c.id, msg.Site)
		case "defuse_bomb":
			room.defuseBomb(c.id)
		case "projectile_launch":
			room.relayProjectile(c.id, msg.Data)
		case "snowball_impulse":
			room.relaySnowball(c.id, msg.TargetID, msg.Impulse)
		case "voice_start":
			room.relayVoiceStart(c.id)
		case "voice_end":
			room.relayVoiceEnd(c.id)
		case "voice_data":
			room.relayVoiceData(c.id, msg.Data)
		default:
			// ignore unknown types
		}
	}
}

// handleJoin resolves the room and registers this connection in it. The
// retry loop covers the window where the last occupant of an existing room
// leaves between lookup and join.
func (c *Client) handleJoin(cfg *Config, rm *RoomManager, msg ClientMessage) *Room {
	for {
		room := rm.getOrCreate(msg.Room, msg.Mode)

		err := room.join(c, msg.Name, msg.TeamPreference, msg.Bot)
		switch err {
		case nil:
			return room
		case errRoomClosed:
			continue
		default:
			c.Deliver(ErrorMessage{
				Type:    "error_msg",
				Message: err.Error(),
			})
			return nil
		}
	}
}

func serveGameSocket(cfg *Config, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SOCKET: Upgrade failed for %s: %v", realIP(r), err)
			return
		}

		client := newClient(conn)
		logf(cfg, "SOCKET: Connection %s from %s", client.id, realIP(r))

		go client.writePump()
		client.readPump(cfg, rm)

		logf(cfg, "SOCKET: Connection %s closed", client.id)
	}
}
