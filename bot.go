/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

const (
	botName         = "zombie"
	botUpdatePeriod = 500 * time.Millisecond
	botRetryDelay   = 5 * time.Second
	botPathRadius   = 20.0
)

// runBot keeps a synthetic client connected to the configured room so it
// never empties out. It speaks the same protocol as the browser and
// reconnects whenever the session drops.
func runBot(ctx context.Context, cfg *Config) {
	// Give the listener a moment to come up before the first dial.
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Second):
	}

	for ctx.Err() == nil {
		if err := botSession(ctx, cfg); err != nil && ctx.Err() == nil {
			logf(cfg, "BOT: Session ended: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(botRetryDelay):
		}
	}
}

func botSession(ctx context.Context, cfg *Config) error {
	host := cfg.bind
	if host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	scheme := "ws"
	if cfg.scheme() == "https" {
		scheme = "wss"
	}
	url := fmt.Sprintf("%s://%s%s/ws", scheme, net.JoinHostPort(host, strconv.Itoa(cfg.port)), cfg.prefix)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(ClientMessage{
		Type: "join",
		Name: botName,
		Room: cfg.botRoom,
		Mode: modeFFA,
		Bot:  true,
	}); err != nil {
		return err
	}

	logf(cfg, "BOT: Joined room %s", cfg.botRoom)

	// Drain inbound traffic so the server side never backs up, and notice
	// when the connection dies.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(botUpdatePeriod)
	defer ticker.Stop()

	angle := 0.0
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case <-ticker.C:
			angle += 0.1
			err := conn.WriteJSON(ClientMessage{
				Type: "update",
				X:    botPathRadius * math.Cos(angle),
				Y:    spawnY,
				Z:    botPathRadius * math.Sin(angle),
				RY:   angle,
			})
			if err != nil {
				return err
			}
		}
	}
}
