/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"time"
)

// runReaper sweeps every room on a coarse tick and applies the idle policy.
// Coarse polling keeps the warn-then-kick ordering without a scheduled
// callback per connection.
func runReaper(ctx context.Context, cfg *Config, rm *RoomManager) {
	ticker := time.NewTicker(cfg.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, room := range rm.list() {
				room.reapIdle(now, cfg.idleWarning, cfg.idleKick)
			}
		}
	}
}
