// Package service provides the read-side business logic for Cheese Pants.
//
// Games are played over WebSocket and every change goes through a room's
// goroutine in the session package. This package answers questions about
// those games for the REST API and the MCP tools: which games exist, what a
// game looks like right now, and how a finished game turned out.
//
// Usage:
//
//	rooms := session.NewManager(ctx, store, hub, opts)
//	games := service.NewGameService(rooms, store, hub)
//
//	list, err := games.ListGames(ctx, service.ListOptions{Limit: 20, Order: "desc"})
//	summary, err := games.GetSummary(ctx, "g1")
//
// A running room is asked for a snapshot; a game whose room has been
// evicted is read from storage. Both paths return a repaired copy, so
// callers may keep or modify the result freely.
package service
