// Package session runs the live rooms of Cheese Pants.
//
// The session package implements:
//   - One actor goroutine per room that owns the authoritative GameState
//   - Persist-before-broadcast for every accepted action
//   - Lazy turn-timeout checks before each event, plus an optional timer
//   - Room lookup, load-or-create and idle eviction
//   - Durable per-room records on disk (FilePersistence) or in SQL
//     (SQLPersistence, sqlite or postgres via gorm)
//
// Core Types:
//
// Room serializes every event for one game through a buffered inbox and
// applies it to an engine.GameEngine. Outbound frames go through a Notifier,
// which the websocket transport implements. Manager creates rooms on demand
// and keeps at most one running Room per game ID.
//
// Usage:
//
//	store, err := session.NewFilePersistence("./games")
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManager(ctx, store, hub, session.RoomOptions{
//		Logger:            logger,
//		ProactiveTimeouts: true,
//	})
//	defer manager.Close()
//
//	room, err := manager.Open(ctx, "room-1", session.CreateParams{})
//	room.Connect(ctx, "p1", "Alice")
//	room.Submit(ctx, "p1", protocol.Join{PlayerName: "Alice"})
//
// Concurrency:
//
// A room's state is only ever touched by its own goroutine. Different rooms
// run in parallel. A mutation is rolled back if its record cannot be saved,
// so a broadcast always describes durable state.
package session
