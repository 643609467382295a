// Package engine provides the core game logic for Cheese Pants.
//
// The engine package implements the game mechanics including:
//   - Required-word matching and sentence termination checks
//   - Turn rotation and turn-timer bookkeeping
//   - The lobby → playing → complete phase machine
//   - Admin-only operations (start, delete word, change turn, remove player)
//   - Repair and validation of stored game records
//   - End-of-game summaries and achievements
//
// Core Types:
//
// GameState is the root aggregate for one room. Engine wraps a GameState and
// applies every player action to it, returning an advisory error (see
// IsAdvisory) whenever a precondition fails. An advisory error never leaves
// the state partially modified.
//
// Usage:
//
//	eng := engine.New("room-1", engine.Options{
//		RequiredWords: []string{"cheese", "pants"},
//		TurnTimeLimit: 30,
//	}, time.Now)
//
//	eng.Join("p1", "Alice")
//	eng.Join("p2", "Bob")
//	if err := eng.Start("p1"); err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := eng.AddWord("p1", "The")
//
// Game Rules:
//
// Players take turns appending one word to a shared sentence. The game is
// won when every required word appears in the sentence and the word that
// completes the set ends with '.', '!' or '?'.
package engine
