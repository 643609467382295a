// Package mcp exposes Cheese Pants games to AI agents over the Model
// Context Protocol.
//
// Client is a thin MCP server whose tools proxy the REST API, so the same
// code serves both transports: stdio (the "mcp" command) and POST /mcp on
// the HTTP server.
//
// Tools:
//   - list_games: games ordered by start time, filtered by phase
//   - game_state: players, turn, required words and the sentence so far
//   - game_summary: rankings and achievements
//   - game_rules: how to play
//   - server_stats: rooms, stored games and connections
//
// The tools are read-only; playing happens over WebSocket.
package mcp
