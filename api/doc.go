// Package api provides the HTTP surface of the Cheese Pants server.
//
// Endpoints:
//
//	GET  /api                      index of endpoints
//	GET  /api/games                page of games (page, limit, order, phase)
//	GET  /api/games/{id}           list view of one game
//	GET  /api/games/{id}/state     full game state
//	GET  /api/games/{id}/summary   end-of-game report
//	GET  /api/stats                rooms, stored games and connections
//	GET  /api/rules                how to play
//	GET  /healthz                  liveness
//	GET  /version                  build version
//	GET  /metrics                  Prometheus metrics
//	GET  /ws                       player WebSocket
//	POST /mcp                      MCP JSON-RPC
//
// The REST endpoints are read-only. Games are created and played over
// /ws; see the websocket package.
//
// Errors are returned as {"error": "..."} with 404 for unknown games, 400
// for bad query parameters, and 500 otherwise.
package api
