// Package websocket provides the real-time transport for Cheese Pants games.
//
// A Handler upgrades connections on /ws. The handshake carries the game and
// player identity as query parameters:
//
//	/ws?gameId=g1&playerId=p1&playerName=Alice&requiredWords=cheese,pants&turnTimeLimit=30
//
// requiredWords and turnTimeLimit are only used when the connection creates
// the game. playerName may be omitted when reconnecting as an existing member.
// A handshake missing gameId or playerId is rejected with 400 before upgrade.
//
// The Hub tracks the open connection of every player, keyed by game. It
// implements session.Notifier, so rooms broadcast through it without knowing
// about sockets. A player has at most one connection per game; a newer one
// replaces the older, and only the close of the current connection is
// reported to the room as a disconnect.
//
// Each connection runs a read pump and a write pump. The read pump rate
// limits, decodes and forwards messages to the room goroutine. The write
// pump sends one text frame per outbound message and pings idle peers.
// A client that cannot keep up with its send buffer is dropped.
package websocket
