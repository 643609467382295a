// Package protocol defines the JSON wire format exchanged over a player's
// WebSocket connection.
//
// Every frame is an object with a "type" discriminator. Inbound frames are
// decoded into one concrete struct per kind by DecodeInbound, so callers can
// switch on the Go type exhaustively:
//
//	msg, err := protocol.DecodeInbound(frame)
//	if err != nil {
//		return err
//	}
//	switch m := msg.(type) {
//	case protocol.AddWord:
//		// m.Word
//	case protocol.DeleteWord:
//		// m.Index
//	}
//
// Outbound frames are built with StateResponse, GameComplete, Message, Quit
// and Pong and serialized with Encode.
package protocol
