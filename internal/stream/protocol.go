package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionPing        = "ping"
)

// ClientMessage is a control frame sent by a connected client
type ClientMessage struct {
	Action  string   `json:"action"`
	Symbol  string   `json:"symbol,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

// ServerMessage is the frame shape pushed to clients. Alerts use type
// "live_alert" with the alert in Data; control responses use "ack",
// "error" and "pong".
type ServerMessage struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// handleClientMessage applies a control frame to the connection's
// subscriptions. Symbols are uppercased to match the tracked watchlist.
func handleClientMessage(conn *Connection, msg *ClientMessage) {
	symbols := msg.Symbols
	if msg.Symbol != "" {
		symbols = append([]string{msg.Symbol}, symbols...)
	}

	switch msg.Action {
	case actionSubscribe:
		if len(symbols) == 0 {
			conn.sendError("invalid_request", "symbol or symbols field required")
			return
		}
		for i, symbol := range symbols {
			symbols[i] = strings.ToUpper(symbol)
			conn.Subscribe(symbols[i])
		}
		conn.sendAck(actionSubscribe, symbols)

	case actionUnsubscribe:
		if len(symbols) == 0 {
			conn.sendError("invalid_request", "symbol or symbols field required")
			return
		}
		for i, symbol := range symbols {
			symbols[i] = strings.ToUpper(symbol)
			conn.Unsubscribe(symbols[i])
		}
		conn.sendAck(actionUnsubscribe, symbols)

	case actionPing:
		if payload, err := json.Marshal(ServerMessage{Type: "pong"}); err == nil {
			conn.enqueue(payload)
		}

	default:
		conn.sendError("unknown_action", fmt.Sprintf("unknown action: %s", msg.Action))
	}
}
