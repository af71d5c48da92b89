package model

import "encoding/json"

// Frame type strings on the realtime channel.
const (
	FramePing        = "ping"
	FramePong        = "pong"
	FrameBar         = "bar"
	FrameTrade       = "trade"
	FrameStateUpdate = "state_update"
	FrameError       = "error"
)

// Frame is one message on the realtime channel, in either direction.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the body of a server error frame.
type ErrorPayload struct {
	Detail string `json:"detail"`
}
