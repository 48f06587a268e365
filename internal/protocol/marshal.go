package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMessageType is returned for envelopes with an unrecognized
// type tag.
var ErrUnknownMessageType = errors.New("protocol: unknown message type")

// Envelope frames every message: {"type": "...", "data": {...}}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Marshal wraps a payload in an envelope and serializes it.
func Marshal(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Data: data})
}

// Unmarshal parses an envelope without touching the payload.
func Unmarshal(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("protocol: missing type")
	}
	return env, nil
}

// DecodeIntent parses the envelope's payload into the intent struct for
// its type. The result is one of the intent types declared in this
// package.
func DecodeIntent(env Envelope) (any, error) {
	var intent any
	switch env.Type {
	case TypeCreateRoom:
		intent = &CreateRoom{}
	case TypeJoinRoom:
		intent = &JoinRoom{}
	case TypeLeaveRoom:
		intent = &LeaveRoom{}
	case TypeStartGame:
		intent = &StartGame{}
	case TypeStartGameWithBots:
		intent = &StartGameWithBots{}
	case TypeDrawTile:
		intent = &DrawTile{}
	case TypeDrawFromDiscard:
		intent = &DrawFromDiscard{}
	case TypeThrowTile:
		intent = &ThrowTile{}
	case TypeDeclareWin:
		intent = &DeclareWin{}
	case TypeSetClientSeed:
		intent = &SetClientSeed{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, intent); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
	}
	return intent, nil
}
