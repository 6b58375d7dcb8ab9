// Package message defines the wire schema exchanged between nodes. Every
// frame carries one Envelope whose type selects the payload.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Version is the newest envelope version this node understands.
const Version = 1

// Set of error variables for decoding messages.
var (
	ErrInvalid            = errors.New("invalid message")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrUnsupportedVersion = errors.New("unsupported message version")
)

// Type defines the type of message.
type Type string

// Set of known message types.
const (
	TypeJoinRequest           Type = "JOIN_NETWORK_REQUEST"
	TypeJoinResponse          Type = "JOIN_NETWORK_RESPONSE"
	TypeBlockchainData        Type = "BLOCKCHAIN_DATA"
	TypeTestMessage           Type = "TEST_MESSAGE"
	TypeNewTransaction        Type = "NEW_TRANSACTION"
	TypeTransactionValidation Type = "TRANSACTION_VALIDATION"
	TypeNewBlock              Type = "NEW_BLOCK"
	TypeChainRequest          Type = "CHAIN_REQUEST"
	TypeTxRequest             Type = "TX_REQUEST"
	TypePeerListRequest       Type = "PEER_LIST_REQUEST"
	TypePeerListResponse      Type = "PEER_LIST_RESPONSE"
	TypeHeartbeat             Type = "HEARTBEAT"
)

var known = map[Type]struct{}{
	TypeJoinRequest:           {},
	TypeJoinResponse:          {},
	TypeBlockchainData:        {},
	TypeTestMessage:           {},
	TypeNewTransaction:        {},
	TypeTransactionValidation: {},
	TypeNewBlock:              {},
	TypeChainRequest:          {},
	TypeTxRequest:             {},
	TypePeerListRequest:       {},
	TypePeerListResponse:      {},
	TypeHeartbeat:             {},
}

// IsKnown reports whether the type is part of the schema.
func (t Type) IsKnown() bool {
	_, exists := known[t]
	return exists
}

// =============================================================================

// Envelope is the tagged union carried in every frame.
type Envelope struct {
	Type      Type            `json:"type"`
	Version   int             `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// New constructs an envelope for the payload.
func New(typ Type, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}

	env := Envelope{
		Type:      typ,
		Version:   Version,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}

	return env, nil
}

// Encode constructs an envelope for the payload and marshals it for the wire.
func Encode(typ Type, payload any) ([]byte, error) {
	env, err := New(typ, payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(env)
}

// Decode unmarshals a frame into an envelope. Unknown types and versions
// newer than this node understands are rejected.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %s", ErrInvalid, err)
	}

	if !env.Type.IsKnown() {
		return env, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}

	if env.Version > Version {
		return env, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}

	return env, nil
}

// ParsePayload unmarshals the envelope payload into the provided value.
func (e Envelope) ParsePayload(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %s", ErrInvalid, e.Type, err)
	}

	return nil
}
