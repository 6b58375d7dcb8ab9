package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/message"
	"github.com/ardanlabs/ledgernode/foundation/p2p"
)

// handler processes one decoded message received on a connection.
type handler func(ctx context.Context, c *p2p.Conn, env message.Envelope) error

// routes maps every known message type to its handler.
func (s *State) routes() map[message.Type]handler {
	return map[message.Type]handler{
		message.TypeJoinRequest:           s.handleJoinRequest,
		message.TypeJoinResponse:          s.handleJoinResponse,
		message.TypeBlockchainData:        s.handleBlockchainData,
		message.TypeTestMessage:           s.handleTestMessage,
		message.TypeNewTransaction:        s.handleNewTransaction,
		message.TypeTransactionValidation: s.handleTransactionValidation,
		message.TypeNewBlock:              s.handleNewBlock,
		message.TypeChainRequest:          s.handleChainRequest,
		message.TypeTxRequest:             s.handleTxRequest,
		message.TypePeerListRequest:       s.handlePeerListRequest,
		message.TypePeerListResponse:      s.handlePeerListResponse,
		message.TypeHeartbeat:             s.handleHeartbeat,
	}
}

// handleFrame is the transport handler. A frame that is not a well formed
// envelope, or a payload that does not match its type, closes the connection.
// Unknown types and versions are logged and the connection stays open.
func (s *State) handleFrame(c *p2p.Conn, frame []byte) error {
	env, err := message.Decode(frame)
	if err != nil {
		switch {
		case errors.Is(err, message.ErrUnknownMessageType), errors.Is(err, message.ErrUnsupportedVersion):
			s.evHandler("state: handleFrame: %s: WARNING: dropped: %s", c.Addr(), err)
			return nil
		default:
			return fmt.Errorf("%w: %w", p2p.ErrProtocol, err)
		}
	}

	h, exists := s.handlers[env.Type]
	if !exists {
		s.evHandler("state: handleFrame: %s: WARNING: no handler for %s", c.Addr(), env.Type)
		return nil
	}

	if err := h(s.ctx, c, env); err != nil {
		if errors.Is(err, message.ErrInvalid) || errors.Is(err, p2p.ErrProtocol) {
			return fmt.Errorf("%w: %w", p2p.ErrProtocol, err)
		}

		// Rule failures are local to the message, the connection stays up.
		s.evHandler("state: handleFrame: %s: %s: ERROR: %s", c.Addr(), env.Type, err)
	}

	return nil
}

// reply encodes the payload and sends it back on the connection the request
// arrived on.
func (s *State) reply(c *p2p.Conn, typ message.Type, payload any) error {
	data, err := message.Encode(typ, payload)
	if err != nil {
		return err
	}

	return c.Send(data)
}
