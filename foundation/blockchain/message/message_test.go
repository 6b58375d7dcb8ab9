package message_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/message"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
	"github.com/ardanlabs/ledgernode/foundation/validate"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Envelope(t *testing.T) {
	t.Log("Given the need to move messages across the wire.")
	{
		t.Logf("\tTest 0:\tWhen encoding and decoding a heartbeat.")
		{
			hb := message.Heartbeat{
				NodeID:      "node_a",
				NodeAddress: peer.New("127.0.0.1", 9080),
				Height:      7,
			}

			data, err := message.Encode(message.TypeHeartbeat, hb)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to encode the message: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to encode the message.", success)

			env, err := message.Decode(data)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to decode the message: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to decode the message.", success)

			if env.Type != message.TypeHeartbeat || env.Version != message.Version || env.Timestamp.IsZero() {
				t.Fatalf("\t%s\tTest 0:\tShould get back the envelope fields: %+v", failed, env)
			}
			t.Logf("\t%s\tTest 0:\tShould get back the envelope fields.", success)

			var got message.Heartbeat
			if err := env.ParsePayload(&got); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to parse the payload: %s", failed, err)
			}

			if got != hb {
				t.Logf("\t\tTest 0:\tgot: %+v", got)
				t.Logf("\t\tTest 0:\texp: %+v", hb)
				t.Fatalf("\t%s\tTest 0:\tShould get back the same payload.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get back the same payload.", success)
		}

		t.Logf("\tTest 1:\tWhen decoding bad frames.")
		{
			if _, err := message.Decode([]byte("{not json")); !errors.Is(err, message.ErrInvalid) {
				t.Fatalf("\t%s\tTest 1:\tShould reject invalid json: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject invalid json.", success)

			unknown := `{"type":"GOSSIP_STUFF","version":1,"timestamp":"2024-01-01T00:00:00Z","payload":{}}`
			if _, err := message.Decode([]byte(unknown)); !errors.Is(err, message.ErrUnknownMessageType) {
				t.Fatalf("\t%s\tTest 1:\tShould reject an unknown type: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject an unknown type.", success)

			future := `{"type":"HEARTBEAT","version":99,"timestamp":"2024-01-01T00:00:00Z","payload":{}}`
			if _, err := message.Decode([]byte(future)); !errors.Is(err, message.ErrUnsupportedVersion) {
				t.Fatalf("\t%s\tTest 1:\tShould reject a newer version: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject a newer version.", success)

			env := message.Envelope{Type: message.TypeHeartbeat, Payload: json.RawMessage(`"text"`)}
			var hb message.Heartbeat
			if err := env.ParsePayload(&hb); !errors.Is(err, message.ErrInvalid) {
				t.Fatalf("\t%s\tTest 1:\tShould reject a mismatched payload: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject a mismatched payload.", success)
		}
	}
}

func Test_JoinRequest(t *testing.T) {
	now := time.Now()
	addr := peer.New("127.0.0.1", 9080)
	height := uint64(0)

	type table struct {
		name  string
		req   message.JoinRequest
		valid bool
	}

	tt := []table{
		{
			name:  "bootstrap",
			req:   message.JoinRequest{HandshakeType: message.HandshakeBootstrap, NodeAddress: &addr, NodeID: "a", Capabilities: message.Capabilities, BlockchainHeight: &height, Timestamp: now},
			valid: true,
		},
		{
			name:  "bootstrap-no-height",
			req:   message.JoinRequest{HandshakeType: message.HandshakeBootstrap, NodeAddress: &addr, NodeID: "a", Capabilities: message.Capabilities, Timestamp: now},
			valid: false,
		},
		{
			name:  "regular",
			req:   message.JoinRequest{HandshakeType: message.HandshakeRegular, NodeAddress: &addr, NodeID: "a", Capabilities: message.Capabilities, Timestamp: now},
			valid: true,
		},
		{
			name:  "regular-no-capabilities",
			req:   message.JoinRequest{HandshakeType: message.HandshakeRegular, NodeAddress: &addr, NodeID: "a", Timestamp: now},
			valid: false,
		},
		{
			name:  "basic",
			req:   message.JoinRequest{HandshakeType: message.HandshakeBasic, NodeAddress: &addr, NodeID: "a", Timestamp: now},
			valid: true,
		},
		{
			name:  "no-address",
			req:   message.JoinRequest{HandshakeType: message.HandshakeBasic, NodeID: "a", Timestamp: now},
			valid: false,
		},
		{
			name:  "unknown-handshake",
			req:   message.JoinRequest{HandshakeType: "FANCY", NodeAddress: &addr, NodeID: "a", Timestamp: now},
			valid: false,
		},
		{
			name:  "future",
			req:   message.JoinRequest{HandshakeType: message.HandshakeBasic, NodeAddress: &addr, NodeID: "a", Timestamp: now.Add(time.Hour)},
			valid: false,
		},
		{
			name:  "slight-skew",
			req:   message.JoinRequest{HandshakeType: message.HandshakeBasic, NodeAddress: &addr, NodeID: "a", Timestamp: now.Add(time.Minute)},
			valid: true,
		},
	}

	t.Log("Given the need to validate join requests.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling a %s request.", testID, tst.name)
				{
					err := tst.req.Validate(now)
					if (err == nil) != tst.valid {
						t.Fatalf("\t%s\tTest %d:\tShould get valid=%v: %v", failed, testID, tst.valid, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get valid=%v.", success, testID, tst.valid)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_JoinRequestFieldErrors(t *testing.T) {
	req := message.JoinRequest{HandshakeType: message.HandshakeBootstrap}

	err := req.Validate(time.Now())
	if !validate.IsFieldErrors(err) {
		t.Fatalf("Should get field errors back: %v", err)
	}

	fields := validate.GetFieldErrors(err).Fields()
	for _, name := range []string{"node_address", "node_id", "blockchain_height"} {
		if _, exists := fields[name]; !exists {
			t.Fatalf("Should name the missing field %s: %v", name, fields)
		}
	}
}
