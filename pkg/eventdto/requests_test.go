package eventdto

import (
	"encoding/json"
	"testing"
)

func TestVideoSyncActionValidation(t *testing.T) {
	for _, action := range []string{"play", "pause", "seek"} {
		p := VideoSyncPayload{Action: action}
		if err := p.Validate(); err != nil {
			t.Fatalf("action %q rejected: %v", action, err)
		}
	}
	p := VideoSyncPayload{Action: "rewind"}
	if err := p.Validate(); err == nil {
		t.Fatalf("unsupported action accepted")
	}
	p = VideoSyncPayload{}
	if err := p.Validate(); err == nil {
		t.Fatalf("missing action accepted")
	}
}

func TestRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		p    interface{ Validate() error }
	}{
		{"join", &JoinPayload{}},
		{"invite_game", &InviteGamePayload{}},
		{"join_game", &JoinGamePayload{}},
		{"game_move", &GameMovePayload{GameSessionID: "gs-1"}},
		{"end_game", &EndGamePayload{}},
		{"cancel_game", &CancelGamePayload{}},
		{"chat_message", &ChatMessagePayload{}},
		{"gift_sent", &GiftSentPayload{}},
		{"journal_added", &JournalAddedPayload{}},
	}
	for _, tc := range cases {
		if err := tc.p.Validate(); err == nil {
			t.Fatalf("%s: empty payload accepted", tc.name)
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	raw := []byte(`{"event":"game_move","data":{"gameSessionId":"gs-1","move":{"cell":4}}}`)
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Event != EvtGameMove {
		t.Fatalf("event = %q", env.Event)
	}
	var p GameMovePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("payload invalid: %v", err)
	}
	if p.GameSessionID != "gs-1" {
		t.Fatalf("payload: %+v", p)
	}
}
