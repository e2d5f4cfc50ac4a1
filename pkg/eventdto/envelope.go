package eventdto

import "encoding/json"

// Envelope is the inbound wire frame: one JSON object per WebSocket message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is the outbound counterpart of Envelope.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client → server event names.
const (
	EvtJoin         = "join"
	EvtInviteGame   = "invite_game"
	EvtJoinGame     = "join_game"
	EvtEndGame      = "end_game"
	EvtCancelGame   = "cancel_game"
	EvtGiftSent     = "gift_sent"
	EvtJournalAdded = "journal_added"
)

// Server → client event names.
const (
	EvtPartnerStatus  = "partner_status"
	EvtGameInvitation = "game_invitation"
	EvtGameCreated    = "game_created"
	EvtGameJoined     = "game_joined"
	EvtGameStarted    = "game_started"
	EvtGameEnded      = "game_ended"
	EvtGameCancelled  = "game_cancelled"
	EvtGiftReceived   = "gift_received"
	EvtJournalUpdated = "journal_updated"
	EvtError          = "error"
)

// Bidirectional event names (same name on both legs of the wire).
const (
	EvtGameMove    = "game_move"
	EvtVideoSync   = "video_sync"
	EvtChatMessage = "chat_message"
	EvtTyping      = "typing"
)
