package eventdto

import (
	"encoding/json"
	"strings"
)

// Client → server payloads. Every payload is validated before it reaches the
// core components; loosely shaped frames are rejected at the boundary.

type JoinPayload struct {
	UserID string `json:"userId"`
}

func (p *JoinPayload) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return errMissing("userId")
	}
	return nil
}

type InviteGamePayload struct {
	GameType    string `json:"gameType"`
	PartnerID   string `json:"partnerId,omitempty"`
	CoupleID    string `json:"coupleId,omitempty"`
	InviterName string `json:"inviterName,omitempty"`
}

func (p *InviteGamePayload) Validate() error {
	if strings.TrimSpace(p.GameType) == "" {
		return errMissing("gameType")
	}
	return nil
}

type JoinGamePayload struct {
	GameSessionID string `json:"gameSessionId"`
}

func (p *JoinGamePayload) Validate() error {
	if strings.TrimSpace(p.GameSessionID) == "" {
		return errMissing("gameSessionId")
	}
	return nil
}

type GameMovePayload struct {
	GameSessionID string          `json:"gameSessionId"`
	Move          json.RawMessage `json:"move"`
}

func (p *GameMovePayload) Validate() error {
	if strings.TrimSpace(p.GameSessionID) == "" {
		return errMissing("gameSessionId")
	}
	if len(p.Move) == 0 {
		return errMissing("move")
	}
	return nil
}

type EndGamePayload struct {
	GameSessionID string         `json:"gameSessionId"`
	Winner        string         `json:"winner,omitempty"`
	FinalScores   map[string]int `json:"finalScores,omitempty"`
}

func (p *EndGamePayload) Validate() error {
	if strings.TrimSpace(p.GameSessionID) == "" {
		return errMissing("gameSessionId")
	}
	return nil
}

type CancelGamePayload struct {
	GameSessionID string `json:"gameSessionId"`
}

func (p *CancelGamePayload) Validate() error {
	if strings.TrimSpace(p.GameSessionID) == "" {
		return errMissing("gameSessionId")
	}
	return nil
}

type VideoSyncPayload struct {
	CoupleID  string  `json:"coupleId,omitempty"`
	Action    string  `json:"action"`
	Timestamp float64 `json:"timestamp"`
	VideoURL  string  `json:"videoUrl,omitempty"`
}

func (p *VideoSyncPayload) Validate() error {
	switch strings.TrimSpace(p.Action) {
	case "play", "pause", "seek":
		return nil
	case "":
		return errMissing("action")
	default:
		return errInvalid("action")
	}
}

type ChatMessagePayload struct {
	CoupleID string `json:"coupleId,omitempty"`
	Message  string `json:"message"`
	Type     string `json:"type,omitempty"`
}

func (p *ChatMessagePayload) Validate() error {
	if p.Message == "" {
		return errMissing("message")
	}
	return nil
}

type TypingPayload struct {
	CoupleID string `json:"coupleId,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

func (p *TypingPayload) Validate() error { return nil }

type GiftSentPayload struct {
	CoupleID string          `json:"coupleId,omitempty"`
	GiftData json.RawMessage `json:"giftData"`
}

func (p *GiftSentPayload) Validate() error {
	if len(p.GiftData) == 0 {
		return errMissing("giftData")
	}
	return nil
}

type JournalAddedPayload struct {
	CoupleID    string          `json:"coupleId,omitempty"`
	JournalData json.RawMessage `json:"journalData"`
}

func (p *JournalAddedPayload) Validate() error {
	if len(p.JournalData) == 0 {
		return errMissing("journalData")
	}
	return nil
}

type fieldErr string

func (e fieldErr) Error() string { return string(e) }

func errMissing(field string) error { return fieldErr(field + " is required") }
func errInvalid(field string) error { return fieldErr(field + " is invalid") }
