package relay

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/pairplay/sync-server/internal/identity"
	"github.com/pairplay/sync-server/internal/obslog"
	"github.com/pairplay/sync-server/internal/rooms"
	"github.com/pairplay/sync-server/pkg/eventdto"
)

// Activities is the slice of the activity collaborator the relays need
// (implemented by identity.Client). Appends are fire-and-forget.
type Activities interface {
	AppendActivity(ctx context.Context, coupleID string, act identity.Activity) error
}

// Relay is the set of stateless pass-through handlers for ephemeral couple
// events: chat, typing, video sync, gift and journal notices. Each forwards
// to the couple channel with at most one side-effecting persistence call.
type Relay struct {
	router     *rooms.Router
	acts       Activities
	previewLen int
}

func New(router *rooms.Router, acts Activities, previewLen int) *Relay {
	if previewLen <= 0 {
		previewLen = 50
	}
	return &Relay{router: router, acts: acts, previewLen: previewLen}
}

// Chat broadcasts a chat message to the whole couple channel, sender
// included, so every client renders from the same authoritative stream. A
// truncated preview lands in the activity feed, best-effort.
func (r *Relay) Chat(ctx context.Context, coupleID, senderID, senderName, message, msgType string) {
	if msgType == "" {
		msgType = "text"
	}
	r.router.Broadcast(rooms.CoupleChannel(coupleID), eventdto.EvtChatMessage, eventdto.ChatMessageEvent{
		UserID:    senderID,
		User:      senderName,
		Message:   message,
		Type:      msgType,
		Timestamp: time.Now(),
	}, "")

	if err := r.acts.AppendActivity(ctx, coupleID, identity.Activity{
		Type:        "chat",
		Description: "New message: " + preview(message, r.previewLen),
		UserID:      senderID,
	}); err != nil {
		obslog.L().Warn("chat_activity_error", zap.String("couple_id", coupleID), zap.Error(err))
	}
}

// Typing forwards a typing indicator to the partner only. No persistence.
func (r *Relay) Typing(coupleID, senderID, senderConn string, isTyping bool) {
	r.router.Broadcast(rooms.CoupleChannel(coupleID), eventdto.EvtTyping, eventdto.TypingEvent{
		UserID:   senderID,
		IsTyping: isTyping,
	}, senderConn)
}

// VideoSync relays a playback control signal (play/pause/seek) to the
// partner. Only control intent travels here; applying it is the receiver's
// job and the media stream never touches this service.
func (r *Relay) VideoSync(coupleID, senderID, senderConn, action string, timestamp float64, videoURL string) {
	r.router.Broadcast(rooms.CoupleChannel(coupleID), eventdto.EvtVideoSync, eventdto.VideoSyncEvent{
		Action:    action,
		Timestamp: timestamp,
		VideoURL:  videoURL,
		SyncedBy:  senderID,
	}, senderConn)
}

// GiftSent notifies the partner of an already-persisted gift record.
func (r *Relay) GiftSent(coupleID, senderName, senderConn string, gift json.RawMessage) {
	r.router.Broadcast(rooms.CoupleChannel(coupleID), eventdto.EvtGiftReceived, eventdto.GiftReceived{
		Gift: gift,
		From: senderName,
	}, senderConn)
}

// JournalAdded notifies the partner of an already-persisted journal entry.
func (r *Relay) JournalAdded(coupleID, senderName, senderConn string, journal json.RawMessage) {
	r.router.Broadcast(rooms.CoupleChannel(coupleID), eventdto.EvtJournalUpdated, eventdto.JournalUpdated{
		Journal: journal,
		Author:  senderName,
	}, senderConn)
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
