package rooms

import (
	"sync"

	"go.uber.org/zap"

	"github.com/pairplay/sync-server/internal/obslog"
)

// Sender is one deliverable endpoint of a channel, implemented by the hub's
// connection type. Send must be safe for concurrent use.
type Sender interface {
	ID() string
	Send(event string, payload any) error
}

// Channel key helpers. A user channel has exactly one member, a couple
// channel at most the two paired users, a game channel the session's players.
func UserChannel(userID string) string     { return "user:" + userID }
func CoupleChannel(coupleID string) string { return "couple:" + coupleID }
func GameChannel(sessionID string) string  { return "game:" + sessionID }

// Router keeps in-memory channel membership and fans events out to members.
// Membership does not survive a disconnect; every reconnect re-joins from
// scratch. All membership mutation funnels through this type.
type Router struct {
	mu       sync.RWMutex
	channels map[string]map[string]Sender   // channel -> connID -> sender
	byConn   map[string]map[string]struct{} // connID -> channel set
}

func NewRouter() *Router {
	return &Router{
		channels: make(map[string]map[string]Sender),
		byConn:   make(map[string]map[string]struct{}),
	}
}

func (r *Router) Join(channel string, s Sender) {
	if channel == "" || s == nil || s.ID() == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.channels[channel]
	if members == nil {
		members = make(map[string]Sender)
		r.channels[channel] = members
	}
	members[s.ID()] = s
	chans := r.byConn[s.ID()]
	if chans == nil {
		chans = make(map[string]struct{})
		r.byConn[s.ID()] = chans
	}
	chans[channel] = struct{}{}
}

func (r *Router) Leave(channel, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(channel, connID)
}

// LeaveAll removes a connection from every channel it joined.
func (r *Router) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for channel := range r.byConn[connID] {
		r.leaveLocked(channel, connID)
	}
}

// CloseChannel empties a channel. Used when a game session reaches a
// terminal state and its channel becomes inert.
func (r *Router) CloseChannel(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID := range r.channels[channel] {
		r.leaveLocked(channel, connID)
	}
}

func (r *Router) leaveLocked(channel, connID string) {
	if members, ok := r.channels[channel]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.channels, channel)
		}
	}
	if chans, ok := r.byConn[connID]; ok {
		delete(chans, channel)
		if len(chans) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// MemberSender returns the Sender registered for connID in a channel.
func (r *Router) MemberSender(channel, connID string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.channels[channel][connID]
	return s, ok
}

// Members returns the connection ids currently in a channel.
func (r *Router) Members(channel string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.channels[channel]))
	for connID := range r.channels[channel] {
		out = append(out, connID)
	}
	return out
}

// Broadcast delivers an event to every current member of the channel.
// excludeConn, when non-empty, skips that connection ("notify the other
// party" semantics for typing and video sync).
func (r *Router) Broadcast(channel, event string, payload any, excludeConn string) {
	r.mu.RLock()
	snapshot := make([]Sender, 0, len(r.channels[channel]))
	for connID, s := range r.channels[channel] {
		if excludeConn != "" && connID == excludeConn {
			continue
		}
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		if err := s.Send(event, payload); err != nil {
			obslog.L().Warn("broadcast_send_error",
				zap.String("channel", channel),
				zap.String("event", event),
				zap.String("conn_id", s.ID()),
				zap.Error(err),
			)
		}
	}
}
