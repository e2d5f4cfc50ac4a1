package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/pairplay/sync-server/internal/obslog"
	"github.com/pairplay/sync-server/internal/presence"
	"github.com/pairplay/sync-server/internal/relay"
	"github.com/pairplay/sync-server/internal/session"
	"github.com/pairplay/sync-server/pkg/eventdto"
)

// Hub owns the WebSocket endpoint: it accepts connections, reads envelopes,
// and dispatches them to the presence, game, and relay components. All
// processing failures flow back to the originating connection as an error
// frame; nothing is echoed to other clients.
type Hub struct {
	presence *presence.Coordinator
	games    *session.Coordinator
	relays   *relay.Relay
	origins  []string
}

func New(pres *presence.Coordinator, games *session.Coordinator, relays *relay.Relay, allowedOrigins []string) *Hub {
	return &Hub{presence: pres, games: games, relays: relays, origins: allowedOrigins}
}

// HandleWS upgrades the request and runs the connection's read loop until
// the peer goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(h.origins) == 0 {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.origins
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	c := &conn{id: uuid.NewString(), ws: ws}
	obslog.L().Debug("ws_open", zap.String("conn_id", c.id))
	defer func() {
		h.presence.HandleDisconnect(context.Background(), c.id)
		ws.Close(websocket.StatusNormalClosure, "")
		obslog.L().Debug("ws_closed", zap.String("conn_id", c.id))
	}()

	ctx := r.Context()
	for {
		var env eventdto.Envelope
		if err := wsjson.Read(ctx, ws, &env); err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_read_error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		h.dispatch(ctx, c, env)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *conn, env eventdto.Envelope) {
	if env.Event != eventdto.EvtJoin && c.userID == "" {
		h.reportError(c, env.Event, errJoinRequired)
		return
	}

	var err error
	switch env.Event {
	case eventdto.EvtJoin:
		err = h.onJoin(ctx, c, env.Data)
	case eventdto.EvtInviteGame:
		err = h.onInviteGame(ctx, c, env.Data)
	case eventdto.EvtJoinGame:
		err = h.onJoinGame(ctx, c, env.Data)
	case eventdto.EvtGameMove:
		err = h.onGameMove(ctx, c, env.Data)
	case eventdto.EvtEndGame:
		err = h.onEndGame(ctx, c, env.Data)
	case eventdto.EvtCancelGame:
		err = h.onCancelGame(ctx, c, env.Data)
	case eventdto.EvtVideoSync:
		err = h.onVideoSync(c, env.Data)
	case eventdto.EvtChatMessage:
		err = h.onChatMessage(ctx, c, env.Data)
	case eventdto.EvtTyping:
		err = h.onTyping(c, env.Data)
	case eventdto.EvtGiftSent:
		err = h.onGiftSent(c, env.Data)
	case eventdto.EvtJournalAdded:
		err = h.onJournalAdded(c, env.Data)
	default:
		obslog.L().Debug("ws_unknown_event", zap.String("conn_id", c.id), zap.String("event", env.Event))
		return
	}
	if err != nil {
		h.reportError(c, env.Event, err)
	}
}

func (h *Hub) onJoin(ctx context.Context, c *conn, data json.RawMessage) error {
	var p eventdto.JoinPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	c.userID = p.UserID
	c.coupleID = ""
	c.name = ""
	profile := h.presence.HandleConnect(ctx, p.UserID, c)
	if profile != nil {
		c.coupleID = profile.CoupleID
		c.name = profile.DisplayName
	}
	return nil
}

func (h *Hub) onInviteGame(ctx context.Context, c *conn, data json.RawMessage) error {
	var p eventdto.InviteGamePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.CoupleID != "" && p.CoupleID != c.coupleID {
		return session.ErrForbidden
	}
	name := p.InviterName
	if name == "" {
		name = c.name
	}
	s, err := h.games.Create(ctx, c.userID, name, p.GameType)
	if err != nil {
		return err
	}
	return c.Send(eventdto.EvtGameCreated, eventdto.GameCreated{GameSessionID: s.ID})
}

func (h *Hub) onJoinGame(ctx context.Context, c *conn, data json.RawMessage) error {
	var p eventdto.JoinGamePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := h.games.Join(ctx, p.GameSessionID, c.userID, c.coupleID, c)
	return err
}

func (h *Hub) onGameMove(ctx context.Context, c *conn, data json.RawMessage) error {
	var p eventdto.GameMovePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := h.games.ApplyMove(ctx, p.GameSessionID, c.userID, p.Move)
	return err
}

func (h *Hub) onEndGame(ctx context.Context, c *conn, data json.RawMessage) error {
	var p eventdto.EndGamePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := h.games.End(ctx, p.GameSessionID, c.userID, p.Winner, p.FinalScores)
	return err
}

func (h *Hub) onCancelGame(ctx context.Context, c *conn, data json.RawMessage) error {
	var p eventdto.CancelGamePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := h.games.Cancel(ctx, p.GameSessionID, c.userID)
	return err
}

func (h *Hub) onVideoSync(c *conn, data json.RawMessage) error {
	var p eventdto.VideoSyncPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := requireCouple(c, p.CoupleID); err != nil {
		return err
	}
	h.relays.VideoSync(c.coupleID, c.userID, c.id, p.Action, p.Timestamp, p.VideoURL)
	return nil
}

func (h *Hub) onChatMessage(ctx context.Context, c *conn, data json.RawMessage) error {
	var p eventdto.ChatMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := requireCouple(c, p.CoupleID); err != nil {
		return err
	}
	h.relays.Chat(ctx, c.coupleID, c.userID, c.name, p.Message, p.Type)
	return nil
}

func (h *Hub) onTyping(c *conn, data json.RawMessage) error {
	var p eventdto.TypingPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := requireCouple(c, p.CoupleID); err != nil {
		return err
	}
	h.relays.Typing(c.coupleID, c.userID, c.id, p.IsTyping)
	return nil
}

func (h *Hub) onGiftSent(c *conn, data json.RawMessage) error {
	var p eventdto.GiftSentPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := requireCouple(c, p.CoupleID); err != nil {
		return err
	}
	h.relays.GiftSent(c.coupleID, c.name, c.id, p.GiftData)
	return nil
}

func (h *Hub) onJournalAdded(c *conn, data json.RawMessage) error {
	var p eventdto.JournalAddedPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := requireCouple(c, p.CoupleID); err != nil {
		return err
	}
	h.relays.JournalAdded(c.coupleID, c.name, c.id, p.JournalData)
	return nil
}

// reportError sends an error frame to the originating connection only, with
// the stable message the client contract names for each failure class.
func (h *Hub) reportError(c *conn, event string, err error) {
	obslog.L().Info("ws_event_error",
		zap.String("conn_id", c.id),
		zap.String("user_id", c.userID),
		zap.String("event", event),
		zap.Error(err),
	)
	if serr := c.Send(eventdto.EvtError, eventdto.ErrorEvent{Message: clientMessage(err)}); serr != nil {
		obslog.L().Warn("ws_error_send_failed", zap.String("conn_id", c.id), zap.Error(serr))
	}
}

type hubErr string

func (e hubErr) Error() string { return string(e) }

const errJoinRequired = hubErr("join required")

func clientMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNotPaired):
		return "You must be paired to start a game"
	case errors.Is(err, session.ErrNotFound):
		return "Game session not found"
	case errors.Is(err, session.ErrForbidden):
		return "You are not part of this game session"
	case errors.Is(err, session.ErrTurnViolation):
		return "Not your turn"
	case errors.Is(err, session.ErrInvalidState):
		return "Game session is not in a valid state for this action"
	default:
		return err.Error()
	}
}

// requireCouple checks the connection has a couple and that any client-sent
// coupleId matches the one resolved at join. The resolved couple is
// authoritative; a mismatch is treated as an access violation.
func requireCouple(c *conn, claimed string) error {
	if c.coupleID == "" {
		return session.ErrNotPaired
	}
	if claimed != "" && claimed != c.coupleID {
		return session.ErrForbidden
	}
	return nil
}

func decode(data json.RawMessage, p interface{ Validate() error }) error {
	if len(data) == 0 {
		return hubErr("missing payload")
	}
	if err := json.Unmarshal(data, p); err != nil {
		return hubErr("malformed payload")
	}
	return p.Validate()
}
