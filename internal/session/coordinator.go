package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pairplay/sync-server/internal/gamecat"
	"github.com/pairplay/sync-server/internal/identity"
	"github.com/pairplay/sync-server/internal/obslog"
	"github.com/pairplay/sync-server/internal/rooms"
	"github.com/pairplay/sync-server/pkg/eventdto"
)

// Directory resolves pairing for a user (implemented by identity.Client).
type Directory interface {
	GetProfile(ctx context.Context, userID string) (*identity.Profile, error)
}

// CoupleFeed receives the completion side effects: the games-played counter
// and the activity feed (implemented by identity.Client).
type CoupleFeed interface {
	IncrementGamesPlayed(ctx context.Context, coupleID string) error
	AppendActivity(ctx context.Context, coupleID string, act identity.Activity) error
}

// Recorder archives sessions to durable storage (implemented by Repository).
type Recorder interface {
	CreateRecord(ctx context.Context, s *Session) error
	AppendMove(ctx context.Context, sessionID string, mv Move) error
	FinalizeRecord(ctx context.Context, s *Session) error
}

// Coordinator is the state machine for two-player turn-based game sessions:
// creation, joining, turn enforcement, move application, completion. All
// mutations of a session run inside a WATCH transaction on its Redis key, so
// per-session move application is mutually exclusive: a concurrent mutation
// fails the transaction and the retry re-validates against the fresh state.
type Coordinator struct {
	rdb    *redis.Client
	store  *Store
	router *rooms.Router
	dir    Directory
	feed   CoupleFeed
	cat    *gamecat.Catalog
	rec    Recorder
}

func NewCoordinator(rdb *redis.Client, router *rooms.Router, dir Directory, feed CoupleFeed, cat *gamecat.Catalog, ttl time.Duration) *Coordinator {
	return &Coordinator{
		rdb:    rdb,
		store:  NewStore(rdb, ttl),
		router: router,
		dir:    dir,
		feed:   feed,
		cat:    cat,
	}
}

// AttachRecorder wires the durable archive. The coordinator runs without one
// (archive writes are best-effort; the Redis store is authoritative).
func (c *Coordinator) AttachRecorder(r Recorder) {
	if c != nil {
		c.rec = r
	}
}

// Create opens a session in waiting state with the inviter as sole player
// and sends a game_invitation to the partner's user channel. The invitation
// goes to the user channel, not the couple channel: it must reach the
// partner before they have any game channel membership.
func (c *Coordinator) Create(ctx context.Context, inviterID, inviterName, gameType string) (*Session, error) {
	if strings.TrimSpace(inviterID) == "" || strings.TrimSpace(gameType) == "" {
		return nil, ErrInvalidArgs
	}
	profile, err := c.dir.GetProfile(ctx, inviterID)
	if err != nil {
		return nil, fmt.Errorf("identity lookup: %w", err)
	}
	if !profile.Paired() {
		return nil, ErrNotPaired
	}

	now := time.Now()
	s := &Session{
		ID:        "gs-" + uuid.NewString(),
		CoupleID:  profile.CoupleID,
		GameType:  strings.TrimSpace(gameType),
		Status:    StatusWaiting,
		Players:   []string{inviterID},
		Moves:     []Move{},
		Scores:    map[string]int{inviterID: 0},
		CreatedAt: now,
	}
	if err := c.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if c.rec != nil {
		if err := c.rec.CreateRecord(ctx, s); err != nil {
			obslog.L().Error("game_archive_create_error", zap.String("session_id", s.ID), zap.Error(err))
		}
	}

	obslog.L().Info("game_create",
		zap.String("session_id", s.ID),
		zap.String("couple_id", s.CoupleID),
		zap.String("game_type", s.GameType),
		zap.String("inviter_id", inviterID),
	)

	if strings.TrimSpace(inviterName) == "" {
		inviterName = profile.DisplayName
	}
	c.router.Broadcast(rooms.UserChannel(profile.PartnerID), eventdto.EvtGameInvitation, eventdto.GameInvitation{
		GameSessionID: s.ID,
		GameType:      s.GameType,
		InviterName:   inviterName,
		InviterID:     inviterID,
	}, "")
	return s, nil
}

// Join adds the user to a session. Joining a session you are already in is
// a no-op (the reconnect path), but still re-joins the game channel and
// re-broadcasts the current state. The second distinct player activates the
// session with the inviter as first mover.
func (c *Coordinator) Join(ctx context.Context, sessionID, userID, coupleID string, conn rooms.Sender) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidArgs
	}
	rejoined := false
	s, err := c.mutate(ctx, sessionID, func(s *Session) error {
		if s.CoupleID != coupleID {
			return ErrForbidden
		}
		if s.Status.Terminal() {
			return ErrInvalidState
		}
		if s.HasPlayer(userID) {
			rejoined = true
			return nil
		}
		if len(s.Players) >= 2 {
			return ErrForbidden
		}
		if s.Status != StatusWaiting {
			return ErrInvalidState
		}
		s.Players = append(s.Players, userID)
		if s.Scores == nil {
			s.Scores = map[string]int{}
		}
		s.Scores[userID] = 0
		if len(s.Players) == 2 {
			s.Status = StatusActive
			s.StartedAt = time.Now()
			s.CurrentPlayer = s.Players[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.router.Join(rooms.GameChannel(s.ID), conn)
	obslog.L().Info("game_join",
		zap.String("session_id", s.ID),
		zap.String("user_id", userID),
		zap.String("status", string(s.Status)),
		zap.Bool("rejoined", rejoined),
	)

	joined := eventdto.GameJoined{
		GameSessionID: s.ID,
		PlayerID:      userID,
		Status:        string(s.Status),
		Players:       s.Players,
	}
	started := eventdto.GameStarted{
		GameSessionID: s.ID,
		Players:       s.Players,
		CurrentPlayer: s.CurrentPlayer,
	}
	if rejoined {
		// Reconnect path: the peers already saw the join and start events;
		// only the rejoining connection needs the current state.
		c.sendTo(conn, eventdto.EvtGameJoined, joined)
		if s.Status == StatusActive {
			c.sendTo(conn, eventdto.EvtGameStarted, started)
		}
		return s, nil
	}

	c.router.Broadcast(rooms.GameChannel(s.ID), eventdto.EvtGameJoined, joined, "")
	if s.Status == StatusActive {
		c.router.Broadcast(rooms.GameChannel(s.ID), eventdto.EvtGameStarted, started, "")
	}
	return s, nil
}

// ApplyMove appends a move for the current player and rotates the turn.
// Out-of-turn moves are rejected without recording anything; the error is
// seen only by the acting connection.
func (c *Coordinator) ApplyMove(ctx context.Context, sessionID, userID string, payload json.RawMessage) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(userID) == "" || len(payload) == 0 {
		return nil, ErrInvalidArgs
	}
	var mv Move
	s, err := c.mutate(ctx, sessionID, func(s *Session) error {
		if s.Status != StatusActive {
			return ErrInvalidState
		}
		if !s.HasPlayer(userID) {
			return ErrForbidden
		}
		if s.CurrentPlayer != userID {
			return ErrTurnViolation
		}
		mv = Move{PlayerID: userID, Move: payload, Timestamp: time.Now()}
		s.Moves = append(s.Moves, mv)
		s.CurrentPlayer = s.nextAfter(userID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.rec != nil {
		if err := c.rec.AppendMove(ctx, s.ID, mv); err != nil {
			obslog.L().Error("game_archive_move_error", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	obslog.L().Info("game_move",
		zap.String("session_id", s.ID),
		zap.String("player_id", userID),
		zap.String("next_player", s.CurrentPlayer),
		zap.Int("move_count", len(s.Moves)),
	)

	c.router.Broadcast(rooms.GameChannel(s.ID), eventdto.EvtGameMove, eventdto.GameMoveEvent{
		GameSessionID: s.ID,
		Move:          payload,
		PlayerID:      userID,
		NextPlayer:    s.CurrentPlayer,
	}, "")
	return s, nil
}

// End completes a session, records the winner and final scores, pushes the
// couple-level side effects (games-played counter, activity record), and
// retires the game channel.
func (c *Coordinator) End(ctx context.Context, sessionID, actorID, winnerID string, finalScores map[string]int) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(actorID) == "" {
		return nil, ErrInvalidArgs
	}
	s, err := c.mutate(ctx, sessionID, func(s *Session) error {
		if !s.HasPlayer(actorID) {
			return ErrForbidden
		}
		if s.Status.Terminal() {
			return ErrInvalidState
		}
		if winnerID != "" && !s.HasPlayer(winnerID) {
			return ErrInvalidArgs
		}
		s.Status = StatusCompleted
		s.CompletedAt = time.Now()
		if !s.StartedAt.IsZero() {
			s.DurationSec = int64(s.CompletedAt.Sub(s.StartedAt) / time.Second)
		}
		s.Winner = winnerID
		for id, score := range finalScores {
			if s.HasPlayer(id) {
				s.Scores[id] = score
			}
		}
		s.CurrentPlayer = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.finalize(ctx, s)
	info := c.cat.Lookup(s.GameType)
	desc := fmt.Sprintf("Finished a game of %s", info.Name)
	if s.Winner != "" {
		desc = fmt.Sprintf("%s won %s!", c.displayName(ctx, s.Winner), info.Name)
	}
	if err := c.feed.IncrementGamesPlayed(ctx, s.CoupleID); err != nil {
		obslog.L().Warn("games_played_increment_error", zap.String("couple_id", s.CoupleID), zap.Error(err))
	}
	if err := c.feed.AppendActivity(ctx, s.CoupleID, identity.Activity{
		Type:        "game",
		Description: desc,
		UserID:      actorID,
		Icon:        info.Icon,
		Metadata: map[string]any{
			"gameSessionId": s.ID,
			"gameType":      s.GameType,
			"winner":        s.Winner,
			"duration":      s.DurationSec,
		},
	}); err != nil {
		obslog.L().Warn("activity_append_error", zap.String("couple_id", s.CoupleID), zap.Error(err))
	}

	obslog.L().Info("game_end",
		zap.String("session_id", s.ID),
		zap.String("winner", s.Winner),
		zap.Int64("duration_sec", s.DurationSec),
	)

	c.router.Broadcast(rooms.GameChannel(s.ID), eventdto.EvtGameEnded, eventdto.GameEnded{
		GameSessionID: s.ID,
		Winner:        s.Winner,
		FinalScores:   s.Scores,
	}, "")
	c.router.CloseChannel(rooms.GameChannel(s.ID))
	return s, nil
}

// Cancel abandons a waiting or active session. The session TTL reaps
// sessions nobody bothers to cancel.
func (c *Coordinator) Cancel(ctx context.Context, sessionID, actorID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(actorID) == "" {
		return nil, ErrInvalidArgs
	}
	s, err := c.mutate(ctx, sessionID, func(s *Session) error {
		if !s.HasPlayer(actorID) {
			return ErrForbidden
		}
		if s.Status.Terminal() {
			return ErrInvalidState
		}
		s.Status = StatusCancelled
		s.CompletedAt = time.Now()
		s.CurrentPlayer = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.finalize(ctx, s)
	obslog.L().Info("game_cancel", zap.String("session_id", s.ID), zap.String("actor_id", actorID))

	c.router.Broadcast(rooms.GameChannel(s.ID), eventdto.EvtGameCancelled, eventdto.GameCancelled{
		GameSessionID: s.ID,
		CancelledBy:   actorID,
	}, "")
	c.router.CloseChannel(rooms.GameChannel(s.ID))
	return s, nil
}

// Load exposes the stored session for status checks and tests.
func (c *Coordinator) Load(ctx context.Context, sessionID string) (*Session, error) {
	return c.store.Load(ctx, sessionID)
}

const txAttempts = 3

// mutate runs fn against the current session state inside a WATCH
// transaction on the session key. A concurrent write fails the transaction
// and the retry re-reads, so turn validation always sees the latest state.
func (c *Coordinator) mutate(ctx context.Context, sessionID string, fn func(s *Session) error) (*Session, error) {
	key := c.store.keyGame(sessionID)
	var out *Session
	for attempt := 0; attempt < txAttempts; attempt++ {
		err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			var s Session
			if jerr := json.Unmarshal(raw, &s); jerr != nil {
				return jerr
			}
			if err := fn(&s); err != nil {
				return err
			}
			newRaw, err := json.Marshal(&s)
			if err != nil {
				return err
			}
			pipe := tx.TxPipeline()
			pipe.Set(ctx, key, newRaw, c.store.ttl)
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			out = &s
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("concurrent update on session %s", sessionID)
}

// displayName resolves a user's display name for feed text, falling back to
// the raw id when the lookup fails.
func (c *Coordinator) displayName(ctx context.Context, userID string) string {
	p, err := c.dir.GetProfile(ctx, userID)
	if err != nil || p == nil || p.DisplayName == "" {
		return userID
	}
	return p.DisplayName
}

func (c *Coordinator) sendTo(conn rooms.Sender, event string, payload any) {
	if err := conn.Send(event, payload); err != nil {
		obslog.L().Warn("session_send_error",
			zap.String("event", event),
			zap.String("conn_id", conn.ID()),
			zap.Error(err),
		)
	}
}

// finalize archives a terminal session, best-effort.
func (c *Coordinator) finalize(ctx context.Context, s *Session) {
	if c.rec == nil || !s.Status.Terminal() {
		return
	}
	if err := c.rec.FinalizeRecord(ctx, s); err != nil {
		obslog.L().Error("game_archive_finalize_error", zap.String("session_id", s.ID), zap.Error(err))
	}
}
