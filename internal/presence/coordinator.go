package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pairplay/sync-server/internal/identity"
	"github.com/pairplay/sync-server/internal/obslog"
	"github.com/pairplay/sync-server/internal/registry"
	"github.com/pairplay/sync-server/internal/rooms"
	"github.com/pairplay/sync-server/pkg/eventdto"
)

// Directory is the slice of the identity collaborator the presence layer
// needs (implemented by identity.Client).
type Directory interface {
	GetProfile(ctx context.Context, userID string) (*identity.Profile, error)
	SetOnline(ctx context.Context, userID string, online bool) error
	SetLastSeen(ctx context.Context, userID string, t time.Time) error
}

// Coordinator translates connect/disconnect transitions into channel
// membership, durable presence updates, and partner_status notifications.
// Durable writes are best-effort: a failed collaborator call is logged and
// never blocks the connection-handling path.
type Coordinator struct {
	reg    *registry.Registry
	router *rooms.Router
	dir    Directory
}

func NewCoordinator(reg *registry.Registry, router *rooms.Router, dir Directory) *Coordinator {
	return &Coordinator{reg: reg, router: router, dir: dir}
}

// HandleConnect registers the connection, joins its channels, and tells the
// partner the user came online. It returns the resolved profile (nil when
// the identity lookup failed or the user is unknown); the caller keeps it
// for couple-scoped authorization.
func (c *Coordinator) HandleConnect(ctx context.Context, userID string, conn rooms.Sender) *identity.Profile {
	// A live connection may re-identify as another user. The old identity
	// must go through the full disconnect path first, or its registry entry
	// and channel memberships would leak onto the new identity.
	if prevUser, ok := c.reg.UserFor(conn.ID()); ok && prevUser != userID {
		obslog.L().Info("connection_reidentified",
			zap.String("conn_id", conn.ID()),
			zap.String("old_user_id", prevUser),
			zap.String("user_id", userID),
		)
		c.HandleDisconnect(ctx, conn.ID())
	}
	if prev := c.reg.Register(userID, conn.ID()); prev != "" {
		// Last connect wins; the superseded connection loses its
		// memberships now so its late disconnect has nothing to undo.
		c.router.LeaveAll(prev)
		obslog.L().Info("connection_superseded",
			zap.String("user_id", userID),
			zap.String("old_conn_id", prev),
			zap.String("conn_id", conn.ID()),
		)
	}
	c.router.Join(rooms.UserChannel(userID), conn)

	if err := c.dir.SetOnline(ctx, userID, true); err != nil {
		obslog.L().Warn("presence_set_online_error", zap.String("user_id", userID), zap.Error(err))
	}

	profile, err := c.dir.GetProfile(ctx, userID)
	if err != nil {
		obslog.L().Warn("presence_profile_lookup_error", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if profile == nil {
		obslog.L().Warn("presence_unknown_user", zap.String("user_id", userID))
		return nil
	}

	if profile.CoupleID != "" {
		c.router.Join(rooms.CoupleChannel(profile.CoupleID), conn)
		// If the partner connected before the pairing existed, pull their
		// live connection into the couple channel now.
		if partnerConn, ok := c.reg.Lookup(profile.PartnerID); ok {
			if ps, ok := c.router.MemberSender(rooms.UserChannel(profile.PartnerID), partnerConn); ok {
				c.router.Join(rooms.CoupleChannel(profile.CoupleID), ps)
			}
		}
		c.router.Broadcast(rooms.CoupleChannel(profile.CoupleID), eventdto.EvtPartnerStatus, eventdto.PartnerStatus{
			UserID: userID,
			Status: "online",
			User:   &eventdto.UserInfo{ID: userID, Name: profile.DisplayName},
		}, conn.ID())
	}

	obslog.L().Info("user_connected",
		zap.String("user_id", userID),
		zap.String("conn_id", conn.ID()),
		zap.String("couple_id", profile.CoupleID),
		zap.Int("online", c.reg.Online()),
	)
	return profile
}

// HandleDisconnect tears down a closed connection. The stale-unregister
// guard matters here: if the user already reconnected, this connection id no
// longer owns the mapping and the disconnect must not mark them offline.
func (c *Coordinator) HandleDisconnect(ctx context.Context, connID string) {
	userID, ok := c.reg.Unregister(connID)
	if !ok {
		// Superseded connection; membership was already cleared on
		// the reconnect.
		c.router.LeaveAll(connID)
		return
	}
	defer c.router.LeaveAll(connID)

	if err := c.dir.SetOnline(ctx, userID, false); err != nil {
		obslog.L().Warn("presence_set_offline_error", zap.String("user_id", userID), zap.Error(err))
	}
	if err := c.dir.SetLastSeen(ctx, userID, time.Now()); err != nil {
		obslog.L().Warn("presence_last_seen_error", zap.String("user_id", userID), zap.Error(err))
	}

	profile, err := c.dir.GetProfile(ctx, userID)
	if err != nil {
		obslog.L().Warn("presence_profile_lookup_error", zap.String("user_id", userID), zap.Error(err))
	}
	if profile != nil && profile.CoupleID != "" {
		c.router.Broadcast(rooms.CoupleChannel(profile.CoupleID), eventdto.EvtPartnerStatus, eventdto.PartnerStatus{
			UserID: userID,
			Status: "offline",
		}, connID)
	}

	obslog.L().Info("user_disconnected",
		zap.String("user_id", userID),
		zap.String("conn_id", connID),
		zap.Int("online", c.reg.Online()),
	)
}
