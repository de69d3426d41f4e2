package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	cacheport "github.com/apaluca/CipherTalk/internal/infrastructure/cache/port"
)

const (
	presenceOnline  = "online"
	presenceOffline = "offline"

	// onlineTTL bounds how stale an online flag can get if a node dies
	// without unregistering its connections; refreshed on a ticker while
	// the user stays connected.
	onlineTTL = 90 * time.Second

	onlineKeyPrefix   = "presence:online:"
	lastSeenKeyPrefix = "presence:last_seen:"
)

// Presence announces connect/disconnect transitions to every live connection
// and mirrors them into the cache so the HTTP surface can show who is online
// without touching the registry.
type Presence struct {
	cache  cacheport.Cache
	router Router
	log    zerolog.Logger
}

func NewPresence(cache cacheport.Cache, router Router, log zerolog.Logger) *Presence {
	return &Presence{
		cache:  cache,
		router: router,
		log:    log.With().Str("component", "presence").Logger(),
	}
}

// Online marks userID online and broadcasts the transition.
func (p *Presence) Online(ctx context.Context, userID string) {
	if p.cache != nil {
		if err := p.cache.Set(ctx, onlineKeyPrefix+userID, "1", onlineTTL); err != nil {
			p.log.Debug().Err(err).Str("user_id", userID).Msg("online flag not cached")
		}
	}
	p.broadcast(userID, presenceOnline)
}

// Refresh extends the cached online flag while the connection stays alive.
func (p *Presence) Refresh(ctx context.Context, userID string) {
	if p.cache == nil {
		return
	}
	_ = p.cache.Set(ctx, onlineKeyPrefix+userID, "1", onlineTTL)
}

// Offline records last-seen, clears the online flag, and broadcasts the
// transition. Call only when the user's final connection goes away.
func (p *Presence) Offline(ctx context.Context, userID string) {
	if p.cache != nil {
		if _, err := p.cache.Del(ctx, onlineKeyPrefix+userID); err != nil {
			p.log.Debug().Err(err).Str("user_id", userID).Msg("online flag not cleared")
		}
		_ = p.cache.Set(ctx, lastSeenKeyPrefix+userID, time.Now().UTC().Format(time.RFC3339), 0)
	}
	p.broadcast(userID, presenceOffline)
}

// IsOnline consults the cached flag.
func (p *Presence) IsOnline(ctx context.Context, userID string) bool {
	if p.cache == nil {
		return false
	}
	_, err := p.cache.Get(ctx, onlineKeyPrefix+userID)
	return err == nil
}

func (p *Presence) broadcast(userID, status string) {
	payload, err := json.Marshal(PresenceEvent{Type: eventPresence, UserID: userID, Status: status})
	if err != nil {
		return
	}
	p.router.BroadcastAll(payload)
}
