package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCooldown is the window within which an identical spend-triggering
// request from the same identity is rejected.
const DefaultCooldown = 15 * time.Second

// Guard is the advisory request-level double-submit filter. It is not the
// correctness mechanism (the ledger's conditional spend is); losing its state
// on restart violates nothing. Fingerprints go to redis when a client is
// configured so multiple instances share the window, with an in-process map
// as fallback.
type Guard struct {
	cooldown time.Duration
	client   *redis.Client

	mu   sync.Mutex
	seen map[string]entry
}

type entry struct {
	fingerprint string
	at          time.Time
}

// New creates a guard. client may be nil; the guard then runs purely
// in-process.
func New(client *redis.Client, cooldown time.Duration) *Guard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Guard{
		cooldown: cooldown,
		client:   client,
		seen:     make(map[string]entry),
	}
}

// Fingerprint hashes an identity plus its action parameters into the value
// compared across requests.
func Fingerprint(identity string, params ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(identity))))
	for _, p := range params {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ShouldReject reports whether an identical request from this identity was
// seen within the cooldown. When it returns false the new fingerprint is
// recorded.
func (g *Guard) ShouldReject(ctx context.Context, identity, fingerprint string, now time.Time) bool {
	if g.client != nil {
		key := "dedup:" + strings.ToLower(strings.TrimSpace(identity)) + ":" + fingerprint
		ok, err := g.client.SetNX(ctx, key, 1, g.cooldown).Result()
		if err == nil {
			return !ok
		}
		log.Printf("dedup: redis unavailable, falling back to in-process window: %v", err)
	}
	return g.shouldRejectLocal(identity, fingerprint, now)
}

func (g *Guard) shouldRejectLocal(identity, fingerprint string, now time.Time) bool {
	key := strings.ToLower(strings.TrimSpace(identity))

	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.seen[key]; ok {
		if prev.fingerprint == fingerprint && now.Sub(prev.at) < g.cooldown {
			return true
		}
	}
	g.seen[key] = entry{fingerprint: fingerprint, at: now}

	// Opportunistic cleanup keeps the map bounded without a sweeper goroutine.
	if len(g.seen) > 1024 {
		for k, e := range g.seen {
			if now.Sub(e.at) >= g.cooldown {
				delete(g.seen, k)
			}
		}
	}
	return false
}
