// Package identity resolves player ids to display profiles. Resolution is
// best-effort: any failure degrades to a bare numeric identifier so the rest
// of the system never blocks on the identity provider.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainduel/backend/internal/config"
)

// Profile is what the UI shows for a player.
type Profile struct {
	PlayerID    int64  `json:"player_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type Resolver struct {
	baseURL  string
	client   *http.Client
	rdb      *redis.Client
	cacheTTL time.Duration
}

func NewResolver(cfg *config.Config, rdb *redis.Client) *Resolver {
	return &Resolver{
		baseURL:  cfg.IdentityAPIURL,
		client:   &http.Client{Timeout: 5 * time.Second},
		rdb:      rdb,
		cacheTTL: time.Duration(cfg.IdentityCacheTTLMin) * time.Minute,
	}
}

func fallback(playerID int64) *Profile {
	return &Profile{PlayerID: playerID, DisplayName: fmt.Sprintf("Player %d", playerID)}
}

// Resolve returns the player's profile, from cache when possible. It never
// returns an error; callers always get at least the numeric fallback.
func (r *Resolver) Resolve(ctx context.Context, playerID int64) *Profile {
	if r.baseURL == "" {
		return fallback(playerID)
	}

	cacheKey := fmt.Sprintf("identity:%d", playerID)
	if r.rdb != nil {
		if cached, err := r.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var p Profile
			if json.Unmarshal([]byte(cached), &p) == nil {
				return &p
			}
		}
	}

	p, err := r.fetch(ctx, playerID)
	if err != nil {
		log.Printf("[IDENTITY] Lookup failed for player %d: %v", playerID, err)
		return fallback(playerID)
	}

	if r.rdb != nil {
		if b, err := json.Marshal(p); err == nil {
			if err := r.rdb.Set(ctx, cacheKey, b, r.cacheTTL).Err(); err != nil {
				log.Printf("[IDENTITY] Cache write failed for player %d: %v", playerID, err)
			}
		}
	}
	return p
}

func (r *Resolver) fetch(ctx context.Context, playerID int64) (*Profile, error) {
	url := fmt.Sprintf("%s/user/%d", r.baseURL, playerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity API returned %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string `json:"display_name"`
		AvatarURL   string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.DisplayName == "" {
		return fallback(playerID), nil
	}
	return &Profile{PlayerID: playerID, DisplayName: body.DisplayName, AvatarURL: body.AvatarURL}, nil
}
