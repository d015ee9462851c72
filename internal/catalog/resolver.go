// Package catalog resolves provider defaults (avatar and voice ids) through
// optional remote discovery. Discovery failures never fail a run: the
// configured fallback is substituted and a warning logged.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Defaults are the catalog values a submission falls back to when the caller
// does not pick them explicitly.
type Defaults struct {
	AvatarID string
	VoiceID  string
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Fallback   Defaults
	CacheTTL   time.Duration
	Logger     zerolog.Logger
}

// Resolver performs cached avatar/voice discovery against the HeyGen catalog.
type Resolver struct {
	httpClient *http.Client
	baseURL    string
	fallback   Defaults
	cache      *cache.Cache
	logger     zerolog.Logger
}

func NewResolver(opts Options) *Resolver {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.heygen.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Resolver{
		httpClient: client,
		baseURL:    base,
		fallback:   opts.Fallback,
		cache:      cache.New(ttl, 2*ttl),
		logger:     opts.Logger,
	}
}

// Resolve returns the default avatar and voice for the given API key. The two
// lookups are independent and issued concurrently, then joined before the
// caller builds its submission.
func (r *Resolver) Resolve(ctx context.Context, apiKey string) Defaults {
	out := r.fallback
	if r == nil || strings.TrimSpace(apiKey) == "" {
		return out
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if id, err := r.firstID(ctx, apiKey, "/v2/avatars", "avatars", "avatar_id"); err != nil {
			r.logger.Warn().Err(err).Msg("catalog: avatar discovery failed, using default")
		} else if id != "" {
			out.AvatarID = id
		}
		return nil
	})
	g.Go(func() error {
		if id, err := r.firstID(ctx, apiKey, "/v2/voices", "voices", "voice_id"); err != nil {
			r.logger.Warn().Err(err).Msg("catalog: voice discovery failed, using default")
		} else if id != "" {
			out.VoiceID = id
		}
		return nil
	})
	_ = g.Wait()
	return out
}

// firstID fetches the named list and returns the first entry's id field,
// caching per endpoint and key.
func (r *Resolver) firstID(ctx context.Context, apiKey, path, listField, idField string) (string, error) {
	cacheKey := path + ":" + keyDigest(apiKey)
	if v, ok := r.cache.Get(cacheKey); ok {
		return v.(string), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Api-Key", apiKey)
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("catalog: %s http %d", path, resp.StatusCode)
	}
	var out struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	raw, ok := out.Data[listField]
	if !ok {
		return "", fmt.Errorf("catalog: %s missing %q list", path, listField)
	}
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("catalog: %s returned no entries", path)
	}
	id, _ := entries[0][idField].(string)
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("catalog: %s first entry missing %q", path, idField)
	}
	r.cache.Set(cacheKey, id, cache.DefaultExpiration)
	return id, nil
}

// keyDigest keeps raw API keys out of cache keys.
func keyDigest(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}
