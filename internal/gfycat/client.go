package gfycat

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chinmina/catvid-bridge/internal/cache"
	"github.com/rs/zerolog/log"
)

// Builder collects the settings for a Client. Exactly one grant must be
// selected before Build; selecting another replaces the previous choice.
type Builder struct {
	creds   Credentials
	albumID string
	grant   Grant
}

// NewBuilder starts a Client for the given application credentials and album.
func NewBuilder(clientID, clientSecret, albumID string) *Builder {
	return &Builder{
		creds: Credentials{
			ClientID:     clientID,
			ClientSecret: clientSecret,
		},
		albumID: albumID,
	}
}

// PasswordGrant authenticates as the given user.
func (b *Builder) PasswordGrant(username, password string) *Builder {
	b.grant = PasswordGrant{Username: username, Password: password}
	return b
}

// ClientCredentialsGrant authenticates as the application.
func (b *Builder) ClientCredentialsGrant() *Builder {
	b.grant = ClientCredentialsGrant{}
	return b
}

// Grant returns the currently selected grant, or nil if none was selected.
func (b *Builder) Grant() Grant {
	return b.grant
}

type clientConfig struct {
	apiURL     string
	publicHost string
	httpClient *http.Client
	now        Clock
	random     *rand.Rand
	snapshots  cache.Cache[Snapshot]
}

// ClientOption customises a Client as it is built.
type ClientOption func(*clientConfig)

// WithAPIURL sets the base URL of the token and album endpoints.
func WithAPIURL(apiURL string) ClientOption {
	return func(c *clientConfig) {
		c.apiURL = strings.TrimSuffix(apiURL, "/")
	}
}

// WithPublicHost sets the host used to build item URLs.
func WithPublicHost(host string) ClientOption {
	return func(c *clientConfig) {
		c.publicHost = host
	}
}

// WithHTTPClient sets the client used for all API calls. Timeouts are the
// responsibility of this client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithClock replaces time.Now for every validity and freshness check.
func WithClock(now Clock) ClientOption {
	return func(c *clientConfig) {
		c.now = now
	}
}

// WithRandom sets the source used to pick items.
func WithRandom(r *rand.Rand) ClientOption {
	return func(c *clientConfig) {
		c.random = r
	}
}

// WithSnapshotCache sets where the album snapshot is held between calls.
func WithSnapshotCache(snapshots cache.Cache[Snapshot]) ClientOption {
	return func(c *clientConfig) {
		c.snapshots = snapshots
	}
}

// Build finalises the Client. It fails with ErrGrantMissing if no grant was
// selected.
func (b *Builder) Build(opts ...ClientOption) (*Client, error) {
	if b.grant == nil {
		return nil, ErrGrantMissing
	}

	cfg := clientConfig{
		apiURL:     DefaultAPIURL,
		publicHost: DefaultPublicHost,
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.snapshots == nil {
		memory, err := cache.NewMemory[Snapshot](SnapshotTTL, 1)
		if err != nil {
			return nil, err
		}
		cfg.snapshots = cache.NewInstrumented[Snapshot](memory, "memory")
	}

	return &Client{
		tokens:     NewTokenManager(b.creds, b.grant, cfg.apiURL, cfg.httpClient, cfg.now),
		albumURL:   cfg.apiURL + albumPath + b.albumID,
		albumID:    b.albumID,
		publicHost: cfg.publicHost,
		httpClient: cfg.httpClient,
		now:        cfg.now,
		random:     cfg.random,
		snapshots:  cfg.snapshots,
	}, nil
}

// Client serves random items from a single album. It owns the album snapshot
// and the token used to fetch it; calls are serialised so that a stale cache
// triggers one refresh, not one per concurrent caller.
type Client struct {
	mu sync.Mutex

	tokens     *TokenManager
	albumURL   string
	albumID    string
	publicHost string
	httpClient *http.Client
	now        Clock
	random     *rand.Rand
	snapshots  cache.Cache[Snapshot]
}

// RandomItemURL returns the public URL of an item picked at random from the
// album. A snapshot younger than SnapshotTTL is used without any network
// activity; otherwise the album is fetched again first. A failed fetch leaves
// the previous snapshot in place.
func (c *Client) RandomItemURL(ctx context.Context) (string, error) {
	item, err := c.RandomItem(ctx)
	if err != nil {
		return "", err
	}

	return item.URL(c.publicHost), nil
}

// RandomItem is RandomItemURL, returning the whole item.
func (c *Client) RandomItem(ctx context.Context) (Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot, err := c.snapshot(ctx)
	if err != nil {
		return Item{}, err
	}

	return snapshot.Items.Pick(c.random)
}

// Close releases the snapshot cache.
func (c *Client) Close() error {
	return c.snapshots.Close()
}

func (c *Client) snapshot(ctx context.Context) (Snapshot, error) {
	logger := log.Ctx(ctx).With().Str("album", c.albumID).Logger()

	cached, found, err := c.snapshots.Get(ctx, c.albumID)
	if err != nil {
		// an unreadable cache is treated as a miss
		logger.Warn().Err(err).Msg("album snapshot lookup failed")
	}

	if found && cached.Fresh(c.now()) {
		logger.Debug().
			Time("fetched_at", cached.FetchedAt).
			Int("items", len(cached.Items)).
			Msg("hit: serving cached album")
		return cached, nil
	}

	if found {
		logger.Info().Time("fetched_at", cached.FetchedAt).Msg("expired: album snapshot is stale")
	} else {
		logger.Info().Msg("miss: no album snapshot")
	}

	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	items, err := c.fetchAlbum(ctx, token)
	recordAlbumFetch(ctx, outcome(err))
	if err != nil {
		return Snapshot{}, err
	}

	fresh := Snapshot{
		Items:     items,
		FetchedAt: c.now(),
	}

	if err := c.snapshots.Set(ctx, c.albumID, fresh); err != nil {
		// the fetch still succeeded: serve it, and fetch again next time
		logger.Warn().Err(err).Msg("album snapshot could not be stored")
	}

	logger.Info().Int("items", len(items)).Msg("album fetched")

	return fresh, nil
}

func (c *Client) fetchAlbum(ctx context.Context, token Token) (Collection, error) {
	const op = "album request"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.albumURL, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	token.OAuth2().SetAuthHeader(req)

	var response albumResponse
	if err := do(c.httpClient, req, op, &response); err != nil {
		return nil, err
	}

	return response.PublishedGfys, nil
}
