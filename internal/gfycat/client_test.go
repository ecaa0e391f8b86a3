package gfycat_test

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chinmina/catvid-bridge/internal/cache"
	"github.com/chinmina/catvid-bridge/internal/gfycat"
	"github.com/chinmina/catvid-bridge/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mockItemURLs = []string{
	"https://gfycat.com/AmazingCat",
	"https://gfycat.com/SleepyKitten",
	"https://gfycat.com/GrumpyTabby",
}

func newClient(t *testing.T, opts ...gfycat.ClientOption) (*gfycat.Client, *testhelpers.MockGfycatServer, *testhelpers.Clock) {
	t.Helper()

	mock := testhelpers.SetupMockGfycatServer(t)
	clock := testhelpers.NewClock(start)

	opts = append([]gfycat.ClientOption{
		gfycat.WithAPIURL(mock.URL()),
		gfycat.WithHTTPClient(mock.Server.Client()),
		gfycat.WithClock(clock.Now),
		gfycat.WithRandom(rand.New(rand.NewPCG(7, 11))),
	}, opts...)

	client, err := gfycat.NewBuilder("client-id", "client-secret", "album-id").
		PasswordGrant("user", "pass").
		Build(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, mock, clock
}

func TestBuilder_FailsWithoutGrant(t *testing.T) {
	client, err := gfycat.NewBuilder("client-id", "client-secret", "album-id").Build()

	assert.ErrorIs(t, err, gfycat.ErrGrantMissing)
	assert.Nil(t, client)
}

func TestBuilder_LastGrantWins(t *testing.T) {
	b := gfycat.NewBuilder("client-id", "client-secret", "album-id").
		ClientCredentialsGrant().
		PasswordGrant("user", "pass")
	assert.Equal(t, gfycat.PasswordGrant{Username: "user", Password: "pass"}, b.Grant())

	b = gfycat.NewBuilder("client-id", "client-secret", "album-id").
		PasswordGrant("user", "pass").
		ClientCredentialsGrant()
	assert.Equal(t, gfycat.ClientCredentialsGrant{}, b.Grant())
}

func TestBuilder_LastGrantIsSentToServer(t *testing.T) {
	mock := testhelpers.SetupMockGfycatServer(t)

	client, err := gfycat.NewBuilder("client-id", "client-secret", "album-id").
		PasswordGrant("user", "pass").
		ClientCredentialsGrant().
		Build(gfycat.WithAPIURL(mock.URL()+"/"), gfycat.WithHTTPClient(mock.Server.Client()))
	require.NoError(t, err)

	_, err = client.RandomItemURL(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"client_id":     "client-id",
		"client_secret": "client-secret",
		"grant_type":    "client_credentials",
	}, mock.LastTokenRequest())
}

func TestRandomItemURL_FirstCallFetches(t *testing.T) {
	client, mock, _ := newClient(t)

	url, err := client.RandomItemURL(context.Background())

	require.NoError(t, err)
	assert.Contains(t, mockItemURLs, url)
	assert.Equal(t, 1, mock.TokenRequestCount())
	assert.Equal(t, 1, mock.AlbumRequestCount())
	authHeader, albumID := mock.LastAlbumRequest()
	assert.Equal(t, "Bearer test-access-token", authHeader)
	assert.Equal(t, "album-id", albumID)
}

func TestRandomItemURL_SecondCallUsesCache(t *testing.T) {
	client, mock, clock := newClient(t)

	_, err := client.RandomItemURL(context.Background())
	require.NoError(t, err)

	clock.Advance(23*time.Hour + 59*time.Minute)

	url, err := client.RandomItemURL(context.Background())
	require.NoError(t, err)

	assert.Contains(t, mockItemURLs, url)
	assert.Equal(t, 1, mock.TokenRequestCount())
	assert.Equal(t, 1, mock.AlbumRequestCount())
}

func TestRandomItemURL_StaleSnapshotIsRefetched(t *testing.T) {
	client, mock, clock := newClient(t)

	_, err := client.RandomItemURL(context.Background())
	require.NoError(t, err)

	mock.Configure(func(m *testhelpers.MockGfycatServer) {
		m.ItemIDs = []string{"BrandNewCat"}
	})
	clock.Advance(24*time.Hour + time.Minute)

	url, err := client.RandomItemURL(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://gfycat.com/BrandNewCat", url)
	assert.Equal(t, 2, mock.AlbumRequestCount())
	// both the one hour access token and the 24h refresh token have lapsed
	assert.Equal(t, 2, mock.TokenRequestCount())
	assert.Equal(t, "password", mock.LastTokenRequest()["grant_type"])
}

func TestRandomItemURL_TokenAPIError(t *testing.T) {
	client, mock, _ := newClient(t)
	mock.Configure(func(m *testhelpers.MockGfycatServer) {
		m.TokenStatusCode = http.StatusBadRequest
		m.TokenBody = `{"errorMessage":{"code":"InvalidCredentials","description":"bad creds"}}`
	})

	url, err := client.RandomItemURL(context.Background())

	assert.Empty(t, url)
	var apiErr *gfycat.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "InvalidCredentials", apiErr.Code)
	assert.Equal(t, "bad creds", apiErr.Description)
	assert.Equal(t, 0, mock.AlbumRequestCount())
}

func TestRandomItemURL_AlbumAPIError(t *testing.T) {
	client, mock, _ := newClient(t)
	mock.Configure(func(m *testhelpers.MockGfycatServer) {
		m.AlbumStatusCode = http.StatusNotFound
		m.AlbumBody = `{"errorMessage":{"code":"NotFound","description":"no such album"}}`
	})

	_, err := client.RandomItemURL(context.Background())

	var apiErr *gfycat.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NotFound", apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestRandomItemURL_MalformedAlbumIsTransportError(t *testing.T) {
	client, mock, _ := newClient(t)
	mock.Configure(func(m *testhelpers.MockGfycatServer) {
		m.AlbumBody = `{"publishedGfys": "nope"}`
	})

	_, err := client.RandomItemURL(context.Background())

	var transportErr *gfycat.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "album request", transportErr.Op)
}

func TestRandomItemURL_FailedFetchKeepsPreviousSnapshot(t *testing.T) {
	snapshots, err := cache.NewMemory[gfycat.Snapshot](gfycat.SnapshotTTL, 1)
	require.NoError(t, err)

	client, mock, clock := newClient(t, gfycat.WithSnapshotCache(snapshots))

	_, err = client.RandomItemURL(context.Background())
	require.NoError(t, err)

	before, found, err := snapshots.Get(context.Background(), "album-id")
	require.NoError(t, err)
	require.True(t, found)

	mock.Configure(func(m *testhelpers.MockGfycatServer) {
		m.AlbumStatusCode = http.StatusInternalServerError
	})
	clock.Advance(25 * time.Hour)

	_, err = client.RandomItemURL(context.Background())
	require.Error(t, err)

	after, found, err := snapshots.Get(context.Background(), "album-id")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, before, after)

	// the next call retries naturally once the API recovers
	mock.Configure(func(m *testhelpers.MockGfycatServer) {
		m.AlbumStatusCode = http.StatusOK
	})

	url, err := client.RandomItemURL(context.Background())
	require.NoError(t, err)
	assert.Contains(t, mockItemURLs, url)
	assert.Equal(t, 3, mock.AlbumRequestCount())
}

func TestRandomItemURL_EmptyAlbum(t *testing.T) {
	client, mock, _ := newClient(t)
	mock.Configure(func(m *testhelpers.MockGfycatServer) {
		m.ItemIDs = nil
	})

	url, err := client.RandomItemURL(context.Background())

	assert.Empty(t, url)
	assert.ErrorIs(t, err, gfycat.ErrEmptyCollection)
}

func TestRandomItemURL_PublicHost(t *testing.T) {
	client, _, _ := newClient(t, gfycat.WithPublicHost("cats.example.com"))

	url, err := client.RandomItemURL(context.Background())

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cats.example.com/"), url)
}

func TestRandomItem_ReturnsWholeItem(t *testing.T) {
	client, _, _ := newClient(t)

	item, err := client.RandomItem(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Cat "+item.ID, item.Title)
	assert.Contains(t, string(item.Raw), `"tags":["cat"]`)
}

func TestRandomItemURL_ConcurrentCallersFetchOnce(t *testing.T) {
	client, mock, _ := newClient(t)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.RandomItemURL(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, mock.TokenRequestCount())
	assert.Equal(t, 1, mock.AlbumRequestCount())
}
