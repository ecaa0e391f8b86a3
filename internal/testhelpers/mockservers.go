package testhelpers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockGfycatServer provides a configurable mock of the token and album
// endpoints. All fields may be changed between calls.
type MockGfycatServer struct {
	Server *httptest.Server

	mu sync.Mutex

	// Token endpoint behaviour
	AccessToken           string
	RefreshToken          string
	ExpiresIn             int64
	RefreshTokenExpiresIn int64
	TokenStatusCode       int    // HTTP status code to return (200 if not set)
	TokenBody             string // raw body returned instead of a token, when set

	// Album endpoint behaviour
	ItemIDs         []string
	AlbumStatusCode int
	AlbumBody       string

	// Recorded traffic
	TokenRequests  []map[string]any // decoded token request payloads
	AlbumRequests  int
	LastAuthHeader string // Captured Authorization header from last album request
	LastAlbumID    string
}

// SetupMockGfycatServer creates a mock API server that issues tokens and
// serves a three item album. The server is closed when the test ends.
func SetupMockGfycatServer(t *testing.T) *MockGfycatServer {
	t.Helper()

	mock := &MockGfycatServer{
		AccessToken:           "test-access-token",
		RefreshToken:          "test-refresh-token",
		ExpiresIn:             3600,
		RefreshTokenExpiresIn: 86400,
		TokenStatusCode:       http.StatusOK,
		ItemIDs:               []string{"AmazingCat", "SleepyKitten", "GrumpyTabby"},
		AlbumStatusCode:       http.StatusOK,
	}

	router := http.NewServeMux()

	router.HandleFunc("POST /v1/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		defer mock.mu.Unlock()

		body, _ := io.ReadAll(r.Body)
		payload := map[string]any{}
		_ = json.Unmarshal(body, &payload)
		mock.TokenRequests = append(mock.TokenRequests, payload)

		if mock.TokenBody != "" || mock.TokenStatusCode != http.StatusOK {
			writeRaw(w, mock.TokenStatusCode, mock.TokenBody)
			return
		}

		WriteJSON(w, map[string]any{
			"token_type":               "bearer",
			"refresh_token_expires_in": mock.RefreshTokenExpiresIn,
			"refresh_token":            mock.RefreshToken,
			"scope":                    "",
			"resource_owner":           "catvid",
			"expires_in":               mock.ExpiresIn,
			"access_token":             mock.AccessToken,
		})
	})

	router.HandleFunc("GET /v1/me/albums/{albumID}", func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		defer mock.mu.Unlock()

		mock.AlbumRequests++
		mock.LastAuthHeader = r.Header.Get("Authorization")
		mock.LastAlbumID = r.PathValue("albumID")

		if mock.AlbumBody != "" || mock.AlbumStatusCode != http.StatusOK {
			writeRaw(w, mock.AlbumStatusCode, mock.AlbumBody)
			return
		}

		items := make([]map[string]any, 0, len(mock.ItemIDs))
		for i, id := range mock.ItemIDs {
			items = append(items, map[string]any{
				"gfyId":     id,
				"gfyName":   id,
				"gfyNumber": fmt.Sprintf("%d", i),
				"title":     "Cat " + id,
				"mp4Url":    "https://giant.gfycat.com/" + id + ".mp4",
				"views":     i * 10,
				"tags":      []string{"cat"},
			})
		}

		WriteJSON(w, map[string]any{"publishedGfys": items})
	})

	mock.Server = httptest.NewServer(router)
	t.Cleanup(mock.Server.Close)

	return mock
}

// URL is the base URL to configure as the API URL.
func (m *MockGfycatServer) URL() string {
	return m.Server.URL
}

// Configure changes the mock's behaviour while holding its lock.
func (m *MockGfycatServer) Configure(fn func(m *MockGfycatServer)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// TokenRequestCount is the number of token endpoint calls received.
func (m *MockGfycatServer) TokenRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TokenRequests)
}

// AlbumRequestCount is the number of album endpoint calls received.
func (m *MockGfycatServer) AlbumRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.AlbumRequests
}

// LastTokenRequest returns the most recent decoded token payload.
func (m *MockGfycatServer) LastTokenRequest() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.TokenRequests) == 0 {
		return nil
	}
	return m.TokenRequests[len(m.TokenRequests)-1]
}

// LastAlbumRequest returns the Authorization header and album id of the most
// recent album request.
func (m *MockGfycatServer) LastAlbumRequest() (authHeader, albumID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastAuthHeader, m.LastAlbumID
}

// Close shuts down the mock server.
func (m *MockGfycatServer) Close() {
	m.Server.Close()
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// WriteJSON is a helper function that writes a JSON response.
// It sets the Content-Type header and marshals the payload to JSON.
func WriteJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		// In test context, this should never happen with valid test data
		http.Error(w, fmt.Sprintf("failed to marshal JSON: %v", err), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}
