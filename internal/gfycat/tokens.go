package gfycat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock supplies the current instant. Validity checks never read the wall
// clock directly.
type Clock func() time.Time

// TokenManager hands out access tokens, requesting or refreshing them only
// when the current one can no longer be used. Requests are single-shot: a
// failure is returned to the caller, and the next call tries again.
type TokenManager struct {
	mu       sync.Mutex
	creds    Credentials
	grant    Grant
	tokenURL string
	client   *http.Client
	now      Clock

	token *Token
}

// NewTokenManager creates a manager that mints tokens at apiURL using the
// supplied grant. A nil client uses http.DefaultClient, and a nil clock uses
// time.Now.
func NewTokenManager(creds Credentials, grant Grant, apiURL string, client *http.Client, now Clock) *TokenManager {
	if client == nil {
		client = http.DefaultClient
	}
	if now == nil {
		now = time.Now
	}

	initMetrics()

	return &TokenManager{
		creds:    creds,
		grant:    grant,
		tokenURL: apiURL + tokenPath,
		client:   client,
		now:      now,
	}
}

// ValidToken returns a token whose access window has not elapsed. The stored
// token is returned without a network call while it remains valid. Once it
// expires it is refreshed, or replaced with a new token if the refresh token
// has expired too.
func (m *TokenManager) ValidToken(ctx context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	var (
		next *Token
		err  error
	)

	switch {
	case m.token == nil:
		next, err = m.request(ctx, m.grant.tokenRequest(m.creds))
	case m.token.AccessValid(now):
		return *m.token, nil
	case !m.token.RefreshValid(now):
		// the server would reject the refresh: start again
		log.Ctx(ctx).Debug().Msg("refresh token expired, requesting new token")
		next, err = m.request(ctx, m.grant.tokenRequest(m.creds))
	default:
		next, err = m.request(ctx, newRefreshRequest(m.creds, m.token.RefreshToken))
	}

	if err != nil {
		return Token{}, err
	}

	m.token = next
	return *next, nil
}

func (m *TokenManager) request(ctx context.Context, payload tokenRequest) (*Token, error) {
	grant := payload.grant()

	if grant == GrantRefresh {
		log.Ctx(ctx).Debug().Msg("refreshing token")
	} else {
		log.Ctx(ctx).Debug().Str("grant", string(grant)).Msg("requesting new token")
	}

	token, err := m.post(ctx, payload)
	recordTokenRequest(ctx, grant, outcome(err))
	if err != nil {
		return nil, err
	}

	token.IssuedAt = m.now()
	log.Ctx(ctx).Debug().
		Int64("expires_in", token.ExpiresIn).
		Int64("refresh_expires_in", token.RefreshTokenExpiresIn).
		Msg("token issued")

	return token, nil
}

func (m *TokenManager) post(ctx context.Context, payload tokenRequest) (*Token, error) {
	const op = "token request"

	body, err := jsonBody(payload)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var token Token
	if err := do(m.client, req, op, &token); err != nil {
		return nil, err
	}

	return &token, nil
}
