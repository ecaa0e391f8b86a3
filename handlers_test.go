package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chinmina/catvid-bridge/internal/audit"
	"github.com/chinmina/catvid-bridge/internal/gfycat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeSource struct {
	item gfycat.Item
	err  error
}

func (f fakeSource) RandomItemURL(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.item.URL("gfycat.com"), nil
}

func (f fakeSource) RandomItem(ctx context.Context) (gfycat.Item, error) {
	return f.item, f.err
}

func TestHandleGetRandom_ReturnsURL(t *testing.T) {
	source := fakeSource{item: gfycat.Item{ID: "AmazingCat"}}

	req := httptest.NewRequest(http.MethodGet, "/random", nil)
	rr := httptest.NewRecorder()

	handleGetRandom(source).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body RandomResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "https://gfycat.com/AmazingCat", body.URL)
}

func TestHandleGetRandomItem_ReturnsRawItem(t *testing.T) {
	raw := `{"gfyId":"AmazingCat","title":"Amazing","views":12}`
	var item gfycat.Item
	require.NoError(t, json.Unmarshal([]byte(raw), &item))

	req := httptest.NewRequest(http.MethodGet, "/random/item", nil)
	rr := httptest.NewRecorder()

	handleGetRandomItem(fakeSource{item: item}).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, raw, rr.Body.String())
}

func TestHandleGetRandom_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "api error is passed through",
			err:     &gfycat.APIError{StatusCode: 401, Code: "InvalidCredentials", Description: "bad creds"},
			status:  http.StatusBadGateway,
			message: "Error InvalidCredentials: bad creds",
		},
		{
			name:    "transport details are hidden",
			err:     &gfycat.TransportError{Op: "album request", Err: errors.New("dial tcp 10.0.0.1:443: refused")},
			status:  http.StatusBadGateway,
			message: http.StatusText(http.StatusBadGateway),
		},
		{
			name:    "empty album",
			err:     gfycat.ErrEmptyCollection,
			status:  http.StatusNotFound,
			message: gfycat.ErrEmptyCollection.Error(),
		},
		{
			name:    "unknown error",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			message: http.StatusText(http.StatusInternalServerError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for path, handler := range map[string]http.Handler{
				"/random":      handleGetRandom(fakeSource{err: tt.err}),
				"/random/item": handleGetRandomItem(fakeSource{err: tt.err}),
			} {
				req := httptest.NewRequest(http.MethodGet, path, nil)
				rr := httptest.NewRecorder()

				handler.ServeHTTP(rr, req)

				assert.Equal(t, tt.status, rr.Code, path)
				assert.Equal(t, "application/json", rr.Header().Get("Content-Type"), path)

				var body ErrorResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), path)
				assert.Equal(t, tt.message, body.Error, path)
			}
		})
	}
}

func TestErrorStatus_WrappedErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &gfycat.APIError{Code: "NotFound", Description: "gone"})

	status, message := errorStatus(wrapped)

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "Error NotFound: gone", message)
}

func TestHandleHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	rr := httptest.NewRecorder()

	handleHealthCheck().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestRateLimit(t *testing.T) {
	// one token, refilled once a minute
	limiter := rate.NewLimiter(rate.Every(time.Minute), 1)

	handler := rateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/random", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/random", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestRateLimit_ZeroBurstRejects(t *testing.T) {
	limiter := rate.NewLimiter(1, 0)
	called := false

	handler := rateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/random", nil))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.False(t, called)
}

func TestMaxRequestSize(t *testing.T) {
	handler := maxRequestSize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		_, err := r.Body.Read(buf)
		for err == nil {
			_, err = r.Body.Read(buf)
		}

		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/random", strings.NewReader("far more than eight bytes")))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestHandleGetRandom_AnnotatesAuditEntry(t *testing.T) {
	ctx, entry := audit.Context(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/random", nil).WithContext(ctx)

	handleGetRandom(fakeSource{item: gfycat.Item{ID: "AmazingCat"}}).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "https://gfycat.com/AmazingCat", entry.ItemURL)

	ctx, entry = audit.Context(context.Background())
	req = httptest.NewRequest(http.MethodGet, "/random", nil).WithContext(ctx)

	handleGetRandom(fakeSource{err: gfycat.ErrEmptyCollection}).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, gfycat.ErrEmptyCollection.Error(), entry.Error)
}
