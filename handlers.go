package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/chinmina/catvid-bridge/internal/audit"
	"github.com/chinmina/catvid-bridge/internal/gfycat"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// HTTPStatuser provides HTTP status information for errors
type HTTPStatuser interface {
	Status() (int, string)
}

// ItemSource supplies random album items.
type ItemSource interface {
	RandomItemURL(ctx context.Context) (string, error)
	RandomItem(ctx context.Context) (gfycat.Item, error)
}

// RandomResponse is the body of a successful GET /random.
type RandomResponse struct {
	URL string `json:"url"`
}

func handleGetRandom(source ItemSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		entry := audit.Log(r.Context())

		url, err := source.RandomItemURL(r.Context())
		if err != nil {
			entry.Error = err.Error()
			status, message := errorStatus(err)
			log.Ctx(r.Context()).Info().Err(err).Int("status", status).Msg("random item lookup failed")
			writeJSONError(w, status, message)
			return
		}

		entry.ItemURL = url
		writeJSON(w, RandomResponse{URL: url})
	})
}

// handleGetRandomItem returns the provider's full record for a random item.
func handleGetRandomItem(source ItemSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		entry := audit.Log(r.Context())

		item, err := source.RandomItem(r.Context())
		if err != nil {
			entry.Error = err.Error()
			status, message := errorStatus(err)
			log.Ctx(r.Context()).Info().Err(err).Int("status", status).Msg("random item lookup failed")
			writeJSONError(w, status, message)
			return
		}

		entry.ItemID = item.ID
		writeJSON(w, item)
	})
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

// rateLimit rejects requests beyond the limiter's rate with 429, telling the
// client when a slot will be free.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reservation := limiter.Reserve()
			if !reservation.OK() {
				requestError(w, http.StatusTooManyRequests)
				return
			}

			delay := reservation.Delay()
			if delay > 0 {
				reservation.Cancel()

				retryAfter := int(math.Ceil(delay.Seconds()))
				log.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Int("retry_after", retryAfter).Msg("rate limit exceeded")

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeJSONError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, body any) {
	marshalled, err := json.Marshal(body)
	if err != nil {
		requestError(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(marshalled)
	if err != nil {
		// the client is likely gone; nothing more can be sent
		log.Info().Msgf("failed to write response: %v", err)
	}
}

// writeJSONError writes a JSON error response with the given status code and message.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Info().Msgf("failed to write JSON error response: %v", err)
	}
}

// errorStatus extracts HTTP status code and message from an error. An empty
// album is reported as not found; errors without status information are
// internal.
func errorStatus(err error) (int, string) {
	if errors.Is(err, gfycat.ErrEmptyCollection) {
		return http.StatusNotFound, err.Error()
	}

	var statuser HTTPStatuser
	if errors.As(err, &statuser) {
		return statuser.Status()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func requestError(w http.ResponseWriter, statusCode int) {
	http.Error(w, http.StatusText(statusCode), statusCode)
}

// drainRequestBody reads and discards the remaining request body so HTTP/1
// connections can be reused.
func drainRequestBody(r *http.Request) {
	if r.Body != nil {
		// 5kb max: after this we'll assume the client is broken or malicious
		// and close the connection
		io.CopyN(io.Discard, r.Body, 5*1024)
	}
}
