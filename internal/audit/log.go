// Package audit writes one structured log entry per served request, recording
// who asked and which item they were given.
package audit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is the zerolog level audit entries are written at. It sits above
// every standard level so audit output survives level filtering.
const Level = zerolog.Level(20)

type contextKey struct{}

// Entry is the audit record for a single request.
type Entry struct {
	Method    string
	Path      string
	UserAgent string
	SourceIP  string
	Status    int
	Error     string

	ItemID  string
	ItemURL string

	start    time.Time
	Duration time.Duration
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *Entry) MarshalZerologObject(ev *zerolog.Event) {
	request := zerolog.Dict().
		Str("method", e.Method).
		Str("path", e.Path).
		Int("status", e.Status)
	if e.UserAgent != "" {
		request.Str("user_agent", e.UserAgent)
	}
	if e.SourceIP != "" {
		request.Str("source_ip", e.SourceIP)
	}
	ev.Dict("request", request)

	item := &optionalDict{}
	item.Str("id", e.ItemID).
		Str("url", e.ItemURL)
	item.writeTo(ev, "item")

	timing := &optionalDict{}
	timing.Float("duration_ms", float64(e.Duration)/float64(time.Millisecond))
	timing.writeTo(ev, "timing")

	if e.Error != "" {
		ev.Str("error", e.Error)
	}
}

// Begin records the request details.
func (e *Entry) Begin(r *http.Request) {
	e.Method = r.Method
	e.Path = r.URL.Path
	e.UserAgent = r.UserAgent()
	e.start = time.Now()

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		e.SourceIP = host
	} else {
		e.SourceIP = r.RemoteAddr
	}
}

// End returns a function to be deferred that writes the entry. A panic in the
// handler is recorded on the entry and then re-raised.
func (e *Entry) End(ctx context.Context) func() {
	return func() {
		r := recover()
		if r != nil {
			if e.Error != "" {
				e.Error += "; "
			}
			e.Error += fmt.Sprintf("panic: %v", r)
			e.Status = http.StatusInternalServerError
		}

		if e.Status == 0 {
			e.Status = http.StatusOK
		}
		if !e.start.IsZero() {
			e.Duration = time.Since(e.start)
		}

		log.Ctx(ctx).WithLevel(Level).EmbedObject(e).Msg("audit_event")

		if r != nil {
			panic(r)
		}
	}
}

// Context returns the entry attached to ctx, attaching a new one if there is
// none.
func Context(ctx context.Context) (context.Context, *Entry) {
	if e, ok := ctx.Value(contextKey{}).(*Entry); ok {
		return ctx, e
	}

	e := &Entry{}
	return context.WithValue(ctx, contextKey{}, e), e
}

// Log returns the entry for the current request. Outside the middleware it
// returns a detached entry, so handlers can always annotate safely.
func Log(ctx context.Context) *Entry {
	_, e := Context(ctx)
	return e
}

type statusRecorder struct {
	http.ResponseWriter
	entry *Entry
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.entry.Status == 0 {
		w.entry.Status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.entry.Status == 0 {
		w.entry.Status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware attaches an Entry to each request and writes it once the
// handler returns.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, entry := Context(r.Context())
			entry.Begin(r)
			defer entry.End(ctx)()

			next.ServeHTTP(&statusRecorder{ResponseWriter: w, entry: entry}, r.WithContext(ctx))
		})
	}
}
