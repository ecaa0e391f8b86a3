package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// ShutdownHooks runs cleanup in registration order once the server has
// stopped accepting requests. A failing hook does not stop the ones after it.
type ShutdownHooks struct {
	hooks []hook
}

// AddContext registers a hook that receives the shutdown context, which
// carries the shutdown deadline. Nil hooks are ignored.
func (s *ShutdownHooks) AddContext(name string, fn func(context.Context) error) {
	if fn == nil {
		log.Warn().Str("hook", name).Msg("nil shutdown hook ignored")
		return
	}

	log.Debug().Str("hook", name).Msg("shutdown hook registered")
	s.hooks = append(s.hooks, hook{name: name, fn: fn})
}

// AddClose registers a resource's Close method.
func (s *ShutdownHooks) AddClose(name string, closer interface{ Close() error }) {
	if closer == nil {
		log.Warn().Str("hook", name).Msg("nil shutdown hook ignored")
		return
	}

	s.AddContext(name, func(context.Context) error { return closer.Close() })
}

// Len reports the number of registered hooks.
func (s *ShutdownHooks) Len() int {
	return len(s.hooks)
}

// Execute runs every hook, returning the combined failures.
func (s *ShutdownHooks) Execute(ctx context.Context) error {
	var errs []error

	for _, h := range s.hooks {
		l := log.Ctx(ctx).With().Str("hook", h.name).Logger()

		l.Info().Msg("shutdown started")
		if err := h.fn(ctx); err != nil {
			l.Warn().Err(err).Msg("shutdown failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		l.Info().Msg("shutdown complete")
	}

	return errors.Join(errs...)
}
