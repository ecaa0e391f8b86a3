package gfycat

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce   sync.Once
	tokenRequests metric.Int64Counter
	albumFetches  metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/chinmina/catvid-bridge/internal/gfycat")

		var err error
		tokenRequests, err = meter.Int64Counter(
			"gfycat.token.requests",
			metric.WithDescription("Token endpoint requests by grant type"),
		)
		if err != nil {
			otel.Handle(err)
		}

		albumFetches, err = meter.Int64Counter(
			"gfycat.album.fetches",
			metric.WithDescription("Album fetches by outcome"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

func recordTokenRequest(ctx context.Context, grant GrantType, status string) {
	if tokenRequests == nil {
		return
	}
	tokenRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("gfycat.grant", string(grant)),
			attribute.String("gfycat.status", status),
		),
	)
}

func recordAlbumFetch(ctx context.Context, status string) {
	if albumFetches == nil {
		return
	}
	albumFetches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("gfycat.status", status)),
	)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
