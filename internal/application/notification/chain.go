// Package notification delivers verification codes through an ordered list of
// providers, falling back to the next configured provider when one fails.
package notification

import (
	"context"
	"fmt"

	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/observability"
	"go.uber.org/zap"
)

// Delivery is the outcome of a send. Err is domain.ErrDeliveryUnavailable when
// no provider is configured, otherwise the last provider error.
type Delivery struct {
	OK       bool
	Provider string
	Err      error
}

type provider interface {
	Name() string
	Configured() bool
}

// deliver tries each configured provider in order until one succeeds.
func deliver[P provider](ctx context.Context, log *zap.Logger, channel string, providers []P, send func(P) error) Delivery {
	var last Delivery
	attempted := false
	for _, p := range providers {
		if !p.Configured() {
			continue
		}
		if err := ctx.Err(); err != nil {
			last = Delivery{Provider: p.Name(), Err: err}
			break
		}
		attempted = true
		if err := send(p); err != nil {
			log.Warn("delivery failed, trying next provider",
				zap.String("channel", channel),
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			observability.DeliveryAttempts.WithLabelValues(channel, p.Name(), "failure").Inc()
			last = Delivery{Provider: p.Name(), Err: err}
			continue
		}
		observability.DeliveryAttempts.WithLabelValues(channel, p.Name(), "success").Inc()
		return Delivery{OK: true, Provider: p.Name()}
	}
	if !attempted && last.Err == nil {
		log.Error("no delivery provider configured", zap.String("channel", channel))
		observability.DeliveryAttempts.WithLabelValues(channel, "none", "unavailable").Inc()
		return Delivery{Err: fmt.Errorf("%s: %w", channel, domain.ErrDeliveryUnavailable)}
	}
	return last
}
