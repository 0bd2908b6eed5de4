package notification

import (
	"context"

	"go.uber.org/zap"
)

// EmailProvider is one transport in the email chain.
type EmailProvider interface {
	Name() string
	// Configured reports whether the provider has everything it needs to send.
	Configured() bool
	SendEmail(ctx context.Context, to, subject, body string) error
}

// EmailChain sends through EmailProviders in priority order.
type EmailChain struct {
	providers []EmailProvider
	log       *zap.Logger
}

func NewEmailChain(log *zap.Logger, providers ...EmailProvider) *EmailChain {
	return &EmailChain{providers: providers, log: log}
}

// Send never returns an error; the outcome is reported in the Delivery.
func (c *EmailChain) Send(ctx context.Context, to, subject, body string) Delivery {
	return deliver(ctx, c.log, "email", c.providers, func(p EmailProvider) error {
		return p.SendEmail(ctx, to, subject, body)
	})
}

// Available reports whether at least one provider is configured.
func (c *EmailChain) Available() bool {
	for _, p := range c.providers {
		if p.Configured() {
			return true
		}
	}
	return false
}
