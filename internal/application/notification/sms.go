package notification

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// SMSProvider is one transport in the SMS chain.
type SMSProvider interface {
	Name() string
	Configured() bool
	SendSMS(ctx context.Context, to, message string) error
}

// SMSChain sends through SMSProviders in priority order.
type SMSChain struct {
	providers []SMSProvider
	log       *zap.Logger
}

func NewSMSChain(log *zap.Logger, providers ...SMSProvider) *SMSChain {
	return &SMSChain{providers: providers, log: log}
}

// Send never returns an error; the outcome is reported in the Delivery.
func (c *SMSChain) Send(ctx context.Context, to, message string) Delivery {
	return deliver(ctx, c.log, "sms", c.providers, func(p SMSProvider) error {
		return p.SendSMS(ctx, to, message)
	})
}

// ErrSimulatedFailure is returned by ClientDelegated when configured to fail.
var ErrSimulatedFailure = errors.New("sms: simulated delivery failure")

// ClientDelegated stands in for SMS delivery performed by the client-side
// provider. It reports success unless SimulateFailure is set.
type ClientDelegated struct {
	SimulateFailure bool
}

func (ClientDelegated) Name() string     { return "client" }
func (ClientDelegated) Configured() bool { return true }

func (c ClientDelegated) SendSMS(ctx context.Context, _, _ string) error {
	if c.SimulateFailure {
		return ErrSimulatedFailure
	}
	return ctx.Err()
}
