// Package payment captures appointment charges through Stripe PaymentIntents.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"tidyhome/internal/types"
)

var (
	ErrNoIntent    = errors.New("payment intent id is required")
	ErrNotCaptured = errors.New("payment intent was not captured")
)

type Config struct {
	SecretKey string
}

type StripeClient struct {
	cfg Config
}

func NewStripeClient(cfg Config) *StripeClient {
	stripe.Key = cfg.SecretKey
	return &StripeClient{cfg: cfg}
}

// Capture collects a previously authorized PaymentIntent for amount. Stripe
// errors are returned as-is so callers can show the provider's message.
func (c *StripeClient) Capture(ctx context.Context, paymentIntentID string, amount types.Money) (string, error) {
	params, err := captureParams(paymentIntentID, amount)
	if err != nil {
		return "", err
	}
	params.Context = ctx
	pi, err := paymentintent.Capture(paymentIntentID, params)
	if err != nil {
		return "", err
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", fmt.Errorf("%w: status %s", ErrNotCaptured, pi.Status)
	}
	if pi.LatestCharge != nil {
		return pi.LatestCharge.ID, nil
	}
	return pi.ID, nil
}

func captureParams(paymentIntentID string, amount types.Money) (*stripe.PaymentIntentCaptureParams, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return nil, ErrNoIntent
	}
	if amount.Amount <= 0 {
		return nil, fmt.Errorf("capture amount must be positive, got %d", amount.Amount)
	}
	return &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(MinorUnits(amount)),
	}, nil
}

// MinorUnits converts whole-dollar Money to cents.
func MinorUnits(m types.Money) int64 {
	return m.Amount * 100
}
