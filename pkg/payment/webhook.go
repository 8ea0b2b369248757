package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired               = "checkout.session.expired"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

// WebhookEvent is the part of a provider event the order service acts on.
type WebhookEvent struct {
	ID        string
	Type      string
	OrderID   string
	SessionID string
	Outcome   Outcome
	Verified  bool
}

type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			PaymentStatus string            `json:"payment_status"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// WebhookParser verifies and decodes provider webhooks. With an empty
// secret the raw body is trusted as-is.
type WebhookParser struct {
	secret string
}

func NewWebhookParser(secret string) *WebhookParser {
	return &WebhookParser{secret: secret}
}

func (p *WebhookParser) Verifies() bool {
	return p.secret != ""
}

func (p *WebhookParser) Parse(payload []byte, signature string) (*WebhookEvent, error) {
	verified := false
	if p.secret != "" {
		if signature == "" {
			return nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
		}
		if err := webhook.ValidatePayload(payload, signature, p.secret); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		verified = true
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidPayload)
	}

	evt := &WebhookEvent{
		ID:        env.ID,
		Type:      env.Type,
		OrderID:   env.Data.Object.Metadata[MetadataOrderID],
		SessionID: env.Data.Object.ID,
		Verified:  verified,
	}

	switch env.Type {
	case EventCheckoutCompleted:
		// delayed payment methods complete unpaid and report later
		if env.Data.Object.PaymentStatus != "unpaid" {
			evt.Outcome = OutcomeSucceeded
		}
	case EventCheckoutAsyncPaymentSucceeded:
		evt.Outcome = OutcomeSucceeded
	case EventCheckoutAsyncPaymentFailed, EventCheckoutExpired:
		evt.Outcome = OutcomeFailed
	}

	return evt, nil
}
