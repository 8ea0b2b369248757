package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/foodorder/pkg/config"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const MetadataOrderID = "orderId"

var ErrProvider = errors.New("payment provider error")

type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
}

type SessionRequest struct {
	OrderID    string
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
}

type Session struct {
	ID       string
	URL      string
	Currency string
}

// StripeProvider creates hosted checkout sessions.
type StripeProvider struct {
	api      *client.API
	currency string
}

// NewStripeProvider returns nil when no secret key is configured; callers
// treat a nil provider as "payment not configured". backends may be nil.
func NewStripeProvider(cfg *config.PaymentConfig, backends *stripe.Backends) *StripeProvider {
	if cfg.StripeSecretKey == "" {
		return nil
	}
	api := &client.API{}
	api.Init(cfg.StripeSecretKey, backends)

	currency := cfg.Currency
	if currency == "" {
		currency = "inr"
	}
	return &StripeProvider{api: api, currency: currency}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, req.OrderID)

	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(p.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(MinorUnits(item.UnitPrice)),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", ErrProvider, err)
	}
	return &Session{ID: s.ID, URL: s.URL, Currency: p.currency}, nil
}

// MinorUnits converts a major-unit amount to the provider's integer minor
// units (paise, cents), rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
