package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/price"
)

// Price is the part of a recurring provider price the plan catalogue uses.
type Price struct {
	ID          string
	ProductID   string
	ProductName string
	UnitAmount  int64
	Currency    string
	Interval    string
	Metadata    map[string]string
}

type PriceSource interface {
	ActivePrices(ctx context.Context) ([]Price, error)
}

// APIPriceSource lists active recurring prices through the Stripe API.
type APIPriceSource struct {
	key string
}

func NewAPIPriceSource(secretKey string) *APIPriceSource {
	return &APIPriceSource{key: secretKey}
}

func (s *APIPriceSource) ActivePrices(ctx context.Context) ([]Price, error) {
	stripe.Key = s.key

	params := &stripe.PriceListParams{}
	params.Context = ctx
	params.Active = stripe.Bool(true)
	params.Type = stripe.String("recurring")
	params.AddExpand("data.product")

	var out []Price
	it := price.List(params)
	for it.Next() {
		p := it.Price()
		if !p.Active || p.Recurring == nil || p.Product == nil || !p.Product.Active {
			continue
		}
		out = append(out, Price{
			ID:          p.ID,
			ProductID:   p.Product.ID,
			ProductName: p.Product.Name,
			UnitAmount:  p.UnitAmount,
			Currency:    string(p.Currency),
			Interval:    string(p.Recurring.Interval),
			Metadata:    p.Metadata,
		})
	}
	return out, it.Err()
}
