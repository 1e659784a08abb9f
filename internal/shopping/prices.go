package shopping

import (
	"github.com/shopspring/decimal"

	"github.com/dukerupert/shoplist/internal/model"
)

// Prices is the totals payload attached to every mutation broadcast.
type Prices struct {
	BoughtPrice   string `json:"boughtPrice"`
	UnboughtPrice string `json:"unboughtPrice"`
	TotalPrice    string `json:"totalPrice"`
}

var thousand = decimal.NewFromInt(1000)

// Aggregate totals the items by bought state. Prices are per kilogram or liter,
// so quantities in exactly "g" or "ml" are scaled down by 1000 first. Units are
// stored as typed, so "G" is not a gram and "kg" is never scaled.
func Aggregate(items []model.Item) Prices {
	bought, unbought := decimal.Zero, decimal.Zero

	for _, item := range items {
		amount := decimal.NewFromInt(item.Quantity)
		if item.Unit == "g" || item.Unit == "ml" {
			amount = amount.Div(thousand)
		}
		cost := amount.Mul(decimal.NewFromInt(item.Price))

		if item.IsBought {
			bought = bought.Add(cost)
		} else {
			unbought = unbought.Add(cost)
		}
	}

	return Prices{
		BoughtPrice:   bought.StringFixed(2),
		UnboughtPrice: unbought.StringFixed(2),
		TotalPrice:    bought.Add(unbought).StringFixed(2),
	}
}
