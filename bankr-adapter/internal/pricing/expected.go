package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/orders/pkg/model"
)

// Estimate is a derived amount that must be shown as approximate.
type Estimate struct {
	Value       decimal.Decimal
	Approximate bool
}

func (e Estimate) String() string {
	if e.Approximate {
		return "~" + FormatDecimal(e.Value)
	}
	return FormatDecimal(e.Value)
}

// ExpectedBuyAmount estimates what a trigger-priced order will receive as
// sellAmount / triggerPrice. ok is false when there is nothing to estimate:
// the order already reports a buy amount, or it has no sell amount or no
// positive trigger price.
func ExpectedBuyAmount(o *model.ExternalOrder) (Estimate, bool) {
	if o == nil || o.BuyAmount != nil || o.QuoteRequest == nil {
		return Estimate{}, false
	}
	if o.SellAmount == nil || o.SellAmount.Formatted == "" {
		return Estimate{}, false
	}
	trigger, ok := model.TriggerPrice(o.QuoteRequest.Config)
	if !ok || !trigger.IsPositive() {
		return Estimate{}, false
	}
	sell, err := decimal.NewFromString(strings.TrimSpace(o.SellAmount.Formatted))
	if err != nil {
		return Estimate{}, false
	}
	return Estimate{Value: sell.DivRound(trigger, divisionPrecision), Approximate: true}, true
}
