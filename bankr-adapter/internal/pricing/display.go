package pricing

import "github.com/Checker-Finance/orders/pkg/model"

// OrderDisplay is the rendered, human-facing view of an order.
type OrderDisplay struct {
	TypeLabel           string `json:"typeLabel"`
	StatusLabel         string `json:"statusLabel"`
	ChainName           string `json:"chainName,omitempty"`
	SellAmount          string `json:"sellAmount"`
	BuyAmount           string `json:"buyAmount"`
	TotalSoldAmount     string `json:"totalSoldAmount,omitempty"`
	TotalReceivedAmount string `json:"totalReceivedAmount,omitempty"`
	Cancellable         bool   `json:"cancellable"`
}

// Display renders o. BuyAmount is the reported buy amount when present,
// otherwise the approximate expected amount, otherwise "~".
func Display(o *model.ExternalOrder) OrderDisplay {
	d := OrderDisplay{
		TypeLabel:   o.OrderType.Label(),
		StatusLabel: o.Status.Label(),
		ChainName:   model.ChainName(o.ChainID),
		SellAmount:  FormatAmount(o.SellAmount),
		Cancellable: o.Status.Cancellable(),
	}
	switch est, ok := ExpectedBuyAmount(o); {
	case o.BuyAmount != nil:
		d.BuyAmount = FormatAmount(o.BuyAmount)
	case ok:
		d.BuyAmount = est.String()
	default:
		d.BuyAmount = "~"
	}
	if o.TotalSoldAmount != nil {
		d.TotalSoldAmount = FormatAmount(o.TotalSoldAmount)
	}
	if o.TotalReceivedAmount != nil {
		d.TotalReceivedAmount = FormatAmount(o.TotalReceivedAmount)
	}
	return d
}
