package api

import "github.com/Checker-Finance/orders/bankr-adapter/internal/orders"

// ListQuery is the query string of the order list endpoints.
type ListQuery struct {
	Maker  string `query:"maker"`
	Type   string `query:"type"`
	Status string `query:"status"`
}

// SubmitRequest is the body of POST /api/v1/orders.
type SubmitRequest = orders.OrderForm

// PriceRequest is the body of POST /api/v1/price.
type PriceRequest = orders.PriceQuery
