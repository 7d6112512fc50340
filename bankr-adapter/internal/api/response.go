package api

import (
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/orders"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/pricing"
	"github.com/Checker-Finance/orders/pkg/model"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string      `json:"error"`
	Step  orders.Step `json:"step,omitempty"`
	Field string      `json:"field,omitempty"`
}

// SubmitResponse is returned once an order was accepted by the backend.
type SubmitResponse struct {
	Order      *model.ExternalOrder `json:"order"`
	QuoteID    string               `json:"quoteId"`
	ApprovalTx string               `json:"approvalTx,omitempty"`
	Steps      []orders.Step        `json:"steps"`
}

// OrderResponse is a single order with its rendered view.
type OrderResponse struct {
	Order   *model.ExternalOrder `json:"order"`
	Display pricing.OrderDisplay `json:"display"`
}

// ListResponse is the accumulated order list for a filter.
type ListResponse struct {
	Orders  []model.ExternalOrder `json:"orders"`
	HasMore bool                  `json:"hasMore"`
}

// CancelResponse mirrors the backend cancel result.
type CancelResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Success bool   `json:"success"`
}

// PriceResponse is a derived market price.
type PriceResponse struct {
	Price     decimal.Decimal `json:"price"`
	Formatted string          `json:"formatted"`
}
