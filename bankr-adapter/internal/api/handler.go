package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/bankr"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/orders"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/pricing"
	"github.com/Checker-Finance/orders/pkg/model"
)

// OrderService defines the order operations used by the handler.
type OrderService interface {
	Maker() string
	SubmitOrder(ctx context.Context, form orders.OrderForm) (*orders.SubmitResult, error)
	GetOrder(ctx context.Context, orderID string) (*model.ExternalOrder, error)
	ListOrders(ctx context.Context, f orders.Filter) (orders.Page, error)
	LoadMore(ctx context.Context, f orders.Filter) (orders.Page, error)
	CancelOrder(ctx context.Context, orderID string) (*model.CancelOrderResponse, error)
	MarketPrice(ctx context.Context, pq orders.PriceQuery) (decimal.Decimal, error)
}

// OrderHandler handles HTTP API requests for conditional orders.
type OrderHandler struct {
	logger  *zap.Logger
	service OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(logger *zap.Logger, service OrderService) *OrderHandler {
	return &OrderHandler{
		logger:  logger,
		service: service,
	}
}

// SubmitOrderHandler builds a quote from the form and runs the submission
// workflow to completion.
func (h *OrderHandler) SubmitOrderHandler(c *fiber.Ctx) error {
	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	res, err := h.service.SubmitOrder(c.UserContext(), req)
	if err != nil {
		return h.submitError(c, req, err)
	}

	return c.Status(fiber.StatusCreated).JSON(SubmitResponse{
		Order:      res.Order,
		QuoteID:    res.QuoteID,
		ApprovalTx: res.ApprovalTx,
		Steps:      res.Steps,
	})
}

func (h *OrderHandler) submitError(c *fiber.Ctx, req SubmitRequest, err error) error {
	var formErr *orders.FormError
	switch {
	case errors.As(err, &formErr):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: formErr.Message, Field: formErr.Field})
	case errors.Is(err, orders.ErrSubmissionInFlight):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
	}

	h.logger.Error("orders.submit.failed",
		zap.String("maker", req.Maker),
		zap.String("order_type", string(req.OrderType)),
		zap.Error(err))

	resp := ErrorResponse{Error: err.Error(), Step: orders.StepFailed}
	if wfErr, ok := orders.AsWorkflowError(err); ok {
		resp.Step = wfErr.Step
	}
	return c.Status(fiber.StatusBadRequest).JSON(resp)
}

// GetOrderHandler returns a single order with its display view.
func (h *OrderHandler) GetOrderHandler(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if err := validateOrderID(orderID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	order, err := h.service.GetOrder(c.UserContext(), orderID)
	if err != nil {
		if apiErr, ok := bankr.AsAPIError(err); ok && apiErr.IsNotFound() {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: apiErr.Message})
		}
		h.logger.Error("orders.get.failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
	}
	if order == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: orders.ErrOrderNotFound.Error()})
	}

	return c.JSON(OrderResponse{Order: order, Display: pricing.Display(order)})
}

// ListOrdersHandler loads the first page for the filter, replacing any list
// accumulated so far.
func (h *OrderHandler) ListOrdersHandler(c *fiber.Ctx) error {
	return h.list(c, h.service.ListOrders)
}

// LoadMoreHandler appends the next page for the filter.
func (h *OrderHandler) LoadMoreHandler(c *fiber.Ctx) error {
	return h.list(c, h.service.LoadMore)
}

func (h *OrderHandler) list(c *fiber.Ctx, load func(context.Context, orders.Filter) (orders.Page, error)) error {
	var q ListQuery
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}
	f, err := q.Filter(h.service.Maker())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	page, err := load(c.UserContext(), f)
	if err != nil {
		h.logger.Error("orders.list.failed",
			zap.String("maker", f.Maker),
			zap.String("type", string(f.Type)),
			zap.String("status", string(f.Status)),
			zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
	}

	list := page.Orders
	if list == nil {
		list = []model.ExternalOrder{}
	}
	return c.JSON(ListResponse{Orders: list, HasMore: page.HasMore})
}

// CancelOrderHandler signs and sends a cancellation for an eligible order.
func (h *OrderHandler) CancelOrderHandler(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if err := validateOrderID(orderID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	resp, err := h.service.CancelOrder(c.UserContext(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
		case errors.Is(err, orders.ErrNotCancellable):
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
		}
		h.logger.Error("orders.cancel.failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(CancelResponse{
		OrderID: orderID,
		Status:  resp.Status,
		Success: resp.Success,
	})
}

// PriceHandler derives the current market price for a prospective order.
func (h *OrderHandler) PriceHandler(c *fiber.Ctx) error {
	var req PriceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	price, err := h.service.MarketPrice(c.UserContext(), req)
	if err != nil {
		var formErr *orders.FormError
		switch {
		case errors.As(err, &formErr):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: formErr.Message, Field: formErr.Field})
		case errors.Is(err, pricing.ErrNoLiquidity),
			errors.Is(err, pricing.ErrMissingSellAmount),
			errors.Is(err, pricing.ErrMissingMarketBuyAmount):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error()})
		}
		h.logger.Warn("orders.price.failed",
			zap.String("sell_token", req.SellToken),
			zap.String("buy_token", req.BuyToken),
			zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(PriceResponse{Price: price, Formatted: pricing.FormatDecimal(price)})
}
