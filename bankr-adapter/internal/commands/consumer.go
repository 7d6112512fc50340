package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/bankr"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/orders"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/wallet"
	"github.com/Checker-Finance/orders/internal/metrics"
	"github.com/Checker-Finance/orders/pkg/model"
)

// OrderService defines the order operations driven by commands.
type OrderService interface {
	SubmitOrder(ctx context.Context, form orders.OrderForm) (*orders.SubmitResult, error)
	CancelOrder(ctx context.Context, orderID string) (*model.CancelOrderResponse, error)
}

// CancelCommand is the body of a cancel command.
type CancelCommand struct {
	OrderID string `json:"orderId"`
}

// Outcome is how a delivery is settled.
type Outcome string

const (
	Ack     Outcome = "ack"
	Requeue Outcome = "requeue"
	Reject  Outcome = "reject"
)

// SubmitQueue and CancelQueue name the inbound queues for venue.
func SubmitQueue(venue string) string {
	return fmt.Sprintf("inbound.orders.submit.%s", strings.ToLower(venue))
}

func CancelQueue(venue string) string {
	return fmt.Sprintf("inbound.orders.cancel.%s", strings.ToLower(venue))
}

// Consumer consumes order commands from RabbitMQ.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	service OrderService
	venue   string
	logger  *zap.Logger
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewConsumer connects to RabbitMQ.
func NewConsumer(url, venue string, service OrderService, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// One command at a time: submissions for the wallet are serialized anyway.
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
		service: service,
		venue:   venue,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start declares the queues and starts one goroutine per queue.
func (c *Consumer) Start(ctx context.Context) error {
	submitQueue := SubmitQueue(c.venue)
	cancelQueue := CancelQueue(c.venue)

	for _, q := range []string{submitQueue, cancelQueue} {
		if _, err := c.channel.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q, err)
		}
	}

	submitMsgs, err := c.channel.Consume(submitQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", submitQueue, err)
	}
	cancelMsgs, err := c.channel.Consume(cancelQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", cancelQueue, err)
	}

	c.logger.Info("commands.consuming",
		zap.String("submit_queue", submitQueue),
		zap.String("cancel_queue", cancelQueue))

	c.wg.Add(2)
	go c.consume(ctx, submitQueue, submitMsgs, c.HandleSubmit)
	go c.consume(ctx, cancelQueue, cancelMsgs, c.HandleCancel)
	return nil
}

func (c *Consumer) consume(ctx context.Context, queue string, msgs <-chan amqp.Delivery, handle func(context.Context, []byte) Outcome) {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("commands.channel_closed", zap.String("queue", queue))
				return
			}
			settle(c.logger, queue, msg, handle(ctx, msg.Body))
		}
	}
}

func settle(logger *zap.Logger, queue string, msg amqp.Delivery, outcome Outcome) {
	var err error
	switch outcome {
	case Ack:
		err = msg.Ack(false)
	case Requeue:
		err = msg.Nack(false, true)
	default:
		err = msg.Nack(false, false)
	}
	if err != nil {
		logger.Warn("commands.settle_failed",
			zap.String("queue", queue),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
	metrics.IncCommand(queue, string(outcome))
}

// HandleSubmit runs one submit command. Workflow failures are rejected
// because quotes expire; a retry must come in as a new command.
func (c *Consumer) HandleSubmit(ctx context.Context, body []byte) Outcome {
	var form orders.OrderForm
	if err := json.Unmarshal(body, &form); err != nil {
		c.logger.Error("commands.submit.decode_failed", zap.Error(err))
		return Reject
	}

	res, err := c.service.SubmitOrder(ctx, form)
	if err != nil {
		if errors.Is(err, orders.ErrSubmissionInFlight) {
			c.logger.Info("commands.submit.busy", zap.String("maker", form.Maker))
			return Requeue
		}
		c.logger.Error("commands.submit.failed",
			zap.String("maker", form.Maker),
			zap.String("order_type", string(form.OrderType)),
			zap.Error(err))
		return Reject
	}

	c.logger.Info("commands.submit.done",
		zap.String("maker", form.Maker),
		zap.String("quote_id", res.QuoteID))
	return Ack
}

// HandleCancel runs one cancel command. Only transient backend failures
// are requeued.
func (c *Consumer) HandleCancel(ctx context.Context, body []byte) Outcome {
	var cmd CancelCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		c.logger.Error("commands.cancel.decode_failed", zap.Error(err))
		return Reject
	}
	if strings.TrimSpace(cmd.OrderID) == "" {
		c.logger.Error("commands.cancel.missing_order_id")
		return Reject
	}

	if _, err := c.service.CancelOrder(ctx, cmd.OrderID); err != nil {
		outcome := Reject
		if transient(err) {
			outcome = Requeue
		}
		c.logger.Error("commands.cancel.failed",
			zap.String("order_id", cmd.OrderID),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
		return outcome
	}

	c.logger.Info("commands.cancel.done", zap.String("order_id", cmd.OrderID))
	return Ack
}

// transient reports whether err may succeed on redelivery: 5xx and 429
// responses, and failures that never reached the backend.
func transient(err error) bool {
	if apiErr, ok := bankr.AsAPIError(err); ok {
		return apiErr.Status >= 500 || apiErr.Status == 429
	}
	var wfErr *orders.WorkflowError
	var formErr *orders.FormError
	switch {
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, orders.ErrNotCancellable),
		errors.Is(err, orders.ErrMissingProtocolData),
		errors.Is(err, context.Canceled),
		errors.As(err, &wfErr),
		errors.As(err, &formErr),
		errors.Is(err, wallet.ErrNoWallet),
		errors.Is(err, wallet.ErrUserRejected),
		errors.Is(err, wallet.ErrChainMismatch):
		return false
	}
	return true
}

// Close stops consuming and closes the connection.
func (c *Consumer) Close() error {
	close(c.done)
	c.wg.Wait()

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
