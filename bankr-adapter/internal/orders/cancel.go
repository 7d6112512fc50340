package orders

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/bankr"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/wallet"
	"github.com/Checker-Finance/orders/internal/metrics"
	"github.com/Checker-Finance/orders/pkg/model"
)

const (
	cancelDomainName    = "BankrOrders"
	cancelDomainVersion = "1"
	cancelPrimaryType   = "CancelOrder"

	// DefaultCancelFailure is reported when success:false carries no message.
	DefaultCancelFailure = "Cancel failed"
)

// ErrMissingProtocolData means the order has no recorded verifying contract.
var ErrMissingProtocolData = errors.New("unable to cancel: order is missing protocol data")

// CancelGateway is the part of the backend the cancellation workflow calls.
type CancelGateway interface {
	CancelOrder(ctx context.Context, orderID, signature string) (*model.CancelOrderResponse, error)
}

// Canceller signs and sends cancellations. Eligibility by status is left to
// callers; the backend is the authority.
type Canceller struct {
	logger  *zap.Logger
	gateway CancelGateway
	wallet  wallet.Wallet
}

func NewCanceller(logger *zap.Logger, gw CancelGateway, w wallet.Wallet) *Canceller {
	return &Canceller{logger: logger, gateway: gw, wallet: w}
}

// CancelTypedData is the payload signed to cancel orderID. The domain is the
// order's own chain and the contract it was signed against.
func CancelTypedData(orderID string, chainID int64, verifyingContract string) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			cancelPrimaryType: []apitypes.Type{{Name: "orderId", Type: "string"}},
		},
		PrimaryType: cancelPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              cancelDomainName,
			Version:           cancelDomainVersion,
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: verifyingContract,
		},
		Message: apitypes.TypedDataMessage{"orderId": orderID},
	}
}

// Cancel signs CancelOrder{orderId} and calls the cancel endpoint. A
// success:false response is returned as *bankr.APIError, the same as a
// transport failure.
func (c *Canceller) Cancel(ctx context.Context, order *model.ExternalOrder) (*model.CancelOrderResponse, error) {
	start := time.Now()
	resp, err := c.cancel(ctx, order)
	result := "success"
	if err != nil {
		result = "failed"
		metrics.IncWorkflowFailure("cancel", "cancel")
	}
	metrics.ObserveDuration(metrics.WorkflowDuration, start, "cancel", result)
	return resp, err
}

func (c *Canceller) cancel(ctx context.Context, order *model.ExternalOrder) (*model.CancelOrderResponse, error) {
	contract := order.VerifyingContract()
	if contract == "" || !common.IsHexAddress(contract) {
		c.logger.Warn("orders.cancel_missing_protocol_data", zap.String("order_id", order.OrderID))
		return nil, ErrMissingProtocolData
	}
	if c.wallet == nil {
		return nil, wallet.ErrNoWallet
	}

	sig, err := c.wallet.SignTypedData(ctx, CancelTypedData(order.OrderID, order.ChainID, contract))
	if err != nil {
		c.logger.Warn("orders.cancel_sign_failed", zap.String("order_id", order.OrderID), zap.Error(err))
		return nil, err
	}

	resp, err := c.gateway.CancelOrder(ctx, order.OrderID, wallet.EncodeSignature(sig))
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		apiErr := &bankr.APIError{Status: 200, Message: DefaultCancelFailure}
		if resp.Error != nil {
			apiErr.Type = resp.Error.Type
			if resp.Error.Message != "" {
				apiErr.Message = resp.Error.Message
			}
		}
		c.logger.Warn("orders.cancel_rejected",
			zap.String("order_id", order.OrderID),
			zap.String("type", apiErr.Type),
			zap.String("message", apiErr.Message))
		return resp, apiErr
	}

	c.logger.Info("orders.cancelled",
		zap.String("order_id", order.OrderID),
		zap.String("status", resp.Status))
	return resp, nil
}
