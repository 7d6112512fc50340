package orders

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/wallet"
	"github.com/Checker-Finance/orders/internal/metrics"
	"github.com/Checker-Finance/orders/pkg/model"
)

// Step is a state of the submission workflow.
type Step string

const (
	StepIdle       Step = "idle"
	StepQuoting    Step = "quoting"
	StepApproving  Step = "approving"
	StepSigning    Step = "signing"
	StepSubmitting Step = "submitting"
	StepSuccess    Step = "success"
	StepFailed     Step = "failed"
)

// User-facing failure messages.
const (
	MsgWalletNotConnected = "Wallet not connected"
	MsgTxRejected         = "Transaction rejected by user"
	MsgApprovalFailed     = "Approval transaction failed"
	MsgSignatureRejected  = "Signature request rejected by user"
	MsgMissingSignature   = "No order signature action in quote response"
)

// ErrMissingSignatureAction means the backend returned a quote that cannot be signed.
var ErrMissingSignatureAction = errors.New("no order signature action in quote response")

// WorkflowError is a failed submission. Message is the single string shown
// to the user; Err keeps the cause for errors.Is/As.
type WorkflowError struct {
	Step    Step
	Message string
	Err     error
}

func (e *WorkflowError) Error() string { return e.Message }

func (e *WorkflowError) Unwrap() error { return e.Err }

// AsWorkflowError unwraps err into a *WorkflowError.
func AsWorkflowError(err error) (*WorkflowError, bool) {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr, true
	}
	return nil, false
}

// SubmitResult is a successful submission.
type SubmitResult struct {
	Order      *model.ExternalOrder `json:"order"`
	QuoteID    string               `json:"quoteId"`
	ApprovalTx string               `json:"approvalTx,omitempty"`
	Steps      []Step               `json:"steps"`
}

// QuoteGateway is the part of the backend the submission workflow calls.
type QuoteGateway interface {
	CreateQuote(ctx context.Context, req model.QuoteRequest) (*model.QuoteResponse, error)
	SubmitOrder(ctx context.Context, req model.SubmitRequest) (*model.ExternalOrder, error)
}

// StepObserver is notified of every workflow transition, in order.
type StepObserver func(Step)

// Submitter drives quote -> approval -> signature -> submit for one maker
// wallet. It does not guard against concurrent submissions.
type Submitter struct {
	logger  *zap.Logger
	gateway QuoteGateway
	wallet  wallet.Wallet
}

// NewSubmitter wires the workflow. A nil wallet fails every submission.
func NewSubmitter(logger *zap.Logger, gw QuoteGateway, w wallet.Wallet) *Submitter {
	return &Submitter{logger: logger, gateway: gw, wallet: w}
}

type run struct {
	steps    []Step
	observer StepObserver
}

func (r *run) enter(s Step) {
	r.steps = append(r.steps, s)
	metrics.IncWorkflowStep(string(s))
	if r.observer != nil {
		r.observer(s)
	}
}

func (r *run) fail(step Step, msg string, err error) error {
	r.enter(StepFailed)
	metrics.IncWorkflowFailure("submit", string(step))
	if r.observer != nil {
		r.observer(StepIdle)
	}
	return &WorkflowError{Step: step, Message: msg, Err: err}
}

// Submit runs the workflow for a freshly built quote request. A failed run
// cannot be resumed: callers rebuild the request and call Submit again.
func (s *Submitter) Submit(ctx context.Context, req model.QuoteRequest, observer StepObserver) (*SubmitResult, error) {
	start := time.Now()
	r := &run{observer: observer}
	res, err := s.submit(ctx, req, r)
	result := "success"
	if err != nil {
		result = "failed"
	}
	metrics.ObserveDuration(metrics.WorkflowDuration, start, "submit", result)
	return res, err
}

func (s *Submitter) submit(ctx context.Context, req model.QuoteRequest, r *run) (*SubmitResult, error) {
	if s.wallet == nil {
		return nil, r.fail(StepIdle, MsgWalletNotConnected, wallet.ErrNoWallet)
	}

	r.enter(StepQuoting)
	quote, err := s.gateway.CreateQuote(ctx, req)
	if err != nil {
		s.logger.Warn("orders.quote_failed", zap.String("maker", req.Maker), zap.Error(err))
		return nil, r.fail(StepQuoting, err.Error(), err)
	}
	s.logger.Info("orders.quote_created",
		zap.String("maker", req.Maker),
		zap.String("quote_id", quote.QuoteID),
		zap.Int("actions", len(quote.Actions)))

	var approvalTx string
	if approval, ok := quote.Approval(); ok {
		r.enter(StepApproving)
		hash, err := s.approve(ctx, req.ChainID, approval)
		if err != nil {
			msg := MsgApprovalFailed
			if errors.Is(err, wallet.ErrUserRejected) {
				msg = MsgTxRejected
			}
			s.logger.Warn("orders.approval_failed",
				zap.String("quote_id", quote.QuoteID),
				zap.Error(err))
			return nil, r.fail(StepApproving, msg, err)
		}
		approvalTx = hash.Hex()
	}

	r.enter(StepSigning)
	action, ok := quote.OrderSignature()
	if !ok {
		s.logger.Error("orders.missing_signature_action", zap.String("quote_id", quote.QuoteID))
		return nil, r.fail(StepSigning, MsgMissingSignature, ErrMissingSignatureAction)
	}
	sig, err := s.wallet.SignTypedData(ctx, action.TypedData)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, wallet.ErrUserRejected) {
			msg = MsgSignatureRejected
		}
		s.logger.Warn("orders.sign_failed", zap.String("quote_id", quote.QuoteID), zap.Error(err))
		return nil, r.fail(StepSigning, msg, err)
	}

	r.enter(StepSubmitting)
	order, err := s.gateway.SubmitOrder(ctx, model.SubmitRequest{
		QuoteID:        quote.QuoteID,
		OrderSignature: wallet.EncodeSignature(sig),
	})
	if err != nil {
		s.logger.Warn("orders.submit_failed", zap.String("quote_id", quote.QuoteID), zap.Error(err))
		return nil, r.fail(StepSubmitting, err.Error(), err)
	}

	r.enter(StepSuccess)
	if r.observer != nil {
		r.observer(StepIdle)
	}
	return &SubmitResult{Order: order, QuoteID: quote.QuoteID, ApprovalTx: approvalTx, Steps: r.steps}, nil
}

// approve sends the approval transaction and waits for it to be mined.
func (s *Submitter) approve(ctx context.Context, chainID int64, a *model.ApprovalAction) (common.Hash, error) {
	tx, err := approvalTx(chainID, a)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := s.wallet.SendTransaction(ctx, tx)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := s.wallet.WaitForReceipt(ctx, hash)
	if err != nil {
		return hash, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, fmt.Errorf("approval %s reverted", hash.Hex())
	}
	return hash, nil
}

func approvalTx(chainID int64, a *model.ApprovalAction) (wallet.TxRequest, error) {
	if !common.IsHexAddress(a.To) {
		return wallet.TxRequest{}, fmt.Errorf("%w: approval target %q", wallet.ErrInvalidTxInput, a.To)
	}
	var data []byte
	if a.Data != "" {
		d, err := hexutil.Decode(a.Data)
		if err != nil {
			return wallet.TxRequest{}, fmt.Errorf("%w: approval data: %v", wallet.ErrInvalidTxInput, err)
		}
		data = d
	}
	value := new(big.Int)
	if a.Value != "" {
		v, ok := math.ParseBig256(a.Value)
		if !ok {
			return wallet.TxRequest{}, fmt.Errorf("%w: approval value %q", wallet.ErrInvalidTxInput, a.Value)
		}
		value = v
	}
	return wallet.TxRequest{
		To:      common.HexToAddress(a.To),
		Data:    data,
		Value:   value,
		ChainID: chainID,
	}, nil
}
