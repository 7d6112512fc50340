// Package wallet provides the maker's signing wallet: sending approval
// transactions, waiting for their receipts, and signing EIP-712 typed data.
package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var (
	ErrNoWallet       = errors.New("wallet not connected")
	ErrUserRejected   = errors.New("request rejected by wallet policy")
	ErrChainMismatch  = errors.New("chain id does not match wallet chain")
	ErrUnknownTx      = errors.New("transaction was not sent by this wallet")
	ErrInvalidTxInput = errors.New("invalid transaction request")
)

// TxRequest is an unsigned transaction as described by a quote action.
type TxRequest struct {
	To      common.Address
	Data    []byte
	Value   *big.Int
	ChainID int64
}

// Wallet is what the order workflows need from a signer.
type Wallet interface {
	Address() common.Address
	ChainID() int64
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}
