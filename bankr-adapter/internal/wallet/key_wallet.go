package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// ChainBackend is the subset of ethclient.Client the wallet uses.
type ChainBackend interface {
	bind.DeployBackend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Config configures a KeyWallet.
type Config struct {
	PrivateKey string // hex, 0x prefix optional
	ChainID    int64
	// AllowedContracts restricts approval targets and typed-data verifying
	// contracts. Empty allows any address.
	AllowedContracts []string
}

// KeyWallet signs with a local secp256k1 key and broadcasts through a
// ChainBackend.
type KeyWallet struct {
	logger  *zap.Logger
	backend ChainBackend
	key     *ecdsa.PrivateKey
	address common.Address
	chainID int64
	allowed map[common.Address]struct{}

	sendMu sync.Mutex // serialises nonce assignment
	mu     sync.Mutex
	sent   map[common.Hash]*types.Transaction
}

// NewKeyWallet builds a wallet from a hex private key.
func NewKeyWallet(logger *zap.Logger, backend ChainBackend, cfg Config) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if cfg.ChainID <= 0 {
		return nil, fmt.Errorf("invalid chain id %d", cfg.ChainID)
	}
	allowed := make(map[common.Address]struct{}, len(cfg.AllowedContracts))
	for _, a := range cfg.AllowedContracts {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("invalid allowed contract %q", a)
		}
		allowed[common.HexToAddress(a)] = struct{}{}
	}
	return &KeyWallet{
		logger:  logger,
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: cfg.ChainID,
		allowed: allowed,
		sent:    make(map[common.Hash]*types.Transaction),
	}, nil
}

// Dial connects to an RPC endpoint and returns a wallet bound to it.
func Dial(ctx context.Context, logger *zap.Logger, rpcURL string, cfg Config) (*KeyWallet, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rpc: %w", err)
	}
	w, err := NewKeyWallet(logger, client, cfg)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return w, client, nil
}

func (w *KeyWallet) Address() common.Address { return w.address }

func (w *KeyWallet) ChainID() int64 { return w.chainID }

// SendTransaction signs and broadcasts an EIP-1559 transaction.
func (w *KeyWallet) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	if req.ChainID != 0 && req.ChainID != w.chainID {
		return common.Hash{}, fmt.Errorf("%w: tx for %d, wallet on %d", ErrChainMismatch, req.ChainID, w.chainID)
	}
	if req.To == (common.Address{}) {
		return common.Hash{}, fmt.Errorf("%w: missing recipient", ErrInvalidTxInput)
	}
	if !w.isAllowed(req.To) {
		w.logger.Warn("wallet.tx_rejected", zap.String("to", req.To.Hex()))
		return common.Hash{}, fmt.Errorf("%w: %s is not an allowed contract", ErrUserRejected, req.To.Hex())
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	to := req.To
	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	chainID := big.NewInt(w.chainID)
	tx, err := types.SignNewTx(w.key, types.LatestSignerForChainID(chainID), &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	w.mu.Lock()
	w.sent[tx.Hash()] = tx
	w.mu.Unlock()

	w.logger.Info("wallet.tx_sent",
		zap.String("hash", tx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce))
	return tx.Hash(), nil
}

// WaitForReceipt blocks until the transaction is mined or ctx ends. A
// reverted transaction still returns its receipt; callers check Status.
func (w *KeyWallet) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	w.mu.Lock()
	tx, ok := w.sent[hash]
	w.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTx, hash.Hex())
	}

	receipt, err := bind.WaitMined(ctx, w.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait mined: %w", err)
	}

	w.mu.Lock()
	delete(w.sent, hash)
	w.mu.Unlock()

	w.logger.Info("wallet.tx_mined",
		zap.String("hash", hash.Hex()),
		zap.Uint64("status", receipt.Status),
		zap.Uint64("gas_used", receipt.GasUsed))
	return receipt, nil
}

// SignTypedData signs an EIP-712 payload exactly as given. The signature is
// 65 bytes r ‖ s ‖ v with v in {27, 28}.
func (w *KeyWallet) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	if data.Domain.ChainId != nil {
		if cid := (*big.Int)(data.Domain.ChainId); cid.Cmp(big.NewInt(w.chainID)) != 0 {
			return nil, fmt.Errorf("%w: typed data for %s, wallet on %d", ErrChainMismatch, cid, w.chainID)
		}
	}
	if vc := data.Domain.VerifyingContract; vc != "" && !w.isAllowed(common.HexToAddress(vc)) {
		w.logger.Warn("wallet.sign_rejected", zap.String("verifying_contract", vc))
		return nil, fmt.Errorf("%w: %s is not an allowed contract", ErrUserRejected, vc)
	}

	digest, err := TypedDataHash(data)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func (w *KeyWallet) isAllowed(addr common.Address) bool {
	if len(w.allowed) == 0 {
		return true
	}
	_, ok := w.allowed[addr]
	return ok
}
