package orders

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/wallet"
	"github.com/Checker-Finance/orders/pkg/model"
)

const (
	testMaker    = "0x00000000000000000000000000000000000000aA"
	testContract = "0xEEc572a465E8552129E0A715Fe5121F2C121CB10"
	usdcBase     = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	wethBase     = "0x4200000000000000000000000000000000000006"
)

// ─── Fake wallet ──────────────────────────────────────────────────────────────

type fakeWallet struct {
	mu            sync.Mutex
	address       common.Address
	sendErr       error
	signErr       error
	receiptStatus uint64
	sent          []wallet.TxRequest
	signed        []apitypes.TypedData
	calls         []string
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{address: common.HexToAddress(testMaker), receiptStatus: types.ReceiptStatusSuccessful}
}

func (w *fakeWallet) Address() common.Address { return w.address }

func (w *fakeWallet) ChainID() int64 { return model.ChainBase }

func (w *fakeWallet) SendTransaction(_ context.Context, tx wallet.TxRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "send")
	if w.sendErr != nil {
		return common.Hash{}, w.sendErr
	}
	w.sent = append(w.sent, tx)
	return common.HexToHash("0xabc1"), nil
}

func (w *fakeWallet) WaitForReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "wait")
	return &types.Receipt{TxHash: h, Status: w.receiptStatus, BlockNumber: big.NewInt(1)}, nil
}

func (w *fakeWallet) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "sign")
	if w.signErr != nil {
		return nil, w.signErr
	}
	w.signed = append(w.signed, data)
	sig := make([]byte, 65)
	sig[64] = 27
	return sig, nil
}

func (w *fakeWallet) signCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.signed)
}

// ─── Fake gateway ─────────────────────────────────────────────────────────────

type fakeGateway struct {
	mu         sync.Mutex
	quote      *model.QuoteResponse
	quoteErr   error
	submitted  *model.ExternalOrder
	submitErr  error
	orders     map[string]*model.ExternalOrder
	getErr     error
	cancelResp *model.CancelOrderResponse
	cancelErr  error
	listFn     func(req model.ListOrdersRequest) (*model.ListOrdersResponse, error)

	quoteReqs  []model.QuoteRequest
	submitReqs []model.SubmitRequest
	listReqs   []model.ListOrdersRequest
	cancelSigs []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: map[string]*model.ExternalOrder{}}
}

func (g *fakeGateway) CreateQuote(_ context.Context, req model.QuoteRequest) (*model.QuoteResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quoteReqs = append(g.quoteReqs, req)
	if g.quoteErr != nil {
		return nil, g.quoteErr
	}
	return g.quote, nil
}

func (g *fakeGateway) SubmitOrder(_ context.Context, req model.SubmitRequest) (*model.ExternalOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitReqs = append(g.submitReqs, req)
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	return g.submitted, nil
}

func (g *fakeGateway) GetOrder(_ context.Context, id string) (*model.ExternalOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	o, ok := g.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (g *fakeGateway) setOrder(o *model.ExternalOrder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[o.OrderID] = o
}

func (g *fakeGateway) ListOrders(_ context.Context, req model.ListOrdersRequest) (*model.ListOrdersResponse, error) {
	g.mu.Lock()
	g.listReqs = append(g.listReqs, req)
	fn := g.listFn
	g.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &model.ListOrdersResponse{}, nil
}

func (g *fakeGateway) listCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.listReqs)
}

func (g *fakeGateway) CancelOrder(_ context.Context, _ string, sig string) (*model.CancelOrderResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelSigs = append(g.cancelSigs, sig)
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	return g.cancelResp, nil
}

// ─── Fake publisher ───────────────────────────────────────────────────────────

type publishedEvent struct {
	name  string
	maker string
	corr  uuid.UUID
	data  any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishEvent(_ context.Context, name, maker string, corr uuid.UUID, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{name: name, maker: maker, corr: corr, data: payload})
	return nil
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.name)
	}
	return out
}

// ─── Fixtures ─────────────────────────────────────────────────────────────────

var errRejected = errors.New("user denied")

func orderSignatureAction() model.OrderSignatureAction {
	return model.OrderSignatureAction{TypedData: apitypes.TypedData{
		Types: apitypes.Types{
			"Order": []apitypes.Type{{Name: "maker", Type: "address"}},
		},
		PrimaryType: "Order",
		Domain:      apitypes.TypedDataDomain{Name: "BankrOrders", Version: "1", VerifyingContract: testContract},
		Message:     apitypes.TypedDataMessage{"maker": testMaker},
	}}
}

func approvalAction() model.ApprovalAction {
	return model.ApprovalAction{
		To:   usdcBase,
		Data: "0x095ea7b3",
	}
}

func quoteWith(actions ...model.QuoteAction) *model.QuoteResponse {
	return &model.QuoteResponse{QuoteID: "q-1", Actions: actions}
}

func openOrder(id string) *model.ExternalOrder {
	return &model.ExternalOrder{
		OrderID:   id,
		OrderType: model.OrderTypeLimitBuy,
		ChainID:   model.ChainBase,
		Status:    model.StatusOpen,
		QuoteRequest: &model.QuoteRequest{
			Maker:     testMaker,
			OrderType: model.OrderTypeLimitBuy,
		},
		ProtocolData: &model.ProtocolData{Protocol: "bankr", ProtocolAddress: testContract},
	}
}

func limitForm() OrderForm {
	return OrderForm{
		Maker:        testMaker,
		OrderType:    model.OrderTypeLimitBuy,
		ChainID:      model.ChainBase,
		SellToken:    "USDC",
		BuyToken:     "WETH",
		SellAmount:   "1",
		TriggerPrice: "2500",
	}
}

func newTestBuilder() *QuoteBuilder {
	b := NewQuoteBuilder(BuilderConfig{})
	b.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return b
}

func newTestService(t *testing.T, gw Gateway, w wallet.Wallet, pub EventPublisher) *Service {
	t.Helper()
	s := NewService(context.Background(), zap.NewNop(), gw, w, newTestBuilder(), nil, pub, ServiceConfig{
		PollInterval: 5 * time.Millisecond,
	})
	t.Cleanup(s.Close)
	return s
}
