package model

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── OrderType ────────────────────────────────────────────────────────────────

func TestOrderType_Direction(t *testing.T) {
	assert.True(t, OrderTypeLimitSell.IsSellDirection())
	assert.True(t, OrderTypeStopSell.IsSellDirection())
	assert.False(t, OrderTypeLimitBuy.IsSellDirection())
	assert.False(t, OrderTypeDCA.IsSellDirection())

	assert.True(t, OrderTypeTWAP.IsTimeInterval())
	assert.False(t, OrderTypeStopBuy.IsTimeInterval())
	assert.Equal(t, "Stop Buy", OrderTypeStopBuy.Label())
}

func TestParseOrderType(t *testing.T) {
	ot, err := ParseOrderType(" Limit-Sell ")
	require.NoError(t, err)
	assert.Equal(t, OrderTypeLimitSell, ot)

	_, err = ParseOrderType("market")
	assert.Error(t, err)
}

// ─── OrderStatus ──────────────────────────────────────────────────────────────

func TestOrderStatus_Cancellable(t *testing.T) {
	for _, s := range []OrderStatus{StatusOpen, StatusReady, StatusPaused} {
		assert.True(t, s.Cancellable(), s)
		assert.False(t, s.Terminal(), s)
	}
	for _, s := range []OrderStatus{StatusPending, StatusCompleted, StatusCancelled, StatusExpired, StatusError} {
		assert.False(t, s.Cancellable(), s)
	}
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.Equal(t, "Cancelled", StatusCancelled.Label())
}

// ─── QuoteRequest config variants ─────────────────────────────────────────────

func TestQuoteRequest_DecodesConfigByOrderType(t *testing.T) {
	cases := []struct {
		name string
		body string
		want OrderConfig
	}{
		{
			name: "limit",
			body: `{"orderType":"limit-buy","config":{"triggerPrice":1.5}}`,
			want: LimitOrderConfig{TriggerPrice: NewNumber(decimal.RequireFromString("1.5"))},
		},
		{
			name: "stop",
			body: `{"orderType":"stop-sell","config":{"triggerPrice":2,"trailing":true}}`,
			want: StopOrderConfig{TriggerPrice: NewNumber(decimal.NewFromInt(2)), Trailing: true},
		},
		{
			name: "time interval",
			body: `{"orderType":"twap","config":{"interval":300,"maxExecutions":4}}`,
			want: TimeIntervalOrderConfig{Interval: 300, MaxExecutions: 4},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var q QuoteRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &q))
			switch want := tc.want.(type) {
			case LimitOrderConfig:
				got, ok := q.Config.(LimitOrderConfig)
				require.True(t, ok)
				assert.True(t, want.TriggerPrice.Equal(got.TriggerPrice.Decimal))
			case StopOrderConfig:
				got, ok := q.Config.(StopOrderConfig)
				require.True(t, ok)
				assert.True(t, want.TriggerPrice.Equal(got.TriggerPrice.Decimal))
				assert.Equal(t, want.Trailing, got.Trailing)
			default:
				assert.Equal(t, tc.want, q.Config)
			}
		})
	}
}

func TestQuoteRequest_TriggerPriceIsBareNumber(t *testing.T) {
	q := QuoteRequest{
		Maker:     "0xabc",
		OrderType: OrderTypeLimitBuy,
		Config:    LimitOrderConfig{TriggerPrice: NewNumber(decimal.RequireFromString("0.25"))},
		ChainID:   ChainBase,
	}
	b, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"config":{"triggerPrice":0.25}`)
	assert.NotContains(t, string(b), "appFeeBps")
}

func TestDecodeOrderConfig_UnknownOrderTypeFails(t *testing.T) {
	_, err := DecodeOrderConfig("market", json.RawMessage(`{}`))
	assert.EqualError(t, err, `invalid order type: "market"`)
}

func TestQuoteRequest_UnknownOrderTypeKeptRaw(t *testing.T) {
	var q QuoteRequest
	require.NoError(t, json.Unmarshal([]byte(`{"orderType":"market","config":{"slices":3}}`), &q))
	assert.Equal(t, OrderType("market"), q.OrderType)

	raw, ok := q.Config.(RawOrderConfig)
	require.True(t, ok)
	assert.JSONEq(t, `{"slices":3}`, string(raw))

	_, hasTrigger := TriggerPrice(q.Config)
	assert.False(t, hasTrigger)

	b, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"config":{"slices":3}`)
}

func TestQuoteRequest_MalformedConfigKeptRaw(t *testing.T) {
	var q QuoteRequest
	require.NoError(t, json.Unmarshal([]byte(`{"orderType":"limit-buy","config":{"triggerPrice":{"v":1}}}`), &q))
	assert.IsType(t, RawOrderConfig(nil), q.Config)
}

// ─── QuoteResponse actions ────────────────────────────────────────────────────

const quoteJSON = `{
  "quoteId": "q-1",
  "actions": [
    {"type":"approval","to":"0xToken","data":"0x095ea7b3","value":"0"},
    {"type":"orderSignature","typedData":{
      "domain":{"name":"BankrOrders","version":"1","chainId":8453,"verifyingContract":"0x0000000000000000000000000000000000000001"},
      "types":{"Order":[{"name":"maker","type":"address"}]},
      "primaryType":"Order",
      "message":{"maker":"0x0000000000000000000000000000000000000002"}
    }},
    {"type":"permit2","foo":"bar"}
  ],
  "metadata": {
    "sellToken":{"address":"0xA","decimals":6,"amount":{"raw":"1000000","formatted":"1"}},
    "buyToken":{"address":"0xB","decimals":18,"amount":null},
    "marketBuyAmount":{"address":"0xB","decimals":18,"amount":{"raw":"500000000000000","formatted":"0.0005"}}
  }
}`

func TestQuoteResponse_DecodesActionsInOrder(t *testing.T) {
	var q QuoteResponse
	require.NoError(t, json.Unmarshal([]byte(quoteJSON), &q))

	require.Len(t, q.Actions, 3)
	assert.Equal(t, ActionTypeApproval, q.Actions[0].ActionType())
	assert.Equal(t, ActionTypeOrderSignature, q.Actions[1].ActionType())
	assert.Equal(t, "permit2", q.Actions[2].ActionType())

	appr, ok := q.Approval()
	require.True(t, ok)
	assert.Equal(t, "0xToken", appr.To)

	sig, ok := q.OrderSignature()
	require.True(t, ok)
	assert.Equal(t, "Order", sig.TypedData.PrimaryType)
	assert.Equal(t, "BankrOrders", sig.TypedData.Domain.Name)
	assert.EqualValues(t, 8453, (*big.Int)(sig.TypedData.Domain.ChainId).Int64())

	assert.Equal(t, "1000000", q.Metadata.SellToken.Amount.Raw)
	assert.Nil(t, q.Metadata.BuyToken.Amount)
	require.NotNil(t, q.Metadata.MarketBuyAmount)
	assert.EqualValues(t, 18, q.Metadata.MarketBuyAmount.Decimals)
}

func TestQuoteResponse_NoApproval(t *testing.T) {
	var q QuoteResponse
	require.NoError(t, json.Unmarshal([]byte(`{"quoteId":"q","actions":[]}`), &q))
	_, ok := q.Approval()
	assert.False(t, ok)
	_, ok = q.OrderSignature()
	assert.False(t, ok)
}

func TestApprovalAction_MarshalIncludesType(t *testing.T) {
	b, err := json.Marshal(ApprovalAction{To: "0x1", Data: "0x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"approval","to":"0x1","data":"0x"}`, string(b))
}

// ─── ExternalOrder ────────────────────────────────────────────────────────────

func TestExternalOrder_Decode(t *testing.T) {
	body := `{
	  "orderId":"ord-1","orderType":"limit-sell","chainArch":"EVM","chainId":8453,
	  "sellToken":{"address":"0xA","decimals":18},"buyToken":{"address":"0xB","decimals":6},
	  "slippageBps":100,"createdAt":1,"expiresAt":2,"status":"open",
	  "quoteRequest":{"maker":"0xMaker","orderType":"limit-sell","config":{"triggerPrice":3000},"chainId":8453},
	  "protocolData":{"protocol":"bankr","protocolAddress":"0xC0ffee","data":{"order":{},"orderSignature":"0x"}}
	}`
	var o ExternalOrder
	require.NoError(t, json.Unmarshal([]byte(body), &o))
	assert.Equal(t, "0xMaker", o.Maker())
	assert.Equal(t, "0xC0ffee", o.VerifyingContract())
	tp, ok := TriggerPrice(o.QuoteRequest.Config)
	require.True(t, ok)
	assert.Equal(t, "3000", tp.String())
}

func TestLookupToken(t *testing.T) {
	tok, ok := LookupToken(ChainBase, "usdc")
	require.True(t, ok)
	assert.EqualValues(t, 6, tok.Decimals)

	assert.EqualValues(t, 6, TokenDecimals(ChainBase, "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"))
	assert.EqualValues(t, DefaultTokenDecimals, TokenDecimals(ChainBase, "0xdead"))
	assert.Equal(t, "Unichain", ChainName(ChainUnichain))
	assert.False(t, SupportedChain(10))
}

func TestQuoteMetadata_MarketBuy(t *testing.T) {
	var top QuoteMetadata
	require.NoError(t, json.Unmarshal([]byte(`{
	  "buyToken":{"address":"0xB","decimals":6},
	  "marketBuyAmount":{"address":"0xB","decimals":18,"amount":{"raw":"5","formatted":"0"}}
	}`), &top))
	amt, dec := top.MarketBuy()
	require.NotNil(t, amt)
	assert.Equal(t, "5", amt.Raw)
	assert.EqualValues(t, 18, dec)

	var nested QuoteMetadata
	require.NoError(t, json.Unmarshal([]byte(`{
	  "buyToken":{"address":"0xB","decimals":6,"marketBuyAmount":{"raw":"7","formatted":"0"}}
	}`), &nested))
	amt, dec = nested.MarketBuy()
	require.NotNil(t, amt)
	assert.Equal(t, "7", amt.Raw)
	assert.EqualValues(t, 6, dec)

	amt, _ = QuoteMetadata{}.MarketBuy()
	assert.Nil(t, amt)
}

func TestCancelOrderResponse_ErrorShapes(t *testing.T) {
	var obj CancelOrderResponse
	require.NoError(t, json.Unmarshal([]byte(`{"status":"open","success":false,"error":{"type":"Forbidden","message":"not owner"}}`), &obj))
	require.NotNil(t, obj.Error)
	assert.Equal(t, "Forbidden", obj.Error.Type)
	assert.Equal(t, "not owner", obj.Error.Message)

	var str CancelOrderResponse
	require.NoError(t, json.Unmarshal([]byte(`{"success":false,"error":"already cancelled"}`), &str))
	require.NotNil(t, str.Error)
	assert.Equal(t, "already cancelled", str.Error.Message)
}
