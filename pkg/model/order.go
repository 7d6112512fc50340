package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderType identifies the conditional order strategy.
type OrderType string

const (
	OrderTypeLimitBuy  OrderType = "limit-buy"
	OrderTypeLimitSell OrderType = "limit-sell"
	OrderTypeStopBuy   OrderType = "stop-buy"
	OrderTypeStopSell  OrderType = "stop-sell"
	OrderTypeDCA       OrderType = "dca"
	OrderTypeTWAP      OrderType = "twap"
)

// OrderTypes lists every supported order type in display order.
var OrderTypes = []OrderType{
	OrderTypeLimitBuy,
	OrderTypeLimitSell,
	OrderTypeStopBuy,
	OrderTypeStopSell,
	OrderTypeDCA,
	OrderTypeTWAP,
}

// Valid returns true if the order type is one of the known constants.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeLimitBuy, OrderTypeLimitSell,
		OrderTypeStopBuy, OrderTypeStopSell,
		OrderTypeDCA, OrderTypeTWAP:
		return true
	default:
		return false
	}
}

// IsSellDirection reports whether the price is quoted as buy-token per sell-token.
func (t OrderType) IsSellDirection() bool {
	return t == OrderTypeLimitSell || t == OrderTypeStopSell
}

// IsTimeInterval reports whether the order executes on a schedule (DCA, TWAP).
func (t OrderType) IsTimeInterval() bool {
	return t == OrderTypeDCA || t == OrderTypeTWAP
}

func (t OrderType) IsStop() bool {
	return t == OrderTypeStopBuy || t == OrderTypeStopSell
}

// Label is the human-readable name of the order type.
func (t OrderType) Label() string {
	switch t {
	case OrderTypeLimitBuy:
		return "Limit Buy"
	case OrderTypeLimitSell:
		return "Limit Sell"
	case OrderTypeStopBuy:
		return "Stop Buy"
	case OrderTypeStopSell:
		return "Stop Sell"
	case OrderTypeDCA:
		return "DCA"
	case OrderTypeTWAP:
		return "TWAP"
	default:
		return string(t)
	}
}

func (t OrderType) String() string { return string(t) }

// ParseOrderType normalises user input into an OrderType.
func ParseOrderType(s string) (OrderType, error) {
	t := OrderType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("invalid order type: %q", s)
	}
	return t, nil
}

// OrderStatus is the backend lifecycle state of an order.
type OrderStatus string

const (
	StatusOpen      OrderStatus = "open"
	StatusReady     OrderStatus = "ready"
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
	StatusPaused    OrderStatus = "paused"
	StatusExpired   OrderStatus = "expired"
	StatusError     OrderStatus = "error"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusReady, StatusPending, StatusCompleted,
		StatusCancelled, StatusPaused, StatusExpired, StatusError:
		return true
	default:
		return false
	}
}

// Cancellable reports whether a cancel request makes sense for this status.
// The backend remains the authority.
func (s OrderStatus) Cancellable() bool {
	return s == StatusOpen || s == StatusReady || s == StatusPaused
}

// Terminal reports whether the order can no longer change state.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusError:
		return true
	default:
		return false
	}
}

func (s OrderStatus) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ParseOrderStatus normalises user input into an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid order status: %q", s)
	}
	return st, nil
}

// Number is a decimal that travels as a bare JSON number.
type Number struct {
	decimal.Decimal
}

func NewNumber(d decimal.Decimal) Number { return Number{Decimal: d} }

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

func (n *Number) UnmarshalJSON(b []byte) error {
	return n.Decimal.UnmarshalJSON(b)
}

// OrderConfig is the type-specific part of a quote request.
// Implementations: LimitOrderConfig, StopOrderConfig, TimeIntervalOrderConfig,
// RawOrderConfig.
type OrderConfig interface {
	orderConfig()
}

type LimitOrderConfig struct {
	TriggerPrice Number `json:"triggerPrice"`
}

type StopOrderConfig struct {
	TriggerPrice Number `json:"triggerPrice"`
	Trailing     bool   `json:"trailing,omitempty"`
}

type TimeIntervalOrderConfig struct {
	Interval      int64 `json:"interval"` // seconds
	MaxExecutions int   `json:"maxExecutions"`
}

func (LimitOrderConfig) orderConfig()        {}
func (StopOrderConfig) orderConfig()         {}
func (TimeIntervalOrderConfig) orderConfig() {}

// TriggerPrice returns the trigger price carried by cfg, if any.
func TriggerPrice(cfg OrderConfig) (decimal.Decimal, bool) {
	switch c := cfg.(type) {
	case LimitOrderConfig:
		return c.TriggerPrice.Decimal, true
	case *LimitOrderConfig:
		return c.TriggerPrice.Decimal, true
	case StopOrderConfig:
		return c.TriggerPrice.Decimal, true
	case *StopOrderConfig:
		return c.TriggerPrice.Decimal, true
	default:
		return decimal.Zero, false
	}
}

// RawOrderConfig is a config read back from the backend that does not match
// a known order type. It re-encodes exactly as received.
type RawOrderConfig json.RawMessage

func (RawOrderConfig) orderConfig() {}

func (c RawOrderConfig) MarshalJSON() ([]byte, error) { return []byte(c), nil }

// DecodeOrderConfig picks the config variant from the order type.
func DecodeOrderConfig(t OrderType, raw json.RawMessage) (OrderConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch {
	case t.IsTimeInterval():
		var c TimeIntervalOrderConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode %s config: %w", t, err)
		}
		return c, nil
	case t.IsStop():
		var c StopOrderConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode %s config: %w", t, err)
		}
		return c, nil
	case t == OrderTypeLimitBuy || t == OrderTypeLimitSell:
		var c LimitOrderConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode %s config: %w", t, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("invalid order type: %q", t)
	}
}

// QuoteRequest is the body of POST /quote. It is built fresh for every
// submission attempt and never reused once a workflow finished.
type QuoteRequest struct {
	Maker           string      `json:"maker"`
	OrderType       OrderType   `json:"orderType"`
	Config          OrderConfig `json:"config"`
	ChainID         int64       `json:"chainId"`
	SellToken       string      `json:"sellToken"`
	BuyToken        string      `json:"buyToken"`
	SellAmount      string      `json:"sellAmount"` // base units
	SlippageBps     int         `json:"slippageBps"`
	ExpirationDate  int64       `json:"expirationDate"` // unix seconds
	AppFeeBps       *int        `json:"appFeeBps,omitempty"`
	AppFeeRecipient string      `json:"appFeeRecipient,omitempty"`
	AllowPartial    *bool       `json:"allowPartial,omitempty"`
}

func (q *QuoteRequest) UnmarshalJSON(b []byte) error {
	type alias QuoteRequest
	aux := struct {
		*alias
		Config json.RawMessage `json:"config"`
	}{alias: (*alias)(q)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	// orders read back may carry types or shapes added after this build;
	// requests are validated when built, not when decoded
	cfg, err := DecodeOrderConfig(q.OrderType, aux.Config)
	if err != nil {
		q.Config = RawOrderConfig(append([]byte(nil), aux.Config...))
		return nil
	}
	q.Config = cfg
	return nil
}

// Amount carries a token quantity. Raw (base units) is authoritative;
// Formatted is display-only.
type Amount struct {
	Raw       string  `json:"raw"`
	Formatted string  `json:"formatted"`
	USDValue  *Number `json:"usdValue,omitempty"`
}

type TokenMetadata struct {
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol,omitempty"`
	Name     string  `json:"name,omitempty"`
	Image    string  `json:"image,omitempty"`
	Decimals int32   `json:"decimals"`
	Amount   *Amount `json:"amount,omitempty"`
}

// QuoteTokenMetadata is a token plus the amount the quote priced for it.
// The buy leg may also carry MarketBuyAmount, the amount the sell side
// fetches at the current market price.
type QuoteTokenMetadata struct {
	TokenMetadata
	MarketBuyAmount *Amount `json:"marketBuyAmount,omitempty"`
}

type SubmitRequest struct {
	QuoteID        string `json:"quoteId"`
	OrderSignature string `json:"orderSignature"`
}

type OrderFee struct {
	RecipientType string `json:"recipientType"` // Bankr | App
	FeeBps        int    `json:"feeBps"`
	FeeRecipient  string `json:"feeRecipient,omitempty"`
}

// ExecutionStatus is the outcome of a single execution attempt.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionPartial ExecutionStatus = "partial"
)

type ExecutionOutput struct {
	TxHash     string  `json:"txHash,omitempty"`
	SellAmount *Amount `json:"sellAmount,omitempty"`
	BuyAmount  *Amount `json:"buyAmount,omitempty"`
}

type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// UnmarshalJSON also accepts a bare string, which becomes the message.
func (e *ErrorDetail) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*e = ErrorDetail{Message: s}
		return nil
	}
	type alias ErrorDetail
	return json.Unmarshal(b, (*alias)(e))
}

type ExecutionHistoryEntry struct {
	ExecutedAt int64            `json:"executedAt"`
	Status     ExecutionStatus  `json:"status"`
	Output     *ExecutionOutput `json:"output,omitempty"`
	Error      *ErrorDetail     `json:"error,omitempty"`
}

// ProtocolData records the contract the order was signed against.
type ProtocolData struct {
	Protocol        string `json:"protocol"`
	ProtocolAddress string `json:"protocolAddress"`
	Data            struct {
		Order          map[string]any `json:"order"`
		OrderSignature string         `json:"orderSignature"`
	} `json:"data"`
}

// ExternalOrder is an order as persisted by the backend.
type ExternalOrder struct {
	OrderID                 string                  `json:"orderId"`
	OrderType               OrderType               `json:"orderType"`
	ChainArch               string                  `json:"chainArch"`
	ChainID                 int64                   `json:"chainId"`
	SellToken               TokenMetadata           `json:"sellToken"`
	BuyToken                TokenMetadata           `json:"buyToken"`
	SlippageBps             int                     `json:"slippageBps"`
	CreatedAt               int64                   `json:"createdAt"`
	ExpiresAt               int64                   `json:"expiresAt"`
	Status                  OrderStatus             `json:"status"`
	Fees                    []OrderFee              `json:"fees,omitempty"`
	QuoteRequest            *QuoteRequest           `json:"quoteRequest,omitempty"`
	SellAmount              *Amount                 `json:"sellAmount,omitempty"`
	BuyAmount               *Amount                 `json:"buyAmount,omitempty"`
	TotalSoldAmount         *Amount                 `json:"totalSoldAmount,omitempty"`
	TotalReceivedAmount     *Amount                 `json:"totalReceivedAmount,omitempty"`
	ExecutionHistory        []ExecutionHistoryEntry `json:"executionHistory,omitempty"`
	ExternalOrderIdentifier string                  `json:"externalOrderIdentifier,omitempty"`
	Trailing                bool                    `json:"trailing,omitempty"`
	TxHash                  string                  `json:"txHash,omitempty"`
	ProtocolData            *ProtocolData           `json:"protocolData,omitempty"`
}

// Maker returns the maker address recorded on the order's quote request.
func (o *ExternalOrder) Maker() string {
	if o.QuoteRequest == nil {
		return ""
	}
	return o.QuoteRequest.Maker
}

// VerifyingContract returns the contract the order was signed against.
func (o *ExternalOrder) VerifyingContract() string {
	if o.ProtocolData == nil {
		return ""
	}
	return o.ProtocolData.ProtocolAddress
}

type ListOrdersRequest struct {
	Maker  string      `json:"maker"`
	Type   OrderType   `json:"type,omitempty"`
	Status OrderStatus `json:"status,omitempty"`
	Cursor string      `json:"cursor,omitempty"`
}

type ListOrdersResponse struct {
	Orders []ExternalOrder `json:"orders"`
	Next   string          `json:"next,omitempty"`
}

type GetOrderResponse struct {
	Order *ExternalOrder `json:"order"`
}

type CancelOrderRequest struct {
	Signature string `json:"signature"`
}

type CancelOrderResponse struct {
	Status  string       `json:"status"`
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error,omitempty"`
}
