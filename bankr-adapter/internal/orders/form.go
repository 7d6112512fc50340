package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/pricing"
	"github.com/Checker-Finance/orders/pkg/model"
)

const (
	MinIntervalSeconds     = 300
	MinExpirationHours     = 1
	MaxSlippageBps         = 2000
	DefaultSlippageBps     = 100
	DefaultExpirationHours = 24
	DefaultIntervalSeconds = 600
	DefaultMaxExecutions   = 5
	DefaultAppFeeBps       = 20
	DefaultAppFeeRecipient = "0x2c64307F73F650e03299eb33b8a00A0d3ED442c2"

	marketQuoteSlippageBps = 100
)

// OrderForm is user input for a new order. Amounts are human decimals;
// tokens may be given by address or by a known symbol.
type OrderForm struct {
	Maker           string          `json:"maker"`
	OrderType       model.OrderType `json:"orderType"`
	ChainID         int64           `json:"chainId"`
	SellToken       string          `json:"sellToken"`
	BuyToken        string          `json:"buyToken"`
	SellAmount      string          `json:"sellAmount"`
	SellDecimals    *int32          `json:"sellDecimals,omitempty"`
	TriggerPrice    string          `json:"triggerPrice,omitempty"`
	Trailing        bool            `json:"trailing,omitempty"`
	Interval        *int64          `json:"interval,omitempty"`
	MaxExecutions   *int            `json:"maxExecutions,omitempty"`
	SlippageBps     *int            `json:"slippageBps,omitempty"`
	ExpirationHours *int            `json:"expirationHours,omitempty"`
	AllowPartial    *bool           `json:"allowPartial,omitempty"`
}

// PriceQuery asks for the current market price of a prospective order.
type PriceQuery struct {
	Maker        string          `json:"maker"`
	OrderType    model.OrderType `json:"orderType"`
	ChainID      int64           `json:"chainId"`
	SellToken    string          `json:"sellToken"`
	BuyToken     string          `json:"buyToken"`
	SellAmount   string          `json:"sellAmount"`
	SellDecimals *int32          `json:"sellDecimals,omitempty"`
}

// FormError is a validation failure on a single form field.
type FormError struct {
	Field   string
	Message string
}

func (e *FormError) Error() string {
	return e.Field + ": " + e.Message
}

func formErr(field, format string, args ...any) *FormError {
	return &FormError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// BuilderConfig configures the app fee and defaults applied to every quote.
type BuilderConfig struct {
	AppFeeBps          int
	AppFeeRecipient    string
	DefaultSlippageBps int
}

// QuoteBuilder turns validated form input into quote requests.
type QuoteBuilder struct {
	cfg BuilderConfig
	now func() time.Time
}

// NewQuoteBuilder applies defaults to zero fields of cfg.
func NewQuoteBuilder(cfg BuilderConfig) *QuoteBuilder {
	if cfg.AppFeeRecipient == "" {
		cfg.AppFeeRecipient = DefaultAppFeeRecipient
		if cfg.AppFeeBps == 0 {
			cfg.AppFeeBps = DefaultAppFeeBps
		}
	}
	if cfg.DefaultSlippageBps <= 0 {
		cfg.DefaultSlippageBps = DefaultSlippageBps
	}
	return &QuoteBuilder{cfg: cfg, now: time.Now}
}

// Build validates f and returns a fresh QuoteRequest.
func (b *QuoteBuilder) Build(f OrderForm) (model.QuoteRequest, error) {
	if !f.OrderType.Valid() {
		return model.QuoteRequest{}, formErr("orderType", "invalid order type %q", f.OrderType)
	}
	leg, err := b.resolveLeg(f.Maker, f.ChainID, f.SellToken, f.BuyToken, f.SellAmount, f.SellDecimals)
	if err != nil {
		return model.QuoteRequest{}, err
	}
	cfg, err := buildConfig(f)
	if err != nil {
		return model.QuoteRequest{}, err
	}

	slippage := b.cfg.DefaultSlippageBps
	if f.SlippageBps != nil {
		slippage = *f.SlippageBps
	}
	if slippage < 0 || slippage > MaxSlippageBps {
		return model.QuoteRequest{}, formErr("slippageBps", "must be between 0 and %d", MaxSlippageBps)
	}

	hours := DefaultExpirationHours
	if f.ExpirationHours != nil {
		hours = *f.ExpirationHours
	}
	if hours < MinExpirationHours {
		return model.QuoteRequest{}, formErr("expirationHours", "must be at least %d", MinExpirationHours)
	}

	q := b.base(leg)
	q.OrderType = f.OrderType
	q.Config = cfg
	q.SlippageBps = slippage
	q.ExpirationDate = b.now().Add(time.Duration(hours) * time.Hour).Unix()
	q.AllowPartial = f.AllowPartial
	return q, nil
}

// MarketQuote builds the probe request used to read the market price: a
// limit-buy with a placeholder trigger price of 1 and 1% slippage.
func (b *QuoteBuilder) MarketQuote(pq PriceQuery) (model.QuoteRequest, error) {
	leg, err := b.resolveLeg(pq.Maker, pq.ChainID, pq.SellToken, pq.BuyToken, pq.SellAmount, pq.SellDecimals)
	if err != nil {
		return model.QuoteRequest{}, err
	}
	q := b.base(leg)
	q.OrderType = model.OrderTypeLimitBuy
	q.Config = model.LimitOrderConfig{TriggerPrice: model.NewNumber(decimal.NewFromInt(1))}
	q.SlippageBps = marketQuoteSlippageBps
	q.ExpirationDate = b.now().Add(DefaultExpirationHours * time.Hour).Unix()
	return q, nil
}

type leg struct {
	maker     string
	chainID   int64
	sellToken string
	buyToken  string
	sellRaw   string
}

func (b *QuoteBuilder) resolveLeg(maker string, chainID int64, sellToken, buyToken, amount string, decimals *int32) (leg, error) {
	if !common.IsHexAddress(maker) {
		return leg{}, formErr("maker", "invalid address %q", maker)
	}
	if !model.SupportedChain(chainID) {
		return leg{}, formErr("chainId", "unsupported chain %d", chainID)
	}
	sell, err := resolveToken(chainID, "sellToken", sellToken)
	if err != nil {
		return leg{}, err
	}
	buy, err := resolveToken(chainID, "buyToken", buyToken)
	if err != nil {
		return leg{}, err
	}
	if strings.EqualFold(sell, buy) {
		return leg{}, formErr("buyToken", "must differ from sellToken")
	}

	amt, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return leg{}, formErr("sellAmount", "invalid amount %q", amount)
	}
	if !amt.IsPositive() {
		return leg{}, formErr("sellAmount", "must be greater than 0")
	}
	dec := model.TokenDecimals(chainID, sell)
	if decimals != nil {
		dec = *decimals
	}
	raw := pricing.ToBaseUnits(amt, dec)
	if raw == "0" {
		return leg{}, formErr("sellAmount", "below the token's smallest unit")
	}
	return leg{maker: maker, chainID: chainID, sellToken: sell, buyToken: buy, sellRaw: raw}, nil
}

func (b *QuoteBuilder) base(l leg) model.QuoteRequest {
	q := model.QuoteRequest{
		Maker:      l.maker,
		ChainID:    l.chainID,
		SellToken:  l.sellToken,
		BuyToken:   l.buyToken,
		SellAmount: l.sellRaw,
	}
	if b.cfg.AppFeeRecipient != "" && b.cfg.AppFeeBps > 0 {
		fee := b.cfg.AppFeeBps
		q.AppFeeBps = &fee
		q.AppFeeRecipient = b.cfg.AppFeeRecipient
	}
	return q
}

// resolveToken accepts an address or a known symbol and returns an address.
func resolveToken(chainID int64, field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", formErr(field, "is required")
	}
	if common.IsHexAddress(v) {
		return v, nil
	}
	if t, ok := model.LookupToken(chainID, v); ok {
		return t.Address, nil
	}
	return "", formErr(field, "unknown token %q on %s", v, model.ChainName(chainID))
}

func buildConfig(f OrderForm) (model.OrderConfig, error) {
	if f.OrderType.IsTimeInterval() {
		interval := int64(DefaultIntervalSeconds)
		if f.Interval != nil {
			interval = *f.Interval
		}
		if interval < MinIntervalSeconds {
			return nil, formErr("interval", "must be at least %d seconds", MinIntervalSeconds)
		}
		maxExec := DefaultMaxExecutions
		if f.MaxExecutions != nil {
			maxExec = *f.MaxExecutions
		}
		if maxExec < 1 {
			return nil, formErr("maxExecutions", "must be at least 1")
		}
		return model.TimeIntervalOrderConfig{Interval: interval, MaxExecutions: maxExec}, nil
	}

	if strings.TrimSpace(f.TriggerPrice) == "" {
		return nil, formErr("triggerPrice", "is required")
	}
	trigger, err := decimal.NewFromString(strings.TrimSpace(f.TriggerPrice))
	if err != nil {
		return nil, formErr("triggerPrice", "invalid price %q", f.TriggerPrice)
	}
	if !trigger.IsPositive() {
		return nil, formErr("triggerPrice", "must be greater than 0")
	}
	if f.OrderType.IsStop() {
		return model.StopOrderConfig{TriggerPrice: model.NewNumber(trigger), Trailing: f.Trailing}, nil
	}
	return model.LimitOrderConfig{TriggerPrice: model.NewNumber(trigger)}, nil
}
