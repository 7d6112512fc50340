package pricing

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/orders/pkg/model"
)

var (
	ErrMissingSellAmount      = errors.New("sellToken amount not available in response")
	ErrMissingMarketBuyAmount = errors.New("buyToken.marketBuyAmount not available in response")
	ErrNoLiquidity            = errors.New("no liquidity available")
)

// divisionPrecision is the number of fractional digits kept when dividing
// base-unit ratios. Token decimals top out at 18, so this leaves headroom
// for prices well below 1e-18.
const divisionPrecision = 36

// MarketPrice derives the current market price from quote metadata.
//
// Prices follow the backend trigger convention (quote token per base token):
// for sell-direction orders price = marketBuy / sell, otherwise
// price = sell / marketBuy, each scaled by the opposing token's decimals.
func MarketPrice(orderType model.OrderType, meta model.QuoteMetadata) (decimal.Decimal, error) {
	if meta.SellToken.Amount == nil || meta.SellToken.Amount.Raw == "" {
		return decimal.Zero, ErrMissingSellAmount
	}
	marketBuy, buyDecimals := meta.MarketBuy()
	if marketBuy == nil || marketBuy.Raw == "" {
		return decimal.Zero, ErrMissingMarketBuyAmount
	}

	sellRaw, err := parseRaw(meta.SellToken.Amount.Raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sell amount: %w", err)
	}
	marketBuyRaw, err := parseRaw(marketBuy.Raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("market buy amount: %w", err)
	}
	if marketBuyRaw.Sign() == 0 {
		return decimal.Zero, ErrNoLiquidity
	}

	return RawPrice(orderType.IsSellDirection(), sellRaw, meta.SellToken.Decimals, marketBuyRaw, buyDecimals)
}

// RawPrice computes the price from base-unit integers without float rounding.
func RawPrice(sellDirection bool, sellRaw *big.Int, sellDecimals int32, buyRaw *big.Int, buyDecimals int32) (decimal.Decimal, error) {
	var num, den *big.Int
	if sellDirection {
		num = new(big.Int).Mul(buyRaw, pow10(sellDecimals))
		den = new(big.Int).Mul(sellRaw, pow10(buyDecimals))
	} else {
		num = new(big.Int).Mul(sellRaw, pow10(buyDecimals))
		den = new(big.Int).Mul(buyRaw, pow10(sellDecimals))
	}
	if den.Sign() == 0 {
		return decimal.Zero, ErrNoLiquidity
	}
	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), divisionPrecision), nil
}

func parseRaw(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed base-unit integer %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative base-unit integer %q", s)
	}
	return v, nil
}

func pow10(n int32) *big.Int {
	if n <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ToBaseUnits converts a human decimal amount into a base-unit integer string.
// Digits beyond the token's precision are truncated.
func ToBaseUnits(amount decimal.Decimal, decimals int32) string {
	return amount.Shift(decimals).Truncate(0).String()
}
