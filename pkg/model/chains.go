package model

import "strings"

const (
	ChainEthereum int64 = 1
	ChainUnichain int64 = 130
	ChainPolygon  int64 = 137
	ChainBase     int64 = 8453
)

// DefaultTokenDecimals applies to tokens missing from KnownTokens.
const DefaultTokenDecimals int32 = 18

var chainNames = map[int64]string{
	ChainBase:     "Base",
	ChainPolygon:  "Polygon",
	ChainEthereum: "Ethereum",
	ChainUnichain: "Unichain",
}

// ChainName returns the display name for a chain id, or "" if unsupported.
func ChainName(chainID int64) string {
	return chainNames[chainID]
}

// SupportedChain reports whether orders can be placed on chainID.
func SupportedChain(chainID int64) bool {
	_, ok := chainNames[chainID]
	return ok
}

// KnownToken is a commonly traded token on a chain.
type KnownToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

var KnownTokens = map[int64][]KnownToken{
	ChainBase: {
		{Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Symbol: "USDC", Decimals: 6},
		{Address: "0x4200000000000000000000000000000000000006", Symbol: "WETH", Decimals: 18},
		{Address: "0x22af33fe49fd1fa80c7149773dde5890d3c76f3b", Symbol: "BNKR", Decimals: 18},
	},
	ChainPolygon: {
		{Address: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", Symbol: "USDC", Decimals: 6},
		{Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Symbol: "WETH", Decimals: 18},
	},
	ChainEthereum: {
		{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6},
		{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Symbol: "WETH", Decimals: 18},
	},
	ChainUnichain: {
		{Address: "0x078D782b760474a361dDA0AF3839290b0EF57AD6", Symbol: "USDC", Decimals: 6},
		{Address: "0x4200000000000000000000000000000000000006", Symbol: "WETH", Decimals: 18},
	},
}

// LookupToken finds a known token by address (case-insensitive) or symbol.
func LookupToken(chainID int64, addressOrSymbol string) (KnownToken, bool) {
	for _, t := range KnownTokens[chainID] {
		if strings.EqualFold(t.Address, addressOrSymbol) || strings.EqualFold(t.Symbol, addressOrSymbol) {
			return t, true
		}
	}
	return KnownToken{}, false
}

// TokenDecimals returns the decimals of a known token or DefaultTokenDecimals.
func TokenDecimals(chainID int64, address string) int32 {
	if t, ok := LookupToken(chainID, address); ok {
		return t.Decimals
	}
	return DefaultTokenDecimals
}
