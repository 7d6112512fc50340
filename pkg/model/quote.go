package model

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	ActionTypeApproval       = "approval"
	ActionTypeOrderSignature = "orderSignature"
)

// QuoteAction is one step the maker must perform before submitting a quote.
// Implementations: ApprovalAction, OrderSignatureAction, UnknownAction.
type QuoteAction interface {
	ActionType() string
}

// ApprovalAction is an on-chain token approval that must be mined first.
type ApprovalAction struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value,omitempty"`
}

func (ApprovalAction) ActionType() string { return ActionTypeApproval }

func (a ApprovalAction) MarshalJSON() ([]byte, error) {
	type alias ApprovalAction
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: ActionTypeApproval, alias: alias(a)})
}

// OrderSignatureAction carries the EIP-712 payload the maker signs. The typed
// data is kept exactly as the backend returned it.
type OrderSignatureAction struct {
	TypedData apitypes.TypedData `json:"typedData"`
}

func (OrderSignatureAction) ActionType() string { return ActionTypeOrderSignature }

func (a OrderSignatureAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string             `json:"type"`
		TypedData apitypes.TypedData `json:"typedData"`
	}{Type: ActionTypeOrderSignature, TypedData: a.TypedData})
}

// UnknownAction preserves an action type this service does not understand.
type UnknownAction struct {
	Type string
	Raw  json.RawMessage
}

func (a UnknownAction) ActionType() string { return a.Type }

func (a UnknownAction) MarshalJSON() ([]byte, error) { return a.Raw, nil }

// DecodeQuoteAction picks the action variant from its "type" field.
func DecodeQuoteAction(raw json.RawMessage) (QuoteAction, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode quote action: %w", err)
	}
	switch head.Type {
	case ActionTypeApproval:
		var a ApprovalAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode approval action: %w", err)
		}
		return a, nil
	case ActionTypeOrderSignature:
		var a OrderSignatureAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode order signature action: %w", err)
		}
		return a, nil
	default:
		return UnknownAction{Type: head.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

// QuoteMetadata describes both legs of a quote. The market buy amount is what
// the sell amount fetches at the current market price, before any trigger. The
// backend reports it either on the buy leg or as a top-level entry.
type QuoteMetadata struct {
	SellToken       QuoteTokenMetadata  `json:"sellToken"`
	BuyToken        QuoteTokenMetadata  `json:"buyToken"`
	MarketBuyAmount *QuoteTokenMetadata `json:"marketBuyAmount,omitempty"`
}

// MarketBuy returns the market buy amount and the decimals it is expressed in.
func (m QuoteMetadata) MarketBuy() (*Amount, int32) {
	if m.BuyToken.MarketBuyAmount != nil {
		return m.BuyToken.MarketBuyAmount, m.BuyToken.Decimals
	}
	if m.MarketBuyAmount != nil {
		return m.MarketBuyAmount.Amount, m.MarketBuyAmount.Decimals
	}
	return nil, m.BuyToken.Decimals
}

// QuoteResponse is returned by POST /quote. Actions are ordered and must be
// performed in that order.
type QuoteResponse struct {
	QuoteID  string        `json:"quoteId"`
	Actions  []QuoteAction `json:"actions"`
	Metadata QuoteMetadata `json:"metadata"`
}

func (q *QuoteResponse) UnmarshalJSON(b []byte) error {
	var aux struct {
		QuoteID  string            `json:"quoteId"`
		Actions  []json.RawMessage `json:"actions"`
		Metadata QuoteMetadata     `json:"metadata"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	actions := make([]QuoteAction, 0, len(aux.Actions))
	for _, raw := range aux.Actions {
		a, err := DecodeQuoteAction(raw)
		if err != nil {
			return err
		}
		actions = append(actions, a)
	}
	q.QuoteID = aux.QuoteID
	q.Actions = actions
	q.Metadata = aux.Metadata
	return nil
}

// Approval returns the first approval action, if any.
func (q *QuoteResponse) Approval() (*ApprovalAction, bool) {
	for _, a := range q.Actions {
		if v, ok := a.(ApprovalAction); ok {
			return &v, true
		}
	}
	return nil, false
}

// OrderSignature returns the first order signature action, if any.
func (q *QuoteResponse) OrderSignature() (*OrderSignatureAction, bool) {
	for _, a := range q.Actions {
		if v, ok := a.(OrderSignatureAction); ok {
			return &v, true
		}
	}
	return nil, false
}
