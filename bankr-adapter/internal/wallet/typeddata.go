package wallet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const domainType = "EIP712Domain"

// TypedDataHash returns the EIP-712 digest keccak256(0x19 0x01 ‖ domainSeparator ‖ hashStruct(message)).
// When the payload omits the EIP712Domain type, it is derived from the
// domain fields that are set.
func TypedDataHash(data apitypes.TypedData) ([]byte, error) {
	data = withDomainType(data)

	domainSeparator, err := data.HashStruct(domainType, data.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	messageHash, err := data.HashStruct(data.PrimaryType, data.Message)
	if err != nil {
		return nil, fmt.Errorf("hash message: %w", err)
	}

	raw := make([]byte, 0, 2+len(domainSeparator)+len(messageHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}

// withDomainType returns data with an EIP712Domain type entry. The caller's
// Types map is never mutated.
func withDomainType(data apitypes.TypedData) apitypes.TypedData {
	if _, ok := data.Types[domainType]; ok {
		return data
	}
	merged := make(apitypes.Types, len(data.Types)+1)
	for k, v := range data.Types {
		merged[k] = v
	}

	var fields []apitypes.Type
	d := data.Domain
	if d.Name != "" {
		fields = append(fields, apitypes.Type{Name: "name", Type: "string"})
	}
	if d.Version != "" {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	if d.ChainId != nil {
		fields = append(fields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if d.VerifyingContract != "" {
		fields = append(fields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	if d.Salt != "" {
		fields = append(fields, apitypes.Type{Name: "salt", Type: "bytes32"})
	}
	merged[domainType] = fields
	data.Types = merged
	return data
}

// EncodeSignature renders a 65-byte signature as 0x-prefixed hex.
func EncodeSignature(sig []byte) string {
	return hexutil.Encode(sig)
}
