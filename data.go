package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type PingResponse struct {
	Status string `json:"status"`
}

type VersionResponse struct {
	Version         string `json:"version"`
	MessageEncoding string `json:"messageEncoding"`
}

type AddressResponse struct {
	Address string `json:"address"`
}

type SupplyResponse struct {
	TotalSupply string `json:"totalSupply"`
}

type HashRequest struct {
	Recipient string `json:"recipient"`
	Nonce     string `json:"nonce"`
}

type HashResponse struct {
	Recipient string `json:"recipient"`
	Nonce     string `json:"nonce"`
	Hash      string `json:"hash"`
}

// AuthorizeRequest asks the signer for an approval. An empty Nonce means the live nonce.
type AuthorizeRequest struct {
	Recipient string `json:"recipient"`
	Nonce     string `json:"nonce,omitempty"`
}

type AuthorizationResponse struct {
	Recipient string `json:"recipient"`
	Nonce     string `json:"nonce"`
	Hash      string `json:"hash"`
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

// MintRequest carries the caller identity explicitly; the transport in front of the minter is expected to
// have authenticated it.
type MintRequest struct {
	Caller    string `json:"caller"`
	Signature string `json:"signature"`
}

type MintResponse struct {
	Recipient string `json:"recipient"`
	TokenID   string `json:"tokenID"`
}

type VerifyResponse struct {
	Caller   string `json:"caller"`
	Nonce    string `json:"nonce"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Signer   string `json:"signer,omitempty"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type MinterStatus struct {
	Validator       common.Address `json:"validator"`
	Owner           common.Address `json:"owner"`
	Price           string         `json:"price"`
	BatchPrice      string         `json:"batchPrice"`
	TotalSupply     string         `json:"totalSupply"`
	MessageEncoding string         `json:"messageEncoding"`
}

type TokenResponse struct {
	TokenID  string `json:"tokenID"`
	Owner    string `json:"owner"`
	TokenURI string `json:"tokenURI,omitempty"`
}

func ParseAddress(raw, field string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("Error parsing %s: %q is not an address", field, raw)
	}
	return common.HexToAddress(raw), nil
}

// ParseNonce accepts decimal or 0x-prefixed hex and rejects values that do not fit in a uint256.
func ParseNonce(raw string) (*big.Int, error) {
	nonce, parseOK := new(big.Int).SetString(strings.TrimSpace(raw), 0)
	if !parseOK {
		return nil, fmt.Errorf("Error parsing nonce: %s", raw)
	}
	if nonce.Sign() < 0 || nonce.BitLen() > 8*MintNonceLength {
		return nil, fmt.Errorf("Error parsing nonce: %s", ErrInvalidNonce.Error())
	}
	return nonce, nil
}

// ParseSignature decodes a hex signature, with or without 0x prefix. Length is checked by verification.
func ParseSignature(raw string) ([]byte, error) {
	signature, decodeErr := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if decodeErr != nil {
		return nil, fmt.Errorf("Error parsing signature: %s", decodeErr.Error())
	}
	return signature, nil
}

func (r *HashRequest) Parse() (common.Address, *big.Int, error) {
	recipient, err := ParseAddress(r.Recipient, "recipient")
	if err != nil {
		return common.Address{}, nil, err
	}
	nonce, err := ParseNonce(r.Nonce)
	if err != nil {
		return common.Address{}, nil, err
	}
	return recipient, nonce, nil
}

func (r *AuthorizeRequest) Parse() (common.Address, *big.Int, error) {
	recipient, err := ParseAddress(r.Recipient, "recipient")
	if err != nil {
		return common.Address{}, nil, err
	}
	if r.Nonce == "" {
		return recipient, nil, nil
	}
	nonce, err := ParseNonce(r.Nonce)
	if err != nil {
		return common.Address{}, nil, err
	}
	return recipient, nonce, nil
}

func (r *MintRequest) Parse() (common.Address, []byte, error) {
	caller, err := ParseAddress(r.Caller, "caller")
	if err != nil {
		return common.Address{}, nil, err
	}
	signature, err := ParseSignature(r.Signature)
	if err != nil {
		return common.Address{}, nil, err
	}
	return caller, signature, nil
}

func hexBytes(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

func bigString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
