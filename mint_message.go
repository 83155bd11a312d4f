package main

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// MintMessageVersion identifies the encoding below. Signers and minters must agree on it byte for byte,
// so any change to the layout has to bump this string.
var MintMessageVersion = "signed-mint/v1"

const (
	MintAddressLength = common.AddressLength
	MintNonceLength   = 32
	MintPayloadLength = MintAddressLength + MintNonceLength
)

var ErrInvalidNonce error = errors.New("nonce must be an unsigned 256-bit integer")

// EncodeMintPayload packs (recipient, nonce) the same way Solidity's abi.encodePacked(address, uint256) does:
// the 20 address bytes followed by the nonce as a 32-byte big-endian integer, with no separators.
func EncodeMintPayload(recipient common.Address, nonce *big.Int) ([]byte, error) {
	if nonce == nil || nonce.Sign() < 0 || nonce.BitLen() > 8*MintNonceLength {
		return nil, ErrInvalidNonce
	}

	payload := make([]byte, 0, MintPayloadLength)
	payload = append(payload, recipient.Bytes()...)
	// PaddedBigBytes does not mutate its argument, unlike math.U256Bytes.
	payload = append(payload, math.PaddedBigBytes(nonce, MintNonceLength)...)
	return payload, nil
}

// MintMessageHash is the digest the validator approves for a (recipient, nonce) pair: keccak256 of the packed payload.
// This is the value returned by getHash and handed to off-chain tooling.
func MintMessageHash(recipient common.Address, nonce *big.Int) ([]byte, error) {
	payload, err := EncodeMintPayload(recipient, nonce)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(payload), nil
}

// PrefixedHash applies the EIP-191 personal message transform to a mint message hash:
// keccak256("\x19Ethereum Signed Message:\n32" || messageHash). This is the digest that is actually signed.
func PrefixedHash(messageHash []byte) []byte {
	return accounts.TextHash(messageHash)
}
