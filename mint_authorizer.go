package main

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrWrongSignature is matched by every authorization rejection, whatever its reason.
var ErrWrongSignature error = errors.New("wrong signature")

const SignatureLength = crypto.SignatureLength

type RejectionReason int

const (
	NotRejected RejectionReason = iota
	MalformedSignature
	RecoveryFailed
	SignerMismatch
)

func (reason RejectionReason) String() string {
	switch reason {
	case NotRejected:
		return "none"
	case MalformedSignature:
		return "MalformedSignature"
	case RecoveryFailed:
		return "RecoveryFailed"
	case SignerMismatch:
		return "SignerMismatch"
	default:
		return fmt.Sprintf("RejectionReason(%d)", int(reason))
	}
}

// RejectionError is the error form of a rejected AuthorizationResult.
type RejectionError struct {
	Reason RejectionReason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrWrongSignature.Error(), e.Reason)
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrWrongSignature
}

// AuthorizationResult is either accepted (Reason == NotRejected) or rejected with a reason.
// Signer is the recovered address whenever recovery succeeded, including on SignerMismatch.
type AuthorizationResult struct {
	Reason RejectionReason
	Signer common.Address
}

func (result AuthorizationResult) Accepted() bool {
	return result.Reason == NotRejected
}

// Err returns nil for an accepted result and a *RejectionError otherwise.
func (result AuthorizationResult) Err() error {
	if result.Accepted() {
		return nil
	}
	return &RejectionError{Reason: result.Reason}
}

func rejected(reason RejectionReason) AuthorizationResult {
	return AuthorizationResult{Reason: reason}
}

// MintAuthorizer checks that a mint approval for (recipient, nonce) was signed by the validator.
// It holds no mutable state and is safe for concurrent use.
type MintAuthorizer struct {
	validator common.Address
}

func NewMintAuthorizer(validator common.Address) *MintAuthorizer {
	return &MintAuthorizer{validator: validator}
}

func (authorizer *MintAuthorizer) Validator() common.Address {
	return authorizer.validator
}

func (authorizer *MintAuthorizer) MintMessageHash(recipient common.Address, nonce *big.Int) ([]byte, error) {
	return MintMessageHash(recipient, nonce)
}

// Verify never mutates anything. The caller must pass the live nonce and advance it only after an accepted result.
func (authorizer *MintAuthorizer) Verify(recipient common.Address, nonce *big.Int, signature []byte) AuthorizationResult {
	messageHash, hashErr := MintMessageHash(recipient, nonce)
	if hashErr != nil {
		// A nonce that cannot be encoded can never have been signed.
		return rejected(SignerMismatch)
	}

	normalized, ok := NormalizeSignature(signature)
	if !ok {
		return rejected(MalformedSignature)
	}

	signerPubkey, recoverErr := crypto.SigToPub(PrefixedHash(messageHash), normalized)
	if recoverErr != nil {
		return rejected(RecoveryFailed)
	}

	signer := crypto.PubkeyToAddress(*signerPubkey)
	if signer != authorizer.validator {
		return AuthorizationResult{Reason: SignerMismatch, Signer: signer}
	}

	return AuthorizationResult{Reason: NotRejected, Signer: signer}
}

// NormalizeSignature returns a copy of signature with v in {0, 1}. It reports false for signatures of the wrong
// length, with v outside {0, 1, 27, 28}, or with r/s values that are out of range or malleable (high s).
func NormalizeSignature(signature []byte) ([]byte, bool) {
	if len(signature) != SignatureLength {
		return nil, false
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, signature)

	// Normalize signature so that 27 -> 0, 28 -> 1.
	// For more context: https://github.com/ethereum/go-ethereum/issues/2053
	if normalized[64] == 27 || normalized[64] == 28 {
		normalized[64] -= 27
	}

	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(normalized[64], r, s, true) {
		return nil, false
	}

	return normalized, true
}
