package main

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Authorizer is the off-chain half of signed minting: it holds the validator key and approves mints.
// Its only coupling with the minter is the message encoding in mint_message.go.
type Authorizer interface {
	ConfigureFromEnv(ctx context.Context) error
	Address() common.Address
	MintMessageHash(recipient common.Address, nonce *big.Int) ([]byte, error)
	// Authorize signs (recipient, nonce). A nil nonce means "use the live nonce".
	Authorize(ctx context.Context, recipient common.Address, nonce *big.Int) (*MintAuthorization, error)
}

type MintAuthorization struct {
	Recipient   common.Address
	Nonce       *big.Int
	MessageHash []byte
	Signature   []byte
}
