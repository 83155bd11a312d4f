package main

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MintingConfig is fixed at construction. Price fields are carried for callers and never interpreted here.
type MintingConfig struct {
	Owner      common.Address
	Validator  common.Address
	Price      *big.Int
	BatchPrice *big.Int
	BaseURI    string
}

// MintingController gates minting on validator signatures. The nonce a signature must cover is the live total
// supply, so an accepted signature stops verifying as soon as its mint advances the counter.
type MintingController struct {
	config     MintingConfig
	authorizer *MintAuthorizer
	store      SupplyStore

	// Serializes read-verify-advance within this process. The store's compare-and-advance covers other processes.
	mintMu sync.Mutex
}

func NewMintingController(config MintingConfig, store SupplyStore) *MintingController {
	return &MintingController{
		config:     config,
		authorizer: NewMintAuthorizer(config.Validator),
		store:      store,
	}
}

func (controller *MintingController) Owner() common.Address {
	return controller.config.Owner
}

func (controller *MintingController) Validator() common.Address {
	return controller.authorizer.Validator()
}

func (controller *MintingController) Price() *big.Int {
	return copyBig(controller.config.Price)
}

func (controller *MintingController) BatchPrice() *big.Int {
	return copyBig(controller.config.BatchPrice)
}

func (controller *MintingController) BaseURI() string {
	return controller.config.BaseURI
}

func (controller *MintingController) TotalSupply(ctx context.Context) (*big.Int, error) {
	return controller.store.TotalSupply(ctx)
}

func (controller *MintingController) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	return controller.store.OwnerOf(ctx, tokenID)
}

// TokenURI is the base URI followed by the decimal token ID, empty when no base URI is configured.
func (controller *MintingController) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	if _, err := controller.store.OwnerOf(ctx, tokenID); err != nil {
		return "", err
	}
	if controller.config.BaseURI == "" {
		return "", nil
	}
	return controller.config.BaseURI + tokenID.String(), nil
}

func (controller *MintingController) GetHash(recipient common.Address, nonce *big.Int) ([]byte, error) {
	return controller.authorizer.MintMessageHash(recipient, nonce)
}

// CheckSignature verifies signature for caller against the live nonce without minting.
func (controller *MintingController) CheckSignature(ctx context.Context, caller common.Address, signature []byte) (AuthorizationResult, *big.Int, error) {
	nonce, err := controller.store.TotalSupply(ctx)
	if err != nil {
		return AuthorizationResult{}, nil, err
	}
	return controller.authorizer.Verify(caller, nonce, signature), nonce, nil
}

// SignedMint mints the next token to caller if signature is the validator's approval of (caller, live nonce).
// Rejections are returned as *RejectionError and change nothing.
func (controller *MintingController) SignedMint(ctx context.Context, caller common.Address, signature []byte) (*big.Int, error) {
	controller.mintMu.Lock()
	defer controller.mintMu.Unlock()

	result, nonce, err := controller.CheckSignature(ctx, caller, signature)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read live nonce")
	}
	recordAuthorization(result)
	if !result.Accepted() {
		log.Debug().
			Str("caller", caller.Hex()).
			Str("nonce", nonce.String()).
			Stringer("reason", result.Reason).
			Msg("Rejected signed mint")
		return nil, result.Err()
	}

	tokenID, mintErr := controller.store.Mint(ctx, nonce, caller)
	if mintErr != nil {
		return nil, mintErr
	}
	mintsTotal.Inc()

	log.Info().
		Str("recipient", caller.Hex()).
		Str("tokenID", tokenID.String()).
		Msg("Signed mint completed")

	return tokenID, nil
}

func copyBig(value *big.Int) *big.Int {
	if value == nil {
		return nil
	}
	return new(big.Int).Set(value)
}
