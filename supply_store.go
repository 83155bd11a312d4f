package main

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrStaleNonce    error = errors.New("nonce is no longer the live total supply")
	ErrTokenNotFound error = errors.New("token does not exist")
)

// SupplyStore owns the minted-count counter and token ownership. Mint must compare-and-advance: it only mints
// when the live supply still equals expectedSupply, and it leaves no trace otherwise.
type SupplyStore interface {
	TotalSupply(ctx context.Context) (*big.Int, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	Mint(ctx context.Context, expectedSupply *big.Int, recipient common.Address) (*big.Int, error)
}

var (
	_ SupplyStore = (*MemorySupplyStore)(nil)
	_ SupplyStore = (*RedisSupplyStore)(nil)
)

type MemorySupplyStore struct {
	mu     sync.RWMutex
	supply *big.Int
	owners map[string]common.Address
}

func NewMemorySupplyStore() *MemorySupplyStore {
	return &MemorySupplyStore{
		supply: big.NewInt(0),
		owners: make(map[string]common.Address),
	}
}

func (store *MemorySupplyStore) TotalSupply(ctx context.Context) (*big.Int, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return new(big.Int).Set(store.supply), nil
}

func (store *MemorySupplyStore) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	owner, ok := store.owners[tokenID.String()]
	if !ok {
		return common.Address{}, ErrTokenNotFound
	}
	return owner, nil
}

func (store *MemorySupplyStore) Mint(ctx context.Context, expectedSupply *big.Int, recipient common.Address) (*big.Int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if expectedSupply == nil || store.supply.Cmp(expectedSupply) != 0 {
		return nil, ErrStaleNonce
	}

	tokenID := new(big.Int).Set(store.supply)
	store.owners[tokenID.String()] = recipient
	store.supply.Add(store.supply, big.NewInt(1))
	return tokenID, nil
}
