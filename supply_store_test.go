package main

import (
	"context"
	"math/big"
	"os"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseSupplyStore(t *testing.T, store SupplyStore) {
	ctx := context.Background()
	alice := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	supply, err := store.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), supply.Int64())

	_, err = store.OwnerOf(ctx, big.NewInt(0))
	assert.ErrorIs(t, err, ErrTokenNotFound)

	tokenID, err := store.Mint(ctx, big.NewInt(0), alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), tokenID.Int64())

	_, err = store.Mint(ctx, big.NewInt(0), bob)
	assert.ErrorIs(t, err, ErrStaleNonce)
	_, err = store.Mint(ctx, big.NewInt(5), bob)
	assert.ErrorIs(t, err, ErrStaleNonce)
	_, err = store.Mint(ctx, nil, bob)
	assert.ErrorIs(t, err, ErrStaleNonce)

	tokenID, err = store.Mint(ctx, big.NewInt(1), bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tokenID.Int64())

	owner, err := store.OwnerOf(ctx, big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, alice, owner)
	owner, err = store.OwnerOf(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, bob, owner)

	supply, err = store.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), supply.Int64())

	// Concurrent mints against the same expected supply: exactly one wins.
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Mint(ctx, big.NewInt(2), alice)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrStaleNonce)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemorySupplyStore(t *testing.T) {
	exerciseSupplyStore(t, NewMemorySupplyStore())
}

func TestMemorySupplyStoreReturnsCopies(t *testing.T) {
	store := NewMemorySupplyStore()
	supply, err := store.TotalSupply(context.Background())
	require.NoError(t, err)
	supply.SetInt64(100)

	supply, err = store.TotalSupply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), supply.Int64())
}

// Set MINT_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a real Redis.
func TestRedisSupplyStore(t *testing.T) {
	addr := os.Getenv("MINT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MINT_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	store := NewRedisSupplyStore(client, "test-"+uuid.NewString())
	t.Cleanup(func() {
		client.Del(context.Background(), store.supplyKey(), store.ownersKey())
	})

	exerciseSupplyStore(t, store)
}
