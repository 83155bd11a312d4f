package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisSupplyStore keeps the counter in Redis so several minter processes can share it. Mint relies on
// WATCH/MULTI: a concurrent writer aborts the transaction and the caller sees ErrStaleNonce.
type RedisSupplyStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisSupplyStore(client *redis.Client, namespace string) *RedisSupplyStore {
	return &RedisSupplyStore{
		client:    client,
		keyPrefix: fmt.Sprintf("signedmint:%s:", strings.ToLower(namespace)),
	}
}

// RedisClientFromEnv connects to MINT_REDIS_ADDR (optionally MINT_REDIS_PASSWORD, MINT_REDIS_DB) and pings it.
func RedisClientFromEnv(ctx context.Context) (*redis.Client, error) {
	addr := os.Getenv("MINT_REDIS_ADDR")
	if addr == "" {
		return nil, errors.New("MINT_REDIS_ADDR must be set")
	}

	db := 0
	if rawDB := os.Getenv("MINT_REDIS_DB"); rawDB != "" {
		if _, scanErr := fmt.Sscanf(rawDB, "%d", &db); scanErr != nil {
			return nil, errors.Wrapf(scanErr, "MINT_REDIS_DB must be an integer, got %s", rawDB)
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("MINT_REDIS_PASSWORD"),
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to ping redis")
	}

	return client, nil
}

func (store *RedisSupplyStore) supplyKey() string {
	return store.keyPrefix + "supply"
}

func (store *RedisSupplyStore) ownersKey() string {
	return store.keyPrefix + "owners"
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readSupply(ctx context.Context, getter stringGetter, key string) (*big.Int, error) {
	raw, err := getter.Get(ctx, key).Result()
	if err == redis.Nil {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read total supply")
	}
	supply, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, errors.Errorf("corrupted total supply value: %q", raw)
	}
	return supply, nil
}

func (store *RedisSupplyStore) TotalSupply(ctx context.Context) (*big.Int, error) {
	return readSupply(ctx, store.client, store.supplyKey())
}

func (store *RedisSupplyStore) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	raw, err := store.client.HGet(ctx, store.ownersKey(), tokenID.String()).Result()
	if err == redis.Nil {
		return common.Address{}, ErrTokenNotFound
	}
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to read token owner")
	}
	return common.HexToAddress(raw), nil
}

func (store *RedisSupplyStore) Mint(ctx context.Context, expectedSupply *big.Int, recipient common.Address) (*big.Int, error) {
	if expectedSupply == nil {
		return nil, ErrStaleNonce
	}

	var tokenID *big.Int
	txErr := store.client.Watch(ctx, func(tx *redis.Tx) error {
		supply, err := readSupply(ctx, tx, store.supplyKey())
		if err != nil {
			return err
		}
		if supply.Cmp(expectedSupply) != 0 {
			return ErrStaleNonce
		}

		next := new(big.Int).Add(supply, big.NewInt(1))
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, store.ownersKey(), supply.String(), recipient.Hex())
			pipe.Set(ctx, store.supplyKey(), next.String(), 0)
			return nil
		})
		if err != nil {
			return err
		}

		tokenID = supply
		return nil
	}, store.supplyKey())

	if errors.Is(txErr, redis.TxFailedErr) {
		return nil, ErrStaleNonce
	}
	if txErr != nil {
		if errors.Is(txErr, ErrStaleNonce) {
			return nil, ErrStaleNonce
		}
		return nil, errors.Wrap(txErr, "failed to mint")
	}

	return tokenID, nil
}
