package main

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known development key (hardhat account #1).
const testPrivateKeyHex = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

var testPrivateKeyAddress = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

func TestPrivateKey(t *testing.T) {
	key, err := PrivateKey(testPrivateKeyHex)
	require.NoError(t, err)
	assert.Equal(t, testPrivateKeyAddress, crypto.PubkeyToAddress(key.PublicKey))

	prefixed, err := PrivateKey("0x" + testPrivateKeyHex + "\n")
	require.NoError(t, err)
	assert.Equal(t, key.D, prefixed.D)

	_, err = PrivateKey("not-a-key")
	assert.Error(t, err)
}

func TestSigningKeyFromEnvPrefersPrivateKey(t *testing.T) {
	t.Setenv("MINT_VALIDATOR_PRIVATE_KEY", testPrivateKeyHex)
	t.Setenv("MINT_VALIDATOR_KEYSTORE", "/does/not/exist")

	key, err := SigningKeyFromEnv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testPrivateKeyAddress, crypto.PubkeyToAddress(key.PublicKey))
}

func TestSigningKeyFromEnvRequiresSource(t *testing.T) {
	t.Setenv("MINT_VALIDATOR_PRIVATE_KEY", "")
	t.Setenv("MINT_VALIDATOR_SECRET_ID", "")
	t.Setenv("MINT_VALIDATOR_KEYSTORE", "")

	_, err := SigningKeyFromEnv(context.Background())
	assert.Error(t, err)
}

func TestSigningKeyFromEnvKeystore(t *testing.T) {
	key, err := PrivateKey(testPrivateKeyHex)
	require.NoError(t, err)

	encrypted, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    testPrivateKeyAddress,
		PrivateKey: key,
	}, "hunter2", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)

	keystoreFile := filepath.Join(t.TempDir(), "validator.json")
	require.NoError(t, os.WriteFile(keystoreFile, encrypted, 0600))

	t.Setenv("MINT_VALIDATOR_PRIVATE_KEY", "")
	t.Setenv("MINT_VALIDATOR_SECRET_ID", "")
	t.Setenv("MINT_VALIDATOR_KEYSTORE", keystoreFile)
	t.Setenv("MINT_VALIDATOR_KEYSTORE_PASSWORD", "hunter2")

	loaded, err := SigningKeyFromEnv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testPrivateKeyAddress, crypto.PubkeyToAddress(loaded.PublicKey))

	_, err = PrivateKeyFromKeystoreFile(keystoreFile, "wrong", false)
	assert.Error(t, err)
}

func TestSignRawMessageRecoveryByte(t *testing.T) {
	key, err := PrivateKey(testPrivateKeyHex)
	require.NoError(t, err)
	digest := crypto.Keccak256([]byte("digest"))

	sensible, err := SignRawMessage(digest, key, true)
	require.NoError(t, err)
	legacy, err := SignRawMessage(digest, key, false)
	require.NoError(t, err)

	assert.Contains(t, []byte{0, 1}, sensible[64])
	assert.Equal(t, sensible[64]+27, legacy[64])
	assert.Equal(t, sensible[:64], legacy[:64])
}

func TestSignMintAuthorization(t *testing.T) {
	key, err := PrivateKey(testPrivateKeyHex)
	require.NoError(t, err)
	recipient := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	messageHash, signature, err := SignMintAuthorization(key, recipient, big.NewInt(9))
	require.NoError(t, err)

	expectedHash, err := MintMessageHash(recipient, big.NewInt(9))
	require.NoError(t, err)
	assert.Equal(t, expectedHash, messageHash)
	assert.Len(t, signature, SignatureLength)

	result := NewMintAuthorizer(testPrivateKeyAddress).Verify(recipient, big.NewInt(9), signature)
	assert.True(t, result.Accepted())

	_, _, err = SignMintAuthorization(key, recipient, big.NewInt(-9))
	assert.ErrorIs(t, err, ErrInvalidNonce)
}
