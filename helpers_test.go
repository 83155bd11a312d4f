package main

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type testSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &testSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// signMint asks the controller for the hash and signs it as a personal message, like a wallet would.
func (s *testSigner) signMint(t *testing.T, controller *MintingController, recipient common.Address, nonce *big.Int) []byte {
	t.Helper()
	messageHash, err := controller.GetHash(recipient, nonce)
	require.NoError(t, err)
	signature, err := SignRawMessage(PrefixedHash(messageHash), s.key, false)
	require.NoError(t, err)
	return signature
}
