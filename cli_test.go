package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	command := CreateRootCommand()
	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(&out)
	command.SetArgs(args)
	err := command.Execute()
	return out.String(), err
}

func TestHashCommand(t *testing.T) {
	recipient := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	out, err := runCommand(t, "hash", "--recipient", recipient.Hex(), "--nonce", "3")
	require.NoError(t, err)

	expected, err := MintMessageHash(recipient, big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, hexBytes(expected), strings.TrimSpace(out))
}

func TestSignAndVerifyCommands(t *testing.T) {
	t.Setenv("MINT_VALIDATOR_PRIVATE_KEY", testPrivateKeyHex)
	recipient := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	out, err := runCommand(t, "sign", "--recipient", recipient.Hex(), "--nonce", "0")
	require.NoError(t, err)

	var authorization AuthorizationResponse
	require.NoError(t, json.Unmarshal([]byte(out), &authorization))
	assert.Equal(t, testPrivateKeyAddress.Hex(), authorization.Signer)

	_, err = runCommand(t, "verify",
		"--validator", testPrivateKeyAddress.Hex(),
		"--recipient", recipient.Hex(),
		"--nonce", "0",
		"--signature", authorization.Signature)
	assert.NoError(t, err)

	out, err = runCommand(t, "verify",
		"--validator", testPrivateKeyAddress.Hex(),
		"--recipient", recipient.Hex(),
		"--nonce", "1",
		"--signature", authorization.Signature)
	assert.ErrorIs(t, err, ErrWrongSignature)
	assert.Contains(t, out, "SignerMismatch")
}

func TestAddressCommandWithEnvFile(t *testing.T) {
	// gotenv does not override variables that are already set.
	require.NoError(t, os.Unsetenv("MINT_VALIDATOR_PRIVATE_KEY"))
	t.Cleanup(func() { os.Unsetenv("MINT_VALIDATOR_PRIVATE_KEY") })

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MINT_VALIDATOR_PRIVATE_KEY="+testPrivateKeyHex+"\n"), 0600))

	out, err := runCommand(t, "--env-file", envFile, "address")
	require.NoError(t, err)
	assert.Equal(t, testPrivateKeyAddress.Hex(), strings.TrimSpace(out))
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, MintMessageVersion)
	assert.Contains(t, out, SignedMintVersion())
}
