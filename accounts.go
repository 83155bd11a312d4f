package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// SigningKeyFromEnv loads the validator's signing key from the environment variables following this strategy:
//   - If MINT_VALIDATOR_PRIVATE_KEY is set, it takes priority and is decoded directly as a hex private key.
//   - If MINT_VALIDATOR_SECRET_ID is set, the hex private key is read from that AWS Secrets Manager secret.
//   - Otherwise MINT_VALIDATOR_KEYSTORE must be a path to a keystore file. If MINT_VALIDATOR_KEYSTORE_PASSWORD
//     is also set, that is used as the password to decrypt the keystore. Otherwise, the user is prompted for
//     this password.
func SigningKeyFromEnv(ctx context.Context) (*ecdsa.PrivateKey, error) {
	privateKeyHex := os.Getenv("MINT_VALIDATOR_PRIVATE_KEY")
	if privateKeyHex != "" {
		return PrivateKey(privateKeyHex)
	}

	secretID := os.Getenv("MINT_VALIDATOR_SECRET_ID")
	if secretID != "" {
		return PrivateKeyFromSecretsManager(ctx, secretID)
	}

	keystoreFile := os.Getenv("MINT_VALIDATOR_KEYSTORE")
	if keystoreFile == "" {
		return nil, errors.New("one of MINT_VALIDATOR_PRIVATE_KEY, MINT_VALIDATOR_SECRET_ID or MINT_VALIDATOR_KEYSTORE must be set")
	}

	prompt := false
	keystorePassword, ok := os.LookupEnv("MINT_VALIDATOR_KEYSTORE_PASSWORD")
	if !ok {
		prompt = true
	}
	return PrivateKeyFromKeystoreFile(keystoreFile, keystorePassword, prompt)
}

// PrivateKey decodes a private key from its hex representation. A 0x prefix is allowed.
func PrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	parsedPrivateKey, parseErr := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if parseErr != nil {
		return nil, errors.Wrap(parseErr, "invalid private key")
	}
	return parsedPrivateKey, nil
}

// PrivateKeyFromSecretsManager reads a hex private key stored as the secret string of secretID.
// AWS credentials and region come from the default configuration chain.
func PrivateKeyFromSecretsManager(ctx context.Context, secretID string) (*ecdsa.PrivateKey, error) {
	awsConfig, configErr := config.LoadDefaultConfig(ctx)
	if configErr != nil {
		return nil, errors.Wrap(configErr, "failed to load AWS configuration")
	}

	client := secretsmanager.NewFromConfig(awsConfig)
	output, getErr := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if getErr != nil {
		return nil, errors.Wrapf(getErr, "failed to read secret %s", secretID)
	}
	if output.SecretString == nil {
		return nil, errors.Errorf("secret %s has no string value", secretID)
	}

	return PrivateKey(*output.SecretString)
}

// PrivateKeyFromKeystoreFile loads a private key from a keystore file. If prompt is true, the user will be
// interactively prompted for the password to the keystore file even if the password variable is nonempty.
func PrivateKeyFromKeystoreFile(keystoreFile, password string, prompt bool) (*ecdsa.PrivateKey, error) {
	keystoreContent, readErr := os.ReadFile(keystoreFile)
	if readErr != nil {
		return nil, errors.Wrap(readErr, "failed to read keystore")
	}

	if prompt {
		fmt.Fprintf(os.Stderr, "Please provide a password for keystore (%s): ", keystoreFile)
		passwordRaw, inputErr := term.ReadPassword(int(os.Stdin.Fd()))
		if inputErr != nil {
			return nil, errors.Wrap(inputErr, "error reading password")
		}
		fmt.Fprint(os.Stderr, "\n")
		password = string(passwordRaw)
	}

	key, err := keystore.DecryptKey(keystoreContent, password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt keystore")
	}
	return key.PrivateKey, nil
}

// Signs bytes using a private key and return the signature.
// The "sensible" parameter refers to the v-byte of the signature. If it is true, then the v-byte will
// be 0 or 1. Default should be sensible=false, which matches what wallets return from personal_sign.
func SignRawMessage(message []byte, key *ecdsa.PrivateKey, sensible bool) ([]byte, error) {
	signature, err := crypto.Sign(message, key)
	if err != nil {
		return nil, err
	}
	if !sensible {
		// This refers to a bug in an early Ethereum client implementation where the v parameter byte was
		// shifted by 27: https://github.com/ethereum/go-ethereum/issues/2053
		if signature[64] < 2 {
			signature[64] += 27
		}
	}
	return signature, nil
}

// SignMintAuthorization produces the validator's approval of (recipient, nonce): a personal_sign signature
// over MintMessageHash(recipient, nonce). It returns the unprefixed message hash alongside the signature.
func SignMintAuthorization(key *ecdsa.PrivateKey, recipient common.Address, nonce *big.Int) ([]byte, []byte, error) {
	messageHash, hashErr := MintMessageHash(recipient, nonce)
	if hashErr != nil {
		return nil, nil, hashErr
	}

	signature, signErr := SignRawMessage(PrefixedHash(messageHash), key, false)
	if signErr != nil {
		return nil, nil, signErr
	}

	return messageHash, signature, nil
}
