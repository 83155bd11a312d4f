package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"
)

func CreateRootCommand() *cobra.Command {
	var envFile string
	var verbose, pretty bool

	rootCmd := &cobra.Command{
		Use:   "signed-mint",
		Short: "Validator-signed minting: sign approvals and verify them before minting",
		Long: `signed-mint runs the two halves of validator-signed minting.

The signer holds the validator key and approves (recipient, nonce) pairs, where the nonce is the number of
tokens minted so far. The minter verifies those approvals and mints at most once per approval.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := gotenv.Load(envFile); err != nil {
					return errors.Wrapf(err, "failed to load env file %s", envFile)
				}
			}

			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			if pretty {
				log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file first")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Human-readable console logs instead of JSON")

	rootCmd.AddCommand(
		CreateVersionCommand(),
		CreateHashCommand(),
		CreateSignCommand(),
		CreateVerifyCommand(),
		CreateAddressCommand(),
		CreateServeCommand(),
	)

	return rootCmd
}

func CreateVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and message encoding",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", SignedMintVersion(), MintMessageVersion)
		},
	}
}

func CreateHashCommand() *cobra.Command {
	var recipientRaw, nonceRaw string

	hashCmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the mint message hash the validator signs for (recipient, nonce)",
		RunE: func(cmd *cobra.Command, args []string) error {
			request := HashRequest{Recipient: recipientRaw, Nonce: nonceRaw}
			recipient, nonce, err := request.Parse()
			if err != nil {
				return err
			}

			messageHash, err := MintMessageHash(recipient, nonce)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hexBytes(messageHash))
			return nil
		},
	}

	hashCmd.Flags().StringVar(&recipientRaw, "recipient", "", "Recipient address")
	hashCmd.Flags().StringVar(&nonceRaw, "nonce", "", "Nonce (total supply at signing time)")
	hashCmd.MarkFlagRequired("recipient")
	hashCmd.MarkFlagRequired("nonce")

	return hashCmd
}

func CreateSignCommand() *cobra.Command {
	var recipientRaw, nonceRaw, keystoreFile string

	signCmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a mint approval for (recipient, nonce) with the validator key",
		Long: `Sign a mint approval with the validator key.

The key is read from --keystore (password prompted) if given, otherwise from MINT_VALIDATOR_PRIVATE_KEY,
MINT_VALIDATOR_SECRET_ID or MINT_VALIDATOR_KEYSTORE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			request := HashRequest{Recipient: recipientRaw, Nonce: nonceRaw}
			recipient, nonce, err := request.Parse()
			if err != nil {
				return err
			}

			var key *ecdsa.PrivateKey
			var keyErr error
			if keystoreFile != "" {
				key, keyErr = PrivateKeyFromKeystoreFile(keystoreFile, "", true)
			} else {
				key, keyErr = SigningKeyFromEnv(cmd.Context())
			}
			if keyErr != nil {
				return keyErr
			}
			signer := NewValidatorSigner(key, nil)

			authorization, err := signer.Authorize(cmd.Context(), recipient, nonce)
			if err != nil {
				return err
			}

			return printJSON(cmd, AuthorizationResponse{
				Recipient: recipient.Hex(),
				Nonce:     authorization.Nonce.String(),
				Hash:      hexBytes(authorization.MessageHash),
				Signer:    signer.Address().Hex(),
				Signature: hexBytes(authorization.Signature),
			})
		},
	}

	signCmd.Flags().StringVar(&recipientRaw, "recipient", "", "Recipient address")
	signCmd.Flags().StringVar(&nonceRaw, "nonce", "", "Nonce (total supply at signing time)")
	signCmd.Flags().StringVar(&keystoreFile, "keystore", "", "Keystore file holding the validator key")
	signCmd.MarkFlagRequired("recipient")
	signCmd.MarkFlagRequired("nonce")

	return signCmd
}

func CreateVerifyCommand() *cobra.Command {
	var validatorRaw, recipientRaw, nonceRaw, signatureRaw string

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a mint approval signature against a validator address",
		RunE: func(cmd *cobra.Command, args []string) error {
			validator, err := ParseAddress(validatorRaw, "validator")
			if err != nil {
				return err
			}
			request := HashRequest{Recipient: recipientRaw, Nonce: nonceRaw}
			recipient, nonce, err := request.Parse()
			if err != nil {
				return err
			}
			signature, err := ParseSignature(signatureRaw)
			if err != nil {
				return err
			}

			result := NewMintAuthorizer(validator).Verify(recipient, nonce, signature)
			response := VerifyResponse{
				Caller:   recipient.Hex(),
				Nonce:    nonce.String(),
				Accepted: result.Accepted(),
			}
			if !result.Accepted() {
				response.Reason = result.Reason.String()
			}
			if result.Signer != (common.Address{}) {
				response.Signer = result.Signer.Hex()
			}

			if printErr := printJSON(cmd, response); printErr != nil {
				return printErr
			}
			return result.Err()
		},
	}

	verifyCmd.Flags().StringVar(&validatorRaw, "validator", "", "Validator address")
	verifyCmd.Flags().StringVar(&recipientRaw, "recipient", "", "Recipient address")
	verifyCmd.Flags().StringVar(&nonceRaw, "nonce", "", "Nonce the signature must cover")
	verifyCmd.Flags().StringVar(&signatureRaw, "signature", "", "Hex-encoded 65-byte signature")
	verifyCmd.MarkFlagRequired("validator")
	verifyCmd.MarkFlagRequired("recipient")
	verifyCmd.MarkFlagRequired("nonce")
	verifyCmd.MarkFlagRequired("signature")

	return verifyCmd
}

func CreateAddressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the validator address for the configured signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := SigningKeyFromEnv(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), crypto.PubkeyToAddress(key.PublicKey).Hex())
			return nil
		},
	}
}

func CreateServeCommand() *cobra.Command {
	var serverType, host string
	var port int

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the signer or minter API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunServer(cmd.Context(), serverType, host, port)
		},
	}

	serveCmd.Flags().StringVarP(&serverType, "type", "t", "minter", "Server type (one of: signer, minter)")
	serveCmd.Flags().StringVar(&host, "host", "127.0.0.1", "Server listening address")
	serveCmd.Flags().IntVar(&port, "port", 3743, "Server listening port")

	return serveCmd
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
