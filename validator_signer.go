package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNonceUnavailable error = errors.New("no nonce given and no live nonce source configured")

var (
	_ Authorizer = (*ValidatorSigner)(nil)
	_ Service    = (*ValidatorSigner)(nil)
)

// ValidatorSigner approves mints with the validator key. When Nonces is set, requests without a nonce are signed
// for the live nonce; otherwise callers must say which nonce they want approved.
type ValidatorSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	Nonces     NonceSource
}

type ValidatorSignerStatus struct {
	Address         common.Address  `json:"address"`
	MessageEncoding string          `json:"messageEncoding"`
	NonceSource     json.RawMessage `json:"nonceSource,omitempty"`
}

func NewValidatorSigner(key *ecdsa.PrivateKey, nonces NonceSource) *ValidatorSigner {
	return &ValidatorSigner{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		Nonces:     nonces,
	}
}

func (signer *ValidatorSigner) ConfigureFromEnv(ctx context.Context) error {
	var err error
	signer.privateKey, err = SigningKeyFromEnv(ctx)
	if err != nil {
		return err
	}
	signer.address = crypto.PubkeyToAddress(signer.privateKey.PublicKey)

	if os.Getenv("MINT_SIGNER_HTTP_PROVIDER_URL") != "" {
		source := &ContractNonceSource{}
		if err := source.ConfigureFromEnv(); err != nil {
			return err
		}
		signer.Nonces = source
	}

	return nil
}

func (signer *ValidatorSigner) Address() common.Address {
	return signer.address
}

func (signer *ValidatorSigner) MintMessageHash(recipient common.Address, nonce *big.Int) ([]byte, error) {
	return MintMessageHash(recipient, nonce)
}

func (signer *ValidatorSigner) Authorize(ctx context.Context, recipient common.Address, nonce *big.Int) (*MintAuthorization, error) {
	if nonce == nil {
		if signer.Nonces == nil {
			return nil, ErrNonceUnavailable
		}
		liveNonce, err := signer.Nonces.CurrentNonce(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read live nonce")
		}
		nonce = liveNonce
	}

	messageHash, signature, err := SignMintAuthorization(signer.privateKey, recipient, nonce)
	if err != nil {
		return nil, err
	}
	signaturesIssuedTotal.Inc()

	return &MintAuthorization{
		Recipient:   recipient,
		Nonce:       nonce,
		MessageHash: messageHash,
		Signature:   signature,
	}, nil
}

func (signer *ValidatorSigner) Status(ctx context.Context) ([]byte, error) {
	status := ValidatorSignerStatus{
		Address:         signer.address,
		MessageEncoding: MintMessageVersion,
	}

	if source, ok := signer.Nonces.(*ContractNonceSource); ok {
		sourceStatus, err := source.Status(ctx)
		if err != nil {
			return nil, err
		}
		status.NonceSource = sourceStatus
	}

	return json.Marshal(status)
}

func (signer *ValidatorSigner) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/status", statusHandler(signer))
	mux.HandleFunc("/address", signer.AddressHandler)
	mux.HandleFunc("/hash", HashHandler)
	mux.HandleFunc("/authorize", signer.AuthorizeHandler)
}

func (signer *ValidatorSigner) AddressHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, AddressResponse{Address: signer.address.Hex()})
}

func (signer *ValidatorSigner) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var request AuthorizeRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&request); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "Error decoding request", "")
		return
	}

	recipient, nonce, parseErr := request.Parse()
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, parseErr.Error(), "")
		return
	}

	authorization, authorizeErr := signer.Authorize(r.Context(), recipient, nonce)
	if errors.Is(authorizeErr, ErrNonceUnavailable) {
		writeError(w, http.StatusBadRequest, authorizeErr.Error(), "")
		return
	}
	if authorizeErr != nil {
		// Do not pass signing internals to the client.
		log.Error().Err(authorizeErr).Str("recipient", recipient.Hex()).Msg("Failed to authorize mint")
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	log.Info().
		Str("recipient", recipient.Hex()).
		Str("nonce", authorization.Nonce.String()).
		Msg("Issued mint authorization")

	writeJSON(w, http.StatusOK, AuthorizationResponse{
		Recipient: recipient.Hex(),
		Nonce:     authorization.Nonce.String(),
		Hash:      hexBytes(authorization.MessageHash),
		Signer:    signer.address.Hex(),
		Signature: hexBytes(authorization.Signature),
	})
}

// HashHandler serves getHash. It needs no key material, so both services expose it.
func HashHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var request HashRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&request); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "Error decoding request", "")
		return
	}

	recipient, nonce, parseErr := request.Parse()
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, parseErr.Error(), "")
		return
	}

	messageHash, hashErr := MintMessageHash(recipient, nonce)
	if hashErr != nil {
		writeError(w, http.StatusBadRequest, hashErr.Error(), "")
		return
	}

	writeJSON(w, http.StatusOK, HashResponse{
		Recipient: recipient.Hex(),
		Nonce:     nonce.String(),
		Hash:      hexBytes(messageHash),
	})
}
