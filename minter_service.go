package main

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var _ Service = (*MinterService)(nil)

// MinterService exposes a MintingController over HTTP.
type MinterService struct {
	Controller *MintingController
}

// MintingConfigFromEnv reads MINT_VALIDATOR_ADDRESS (required), MINT_OWNER_ADDRESS, MINT_PRICE,
// MINT_BATCH_PRICE and MINT_BASE_URI.
func MintingConfigFromEnv() (MintingConfig, error) {
	var mintingConfig MintingConfig

	validatorRaw := os.Getenv("MINT_VALIDATOR_ADDRESS")
	if !common.IsHexAddress(validatorRaw) {
		return mintingConfig, errors.New("MINT_VALIDATOR_ADDRESS must be set to an Ethereum address")
	}
	mintingConfig.Validator = common.HexToAddress(validatorRaw)
	if mintingConfig.Validator == (common.Address{}) {
		return mintingConfig, errors.New("MINT_VALIDATOR_ADDRESS must be a non-zero Ethereum address")
	}

	if ownerRaw := os.Getenv("MINT_OWNER_ADDRESS"); ownerRaw != "" {
		owner, err := ParseAddress(ownerRaw, "MINT_OWNER_ADDRESS")
		if err != nil {
			return mintingConfig, err
		}
		mintingConfig.Owner = owner
	}

	var err error
	if mintingConfig.Price, err = bigFromEnv("MINT_PRICE"); err != nil {
		return mintingConfig, err
	}
	if mintingConfig.BatchPrice, err = bigFromEnv("MINT_BATCH_PRICE"); err != nil {
		return mintingConfig, err
	}
	mintingConfig.BaseURI = os.Getenv("MINT_BASE_URI")

	return mintingConfig, nil
}

func bigFromEnv(name string) (*big.Int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return nil, errors.Errorf("%s must be a valid integer, got %s", name, raw)
	}
	return value, nil
}

// SupplyStoreFromEnv picks the store named by MINT_STORE: "memory" (default) or "redis".
func SupplyStoreFromEnv(ctx context.Context) (SupplyStore, error) {
	switch storeType := os.Getenv("MINT_STORE"); storeType {
	case "", "memory":
		return NewMemorySupplyStore(), nil
	case "redis":
		client, err := RedisClientFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		namespace := os.Getenv("MINT_REDIS_NAMESPACE")
		if namespace == "" {
			namespace = "default"
		}
		return NewRedisSupplyStore(client, namespace), nil
	default:
		return nil, errors.Errorf("unknown MINT_STORE: %s", storeType)
	}
}

func (service *MinterService) ConfigureFromEnv(ctx context.Context) error {
	mintingConfig, err := MintingConfigFromEnv()
	if err != nil {
		return err
	}

	store, err := SupplyStoreFromEnv(ctx)
	if err != nil {
		return err
	}

	service.Controller = NewMintingController(mintingConfig, store)
	return nil
}

func (service *MinterService) Status(ctx context.Context) ([]byte, error) {
	supply, err := service.Controller.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}

	status := MinterStatus{
		Validator:       service.Controller.Validator(),
		Owner:           service.Controller.Owner(),
		Price:           bigString(service.Controller.Price()),
		BatchPrice:      bigString(service.Controller.BatchPrice()),
		TotalSupply:     supply.String(),
		MessageEncoding: MintMessageVersion,
	}

	return json.Marshal(status)
}

func (service *MinterService) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/status", statusHandler(service))
	mux.HandleFunc("/validator", service.ValidatorHandler)
	mux.HandleFunc("/supply", service.SupplyHandler)
	mux.HandleFunc("/hash", HashHandler)
	mux.HandleFunc("/verify", service.VerifyHandler)
	mux.HandleFunc("/mint", service.MintHandler)
	mux.HandleFunc("/tokens/", service.TokenHandler)
}

func (service *MinterService) ValidatorHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, AddressResponse{Address: service.Controller.Validator().Hex()})
}

func (service *MinterService) SupplyHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	supply, err := service.Controller.TotalSupply(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read total supply")
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	writeJSON(w, http.StatusOK, SupplyResponse{TotalSupply: supply.String()})
}

// VerifyHandler reports what a mint with this signature would do right now, without minting.
func (service *MinterService) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	caller, signature, ok := decodeMintRequest(w, r)
	if !ok {
		return
	}

	result, nonce, err := service.Controller.CheckSignature(r.Context(), caller, signature)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read live nonce")
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	response := VerifyResponse{
		Caller:   caller.Hex(),
		Nonce:    nonce.String(),
		Accepted: result.Accepted(),
	}
	if !result.Accepted() {
		response.Reason = result.Reason.String()
	}
	if result.Signer != (common.Address{}) {
		response.Signer = result.Signer.Hex()
	}

	writeJSON(w, http.StatusOK, response)
}

func (service *MinterService) MintHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	caller, signature, ok := decodeMintRequest(w, r)
	if !ok {
		return
	}

	tokenID, mintErr := service.Controller.SignedMint(r.Context(), caller, signature)
	if mintErr != nil {
		var rejection *RejectionError
		switch {
		case errors.As(mintErr, &rejection):
			writeError(w, http.StatusForbidden, ErrWrongSignature.Error(), rejection.Reason.String())
		case errors.Is(mintErr, ErrStaleNonce):
			writeError(w, http.StatusConflict, mintErr.Error(), "")
		default:
			log.Error().Err(mintErr).Str("caller", caller.Hex()).Msg("Signed mint failed")
			writeError(w, http.StatusInternalServerError, "Internal server error", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, MintResponse{
		Recipient: caller.Hex(),
		TokenID:   tokenID.String(),
	})
}

// TokenHandler serves GET /tokens/{id}.
func (service *MinterService) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	rawID := strings.TrimPrefix(r.URL.Path, "/tokens/")
	tokenID, parseOK := new(big.Int).SetString(rawID, 10)
	if !parseOK || tokenID.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "Error parsing token ID", "")
		return
	}

	owner, err := service.Controller.OwnerOf(r.Context(), tokenID)
	if errors.Is(err, ErrTokenNotFound) {
		writeError(w, http.StatusNotFound, err.Error(), "")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("tokenID", rawID).Msg("Failed to read token owner")
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	tokenURI, err := service.Controller.TokenURI(r.Context(), tokenID)
	if err != nil {
		log.Error().Err(err).Str("tokenID", rawID).Msg("Failed to build token URI")
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		TokenID:  tokenID.String(),
		Owner:    owner.Hex(),
		TokenURI: tokenURI,
	})
}

func decodeMintRequest(w http.ResponseWriter, r *http.Request) (common.Address, []byte, bool) {
	var request MintRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&request); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "Error decoding request", "")
		return common.Address{}, nil, false
	}

	caller, signature, parseErr := request.Parse()
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, parseErr.Error(), "")
		return common.Address{}, nil, false
	}

	return caller, signature, true
}
