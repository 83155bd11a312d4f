package main

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// NonceSource reports the live nonce, i.e. the number of tokens minted so far.
type NonceSource interface {
	CurrentNonce(ctx context.Context) (*big.Int, error)
}

// ControllerNonceSource reads the nonce from an in-process MintingController.
type ControllerNonceSource struct {
	Controller *MintingController
}

func (source *ControllerNonceSource) CurrentNonce(ctx context.Context) (*big.Int, error) {
	return source.Controller.TotalSupply(ctx)
}

// TotalSupplyABI is the only part of the token contract the signer needs.
const TotalSupplyABI = `[{"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// ContractNonceSource reads totalSupply() from a deployed token contract.
type ContractNonceSource struct {
	HTTPProviderURL string
	ContractAddress common.Address
	Web3Client      *ethclient.Client
	ChainID         *big.Int
	contract        *bind.BoundContract
}

type ContractNonceSourceStatus struct {
	HTTPProviderURL string         `json:"httpProviderURL"`
	ChainID         *big.Int       `json:"chainID"`
	BlockNumber     uint64         `json:"blockNumber"`
	ContractAddress common.Address `json:"contractAddress"`
}

func (source *ContractNonceSource) ConfigureFromEnv() error {
	source.HTTPProviderURL = os.Getenv("MINT_SIGNER_HTTP_PROVIDER_URL")
	if source.HTTPProviderURL == "" {
		return errors.New("MINT_SIGNER_HTTP_PROVIDER_URL must be set")
	}

	contractAddressRaw := os.Getenv("MINT_TOKEN_ADDRESS")
	if !common.IsHexAddress(contractAddressRaw) {
		return errors.Errorf("MINT_TOKEN_ADDRESS must be a valid Ethereum address, got %q", contractAddressRaw)
	}
	source.ContractAddress = common.HexToAddress(contractAddressRaw)

	client, err := ethclient.Dial(source.HTTPProviderURL)
	if err != nil {
		return errors.Wrap(err, "failed to dial provider")
	}
	source.Web3Client = client

	// eth_chainId returns the chain ID (in hex format) used for transaction signing at the current best block
	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to fetch chain ID")
	}
	source.ChainID = chainID

	return source.bindContract(client)
}

func (source *ContractNonceSource) bindContract(caller bind.ContractCaller) error {
	parsed, err := abi.JSON(strings.NewReader(TotalSupplyABI))
	if err != nil {
		return err
	}
	source.contract = bind.NewBoundContract(source.ContractAddress, parsed, caller, nil, nil)
	return nil
}

func (source *ContractNonceSource) CurrentNonce(ctx context.Context) (*big.Int, error) {
	if source.contract == nil {
		return nil, errors.New("contract nonce source is not configured")
	}

	var out []interface{}
	callOpts := &bind.CallOpts{Pending: false, Context: ctx}
	if err := source.contract.Call(callOpts, &out, "totalSupply"); err != nil {
		return nil, errors.Wrap(err, "totalSupply call failed")
	}
	if len(out) != 1 {
		return nil, errors.Errorf("totalSupply returned %d values", len(out))
	}

	supply, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("totalSupply returned unexpected type %T", out[0])
	}
	return supply, nil
}

func (source *ContractNonceSource) Status(ctx context.Context) ([]byte, error) {
	// eth_blockNumber returns the number of most recent block
	blockNumber, err := source.Web3Client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	status := ContractNonceSourceStatus{
		HTTPProviderURL: source.HTTPProviderURL,
		ChainID:         source.ChainID,
		BlockNumber:     blockNumber,
		ContractAddress: source.ContractAddress,
	}

	return json.Marshal(status)
}
