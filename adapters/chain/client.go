// Package chain talks to the EVM RPC endpoint: it owns the read connection,
// the optional administrative signer and the typed contract handles.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/ports"
)

// Backend is the subset of the Ethereum RPC the client needs.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Config describes the endpoint and the fixed contract addresses.
type Config struct {
	RPCURL              string
	FactoryAddress      string
	PaymentTokenAddress string
	// AdminPrivateKey is a hex secp256k1 key; empty disables admin operations
	AdminPrivateKey string
	// ChainID is asked from the node when nil
	ChainID *big.Int
}

// Validate checks the contract addresses without touching the network.
func (cfg Config) Validate() error {
	if _, err := core.ParseAddress(cfg.FactoryAddress); err != nil {
		return fmt.Errorf("factory address: %w", err)
	}
	if _, err := core.ParseAddress(cfg.PaymentTokenAddress); err != nil {
		return fmt.Errorf("payment token address: %w", err)
	}
	return nil
}

// Client implements ports.Chain.
type Client struct {
	backend Backend
	closeFn func()
	chainID *big.Int

	factory *Factory
	token   *Token
	admin   core.AdminSigner
}

var _ ports.Chain = (*Client)(nil)

// Dial connects to the RPC endpoint and builds a client.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	url := strings.TrimSpace(cfg.RPCURL)
	if url == "" {
		return nil, fmt.Errorf("rpc url required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node: %w", err)
	}

	client, err := NewClient(ctx, ec, cfg)
	if err != nil {
		ec.Close()
		return nil, err
	}
	client.closeFn = ec.Close

	return client, nil
}

// NewClient builds a client on top of an existing backend. Contract
// addresses are validated before any network call.
func NewClient(ctx context.Context, backend Backend, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factoryAddr, _ := core.ParseAddress(cfg.FactoryAddress)
	tokenAddr, _ := core.ParseAddress(cfg.PaymentTokenAddress)

	chainID := cfg.ChainID
	if chainID == nil || chainID.Sign() == 0 {
		id, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to get chain ID: %w", core.ErrRPCFailure, err)
		}
		chainID = id
	}

	client := &Client{
		backend: backend,
		chainID: new(big.Int).Set(chainID),
		factory: newFactory(factoryAddr, backend),
		token:   newToken(tokenAddr, backend),
	}

	if key := strings.TrimSpace(cfg.AdminPrivateKey); key != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse admin key: %w", err)
		}
		opts, err := bind.NewKeyedTransactorWithChainID(privateKey, client.chainID)
		if err != nil {
			return nil, fmt.Errorf("failed to build admin transactor: %w", err)
		}
		client.admin = core.NewAdminSigner(opts)
	}

	return client, nil
}

// ChainID returns the chain id transactions are signed for.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Factory returns the configured property factory.
func (c *Client) Factory() ports.PropertyFactory {
	return c.factory
}

// PaymentToken returns the configured payment token.
func (c *Client) PaymentToken() ports.PaymentToken {
	return c.token
}

// Property returns a handle to the property contract at address.
func (c *Client) Property(address string) (ports.Property, error) {
	addr, err := core.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return newProperty(addr, c.backend), nil
}

// Token returns a handle to the ERC-20 contract at address.
func (c *Client) Token(address string) (ports.PaymentToken, error) {
	addr, err := core.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return newToken(addr, c.backend), nil
}

// Admin returns the administrative signer.
func (c *Client) Admin() (core.AdminSigner, error) {
	if !c.admin.Valid() {
		return core.AdminSigner{}, core.ErrNoSigner
	}
	return c.admin, nil
}

// ParticipantSigner builds transactor options for an end-user key, bound to
// the client's chain id.
func (c *Client) ParticipantSigner(key *ecdsa.PrivateKey) (core.ParticipantSigner, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return core.ParticipantSigner{}, fmt.Errorf("failed to build transactor: %w", err)
	}
	return core.NewParticipantSigner(opts), nil
}

// WaitConfirmed waits until tx is mined.
func (c *Client) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.backend, tx)
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// AdminAddress returns the backend signer account, or the zero address.
func (c *Client) AdminAddress() common.Address {
	return c.admin.Address()
}
