package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/layer-3/estate/core"
)

// PropertyParams are the constructor arguments of a new property contract.
type PropertyParams struct {
	URI            string
	PaymentToken   common.Address
	MetadataHash   [32]byte
	MetadataURI    string
	TotalTokens    *big.Int
	PricePerToken  *big.Int
	AnnualReturnBP uint16
}

// PropertyFactory enumerates and deploys property contracts.
type PropertyFactory interface {
	Address() common.Address
	Count(ctx context.Context) (*big.Int, error)
	PropertyAt(ctx context.Context, index *big.Int) (common.Address, error)
	CreateProperty(opts *bind.TransactOpts, params PropertyParams) (*types.Transaction, error)
}

// Property is a single deployed property contract.
type Property interface {
	Address() common.Address
	URI(ctx context.Context, id *big.Int) (string, error)
	PaymentToken(ctx context.Context) (common.Address, error)
	MetadataHash(ctx context.Context) ([32]byte, error)
	MetadataURI(ctx context.Context) (string, error)
	TotalTokens(ctx context.Context) (*big.Int, error)
	PricePerToken(ctx context.Context) (*big.Int, error)
	AnnualReturnBP(ctx context.Context) (uint16, error)
	TokensSold(ctx context.Context) (*big.Int, error)
	TotalYieldDeposited(ctx context.Context) (*big.Int, error)
	Owner(ctx context.Context) (common.Address, error)

	BuyTokens(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error)
	DepositYield(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error)
	ClaimYield(opts *bind.TransactOpts) (*types.Transaction, error)
}

// PaymentToken is the ERC-20 used to pay for property tokens and yield.
type PaymentToken interface {
	Address() common.Address
	Decimals(ctx context.Context) (uint8, error)
	Symbol(ctx context.Context) (string, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error)
}

// Chain hands out typed contract handles and the administrative signer.
type Chain interface {
	Factory() PropertyFactory
	Property(address string) (Property, error)
	Token(address string) (PaymentToken, error)
	PaymentToken() PaymentToken

	// Admin returns core.ErrNoSigner when no backend key is configured
	Admin() (core.AdminSigner, error)

	// WaitConfirmed blocks until tx is included in a block or ctx is done
	WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}
