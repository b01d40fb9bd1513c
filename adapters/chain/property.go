package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/layer-3/estate/contracts"
	"github.com/layer-3/estate/ports"
)

// Property is a handle to one deployed property contract.
type Property struct {
	boundContract
}

var _ ports.Property = (*Property)(nil)

func newProperty(address common.Address, backend bind.ContractBackend) *Property {
	return &Property{newBoundContract(address, contracts.PropertyABI, backend)}
}

func (p *Property) URI(ctx context.Context, id *big.Int) (string, error) {
	return callOne[string](ctx, p.boundContract, "uri", id)
}

func (p *Property) PaymentToken(ctx context.Context) (common.Address, error) {
	return callOne[common.Address](ctx, p.boundContract, "paymentToken")
}

func (p *Property) MetadataHash(ctx context.Context) ([32]byte, error) {
	return callOne[[32]byte](ctx, p.boundContract, "metadataHash")
}

func (p *Property) MetadataURI(ctx context.Context) (string, error) {
	return callOne[string](ctx, p.boundContract, "metadataURI")
}

func (p *Property) TotalTokens(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, p.boundContract, "totalTokens")
}

func (p *Property) PricePerToken(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, p.boundContract, "pricePerToken")
}

func (p *Property) AnnualReturnBP(ctx context.Context) (uint16, error) {
	return callOne[uint16](ctx, p.boundContract, "annualReturnBP")
}

func (p *Property) TokensSold(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, p.boundContract, "tokensSold")
}

func (p *Property) TotalYieldDeposited(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, p.boundContract, "totalYieldDeposited")
}

func (p *Property) Owner(ctx context.Context) (common.Address, error) {
	return callOne[common.Address](ctx, p.boundContract, "owner")
}

func (p *Property) BuyTokens(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return p.transact(opts, "buyTokens", amount)
}

func (p *Property) DepositYield(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return p.transact(opts, "depositYield", amount)
}

func (p *Property) ClaimYield(opts *bind.TransactOpts) (*types.Transaction, error) {
	return p.transact(opts, "claimYield")
}
