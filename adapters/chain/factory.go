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

// Factory is the on-chain registry that deploys property contracts.
type Factory struct {
	boundContract
}

var _ ports.PropertyFactory = (*Factory)(nil)

func newFactory(address common.Address, backend bind.ContractBackend) *Factory {
	return &Factory{newBoundContract(address, contracts.FactoryABI, backend)}
}

func (f *Factory) Count(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, f.boundContract, "count")
}

func (f *Factory) PropertyAt(ctx context.Context, index *big.Int) (common.Address, error) {
	return callOne[common.Address](ctx, f.boundContract, "allProperties", index)
}

func (f *Factory) CreateProperty(opts *bind.TransactOpts, p ports.PropertyParams) (*types.Transaction, error) {
	return f.transact(opts, "createProperty",
		p.URI,
		p.PaymentToken,
		p.MetadataHash,
		p.MetadataURI,
		p.TotalTokens,
		p.PricePerToken,
		p.AnnualReturnBP,
	)
}
