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

// Token is a handle to an ERC-20 payment token.
type Token struct {
	boundContract
}

var _ ports.PaymentToken = (*Token)(nil)

func newToken(address common.Address, backend bind.ContractBackend) *Token {
	return &Token{newBoundContract(address, contracts.ERC20ABI, backend)}
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	return callOne[uint8](ctx, t.boundContract, "decimals")
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	return callOne[string](ctx, t.boundContract, "symbol")
}

func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, t.boundContract, "balanceOf", account)
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, t.boundContract, "allowance", owner, spender)
}

func (t *Token) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.transact(opts, "approve", spender, amount)
}
