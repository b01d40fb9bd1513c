package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/layer-3/estate/core"
)

type boundContract struct {
	address  common.Address
	contract *bind.BoundContract
}

func newBoundContract(address common.Address, parsed abi.ABI, backend bind.ContractBackend) boundContract {
	return boundContract{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}
}

func (b boundContract) Address() common.Address {
	return b.address
}

func (b boundContract) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %w", core.ErrRPCFailure, method, b.address.Hex(), err)
	}
	return out, nil
}

func (b boundContract) transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	tx, err := b.contract.Transact(opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %w", core.ErrRPCFailure, method, b.address.Hex(), err)
	}
	return tx, nil
}

// callOne performs a single-output view call and type-checks the result.
func callOne[T any](ctx context.Context, b boundContract, method string, params ...interface{}) (T, error) {
	var zero T
	out, err := b.call(ctx, method, params...)
	if err != nil {
		return zero, err
	}
	if len(out) == 0 {
		return zero, fmt.Errorf("%w: %s returned no values", core.ErrDecodeFailure, method)
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", core.ErrDecodeFailure, method, out[0])
	}
	return v, nil
}
