package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FindLog returns the first log emitted by source whose first topic equals
// topic, or nil. The factory emits at most one PropertyDeployed per
// transaction, so the first match is the only one.
func FindLog(logs []*types.Log, source common.Address, topic common.Hash) *types.Log {
	for _, log := range logs {
		if log == nil || len(log.Topics) == 0 {
			continue
		}
		if log.Address != source {
			continue
		}
		if log.Topics[0] == topic {
			return log
		}
	}
	return nil
}

// DecodeEvent unpacks both indexed and non-indexed arguments of ev from log.
func DecodeEvent(ev abi.Event, log *types.Log) (map[string]interface{}, error) {
	if log == nil || len(log.Topics) == 0 || log.Topics[0] != ev.ID {
		return nil, fmt.Errorf("log is not a %s event", ev.Name)
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(log.Topics)-1 != len(indexed) {
		return nil, fmt.Errorf("%s: expected %d indexed topics, got %d", ev.Name, len(indexed), len(log.Topics)-1)
	}

	fields := make(map[string]interface{}, len(ev.Inputs))
	if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("%s: parse topics: %w", ev.Name, err)
	}
	if data := ev.Inputs.NonIndexed(); len(data) > 0 {
		if err := data.UnpackIntoMap(fields, log.Data); err != nil {
			return nil, fmt.Errorf("%s: unpack data: %w", ev.Name, err)
		}
	}
	return fields, nil
}

// DecodePropertyDeployed extracts the new contract address and its factory
// index from a PropertyDeployed log.
func DecodePropertyDeployed(log *types.Log) (common.Address, *big.Int, error) {
	fields, err := DecodeEvent(PropertyDeployed, log)
	if err != nil {
		return common.Address{}, nil, err
	}
	addr, ok := fields["propertyAddress"].(common.Address)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("PropertyDeployed: propertyAddress has type %T", fields["propertyAddress"])
	}
	id, ok := fields["propertyId"].(*big.Int)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("PropertyDeployed: propertyId has type %T", fields["propertyId"])
	}
	return addr, id, nil
}
