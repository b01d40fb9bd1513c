// Package contracts holds the externally defined ABIs of the property factory,
// the property token contract and the ERC-20 payment token.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const factoryJSON = `[
  {"type":"function","name":"count","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allProperties","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"createProperty","stateMutability":"nonpayable","inputs":[
    {"name":"uri","type":"string"},
    {"name":"paymentToken","type":"address"},
    {"name":"metadataHash","type":"bytes32"},
    {"name":"metadataURI","type":"string"},
    {"name":"totalTokens","type":"uint256"},
    {"name":"pricePerToken","type":"uint256"},
    {"name":"annualReturnBP","type":"uint16"}
  ],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"PropertyDeployed","anonymous":false,"inputs":[
    {"name":"propertyAddress","type":"address","indexed":true},
    {"name":"propertyId","type":"uint256","indexed":false}
  ]}
]`

const propertyJSON = `[
  {"type":"function","name":"uri","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"paymentToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"metadataHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"metadataURI","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"totalTokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"pricePerToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"annualReturnBP","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint16"}]},
  {"type":"function","name":"tokensSold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalYieldDeposited","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"buyTokens","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"depositYield","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"claimYield","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

const erc20JSON = `[
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var (
	FactoryABI  = mustParse(factoryJSON)
	PropertyABI = mustParse(propertyJSON)
	ERC20ABI    = mustParse(erc20JSON)

	// PropertyDeployed is emitted by the factory for every new property contract.
	PropertyDeployed = FactoryABI.Events["PropertyDeployed"]
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("contracts: bad abi: " + err.Error())
	}
	return parsed
}
