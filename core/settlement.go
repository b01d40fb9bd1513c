package core

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// SettlementState tracks a single state-changing chain operation.
type SettlementState string

const (
	StatePending            SettlementState = "PENDING"
	StateSubmitted          SettlementState = "SUBMITTED"
	StateConfirmed          SettlementState = "CONFIRMED"
	StateReverted           SettlementState = "REVERTED"
	StateFailedBeforeSubmit SettlementState = "FAILED_BEFORE_SUBMIT"
	// StateFailedAfterConfirm marks a mined transaction whose receipt could
	// not be turned into a result
	StateFailedAfterConfirm SettlementState = "FAILED_AFTER_CONFIRM"
)

// Settlement operation names, used in errors, logs, events and metrics.
const (
	OpDeploy   = "deploy_property"
	OpPurchase = "purchase_tokens"
	OpDeposit  = "deposit_yield"
	OpClaim    = "claim_yield"
)

// TransactionOutcome is the result of one submitted transaction.
type TransactionOutcome struct {
	TxHash      string          `json:"tx_hash"`
	State       SettlementState `json:"state"`
	Confirmed   bool            `json:"confirmed"`
	BlockNumber uint64          `json:"block_number,omitempty"`
}

// PropertyRecord is a point-in-time snapshot of a deployed property contract.
// It is re-read on demand and never cached.
type PropertyRecord struct {
	Address             common.Address
	URI                 string
	PaymentToken        common.Address
	MetadataHash        [32]byte
	MetadataURI         string
	TotalTokens         *big.Int
	PricePerToken       *big.Int
	AnnualReturnBP      uint16
	TokensSold          *big.Int
	TotalYieldDeposited *big.Int
	Owner               common.Address
}

// TokenInfo carries display metadata of the payment token.
type TokenInfo struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// SettlementEvent is emitted once a settlement operation has finished.
type SettlementEvent struct {
	Op        string          `json:"op"`
	Property  string          `json:"property"`
	Account   string          `json:"account"`
	Amount    string          `json:"amount,omitempty"`
	TxHash    string          `json:"tx_hash,omitempty"`
	State     SettlementState `json:"state"`
	Timestamp time.Time       `json:"timestamp"`
}

// AdminSigner is the backend-held key. It may only be used for contract
// deployment and yield deposits.
type AdminSigner struct {
	opts *bind.TransactOpts
}

// NewAdminSigner wraps transactor options built from the backend key.
func NewAdminSigner(opts *bind.TransactOpts) AdminSigner {
	return AdminSigner{opts: opts}
}

// Address returns the account the signer controls.
func (s AdminSigner) Address() common.Address {
	if s.opts == nil {
		return common.Address{}
	}
	return s.opts.From
}

// Valid reports whether the signer wraps usable options.
func (s AdminSigner) Valid() bool {
	return s.opts != nil && s.opts.Signer != nil
}

// TransactOpts returns a per-call copy of the transactor options.
func (s AdminSigner) TransactOpts() *bind.TransactOpts {
	return copyOpts(s.opts)
}

// ParticipantSigner is an end-user wallet supplied for a single purchase or
// claim. It is never stored.
type ParticipantSigner struct {
	opts *bind.TransactOpts
}

// NewParticipantSigner wraps transactor options of the end-user wallet.
func NewParticipantSigner(opts *bind.TransactOpts) ParticipantSigner {
	return ParticipantSigner{opts: opts}
}

// Address returns the account the signer controls.
func (s ParticipantSigner) Address() common.Address {
	if s.opts == nil {
		return common.Address{}
	}
	return s.opts.From
}

// Valid reports whether the signer wraps usable options.
func (s ParticipantSigner) Valid() bool {
	return s.opts != nil && s.opts.Signer != nil
}

// TransactOpts returns a per-call copy of the transactor options.
func (s ParticipantSigner) TransactOpts() *bind.TransactOpts {
	return copyOpts(s.opts)
}

func copyOpts(opts *bind.TransactOpts) *bind.TransactOpts {
	if opts == nil {
		return nil
	}
	cp := *opts
	return &cp
}
