package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/layer-3/estate/contracts"
	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/ports"
)

// Settlement steps reported in errors and metrics
const (
	StepValidate       = "validate"
	StepReadPrice      = "read_price"
	StepReadAllowance  = "read_allowance"
	StepApprove        = "approve"
	StepCreateProperty = "create_property"
	StepDecodeEvent    = "decode_event"
	StepBuyTokens      = "buy_tokens"
	StepDepositYield   = "deposit_yield"
	StepClaimYield     = "claim_yield"
)

// SettlementOptions configures a SettlementService
type SettlementOptions struct {
	// ConfirmTimeout bounds every confirmation wait; zero waits until ctx is done
	ConfirmTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *Metrics
	Now            func() time.Time
}

// DeployRequest are the inputs of a property deployment
type DeployRequest struct {
	// PropertyID is the registry record the deployed address is linked to.
	// Zero deploys without linking.
	PropertyID     int64
	URI            string
	PaymentToken   string
	MetadataHash   []byte
	MetadataURI    string
	TotalTokens    *big.Int
	PricePerToken  *big.Int
	AnnualReturnBP int64
}

// DeployResult describes a confirmed deployment
type DeployResult struct {
	Address       common.Address
	PropertyIndex *big.Int
	Outcome       core.TransactionOutcome
	// RecordErr is set when the address was not handed to the registry,
	// wrapping core.ErrNotRecorded. The deployment itself succeeded and is
	// not undone.
	RecordErr error
}

// PurchaseResult describes a confirmed purchase. Approval is nil when the
// existing allowance already covered the cost.
type PurchaseResult struct {
	Cost     *big.Int
	Approval *core.TransactionOutcome
	Purchase core.TransactionOutcome
}

// DepositResult describes a confirmed yield deposit
type DepositResult struct {
	Approval *core.TransactionOutcome
	Deposit  core.TransactionOutcome
}

// SettlementService orchestrates state-changing contract calls
type SettlementService struct {
	chain     ports.Chain
	recorder  ports.DeploymentRecorder
	publisher ports.EventPublisher
	locks     *signerLocks

	confirmTimeout time.Duration
	logger         *slog.Logger
	metrics        *Metrics
	now            func() time.Time
}

// NewSettlementService creates a new settlement orchestrator. recorder and
// publisher may be nil; without a recorder every deployment reports
// core.ErrNotRecorded in its result.
func NewSettlementService(
	chain ports.Chain,
	recorder ports.DeploymentRecorder,
	publisher ports.EventPublisher,
	opts SettlementOptions,
) *SettlementService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SettlementService{
		chain:          chain,
		recorder:       recorder,
		publisher:      publisher,
		locks:          newSignerLocks(),
		confirmTimeout: opts.ConfirmTimeout,
		logger:         logger.With("component", "settlement"),
		metrics:        opts.Metrics,
		now:            now,
	}
}

func (r DeployRequest) params() (ports.PropertyParams, error) {
	var p ports.PropertyParams

	if r.PropertyID < 0 {
		return p, fmt.Errorf("%w: property id must not be negative", core.ErrInvalidInput)
	}
	token, err := core.ParseAddress(r.PaymentToken)
	if err != nil {
		return p, fmt.Errorf("payment token: %w", err)
	}
	if len(r.MetadataHash) != 32 {
		return p, fmt.Errorf("%w: metadata hash must be 32 bytes, got %d", core.ErrInvalidInput, len(r.MetadataHash))
	}
	if r.AnnualReturnBP < 0 || r.AnnualReturnBP > math.MaxUint16 {
		return p, fmt.Errorf("%w: annual return %d bp outside [0, %d]", core.ErrInvalidInput, r.AnnualReturnBP, math.MaxUint16)
	}
	if strings.TrimSpace(r.URI) == "" || strings.TrimSpace(r.MetadataURI) == "" {
		return p, fmt.Errorf("%w: uri and metadata uri are required", core.ErrInvalidInput)
	}
	if !positive(r.TotalTokens) || !positive(r.PricePerToken) {
		return p, fmt.Errorf("%w: total tokens and price must be positive", core.ErrInvalidInput)
	}

	p = ports.PropertyParams{
		URI:            r.URI,
		PaymentToken:   token,
		MetadataURI:    r.MetadataURI,
		TotalTokens:    new(big.Int).Set(r.TotalTokens),
		PricePerToken:  new(big.Int).Set(r.PricePerToken),
		AnnualReturnBP: uint16(r.AnnualReturnBP),
	}
	copy(p.MetadataHash[:], r.MetadataHash)
	return p, nil
}

// DeployProperty deploys a property contract with the administrative signer
// and learns its address from the factory's PropertyDeployed event.
func (s *SettlementService) DeployProperty(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	params, err := req.params()
	if err != nil {
		return nil, s.failBeforeSubmit(core.OpDeploy, StepValidate, err)
	}
	admin, err := s.chain.Admin()
	if err != nil {
		return nil, s.failBeforeSubmit(core.OpDeploy, StepValidate, err)
	}

	factory := s.chain.Factory()
	outcome, receipt, err := s.submit(ctx, core.OpDeploy, StepCreateProperty, admin.Address(), func() (*types.Transaction, error) {
		return factory.CreateProperty(admin.TransactOpts(), params)
	})
	if err != nil {
		s.finish(ctx, core.OpDeploy, "", admin.Address(), nil, outcome)
		return nil, err
	}

	log := contracts.FindLog(receipt.Logs, factory.Address(), contracts.PropertyDeployed.ID)
	if log == nil {
		return nil, s.failAfterConfirm(ctx, core.OpDeploy, admin.Address(), outcome, core.ErrEventNotFound)
	}
	deployed, index, err := contracts.DecodePropertyDeployed(log)
	if err != nil {
		return nil, s.failAfterConfirm(ctx, core.OpDeploy, admin.Address(), outcome, fmt.Errorf("%w: %w", core.ErrDecodeFailure, err))
	}
	if deployed == (common.Address{}) {
		return nil, s.failAfterConfirm(ctx, core.OpDeploy, admin.Address(), outcome, fmt.Errorf("%w: zero property address", core.ErrDecodeFailure))
	}

	result := &DeployResult{
		Address:       deployed,
		PropertyIndex: index,
		Outcome:       outcome,
	}

	s.logger.InfoContext(ctx, "property deployed",
		"property_id", req.PropertyID,
		"address", core.Checksum(deployed),
		"tx_hash", outcome.TxHash)

	// On-chain state stays whatever happens here; the registry can be
	// reconciled from the factory listing
	if result.RecordErr = s.record(ctx, req.PropertyID, deployed); result.RecordErr != nil {
		s.logger.ErrorContext(ctx, "deployed address not recorded",
			"property_id", req.PropertyID,
			"address", core.Checksum(deployed),
			"error", result.RecordErr)
	}

	s.finish(ctx, core.OpDeploy, core.Canonical(deployed), admin.Address(), nil, outcome)
	return result, nil
}

// PurchaseTokens buys amount property tokens with the buyer's own wallet. The
// price is read from the contract at call time and the payment token is
// approved only when the current allowance does not cover the cost.
//
// Approval and purchase are two separate transactions. When the purchase
// fails after a confirmed approval, the allowance stays raised.
func (s *SettlementService) PurchaseTokens(ctx context.Context, propertyAddress string, amount *big.Int, signer core.ParticipantSigner) (*PurchaseResult, error) {
	if err := s.checkParticipant(signer); err != nil {
		return nil, s.failBeforeSubmit(core.OpPurchase, StepValidate, err)
	}
	if !positive(amount) {
		return nil, s.failBeforeSubmit(core.OpPurchase, StepValidate, fmt.Errorf("%w: amount must be positive", core.ErrInvalidInput))
	}
	property, err := s.chain.Property(propertyAddress)
	if err != nil {
		return nil, s.failBeforeSubmit(core.OpPurchase, StepValidate, err)
	}

	price, err := property.PricePerToken(ctx)
	if err != nil {
		return nil, s.failBeforeSubmit(core.OpPurchase, StepReadPrice, err)
	}
	cost := new(big.Int).Mul(price, amount)

	s.logger.InfoContext(ctx, "purchasing property tokens",
		"property", core.Checksum(property.Address()),
		"buyer", core.Checksum(signer.Address()),
		"amount", amount.String(),
		"cost", cost.String())

	approval, err := s.ensureAllowance(ctx, core.OpPurchase, property.Address(), signer.Address(), cost, signer.TransactOpts)
	if err != nil {
		return nil, err
	}

	outcome, _, err := s.submit(ctx, core.OpPurchase, StepBuyTokens, signer.Address(), func() (*types.Transaction, error) {
		return property.BuyTokens(signer.TransactOpts(), amount)
	})
	s.finish(ctx, core.OpPurchase, core.Canonical(property.Address()), signer.Address(), amount, outcome)
	if err != nil {
		return nil, err
	}

	return &PurchaseResult{
		Cost:     cost,
		Approval: approval,
		Purchase: outcome,
	}, nil
}

// DepositYield deposits amount of the payment token as yield with the
// administrative signer. Like a purchase it approves first when needed and
// shares the same partial-failure window.
func (s *SettlementService) DepositYield(ctx context.Context, propertyAddress string, amount *big.Int) (*DepositResult, error) {
	if !positive(amount) {
		return nil, s.failBeforeSubmit(core.OpDeposit, StepValidate, fmt.Errorf("%w: amount must be positive", core.ErrInvalidInput))
	}
	property, err := s.chain.Property(propertyAddress)
	if err != nil {
		return nil, s.failBeforeSubmit(core.OpDeposit, StepValidate, err)
	}
	admin, err := s.chain.Admin()
	if err != nil {
		return nil, s.failBeforeSubmit(core.OpDeposit, StepValidate, err)
	}

	approval, err := s.ensureAllowance(ctx, core.OpDeposit, property.Address(), admin.Address(), amount, admin.TransactOpts)
	if err != nil {
		return nil, err
	}

	outcome, _, err := s.submit(ctx, core.OpDeposit, StepDepositYield, admin.Address(), func() (*types.Transaction, error) {
		return property.DepositYield(admin.TransactOpts(), amount)
	})
	s.finish(ctx, core.OpDeposit, core.Canonical(property.Address()), admin.Address(), amount, outcome)
	if err != nil {
		return nil, err
	}

	return &DepositResult{
		Approval: approval,
		Deposit:  outcome,
	}, nil
}

// ClaimYield claims accrued yield with the holder's own wallet
func (s *SettlementService) ClaimYield(ctx context.Context, propertyAddress string, signer core.ParticipantSigner) (*core.TransactionOutcome, error) {
	if err := s.checkParticipant(signer); err != nil {
		return nil, s.failBeforeSubmit(core.OpClaim, StepValidate, err)
	}
	property, err := s.chain.Property(propertyAddress)
	if err != nil {
		return nil, s.failBeforeSubmit(core.OpClaim, StepValidate, err)
	}

	outcome, _, err := s.submit(ctx, core.OpClaim, StepClaimYield, signer.Address(), func() (*types.Transaction, error) {
		return property.ClaimYield(signer.TransactOpts())
	})
	s.finish(ctx, core.OpClaim, core.Canonical(property.Address()), signer.Address(), nil, outcome)
	if err != nil {
		return nil, err
	}

	return &outcome, nil
}

// record links the deployed address to its registry record
func (s *SettlementService) record(ctx context.Context, propertyID int64, deployed common.Address) error {
	if propertyID <= 0 {
		return fmt.Errorf("%w: no registry record id", core.ErrNotRecorded)
	}
	if s.recorder == nil {
		return fmt.Errorf("%w: no registry configured", core.ErrNotRecorded)
	}
	if err := s.recorder.RecordDeployedAddress(ctx, propertyID, deployed); err != nil {
		return fmt.Errorf("%w: %w", core.ErrNotRecorded, err)
	}
	return nil
}

// checkParticipant rejects missing signers and the backend key posing as a
// participant
func (s *SettlementService) checkParticipant(signer core.ParticipantSigner) error {
	if !signer.Valid() {
		return fmt.Errorf("%w: participant signer required", core.ErrInvalidInput)
	}
	if admin, err := s.chain.Admin(); err == nil && admin.Address() == signer.Address() {
		return fmt.Errorf("%w: administrative key cannot act as participant", core.ErrInvalidInput)
	}
	return nil
}

// ensureAllowance approves spender for amount on the payment token unless the
// owner's current allowance already covers it.
func (s *SettlementService) ensureAllowance(
	ctx context.Context,
	op string,
	spender, owner common.Address,
	amount *big.Int,
	opts func() *bind.TransactOpts,
) (*core.TransactionOutcome, error) {
	token := s.chain.PaymentToken()

	allowance, err := token.Allowance(ctx, owner, spender)
	if err != nil {
		return nil, s.failBeforeSubmit(op, StepReadAllowance, err)
	}
	if allowance.Cmp(amount) >= 0 {
		s.logger.DebugContext(ctx, "allowance sufficient, skipping approval",
			"op", op,
			"owner", core.Checksum(owner),
			"allowance", allowance.String())
		return nil, nil
	}

	outcome, _, err := s.submit(ctx, op, StepApprove, owner, func() (*types.Transaction, error) {
		return token.Approve(opts(), spender, amount)
	})
	if err != nil {
		s.finish(ctx, op, core.Canonical(spender), owner, amount, outcome)
		return nil, err
	}
	return &outcome, nil
}

// submit sends one transaction under the signer lock, waits for exactly one
// confirmation and checks the receipt status. It never resubmits.
func (s *SettlementService) submit(
	ctx context.Context,
	op, step string,
	from common.Address,
	send func() (*types.Transaction, error),
) (core.TransactionOutcome, *types.Receipt, error) {
	outcome := core.TransactionOutcome{State: core.StatePending}

	release := s.locks.lock(from)
	tx, err := send()
	release()
	if err != nil {
		outcome.State = core.StateFailedBeforeSubmit
		return outcome, nil, s.failBeforeSubmit(op, step, err)
	}

	outcome.TxHash = tx.Hash().Hex()
	outcome.State = core.StateSubmitted
	s.logger.InfoContext(ctx, "transaction submitted", "op", op, "step", step, "tx_hash", outcome.TxHash)

	waitCtx := ctx
	if s.confirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.confirmTimeout)
		defer cancel()
	}

	started := s.now()
	receipt, err := s.chain.WaitConfirmed(waitCtx, tx)
	if err != nil {
		s.logger.WarnContext(ctx, "transaction not confirmed", "op", op, "step", step, "tx_hash", outcome.TxHash, "error", err)
		return outcome, nil, &core.SettlementError{
			Op:     op,
			Step:   step,
			State:  core.StateSubmitted,
			TxHash: outcome.TxHash,
			Err:    fmt.Errorf("%w: %w", core.ErrNotConfirmed, err),
		}
	}
	s.metrics.confirmed(step, s.now().Sub(started))

	if receipt.BlockNumber != nil {
		outcome.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		outcome.State = core.StateReverted
		s.logger.WarnContext(ctx, "transaction reverted", "op", op, "step", step, "tx_hash", outcome.TxHash)
		return outcome, receipt, &core.SettlementError{
			Op:     op,
			Step:   step,
			State:  core.StateReverted,
			TxHash: outcome.TxHash,
			Err:    core.ErrTransactionReverted,
		}
	}

	outcome.State = core.StateConfirmed
	outcome.Confirmed = true
	return outcome, receipt, nil
}

func (s *SettlementService) failBeforeSubmit(op, step string, err error) error {
	var se *core.SettlementError
	if errors.As(err, &se) {
		return err
	}
	s.metrics.settlement(op, string(core.StateFailedBeforeSubmit))
	return &core.SettlementError{
		Op:    op,
		Step:  step,
		State: core.StateFailedBeforeSubmit,
		Err:   err,
	}
}

// failAfterConfirm reports a mined deployment whose receipt could not be
// interpreted. No address is guessed.
func (s *SettlementService) failAfterConfirm(ctx context.Context, op string, account common.Address, outcome core.TransactionOutcome, err error) error {
	outcome.State = core.StateFailedAfterConfirm
	s.logger.ErrorContext(ctx, "deployment receipt unusable", "op", op, "tx_hash", outcome.TxHash, "error", err)
	s.finish(ctx, op, "", account, nil, outcome)
	return &core.SettlementError{
		Op:     op,
		Step:   StepDecodeEvent,
		State:  outcome.State,
		TxHash: outcome.TxHash,
		Err:    err,
	}
}

// finish records the final state of a submitted operation and publishes it
func (s *SettlementService) finish(ctx context.Context, op, property string, account common.Address, amount *big.Int, outcome core.TransactionOutcome) {
	if outcome.TxHash == "" {
		// failBeforeSubmit already counted it
		return
	}
	s.metrics.settlement(op, string(outcome.State))

	if s.publisher == nil {
		return
	}
	event := core.SettlementEvent{
		Op:        op,
		Property:  property,
		Account:   core.Canonical(account),
		TxHash:    outcome.TxHash,
		State:     outcome.State,
		Timestamp: s.now().UTC(),
	}
	if amount != nil {
		event.Amount = amount.String()
	}
	if err := s.publisher.PublishSettlement(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish settlement event", "op", op, "tx_hash", outcome.TxHash, "error", err)
	}
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
