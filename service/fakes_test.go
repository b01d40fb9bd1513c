package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/estate/contracts"
	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/ports"
	"github.com/stretchr/testify/require"
)

const testChainID = 1337

var (
	factoryAddr  = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	tokenAddr    = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	propertyAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func newTransactor(t *testing.T) (*ecdsa.PrivateKey, *bind.TransactOpts) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(testChainID))
	require.NoError(t, err)
	return key, opts
}

func newParticipant(t *testing.T) core.ParticipantSigner {
	t.Helper()
	_, opts := newTransactor(t)
	return core.NewParticipantSigner(opts)
}

func newAdmin(t *testing.T) core.AdminSigner {
	t.Helper()
	_, opts := newTransactor(t)
	return core.NewAdminSigner(opts)
}

type submission struct {
	method string
	from   common.Address
	args   []*big.Int
}

// fakeChain records every read and submission and mints receipts on demand
type fakeChain struct {
	mu sync.Mutex

	factory    *fakeFactory
	token      *fakeToken
	properties map[common.Address]*fakeProperty
	admin      core.AdminSigner

	nonce       uint64
	reads       int
	submissions []submission
	receipts    map[common.Hash]*types.Receipt

	sendErr     map[string]error
	revert      map[string]bool
	receiptLogs map[string][]*types.Log
	waitErr     error
	blockWait   bool
}

func newFakeChain() *fakeChain {
	c := &fakeChain{
		properties:  make(map[common.Address]*fakeProperty),
		receipts:    make(map[common.Hash]*types.Receipt),
		sendErr:     make(map[string]error),
		revert:      make(map[string]bool),
		receiptLogs: make(map[string][]*types.Log),
	}
	c.factory = &fakeFactory{chain: c, atErr: make(map[int64]error)}
	c.token = &fakeToken{chain: c, allowances: make(map[common.Address]*big.Int)}
	return c
}

var _ ports.Chain = (*fakeChain)(nil)

func (c *fakeChain) addProperty(addr common.Address, price int64) *fakeProperty {
	p := &fakeProperty{
		chain:   c,
		address: addr,
		price:   big.NewInt(price),
		readErr: make(map[string]error),
	}
	c.mu.Lock()
	c.properties[addr] = p
	c.mu.Unlock()
	return p
}

func (c *fakeChain) read(field string, errs map[string]error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if errs != nil {
		return errs[field]
	}
	return nil
}

func (c *fakeChain) send(method string, opts *bind.TransactOpts, args ...*big.Int) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if opts == nil || opts.Signer == nil {
		return nil, errors.New("no transactor")
	}
	if err := c.sendErr[method]; err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrRPCFailure, method, err)
	}

	c.nonce++
	to := factoryAddr
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    c.nonce,
		GasPrice: big.NewInt(1),
		Gas:      100_000,
		To:       &to,
		Value:    big.NewInt(0),
	})

	status := types.ReceiptStatusSuccessful
	if c.revert[method] {
		status = types.ReceiptStatusFailed
	}
	c.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(int64(100 + c.nonce)),
		Logs:        c.receiptLogs[method],
	}
	c.submissions = append(c.submissions, submission{method: method, from: opts.From, args: args})
	return tx, nil
}

func (c *fakeChain) methods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.submissions))
	for _, s := range c.submissions {
		out = append(out, s.method)
	}
	return out
}

func (c *fakeChain) submitted(method string) []submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []submission
	for _, s := range c.submissions {
		if s.method == method {
			out = append(out, s)
		}
	}
	return out
}

func (c *fakeChain) networkCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads + len(c.submissions)
}

func (c *fakeChain) Factory() ports.PropertyFactory { return c.factory }

func (c *fakeChain) Property(address string) (ports.Property, error) {
	addr, err := core.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.properties[addr]
	if !ok {
		return nil, fmt.Errorf("no fake property at %s", addr.Hex())
	}
	return p, nil
}

func (c *fakeChain) Token(address string) (ports.PaymentToken, error) {
	if _, err := core.ParseAddress(address); err != nil {
		return nil, err
	}
	return c.token, nil
}

func (c *fakeChain) PaymentToken() ports.PaymentToken { return c.token }

func (c *fakeChain) Admin() (core.AdminSigner, error) {
	if !c.admin.Valid() {
		return core.AdminSigner{}, core.ErrNoSigner
	}
	return c.admin, nil
}

func (c *fakeChain) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	c.mu.Lock()
	waitErr, block, receipt := c.waitErr, c.blockWait, c.receipts[tx.Hash()]
	c.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if waitErr != nil {
		return nil, waitErr
	}
	if receipt == nil {
		return nil, errors.New("unknown transaction")
	}
	return receipt, nil
}

type fakeFactory struct {
	chain     *fakeChain
	addresses []common.Address
	countErr  error
	atErr     map[int64]error
	created   []ports.PropertyParams
}

func (f *fakeFactory) Address() common.Address { return factoryAddr }

func (f *fakeFactory) Count(ctx context.Context) (*big.Int, error) {
	if err := f.chain.read("count", nil); err != nil {
		return nil, err
	}
	if f.countErr != nil {
		return nil, f.countErr
	}
	return big.NewInt(int64(len(f.addresses))), nil
}

func (f *fakeFactory) PropertyAt(ctx context.Context, index *big.Int) (common.Address, error) {
	_ = f.chain.read("allProperties", nil)
	if err := f.atErr[index.Int64()]; err != nil {
		return common.Address{}, err
	}
	return f.addresses[index.Int64()], nil
}

func (f *fakeFactory) CreateProperty(opts *bind.TransactOpts, params ports.PropertyParams) (*types.Transaction, error) {
	tx, err := f.chain.send("createProperty", opts, params.TotalTokens, params.PricePerToken)
	if err == nil {
		f.chain.mu.Lock()
		f.created = append(f.created, params)
		f.chain.mu.Unlock()
	}
	return tx, err
}

type fakeProperty struct {
	chain   *fakeChain
	address common.Address
	price   *big.Int
	record  core.PropertyRecord
	readErr map[string]error
}

func (p *fakeProperty) Address() common.Address { return p.address }

func (p *fakeProperty) URI(ctx context.Context, id *big.Int) (string, error) {
	return p.record.URI, p.chain.read("uri", p.readErr)
}

func (p *fakeProperty) PaymentToken(ctx context.Context) (common.Address, error) {
	return p.record.PaymentToken, p.chain.read("paymentToken", p.readErr)
}

func (p *fakeProperty) MetadataHash(ctx context.Context) ([32]byte, error) {
	return p.record.MetadataHash, p.chain.read("metadataHash", p.readErr)
}

func (p *fakeProperty) MetadataURI(ctx context.Context) (string, error) {
	return p.record.MetadataURI, p.chain.read("metadataURI", p.readErr)
}

func (p *fakeProperty) TotalTokens(ctx context.Context) (*big.Int, error) {
	return p.record.TotalTokens, p.chain.read("totalTokens", p.readErr)
}

func (p *fakeProperty) PricePerToken(ctx context.Context) (*big.Int, error) {
	if err := p.chain.read("pricePerToken", p.readErr); err != nil {
		return nil, err
	}
	return new(big.Int).Set(p.price), nil
}

func (p *fakeProperty) AnnualReturnBP(ctx context.Context) (uint16, error) {
	return p.record.AnnualReturnBP, p.chain.read("annualReturnBP", p.readErr)
}

func (p *fakeProperty) TokensSold(ctx context.Context) (*big.Int, error) {
	return p.record.TokensSold, p.chain.read("tokensSold", p.readErr)
}

func (p *fakeProperty) TotalYieldDeposited(ctx context.Context) (*big.Int, error) {
	return p.record.TotalYieldDeposited, p.chain.read("totalYieldDeposited", p.readErr)
}

func (p *fakeProperty) Owner(ctx context.Context) (common.Address, error) {
	return p.record.Owner, p.chain.read("owner", p.readErr)
}

func (p *fakeProperty) BuyTokens(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return p.chain.send("buyTokens", opts, amount)
}

func (p *fakeProperty) DepositYield(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return p.chain.send("depositYield", opts, amount)
}

func (p *fakeProperty) ClaimYield(opts *bind.TransactOpts) (*types.Transaction, error) {
	return p.chain.send("claimYield", opts)
}

type fakeToken struct {
	chain      *fakeChain
	allowances map[common.Address]*big.Int
	symbol     string
	decimals   uint8
	readErr    map[string]error
}

func (t *fakeToken) setAllowance(owner common.Address, amount int64) {
	t.chain.mu.Lock()
	defer t.chain.mu.Unlock()
	t.allowances[owner] = big.NewInt(amount)
}

func (t *fakeToken) Address() common.Address { return tokenAddr }

func (t *fakeToken) Decimals(ctx context.Context) (uint8, error) {
	return t.decimals, t.chain.read("decimals", t.readErr)
}

func (t *fakeToken) Symbol(ctx context.Context) (string, error) {
	return t.symbol, t.chain.read("symbol", t.readErr)
}

func (t *fakeToken) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	if err := t.chain.read("allowance", t.readErr); err != nil {
		return nil, err
	}
	t.chain.mu.Lock()
	defer t.chain.mu.Unlock()
	if a, ok := t.allowances[owner]; ok {
		return new(big.Int).Set(a), nil
	}
	return big.NewInt(0), nil
}

func (t *fakeToken) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	tx, err := t.chain.send("approve", opts, amount)
	if err == nil {
		t.chain.mu.Lock()
		if !t.chain.revert["approve"] {
			t.allowances[opts.From] = new(big.Int).Set(amount)
		}
		t.chain.mu.Unlock()
	}
	return tx, err
}

// deployedLog builds the factory's PropertyDeployed log for a receipt
func deployedLog(t *testing.T, source, deployed common.Address, index int64) *types.Log {
	t.Helper()
	data, err := contracts.PropertyDeployed.Inputs.NonIndexed().Pack(big.NewInt(index))
	require.NoError(t, err)
	return &types.Log{
		Address: source,
		Topics:  []common.Hash{contracts.PropertyDeployed.ID, common.BytesToHash(deployed.Bytes())},
		Data:    data,
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	err     error
	records map[int64]common.Address
}

func (r *fakeRecorder) RecordDeployedAddress(ctx context.Context, propertyID int64, address common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.records == nil {
		r.records = make(map[int64]common.Address)
	}
	r.records[propertyID] = address
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []core.SettlementEvent
}

func (p *fakePublisher) PublishSettlement(ctx context.Context, event core.SettlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []core.SettlementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.SettlementEvent(nil), p.events...)
}
