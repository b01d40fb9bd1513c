package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/ports"
	"golang.org/x/sync/errgroup"
)

// listConcurrency bounds the in-flight allProperties reads
const listConcurrency = 8

// SkippedEntry is a factory index that could not be listed
type SkippedEntry struct {
	Index  int64  `json:"index"`
	Reason string `json:"reason"`
}

// ListResult holds the readable factory entries in index order and the
// entries that were left out
type ListResult struct {
	Addresses []common.Address
	Skipped   []SkippedEntry
}

// Partial reports whether some entries were left out
func (r ListResult) Partial() bool {
	return len(r.Skipped) > 0
}

// PropertyService reads property state from the chain
type PropertyService struct {
	chain  ports.Chain
	logger *slog.Logger
}

// NewPropertyService creates a new property query service
func NewPropertyService(chain ports.Chain, logger *slog.Logger) *PropertyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropertyService{
		chain:  chain,
		logger: logger.With("component", "property"),
	}
}

// ListDeployedAddresses enumerates every property the factory has deployed.
// An unreadable or zero entry is skipped and reported instead of failing the
// whole listing.
func (s *PropertyService) ListDeployedAddresses(ctx context.Context) (ListResult, error) {
	factory := s.chain.Factory()

	count, err := factory.Count(ctx)
	if err != nil {
		return ListResult{}, fmt.Errorf("%w: property count: %w", core.ErrFetchFailed, err)
	}
	if !count.IsInt64() {
		return ListResult{}, fmt.Errorf("%w: property count %s out of range", core.ErrFetchFailed, count)
	}
	n := count.Int64()

	addrs := make([]common.Address, n)
	reasons := make([]string, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i := int64(0); i < n; i++ {
		g.Go(func() error {
			addr, err := factory.PropertyAt(gctx, big.NewInt(i))
			switch {
			case err != nil:
				reasons[i] = err.Error()
			case addr == (common.Address{}):
				reasons[i] = "zero address"
			default:
				addrs[i] = addr
			}
			return nil
		})
	}
	_ = g.Wait()

	var result ListResult
	for i := int64(0); i < n; i++ {
		if reasons[i] != "" {
			result.Skipped = append(result.Skipped, SkippedEntry{Index: i, Reason: reasons[i]})
			continue
		}
		result.Addresses = append(result.Addresses, addrs[i])
	}

	if result.Partial() {
		s.logger.WarnContext(ctx, "property listing is partial",
			"total", n,
			"listed", len(result.Addresses),
			"skipped", len(result.Skipped))
	}

	return result, nil
}

// GetPropertyDetails reads the full on-chain state of one property. All reads
// run concurrently; a single failed read fails the whole call.
func (s *PropertyService) GetPropertyDetails(ctx context.Context, address string) (*core.PropertyRecord, error) {
	property, err := s.chain.Property(address)
	if err != nil {
		return nil, err
	}

	rec := &core.PropertyRecord{Address: property.Address()}

	g, gctx := errgroup.WithContext(ctx)
	read := func(field string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(gctx); err != nil {
				return fmt.Errorf("%s: %w", field, err)
			}
			return nil
		})
	}

	read("uri", func(ctx context.Context) (err error) {
		rec.URI, err = property.URI(ctx, big.NewInt(0))
		return
	})
	read("paymentToken", func(ctx context.Context) (err error) {
		rec.PaymentToken, err = property.PaymentToken(ctx)
		return
	})
	read("metadataHash", func(ctx context.Context) (err error) {
		rec.MetadataHash, err = property.MetadataHash(ctx)
		return
	})
	read("metadataURI", func(ctx context.Context) (err error) {
		rec.MetadataURI, err = property.MetadataURI(ctx)
		return
	})
	read("totalTokens", func(ctx context.Context) (err error) {
		rec.TotalTokens, err = property.TotalTokens(ctx)
		return
	})
	read("pricePerToken", func(ctx context.Context) (err error) {
		rec.PricePerToken, err = property.PricePerToken(ctx)
		return
	})
	read("annualReturnBP", func(ctx context.Context) (err error) {
		rec.AnnualReturnBP, err = property.AnnualReturnBP(ctx)
		return
	})
	read("tokensSold", func(ctx context.Context) (err error) {
		rec.TokensSold, err = property.TokensSold(ctx)
		return
	})
	read("totalYieldDeposited", func(ctx context.Context) (err error) {
		rec.TotalYieldDeposited, err = property.TotalYieldDeposited(ctx)
		return
	})
	read("owner", func(ctx context.Context) (err error) {
		rec.Owner, err = property.Owner(ctx)
		return
	})

	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "property read failed", "property", core.Checksum(rec.Address), "error", err)
		return nil, fmt.Errorf("%w: property %s: %w", core.ErrFetchFailed, core.Checksum(rec.Address), err)
	}

	return rec, nil
}

// PaymentTokenInfo reads the display metadata of the configured payment token
func (s *PropertyService) PaymentTokenInfo(ctx context.Context) (core.TokenInfo, error) {
	token := s.chain.PaymentToken()
	info := core.TokenInfo{Address: token.Address()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		info.Symbol, err = token.Symbol(gctx)
		return
	})
	g.Go(func() (err error) {
		info.Decimals, err = token.Decimals(gctx)
		return
	})
	if err := g.Wait(); err != nil {
		return core.TokenInfo{}, fmt.Errorf("%w: payment token: %w", core.ErrFetchFailed, err)
	}

	return info, nil
}
