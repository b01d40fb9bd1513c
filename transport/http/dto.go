package http

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/service"
)

type propertyResponse struct {
	Address             string `json:"address"`
	URI                 string `json:"uri"`
	PaymentToken        string `json:"payment_token"`
	MetadataHash        string `json:"metadata_hash"`
	MetadataURI         string `json:"metadata_uri"`
	TotalTokens         string `json:"total_tokens"`
	PricePerToken       string `json:"price_per_token"`
	AnnualReturnBP      uint16 `json:"annual_return_bp"`
	TokensSold          string `json:"tokens_sold"`
	TotalYieldDeposited string `json:"total_yield_deposited"`
	Owner               string `json:"owner"`

	TokenSymbol                string `json:"token_symbol,omitempty"`
	PricePerTokenDisplay       string `json:"price_per_token_display,omitempty"`
	TotalYieldDepositedDisplay string `json:"total_yield_deposited_display,omitempty"`
}

func newPropertyResponse(rec *core.PropertyRecord) *propertyResponse {
	return &propertyResponse{
		Address:             core.Checksum(rec.Address),
		URI:                 rec.URI,
		PaymentToken:        core.Checksum(rec.PaymentToken),
		MetadataHash:        hexutil.Encode(rec.MetadataHash[:]),
		MetadataURI:         rec.MetadataURI,
		TotalTokens:         bigString(rec.TotalTokens),
		PricePerToken:       bigString(rec.PricePerToken),
		AnnualReturnBP:      rec.AnnualReturnBP,
		TokensSold:          bigString(rec.TokensSold),
		TotalYieldDeposited: bigString(rec.TotalYieldDeposited),
		Owner:               core.Checksum(rec.Owner),
	}
}

func (r *propertyResponse) withToken(info core.TokenInfo, rec *core.PropertyRecord) {
	r.TokenSymbol = info.Symbol
	r.PricePerTokenDisplay = core.FormatUnits(rec.PricePerToken, info.Decimals)
	r.TotalYieldDepositedDisplay = core.FormatUnits(rec.TotalYieldDeposited, info.Decimals)
}

type deployRequest struct {
	PropertyID     int64  `json:"property_id"`
	URI            string `json:"uri" binding:"required"`
	PaymentToken   string `json:"payment_token"`
	MetadataHash   string `json:"metadata_hash" binding:"required"`
	MetadataURI    string `json:"metadata_uri" binding:"required"`
	TotalTokens    string `json:"total_tokens" binding:"required"`
	PricePerToken  string `json:"price_per_token" binding:"required"`
	AnnualReturnBP int64  `json:"annual_return_bp"`
}

func (r deployRequest) toService(defaultPaymentToken string) (service.DeployRequest, error) {
	hash, err := hexutil.Decode(strings.TrimSpace(r.MetadataHash))
	if err != nil {
		return service.DeployRequest{}, fmt.Errorf("metadata_hash must be 0x-prefixed hex")
	}
	total, ok := new(big.Int).SetString(r.TotalTokens, 10)
	if !ok {
		return service.DeployRequest{}, fmt.Errorf("total_tokens must be a base-10 integer")
	}
	price, ok := new(big.Int).SetString(r.PricePerToken, 10)
	if !ok {
		return service.DeployRequest{}, fmt.Errorf("price_per_token must be a base-10 integer")
	}

	token := r.PaymentToken
	if token == "" {
		token = defaultPaymentToken
	}

	return service.DeployRequest{
		PropertyID:     r.PropertyID,
		URI:            r.URI,
		PaymentToken:   token,
		MetadataHash:   hash,
		MetadataURI:    r.MetadataURI,
		TotalTokens:    total,
		PricePerToken:  price,
		AnnualReturnBP: r.AnnualReturnBP,
	}, nil
}
