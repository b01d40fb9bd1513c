package http

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/service"
)

// genericAuthError is returned for every failed login so responses do not
// reveal whether an address has a pending challenge
const genericAuthError = "Authentication failed"

// AuthHandlers contains HTTP handlers for wallet auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// RequestChallenge issues a message for the wallet to sign
func (h *AuthHandlers) RequestChallenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	message, err := h.authService.IssueChallenge(c.Request.Context(), req.Address)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// VerifySignature checks the signed challenge and returns a session token
func (h *AuthHandlers) VerifySignature(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	accessToken, session, err := h.authService.Authenticate(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidInput),
			errors.Is(err, core.ErrChallengeNotFound),
			errors.Is(err, core.ErrSignatureMismatch):
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": genericAuthError})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Verification failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":           true,
		"address":      session.Address,
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   int64(session.AccessExpiry.Sub(session.IssuedAt).Seconds()),
	})
}

// Status returns the authenticated wallet
func (h *AuthHandlers) Status(c *gin.Context) {
	address, exists := c.Get(userAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"address":       address,
	})
}

// PropertyReader is the read side used by the property handlers
type PropertyReader interface {
	ListDeployedAddresses(ctx context.Context) (service.ListResult, error)
	GetPropertyDetails(ctx context.Context, address string) (*core.PropertyRecord, error)
	PaymentTokenInfo(ctx context.Context) (core.TokenInfo, error)
}

// Settler is the administrative write side
type Settler interface {
	DeployProperty(ctx context.Context, req service.DeployRequest) (*service.DeployResult, error)
	DepositYield(ctx context.Context, property string, amount *big.Int) (*service.DepositResult, error)
}

// PropertyHandlers serves on-chain property data and admin settlement calls
type PropertyHandlers struct {
	properties          PropertyReader
	settlement          Settler
	defaultPaymentToken string
}

// NewPropertyHandlers creates property handlers. settlement may be nil when
// admin routes are not mounted.
func NewPropertyHandlers(properties PropertyReader, settlement Settler, defaultPaymentToken string) *PropertyHandlers {
	return &PropertyHandlers{
		properties:          properties,
		settlement:          settlement,
		defaultPaymentToken: defaultPaymentToken,
	}
}

// List returns every deployed property address
func (h *PropertyHandlers) List(c *gin.Context) {
	result, err := h.properties.ListDeployedAddresses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch properties"})
		return
	}

	addresses := make([]string, 0, len(result.Addresses))
	for _, addr := range result.Addresses {
		addresses = append(addresses, core.Checksum(addr))
	}

	resp := gin.H{
		"addresses": addresses,
		"partial":   result.Partial(),
	}
	if result.Partial() {
		resp["skipped"] = result.Skipped
	}
	c.JSON(http.StatusOK, resp)
}

// Details returns one property's on-chain state
func (h *PropertyHandlers) Details(c *gin.Context) {
	ctx := c.Request.Context()

	rec, err := h.properties.GetPropertyDetails(ctx, c.Param("address"))
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch property details"})
		return
	}

	resp := newPropertyResponse(rec)
	// Display units are best effort; raw integers are always present
	if info, err := h.properties.PaymentTokenInfo(ctx); err == nil && info.Address == rec.PaymentToken {
		resp.withToken(info, rec)
	}

	c.JSON(http.StatusOK, resp)
}

// Deploy deploys a property contract with the backend signer
func (h *PropertyHandlers) Deploy(c *gin.Context) {
	var req deployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	deploy, err := req.toService(h.defaultPaymentToken)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.settlement.DeployProperty(c.Request.Context(), deploy)
	if err != nil {
		writeSettlementError(c, err)
		return
	}

	resp := gin.H{
		"address":        core.Checksum(result.Address),
		"property_index": bigString(result.PropertyIndex),
		"transaction":    result.Outcome,
		"recorded":       result.RecordErr == nil,
	}
	if result.RecordErr != nil {
		resp["record_error"] = result.RecordErr.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

// DepositYield deposits yield into a property with the backend signer
func (h *PropertyHandlers) DepositYield(c *gin.Context) {
	var req struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a base-10 integer"})
		return
	}

	result, err := h.settlement.DepositYield(c.Request.Context(), c.Param("address"), amount)
	if err != nil {
		writeSettlementError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"approval": result.Approval,
		"deposit":  result.Deposit,
	})
}

// writeSettlementError reports the specific failure so the caller can decide
// whether to resubmit
func writeSettlementError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNoSigner):
		status = http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNotConfirmed):
		status = http.StatusGatewayTimeout
	case errors.Is(err, core.ErrTransactionReverted),
		errors.Is(err, core.ErrEventNotFound),
		errors.Is(err, core.ErrDecodeFailure):
		status = http.StatusUnprocessableEntity
	}

	resp := gin.H{"error": err.Error()}
	var se *core.SettlementError
	if errors.As(err, &se) {
		resp["op"] = se.Op
		resp["step"] = se.Step
		resp["state"] = se.State
		if se.TxHash != "" {
			resp["tx_hash"] = se.TxHash
		}
	}
	c.JSON(status, resp)
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
