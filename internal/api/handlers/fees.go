package handlers

import (
	"context"
	"log"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/chainduel/backend/internal/config"
)

// FeeLedger is the slice of the escrow ledger the admin surface needs.
type FeeLedger interface {
	WithdrawFees(from, recipient common.Address, amount *big.Int) error
	FeePool(ctx context.Context) (*big.Int, error)
}

// ownerAuthorized checks the bearer token against the configured bcrypt hash.
func ownerAuthorized(c *gin.Context, cfg *config.Config) bool {
	if cfg.OwnerTokenHash == "" {
		return false
	}
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	return bcrypt.CompareHashAndPassword([]byte(cfg.OwnerTokenHash), []byte(token)) == nil
}

// GetFeePool reports the accumulated protocol fee balance.
func GetFeePool(ledger FeeLedger, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ownerAuthorized(c, cfg) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "owner token required"})
			return
		}
		pool, err := ledger.FeePool(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"fee_pool_wei": pool.String()})
	}
}

// WithdrawFees moves accumulated fees to a recipient address. Owner only;
// the ledger rejects amounts exceeding the pool.
func WithdrawFees(ledger FeeLedger, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ownerAuthorized(c, cfg) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "owner token required"})
			return
		}

		var req struct {
			Recipient string `json:"recipient" binding:"required"`
			AmountWei string `json:"amount_wei" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recipient and amount_wei are required"})
			return
		}
		if !common.IsHexAddress(req.Recipient) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient address"})
			return
		}
		amount, ok := new(big.Int).SetString(req.AmountWei, 10)
		if !ok || amount.Sign() <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount_wei must be a positive base-10 wei amount"})
			return
		}

		owner := common.HexToAddress(cfg.OwnerAddress)
		if err := ledger.WithdrawFees(owner, common.HexToAddress(req.Recipient), amount); err != nil {
			respondError(c, err)
			return
		}

		log.Printf("[FEES] Withdrew %s wei to %s", amount, req.Recipient)
		c.JSON(http.StatusOK, gin.H{"withdrawn_wei": amount.String(), "recipient": req.Recipient})
	}
}
