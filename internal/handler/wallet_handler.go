package handler

import (
	"context"
	"net/http"

	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/middleware"
	"github.com/campusride/campus/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// WalletCommander defines the write-side operations used by WalletHandler.
type WalletCommander interface {
	TopUp(ctx context.Context, cmd cqrs.TopUpCommand) (*models.Transaction, error)
	Charge(ctx context.Context, cmd cqrs.ChargeCommand) (bool, error)
}

// WalletQuerier defines the read-side operations used by WalletHandler.
type WalletQuerier interface {
	GetBalance(ctx context.Context, q cqrs.GetBalanceQuery) (*models.WalletView, error)
	ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
}

type WalletHandler struct {
	commands WalletCommander
	queries  WalletQuerier
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

type PaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description" validate:"required,notblank,max=200"`
}

type PaymentResponse struct {
	Charged bool            `json:"charged"`
	Balance decimal.Decimal `json:"balance"`
}

type ListTransactionsResponse struct {
	Transactions []models.TransactionView `json:"transactions"`
}

func NewWalletHandler(commands WalletCommander, queries WalletQuerier) *WalletHandler {
	return &WalletHandler{commands: commands, queries: queries}
}

func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetBalance(c.Request.Context(), cqrs.GetBalanceQuery{UserID: userID})
	if err != nil {
		respondWithDomainError(c, err, "Failed to get wallet")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	views, err := h.queries.ListTransactions(c.Request.Context(), cqrs.ListTransactionsQuery{UserID: userID})
	if err != nil {
		respondWithDomainError(c, err, "Failed to list transactions")
		return
	}
	c.JSON(http.StatusOK, ListTransactionsResponse{Transactions: views})
}

func (h *WalletHandler) TopUp(c *gin.Context) {
	var req TopUpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tx, err := h.commands.TopUp(c.Request.Context(), cqrs.TopUpCommand{
		Identity:       middleware.GetIdentity(c),
		Amount:         req.Amount,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		respondWithDomainError(c, err, "Failed to top up wallet")
		return
	}
	c.JSON(http.StatusCreated, models.TransactionToView(tx))
}

// Pay charges the wallet. Insufficient funds is answered with 422.
func (h *WalletHandler) Pay(c *gin.Context) {
	var req PaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	identity := middleware.GetIdentity(c)

	charged, err := h.commands.Charge(c.Request.Context(), cqrs.ChargeCommand{
		Identity:       identity,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		respondWithDomainError(c, err, "Failed to process payment")
		return
	}

	wallet, err := h.queries.GetBalance(c.Request.Context(), cqrs.GetBalanceQuery{UserID: identity.UserID})
	if err != nil {
		respondWithDomainError(c, err, "Failed to get wallet")
		return
	}
	if !charged {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "Insufficient funds",
			"balance": wallet.Balance,
		})
		return
	}
	c.JSON(http.StatusCreated, PaymentResponse{Charged: true, Balance: wallet.Balance})
}
