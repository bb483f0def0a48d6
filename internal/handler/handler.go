package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"digiwallet/internal/model"
	"digiwallet/internal/service"
	"digiwallet/pkg/response"
)

// Handler bundles all service dependencies behind the HTTP surface.
type Handler struct {
	authService    *service.AuthService
	accountService *service.AccountService
	ledgerService  *service.LedgerService
}

func NewHandler(auth *service.AuthService, accounts *service.AccountService, ledger *service.LedgerService) *Handler {
	return &Handler{
		authService:    auth,
		accountService: accounts,
		ledgerService:  ledger,
	}
}

// writeServiceError maps the service error taxonomy onto business codes.
// Every balance-affecting failure reaches the client as a specific kind,
// never a generic 500.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.BusinessError(c, response.CodeValidationError, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, service.ErrReceiverNotFound):
		response.BusinessError(c, response.CodeReceiverNotFound, err.Error())
	case errors.Is(err, service.ErrAmbiguousReceiver):
		response.BusinessError(c, response.CodeAmbiguousReceiver, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		response.BusinessError(c, response.CodeOwnershipMismatch, err.Error())
	case errors.Is(err, service.ErrConcurrencyConflict):
		response.BusinessError(c, response.CodeConcurrencyConflict, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		response.BusinessError(c, response.CodeStoreUnavailable, err.Error())
	case errors.Is(err, service.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateContact):
		response.BusinessError(c, response.CodeDuplicateContact, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrSessionExpired):
		response.Unauthorized(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}

// ============================================================
// Auth
// ============================================================

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account with a zero balance.
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	account, err := h.authService.Register(c.Request.Context(), &service.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, account)
}

type LoginRequest struct {
	Contact  string `json:"contact" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login issues a session token.
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	token, account, err := h.authService.Login(c.Request.Context(), req.Contact, req.Password)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"token":   token,
		"account": account,
	})
}

// Logout invalidates the caller's session token.
// POST /api/v1/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), c.GetString(ctxSessionToken)); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "logged out"})
}

// ============================================================
// Account
// ============================================================

// GetAccount returns the caller's own profile including balance.
// GET /api/v1/account
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.accountService.GetAccount(c.Request.Context(), c.GetString(ctxAccountID))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, account)
}

type UpdateProfileRequest struct {
	Name string `json:"name"`
	Pin  string `json:"pin"`
}

// UpdateProfile changes display name and/or transaction PIN.
// PUT /api/v1/account/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.accountService.UpdateProfile(c.Request.Context(), c.GetString(ctxAccountID), req.Name, req.Pin); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "profile updated"})
}

// Disable soft-disables the caller's account and drops the session.
// POST /api/v1/account/disable
func (h *Handler) Disable(c *gin.Context) {
	if err := h.accountService.Disable(c.Request.Context(), c.GetString(ctxAccountID)); err != nil {
		writeServiceError(c, err)
		return
	}
	h.authService.Logout(c.Request.Context(), c.GetString(ctxSessionToken))
	response.Success(c, gin.H{"message": "account disabled"})
}

// Lookup resolves a contact to a receiver's public name.
// GET /api/v1/account/lookup?contact=xxx
func (h *Handler) Lookup(c *gin.Context) {
	contact := c.Query("contact")
	if contact == "" {
		response.ParamError(c, "contact parameter is required")
		return
	}

	public, err := h.accountService.LookupByContact(c.Request.Context(), contact)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, public)
}

// ============================================================
// Ledger
// ============================================================

type TransferHTTPRequest struct {
	SenderID        string `json:"sender_id" binding:"required"`
	ReceiverContact string `json:"receiver_contact" binding:"required"`
	Amount          string `json:"amount" binding:"required"`
	Description     string `json:"description"`
	Pin             string `json:"pin"`
	IdempotencyKey  string `json:"idempotency_key"`
}

// Transfer moves money to another wallet.
// POST /api/v1/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.BusinessError(c, response.CodeValidationError, "invalid amount: "+req.Amount)
		return
	}

	result, err := h.ledgerService.Transfer(c.Request.Context(), c.GetString(ctxAccountID), &service.TransferRequest{
		SenderID:        req.SenderID,
		ReceiverContact: req.ReceiverContact,
		Amount:          amount,
		Description:     req.Description,
		Pin:             req.Pin,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_id":   result.Transaction.TransactionNo,
		"status":           result.Transaction.Status,
		"sender_balance":   result.SenderBalance,
		"receiver_balance": result.ReceiverBalance,
	})
}

type CashHTTPRequest struct {
	AccountID      string `json:"account_id" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	Method         string `json:"method" binding:"required"`
	Destination    string `json:"destination"`
	Pin            string `json:"pin"`
	IdempotencyKey string `json:"idempotency_key"`
}

// CashIn deposits money into the caller's wallet.
// POST /api/v1/cash-in
func (h *Handler) CashIn(c *gin.Context) {
	var req CashHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.BusinessError(c, response.CodeValidationError, "invalid amount: "+req.Amount)
		return
	}

	result, err := h.ledgerService.CashIn(c.Request.Context(), c.GetString(ctxAccountID), &service.CashRequest{
		AccountID:      req.AccountID,
		Amount:         amount,
		Method:         req.Method,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_id": result.Transaction.TransactionNo,
		"status":         result.Transaction.Status,
		"balance":        result.Balance,
	})
}

// CashOut withdraws money from the caller's wallet.
// POST /api/v1/cash-out
func (h *Handler) CashOut(c *gin.Context) {
	var req CashHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	if req.Destination == "" {
		response.BusinessError(c, response.CodeValidationError, "destination is required")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.BusinessError(c, response.CodeValidationError, "invalid amount: "+req.Amount)
		return
	}

	result, err := h.ledgerService.CashOut(c.Request.Context(), c.GetString(ctxAccountID), &service.CashRequest{
		AccountID:      req.AccountID,
		Amount:         amount,
		Method:         req.Method,
		Destination:    req.Destination,
		Pin:            req.Pin,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_id": result.Transaction.TransactionNo,
		"status":         result.Transaction.Status,
		"balance":        result.Balance,
	})
}

// ListTransactions pages through the caller's ledger history, newest first.
// GET /api/v1/transactions?type=xxx&limit=20&cursor=0
func (h *Handler) ListTransactions(c *gin.Context) {
	kind := c.Query("type")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	cursor, err := strconv.ParseInt(c.DefaultQuery("cursor", "0"), 10, 64)
	if err != nil {
		response.ParamError(c, "cursor must be an integer")
		return
	}

	transactions, nextCursor, err := h.ledgerService.ListTransactions(c.Request.Context(), c.GetString(ctxAccountID), kind, limit, cursor)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if transactions == nil {
		transactions = []*model.Transaction{}
	}

	response.Success(c, gin.H{
		"list":        transactions,
		"next_cursor": nextCursor,
	})
}
