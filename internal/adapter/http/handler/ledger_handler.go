package handler

import (
	"context"

	"credit-ledger/internal/adapter/http/dto"
	"credit-ledger/internal/core/domain"
	"credit-ledger/internal/core/ports"
	"credit-ledger/pkg/apperror"
	"credit-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler exposes the ledger operations to internal HTTP callers.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

func userIDParam(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.Error(c, apperror.Validation("user_id must be a valid UUID"))
		return uuid.Nil, false
	}
	return userID, true
}

// GetBalance handles GET /api/v1/ledger/:user_id/balance.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	balance, err := h.ledgerSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		UserID:  userID.String(),
		Balance: balance,
	})
}

// Credit handles POST /api/v1/ledger/:user_id/credit.
func (h *LedgerHandler) Credit(c *gin.Context) {
	h.mutate(c, h.ledgerSvc.Credit)
}

// Debit handles POST /api/v1/ledger/:user_id/debit.
func (h *LedgerHandler) Debit(c *gin.Context) {
	h.mutate(c, h.ledgerSvc.Debit)
}

// Refund handles POST /api/v1/ledger/:user_id/refund.
func (h *LedgerHandler) Refund(c *gin.Context) {
	h.mutate(c, h.ledgerSvc.Refund)
}

func (h *LedgerHandler) mutate(c *gin.Context, op func(ctx context.Context, req ports.MutationRequest) (int64, error)) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req dto.MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	newBalance, err := op(c.Request.Context(), ports.MutationRequest{
		UserID:      userID,
		Amount:      req.Amount,
		Description: req.Description,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.MutationResponse{
		UserID:     userID.String(),
		NewBalance: newBalance,
	})
}

// History handles GET /api/v1/ledger/:user_id/history.
func (h *LedgerHandler) History(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var q dto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params := ports.EntryListParams{
		UserID:   userID,
		From:     q.From,
		To:       q.To,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.Type != nil {
		entryType := domain.EntryType(*q.Type)
		params.Type = &entryType
	}

	entries, total, err := h.ledgerSvc.History(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToHistoryResponse(entries, total, params))
}

// Reconcile handles GET /api/v1/ledger/:user_id/reconcile.
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	result, err := h.ledgerSvc.Reconcile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}
