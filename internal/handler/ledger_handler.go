package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/demobank/transaction-notifier/internal/domain"
	"github.com/demobank/transaction-notifier/internal/eligibility"
	"github.com/demobank/transaction-notifier/pkg/logger"
)

// LedgerHandler exposes read-only ledger views and a manual eligibility
// trigger for operators.
type LedgerHandler struct {
	ledger  domain.LedgerStore
	checker *eligibility.Checker
	logger  *logger.Logger
}

func NewLedgerHandler(ledger domain.LedgerStore, checker *eligibility.Checker, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:  ledger,
		checker: checker,
		logger:  log,
	}
}

func (h *LedgerHandler) GetTransactions(c echo.Context) error {
	ctx := c.Request().Context()

	accountID := c.Param("account_id")
	ctx = logger.WithAccountID(ctx, accountID)

	limit := 100
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	transactions, err := h.ledger.AccountTransactions(ctx, accountID, limit)
	if err != nil {
		h.logger.Error(ctx, "Failed to list account transactions",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
	}

	if transactions == nil {
		transactions = []domain.AccountTransaction{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"account_id":   accountID,
		"transactions": transactions,
	})
}

func (h *LedgerHandler) GetTotals(c echo.Context) error {
	ctx := c.Request().Context()

	accountID := c.Param("account_id")
	ctx = logger.WithAccountID(ctx, accountID)

	var since time.Time
	if sinceParam := c.QueryParam("since"); sinceParam != "" {
		parsed, err := time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "since must be RFC3339",
			})
		}
		since = parsed
	}

	deposits, err := h.ledger.DepositsTotal(ctx, accountID, since)
	if err != nil {
		h.logger.Error(ctx, "Failed to sum deposits",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to compute totals",
		})
	}

	transfers, err := h.ledger.TransfersTotal(ctx, accountID, since)
	if err != nil {
		h.logger.Error(ctx, "Failed to sum transfers",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to compute totals",
		})
	}

	response := map[string]interface{}{
		"account_id":      accountID,
		"deposits_cents":  deposits,
		"transfers_cents": transfers,
	}
	if !since.IsZero() {
		response["since"] = since.Format(time.RFC3339)
	}

	return c.JSON(http.StatusOK, response)
}

func (h *LedgerHandler) RunCheck(c echo.Context) error {
	ctx := c.Request().Context()

	h.logger.Info(ctx, "Manual eligibility check requested")

	report, err := h.checker.Check(ctx)
	if err != nil {
		h.logger.Error(ctx, "Manual eligibility check failed",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "eligibility check failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"evaluated": report.Evaluated,
		"credited":  report.Credited,
		"skipped":   report.Skipped,
		"summary":   report.Summary(),
	})
}
