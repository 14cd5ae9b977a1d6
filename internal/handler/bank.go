package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forgecredit/forgecredit/internal/apperror"
	"github.com/forgecredit/forgecredit/internal/ledger"
)

// BankHandler exposes the in-process credit bank. Minting is restricted to
// the administrator; real deployments would replace the bank with an
// external settlement rail.
type BankHandler struct {
	bank  *ledger.MemoryBank
	admin string
}

func NewBankHandler(bank *ledger.MemoryBank, admin string) *BankHandler {
	return &BankHandler{bank: bank, admin: admin}
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

func (h *BankHandler) Mint(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	if c != h.admin {
		writeError(w, apperror.Unauthorized("only the administrator may mint credits"))
		return
	}
	var req mintRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Account == "" || req.Amount <= 0 {
		writeError(w, apperror.InvalidInput("amount", "account and a positive amount are required"))
		return
	}
	h.bank.Mint(req.Account, req.Amount)
	writeJSON(w, http.StatusOK, map[string]int64{"balance": h.bank.BalanceOf(req.Account)})
}

func (h *BankHandler) Balance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	writeJSON(w, http.StatusOK, map[string]int64{"balance": h.bank.BalanceOf(account)})
}
