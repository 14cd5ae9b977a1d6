package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forgecredit/forgecredit/internal/ledger"
)

// SettlementHandler serves tip and fee routes.
type SettlementHandler struct {
	settlement *ledger.SettlementLedger
}

func NewSettlementHandler(settlement *ledger.SettlementLedger) *SettlementHandler {
	return &SettlementHandler{settlement: settlement}
}

type tipRequest struct {
	Contributor string `json:"contributor"`
	IssueID     uint64 `json:"issueId"`
	Amount      int64  `json:"amount"`
	Message     string `json:"message"`
}

func (h *SettlementHandler) Tip(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req tipRequest
	if !decode(w, r, &req) {
		return
	}
	tip, err := h.settlement.Tip(c, req.Contributor, req.IssueID, req.Amount, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tip)
}

type batchTipRequest struct {
	Value        int64    `json:"value"`
	Contributors []string `json:"contributors"`
	Amounts      []int64  `json:"amounts"`
	IssueIDs     []uint64 `json:"issueIds"`
	Messages     []string `json:"messages"`
}

func (h *SettlementHandler) BatchTip(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req batchTipRequest
	if !decode(w, r, &req) {
		return
	}
	tips, err := h.settlement.BatchTip(c, req.Value, req.Contributors, req.Amounts, req.IssueIDs, req.Messages)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tips)
}

type issueTipRequest struct {
	IssueID uint64 `json:"issueId"`
	Value   int64  `json:"value"`
	Message string `json:"message"`
}

func (h *SettlementHandler) TipIssue(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req issueTipRequest
	if !decode(w, r, &req) {
		return
	}
	tip, err := h.settlement.TipIssueContributors(c, req.IssueID, req.Value, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tip)
}

type splitTipRequest struct {
	Value        int64    `json:"value"`
	Contributors []string `json:"contributors"`
	IssueID      uint64   `json:"issueId"`
	Message      string   `json:"message"`
}

func (h *SettlementHandler) SplitTip(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req splitTipRequest
	if !decode(w, r, &req) {
		return
	}
	tips, err := h.settlement.SplitTip(c, req.Value, req.Contributors, req.IssueID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tips)
}

type feeRequest struct {
	Bps int64 `json:"bps"`
}

func (h *SettlementHandler) UpdateFee(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req feeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.settlement.UpdateFee(c, req.Bps); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type collectorRequest struct {
	Collector string `json:"collector"`
}

func (h *SettlementHandler) UpdateFeeCollector(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req collectorRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.settlement.UpdateFeeCollector(c, req.Collector); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SettlementHandler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	amount, err := h.settlement.WithdrawFees(c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"withdrawn": amount})
}

type minTipRequest struct {
	MinTip int64 `json:"minTip"`
}

func (h *SettlementHandler) UpdateMinTip(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req minTipRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.settlement.UpdateMinTip(c, req.MinTip); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (h *SettlementHandler) SetPaused(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req pauseRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.settlement.SetPaused(c, req.Paused); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type partyTotalsResponse struct {
	Sent     int64 `json:"sent"`
	Received int64 `json:"received"`
}

func (h *SettlementHandler) PartyTotals(w http.ResponseWriter, r *http.Request) {
	party := chi.URLParam(r, "party")
	writeJSON(w, http.StatusOK, partyTotalsResponse{
		Sent:     h.settlement.SentTotal(party),
		Received: h.settlement.ReceivedTotal(party),
	})
}

type issueTipsResponse struct {
	Tips  interface{} `json:"tips"`
	Total int64       `json:"total"`
}

func (h *SettlementHandler) TipsByIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "issueID")
	if !ok {
		return
	}
	tips, total := h.settlement.TipsByIssue(id)
	writeJSON(w, http.StatusOK, issueTipsResponse{Tips: tips, Total: total})
}

func (h *SettlementHandler) RecentTips(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	writeJSON(w, http.StatusOK, h.settlement.RecentTips(offset, limit))
}

func (h *SettlementHandler) TopTippers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settlement.TopTippers(intParam(r, "n", 10)))
}

func (h *SettlementHandler) TopEarners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settlement.TopEarners(intParam(r, "n", 10)))
}

func (h *SettlementHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settlement.Stats())
}
