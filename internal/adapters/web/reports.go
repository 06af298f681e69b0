package web

import (
	"net/http"
)

func (h *Handler) profitLoss(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.ProfitLoss(r.Context(), userID(r),
		r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.CashFlow(r.Context(), userID(r),
		r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.BalanceSheet(r.Context(), userID(r), r.URL.Query().Get("as_of"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Dashboard(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
