package web

import (
	"encoding/json"
	"net/http"

	"bookkeeper/internal/core"
)

func (h *Handler) listIncomes(w http.ResponseWriter, r *http.Request) {
	incomes, err := h.svc.ListIncomes(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, incomes)
}

func (h *Handler) createIncome(w http.ResponseWriter, r *http.Request) {
	var income core.Income
	if err := json.NewDecoder(r.Body).Decode(&income); err != nil {
		writeError(w, r, "invalid request body", "BAD_JSON", http.StatusBadRequest)
		return
	}
	income.UserID = userID(r)

	created, err := h.svc.CreateIncome(r.Context(), income)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
}

func (h *Handler) deleteIncome(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid income id", "BAD_ID", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteIncome(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.svc.ListExpenses(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, expenses)
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var expense core.Expense
	if err := json.NewDecoder(r.Body).Decode(&expense); err != nil {
		writeError(w, r, "invalid request body", "BAD_JSON", http.StatusBadRequest)
		return
	}
	expense.UserID = userID(r)

	created, err := h.svc.CreateExpense(r.Context(), expense)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
}

func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid expense id", "BAD_ID", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteExpense(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
