package web

import (
	"encoding/json"
	"net/http"

	"bookkeeper/internal/app"
)

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.svc.ListBills(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, bills)
}

func (h *Handler) listUnpaidBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.svc.ListUnpaidBills(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, bills)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid bill id", "BAD_ID", http.StatusBadRequest)
		return
	}
	bill, err := h.svc.GetBill(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, bill)
}

func (h *Handler) addBill(w http.ResponseWriter, r *http.Request) {
	var req app.AddBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid request body", "BAD_JSON", http.StatusBadRequest)
		return
	}
	req.UserID = userID(r)

	bill, err := h.svc.AddBill(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(bill)
}

func (h *Handler) payBill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid bill id", "BAD_ID", http.StatusBadRequest)
		return
	}
	var payment app.PaymentInput
	if err := json.NewDecoder(r.Body).Decode(&payment); err != nil {
		writeError(w, r, "invalid request body", "BAD_JSON", http.StatusBadRequest)
		return
	}

	bill, err := h.svc.PayBill(r.Context(), app.PayBillRequest{
		UserID:  userID(r),
		BillID:  id,
		Payment: payment,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, bill)
}

func (h *Handler) deleteBill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid bill id", "BAD_ID", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteBill(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.svc.ListPurchases(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, purchases)
}

func (h *Handler) addPurchase(w http.ResponseWriter, r *http.Request) {
	var req app.AddPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid request body", "BAD_JSON", http.StatusBadRequest)
		return
	}
	req.UserID = userID(r)

	purchase, err := h.svc.AddPurchase(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(purchase)
}

func (h *Handler) deletePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid purchase id", "BAD_ID", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeletePurchase(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
