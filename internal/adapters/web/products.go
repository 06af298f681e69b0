package web

import (
	"encoding/json"
	"net/http"

	"bookkeeper/internal/core"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, products)
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListLowStockProducts(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var product core.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		writeError(w, r, "invalid request body", "BAD_JSON", http.StatusBadRequest)
		return
	}
	product.UserID = userID(r)

	created, err := h.svc.CreateProduct(r.Context(), product)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid product id", "BAD_ID", http.StatusBadRequest)
		return
	}
	var product core.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		writeError(w, r, "invalid request body", "BAD_JSON", http.StatusBadRequest)
		return
	}
	product.ID = id
	product.UserID = userID(r)

	updated, err := h.svc.UpdateProduct(r.Context(), product)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, updated)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid product id", "BAD_ID", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
