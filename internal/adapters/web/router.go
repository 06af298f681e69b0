package web

import (
	"net/http"
	"strconv"

	"bookkeeper/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc app.ApplicationService
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins []string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(Metrics)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID", "X-User-ID"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/api/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.listCustomers)
			r.Post("/", h.createCustomer)
			r.Get("/balances", h.customerBalances)
			r.Put("/{id}", h.updateCustomer)
			r.Delete("/{id}", h.deleteCustomer)
			r.Get("/{id}/ledger", h.customerLedger)
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", h.listSuppliers)
			r.Post("/", h.createSupplier)
			r.Get("/balances", h.supplierBalances)
			r.Put("/{id}", h.updateSupplier)
			r.Delete("/{id}", h.deleteSupplier)
			r.Get("/{id}/ledger", h.supplierLedger)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Post("/", h.createProduct)
			r.Get("/low-stock", h.listLowStock)
			r.Put("/{id}", h.updateProduct)
			r.Delete("/{id}", h.deleteProduct)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.listSales)
			r.Post("/", h.createSale)
			r.Get("/next-number", h.nextSaleNumber)
			r.Get("/{id}", h.getSale)
			r.Put("/{id}/payments", h.updateSalePayments)
			r.Delete("/{id}", h.deleteSale)
			r.Post("/{id}/invoice", h.generateInvoice)
			r.Get("/{id}/invoice.pdf", h.invoicePDF)
		})

		r.Route("/bills", func(r chi.Router) {
			r.Get("/", h.listBills)
			r.Post("/", h.addBill)
			r.Get("/unpaid", h.listUnpaidBills)
			r.Get("/{id}", h.getBill)
			r.Post("/{id}/payments", h.payBill)
			r.Delete("/{id}", h.deleteBill)
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", h.listPurchases)
			r.Post("/", h.addPurchase)
			r.Delete("/{id}", h.deletePurchase)
		})

		r.Route("/incomes", func(r chi.Router) {
			r.Get("/", h.listIncomes)
			r.Post("/", h.createIncome)
			r.Delete("/{id}", h.deleteIncome)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", h.listExpenses)
			r.Post("/", h.createExpense)
			r.Delete("/{id}", h.deleteExpense)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/profit-loss", h.profitLoss)
			r.Get("/cash-flow", h.cashFlow)
			r.Get("/balance-sheet", h.balanceSheet)
			r.Get("/dashboard", h.dashboard)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// userID resolves the acting user from the X-User-ID header. Deployments put
// an authenticating proxy in front; a single-tenant install defaults to 1.
func userID(r *http.Request) int {
	if v := r.Header.Get("X-User-ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "id"))
	return n, err == nil && n > 0
}
