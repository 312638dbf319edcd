package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/marketplace-core/internal/domain"
	"github.com/ariefcatur/marketplace-core/internal/orders"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

type OrdersHandler struct {
	Service *orders.Service
	Timeout time.Duration
	Log     *log.Entry
}

type checkoutReq struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/order", func(r chi.Router) {
		r.Use(RequireUser)
		r.Post("/create", h.create)
		r.Get("/my-orders", h.mine)
		r.Group(func(r chi.Router) {
			r.Use(RequireSeller)
			r.Get("/seller/orders", h.sellerOrders)
			r.Get("/seller/summary", h.sellerSummary)
			r.Put("/seller/update-status/{orderId}", h.updateStatus)
		})
		r.Get("/{orderId}", h.get)
	})
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := handlerContext(r, h.Timeout)
	defer cancel()

	res, err := h.Service.Checkout(ctx, IdentityFrom(ctx).UserID, req.ShippingAddress, r.Header.Get(HeaderIdempotencyKey))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if res.Replayed {
		w.Header().Set(HeaderReplayed, "true")
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *OrdersHandler) mine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := handlerContext(r, h.Timeout)
	defer cancel()

	list, err := h.Service.ListAsBuyer(ctx, IdentityFrom(ctx).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) sellerOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := handlerContext(r, h.Timeout)
	defer cancel()

	list, err := h.Service.ListAsSeller(ctx, IdentityFrom(ctx).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) sellerSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := handlerContext(r, h.Timeout)
	defer cancel()

	counts, err := h.Service.SellerSummary(ctx, IdentityFrom(ctx).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := handlerContext(r, h.Timeout)
	defer cancel()

	o, err := h.Service.UpdateStatus(ctx, IdentityFrom(ctx).UserID, chi.URLParam(r, "orderId"), req.Status)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := handlerContext(r, h.Timeout)
	defer cancel()

	o, err := h.Service.Get(ctx, IdentityFrom(ctx).UserID, chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
