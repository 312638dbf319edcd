package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/marketplace-core/internal/cart"
	"github.com/ariefcatur/marketplace-core/internal/domain"
)

type CartHandler struct {
	Service *cart.Service
	Timeout time.Duration
	Log     *log.Entry
}

type addItemReq struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"` // defaults to 1
}

type updateItemReq struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/", h.get)
		r.Post("/add", h.add)
		r.Put("/update/{productId}", h.update)
		r.Delete("/remove/{productId}", h.remove)
		r.Delete("/clear", h.clear)
	})
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := handlerContext(r, h.Timeout)
	defer cancel()

	v, err := h.Service.GetCart(ctx, IdentityFrom(ctx).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		writeError(w, r, h.Log, domain.MissingFieldsError("productId"))
		return
	}

	ctx, cancel := handlerContext(r, h.Timeout)
	defer cancel()

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	v, err := h.Service.AddItem(ctx, IdentityFrom(ctx).UserID, req.ProductID, qty)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateItemReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := handlerContext(r, h.Timeout)
	defer cancel()

	v, err := h.Service.UpdateItemQuantity(ctx, IdentityFrom(ctx).UserID, chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := handlerContext(r, h.Timeout)
	defer cancel()

	v, err := h.Service.RemoveItem(ctx, IdentityFrom(ctx).UserID, chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := handlerContext(r, h.Timeout)
	defer cancel()

	v, err := h.Service.ClearCart(ctx, IdentityFrom(ctx).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
