package restsvc

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	ordersvc "github.com/rabbuy/shop/internal/service/order"
)

// Handler — HTTP-граница сервиса заказов.
type Handler struct {
	svc    *ordersvc.Service
	logger *log.Entry
}

// NewHandler конструирует HTTP-границу поверх сервиса заказов.
func NewHandler(svc *ordersvc.Service, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "rest")
	}
	return &Handler{svc: svc, logger: logger}
}

// Router собирает маршруты. Клиентские ручки требуют X-User-Id,
// административные — дополнительно роль admin.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Group(func(r chi.Router) {
		r.Use(requireIdentity)

		r.Post("/order/create", h.createOrder)
		r.Get("/order", h.getOrder)
		r.Put("/order/update", h.updateOrder)
		r.Put("/order/item/update", h.updateItemStatus)
		r.Get("/order/list", h.listOwnOrders)
		r.Get("/order/notification", h.unreadCount)
		r.Put("/order/notification/read", h.markNotificationsRead)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Get("/admin/order/list", h.adminListOrders)
			r.Get("/admin/order", h.getOrder)
			r.Put("/admin/order/item/update", h.adminUpdateItemStatus)
			r.Get("/admin/order/timeline", h.orderTimeline)
		})
	})

	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var input ordersvc.CreateOrderInput
	if !decodeBody(w, r, &input) {
		return
	}
	input.UserID = userIDFrom(r.Context())

	created, err := h.svc.CreateOrder(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing order id")
		return
	}
	detail, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var input ordersvc.UpdateOrderInput
	if !decodeBody(w, r, &input) {
		return
	}
	if input.OrderID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing order id")
		return
	}
	detail, err := h.svc.UpdateOrder(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	var input ordersvc.ItemStatusUpdate
	if !decodeBody(w, r, &input) {
		return
	}
	if input.ItemID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing item id")
		return
	}
	result, err := h.svc.UpdateItemStatus(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listOwnOrders(w http.ResponseWriter, r *http.Request) {
	query := ordersvc.ListQuery{
		UserID:     userIDFrom(r.Context()),
		ItemStatus: r.URL.Query().Get("itemStatus"),
		Page:       queryInt(r, "page", 1),
		PageSize:   queryInt(r, "pageSize", ordersvc.DefaultCustomerPageSize),
	}
	page, err := h.svc.ListOrders(r.Context(), query)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	query := ordersvc.ListQuery{
		UserID:     r.URL.Query().Get("user"),
		ItemStatus: r.URL.Query().Get("itemStatus"),
		Page:       queryInt(r, "page", 1),
		PageSize:   queryInt(r, "pageSize", ordersvc.DefaultAdminPageSize),
	}
	page, err := h.svc.ListOrders(r.Context(), query)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) adminUpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	var input ordersvc.AdminItemStatusUpdate
	if !decodeBody(w, r, &input) {
		return
	}
	if input.ItemID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing item id")
		return
	}
	if err := h.svc.AdminUpdateItemStatus(r.Context(), input); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"itemId": input.ItemID, "status": input.Status})
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.UnreadCount(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (h *Handler) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkNotificationsRead(r.Context(), userIDFrom(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) orderTimeline(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing order id")
		return
	}
	events, err := h.svc.Timeline(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
