package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/services/orders"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/internal/middleware"
)

type purchaseRequest struct {
	BoxID    string `json:"box_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,min=1,max=10"`
}

type openManyRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=10,dive,required"`
}

// openManyResponse carries the boxes opened before any failure.
type openManyResponse struct {
	Results []orders.OpenResult     `json:"results"`
	Error   *apperrors.ServiceError `json:"error,omitempty"`
}

func (h *handler) registerOrderRoutes(api *mux.Router, private wrap) {
	api.Handle("/orders", private(h.purchase)).Methods(http.MethodPost)
	api.Handle("/orders", private(h.myOrders)).Methods(http.MethodGet)

	api.Handle("/warehouse/boxes", private(h.warehouse)).Methods(http.MethodGet)
	api.Handle("/warehouse/items", private(h.collection)).Methods(http.MethodGet)
	api.Handle("/warehouse/boxes/open", private(h.openMany)).Methods(http.MethodPost)
	api.Handle("/warehouse/boxes/{id}/open", private(h.openBox)).Methods(http.MethodPost)
}

func (h *handler) purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	res, err := h.app.Orders.Purchase(r.Context(), middleware.GetUserID(r.Context()), req.BoxID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) myOrders(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Orders.MyOrders(r.Context(), middleware.GetUserID(r.Context()), pageRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) warehouse(w http.ResponseWriter, r *http.Request) {
	status := inventory.BoxStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	res, err := h.app.Orders.Warehouse(r.Context(), middleware.GetUserID(r.Context()), status, pageRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) collection(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Orders.Collection(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *handler) openBox(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Orders.Open(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) openMany(w http.ResponseWriter, r *http.Request) {
	var req openManyRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	results, err := h.app.Orders.OpenMany(r.Context(), middleware.GetUserID(r.Context()), req.IDs)
	if err != nil && len(results) == 0 {
		writeError(w, err)
		return
	}
	resp := openManyResponse{Results: results}
	if err != nil {
		resp.Error = apperrors.GetServiceError(err)
		if resp.Error == nil {
			resp.Error = apperrors.Internal("open failed", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
