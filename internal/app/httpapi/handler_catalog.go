package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	catalogsvc "github.com/Aromatic05/CurioBox-sub000/internal/app/services/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/middleware"
)

type boxRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
	CoverImage  string `json:"cover_image" validate:"max=512"`
	Category    string `json:"category" validate:"max=50"`
	Price       int64  `json:"price" validate:"gte=0"`
	Stock       int    `json:"stock" validate:"gte=0"`
	OnSale      bool   `json:"on_sale"`
}

type boxPatchRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	CoverImage  *string `json:"cover_image" validate:"omitempty,max=512"`
	Category    *string `json:"category" validate:"omitempty,max=50"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	OnSale      *bool   `json:"on_sale"`
}

type itemRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
	Image       string `json:"image" validate:"max=512"`
	Rarity      string `json:"rarity" validate:"omitempty,oneof=common rare epic legendary hidden"`
	Stock       int    `json:"stock" validate:"gte=0"`
}

type itemPatchRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Image       *string `json:"image" validate:"omitempty,max=512"`
	Rarity      *string `json:"rarity" validate:"omitempty,oneof=common rare epic legendary hidden"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
}

type boxItemsRequest struct {
	Items []boxItemRequest `json:"items" validate:"required,min=1,dive"`
}

type boxItemRequest struct {
	ItemID string  `json:"item_id" validate:"required"`
	Weight float64 `json:"weight" validate:"gt=0"`
}

func (h *handler) registerCatalogRoutes(api *mux.Router, public wrap) {
	api.Handle("/boxes", public(h.listBoxes)).Methods(http.MethodGet)
	api.Handle("/boxes/{id}", public(h.getBox)).Methods(http.MethodGet)
	api.Handle("/items", public(h.listItems)).Methods(http.MethodGet)
}

func boxFilter(r *http.Request) catalog.BoxFilter {
	q := r.URL.Query()
	return catalog.BoxFilter{
		Query:    strings.TrimSpace(q.Get("q")),
		Category: strings.TrimSpace(q.Get("category")),
		Sort:     catalog.BoxSort(strings.TrimSpace(q.Get("sort"))),
	}
}

func (h *handler) listBoxes(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Catalog.ListBoxes(r.Context(), boxFilter(r), pageRequest(r), false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) getBox(w http.ResponseWriter, r *http.Request) {
	detail, err := h.app.Catalog.GetBox(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *handler) listItems(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Catalog.ListItems(r.Context(), pageRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- admin ------------------------------------------------------------------

func (h *handler) adminListBoxes(w http.ResponseWriter, r *http.Request) {
	filter := boxFilter(r)
	if onSale, ok := queryBool(r, "on_sale"); ok && onSale {
		filter.OnSaleOnly = true
	}
	res, err := h.app.Catalog.ListBoxes(r.Context(), filter, pageRequest(r), middleware.IsAdmin(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) createBox(w http.ResponseWriter, r *http.Request) {
	var req boxRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	box, err := h.app.Catalog.CreateBox(r.Context(), catalogsvc.BoxInput{
		Name:        req.Name,
		Description: req.Description,
		CoverImage:  req.CoverImage,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		OnSale:      req.OnSale,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, box)
}

func (h *handler) updateBox(w http.ResponseWriter, r *http.Request) {
	var req boxPatchRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	box, err := h.app.Catalog.UpdateBox(r.Context(), mux.Vars(r)["id"], catalogsvc.BoxPatch{
		Name:        req.Name,
		Description: req.Description,
		CoverImage:  req.CoverImage,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		OnSale:      req.OnSale,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, box)
}

func (h *handler) deleteBox(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Catalog.DeleteBox(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) setBoxItems(w http.ResponseWriter, r *http.Request) {
	var req boxItemsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	boxID := mux.Vars(r)["id"]
	table := make([]catalog.BoxItem, 0, len(req.Items))
	for _, it := range req.Items {
		table = append(table, catalog.BoxItem{BoxID: boxID, ItemID: it.ItemID, Weight: it.Weight})
	}
	detail, err := h.app.Catalog.SetBoxItems(r.Context(), boxID, table)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	item, err := h.app.Catalog.CreateItem(r.Context(), catalogsvc.ItemInput{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Rarity:      catalog.Rarity(req.Rarity),
		Stock:       req.Stock,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req itemPatchRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	patch := catalogsvc.ItemPatch{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Stock:       req.Stock,
	}
	if req.Rarity != nil {
		rarity := catalog.Rarity(*req.Rarity)
		patch.Rarity = &rarity
	}
	item, err := h.app.Catalog.UpdateItem(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Catalog.DeleteItem(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
