package httpapi

import (
	"context"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/internal/middleware"
)

type adminUserRequest struct {
	Status *string `json:"status" validate:"omitempty,oneof=active banned"`
	Role   *string `json:"role" validate:"omitempty,oneof=user admin"`
}

// hostStats is a best-effort snapshot; fields stay zero when the platform
// does not expose them.
type hostStats struct {
	MemoryTotal   uint64    `json:"memory_total"`
	MemoryUsed    uint64    `json:"memory_used"`
	MemoryPercent float64   `json:"memory_percent"`
	CPUPercent    []float64 `json:"cpu_percent,omitempty"`
	Load1         float64   `json:"load1"`
	Load5         float64   `json:"load5"`
	Load15        float64   `json:"load15"`
	Goroutines    int       `json:"goroutines"`
	HeapAlloc     uint64    `json:"heap_alloc"`
}

type statsResponse struct {
	Store       inventory.Stats `json:"store"`
	Host        hostStats       `json:"host"`
	Connections int             `json:"ws_connections"`
	Uptime      string          `json:"uptime"`
}

func (h *handler) registerAdminRoutes(admin *mux.Router) {
	admin.HandleFunc("/stats", h.adminStats).Methods(http.MethodGet)
	admin.HandleFunc("/audit", h.audit.handle).Methods(http.MethodGet)

	admin.HandleFunc("/users", h.adminListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", h.adminUpdateUser).Methods(http.MethodPatch)

	admin.HandleFunc("/boxes", h.adminListBoxes).Methods(http.MethodGet)
	admin.HandleFunc("/boxes", h.createBox).Methods(http.MethodPost)
	admin.HandleFunc("/boxes/{id}", h.updateBox).Methods(http.MethodPatch)
	admin.HandleFunc("/boxes/{id}", h.deleteBox).Methods(http.MethodDelete)
	admin.HandleFunc("/boxes/{id}/items", h.setBoxItems).Methods(http.MethodPut)
	admin.HandleFunc("/items", h.createItem).Methods(http.MethodPost)
	admin.HandleFunc("/items/{id}", h.updateItem).Methods(http.MethodPatch)
	admin.HandleFunc("/items/{id}", h.deleteItem).Methods(http.MethodDelete)

	admin.HandleFunc("/orders", h.adminListOrders).Methods(http.MethodGet)

	admin.HandleFunc("/tags", h.createTag).Methods(http.MethodPost)
	admin.HandleFunc("/tags/{id}", h.deleteTag).Methods(http.MethodDelete)
}

func (h *handler) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Orders.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Store:       stats,
		Host:        collectHostStats(r.Context()),
		Connections: h.app.Notify.Total(),
		Uptime:      time.Since(h.started).Round(time.Second).String(),
	})
}

func collectHostStats(ctx context.Context) hostStats {
	var out hostStats
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.MemoryTotal = vm.Total
		out.MemoryUsed = vm.Used
		out.MemoryPercent = vm.UsedPercent
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil {
		out.CPUPercent = pct
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		out.Load1, out.Load5, out.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	out.HeapAlloc = ms.HeapAlloc
	out.Goroutines = runtime.NumGoroutine()
	return out
}

func (h *handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := user.Filter{
		Query:  strings.TrimSpace(q.Get("q")),
		Role:   user.Role(strings.TrimSpace(q.Get("role"))),
		Status: user.Status(strings.TrimSpace(q.Get("status"))),
	}
	res, err := h.app.Accounts.List(r.Context(), filter, pageRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) adminUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req adminUserRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Status == nil && req.Role == nil {
		writeError(w, apperrors.Validation("status or role is required"))
		return
	}
	actorID := middleware.GetUserID(r.Context())
	id := mux.Vars(r)["id"]

	var (
		u   user.User
		err error
	)
	if req.Status != nil {
		if u, err = h.app.Accounts.SetStatus(r.Context(), actorID, id, user.Status(*req.Status)); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Role != nil {
		if u, err = h.app.Accounts.SetRole(r.Context(), actorID, id, user.Role(*req.Role)); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := inventory.OrderFilter{
		UserID: strings.TrimSpace(q.Get("user_id")),
		BoxID:  strings.TrimSpace(q.Get("box_id")),
	}
	res, err := h.app.Orders.ListOrders(r.Context(), filter, pageRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
