package buildorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumberlens/backend-lumber/internal/common"
)

// Handler exposes build order endpoints.
type Handler struct {
	Service     *Service
	RepriceRuns *prometheus.CounterVec
	RepriceTime *prometheus.HistogramVec
	SharedViews prometheus.Counter
	CSVExports  prometheus.Counter
}

// Create handles POST /api/v1/build-orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	view, err := h.Service.Create(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// List handles GET /api/v1/build-orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	page, limit := common.ParsePagination(r, 20)
	result, err := h.Service.List(r.Context(), userID, page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)},
	})
}

// Get handles GET /api/v1/build-orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	view, err := h.Service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Update handles PUT /api/v1/build-orders/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	view, err := h.Service.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Delete handles DELETE /api/v1/build-orders/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reprice handles POST /api/v1/build-orders/{id}/reprice.
func (h *Handler) Reprice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	start := time.Now()
	view, err := h.Service.Reprice(r.Context(), userID, chi.URLParam(r, "id"))
	h.observeReprice("api", start, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Share handles POST /api/v1/build-orders/{id}/share.
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	token, err := h.Service.EnableShare(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"shareToken": token}})
}

// Unshare handles DELETE /api/v1/build-orders/{id}/share.
func (h *Handler) Unshare(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.Service.DisableShare(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Shared handles GET /api/v1/shared/{token}. No authentication required.
func (h *Handler) Shared(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "build order service not configured", nil)
		return
	}
	start := time.Now()
	view, err := h.Service.Shared(r.Context(), chi.URLParam(r, "token"))
	h.observeReprice("shared", start, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.SharedViews != nil {
		h.SharedViews.Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// ExportCSV handles GET /api/v1/build-orders/{id}/export.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	start := time.Now()
	view, err := h.Service.Reprice(r.Context(), userID, chi.URLParam(r, "id"))
	h.observeReprice("export", start, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.CSVExports != nil {
		h.CSVExports.Inc()
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", csvFilename(view.Order.Name)))
	if err := WriteCSV(w, view); err != nil {
		// Headers are already gone; nothing useful left to send.
		return
	}
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "build order service not configured", nil)
		return "", false
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return "", false
	}
	return userID, true
}

func (h *Handler) observeReprice(trigger string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if h.RepriceRuns != nil {
		h.RepriceRuns.WithLabelValues(trigger, result).Inc()
	}
	if h.RepriceTime != nil && err == nil {
		h.RepriceTime.WithLabelValues(trigger).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		message := appErr.Message
		if message == "" {
			message = "internal error"
		}
		common.JSONError(w, status, code, message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func csvFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == ' ', r == '-', r == '_':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "build-order.csv"
	}
	return string(out) + ".csv"
}
