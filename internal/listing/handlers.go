package listing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumberlens/backend-lumber/internal/common"
)

// Handler exposes the price submission endpoint.
type Handler struct {
	Service     *Service
	Submissions *prometheus.CounterVec
}

// Submit handles POST /api/v1/listings.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "listing service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	var sub Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	result, err := h.Service.Submit(r.Context(), userID, sub)
	if err != nil {
		h.count("rejected")
		h.writeError(w, err)
		return
	}
	h.count("accepted")
	common.JSON(w, http.StatusCreated, map[string]any{"data": result})
}

func (h *Handler) count(result string) {
	if h.Submissions != nil {
		h.Submissions.WithLabelValues(SourceUser, result).Inc()
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
