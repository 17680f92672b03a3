package notifications

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"campushub/internal/auth"
	"campushub/internal/httpx"
)

type ListHandler struct {
	Store  Repository
	Logger *slog.Logger
}

func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.WriteDenied(w, auth.ErrUnauthenticated)
		return
	}
	q := r.URL.Query()
	unreadOnly := q.Get("unread") == "true"
	limit := 0
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}
	list, err := h.Store.ListForUser(r.Context(), user.ID, unreadOnly, limit)
	if err != nil {
		h.Logger.Error("list notifications", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

// DetailHandler serves POST /api/v1/notifications/read-all and
// POST /api/v1/notifications/{id}/read.
type DetailHandler struct {
	Store    Repository
	Logger   *slog.Logger
	ReadGate auth.Gate
}

func (h *DetailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.WriteDenied(w, auth.ErrUnauthenticated)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) == 4 && parts[3] == "read-all" {
		if err := h.Store.MarkAllRead(r.Context(), user.ID); err != nil {
			h.Logger.Error("mark all read", "err", err)
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if len(parts) != 5 || parts[4] != "read" {
		httpx.Error(w, http.StatusBadRequest, "invalid path")
		return
	}

	n, err := h.Store.Get(r.Context(), parts[3])
	if err != nil {
		if err == ErrNotFound {
			httpx.Error(w, http.StatusNotFound, "notification not found")
			return
		}
		h.Logger.Error("get notification", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := auth.Authorize(user, h.ReadGate, n.UserID); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	if err := h.Store.MarkRead(r.Context(), n.ID); err != nil {
		h.Logger.Error("mark read", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
