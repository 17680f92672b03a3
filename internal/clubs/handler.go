package clubs

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"campushub/internal/auth"
	"campushub/internal/httpx"
)

type CollectionHandler struct {
	Store      Repository
	Logger     *slog.Logger
	CreateGate auth.Gate
}

func (h *CollectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *CollectionHandler) list(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); !ok {
		auth.WriteDenied(w, auth.ErrUnauthenticated)
		return
	}
	q := r.URL.Query()
	f := Filter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			f.Limit = l
		}
	}
	list, err := h.Store.List(r.Context(), f)
	if err != nil {
		h.Logger.Error("list clubs", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

type clubPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Advisor     string `json:"advisor"`
	Active      *bool  `json:"active"`
}

func (h *CollectionHandler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.WriteDenied(w, auth.ErrUnauthenticated)
		return
	}
	if err := auth.Authorize(user, h.CreateGate, ""); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	var p clubPayload
	if !httpx.Decode(w, r, &p) {
		return
	}
	if p.Name == "" || p.Description == "" {
		httpx.Error(w, http.StatusBadRequest, "name and description are required")
		return
	}
	c := &Club{
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Advisor:     p.Advisor,
		CreatedBy:   user.ID,
	}
	if err := h.Store.Insert(r.Context(), c); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			httpx.Error(w, http.StatusConflict, "club name already taken")
			return
		}
		h.Logger.Error("insert club", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

// DetailHandler serves /api/v1/clubs/{id} plus the /join, /leave and
// /members subactions.
type DetailHandler struct {
	Store      Repository
	Logger     *slog.Logger
	MutateGate auth.Gate
}

func (h *DetailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.WriteDenied(w, auth.ErrUnauthenticated)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 4 {
		httpx.Error(w, http.StatusBadRequest, "invalid path")
		return
	}

	club, err := h.Store.Get(r.Context(), parts[3])
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "club not found")
			return
		}
		h.Logger.Error("get club", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if len(parts) == 5 {
		switch {
		case parts[4] == "members" && r.Method == http.MethodGet:
			h.members(w, r, club)
		case parts[4] == "join" && r.Method == http.MethodPost:
			h.join(w, r, user, club)
		case parts[4] == "leave" && r.Method == http.MethodPost:
			h.leave(w, r, user, club)
		default:
			httpx.Error(w, http.StatusBadRequest, "invalid path")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		httpx.JSON(w, http.StatusOK, club)
	case http.MethodPut:
		h.update(w, r, user, club)
	case http.MethodDelete:
		h.delete(w, r, user, club)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *DetailHandler) update(w http.ResponseWriter, r *http.Request, user *auth.User, club *Club) {
	if err := auth.Authorize(user, h.MutateGate, club.CreatedBy); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	var p clubPayload
	if !httpx.Decode(w, r, &p) {
		return
	}
	if p.Name != "" {
		club.Name = p.Name
	}
	if p.Description != "" {
		club.Description = p.Description
	}
	if p.Category != "" {
		club.Category = p.Category
	}
	if p.Advisor != "" {
		club.Advisor = p.Advisor
	}
	if p.Active != nil {
		club.Active = *p.Active
	}
	if err := h.Store.Update(r.Context(), club); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			httpx.Error(w, http.StatusConflict, "club name already taken")
			return
		}
		h.Logger.Error("update club", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, club)
}

func (h *DetailHandler) delete(w http.ResponseWriter, r *http.Request, user *auth.User, club *Club) {
	if err := auth.Authorize(user, h.MutateGate, club.CreatedBy); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	if err := h.Store.Delete(r.Context(), club.ID); err != nil {
		h.Logger.Error("delete club", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DetailHandler) members(w http.ResponseWriter, r *http.Request, club *Club) {
	list, err := h.Store.ListMembers(r.Context(), club.ID)
	if err != nil {
		h.Logger.Error("list members", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *DetailHandler) join(w http.ResponseWriter, r *http.Request, user *auth.User, club *Club) {
	if !club.Active {
		httpx.Error(w, http.StatusConflict, "club is not active")
		return
	}
	if err := h.Store.Join(r.Context(), club.ID, user.ID); err != nil {
		if errors.Is(err, ErrAlreadyMember) {
			httpx.Error(w, http.StatusConflict, "already a member")
			return
		}
		h.Logger.Error("join club", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"club_id": club.ID, "status": "active"})
}

func (h *DetailHandler) leave(w http.ResponseWriter, r *http.Request, user *auth.User, club *Club) {
	if err := h.Store.Leave(r.Context(), club.ID, user.ID); err != nil {
		if errors.Is(err, ErrNotMember) {
			httpx.Error(w, http.StatusNotFound, "membership not found")
			return
		}
		h.Logger.Error("leave club", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
