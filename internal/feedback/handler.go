package feedback

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"campushub/internal/auth"
	"campushub/internal/httpx"
)

// redact hides the submitter of anonymous feedback from everyone except the
// submitter themselves and staff.
func redact(f Feedback, viewer *auth.User) Feedback {
	if !f.Anonymous {
		return f
	}
	if viewer.ID == f.SubmittedBy || viewer.Role == auth.RoleAdmin || viewer.Role == auth.RoleFaculty {
		return f
	}
	f.SubmittedBy = ""
	return f
}

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
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.WriteDenied(w, auth.ErrUnauthenticated)
		return
	}
	q := r.URL.Query()
	f := Filter{
		Category: q.Get("category"),
		Status:   Status(q.Get("status")),
		Priority: Priority(q.Get("priority")),
	}
	// Students see only their own submissions.
	if user.Role == auth.RoleStudent {
		f.Submitter = user.ID
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			f.Limit = l
		}
	}
	list, err := h.Store.List(r.Context(), f)
	if err != nil {
		h.Logger.Error("list feedback", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	for i := range list {
		list[i] = redact(list[i], user)
	}
	httpx.JSON(w, http.StatusOK, list)
}

type feedbackPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Priority    Priority `json:"priority"`
	Anonymous   *bool    `json:"anonymous"`
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
	var p feedbackPayload
	if !httpx.Decode(w, r, &p) {
		return
	}
	if p.Title == "" || p.Description == "" {
		httpx.Error(w, http.StatusBadRequest, "title and description are required")
		return
	}
	f := &Feedback{
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Priority:    p.Priority,
		SubmittedBy: user.ID,
	}
	if p.Anonymous != nil {
		f.Anonymous = *p.Anonymous
	}
	if err := h.Store.Insert(r.Context(), f); err != nil {
		h.Logger.Error("insert feedback", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusCreated, f)
}

// DetailHandler serves /api/v1/feedback/{id} plus the /responses and /status
// subactions.
type DetailHandler struct {
	Store      Repository
	Logger     *slog.Logger
	MutateGate auth.Gate
	StaffGate  auth.Gate
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

	f, err := h.Store.Get(r.Context(), parts[3])
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "feedback not found")
			return
		}
		h.Logger.Error("get feedback", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if len(parts) == 5 {
		switch parts[4] {
		case "responses":
			h.responses(w, r, user, f)
		case "status":
			h.setStatus(w, r, user, f)
		default:
			httpx.Error(w, http.StatusBadRequest, "invalid path")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		httpx.JSON(w, http.StatusOK, redact(*f, user))
	case http.MethodPut:
		h.update(w, r, user, f)
	case http.MethodDelete:
		h.delete(w, r, user, f)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *DetailHandler) update(w http.ResponseWriter, r *http.Request, user *auth.User, f *Feedback) {
	if err := auth.Authorize(user, h.MutateGate, f.SubmittedBy); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	var p feedbackPayload
	if !httpx.Decode(w, r, &p) {
		return
	}
	if p.Title != "" {
		f.Title = p.Title
	}
	if p.Description != "" {
		f.Description = p.Description
	}
	if p.Category != "" {
		f.Category = p.Category
	}
	if p.Priority != "" {
		f.Priority = p.Priority
	}
	if p.Anonymous != nil {
		f.Anonymous = *p.Anonymous
	}
	if err := h.Store.Update(r.Context(), f); err != nil {
		h.Logger.Error("update feedback", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}

func (h *DetailHandler) delete(w http.ResponseWriter, r *http.Request, user *auth.User, f *Feedback) {
	if err := auth.Authorize(user, h.MutateGate, f.SubmittedBy); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	if err := h.Store.Delete(r.Context(), f.ID); err != nil {
		h.Logger.Error("delete feedback", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DetailHandler) responses(w http.ResponseWriter, r *http.Request, user *auth.User, f *Feedback) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.Store.ListResponses(r.Context(), f.ID)
		if err != nil {
			h.Logger.Error("list responses", "err", err)
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.JSON(w, http.StatusOK, list)
	case http.MethodPost:
		if err := auth.Authorize(user, h.StaffGate, ""); err != nil {
			auth.WriteDenied(w, err)
			return
		}
		var p struct {
			Message string `json:"message"`
		}
		if !httpx.Decode(w, r, &p) {
			return
		}
		if p.Message == "" {
			httpx.Error(w, http.StatusBadRequest, "message is required")
			return
		}
		resp := &Response{
			FeedbackID:  f.ID,
			ResponderID: user.ID,
			Message:     p.Message,
		}
		if err := h.Store.InsertResponse(r.Context(), resp); err != nil {
			h.Logger.Error("insert response", "err", err)
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.JSON(w, http.StatusCreated, resp)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *DetailHandler) setStatus(w http.ResponseWriter, r *http.Request, user *auth.User, f *Feedback) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := auth.Authorize(user, h.StaffGate, ""); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	var p struct {
		Status Status `json:"status"`
	}
	if !httpx.Decode(w, r, &p) {
		return
	}
	switch p.Status {
	case StatusPending, StatusUnderReview, StatusResolved, StatusClosed:
	default:
		httpx.Error(w, http.StatusBadRequest, "unknown status")
		return
	}
	if err := h.Store.SetStatus(r.Context(), f.ID, p.Status); err != nil {
		h.Logger.Error("set feedback status", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	f.Status = p.Status
	httpx.JSON(w, http.StatusOK, f)
}
