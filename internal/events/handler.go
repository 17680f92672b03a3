package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campushub/internal/auth"
	"campushub/internal/httpx"
	"campushub/internal/notifications"
)

type Notifier interface {
	Broadcast(ctx context.Context, excludeUserID string, typ notifications.Type, title, message, link string) error
}

type CollectionHandler struct {
	Store      Repository
	Notifier   Notifier
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
		Status:   Status(q.Get("status")),
		Search:   q.Get("search"),
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			f.Limit = l
		}
	}
	list, err := h.Store.List(r.Context(), f)
	if err != nil {
		h.Logger.Error("list events", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

type eventPayload struct {
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Category             string     `json:"category"`
	Venue                string     `json:"venue"`
	StartAt              time.Time  `json:"start_at"`
	EndAt                time.Time  `json:"end_at"`
	MaxParticipants      int        `json:"max_participants"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	Status               Status     `json:"status"`
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
	var p eventPayload
	if !httpx.Decode(w, r, &p) {
		return
	}
	if p.Title == "" || p.Venue == "" || p.StartAt.IsZero() || p.EndAt.IsZero() {
		httpx.Error(w, http.StatusBadRequest, "title, venue, start_at and end_at are required")
		return
	}
	if p.EndAt.Before(p.StartAt) {
		httpx.Error(w, http.StatusBadRequest, "end_at must not be before start_at")
		return
	}
	e := &Event{
		Title:                p.Title,
		Description:          p.Description,
		Category:             p.Category,
		Venue:                p.Venue,
		StartAt:              p.StartAt,
		EndAt:                p.EndAt,
		MaxParticipants:      p.MaxParticipants,
		RegistrationDeadline: p.RegistrationDeadline,
		OrganizerID:          user.ID,
	}
	if err := h.Store.Insert(r.Context(), e); err != nil {
		h.Logger.Error("insert event", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if h.Notifier != nil {
		msg := fmt.Sprintf("New event: %s at %s on %s", e.Title, e.Venue, e.StartAt.Format("Jan 2, 2006"))
		if err := h.Notifier.Broadcast(r.Context(), user.ID, notifications.TypeEvent,
			"Event: "+e.Title, msg, "/events/"+e.ID); err != nil {
			h.Logger.Error("broadcast event notification", "err", err)
		}
	}
	httpx.JSON(w, http.StatusCreated, e)
}

// DetailHandler serves /api/v1/events/{id} plus the /register and
// /cancel-registration subactions.
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

	event, err := h.Store.Get(r.Context(), parts[3])
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "event not found")
			return
		}
		h.Logger.Error("get event", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if len(parts) == 5 && r.Method == http.MethodPost {
		switch parts[4] {
		case "register":
			h.register(w, r, user, event)
		case "cancel-registration":
			h.cancelRegistration(w, r, user, event)
		default:
			httpx.Error(w, http.StatusBadRequest, "invalid path")
		}
		return
	}
	if len(parts) != 4 {
		httpx.Error(w, http.StatusBadRequest, "invalid path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		httpx.JSON(w, http.StatusOK, event)
	case http.MethodPut:
		h.update(w, r, user, event)
	case http.MethodDelete:
		h.delete(w, r, user, event)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *DetailHandler) update(w http.ResponseWriter, r *http.Request, user *auth.User, event *Event) {
	if err := auth.Authorize(user, h.MutateGate, event.OrganizerID); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	var p eventPayload
	if !httpx.Decode(w, r, &p) {
		return
	}
	if p.Title != "" {
		event.Title = p.Title
	}
	if p.Description != "" {
		event.Description = p.Description
	}
	if p.Category != "" {
		event.Category = p.Category
	}
	if p.Venue != "" {
		event.Venue = p.Venue
	}
	if !p.StartAt.IsZero() {
		event.StartAt = p.StartAt
	}
	if !p.EndAt.IsZero() {
		event.EndAt = p.EndAt
	}
	if p.MaxParticipants > 0 {
		event.MaxParticipants = p.MaxParticipants
	}
	if p.RegistrationDeadline != nil {
		event.RegistrationDeadline = p.RegistrationDeadline
	}
	if p.Status != "" {
		event.Status = p.Status
	}
	if err := h.Store.Update(r.Context(), event); err != nil {
		h.Logger.Error("update event", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, event)
}

func (h *DetailHandler) delete(w http.ResponseWriter, r *http.Request, user *auth.User, event *Event) {
	if err := auth.Authorize(user, h.MutateGate, event.OrganizerID); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	if err := h.Store.Delete(r.Context(), event.ID); err != nil {
		h.Logger.Error("delete event", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DetailHandler) register(w http.ResponseWriter, r *http.Request, user *auth.User, event *Event) {
	if event.Status != StatusUpcoming {
		httpx.Error(w, http.StatusConflict, "registration is closed for this event")
		return
	}
	if event.RegistrationDeadline != nil && time.Now().After(*event.RegistrationDeadline) {
		httpx.Error(w, http.StatusConflict, "registration deadline has passed")
		return
	}
	if event.MaxParticipants > 0 {
		n, err := h.Store.CountRegistered(r.Context(), event.ID)
		if err != nil {
			h.Logger.Error("count registrations", "err", err)
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		if n >= event.MaxParticipants {
			httpx.Error(w, http.StatusConflict, "event is full")
			return
		}
	}
	if err := h.Store.Register(r.Context(), event.ID, user.ID); err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			httpx.Error(w, http.StatusConflict, "already registered")
			return
		}
		h.Logger.Error("register for event", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"event_id": event.ID, "status": "registered"})
}

func (h *DetailHandler) cancelRegistration(w http.ResponseWriter, r *http.Request, user *auth.User, event *Event) {
	if err := h.Store.CancelRegistration(r.Context(), event.ID, user.ID); err != nil {
		if errors.Is(err, ErrNotRegistered) {
			httpx.Error(w, http.StatusNotFound, "registration not found")
			return
		}
		h.Logger.Error("cancel registration", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
