package items

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

// Notifier is the fan-out hook invoked after an item is reported.
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
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.WriteDenied(w, auth.ErrUnauthenticated)
		return
	}
	q := r.URL.Query()
	f := Filter{
		Type:     Type(q.Get("type")),
		Status:   Status(q.Get("status")),
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
	if q.Get("mine") == "true" {
		f.Reporter = user.ID
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			f.Limit = l
		}
	}
	list, err := h.Store.List(r.Context(), f)
	if err != nil {
		h.Logger.Error("list items", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

type itemPayload struct {
	Type          Type      `json:"type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Location      string    `json:"location"`
	ContactInfo   string    `json:"contact_info"`
	DateLostFound time.Time `json:"date_lost_found"`
	Status        Status    `json:"status"`
	Tags          []string  `json:"tags"`
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
	var p itemPayload
	if !httpx.Decode(w, r, &p) {
		return
	}
	if p.Type != TypeLost && p.Type != TypeFound {
		httpx.Error(w, http.StatusBadRequest, "type must be lost or found")
		return
	}
	if p.Title == "" || p.Description == "" || p.Location == "" {
		httpx.Error(w, http.StatusBadRequest, "title, description and location are required")
		return
	}
	if p.DateLostFound.IsZero() {
		p.DateLostFound = time.Now().UTC()
	}
	item := &Item{
		Type:          p.Type,
		Title:         p.Title,
		Description:   p.Description,
		Category:      p.Category,
		Location:      p.Location,
		ContactInfo:   p.ContactInfo,
		DateLostFound: p.DateLostFound,
		Tags:          p.Tags,
		ReportedBy:    user.ID,
	}
	if err := h.Store.Insert(r.Context(), item); err != nil {
		h.Logger.Error("insert item", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if h.Notifier != nil {
		msg := fmt.Sprintf("A %s item was reported: %s at %s", item.Type, item.Title, item.Location)
		if err := h.Notifier.Broadcast(r.Context(), user.ID, notifications.TypeLostFound,
			fmt.Sprintf("%s: %s", item.Type, item.Title),
			msg, "/lost-found/"+item.ID); err != nil {
			h.Logger.Error("broadcast item notification", "err", err)
		}
	}
	httpx.JSON(w, http.StatusCreated, item)
}

// DetailHandler serves /api/v1/items/{id} and POST /api/v1/items/{id}/claim.
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
	id := parts[3]

	// Resource existence is resolved before authorization so a missing
	// item is 404 for everyone.
	item, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "item not found")
			return
		}
		h.Logger.Error("get item", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if len(parts) == 5 && parts[4] == "claim" && r.Method == http.MethodPost {
		h.claim(w, r, user, item)
		return
	}
	if len(parts) != 4 {
		httpx.Error(w, http.StatusBadRequest, "invalid path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		httpx.JSON(w, http.StatusOK, item)
	case http.MethodPut:
		h.update(w, r, user, item)
	case http.MethodDelete:
		h.delete(w, r, user, item)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *DetailHandler) update(w http.ResponseWriter, r *http.Request, user *auth.User, item *Item) {
	if err := auth.Authorize(user, h.MutateGate, item.ReportedBy); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	var p itemPayload
	if !httpx.Decode(w, r, &p) {
		return
	}
	if p.Type != "" {
		item.Type = p.Type
	}
	if p.Title != "" {
		item.Title = p.Title
	}
	if p.Description != "" {
		item.Description = p.Description
	}
	if p.Category != "" {
		item.Category = p.Category
	}
	if p.Location != "" {
		item.Location = p.Location
	}
	if p.ContactInfo != "" {
		item.ContactInfo = p.ContactInfo
	}
	if !p.DateLostFound.IsZero() {
		item.DateLostFound = p.DateLostFound
	}
	if p.Status != "" {
		item.Status = p.Status
	}
	if p.Tags != nil {
		item.Tags = p.Tags
	}
	if err := h.Store.Update(r.Context(), item); err != nil {
		h.Logger.Error("update item", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *DetailHandler) delete(w http.ResponseWriter, r *http.Request, user *auth.User, item *Item) {
	if err := auth.Authorize(user, h.MutateGate, item.ReportedBy); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	if err := h.Store.Delete(r.Context(), item.ID); err != nil {
		h.Logger.Error("delete item", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DetailHandler) claim(w http.ResponseWriter, r *http.Request, user *auth.User, item *Item) {
	if item.Status != StatusActive {
		httpx.Error(w, http.StatusConflict, "item is not available for claiming")
		return
	}
	var p struct {
		Description string `json:"description"`
	}
	if !httpx.Decode(w, r, &p) {
		return
	}
	c := &Claim{
		ItemID:      item.ID,
		ClaimerID:   user.ID,
		Description: p.Description,
	}
	if err := h.Store.InsertClaim(r.Context(), c); err != nil {
		h.Logger.Error("insert claim", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

type ClaimListHandler struct {
	Store  Repository
	Logger *slog.Logger
}

func (h *ClaimListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.WriteDenied(w, auth.ErrUnauthenticated)
		return
	}
	all := user.Role == auth.RoleAdmin || user.Role == auth.RoleFaculty
	claims, err := h.Store.ListClaims(r.Context(), user.ID, all)
	if err != nil {
		h.Logger.Error("list claims", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, claims)
}

// ClaimDecisionHandler serves POST /api/v1/claims/{id}/approve and /reject.
type ClaimDecisionHandler struct {
	Store      Repository
	Logger     *slog.Logger
	DecideGate auth.Gate
}

func (h *ClaimDecisionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	if len(parts) != 5 || (parts[4] != "approve" && parts[4] != "reject") {
		httpx.Error(w, http.StatusBadRequest, "invalid path")
		return
	}

	claim, err := h.Store.GetClaim(r.Context(), parts[3])
	if err != nil {
		if errors.Is(err, ErrClaimNotFound) {
			httpx.Error(w, http.StatusNotFound, "claim not found")
			return
		}
		h.Logger.Error("get claim", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := auth.Authorize(user, h.DecideGate, ""); err != nil {
		auth.WriteDenied(w, err)
		return
	}
	if claim.Status != ClaimPending {
		httpx.Error(w, http.StatusConflict, "claim already decided")
		return
	}

	var p struct {
		AdminNotes string `json:"admin_notes"`
	}
	if !httpx.Decode(w, r, &p) {
		return
	}
	if parts[4] == "approve" {
		claim.Status = ClaimApproved
	} else {
		claim.Status = ClaimRejected
	}
	claim.AdminNotes = p.AdminNotes
	if err := h.Store.DecideClaim(r.Context(), claim); err != nil {
		h.Logger.Error("decide claim", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, claim)
}
