package httpserver

import (
	"net/http"

	"log/slog"

	"campushub/internal/auth"
	"campushub/internal/clubs"
	"campushub/internal/events"
	"campushub/internal/feedback"
	"campushub/internal/httpx"
	"campushub/internal/items"
	"campushub/internal/notifications"
)

// NewRouter wires every endpoint to its access gate. This table is the single
// source of truth for who may do what; the handlers only evaluate the gate
// they were handed.
func NewRouter(
	logger *slog.Logger,
	authSvc *auth.Service,
	userStore auth.Store,
	itemStore items.Repository,
	eventStore events.Repository,
	feedbackStore feedback.Repository,
	clubStore clubs.Repository,
	notifStore notifications.Repository,
) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth
	mux.Handle("/api/v1/auth/register", registerHandler(authSvc, logger))
	mux.Handle("/api/v1/auth/login", loginHandler(authSvc, logger))

	secured := auth.Middleware(authSvc, logger)

	mux.Handle("/api/v1/auth/me", secured(meHandler(userStore, logger)))
	mux.Handle("/api/v1/auth/profile", secured(profileHandler(userStore, logger)))
	mux.Handle("/api/v1/auth/change-password", secured(changePasswordHandler(authSvc, logger)))
	mux.Handle("/api/v1/auth/users", secured(auth.RequireRole(listUsersHandler(userStore, logger), auth.RoleAdmin)))

	// Lost & found items: anyone may report, only the owner (or an admin)
	// may change or remove a report; claim decisions are a staff action.
	itemsCol := &items.CollectionHandler{
		Store:      itemStore,
		Notifier:   notifStore,
		Logger:     logger,
		CreateGate: auth.Gate{},
	}
	itemsDetail := &items.DetailHandler{
		Store:      itemStore,
		Logger:     logger,
		MutateGate: auth.Gate{OwnerScoped: true},
	}
	claimList := &items.ClaimListHandler{Store: itemStore, Logger: logger}
	claimDecide := &items.ClaimDecisionHandler{
		Store:      itemStore,
		Logger:     logger,
		DecideGate: auth.Gate{Roles: []auth.Role{auth.RoleFaculty}},
	}
	mux.Handle("/api/v1/items", secured(itemsCol))
	mux.Handle("/api/v1/items/", secured(itemsDetail))
	mux.Handle("/api/v1/claims", secured(claimList))
	mux.Handle("/api/v1/claims/", secured(claimDecide))

	// Events: creation is staff-only, edits are owner-scoped.
	eventsCol := &events.CollectionHandler{
		Store:      eventStore,
		Notifier:   notifStore,
		Logger:     logger,
		CreateGate: auth.Gate{Roles: []auth.Role{auth.RoleFaculty}},
	}
	eventsDetail := &events.DetailHandler{
		Store:      eventStore,
		Logger:     logger,
		MutateGate: auth.Gate{OwnerScoped: true},
	}
	mux.Handle("/api/v1/events", secured(eventsCol))
	mux.Handle("/api/v1/events/", secured(eventsDetail))

	// Feedback: anyone may submit, owner-scoped edits, staff responds.
	feedbackCol := &feedback.CollectionHandler{
		Store:      feedbackStore,
		Logger:     logger,
		CreateGate: auth.Gate{},
	}
	feedbackDetail := &feedback.DetailHandler{
		Store:      feedbackStore,
		Logger:     logger,
		MutateGate: auth.Gate{OwnerScoped: true},
		StaffGate:  auth.Gate{Roles: []auth.Role{auth.RoleFaculty}},
	}
	mux.Handle("/api/v1/feedback", secured(feedbackCol))
	mux.Handle("/api/v1/feedback/", secured(feedbackDetail))

	// Clubs: admin-managed, membership open to every authenticated user.
	clubsCol := &clubs.CollectionHandler{
		Store:      clubStore,
		Logger:     logger,
		CreateGate: auth.Gate{Roles: []auth.Role{auth.RoleAdmin}},
	}
	clubsDetail := &clubs.DetailHandler{
		Store:      clubStore,
		Logger:     logger,
		MutateGate: auth.Gate{OwnerScoped: true},
	}
	mux.Handle("/api/v1/clubs", secured(clubsCol))
	mux.Handle("/api/v1/clubs/", secured(clubsDetail))

	// Notifications: always scoped to the requesting user.
	notifList := &notifications.ListHandler{Store: notifStore, Logger: logger}
	notifDetail := &notifications.DetailHandler{
		Store:    notifStore,
		Logger:   logger,
		ReadGate: auth.Gate{OwnerScoped: true},
	}
	mux.Handle("/api/v1/notifications", secured(notifList))
	mux.Handle("/api/v1/notifications/", secured(notifDetail))

	return withCORS(mux)
}
