package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campushub/internal/auth"
)

type fakeRepo struct {
	events        map[string]*Event
	registrations map[string]map[string]string // eventID -> userID -> status
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:        map[string]*Event{},
		registrations: map[string]map[string]string{},
	}
}

func (f *fakeRepo) Insert(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = "event-" + e.Title
	}
	if e.Status == "" {
		e.Status = StatusUpcoming
	}
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeRepo) List(ctx context.Context, flt Filter) ([]Event, error) {
	var out []Event
	for _, e := range f.events {
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeRepo) Update(ctx context.Context, e *Event) error {
	if _, ok := f.events[e.ID]; !ok {
		return ErrNotFound
	}
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.events[id]; !ok {
		return ErrNotFound
	}
	delete(f.events, id)
	return nil
}

func (f *fakeRepo) Register(ctx context.Context, eventID, userID string) error {
	regs := f.registrations[eventID]
	if regs == nil {
		regs = map[string]string{}
		f.registrations[eventID] = regs
	}
	if regs[userID] == "registered" {
		return ErrAlreadyRegistered
	}
	regs[userID] = "registered"
	return nil
}

func (f *fakeRepo) CancelRegistration(ctx context.Context, eventID, userID string) error {
	if f.registrations[eventID][userID] != "registered" {
		return ErrNotRegistered
	}
	f.registrations[eventID][userID] = "cancelled"
	return nil
}

func (f *fakeRepo) CountRegistered(ctx context.Context, eventID string) (int, error) {
	n := 0
	for _, status := range f.registrations[eventID] {
		if status == "registered" {
			n++
		}
	}
	return n, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func asUser(req *http.Request, u *auth.User) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), u))
}

var (
	student  = &auth.User{ID: "u1", Role: auth.RoleStudent}
	faculty  = &auth.User{ID: "u2", Role: auth.RoleFaculty}
	admin    = &auth.User{ID: "u3", Role: auth.RoleAdmin}
	student2 = &auth.User{ID: "u4", Role: auth.RoleStudent}
)

func createBody(t *testing.T) io.Reader {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"title":    "Tech Talk",
		"venue":    "Auditorium A",
		"start_at": time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"end_at":   time.Now().Add(50 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestCreateEvent_RoleGate(t *testing.T) {
	tests := []struct {
		name     string
		user     *auth.User
		wantCode int
	}{
		{"student denied", student, http.StatusForbidden},
		{"faculty allowed", faculty, http.StatusCreated},
		{"admin allowed", admin, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &CollectionHandler{
				Store:      newFakeRepo(),
				Logger:     discardLogger(),
				CreateGate: auth.Gate{Roles: []auth.Role{auth.RoleFaculty}},
			}
			req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/events", createBody(t)), tt.user)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code)

			if tt.wantCode == http.StatusCreated {
				var e Event
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
				require.Equal(t, tt.user.ID, e.OrganizerID)
				require.Equal(t, StatusUpcoming, e.Status)
			}
		})
	}
}

func TestCreateEvent_RejectsInvertedTimes(t *testing.T) {
	h := &CollectionHandler{
		Store:      newFakeRepo(),
		Logger:     discardLogger(),
		CreateGate: auth.Gate{Roles: []auth.Role{auth.RoleFaculty}},
	}
	b, _ := json.Marshal(map[string]interface{}{
		"title":    "Backwards",
		"venue":    "Room 1",
		"start_at": time.Now().Add(50 * time.Hour).Format(time.RFC3339),
		"end_at":   time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	})
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(b)), faculty)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func seededRepo(t *testing.T, e Event) *fakeRepo {
	t.Helper()
	repo := newFakeRepo()
	if e.ID == "" {
		e.ID = "event-x"
	}
	if e.Title == "" {
		e.Title = "Tech Talk"
	}
	if e.Status == "" {
		e.Status = StatusUpcoming
	}
	e.OrganizerID = faculty.ID
	require.NoError(t, repo.Insert(context.Background(), &e))
	return repo
}

func detailHandler(repo Repository) *DetailHandler {
	return &DetailHandler{
		Store:      repo,
		Logger:     discardLogger(),
		MutateGate: auth.Gate{OwnerScoped: true},
	}
}

func TestUpdateEvent_OrganizerOnly(t *testing.T) {
	body := func() io.Reader {
		b, _ := json.Marshal(map[string]string{"title": "Renamed"})
		return bytes.NewReader(b)
	}
	tests := []struct {
		name     string
		user     *auth.User
		wantCode int
	}{
		{"stranger denied", student, http.StatusForbidden},
		{"organizer allowed", faculty, http.StatusOK},
		{"admin allowed", admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := seededRepo(t, Event{})
			req := asUser(httptest.NewRequest(http.MethodPut, "/api/v1/events/event-x", body()), tt.user)
			rec := httptest.NewRecorder()
			detailHandler(repo).ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestDeleteEvent_MissingIs404(t *testing.T) {
	repo := newFakeRepo()
	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/events/no-such", nil), student)
	rec := httptest.NewRecorder()
	detailHandler(repo).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegister(t *testing.T) {
	register := func(repo Repository, u *auth.User) *httptest.ResponseRecorder {
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/events/event-x/register", nil), u)
		rec := httptest.NewRecorder()
		detailHandler(repo).ServeHTTP(rec, req)
		return rec
	}

	t.Run("first registration succeeds", func(t *testing.T) {
		repo := seededRepo(t, Event{})
		require.Equal(t, http.StatusCreated, register(repo, student).Code)
	})

	t.Run("double registration conflicts", func(t *testing.T) {
		repo := seededRepo(t, Event{})
		require.Equal(t, http.StatusCreated, register(repo, student).Code)
		require.Equal(t, http.StatusConflict, register(repo, student).Code)
	})

	t.Run("cancel then re-register succeeds", func(t *testing.T) {
		repo := seededRepo(t, Event{})
		require.Equal(t, http.StatusCreated, register(repo, student).Code)

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/events/event-x/cancel-registration", nil), student)
		rec := httptest.NewRecorder()
		detailHandler(repo).ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		require.Equal(t, http.StatusCreated, register(repo, student).Code)
	})

	t.Run("full event conflicts", func(t *testing.T) {
		repo := seededRepo(t, Event{MaxParticipants: 1})
		require.Equal(t, http.StatusCreated, register(repo, student).Code)
		require.Equal(t, http.StatusConflict, register(repo, student2).Code)
	})

	t.Run("past deadline conflicts", func(t *testing.T) {
		deadline := time.Now().Add(-time.Hour)
		repo := seededRepo(t, Event{RegistrationDeadline: &deadline})
		require.Equal(t, http.StatusConflict, register(repo, student).Code)
	})

	t.Run("non-upcoming event conflicts", func(t *testing.T) {
		repo := seededRepo(t, Event{Status: StatusCancelled})
		require.Equal(t, http.StatusConflict, register(repo, student).Code)
	})

	t.Run("cancel without registration is 404", func(t *testing.T) {
		repo := seededRepo(t, Event{})
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/events/event-x/cancel-registration", nil), student)
		rec := httptest.NewRecorder()
		detailHandler(repo).ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
