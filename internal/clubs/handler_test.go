package clubs

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
	clubs   map[string]*Club
	names   map[string]string // name -> club id
	members map[string]map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		clubs:   map[string]*Club{},
		names:   map[string]string{},
		members: map[string]map[string]string{},
	}
}

func (f *fakeRepo) Insert(ctx context.Context, c *Club) error {
	if other, taken := f.names[c.Name]; taken && other != c.ID {
		return ErrDuplicateName
	}
	if c.ID == "" {
		c.ID = "club-" + c.Name
	}
	c.Active = true
	f.names[c.Name] = c.ID
	cp := *c
	f.clubs[c.ID] = &cp
	return nil
}

func (f *fakeRepo) List(ctx context.Context, flt Filter) ([]Club, error) {
	var out []Club
	for _, c := range f.clubs {
		if c.Active {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*Club, error) {
	c, ok := f.clubs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeRepo) Update(ctx context.Context, c *Club) error {
	if _, ok := f.clubs[c.ID]; !ok {
		return ErrNotFound
	}
	if other, taken := f.names[c.Name]; taken && other != c.ID {
		return ErrDuplicateName
	}
	f.names[c.Name] = c.ID
	cp := *c
	f.clubs[c.ID] = &cp
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id string) error {
	c, ok := f.clubs[id]
	if !ok {
		return ErrNotFound
	}
	delete(f.names, c.Name)
	delete(f.clubs, id)
	return nil
}

func (f *fakeRepo) Join(ctx context.Context, clubID, userID string) error {
	ms := f.members[clubID]
	if ms == nil {
		ms = map[string]string{}
		f.members[clubID] = ms
	}
	if ms[userID] == "active" {
		return ErrAlreadyMember
	}
	ms[userID] = "active"
	return nil
}

func (f *fakeRepo) Leave(ctx context.Context, clubID, userID string) error {
	if f.members[clubID][userID] != "active" {
		return ErrNotMember
	}
	f.members[clubID][userID] = "inactive"
	return nil
}

func (f *fakeRepo) ListMembers(ctx context.Context, clubID string) ([]Membership, error) {
	var out []Membership
	for userID, status := range f.members[clubID] {
		if status != "active" {
			continue
		}
		out = append(out, Membership{
			ClubID:   clubID,
			UserID:   userID,
			Role:     "member",
			Status:   status,
			JoinedAt: time.Now().UTC(),
		})
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func asUser(req *http.Request, u *auth.User) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), u))
}

var (
	student = &auth.User{ID: "u1", Role: auth.RoleStudent}
	faculty = &auth.User{ID: "u2", Role: auth.RoleFaculty}
	admin   = &auth.User{ID: "u3", Role: auth.RoleAdmin}
)

func createBody() io.Reader {
	b, _ := json.Marshal(map[string]string{
		"name":        "Chess Club",
		"description": "Weekly matches and coaching",
	})
	return bytes.NewReader(b)
}

func TestCreateClub_AdminOnly(t *testing.T) {
	tests := []struct {
		name     string
		user     *auth.User
		wantCode int
	}{
		{"student denied", student, http.StatusForbidden},
		{"faculty denied", faculty, http.StatusForbidden},
		{"admin allowed", admin, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &CollectionHandler{
				Store:      newFakeRepo(),
				Logger:     discardLogger(),
				CreateGate: auth.Gate{Roles: []auth.Role{auth.RoleAdmin}},
			}
			req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/clubs", createBody()), tt.user)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestCreateClub_DuplicateNameConflicts(t *testing.T) {
	repo := newFakeRepo()
	h := &CollectionHandler{
		Store:      repo,
		Logger:     discardLogger(),
		CreateGate: auth.Gate{Roles: []auth.Role{auth.RoleAdmin}},
	}
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/clubs", createBody()), admin)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = asUser(httptest.NewRequest(http.MethodPost, "/api/v1/clubs", createBody()), admin)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func seededRepo(t *testing.T, active bool) *fakeRepo {
	t.Helper()
	repo := newFakeRepo()
	require.NoError(t, repo.Insert(context.Background(), &Club{
		ID:          "club-x",
		Name:        "Chess Club",
		Description: "Weekly matches",
		CreatedBy:   admin.ID,
	}))
	if !active {
		c, err := repo.Get(context.Background(), "club-x")
		require.NoError(t, err)
		c.Active = false
		require.NoError(t, repo.Update(context.Background(), c))
	}
	return repo
}

func detailHandler(repo Repository) *DetailHandler {
	return &DetailHandler{
		Store:      repo,
		Logger:     discardLogger(),
		MutateGate: auth.Gate{OwnerScoped: true},
	}
}

func TestUpdateClub_CreatorOnly(t *testing.T) {
	repo := seededRepo(t, true)
	body, _ := json.Marshal(map[string]string{"description": "hijacked"})
	req := asUser(httptest.NewRequest(http.MethodPut, "/api/v1/clubs/club-x", bytes.NewReader(body)), student)
	rec := httptest.NewRecorder()
	detailHandler(repo).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestJoinAndLeave(t *testing.T) {
	join := func(repo Repository, u *auth.User) *httptest.ResponseRecorder {
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/clubs/club-x/join", nil), u)
		rec := httptest.NewRecorder()
		detailHandler(repo).ServeHTTP(rec, req)
		return rec
	}
	leave := func(repo Repository, u *auth.User) *httptest.ResponseRecorder {
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/clubs/club-x/leave", nil), u)
		rec := httptest.NewRecorder()
		detailHandler(repo).ServeHTTP(rec, req)
		return rec
	}

	t.Run("join then double join conflicts", func(t *testing.T) {
		repo := seededRepo(t, true)
		require.Equal(t, http.StatusCreated, join(repo, student).Code)
		require.Equal(t, http.StatusConflict, join(repo, student).Code)
	})

	t.Run("leave then rejoin succeeds", func(t *testing.T) {
		repo := seededRepo(t, true)
		require.Equal(t, http.StatusCreated, join(repo, student).Code)
		require.Equal(t, http.StatusNoContent, leave(repo, student).Code)
		require.Equal(t, http.StatusCreated, join(repo, student).Code)
	})

	t.Run("leave without membership is 404", func(t *testing.T) {
		repo := seededRepo(t, true)
		require.Equal(t, http.StatusNotFound, leave(repo, student).Code)
	})

	t.Run("inactive club rejects joins", func(t *testing.T) {
		repo := seededRepo(t, false)
		require.Equal(t, http.StatusConflict, join(repo, student).Code)
	})
}

func TestListMembers(t *testing.T) {
	repo := seededRepo(t, true)
	require.NoError(t, repo.Join(context.Background(), "club-x", student.ID))
	require.NoError(t, repo.Join(context.Background(), "club-x", faculty.ID))
	require.NoError(t, repo.Leave(context.Background(), "club-x", faculty.ID))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/clubs/club-x/members", nil), student)
	rec := httptest.NewRecorder()
	detailHandler(repo).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var members []Membership
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	require.Len(t, members, 1)
	require.Equal(t, student.ID, members[0].UserID)
}
