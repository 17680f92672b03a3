package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"campushub/internal/auth"
)

type fakeRepo struct {
	feedback  map[string]*Feedback
	responses map[string][]Response
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{feedback: map[string]*Feedback{}, responses: map[string][]Response{}}
}

func (f *fakeRepo) Insert(ctx context.Context, fb *Feedback) error {
	if fb.ID == "" {
		fb.ID = "fb-" + fb.Title
	}
	if fb.Status == "" {
		fb.Status = StatusPending
	}
	if fb.Priority == "" {
		fb.Priority = PriorityMedium
	}
	cp := *fb
	f.feedback[fb.ID] = &cp
	return nil
}

func (f *fakeRepo) List(ctx context.Context, flt Filter) ([]Feedback, error) {
	var out []Feedback
	for _, fb := range f.feedback {
		if flt.Submitter != "" && fb.SubmittedBy != flt.Submitter {
			continue
		}
		out = append(out, *fb)
	}
	return out, nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*Feedback, error) {
	fb, ok := f.feedback[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *fb
	return &cp, nil
}

func (f *fakeRepo) Update(ctx context.Context, fb *Feedback) error {
	if _, ok := f.feedback[fb.ID]; !ok {
		return ErrNotFound
	}
	cp := *fb
	f.feedback[fb.ID] = &cp
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.feedback[id]; !ok {
		return ErrNotFound
	}
	delete(f.feedback, id)
	return nil
}

func (f *fakeRepo) SetStatus(ctx context.Context, id string, status Status) error {
	fb, ok := f.feedback[id]
	if !ok {
		return ErrNotFound
	}
	fb.Status = status
	return nil
}

func (f *fakeRepo) InsertResponse(ctx context.Context, resp *Response) error {
	if resp.ID == "" {
		resp.ID = "resp-1"
	}
	f.responses[resp.FeedbackID] = append(f.responses[resp.FeedbackID], *resp)
	return nil
}

func (f *fakeRepo) ListResponses(ctx context.Context, feedbackID string) ([]Response, error) {
	return f.responses[feedbackID], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func asUser(req *http.Request, u *auth.User) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), u))
}

var (
	submitter = &auth.User{ID: "u1", Role: auth.RoleStudent}
	student2  = &auth.User{ID: "u2", Role: auth.RoleStudent}
	faculty   = &auth.User{ID: "u3", Role: auth.RoleFaculty}
	admin     = &auth.User{ID: "u4", Role: auth.RoleAdmin}
)

func seededRepo(t *testing.T, anonymous bool) *fakeRepo {
	t.Helper()
	repo := newFakeRepo()
	require.NoError(t, repo.Insert(context.Background(), &Feedback{
		ID:          "fb-x",
		Title:       "Broken projector",
		Description: "Room 204 projector flickers",
		Anonymous:   anonymous,
		SubmittedBy: submitter.ID,
	}))
	return repo
}

func detailHandler(repo Repository) *DetailHandler {
	return &DetailHandler{
		Store:      repo,
		Logger:     discardLogger(),
		MutateGate: auth.Gate{OwnerScoped: true},
		StaffGate:  auth.Gate{Roles: []auth.Role{auth.RoleFaculty}},
	}
}

func TestRedact(t *testing.T) {
	anon := Feedback{Anonymous: true, SubmittedBy: submitter.ID}

	require.Empty(t, redact(anon, student2).SubmittedBy)
	require.Equal(t, submitter.ID, redact(anon, submitter).SubmittedBy)
	require.Equal(t, submitter.ID, redact(anon, faculty).SubmittedBy)
	require.Equal(t, submitter.ID, redact(anon, admin).SubmittedBy)

	named := Feedback{Anonymous: false, SubmittedBy: submitter.ID}
	require.Equal(t, submitter.ID, redact(named, student2).SubmittedBy)
}

func TestGetFeedback_AnonymousHidesSubmitter(t *testing.T) {
	repo := seededRepo(t, true)
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/feedback/fb-x", nil), student2)
	rec := httptest.NewRecorder()
	detailHandler(repo).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got Feedback
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Empty(t, got.SubmittedBy)
	require.True(t, got.Anonymous)
}

func TestListFeedback_StudentSeesOnlyOwn(t *testing.T) {
	repo := seededRepo(t, false)
	require.NoError(t, repo.Insert(context.Background(), &Feedback{
		ID:          "fb-y",
		Title:       "Cafeteria hours",
		Description: "Closes too early",
		SubmittedBy: student2.ID,
	}))
	h := &CollectionHandler{Store: repo, Logger: discardLogger()}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/feedback", nil), submitter)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []Feedback
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "fb-x", list[0].ID)

	// Faculty see everything.
	req = asUser(httptest.NewRequest(http.MethodGet, "/api/v1/feedback", nil), faculty)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
}

func TestUpdateFeedback_SubmitterOnly(t *testing.T) {
	body := func() io.Reader {
		b, _ := json.Marshal(map[string]string{"title": "Updated"})
		return bytes.NewReader(b)
	}
	tests := []struct {
		name     string
		user     *auth.User
		wantCode int
	}{
		{"other student denied", student2, http.StatusForbidden},
		{"submitter allowed", submitter, http.StatusOK},
		{"admin allowed", admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := seededRepo(t, false)
			req := asUser(httptest.NewRequest(http.MethodPut, "/api/v1/feedback/fb-x", body()), tt.user)
			rec := httptest.NewRecorder()
			detailHandler(repo).ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestRespond_StaffOnly(t *testing.T) {
	body := func() io.Reader {
		b, _ := json.Marshal(map[string]string{"message": "We are on it"})
		return bytes.NewReader(b)
	}

	t.Run("student denied even as submitter", func(t *testing.T) {
		repo := seededRepo(t, false)
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/feedback/fb-x/responses", body()), submitter)
		rec := httptest.NewRecorder()
		detailHandler(repo).ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("faculty responds", func(t *testing.T) {
		repo := seededRepo(t, false)
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/feedback/fb-x/responses", body()), faculty)
		rec := httptest.NewRecorder()
		detailHandler(repo).ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		list, err := repo.ListResponses(context.Background(), "fb-x")
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, faculty.ID, list[0].ResponderID)
	})

	t.Run("anyone reads responses", func(t *testing.T) {
		repo := seededRepo(t, false)
		req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/feedback/fb-x/responses", nil), student2)
		rec := httptest.NewRecorder()
		detailHandler(repo).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSetStatus_StaffOnly(t *testing.T) {
	body := func(s string) io.Reader {
		b, _ := json.Marshal(map[string]string{"status": s})
		return bytes.NewReader(b)
	}

	t.Run("student denied", func(t *testing.T) {
		repo := seededRepo(t, false)
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/feedback/fb-x/status", body("resolved")), submitter)
		rec := httptest.NewRecorder()
		detailHandler(repo).ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("faculty resolves", func(t *testing.T) {
		repo := seededRepo(t, false)
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/feedback/fb-x/status", body("resolved")), faculty)
		rec := httptest.NewRecorder()
		detailHandler(repo).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		fb, err := repo.Get(context.Background(), "fb-x")
		require.NoError(t, err)
		require.Equal(t, StatusResolved, fb.Status)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		repo := seededRepo(t, false)
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/feedback/fb-x/status", body("shelved")), faculty)
		rec := httptest.NewRecorder()
		detailHandler(repo).ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
