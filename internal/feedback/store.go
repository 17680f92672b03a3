package feedback

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("feedback not found")

type Repository interface {
	Insert(ctx context.Context, f *Feedback) error
	List(ctx context.Context, flt Filter) ([]Feedback, error)
	Get(ctx context.Context, id string) (*Feedback, error)
	Update(ctx context.Context, f *Feedback) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status Status) error

	InsertResponse(ctx context.Context, resp *Response) error
	ListResponses(ctx context.Context, feedbackID string) ([]Response, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const columns = `id, title, description, category, priority, status, anonymous,
	submitted_by, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, f *Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Priority == "" {
		f.Priority = PriorityMedium
	}
	if f.Status == "" {
		f.Status = StatusPending
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	const q = `
		INSERT INTO feedback (id, title, description, category, priority, status, anonymous,
			submitted_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	_, err := s.db.ExecContext(ctx, q,
		f.ID, f.Title, f.Description, f.Category, f.Priority, f.Status, f.Anonymous,
		f.SubmittedBy, f.CreatedAt, f.UpdatedAt)
	return err
}

func scanFeedback(row interface{ Scan(...interface{}) error }) (*Feedback, error) {
	var f Feedback
	err := row.Scan(&f.ID, &f.Title, &f.Description, &f.Category, &f.Priority, &f.Status,
		&f.Anonymous, &f.SubmittedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *PostgresStore) List(ctx context.Context, flt Filter) ([]Feedback, error) {
	clauses := []string{"1=1"}
	args := []interface{}{}
	idx := 1
	if flt.Category != "" {
		clauses = append(clauses, "category = $"+strconv.Itoa(idx))
		args = append(args, flt.Category)
		idx++
	}
	if flt.Status != "" {
		clauses = append(clauses, "status = $"+strconv.Itoa(idx))
		args = append(args, string(flt.Status))
		idx++
	}
	if flt.Priority != "" {
		clauses = append(clauses, "priority = $"+strconv.Itoa(idx))
		args = append(args, string(flt.Priority))
		idx++
	}
	if flt.Submitter != "" {
		clauses = append(clauses, "submitted_by = $"+strconv.Itoa(idx))
		args = append(args, flt.Submitter)
		idx++
	}
	limit := flt.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := "SELECT " + columns + " FROM feedback WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY created_at DESC LIMIT " + strconv.Itoa(limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Feedback{}
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *f)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Feedback, error) {
	const q = `SELECT ` + columns + ` FROM feedback WHERE id = $1`
	return scanFeedback(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) Update(ctx context.Context, f *Feedback) error {
	// submitted_by is immutable after creation.
	const q = `
		UPDATE feedback SET title=$1, description=$2, category=$3, priority=$4, anonymous=$5,
			updated_at=$6
		WHERE id = $7
	`
	f.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, q,
		f.Title, f.Description, f.Category, f.Priority, f.Anonymous, f.UpdatedAt, f.ID)
	if err != nil {
		return err
	}
	return rowsOrNotFound(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsOrNotFound(res)
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE feedback SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return rowsOrNotFound(res)
}

func rowsOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertResponse(ctx context.Context, resp *Response) error {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	resp.CreatedAt = time.Now().UTC()
	const q = `
		INSERT INTO feedback_responses (id, feedback_id, responder_id, message, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`
	_, err := s.db.ExecContext(ctx, q,
		resp.ID, resp.FeedbackID, resp.ResponderID, resp.Message, resp.CreatedAt)
	return err
}

func (s *PostgresStore) ListResponses(ctx context.Context, feedbackID string) ([]Response, error) {
	const q = `
		SELECT id, feedback_id, responder_id, message, created_at
		FROM feedback_responses WHERE feedback_id = $1 ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, q, feedbackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Response{}
	for rows.Next() {
		var resp Response
		if err := rows.Scan(&resp.ID, &resp.FeedbackID, &resp.ResponderID, &resp.Message, &resp.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, resp)
	}
	return result, rows.Err()
}
