package events

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("event not found")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotRegistered     = errors.New("not registered")
)

type Repository interface {
	Insert(ctx context.Context, e *Event) error
	List(ctx context.Context, f Filter) ([]Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error

	Register(ctx context.Context, eventID, userID string) error
	CancelRegistration(ctx context.Context, eventID, userID string) error
	CountRegistered(ctx context.Context, eventID string) (int, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, title, description, category, venue, start_at, end_at,
	max_participants, registration_deadline, status, organizer_id, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = StatusUpcoming
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	const q = `
		INSERT INTO events (id, title, description, category, venue, start_at, end_at,
			max_participants, registration_deadline, status, organizer_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`
	_, err := s.db.ExecContext(ctx, q,
		e.ID, e.Title, e.Description, e.Category, e.Venue, e.StartAt, e.EndAt,
		e.MaxParticipants, e.RegistrationDeadline, e.Status, e.OrganizerID,
		e.CreatedAt, e.UpdatedAt)
	return err
}

func scanEvent(row interface{ Scan(...interface{}) error }) (*Event, error) {
	var e Event
	var deadline sql.NullTime
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Category, &e.Venue, &e.StartAt, &e.EndAt,
		&e.MaxParticipants, &deadline, &e.Status, &e.OrganizerID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if deadline.Valid {
		t := deadline.Time
		e.RegistrationDeadline = &t
	}
	return &e, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Event, error) {
	clauses := []string{"1=1"}
	args := []interface{}{}
	idx := 1
	if f.Category != "" {
		clauses = append(clauses, "category = $"+strconv.Itoa(idx))
		args = append(args, f.Category)
		idx++
	}
	if f.Status != "" {
		clauses = append(clauses, "status = $"+strconv.Itoa(idx))
		args = append(args, string(f.Status))
		idx++
	}
	if f.Search != "" {
		clauses = append(clauses, "(title ILIKE $"+strconv.Itoa(idx)+
			" OR description ILIKE $"+strconv.Itoa(idx)+
			" OR venue ILIKE $"+strconv.Itoa(idx)+")")
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := "SELECT " + eventColumns + " FROM events WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY start_at LIMIT " + strconv.Itoa(limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) Update(ctx context.Context, e *Event) error {
	// organizer_id is immutable after creation.
	const q = `
		UPDATE events SET title=$1, description=$2, category=$3, venue=$4, start_at=$5,
			end_at=$6, max_participants=$7, registration_deadline=$8, status=$9, updated_at=$10
		WHERE id = $11
	`
	e.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, q,
		e.Title, e.Description, e.Category, e.Venue, e.StartAt, e.EndAt,
		e.MaxParticipants, e.RegistrationDeadline, e.Status, e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	return affectedOr(res, ErrNotFound)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affectedOr(res, ErrNotFound)
}

// Register relies on the (event_id, user_id) primary key: a fresh insert
// wins, a cancelled registration is revived, and a live one conflicts.
func (s *PostgresStore) Register(ctx context.Context, eventID, userID string) error {
	const q = `
		INSERT INTO event_registrations (event_id, user_id, status, registered_at)
		VALUES ($1, $2, 'registered', $3)
		ON CONFLICT (event_id, user_id) DO UPDATE
			SET status = 'registered', registered_at = EXCLUDED.registered_at
			WHERE event_registrations.status = 'cancelled'
	`
	res, err := s.db.ExecContext(ctx, q, eventID, userID, time.Now().UTC())
	if err != nil {
		return err
	}
	return affectedOr(res, ErrAlreadyRegistered)
}

func (s *PostgresStore) CancelRegistration(ctx context.Context, eventID, userID string) error {
	const q = `
		UPDATE event_registrations SET status = 'cancelled'
		WHERE event_id = $1 AND user_id = $2 AND status = 'registered'
	`
	res, err := s.db.ExecContext(ctx, q, eventID, userID)
	if err != nil {
		return err
	}
	return affectedOr(res, ErrNotRegistered)
}

func (s *PostgresStore) CountRegistered(ctx context.Context, eventID string) (int, error) {
	const q = `SELECT COUNT(*) FROM event_registrations WHERE event_id = $1 AND status = 'registered'`
	var n int
	err := s.db.QueryRowContext(ctx, q, eventID).Scan(&n)
	return n, err
}

func affectedOr(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}
