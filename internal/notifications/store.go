package notifications

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("notification not found")

type Repository interface {
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
	Get(ctx context.Context, id string) (*Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	Broadcast(ctx context.Context, excludeUserID string, typ Type, title, message, link string) error
}

type PostgresStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const columns = `id, user_id, notification_type, title, message, link, read, created_at`

func (s *PostgresStore) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + columns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		q += ` AND read = FALSE`
	}
	q += ` ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Notification, error) {
	const q = `SELECT ` + columns + ` FROM notifications WHERE id = $1`
	var n Notification
	err := s.db.QueryRowContext(ctx, q, id).
		Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1`, userID)
	return err
}

// Broadcast fans a notification out to every user except the actor, in one
// insert so a large campus does not turn into a row-per-roundtrip loop.
func (s *PostgresStore) Broadcast(ctx context.Context, excludeUserID string, typ Type, title, message, link string) error {
	const q = `
		INSERT INTO notifications (id, user_id, notification_type, title, message, link, read, created_at)
		SELECT gen_random_uuid(), id, $1, $2, $3, $4, FALSE, NOW()
		FROM users WHERE id != $5
	`
	_, err := s.db.ExecContext(ctx, q, typ, title, message, link, excludeUserID)
	return err
}
