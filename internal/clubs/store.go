package clubs

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"campushub/internal/db"
)

var (
	ErrNotFound      = errors.New("club not found")
	ErrDuplicateName = errors.New("club name already taken")
	ErrAlreadyMember = errors.New("already a member")
	ErrNotMember     = errors.New("not a member")
)

type Repository interface {
	Insert(ctx context.Context, c *Club) error
	List(ctx context.Context, f Filter) ([]Club, error)
	Get(ctx context.Context, id string) (*Club, error)
	Update(ctx context.Context, c *Club) error
	Delete(ctx context.Context, id string) error

	Join(ctx context.Context, clubID, userID string) error
	Leave(ctx context.Context, clubID, userID string) error
	ListMembers(ctx context.Context, clubID string) ([]Membership, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewStore(dbConn *sql.DB) *PostgresStore {
	return &PostgresStore{db: dbConn}
}

const columns = `id, name, description, category, advisor, created_by, active, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, c *Club) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Active = true
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	const q = `
		INSERT INTO clubs (id, name, description, category, advisor, created_by, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	_, err := s.db.ExecContext(ctx, q,
		c.ID, c.Name, c.Description, c.Category, c.Advisor, c.CreatedBy, c.Active,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

func scanClub(row interface{ Scan(...interface{}) error }) (*Club, error) {
	var c Club
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Category, &c.Advisor, &c.CreatedBy,
		&c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Club, error) {
	clauses := []string{"active = TRUE"}
	args := []interface{}{}
	idx := 1
	if f.Category != "" {
		clauses = append(clauses, "category = $"+strconv.Itoa(idx))
		args = append(args, f.Category)
		idx++
	}
	if f.Search != "" {
		clauses = append(clauses, "(name ILIKE $"+strconv.Itoa(idx)+
			" OR description ILIKE $"+strconv.Itoa(idx)+")")
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := "SELECT " + columns + " FROM clubs WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY name LIMIT " + strconv.Itoa(limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Club{}
	for rows.Next() {
		c, err := scanClub(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Club, error) {
	const q = `SELECT ` + columns + ` FROM clubs WHERE id = $1`
	return scanClub(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) Update(ctx context.Context, c *Club) error {
	// created_by is immutable after creation.
	const q = `
		UPDATE clubs SET name=$1, description=$2, category=$3, advisor=$4, active=$5, updated_at=$6
		WHERE id = $7
	`
	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, q,
		c.Name, c.Description, c.Category, c.Advisor, c.Active, c.UpdatedAt, c.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateName
		}
		return err
	}
	return rowsOrNotFound(res, ErrNotFound)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clubs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsOrNotFound(res, ErrNotFound)
}

// Join relies on the (club_id, user_id) primary key: rejoining after leaving
// reactivates, joining twice conflicts.
func (s *PostgresStore) Join(ctx context.Context, clubID, userID string) error {
	const q = `
		INSERT INTO club_memberships (club_id, user_id, member_role, status, joined_at)
		VALUES ($1, $2, 'member', 'active', $3)
		ON CONFLICT (club_id, user_id) DO UPDATE
			SET status = 'active', joined_at = EXCLUDED.joined_at
			WHERE club_memberships.status = 'inactive'
	`
	res, err := s.db.ExecContext(ctx, q, clubID, userID, time.Now().UTC())
	if err != nil {
		return err
	}
	return rowsOrNotFound(res, ErrAlreadyMember)
}

func (s *PostgresStore) Leave(ctx context.Context, clubID, userID string) error {
	const q = `
		UPDATE club_memberships SET status = 'inactive'
		WHERE club_id = $1 AND user_id = $2 AND status = 'active'
	`
	res, err := s.db.ExecContext(ctx, q, clubID, userID)
	if err != nil {
		return err
	}
	return rowsOrNotFound(res, ErrNotMember)
}

func (s *PostgresStore) ListMembers(ctx context.Context, clubID string) ([]Membership, error) {
	const q = `
		SELECT club_id, user_id, member_role, status, joined_at
		FROM club_memberships WHERE club_id = $1 AND status = 'active' ORDER BY joined_at
	`
	rows, err := s.db.QueryContext(ctx, q, clubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Membership{}
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ClubID, &m.UserID, &m.Role, &m.Status, &m.JoinedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func rowsOrNotFound(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}
