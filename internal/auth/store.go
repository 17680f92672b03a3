package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"campushub/internal/db"
)

// Store is the credential store: the single owner of identity records.
type Store interface {
	Create(ctx context.Context, p CreateParams) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, id string, p ProfileParams) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	List(ctx context.Context) ([]User, error)
	ListIDs(ctx context.Context, excludeID string) ([]string, error)
}

type CreateParams struct {
	Email      string
	Password   string
	Name       string
	Role       Role
	Department string
}

// ProfileParams carries the only fields a generic update may touch.
// Role and password changes never go through this path.
type ProfileParams struct {
	Name       string
	Department string
}

type PostgresStore struct {
	db   *sql.DB
	cost int
}

func NewStore(dbConn *sql.DB, bcryptCost int) *PostgresStore {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &PostgresStore{db: dbConn, cost: bcryptCost}
}

const userColumns = `id, email, name, password_hash, role, department, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	u := &User{}
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Department, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *PostgresStore) Create(ctx context.Context, p CreateParams) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" || p.Password == "" || p.Name == "" {
		return nil, fmt.Errorf("email, password and name are required")
	}
	if !p.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q", p.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.cost)
	if err != nil {
		return nil, err
	}
	const q = `
		INSERT INTO users (id, email, name, password_hash, role, department, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns
	row := s.db.QueryRowContext(ctx, q,
		uuid.NewString(), email, p.Name, string(hash), p.Role, p.Department, time.Now().UTC())
	u, err := scanUser(row)
	if err != nil {
		// Uniqueness is enforced by the email index, not a pre-check;
		// concurrent registrations lose here.
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return u, nil
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(s.db.QueryRowContext(ctx, q, strings.ToLower(strings.TrimSpace(email))))
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, p ProfileParams) (*User, error) {
	const q = `
		UPDATE users SET name = $1, department = $2 WHERE id = $3
		RETURNING ` + userColumns
	return scanUser(s.db.QueryRowContext(ctx, q, p.Name, p.Department, id))
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]User, error) {
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) ListIDs(ctx context.Context, excludeID string) ([]string, error) {
	const q = `SELECT id FROM users WHERE id != $1`
	rows, err := s.db.QueryContext(ctx, q, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) HashCost() int { return s.cost }

type usersFile struct {
	Users []struct {
		Email      string `yaml:"email"`
		Password   string `yaml:"password"`
		Name       string `yaml:"name"`
		Role       Role   `yaml:"role"`
		Department string `yaml:"department"`
	} `yaml:"users"`
}

// SeedFromFile registers the bootstrap accounts (the initial admin, typically)
// on startup. Existing emails are skipped so the file can stay in place.
func (s *PostgresStore) SeedFromFile(ctx context.Context, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var uf usersFile
	if err := yaml.Unmarshal(data, &uf); err != nil {
		return err
	}
	for _, u := range uf.Users {
		if u.Email == "" || u.Password == "" {
			continue
		}
		_, err := s.Create(ctx, CreateParams{
			Email:      u.Email,
			Password:   u.Password,
			Name:       u.Name,
			Role:       u.Role,
			Department: u.Department,
		})
		if errors.Is(err, ErrDuplicateEmail) {
			continue
		}
		if err != nil {
			return err
		}
		logger.Info("seeded user", "email", u.Email, "role", u.Role)
	}
	return nil
}
