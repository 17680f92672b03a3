package items

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("item not found")
	ErrClaimNotFound = errors.New("claim not found")
)

type Repository interface {
	Insert(ctx context.Context, item *Item) error
	List(ctx context.Context, f Filter) ([]Item, error)
	Get(ctx context.Context, id string) (*Item, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id string) error

	InsertClaim(ctx context.Context, c *Claim) error
	GetClaim(ctx context.Context, id string) (*Claim, error)
	ListClaims(ctx context.Context, viewerID string, all bool) ([]Claim, error)
	DecideClaim(ctx context.Context, c *Claim) error
}

type PostgresStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const itemColumns = `id, item_type, title, description, category, location, contact_info,
	date_lost_found, status, tags, reported_by, claimed_by, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = StatusActive
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	const q = `
		INSERT INTO items (id, item_type, title, description, category, location, contact_info,
			date_lost_found, status, tags, reported_by, claimed_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULL,$12,$13)
	`
	_, err := s.db.ExecContext(ctx, q,
		item.ID, item.Type, item.Title, item.Description, item.Category, item.Location,
		item.ContactInfo, item.DateLostFound, item.Status, pq.Array(item.Tags),
		item.ReportedBy, item.CreatedAt, item.UpdatedAt)
	return err
}

func scanItem(row interface{ Scan(...interface{}) error }) (*Item, error) {
	var it Item
	var tags pq.StringArray
	var claimedBy sql.NullString
	err := row.Scan(&it.ID, &it.Type, &it.Title, &it.Description, &it.Category, &it.Location,
		&it.ContactInfo, &it.DateLostFound, &it.Status, &tags, &it.ReportedBy, &claimedBy,
		&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	it.Tags = []string(tags)
	it.ClaimedBy = claimedBy.String
	return &it, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Item, error) {
	clauses := []string{"1=1"}
	args := []interface{}{}
	idx := 1
	if f.Type != "" {
		clauses = append(clauses, "item_type = $"+strconv.Itoa(idx))
		args = append(args, string(f.Type))
		idx++
	}
	if f.Status != "" {
		clauses = append(clauses, "status = $"+strconv.Itoa(idx))
		args = append(args, string(f.Status))
		idx++
	}
	if f.Category != "" {
		clauses = append(clauses, "category = $"+strconv.Itoa(idx))
		args = append(args, f.Category)
		idx++
	}
	if f.Reporter != "" {
		clauses = append(clauses, "reported_by = $"+strconv.Itoa(idx))
		args = append(args, f.Reporter)
		idx++
	}
	if f.Search != "" {
		clauses = append(clauses, "(title ILIKE $"+strconv.Itoa(idx)+
			" OR description ILIKE $"+strconv.Itoa(idx)+
			" OR location ILIKE $"+strconv.Itoa(idx)+")")
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := "SELECT " + itemColumns + " FROM items WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY created_at DESC LIMIT " + strconv.Itoa(limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *it)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	return scanItem(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) Update(ctx context.Context, item *Item) error {
	// reported_by is immutable after creation.
	const q = `
		UPDATE items SET item_type=$1, title=$2, description=$3, category=$4, location=$5,
			contact_info=$6, date_lost_found=$7, status=$8, tags=$9, claimed_by=NULLIF($10,''),
			updated_at=$11
		WHERE id = $12
	`
	item.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, q,
		item.Type, item.Title, item.Description, item.Category, item.Location,
		item.ContactInfo, item.DateLostFound, item.Status, pq.Array(item.Tags),
		item.ClaimedBy, item.UpdatedAt, item.ID)
	if err != nil {
		return err
	}
	return affectedOr(res, ErrNotFound)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affectedOr(res, ErrNotFound)
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

const claimColumns = `id, item_id, claimer_id, description, status, admin_notes, created_at, updated_at`

func (s *PostgresStore) InsertClaim(ctx context.Context, c *Claim) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Status = ClaimPending
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	const q = `
		INSERT INTO claims (id, item_id, claimer_id, description, status, admin_notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	_, err := s.db.ExecContext(ctx, q,
		c.ID, c.ItemID, c.ClaimerID, c.Description, c.Status, c.AdminNotes, c.CreatedAt, c.UpdatedAt)
	return err
}

func scanClaim(row interface{ Scan(...interface{}) error }) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.ItemID, &c.ClaimerID, &c.Description, &c.Status, &c.AdminNotes,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) GetClaim(ctx context.Context, id string) (*Claim, error) {
	const q = `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`
	return scanClaim(s.db.QueryRowContext(ctx, q, id))
}

// ListClaims returns everything when all is set (faculty/admin view);
// otherwise only claims the viewer made or claims on the viewer's items.
func (s *PostgresStore) ListClaims(ctx context.Context, viewerID string, all bool) ([]Claim, error) {
	q := `SELECT ` + claimColumns + ` FROM claims`
	args := []interface{}{}
	if !all {
		q += ` WHERE claimer_id = $1 OR item_id IN (SELECT id FROM items WHERE reported_by = $1)`
		args = append(args, viewerID)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// DecideClaim records an approve/reject decision; approving also marks the
// item claimed, in one transaction.
func (s *PostgresStore) DecideClaim(ctx context.Context, c *Claim) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	c.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE claims SET status=$1, admin_notes=$2, updated_at=$3 WHERE id=$4`,
		c.Status, c.AdminNotes, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if err := affectedOr(res, ErrClaimNotFound); err != nil {
		return err
	}
	if c.Status == ClaimApproved {
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET status=$1, claimed_by=$2, updated_at=$3 WHERE id=$4`,
			StatusClaimed, c.ClaimerID, c.UpdatedAt, c.ItemID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
