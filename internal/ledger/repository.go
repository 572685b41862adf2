// Package ledger stores receipts for delivered registrations in SQLite, so an
// operator can later see which devices were registered from this machine.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onehud/registrar/internal/registration"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Receipt is one delivered registration.
type Receipt struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	DeviceID  string    `json:"device_id"`
	Chip      string    `json:"chip,omitempty"`
	Port      string    `json:"port,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which receipts to return.
type Filter struct {
	DeviceID string // optional: exact MAC as read from the device
	Email    string // optional: exact address
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains a page of receipts.
type ListResult struct {
	Receipts []Receipt `json:"receipts"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// Repository defines the receipt operations.
type Repository interface {
	Create(ctx context.Context, r *Receipt) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository keeps receipts in the registrations table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a receipt repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a receipt. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Receipt) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO registrations (id, email, device_id, chip, port, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Email, rec.DeviceID,
		nullableString(rec.Chip), nullableString(rec.Port),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting receipt: %w", err)
	}
	return nil
}

// Record implements registration.Recorder. Only successful attempts become
// receipts; failures are ignored.
func (r *SQLiteRepository) Record(ctx context.Context, a registration.Attempt) error {
	if a.Outcome != registration.OutcomeSucceeded {
		return nil
	}
	return r.Create(ctx, &Receipt{
		ID:        a.ID,
		Email:     a.Email,
		DeviceID:  a.DeviceID,
		Chip:      a.Chip,
		Port:      a.Port,
		CreatedAt: a.StartedAt.Add(a.Duration),
	})
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns receipts matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Email != "" {
		conditions = append(conditions, "email = ?")
		args = append(args, filter.Email)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM registrations " + where //nolint:gosec // placeholders only
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting receipts: %w", err)
	}

	query := "SELECT id, email, device_id, chip, port, created_at FROM registrations " + //nolint:gosec // placeholders only
		where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying receipts: %w", err)
	}
	defer rows.Close()

	receipts := []Receipt{}
	for rows.Next() {
		var rec Receipt
		var chip, port sql.NullString
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Email, &rec.DeviceID, &chip, &port, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}
		rec.Chip = chip.String
		rec.Port = port.String

		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing receipt timestamp %q: %w", createdAt, err)
		}
		rec.CreatedAt = t
		receipts = append(receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating receipts: %w", err)
	}

	return &ListResult{
		Receipts: receipts,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}
