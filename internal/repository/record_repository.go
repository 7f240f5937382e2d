package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/domain"
)

var (
	ErrRecordNotFound      = errors.New("record not found")
	ErrRecordAlreadyExists = errors.New("record with this id already exists")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// RecordQuery selects one page of a resource. PageSize 0 returns every match.
type RecordQuery struct {
	Search    string
	Status    string
	SortBy    string
	SortOrder SortOrder
	Page      int
	PageSize  int
}

// RecordRepository stores every record kind in one JSONB table keyed by (kind, id)
type RecordRepository interface {
	Create(ctx context.Context, kind domain.Kind, record domain.Record) error
	Update(ctx context.Context, kind domain.Kind, record domain.Record) error
	Delete(ctx context.Context, kind domain.Kind, id string) error
	FindByID(ctx context.Context, kind domain.Kind, id string) (domain.Record, error)
	List(ctx context.Context, kind domain.Kind, q RecordQuery) ([]domain.Record, int, error)
}

type recordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a new instance of RecordRepository
func NewRecordRepository(db *sql.DB) RecordRepository {
	return &recordRepository{db: db}
}

// Create inserts a record; created_at and updated_at are taken from the record
func (r *recordRepository) Create(ctx context.Context, kind domain.Kind, record domain.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	query := `
		INSERT INTO records (id, kind, status, search_text, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	meta := record.Meta()
	_, err = r.db.ExecContext(
		ctx,
		query,
		meta.ID,
		kind.Resource,
		record.RecordStatus(),
		domain.SearchText(record),
		payload,
		meta.CreatedAt,
		meta.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrRecordAlreadyExists
		}
		return fmt.Errorf("failed to create record: %w", err)
	}

	return nil
}

// Update replaces the stored payload. There is no version check; the last write wins.
func (r *recordRepository) Update(ctx context.Context, kind domain.Kind, record domain.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	query := `
		UPDATE records
		SET status = $3, search_text = $4, payload = $5
		WHERE kind = $1 AND id = $2
		RETURNING updated_at
	`

	meta := record.Meta()
	err = r.db.QueryRowContext(
		ctx,
		query,
		kind.Resource,
		meta.ID,
		record.RecordStatus(),
		domain.SearchText(record),
		payload,
	).Scan(&meta.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("failed to update record: %w", err)
	}

	return nil
}

// Delete removes a record; sub-items stored inside its payload go with it
func (r *recordRepository) Delete(ctx context.Context, kind domain.Kind, id string) error {
	query := `DELETE FROM records WHERE kind = $1 AND id = $2`

	result, err := r.db.ExecContext(ctx, query, kind.Resource, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (r *recordRepository) FindByID(ctx context.Context, kind domain.Kind, id string) (domain.Record, error) {
	query := `
		SELECT payload, created_at, updated_at
		FROM records
		WHERE kind = $1 AND id = $2
	`

	record, err := scanRecord(kind, r.db.QueryRowContext(ctx, query, kind.Resource, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find record by ID: %w", err)
	}

	return record, nil
}

// List filters by status and search text, then sorts and paginates.
// Only sort keys the kind declares reach the ORDER BY clause.
func (r *recordRepository) List(ctx context.Context, kind domain.Kind, q RecordQuery) ([]domain.Record, int, error) {
	where := []string{"kind = $1"}
	args := []interface{}{kind.Resource}
	argIndex := 2

	if q.Status != "" && q.Status != "all" {
		where = append(where, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, q.Status)
		argIndex++
	}

	if search := strings.TrimSpace(q.Search); search != "" {
		// Use ILIKE for case-insensitive search
		where = append(where, fmt.Sprintf(`search_text ILIKE $%d ESCAPE '\'`, argIndex))
		args = append(args, "%"+escapeLike(search)+"%")
		argIndex++
	}

	whereClause := "WHERE " + strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM records %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT payload, created_at, updated_at
		FROM records
		%s
		ORDER BY %s
	`, whereClause, orderBy(kind, q.SortBy, q.SortOrder))

	if q.PageSize > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, q.PageSize, (page-1)*q.PageSize)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		record, err := scanRecord(kind, rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating records: %w", err)
	}

	return records, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(kind domain.Kind, row rowScanner) (domain.Record, error) {
	var (
		payload              []byte
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	record := kind.New()
	if err := json.Unmarshal(payload, record); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", kind.Resource, err)
	}

	// columns are authoritative for timestamps
	meta := record.Meta()
	meta.CreatedAt, meta.UpdatedAt = createdAt, updatedAt
	return record, nil
}

// orderBy builds a whitelisted ORDER BY clause. Unknown keys fall back to created_at.
func orderBy(kind domain.Kind, sortBy string, order SortOrder) string {
	if order != SortOrderAsc && order != SortOrderDesc {
		order = SortOrderDesc
	}

	var expr string
	switch t, ok := kind.SortKeys[sortBy]; {
	case sortBy == "id":
		expr = "id"
	case !ok, sortBy == "created_at":
		expr = "created_at"
	case sortBy == "updated_at":
		expr = "updated_at"
	case t == domain.SortNumeric:
		expr = fmt.Sprintf("(payload->>'%s')::numeric", sortBy)
	case t == domain.SortTime:
		expr = fmt.Sprintf("(payload->>'%s')::timestamptz", sortBy)
	default:
		expr = fmt.Sprintf("lower(payload->>'%s')", sortBy)
	}

	// missing values sort before present ones in ascending order
	nulls := "NULLS FIRST"
	if order == SortOrderDesc {
		nulls = "NULLS LAST"
	}
	return fmt.Sprintf("%s %s %s, id ASC", expr, order, nulls)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
