package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Oleguzik/ngo-automation/internal/domain/fingerprint"
	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
)

// SQLiteStorage provides SQLite database access for ledger records.
// It implements the Repository interface.
type SQLiteStorage struct {
	db *sql.DB
}

// Compile-time check that SQLiteStorage implements Repository
var _ Repository = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (or creates) the database at dbPath and runs
// all pending migrations.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStorage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// InsertTransaction appends a transaction record. There is no
// corresponding update or delete: stored transactions are immutable.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO transactions
	(id, date, amount, currency, raw_vendor, normalized_vendor, source, fingerprint, project_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		tx.ID.String(),
		fingerprint.CanonicalDate(tx.Date),
		fingerprint.CanonicalAmount(tx.Amount),
		tx.Currency,
		tx.RawVendor,
		tx.NormalizedVendor,
		string(tx.Source),
		tx.Fingerprint,
		tx.ProjectID,
		tx.CreatedAt.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("transaction %s: %w", tx.ID, ErrAlreadyExists)
	}
	return err
}

const transactionColumns = `id, date, amount, currency, raw_vendor, normalized_vendor, source, fingerprint, project_id, created_at`

// GetTransaction retrieves a transaction by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id.String())

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// GetByFingerprint returns all transactions stored under a
// fingerprint, backed by the fingerprint index.
func (s *SQLiteStorage) GetByFingerprint(ctx context.Context, fp string) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE fingerprint = ? ORDER BY id`, fp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListInWindow returns transactions dated within +/- days of center.
func (s *SQLiteStorage) ListInWindow(ctx context.Context, center time.Time, days int) ([]ledger.Transaction, error) {
	from := fingerprint.CanonicalDate(center.AddDate(0, 0, -days))
	to := fingerprint.CanonicalDate(center.AddDate(0, 0, days))

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE date >= ? AND date <= ? ORDER BY date, id`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListTransactions returns filtered, paginated transactions plus the
// total count.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filters TransactionFilters) ([]ledger.Transaction, int, error) {
	where := []string{"1=1"}
	var args []interface{}

	if filters.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(filters.Source))
	}
	if filters.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filters.ProjectID)
	}
	if !filters.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, fingerprint.CanonicalDate(filters.From))
	}
	if !filters.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, fingerprint.CanonicalDate(filters.To))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + whereClause +
		` ORDER BY date DESC, created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, filters.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// InsertRelationship records a duplicate relationship.
func (s *SQLiteStorage) InsertRelationship(ctx context.Context, rel *ledger.DuplicateRelationship) error {
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	if rel.Resolution == "" {
		rel.Resolution = ledger.ResolutionUnresolved
	}

	query := `
	INSERT INTO duplicate_relationships
	(id, original_id, candidate_id, kind, similarity_score, resolution, created_at, resolved_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err := s.db.ExecContext(ctx, query,
		rel.ID.String(),
		rel.OriginalID.String(),
		rel.CandidateID.String(),
		string(rel.Kind),
		rel.SimilarityScore,
		string(rel.Resolution),
		rel.CreatedAt.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("relationship %s/%s (%s): %w", rel.OriginalID, rel.CandidateID, rel.Kind, ErrAlreadyExists)
	}
	return err
}

const relationshipColumns = `id, original_id, candidate_id, kind, similarity_score, resolution, created_at, resolved_at`

// GetRelationship retrieves a relationship by id.
func (s *SQLiteStorage) GetRelationship(ctx context.Context, id uuid.UUID) (*ledger.DuplicateRelationship, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+relationshipColumns+` FROM duplicate_relationships WHERE id = ?`, id.String())

	rel, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// UpdateResolution applies a terminal resolution exactly once. The
// check-then-update runs in a transaction so concurrent resolvers
// cannot both win.
func (s *SQLiteStorage) UpdateResolution(ctx context.Context, id uuid.UUID, resolution ledger.Resolution) (*ledger.DuplicateRelationship, error) {
	if !resolution.Terminal() {
		return nil, fmt.Errorf("resolution %q is not a terminal state", resolution)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dbTx.Rollback() }()

	row := dbTx.QueryRowContext(ctx,
		`SELECT `+relationshipColumns+` FROM duplicate_relationships WHERE id = ?`, id.String())
	rel, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := rel.Resolve(resolution, now); err != nil {
		return nil, err
	}

	_, err = dbTx.ExecContext(ctx,
		`UPDATE duplicate_relationships SET resolution = ?, resolved_at = ? WHERE id = ?`,
		string(rel.Resolution), now.Format(time.RFC3339Nano), id.String())
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}
	return rel, nil
}

// ListRelationships returns relationships matching the filters.
func (s *SQLiteStorage) ListRelationships(ctx context.Context, filters RelationshipFilters) ([]ledger.DuplicateRelationship, error) {
	where := []string{"1=1"}
	var args []interface{}

	if filters.Resolution != "" {
		where = append(where, "resolution = ?")
		args = append(args, string(filters.Resolution))
	}
	if filters.TransactionID != uuid.Nil {
		where = append(where, "(original_id = ? OR candidate_id = ?)")
		args = append(args, filters.TransactionID.String(), filters.TransactionID.String())
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + relationshipColumns + ` FROM duplicate_relationships WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, filters.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.DuplicateRelationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rel)
	}
	return out, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (*ledger.Transaction, error) {
	var (
		tx        ledger.Transaction
		id        string
		date      string
		amount    string
		source    string
		createdAt string
	)
	err := row.Scan(&id, &date, &amount, &tx.Currency, &tx.RawVendor,
		&tx.NormalizedVendor, &source, &tx.Fingerprint, &tx.ProjectID, &createdAt)
	if err != nil {
		return nil, err
	}

	if tx.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("corrupt transaction id %q: %w", id, err)
	}
	if tx.Date, err = time.ParseInLocation("2006-01-02", date, time.UTC); err != nil {
		return nil, fmt.Errorf("corrupt transaction date %q: %w", date, err)
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("corrupt transaction amount %q: %w", amount, err)
	}
	if tx.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at %q: %w", createdAt, err)
	}
	tx.Source = ledger.Source(source)
	return &tx, nil
}

func collectTransactions(rows *sql.Rows) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func scanRelationship(row scanner) (*ledger.DuplicateRelationship, error) {
	var (
		rel        ledger.DuplicateRelationship
		id         string
		original   string
		candidate  string
		kind       string
		resolution string
		createdAt  string
		resolvedAt sql.NullString
	)
	err := row.Scan(&id, &original, &candidate, &kind, &rel.SimilarityScore,
		&resolution, &createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	if rel.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("corrupt relationship id %q: %w", id, err)
	}
	if rel.OriginalID, err = uuid.Parse(original); err != nil {
		return nil, err
	}
	if rel.CandidateID, err = uuid.Parse(candidate); err != nil {
		return nil, err
	}
	if rel.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at %q: %w", createdAt, err)
	}
	if resolvedAt.Valid {
		at, err := time.Parse(time.RFC3339Nano, resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt resolved_at %q: %w", resolvedAt.String, err)
		}
		rel.ResolvedAt = &at
	}
	rel.Kind = ledger.MatchKind(kind)
	rel.Resolution = ledger.Resolution(resolution)
	return &rel, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
