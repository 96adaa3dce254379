package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
)

// PostgresStorage implements Repository on a pgx connection pool. It
// is the multi-instance alternative to SQLiteStorage; the schema is
// equivalent.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresStorage)(nil)

// NewPostgresStorage connects to the database behind dsn, registers
// the decimal codec and ensures the schema exists.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStorage{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStorage) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			date DATE NOT NULL,
			amount NUMERIC(14,2) NOT NULL,
			currency TEXT NOT NULL,
			raw_vendor TEXT NOT NULL,
			normalized_vendor TEXT NOT NULL,
			source TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			project_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_fingerprint ON transactions(fingerprint)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_project ON transactions(project_id)`,
		`CREATE TABLE IF NOT EXISTS duplicate_relationships (
			id UUID PRIMARY KEY,
			original_id UUID NOT NULL REFERENCES transactions(id),
			candidate_id UUID NOT NULL REFERENCES transactions(id),
			kind TEXT NOT NULL,
			similarity_score DOUBLE PRECISION NOT NULL,
			resolution TEXT NOT NULL DEFAULT 'unresolved',
			created_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ,
			UNIQUE(original_id, candidate_id, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_resolution ON duplicate_relationships(resolution)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InsertTransaction appends a transaction record.
func (s *PostgresStorage) InsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions
		(id, date, amount, currency, raw_vendor, normalized_vendor, source, fingerprint, project_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.ID, tx.Date, tx.Amount, tx.Currency, tx.RawVendor, tx.NormalizedVendor,
		string(tx.Source), tx.Fingerprint, tx.ProjectID, tx.CreatedAt,
	)
	if isPgUniqueViolation(err) {
		return fmt.Errorf("transaction %s: %w", tx.ID, ErrAlreadyExists)
	}
	return err
}

const pgTransactionColumns = `id, date, amount, currency, raw_vendor, normalized_vendor, source, fingerprint, project_id, created_at`

// GetTransaction retrieves a transaction by id.
func (s *PostgresStorage) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgTransactionColumns+` FROM transactions WHERE id = $1`, id)

	tx, err := scanPgTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// GetByFingerprint returns all transactions stored under a fingerprint.
func (s *PostgresStorage) GetByFingerprint(ctx context.Context, fp string) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgTransactionColumns+` FROM transactions WHERE fingerprint = $1 ORDER BY id`, fp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPgTransactions(rows)
}

// ListInWindow returns transactions dated within +/- days of center.
func (s *PostgresStorage) ListInWindow(ctx context.Context, center time.Time, days int) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgTransactionColumns+` FROM transactions WHERE date >= $1 AND date <= $2 ORDER BY date, id`,
		center.AddDate(0, 0, -days), center.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPgTransactions(rows)
}

// ListTransactions returns filtered, paginated transactions plus the
// total count.
func (s *PostgresStorage) ListTransactions(ctx context.Context, filters TransactionFilters) ([]ledger.Transaction, int, error) {
	where := []string{"TRUE"}
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Source != "" {
		where = append(where, "source = "+arg(string(filters.Source)))
	}
	if filters.ProjectID != "" {
		where = append(where, "project_id = "+arg(filters.ProjectID))
	}
	if !filters.From.IsZero() {
		where = append(where, "date >= "+arg(filters.From))
	}
	if !filters.To.IsZero() {
		where = append(where, "date <= "+arg(filters.To))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + pgTransactionColumns + ` FROM transactions WHERE ` + whereClause +
		` ORDER BY date DESC, created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(filters.Offset)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	txs, err := collectPgTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// InsertRelationship records a duplicate relationship.
func (s *PostgresStorage) InsertRelationship(ctx context.Context, rel *ledger.DuplicateRelationship) error {
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	if rel.Resolution == "" {
		rel.Resolution = ledger.ResolutionUnresolved
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO duplicate_relationships
		(id, original_id, candidate_id, kind, similarity_score, resolution, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)`,
		rel.ID, rel.OriginalID, rel.CandidateID, string(rel.Kind),
		rel.SimilarityScore, string(rel.Resolution), rel.CreatedAt,
	)
	if isPgUniqueViolation(err) {
		return fmt.Errorf("relationship %s/%s (%s): %w", rel.OriginalID, rel.CandidateID, rel.Kind, ErrAlreadyExists)
	}
	return err
}

const pgRelationshipColumns = `id, original_id, candidate_id, kind, similarity_score, resolution, created_at, resolved_at`

// GetRelationship retrieves a relationship by id.
func (s *PostgresStorage) GetRelationship(ctx context.Context, id uuid.UUID) (*ledger.DuplicateRelationship, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRelationshipColumns+` FROM duplicate_relationships WHERE id = $1`, id)

	rel, err := scanPgRelationship(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// UpdateResolution applies a terminal resolution exactly once, using
// SELECT ... FOR UPDATE so concurrent resolvers serialize.
func (s *PostgresStorage) UpdateResolution(ctx context.Context, id uuid.UUID, resolution ledger.Resolution) (*ledger.DuplicateRelationship, error) {
	if !resolution.Terminal() {
		return nil, fmt.Errorf("resolution %q is not a terminal state", resolution)
	}

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dbTx.Rollback(ctx) }()

	row := dbTx.QueryRow(ctx,
		`SELECT `+pgRelationshipColumns+` FROM duplicate_relationships WHERE id = $1 FOR UPDATE`, id)
	rel, err := scanPgRelationship(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := rel.Resolve(resolution, now); err != nil {
		return nil, err
	}

	if _, err := dbTx.Exec(ctx,
		`UPDATE duplicate_relationships SET resolution = $1, resolved_at = $2 WHERE id = $3`,
		string(rel.Resolution), now, id); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, err
	}
	return rel, nil
}

// ListRelationships returns relationships matching the filters.
func (s *PostgresStorage) ListRelationships(ctx context.Context, filters RelationshipFilters) ([]ledger.DuplicateRelationship, error) {
	where := []string{"TRUE"}
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Resolution != "" {
		where = append(where, "resolution = "+arg(string(filters.Resolution)))
	}
	if filters.TransactionID != uuid.Nil {
		ph := arg(filters.TransactionID)
		where = append(where, fmt.Sprintf("(original_id = %s OR candidate_id = %s)", ph, ph))
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + pgRelationshipColumns + ` FROM duplicate_relationships WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(filters.Offset)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.DuplicateRelationship
	for rows.Next() {
		rel, err := scanPgRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rel)
	}
	return out, rows.Err()
}

func scanPgTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var (
		tx     ledger.Transaction
		source string
		amount decimal.Decimal
	)
	err := row.Scan(&tx.ID, &tx.Date, &amount, &tx.Currency, &tx.RawVendor,
		&tx.NormalizedVendor, &source, &tx.Fingerprint, &tx.ProjectID, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	tx.Amount = amount
	tx.Source = ledger.Source(source)
	tx.Date = tx.Date.UTC()
	return &tx, nil
}

func collectPgTransactions(rows pgx.Rows) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for rows.Next() {
		tx, err := scanPgTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func scanPgRelationship(row pgx.Row) (*ledger.DuplicateRelationship, error) {
	var (
		rel        ledger.DuplicateRelationship
		kind       string
		resolution string
	)
	err := row.Scan(&rel.ID, &rel.OriginalID, &rel.CandidateID, &kind,
		&rel.SimilarityScore, &resolution, &rel.CreatedAt, &rel.ResolvedAt)
	if err != nil {
		return nil, err
	}
	rel.Kind = ledger.MatchKind(kind)
	rel.Resolution = ledger.Resolution(resolution)
	return &rel, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
