package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"vitrine/internal/config"
)

// ErrVersionConflict indicates a concurrent writer updated the record first.
var ErrVersionConflict = errors.New("record version conflict")

// Store manages record persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the record database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "records.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// InsertCandidate inserts a newly discovered product. Records whose external
// id is already known are skipped; the returned bool reports whether a row
// was actually created.
func (s *Store) InsertCandidate(ctx context.Context, product *Product) (bool, error) {
	if product == nil {
		return false, errors.New("product is nil")
	}
	if product.ExternalID == 0 {
		return false, errors.New("product external id is required")
	}
	if product.Name == "" {
		return false, errors.New("product name is required")
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	images, err := marshalStrings(product.Images)
	if err != nil {
		return false, err
	}
	rawAttrs, err := marshalStringMap(product.RawAttrs)
	if err != nil {
		return false, err
	}
	specs, err := product.Specs.marshal()
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO products (
            external_id, article, name, brand, description, price,
            images_json, raw_attrs_json, specs_json, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ExternalID,
		nullableString(product.Article),
		product.Name,
		nullableString(product.Brand),
		nullableString(product.Description),
		product.Price,
		nullableString(images),
		nullableString(rawAttrs),
		specs,
		StatusIdle,
		timestamp,
		timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	inserted, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if inserted != nil {
		*product = *inserted
	}
	return true, nil
}

// GetByID fetches a product record by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// GetByExternalID fetches a product record by the source storefront identifier.
func (s *Store) GetByExternalID(ctx context.Context, externalID int64) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE external_id = ?`, externalID)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by external id: %w", err)
	}
	return product, nil
}

// NextBatch returns up to limit non-terminal records eligible for processing,
// ordered by how few stages they have completed and then by recency.
func (s *Store) NextBatch(ctx context.Context, limit int) ([]*Product, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+productColumns+` FROM products
         WHERE status NOT IN (?, ?, ?)
           AND is_closed = 0
           AND (next_retry_at IS NULL OR next_retry_at <= ?)
         ORDER BY (ms_created + stock_added + kaspi_created), created_at DESC
         LIMIT ?`,
		StatusDone,
		StatusQuarantined,
		StatusProcessing,
		now,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// Update persists changes to an existing record. The write is guarded by the
// record's version: if another writer got there first, ErrVersionConflict is
// returned and the in-memory record is left untouched.
func (s *Store) Update(ctx context.Context, product *Product) error {
	if product == nil {
		return errors.New("product is nil")
	}

	images, err := marshalStrings(product.Images)
	if err != nil {
		return err
	}
	rawAttrs, err := marshalStringMap(product.RawAttrs)
	if err != nil {
		return err
	}
	specs, err := product.Specs.marshal()
	if err != nil {
		return err
	}
	updatedAt := time.Now().UTC()

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE products
         SET article = ?, name = ?, brand = ?, description = ?, price = ?,
             images_json = ?, raw_attrs_json = ?, specs_json = ?,
             ms_created = ?, stock_added = ?, kaspi_created = ?,
             status = ?, is_closed = ?, attempts = ?, next_retry_at = ?,
             version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		nullableString(product.Article),
		product.Name,
		nullableString(product.Brand),
		nullableString(product.Description),
		product.Price,
		nullableString(images),
		nullableString(rawAttrs),
		specs,
		boolToInt(product.MSCreated),
		boolToInt(product.StockAdded),
		boolToInt(product.KaspiCreated),
		product.Status,
		boolToInt(product.IsClosed),
		product.Attempts,
		nullableTime(product.NextRetryAt),
		updatedAt.Format(time.RFC3339Nano),
		product.ID,
		product.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	product.Version++
	product.UpdatedAt = updatedAt
	return nil
}

// List returns records filtered by status set (or all records when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Product, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + productColumns + ` FROM products`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// ResetStuckProcessing returns records left in processing (crash mid-stage)
// back to error so the next poll retries them.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE products
         SET status = ?, version = version + 1, updated_at = ?
         WHERE status = ?`,
		StatusError,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck products: %w", err)
	}
	return res.RowsAffected()
}

// ReleaseQuarantined moves quarantined records back to idle with a fresh
// attempt budget. With no ids, every quarantined record is released.
func (s *Store) ReleaseQuarantined(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE products
             SET status = ?, attempts = 0, next_retry_at = NULL,
                 version = version + 1, updated_at = ?
             WHERE status = ?`,
			StatusIdle,
			timestamp,
			StatusQuarantined,
		)
		if err != nil {
			return 0, fmt.Errorf("release quarantined: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusIdle, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE products
        SET status = ?, attempts = 0, next_retry_at = NULL,
            version = version + 1, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusQuarantined) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("release selected records: %w", err)
	}
	return res.RowsAffected()
}

// PendingModeration returns published records whose moderation status has not
// reached a terminal value yet; housekeeping reconciles them.
func (s *Store) PendingModeration(ctx context.Context) ([]*Product, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+productColumns+` FROM products
         WHERE kaspi_created = 1 AND is_closed = 0
           AND specs_json LIKE '%"upload_id"%'
           AND specs_json NOT LIKE '%"moderation_status":"approved"%'
           AND specs_json NOT LIKE '%"moderation_status":"rejected"%'
         ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending moderation: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// Published returns every record with a submitted listing that is still
// open; the feed writer rebuilds the artifact from these.
func (s *Store) Published(ctx context.Context) ([]*Product, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+productColumns+` FROM products
         WHERE kaspi_created = 1 AND is_closed = 0
         ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query published records: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM products GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("record stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates record state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusIdle:
			health.Idle += count
		case StatusProcessing:
			health.Processing += count
		case StatusError:
			health.Error += count
		case StatusDone:
			health.Done += count
		case StatusQuarantined:
			health.Quarantined += count
		}
	}
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM products WHERE is_closed = 1`)
	if err := row.Scan(&health.Closed); err != nil {
		return health, fmt.Errorf("count closed records: %w", err)
	}
	return health, nil
}

// Remove deletes a record by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearDone removes only completed records.
func (s *Store) ClearDone(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE status = ?`, StatusDone)
	if err != nil {
		return 0, fmt.Errorf("clear done: %w", err)
	}
	return res.RowsAffected()
}

const productColumns = "id, external_id, article, name, brand, description, price, images_json, raw_attrs_json, specs_json, ms_created, stock_added, kaspi_created, status, is_closed, attempts, next_retry_at, version, created_at, updated_at"

func collectProducts(rows *sql.Rows) ([]*Product, error) {
	var products []*Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func scanProduct(scanner interface{ Scan(dest ...any) error }) (*Product, error) {
	var (
		id           int64
		externalID   int64
		article      sql.NullString
		name         string
		brand        sql.NullString
		description  sql.NullString
		price        float64
		imagesRaw    sql.NullString
		rawAttrsRaw  sql.NullString
		specsRaw     sql.NullString
		msCreated    sql.NullInt64
		stockAdded   sql.NullInt64
		kaspiCreated sql.NullInt64
		statusStr    string
		isClosed     sql.NullInt64
		attempts     sql.NullInt64
		nextRetryRaw sql.NullString
		version      int64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&externalID,
		&article,
		&name,
		&brand,
		&description,
		&price,
		&imagesRaw,
		&rawAttrsRaw,
		&specsRaw,
		&msCreated,
		&stockAdded,
		&kaspiCreated,
		&statusStr,
		&isClosed,
		&attempts,
		&nextRetryRaw,
		&version,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	product := &Product{
		ID:           id,
		ExternalID:   externalID,
		Article:      article.String,
		Name:         name,
		Brand:        brand.String,
		Description:  description.String,
		Price:        price,
		Images:       stringsFromJSON(imagesRaw.String),
		RawAttrs:     stringMapFromJSON(rawAttrsRaw.String),
		Specs:        specsFromJSON(specsRaw.String),
		MSCreated:    msCreated.Int64 != 0,
		StockAdded:   stockAdded.Int64 != 0,
		KaspiCreated: kaspiCreated.Int64 != 0,
		Status:       Status(statusStr),
		IsClosed:     isClosed.Int64 != 0,
		Attempts:     int(attempts.Int64),
		Version:      version,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		product.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		product.UpdatedAt = updated
	}
	if nextRetryRaw.Valid {
		if retry, err := parseTimeString(nextRetryRaw.String); err == nil {
			product.NextRetryAt = &retry
		}
	}
	return product, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
