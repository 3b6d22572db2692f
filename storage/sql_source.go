package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"flat-stats/models"
	"flat-stats/utils"
)

// Dialects understood by SQLSource.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// SQLSource reads listing observations from the flat price tables of a
// PostgreSQL or SQLite database.
type SQLSource struct {
	db      *sql.DB
	dialect string
	logger  *utils.Logger
}

// OpenPostgresSource connects to PostgreSQL, retrying the ping with
// exponential back-off while the database comes up.
func OpenPostgresSource(ctx context.Context, dsn string, retry *utils.RetryConfig, logger *utils.Logger) (*SQLSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := retry.Do(ctx, "postgres ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return NewSQLSource(db, DialectPostgres, logger), nil
}

// OpenSQLiteSource opens (or creates) the SQLite database at path.
func OpenSQLiteSource(path string, logger *utils.Logger) (*SQLSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// one connection keeps ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)
	return NewSQLSource(db, DialectSQLite, logger), nil
}

// NewSQLSource wraps an open database handle.
func NewSQLSource(db *sql.DB, dialect string, logger *utils.Logger) *SQLSource {
	return &SQLSource{db: db, dialect: dialect, logger: logger}
}

// Close closes the database handle.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// placeholder returns the n-th (1-based) bind parameter of the dialect.
func (s *SQLSource) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s *SQLSource) placeholders(from, count int) string {
	out := make([]string, count)
	for i := range out {
		out[i] = s.placeholder(from + i)
	}
	return strings.Join(out, ",")
}

// Migrate creates the flat price tables if they do not exist.
func (s *SQLSource) Migrate(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == DialectPostgres {
		serial = "SERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS flat_room_count_types (
			id    ` + serial + `,
			title TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS rb_list (
			id    ` + serial + `,
			title TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS around_rb_list (
			around_id INTEGER NOT NULL,
			rb_id     INTEGER NOT NULL,
			PRIMARY KEY (around_id, rb_id)
		)`,
		`CREATE TABLE IF NOT EXISTS flat_prices (
			id                ` + serial + `,
			id_custome        TEXT          NOT NULL,
			rooms_count_id    INTEGER       NOT NULL,
			rb_id             INTEGER       NOT NULL,
			total_area        NUMERIC(10,2) NOT NULL DEFAULT 0,
			price             NUMERIC(14,2) NOT NULL DEFAULT 0,
			discount_price    NUMERIC(14,2),
			price_actual_date DATE          NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flat_prices_date ON flat_prices(price_actual_date)`,
		`CREATE INDEX IF NOT EXISTS idx_flat_prices_rb   ON flat_prices(rb_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_flat_prices_observation
			ON flat_prices(id_custome, rb_id, price_actual_date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: migrate: %w", s.dialect, err)
		}
	}
	return nil
}

func (s *SQLSource) dateExpr(col string) string {
	if s.dialect == DialectPostgres {
		return "to_char(" + col + ", 'YYYY-MM-DD')"
	}
	return "substr(" + col + ", 1, 10)"
}

// Fetch returns every observation of the complexes around q.ScopeIDs dated
// within [q.From, q.To], ordered by date.
func (s *SQLSource) Fetch(ctx context.Context, q Query) ([]*models.RawListing, error) {
	if len(q.ScopeIDs) == 0 {
		return nil, nil
	}

	dateCol := s.dateExpr("fp.price_actual_date")
	args := []interface{}{q.From.Format(models.DateLayout), q.To.Format(models.DateLayout)}
	for _, id := range q.ScopeIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT
			fp.id_custome,
			frct.title,
			CAST(fp.total_area AS TEXT),
			CAST(fp.price AS TEXT),
			CAST(COALESCE(fp.discount_price, 0) AS TEXT),
			%s,
			rl.title
		FROM flat_prices fp
		INNER JOIN flat_room_count_types frct ON frct.id = fp.rooms_count_id
		INNER JOIN rb_list rl ON rl.id = fp.rb_id
		WHERE %s BETWEEN %s AND %s
		AND fp.rb_id IN (SELECT rb_id FROM around_rb_list WHERE around_id IN (%s))
		ORDER BY fp.price_actual_date, fp.id
	`, dateCol, dateCol, s.placeholder(1), s.placeholder(2), s.placeholders(3, len(q.ScopeIDs)))

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch: %w", s.dialect, err)
	}
	defer rows.Close()

	var out []*models.RawListing
	for rows.Next() {
		l := &models.RawListing{}
		if err := rows.Scan(&l.ID, &l.RoomType, &l.TotalArea, &l.Price, &l.DiscountPrice,
			&l.ObservationDate, &l.ComplexTitle); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.dialect, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: fetch: %w", s.dialect, err)
	}

	s.logger.Debug("[%s] Fetched %d rows for scopes %v in %v", s.dialect, len(out), q.ScopeIDs, time.Since(start))
	return out, nil
}

// Import stores cleaned listings as observations of the given scope,
// creating the room type and complex lookups as needed. Observations already
// stored for the same flat, complex and day are kept as they are.
func (s *SQLSource) Import(ctx context.Context, scopeID string, listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	around, err := strconv.Atoi(scopeID)
	if err != nil {
		return fmt.Errorf("%s: import: scope id %q: %w", s.dialect, scopeID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: import: %w", s.dialect, err)
	}
	defer func() { _ = tx.Rollback() }()

	rooms := map[string]int64{}
	complexes := map[string]int64{}
	for _, l := range listings {
		if _, ok := rooms[l.RoomType]; !ok {
			if rooms[l.RoomType], err = s.lookupID(ctx, tx, "flat_room_count_types", l.RoomType); err != nil {
				return err
			}
		}
		if _, ok := complexes[l.ComplexTitle]; !ok {
			id, err := s.lookupID(ctx, tx, "rb_list", l.ComplexTitle)
			if err != nil {
				return err
			}
			complexes[l.ComplexTitle] = id
			link := fmt.Sprintf("INSERT INTO around_rb_list (around_id, rb_id) VALUES (%s, %s) ON CONFLICT DO NOTHING",
				s.placeholder(1), s.placeholder(2))
			if _, err := tx.ExecContext(ctx, link, around, id); err != nil {
				return fmt.Errorf("%s: import: link complex: %w", s.dialect, err)
			}
		}
	}

	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := s.insertBatch(ctx, tx, listings[i:end], rooms, complexes); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: import: commit: %w", s.dialect, err)
	}
	s.logger.Info("[%s] Imported %d listings into scope %s", s.dialect, len(listings), scopeID)
	return nil
}

func (s *SQLSource) lookupID(ctx context.Context, tx *sql.Tx, table, title string) (int64, error) {
	insert := fmt.Sprintf("INSERT INTO %s (title) VALUES (%s) ON CONFLICT (title) DO NOTHING", table, s.placeholder(1))
	if _, err := tx.ExecContext(ctx, insert, title); err != nil {
		return 0, fmt.Errorf("%s: import: %s: %w", s.dialect, table, err)
	}
	var id int64
	query := fmt.Sprintf("SELECT id FROM %s WHERE title = %s", table, s.placeholder(1))
	if err := tx.QueryRowContext(ctx, query, title).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: import: %s: %w", s.dialect, table, err)
	}
	return id, nil
}

func (s *SQLSource) insertBatch(ctx context.Context, tx *sql.Tx, batch []*models.Listing, rooms, complexes map[string]int64) error {
	const cols = 6
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, l := range batch {
		valueStrings = append(valueStrings, "("+s.placeholders(idx*cols+1, cols)+")")
		valueArgs = append(valueArgs,
			l.ID, rooms[l.RoomType], complexes[l.ComplexTitle], l.TotalArea, l.Price,
			l.ObservationDate.Format(models.DateLayout))
	}

	query := fmt.Sprintf(`
		INSERT INTO flat_prices (id_custome, rooms_count_id, rb_id, total_area, price, price_actual_date)
		VALUES %s
		ON CONFLICT DO NOTHING
	`, strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("%s: insert batch: %w", s.dialect, err)
	}
	return nil
}
