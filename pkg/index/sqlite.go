// ABOUTME: SQLite-backed index connector for stored items
// ABOUTME: Items are searchable by field path or across their whole contents

package index

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/nainya/itemstore/pkg/item"
	"github.com/nainya/itemstore/pkg/naming"
)

// ErrExists is returned when an item is already indexed and overwrite is disabled
var ErrExists = errors.New("index: item already indexed")

const schema = `
CREATE TABLE IF NOT EXISTS items (
	identifier      TEXT PRIMARY KEY,
	cache_name      TEXT NOT NULL,
	comparator_list TEXT NOT NULL,
	comparator_key  TEXT NOT NULL,
	search_contents TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	converted_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS item_fields (
	identifier TEXT NOT NULL,
	field_path TEXT NOT NULL,
	value      TEXT NOT NULL,
	PRIMARY KEY (identifier, field_path)
);
CREATE INDEX IF NOT EXISTS idx_item_fields_path ON item_fields(field_path, value);
CREATE INDEX IF NOT EXISTS idx_items_comparator_key ON items(comparator_key);
`

// Hit is one search result
type Hit struct {
	Identifier    string
	CacheName     string
	ComparatorKey string
	CreatedAt     int64
}

// Report summarises the index
type Report struct {
	Items  int
	Fields int
}

// SQLiteConnector indexes qualified bags in a SQLite database
type SQLiteConnector struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a connector
type Option func(*SQLiteConnector)

// WithLogger sets the connector logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *SQLiteConnector) {
		c.logger = l
	}
}

// WithClock overrides the conversion time source
func WithClock(now func() time.Time) Option {
	return func(c *SQLiteConnector) {
		c.now = now
	}
}

// NewSQLiteConnector wraps an open database; call Migrate before use
func NewSQLiteConnector(db *sql.DB, opts ...Option) *SQLiteConnector {
	c := &SQLiteConnector{db: db, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open opens or creates the index database at path and applies the schema
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteConnector, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open index %s", path)
	}
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "apply %s", pragma)
		}
	}

	c := NewSQLiteConnector(db, opts...)
	if err := c.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Migrate creates the index tables if they do not exist
func (c *SQLiteConnector) Migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "create index schema")
	}
	return nil
}

// Close releases the database
func (c *SQLiteConnector) Close() error {
	return c.db.Close()
}

// Submit indexes a qualified bag under its identifier
func (c *SQLiteConnector) Submit(ctx context.Context, b *item.Bag, overwrite bool) (err error) {
	comps, err := componentsOf(b)
	if err != nil {
		return err
	}
	doc, err := Convert(b, c.now())
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin index transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE identifier = ?`, comps.Identifier).Scan(&existing); err != nil {
		return errors.Wrap(err, "check indexed item")
	}
	if existing > 0 {
		if !overwrite {
			return errors.Wrapf(ErrExists, "identifier %s", comps.Identifier)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM item_fields WHERE identifier = ?`, comps.Identifier); err != nil {
			return errors.Wrap(err, "clear indexed fields")
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO items (identifier, cache_name, comparator_list, comparator_key, search_contents, created_at, converted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		comps.Identifier, comps.CacheName, doc.ComparatorList, doc.ComparatorKey,
		doc.SearchContents, doc.CreatedAt, doc.ConvertedAt); err != nil {
		return errors.Wrap(err, "insert indexed item")
	}

	for name, value := range doc.Fields {
		field, err := naming.ParseFieldPath(name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO item_fields (identifier, field_path, value) VALUES (?, ?, ?)`,
			comps.Identifier, field, value); err != nil {
			return errors.Wrap(err, "insert indexed field")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit index transaction")
	}

	c.logger.Debug().
		Str("identifier", comps.Identifier).
		Int("fields", len(doc.Fields)).
		Msg("Item indexed")
	return nil
}

// Delete removes an item from the index and reports whether it was present
func (c *SQLiteConnector) Delete(ctx context.Context, identifier string) (bool, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin index transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_fields WHERE identifier = ?`, identifier); err != nil {
		return false, errors.Wrap(err, "delete indexed fields")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE identifier = ?`, identifier)
	if err != nil {
		return false, errors.Wrap(err, "delete indexed item")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "delete indexed item")
	}
	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit index transaction")
	}
	return n > 0, nil
}

// Search finds items whose field (a field path) contains term. An empty
// field searches the aggregated contents. limit <= 0 means 100.
func (c *SQLiteConnector) Search(ctx context.Context, field, term string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 100
	}
	pattern := "%" + likeEscaper.Replace(term) + "%"

	var rows *sql.Rows
	var err error
	if field == "" {
		rows, err = c.db.QueryContext(ctx,
			`SELECT identifier, cache_name, comparator_key, created_at FROM items
			 WHERE search_contents LIKE ? ESCAPE '\' ORDER BY identifier LIMIT ?`, pattern, limit)
	} else {
		rows, err = c.db.QueryContext(ctx,
			`SELECT i.identifier, i.cache_name, i.comparator_key, i.created_at FROM items i
			 JOIN item_fields f ON f.identifier = i.identifier
			 WHERE f.field_path = ? AND f.value LIKE ? ESCAPE '\' ORDER BY i.identifier LIMIT ?`, field, pattern, limit)
	}
	if err != nil {
		return nil, errors.Wrap(err, "search index")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Identifier, &h.CacheName, &h.ComparatorKey, &h.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan search hit")
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "search index")
	}
	return hits, nil
}

// likeEscaper makes LIKE wildcards in a search term match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindByComparatorKey returns the identifiers of items sharing key
func (c *SQLiteConnector) FindByComparatorKey(ctx context.Context, key string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT identifier FROM items WHERE comparator_key = ? ORDER BY identifier`, key)
	if err != nil {
		return nil, errors.Wrap(err, "query comparator key")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan identifier")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Report counts indexed items and fields
func (c *SQLiteConnector) Report(ctx context.Context) (Report, error) {
	var r Report
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&r.Items); err != nil {
		return Report{}, errors.Wrap(err, "count indexed items")
	}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM item_fields`).Scan(&r.Fields); err != nil {
		return Report{}, errors.Wrap(err, "count indexed fields")
	}
	return r, nil
}

func componentsOf(b *item.Bag) (naming.Components, error) {
	names := b.Names()
	if len(names) == 0 {
		return naming.Components{}, errors.Wrap(item.ErrNameFormat, "bag has no attributes")
	}
	return naming.Parse(names[0])
}
