package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/draftlens/backend/internal/domain"
	"github.com/draftlens/backend/internal/infrastructure/storage/sqlite/migrations"
)

const dbFileName = "variants.db"

// Store persists finalized variant sets in SQLite
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore opens (or creates) the variant database under dataDir
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath, now: time.Now}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// migrate applies pending NNN_name.up.sql files in order
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}
	return nil
}

// ReplaceVariants atomically swaps the variant set of a product
func (s *Store) ReplaceVariants(ctx context.Context, productID string, variants []domain.VariantRecord) error {
	if strings.TrimSpace(productID) == "" {
		return domain.ErrInvalidRequest
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM product_variants WHERE product_id = ?", productID); err != nil {
		return fmt.Errorf("deleting variants: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO product_variants (
			product_id, position, sku, size, color, composite_size,
			price, purchase_price, stock_quantity, option_values, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for i, v := range variants {
		options, err := json.Marshal(v.OptionValues)
		if err != nil {
			return fmt.Errorf("marshalling option values: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			productID, i, v.SKU, v.Size, v.Color, v.CompositeSize,
			nullFloat(v.Price), nullFloat(v.PurchasePrice), v.StockQuantity,
			string(options), now,
		); err != nil {
			return fmt.Errorf("inserting variant %s: %w", v.SKU, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing variants: %w", err)
	}
	return nil
}

// ListVariants returns the stored variants of a product in insertion order
func (s *Store) ListVariants(ctx context.Context, productID string) ([]domain.VariantRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, size, color, composite_size, price, purchase_price, stock_quantity, option_values
		FROM product_variants
		WHERE product_id = ?
		ORDER BY position
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("querying variants: %w", err)
	}
	defer rows.Close()

	variants := []domain.VariantRecord{}
	for rows.Next() {
		var (
			v             domain.VariantRecord
			price         sql.NullFloat64
			purchasePrice sql.NullFloat64
			options       string
		)
		if err := rows.Scan(&v.SKU, &v.Size, &v.Color, &v.CompositeSize, &price, &purchasePrice, &v.StockQuantity, &options); err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		v.Price = floatPtr(price)
		v.PurchasePrice = floatPtr(purchasePrice)
		if err := json.Unmarshal([]byte(options), &v.OptionValues); err != nil {
			return nil, fmt.Errorf("unmarshalling option values: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}
