// Package storage is the local product cache, a single-file sqlite database.
// Frequently queried nutrients get dedicated columns; the long tail of
// optional nutrients rides along as a JSON blob.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/foodscope/foodscope/pkg/product"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS products (
  id              TEXT PRIMARY KEY,
  source          TEXT NOT NULL,
  barcode         TEXT,
  name            TEXT NOT NULL,
  brand           TEXT,
  serving_size    REAL NOT NULL DEFAULT 0,
  serving_unit    TEXT,
  nutri_grade     TEXT NOT NULL CHECK (nutri_grade IN ('A','B','C','D')),
  upstream_grade  TEXT,
  image_url       TEXT,
  verified        INTEGER NOT NULL CHECK (verified IN (0,1)),
  ecoscore        TEXT,
  nova_group      INTEGER NOT NULL DEFAULT 0,
  ingredients     TEXT,
  calories        REAL,
  protein         REAL,
  carbohydrates   REAL,
  fat             REAL,
  fiber           REAL,
  sugars          REAL,
  saturated_fat   REAL,
  sodium          REAL,
  extra_nutrients TEXT,
  created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_products_barcode ON products(barcode) WHERE barcode IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);
CREATE INDEX IF NOT EXISTS idx_products_source ON products(source);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// sourceOf derives the provenance label from the id prefix.
func sourceOf(id string) string {
	if i := strings.IndexByte(id, ':'); i > 0 {
		return id[:i]
	}
	return "manual"
}

const productColumns = `id, source, barcode, name, brand, serving_size, serving_unit,
  nutri_grade, upstream_grade, image_url, verified, ecoscore, nova_group, ingredients,
  calories, protein, carbohydrates, fat, fiber, sugars, saturated_fat, sodium, extra_nutrients`

// FindByBarcode returns the cached product for a normalized barcode, or
// (nil, nil) on a miss.
func (d *DB) FindByBarcode(ctx context.Context, code string) (*product.Data, error) {
	row := d.sql.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE barcode = ?", code)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertProduct inserts or replaces a product. Records with a barcode collide
// on barcode so a re-resolve refreshes the row regardless of which provider
// produced it; barcode-less records collide on id.
func (d *DB) UpsertProduct(ctx context.Context, p *product.Data) error {
	args, err := productArgs(p)
	if err != nil {
		return err
	}

	conflict := "ON CONFLICT(id)"
	if p.Barcode != "" {
		// The barcode index is partial, the conflict target must repeat
		// its WHERE clause.
		conflict = "ON CONFLICT(barcode) WHERE barcode IS NOT NULL"
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO products (`+productColumns+`)
  VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
  `+conflict+` DO UPDATE SET
    id = excluded.id,
    source = excluded.source, name = excluded.name, brand = excluded.brand,
    serving_size = excluded.serving_size, serving_unit = excluded.serving_unit,
    nutri_grade = excluded.nutri_grade, upstream_grade = excluded.upstream_grade,
    image_url = excluded.image_url, verified = excluded.verified,
    ecoscore = excluded.ecoscore, nova_group = excluded.nova_group,
    ingredients = excluded.ingredients,
    calories = excluded.calories, protein = excluded.protein,
    carbohydrates = excluded.carbohydrates, fat = excluded.fat,
    fiber = excluded.fiber, sugars = excluded.sugars,
    saturated_fat = excluded.saturated_fat, sodium = excluded.sodium,
    extra_nutrients = excluded.extra_nutrients,
    updated_at = CURRENT_TIMESTAMP`, args...)
	return err
}

// SearchByName matches cached products by substring on name or brand.
func (d *DB) SearchByName(ctx context.Context, query string, limit int) ([]product.Data, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE name LIKE ? OR brand LIKE ? ORDER BY name LIMIT ?",
		pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListRecent returns the most recently updated products.
func (d *DB) ListRecent(ctx context.Context, limit int) ([]product.Data, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products ORDER BY updated_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

type SourceStats struct {
	Source        string
	ProductCount  int
	VerifiedCount int
}

func (d *DB) GetStats(ctx context.Context) ([]SourceStats, error) {
	query := `
		SELECT
			source,
			COUNT(*),
			SUM(verified)
		FROM
			products
		GROUP BY
			source
		ORDER BY
			source;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []SourceStats
	for rows.Next() {
		var s SourceStats
		if err := rows.Scan(&s.Source, &s.ProductCount, &s.VerifiedCount); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// fixedNutrients maps the dedicated columns onto the record; everything else
// goes through extra_nutrients.
func splitNutrients(n product.NutritionalInfo) (fixed [8]*float64, extraJSON interface{}, err error) {
	fixed = [8]*float64{n.Calories, n.Protein, n.Carbohydrates, n.Fat, n.Fiber, n.Sugars, n.SaturatedFat, n.Sodium}

	extra := n
	extra.Calories, extra.Protein, extra.Carbohydrates, extra.Fat = nil, nil, nil, nil
	extra.Fiber, extra.Sugars, extra.SaturatedFat, extra.Sodium = nil, nil, nil, nil

	blob, err := json.Marshal(extra)
	if err != nil {
		return fixed, nil, err
	}
	if string(blob) == "{}" {
		return fixed, nil, nil
	}
	return fixed, string(blob), nil
}

func productArgs(p *product.Data) ([]interface{}, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("product has no id")
	}
	fixed, extra, err := splitNutrients(p.NutritionalInfo)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		p.ID, sourceOf(p.ID), nullIfEmpty(p.Barcode), p.Name, nullIfEmpty(p.Brand),
		p.Serving.Size, nullIfEmpty(p.Serving.Unit),
		string(p.NutriGrade), nullIfEmpty(p.UpstreamGrade), nullIfEmpty(p.ImageURL),
		boolToInt(p.Verified), nullIfEmpty(p.EcoScore), p.NovaGroup, nullIfEmpty(p.Ingredients),
		nullFloat(fixed[0]), nullFloat(fixed[1]), nullFloat(fixed[2]), nullFloat(fixed[3]),
		nullFloat(fixed[4]), nullFloat(fixed[5]), nullFloat(fixed[6]), nullFloat(fixed[7]),
		extra,
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*product.Data, error) {
	var (
		p                                      product.Data
		source                                 string
		barcode, brand, servingUnit            sql.NullString
		grade                                  string
		upstreamGrade, imageURL                sql.NullString
		verified                               int
		ecoscore, ingredients, extraBlob       sql.NullString
		calories, protein, carbohydrates, fat  sql.NullFloat64
		fiber, sugars, saturatedFat, sodium    sql.NullFloat64
	)
	err := row.Scan(&p.ID, &source, &barcode, &p.Name, &brand,
		&p.Serving.Size, &servingUnit,
		&grade, &upstreamGrade, &imageURL,
		&verified, &ecoscore, &p.NovaGroup, &ingredients,
		&calories, &protein, &carbohydrates, &fat,
		&fiber, &sugars, &saturatedFat, &sodium, &extraBlob)
	if err != nil {
		return nil, err
	}

	if extraBlob.Valid {
		if err := json.Unmarshal([]byte(extraBlob.String), &p.NutritionalInfo); err != nil {
			return nil, fmt.Errorf("corrupt extra_nutrients for %s: %w", p.ID, err)
		}
	}
	p.Calories = fromNullFloat(calories)
	p.Protein = fromNullFloat(protein)
	p.Carbohydrates = fromNullFloat(carbohydrates)
	p.Fat = fromNullFloat(fat)
	p.Fiber = fromNullFloat(fiber)
	p.Sugars = fromNullFloat(sugars)
	p.SaturatedFat = fromNullFloat(saturatedFat)
	p.Sodium = fromNullFloat(sodium)

	p.Barcode = barcode.String
	p.Brand = brand.String
	p.Serving.Unit = servingUnit.String
	p.NutriGrade = product.Grade(grade)
	p.UpstreamGrade = upstreamGrade.String
	p.ImageURL = imageURL.String
	p.Verified = verified == 1
	p.EcoScore = ecoscore.String
	p.Ingredients = ingredients.String
	// Derived, not stored: recompute so cached reads carry the same flag
	// as fresh resolutions.
	p.MissingCritical = p.NutritionalInfo.MissingCritical()
	return &p, nil
}

func collect(rows *sql.Rows) ([]product.Data, error) {
	var out []product.Data
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
