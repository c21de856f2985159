package units

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists units in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// ensures the schema exists. Use ":memory:" for a throwaway database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS units (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		city TEXT NOT NULL,
		country TEXT NOT NULL,
		country_code TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		latitude REAL,
		longitude REAL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_units_active ON units(active);
	`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create inserts u and sets its id.
func (s *SQLiteStore) Create(ctx context.Context, u *Unit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	var lat, lng sql.NullFloat64
	if u.Location != nil {
		lat = sql.NullFloat64{Float64: u.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: u.Location.Longitude, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO units (name, type, city, country, country_code, active, latitude, longitude)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Type, u.City, u.Country, u.CountryCode, u.Active, lat, lng)
	if err != nil {
		return fmt.Errorf("inserting unit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading unit id: %w", err)
	}
	u.ID = id
	return nil
}

const selectUnits = `SELECT id, name, type, city, country, country_code, active, latitude, longitude FROM units`

// Get returns the unit with id, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Unit, error) {
	row := s.db.QueryRowContext(ctx, selectUnits+` WHERE id = ?`, id)
	u, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying unit %d: %w", id, err)
	}
	return &u, nil
}

// List returns every unit ordered by id.
func (s *SQLiteStore) List(ctx context.Context) ([]Unit, error) {
	return s.query(ctx, selectUnits+` ORDER BY id`)
}

// Active returns the active units ordered by id.
func (s *SQLiteStore) Active(ctx context.Context) ([]Unit, error) {
	return s.query(ctx, selectUnits+` WHERE active = 1 ORDER BY id`)
}

// SetActive toggles a unit's active flag.
func (s *SQLiteStore) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE units SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("updating unit %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating unit %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) query(ctx context.Context, q string) ([]Unit, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(sc scanner) (Unit, error) {
	var (
		u        Unit
		lat, lng sql.NullFloat64
	)
	if err := sc.Scan(&u.ID, &u.Name, &u.Type, &u.City, &u.Country, &u.CountryCode, &u.Active, &lat, &lng); err != nil {
		return Unit{}, err
	}
	if lat.Valid && lng.Valid {
		u.Location = &Location{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return u, nil
}
