package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS years (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS zones (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	year_id    TEXT NOT NULL REFERENCES years(id),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subzones (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	zone_id    TEXT NOT NULL REFERENCES zones(id),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS activities (
	id             TEXT PRIMARY KEY,
	label          TEXT NOT NULL,
	start_date     INTEGER NOT NULL,
	end_date       INTEGER NOT NULL,
	year_id        TEXT NOT NULL,
	zone_id        TEXT NOT NULL,
	subzone_id     TEXT NOT NULL,
	observations   TEXT NOT NULL DEFAULT '',
	items_total    INTEGER NOT NULL DEFAULT 0,
	items_returned INTEGER NOT NULL DEFAULT 0,
	is_complete    INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	activity_id    TEXT NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
	service_id     TEXT NOT NULL,
	id             TEXT NOT NULL,
	name           TEXT NOT NULL,
	qty            INTEGER NOT NULL,
	sortie_checked INTEGER NOT NULL,
	sortie_at      INTEGER,
	retour_checked INTEGER NOT NULL,
	retour_at      INTEGER,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL,
	PRIMARY KEY (activity_id, service_id, id)
);

CREATE INDEX IF NOT EXISTS idx_activities_start ON activities(start_date DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_zones_year ON zones(year_id);
CREATE INDEX IF NOT EXISTS idx_subzones_zone ON subzones(zone_id);
`

// SQLiteRepository stores activities and items in a local SQLite file.
// Timestamps are unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at path.
// ":memory:" gives a private in-memory database.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64).UTC()
	return &t
}

func (r *SQLiteRepository) CreateActivity(ctx context.Context, a *Activity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activities (id, label, start_date, end_date, year_id, zone_id, subzone_id,
			observations, items_total, items_returned, is_complete, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Label, toMillis(a.StartDate), toMillis(a.EndDate), a.YearID, a.ZoneID, a.SubzoneID,
		a.Observations, a.ItemsTotal, a.ItemsReturned, a.IsComplete, toMillis(a.CreatedAt), toMillis(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

const activityColumns = `id, label, start_date, end_date, year_id, zone_id, subzone_id, observations,
	items_total, items_returned, is_complete, created_at, updated_at`

func scanActivity(row rowScanner) (*Activity, error) {
	var (
		a                            Activity
		start, end, created, updated int64
	)
	if err := row.Scan(&a.ID, &a.Label, &start, &end, &a.YearID, &a.ZoneID, &a.SubzoneID, &a.Observations,
		&a.ItemsTotal, &a.ItemsReturned, &a.IsComplete, &created, &updated); err != nil {
		return nil, err
	}
	a.StartDate = fromMillis(start)
	a.EndDate = fromMillis(end)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return &a, nil
}

func (r *SQLiteRepository) GetActivity(ctx context.Context, id string) (*Activity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListActivities(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities ORDER BY start_date DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := []Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateCounts(ctx context.Context, id string, c Counts, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE activities SET items_total = ?, items_returned = ?, is_complete = ?, updated_at = ?
		WHERE id = ?`, c.Total, c.Returned, c.Complete, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("update counts: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const itemColumns = `service_id, id, name, qty, sortie_checked, sortie_at, retour_checked, retour_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		it               Item
		sortie, retour   sql.NullInt64
		created, updated int64
	)
	if err := row.Scan(&it.ServiceID, &it.ID, &it.Name, &it.Qty, &it.SortieChecked, &sortie,
		&it.RetourChecked, &retour, &created, &updated); err != nil {
		return nil, err
	}
	it.SortieAt = timePtr(sortie)
	it.RetourAt = timePtr(retour)
	it.CreatedAt = fromMillis(created)
	it.UpdatedAt = fromMillis(updated)
	return &it, nil
}

func (r *SQLiteRepository) ListItems(ctx context.Context, activityID string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE activity_id = ? ORDER BY service_id, id`, activityID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) GetItem(ctx context.Context, activityID, serviceID, itemID string) (*Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE activity_id = ? AND service_id = ? AND id = ?`,
		activityID, serviceID, itemID)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

func (r *SQLiteRepository) PutItem(ctx context.Context, activityID string, item *Item) error {
	if err := r.exists(ctx, "activities", activityID); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (activity_id, `+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (activity_id, service_id, id) DO UPDATE SET
			name = excluded.name,
			qty = excluded.qty,
			sortie_checked = excluded.sortie_checked,
			sortie_at = excluded.sortie_at,
			retour_checked = excluded.retour_checked,
			retour_at = excluded.retour_at,
			updated_at = excluded.updated_at`,
		activityID, item.ServiceID, item.ID, item.Name, item.Qty, item.SortieChecked, nullMillis(item.SortieAt),
		item.RetourChecked, nullMillis(item.RetourAt), toMillis(item.CreatedAt), toMillis(item.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteItem(ctx context.Context, activityID, serviceID, itemID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE activity_id = ? AND service_id = ? AND id = ?`, activityID, serviceID, itemID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) exists(ctx context.Context, table, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	return nil
}

func (r *SQLiteRepository) CreateYear(ctx context.Context, y *Year) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO years (id, label, created_at) VALUES (?, ?, ?)`,
		y.ID, y.Label, toMillis(y.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert year: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetYear(ctx context.Context, id string) (*Year, error) {
	var (
		y       Year
		created int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, label, created_at FROM years WHERE id = ?`, id).
		Scan(&y.ID, &y.Label, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get year: %w", err)
	}
	y.CreatedAt = fromMillis(created)
	return &y, nil
}

func (r *SQLiteRepository) ListYears(ctx context.Context) ([]Year, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, label, created_at FROM years ORDER BY label DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list years: %w", err)
	}
	defer rows.Close()

	out := []Year{}
	for rows.Next() {
		var (
			y       Year
			created int64
		)
		if err := rows.Scan(&y.ID, &y.Label, &created); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		y.CreatedAt = fromMillis(created)
		out = append(out, y)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateZone(ctx context.Context, z *Zone) error {
	if err := r.exists(ctx, "years", z.YearID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO zones (id, name, year_id, created_at) VALUES (?, ?, ?, ?)`,
		z.ID, z.Name, z.YearID, toMillis(z.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert zone: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetZone(ctx context.Context, id string) (*Zone, error) {
	var (
		z       Zone
		created int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, name, year_id, created_at FROM zones WHERE id = ?`, id).
		Scan(&z.ID, &z.Name, &z.YearID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get zone: %w", err)
	}
	z.CreatedAt = fromMillis(created)
	return &z, nil
}

func (r *SQLiteRepository) ListZones(ctx context.Context, yearID string) ([]Zone, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, year_id, created_at FROM zones
		WHERE ? = '' OR year_id = ? ORDER BY name, id`, yearID, yearID)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()

	out := []Zone{}
	for rows.Next() {
		var (
			z       Zone
			created int64
		)
		if err := rows.Scan(&z.ID, &z.Name, &z.YearID, &created); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		z.CreatedAt = fromMillis(created)
		out = append(out, z)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateSubzone(ctx context.Context, sz *Subzone) error {
	if err := r.exists(ctx, "zones", sz.ZoneID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO subzones (id, name, zone_id, created_at) VALUES (?, ?, ?, ?)`,
		sz.ID, sz.Name, sz.ZoneID, toMillis(sz.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert subzone: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSubzone(ctx context.Context, id string) (*Subzone, error) {
	var (
		sz      Subzone
		created int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, name, zone_id, created_at FROM subzones WHERE id = ?`, id).
		Scan(&sz.ID, &sz.Name, &sz.ZoneID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subzone: %w", err)
	}
	sz.CreatedAt = fromMillis(created)
	return &sz, nil
}

func (r *SQLiteRepository) ListSubzones(ctx context.Context, zoneID string) ([]Subzone, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, zone_id, created_at FROM subzones
		WHERE ? = '' OR zone_id = ? ORDER BY name, id`, zoneID, zoneID)
	if err != nil {
		return nil, fmt.Errorf("list subzones: %w", err)
	}
	defer rows.Close()

	out := []Subzone{}
	for rows.Next() {
		var (
			sz      Subzone
			created int64
		)
		if err := rows.Scan(&sz.ID, &sz.Name, &sz.ZoneID, &created); err != nil {
			return nil, fmt.Errorf("scan subzone: %w", err)
		}
		sz.CreatedAt = fromMillis(created)
		out = append(out, sz)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
