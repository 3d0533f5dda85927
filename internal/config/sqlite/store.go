// Package sqlite provides a SQLite-based config.Store implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/geeooff/iis-log-rotator/internal/config"
	"github.com/geeooff/iis-log-rotator/internal/retention"
)

// Store is a SQLite-based config.Store implementation.
type Store struct {
	db   *sql.DB
	path string
}

var _ config.Store = (*Store)(nil)

// NewStore opens a SQLite database at path and runs migrations.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create config directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := runMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the full configuration. Returns nil if all tables are empty.
func (s *Store) Load(ctx context.Context) (*config.Config, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT count(*) FROM settings)
		     + (SELECT count(*) FROM policies)
		     + (SELECT count(*) FROM streams)
	`).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	policies, err := s.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	streams, err := s.ListStreams(ctx)
	if err != nil {
		return nil, err
	}
	return config.Assemble(settings, policies, streams), nil
}

// Settings

func (s *Store) GetSettings(ctx context.Context) (*config.Settings, error) {
	var st config.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT root, httperr_root, parallelism, rate_limit, schedule, century_pivot, time_zone
		FROM settings WHERE id = 1
	`).Scan(&st.Root, &st.HTTPErrRoot, &st.Parallelism, &st.RateLimit, &st.Schedule, &st.CenturyPivot, &st.TimeZone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &st, nil
}

func (s *Store) PutSettings(ctx context.Context, st config.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, root, httperr_root, parallelism, rate_limit, schedule, century_pivot, time_zone)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			root = excluded.root,
			httperr_root = excluded.httperr_root,
			parallelism = excluded.parallelism,
			rate_limit = excluded.rate_limit,
			schedule = excluded.schedule,
			century_pivot = excluded.century_pivot,
			time_zone = excluded.time_zone
	`, st.Root, st.HTTPErrRoot, st.Parallelism, st.RateLimit, st.Schedule, st.CenturyPivot, st.TimeZone)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

// Policies

func (s *Store) GetPolicy(ctx context.Context, id string) (*retention.Policy, error) {
	var p retention.Policy
	err := s.db.QueryRowContext(ctx, `
		SELECT compress, compress_after_days, "delete", delete_after_days
		FROM policies WHERE id = ?
	`, id).Scan(&p.Compress, &p.CompressAfterDays, &p.Delete, &p.DeleteAfterDays)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get policy %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) ListPolicies(ctx context.Context) (map[string]retention.Policy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, compress, compress_after_days, "delete", delete_after_days
		FROM policies ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]retention.Policy)
	for rows.Next() {
		var id string
		var p retention.Policy
		if err := rows.Scan(&id, &p.Compress, &p.CompressAfterDays, &p.Delete, &p.DeleteAfterDays); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		result[id] = p
	}
	return result, rows.Err()
}

func (s *Store) PutPolicy(ctx context.Context, id string, p retention.Policy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (id, compress, compress_after_days, "delete", delete_after_days)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			compress = excluded.compress,
			compress_after_days = excluded.compress_after_days,
			"delete" = excluded."delete",
			delete_after_days = excluded.delete_after_days
	`, id, p.Compress, p.CompressAfterDays, p.Delete, p.DeleteAfterDays)
	if err != nil {
		return fmt.Errorf("put policy %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeletePolicy(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM policies WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete policy %s: %w", id, err)
	}
	return nil
}

// Streams

const streamColumns = `name, stream_id, service, site, central, format, period, root, directory,
	utf8, custom_fields, disabled, local_time_rollover, truncate_size`

type scanner interface {
	Scan(dest ...any) error
}

func scanStream(row scanner) (config.StreamConfig, error) {
	var sc config.StreamConfig
	err := row.Scan(&sc.Name, &sc.ID, &sc.Service, &sc.Site, &sc.Central, &sc.Format, &sc.Period,
		&sc.Root, &sc.Directory, &sc.UTF8, &sc.CustomFields, &sc.Disabled, &sc.LocalTimeRollover, &sc.TruncateSize)
	return sc, err
}

func (s *Store) GetStream(ctx context.Context, name string) (*config.StreamConfig, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+streamColumns+" FROM streams WHERE name = ?", name)
	sc, err := scanStream(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", name, err)
	}
	return &sc, nil
}

func (s *Store) ListStreams(ctx context.Context) ([]config.StreamConfig, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+streamColumns+" FROM streams ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []config.StreamConfig
	for rows.Next() {
		sc, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

func (s *Store) PutStream(ctx context.Context, sc config.StreamConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streams (`+streamColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			stream_id = excluded.stream_id,
			service = excluded.service,
			site = excluded.site,
			central = excluded.central,
			format = excluded.format,
			period = excluded.period,
			root = excluded.root,
			directory = excluded.directory,
			utf8 = excluded.utf8,
			custom_fields = excluded.custom_fields,
			disabled = excluded.disabled,
			local_time_rollover = excluded.local_time_rollover,
			truncate_size = excluded.truncate_size
	`, sc.Name, sc.ID, sc.Service, sc.Site, sc.Central, sc.Format, sc.Period, sc.Root, sc.Directory,
		sc.UTF8, sc.CustomFields, sc.Disabled, sc.LocalTimeRollover, sc.TruncateSize)
	if err != nil {
		return fmt.Errorf("put stream %s: %w", sc.Name, err)
	}
	return nil
}

func (s *Store) DeleteStream(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM streams WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete stream %s: %w", name, err)
	}
	return nil
}
