// Package postgres implements the record, token and settings stores on
// PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"

	"github.com/emalfatti/fintrack/pkg/api"
)

//go:embed 001_schema.sql
var migrationSQL string

// Config holds the PostgreSQL store configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Store persists records, tokens and settings in PostgreSQL. It implements
// api.RecordStore, api.TokenStore and api.SettingsStore.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to PostgreSQL and runs the schema migration.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	s := &Store{pool: pool, logger: logger}

	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Add inserts a buffered record.
func (s *Store) Add(ctx context.Context, rec *api.Record) error {
	var date *time.Time
	if rec.Date != nil {
		d := *rec.Date
		date = &d
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO records (id, user_id, entry_date, description, amount, currency, account, recorded_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
	`,
		rec.ID, rec.UserID, date, rec.Description, rec.Amount.String(),
		rec.Currency, rec.Account, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}

	s.logger.Debug("record buffered", "user_id", rec.UserID, "id", rec.ID)
	return nil
}

// List returns the user's buffered records ordered by entry time.
func (s *Store) List(ctx context.Context, userID int64) ([]*api.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, entry_date, description, amount::text, currency, account, recorded_at
		FROM records
		WHERE user_id = $1
		ORDER BY recorded_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []*api.Record
	for rows.Next() {
		var (
			rec    api.Record
			amount string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Date, &rec.Description,
			&amount, &rec.Currency, &rec.Account, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	return records, nil
}

// Delete removes the given records for the user.
func (s *Store) Delete(ctx context.Context, userID int64, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		DELETE FROM records WHERE user_id = $1 AND id = ANY($2)
	`, userID, ids)
	if err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

// Clear removes all of the user's buffered records.
func (s *Store) Clear(ctx context.Context, userID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clearing records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SaveToken upserts the user's OAuth token.
func (s *Store) SaveToken(ctx context.Context, userID int64, tok *oauth2.Token) error {
	blob, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO tokens (user_id, token, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			token = EXCLUDED.token,
			updated_at = NOW()
	`, userID, blob)
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// Token loads the user's OAuth token. Returns api.ErrNotFound when the user
// never authorized.
func (s *Store) Token(ctx context.Context, userID int64) (*oauth2.Token, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx, `SELECT token FROM tokens WHERE user_id = $1`, userID).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(blob, &tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return &tok, nil
}

// DeleteToken removes the user's OAuth token.
func (s *Store) DeleteToken(ctx context.Context, userID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// SaveSettings upserts the user's settings.
func (s *Store) SaveSettings(ctx context.Context, set *api.Settings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (user_id, spreadsheet_id, sheet_name, schedule, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			spreadsheet_id = EXCLUDED.spreadsheet_id,
			sheet_name = EXCLUDED.sheet_name,
			schedule = EXCLUDED.schedule,
			updated_at = NOW()
	`, set.UserID, set.SpreadsheetID, set.SheetName, set.Schedule)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// Settings loads the user's settings. Returns api.ErrNotFound when the user
// has none yet.
func (s *Store) Settings(ctx context.Context, userID int64) (*api.Settings, error) {
	set := api.Settings{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT spreadsheet_id, sheet_name, schedule, updated_at
		FROM settings WHERE user_id = $1
	`, userID).Scan(&set.SpreadsheetID, &set.SheetName, &set.Schedule, &set.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return &set, nil
}

// ListScheduled returns all settings with a non-empty schedule.
func (s *Store) ListScheduled(ctx context.Context) ([]*api.Settings, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, spreadsheet_id, sheet_name, schedule, updated_at
		FROM settings WHERE schedule <> ''
	`)
	if err != nil {
		return nil, fmt.Errorf("querying scheduled settings: %w", err)
	}
	defer rows.Close()

	var out []*api.Settings
	for rows.Next() {
		var set api.Settings
		if err := rows.Scan(&set.UserID, &set.SpreadsheetID, &set.SheetName,
			&set.Schedule, &set.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning settings: %w", err)
		}
		out = append(out, &set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}

	return out, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
}
