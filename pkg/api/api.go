// Package api defines the core types and interfaces for fintrack.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

// ErrNotFound is returned by stores when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Record is a single buffered expense or income entry. A negative amount is
// an expense, a positive one an income.
type Record struct {
	ID     uuid.UUID
	UserID int64
	// Date is the entry date chosen by the user. Nil when the user left it
	// out; rendered as "-" in the spreadsheet.
	Date        *time.Time
	Description string
	Amount      decimal.Decimal
	Currency    string
	Account     string
	// RecordedAt is when the record was entered in chat.
	RecordedAt time.Time
}

// Settings is the per-user spreadsheet binding and append schedule.
type Settings struct {
	UserID        int64
	SpreadsheetID string
	SheetName     string
	// Schedule is the canonical schedule spec string ("daily 23:59",
	// "monthly 1 08:00", "16:30"). Empty means no scheduled job.
	Schedule  string
	UpdatedAt time.Time
}

// Bound reports whether the spreadsheet binding is complete.
func (s *Settings) Bound() bool {
	return s != nil && s.SpreadsheetID != "" && s.SheetName != ""
}

// RecordStore persists buffered records until they are appended or cleared.
type RecordStore interface {
	Add(ctx context.Context, rec *Record) error
	// List returns the user's buffered records ordered by RecordedAt.
	List(ctx context.Context, userID int64) ([]*Record, error)
	// Delete removes the given records. Records owned by other users are
	// left untouched.
	Delete(ctx context.Context, userID int64, ids []uuid.UUID) error
	// Clear removes all of the user's records and returns how many.
	Clear(ctx context.Context, userID int64) (int64, error)
}

// TokenStore persists per-user OAuth2 tokens.
type TokenStore interface {
	SaveToken(ctx context.Context, userID int64, tok *oauth2.Token) error
	// Token returns ErrNotFound when the user never authorized.
	Token(ctx context.Context, userID int64) (*oauth2.Token, error)
	DeleteToken(ctx context.Context, userID int64) error
}

// SettingsStore persists per-user settings.
type SettingsStore interface {
	SaveSettings(ctx context.Context, s *Settings) error
	// Settings returns ErrNotFound when the user has no settings yet.
	Settings(ctx context.Context, userID int64) (*Settings, error)
	// ListScheduled returns all settings rows with a non-empty schedule.
	ListScheduled(ctx context.Context) ([]*Settings, error)
}

// Appender pushes records to the user's spreadsheet.
type Appender interface {
	Append(ctx context.Context, userID int64, s *Settings, records []*Record) error
}
