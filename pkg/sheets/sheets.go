// Package sheets appends buffered records to per-user Google Spreadsheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/emalfatti/fintrack/pkg/api"
	"github.com/emalfatti/fintrack/pkg/client"
)

// Scope is the OAuth scope required to append to spreadsheets.
const Scope = sheetsapi.SpreadsheetsScope

// Append error conditions surfaced to the user with instructions to fix
// sharing or role settings.
var (
	ErrNotConfigured    = errors.New("spreadsheet is not configured")
	ErrNotFound         = errors.New("spreadsheet not found")
	ErrPermissionDenied = errors.New("no permission to edit the spreadsheet")
)

const (
	// serviceTTL controls how long a per-user Sheets service is reused
	// before being rebuilt.
	serviceTTL     = 30 * time.Minute
	cleanupEvery   = 10 * time.Minute
	retryAttempts  = 3
	retryBaseDelay = 60 * time.Second
)

// Appender writes records to the spreadsheet each user configured.
// Authorized services are cached per user so a flush does not rebuild the
// OAuth client on every call.
type Appender struct {
	auth     *client.Authenticator
	services *cache.Cache
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates an Appender.
func New(auth *client.Authenticator, logger *slog.Logger) *Appender {
	if logger == nil {
		logger = slog.Default()
	}

	return &Appender{
		auth:     auth,
		services: cache.New(serviceTTL, cleanupEvery),
		// One append call per second across all users keeps well under
		// the Sheets API write quota.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger,
	}
}

// Append pushes the records to the user's sheet in a single API call.
// The records are written in order; the buffer is left untouched by this
// method, so callers only delete records after Append returns nil.
func (a *Appender) Append(ctx context.Context, userID int64, s *api.Settings, records []*api.Record) error {
	if !s.Bound() {
		return ErrNotConfigured
	}
	if len(records) == 0 {
		return nil
	}

	svc, err := a.service(ctx, userID)
	if err != nil {
		return err
	}

	writeRange := fmt.Sprintf("%s!A2:F2", s.SheetName)
	writeReq := sheetsapi.ValueRange{Values: buildRows(records)}

	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	err = retry.Do(
		func() error {
			_, err := svc.Spreadsheets.Values.Append(s.SpreadsheetID, writeRange, &writeReq).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				a.logger.Warn("rate limited by Sheets API, will retry", "user_id", userID)
				return true
			}
			return false
		}),
		retry.Attempts(retryAttempts),
		retry.Delay(retryBaseDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return mapAPIError(err)
	}

	a.logger.Info("appended records to spreadsheet",
		"user_id", userID,
		"count", len(records),
		"spreadsheet_id", s.SpreadsheetID,
	)

	return nil
}

// Invalidate drops the user's cached service. Must be called when the
// user's authorization is reset.
func (a *Appender) Invalidate(userID int64) {
	a.services.Delete(cacheKey(userID))
}

func (a *Appender) service(ctx context.Context, userID int64) (*sheetsapi.Service, error) {
	if svc, ok := a.services.Get(cacheKey(userID)); ok {
		return svc.(*sheetsapi.Service), nil
	}

	httpClient, err := a.auth.HTTPClient(ctx, userID)
	if err != nil {
		return nil, err
	}

	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	a.services.Set(cacheKey(userID), svc, cache.DefaultExpiration)
	return svc, nil
}

func cacheKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// buildRows converts records to spreadsheet rows: date, description,
// amount, currency, account, recorded-at.
func buildRows(records []*api.Record) [][]any {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		date := "-"
		if r.Date != nil {
			date = r.Date.Format("02/01/2006")
		}
		rows = append(rows, []any{
			date,
			r.Description,
			r.Amount.InexactFloat64(),
			r.Currency,
			r.Account,
			r.RecordedAt.Format("02-01-2006, 15:04"),
		})
	}
	return rows
}

// mapAPIError translates Sheets API failures into the user-facing error
// conditions: a spreadsheet that was never shared with the authorized
// account and an account without edit rights.
func mapAPIError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("appending to sheet: %w", err)
	}

	switch apiErr.Code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrPermissionDenied, apiErr.Message)
	default:
		return fmt.Errorf("appending to sheet: %w", err)
	}
}
