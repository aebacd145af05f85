// Package bot implements the Telegram command surface: recording
// expenses and income, managing spreadsheet authorization, and driving
// appends of the buffered records.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/emalfatti/fintrack/internal/scheduler"
	"github.com/emalfatti/fintrack/pkg/api"
	"github.com/emalfatti/fintrack/pkg/client"
	"github.com/emalfatti/fintrack/pkg/sheets"
)

const helpText = `Commands:
/record - log an expense or income
/show_data - list the buffered records
/summary - totals of the buffered records, per currency
/clear_data - delete buffered records
/append_data - push the buffered records to your spreadsheet now
/schedule - set when buffered records are pushed automatically
/cancel - cancel the schedule (or the current dialog)
/auth - authorize access to your Google account
/auth_data - choose the spreadsheet and sheet to write to
/reset - forget authorization and spreadsheet settings
/help - this message

To log a record in one line:
/record 15/03/2026, groceries, -42.50 eur, cash
(use "-" for the date to leave it out; negative amounts are expenses)`

// Bot runs the Telegram dialog loop.
type Bot struct {
	tg       *tgbotapi.BotAPI
	records  api.RecordStore
	settings api.SettingsStore
	auth     *client.Authenticator
	appender *sheets.Appender
	sched    *scheduler.Scheduler
	sessions *sessions
	logger   *slog.Logger

	// developerID receives internal error reports; zero disables them.
	developerID int64
}

// New creates a Bot. Call Run to start processing updates.
func New(
	tg *tgbotapi.BotAPI,
	records api.RecordStore,
	settings api.SettingsStore,
	auth *client.Authenticator,
	appender *sheets.Appender,
	sched *scheduler.Scheduler,
	developerID int64,
	logger *slog.Logger,
) *Bot {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bot{
		tg:          tg,
		records:     records,
		settings:    settings,
		auth:        auth,
		appender:    appender,
		sched:       sched,
		sessions:    newSessions(),
		logger:      logger,
		developerID: developerID,
	}
}

// Notify sends a message to a user outside of a command exchange. It is
// the scheduler's channel back to the user.
func (b *Bot) Notify(userID int64, text string) {
	b.send(userID, text)
}

// NotifyAppendFailure tells a user a scheduled append failed, with the
// same fix instructions the manual /append_data path gives.
func (b *Bot) NotifyAppendFailure(userID int64, err error) {
	b.send(userID, "Scheduled append failed. "+appendErrorText(err))
}

// Run processes updates until the context is canceled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info("bot started", "username", b.tg.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			b.logger.Info("bot stopped")
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	b.logger.Debug("message received", "user_id", userID, "is_command", msg.IsCommand())

	if !msg.IsCommand() {
		b.handleText(ctx, userID, msg.Text)
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.sessions.reset(userID)
		b.send(userID, "Hi! I log your expenses and income and push them to a Google Spreadsheet.\n\n"+helpText)
	case "help":
		b.send(userID, helpText)
	case "record":
		b.handleRecord(ctx, userID, args)
	case "show_data":
		b.handleShowData(ctx, userID)
	case "summary":
		b.handleSummary(ctx, userID)
	case "clear_data":
		b.handleClearData(ctx, userID)
	case "append_data":
		b.handleAppendData(ctx, userID)
	case "schedule":
		b.handleSchedule(ctx, userID, args)
	case "cancel":
		b.handleCancel(ctx, userID)
	case "auth":
		b.handleAuth(userID)
	case "auth_data":
		b.sessions.get(userID).state = stateAwaitSpreadsheetID
		b.send(userID, "Send me the spreadsheet ID (or the full spreadsheet URL).")
	case "reset":
		b.handleReset(ctx, userID)
	default:
		b.send(userID, fmt.Sprintf("Unknown command /%s. Try /help.", msg.Command()))
	}
}

func (b *Bot) handleRecord(ctx context.Context, userID int64, args string) {
	if args != "" {
		d, err := parseQuickRecord(args, time.Now())
		if err != nil {
			b.send(userID, fmt.Sprintf("Could not read the record: %v", err))
			return
		}
		b.saveDraft(ctx, userID, d)
		return
	}

	sess := b.sessions.get(userID)
	sess.state = stateRecordMenu
	sess.draft = draft{}
	b.sendMenu(userID, sess.draft)
}

func (b *Bot) handleShowData(ctx context.Context, userID int64) {
	records, err := b.records.List(ctx, userID)
	if err != nil {
		b.reportError(userID, "listing records", err)
		return
	}
	b.send(userID, renderRecords(records))
}

func (b *Bot) handleSummary(ctx context.Context, userID int64) {
	records, err := b.records.List(ctx, userID)
	if err != nil {
		b.reportError(userID, "listing records", err)
		return
	}
	b.send(userID, renderSummary(records))
}

func (b *Bot) handleClearData(ctx context.Context, userID int64) {
	records, err := b.records.List(ctx, userID)
	if err != nil {
		b.reportError(userID, "listing records", err)
		return
	}
	if len(records) == 0 {
		b.send(userID, "No buffered records to clear.")
		return
	}

	sess := b.sessions.get(userID)
	sess.state = stateAwaitClearSelector
	sess.clearIDs = make([]uuid.UUID, len(records))
	for i, r := range records {
		sess.clearIDs[i] = r.ID
	}

	b.send(userID, renderRecords(records)+
		"\n\nWhich records should I delete? Send a number (3), a range (2-5), a list (1,3,7), or \"all\".")
}

func (b *Bot) handleAppendData(ctx context.Context, userID int64) {
	count, err := b.sched.RunNow(ctx, userID)
	if err != nil {
		b.send(userID, appendErrorText(err))
		b.logger.Error("manual append failed", "user_id", userID, "error", err)
		return
	}
	if count == 0 {
		b.send(userID, "Nothing to append, the buffer is empty.")
		return
	}
	b.send(userID, fmt.Sprintf("Appended %d record(s) to your spreadsheet.", count))
}

func (b *Bot) handleSchedule(ctx context.Context, userID int64, args string) {
	if args == "" {
		current := "none"
		if st, err := b.settings.Settings(ctx, userID); err == nil && st.Schedule != "" {
			current = st.Schedule
		}
		b.send(userID, fmt.Sprintf("Current schedule: %s.\n\nUsage:\n/schedule now\n/schedule 21:30\n/schedule daily 23:59\n/schedule monthly 1 09:00", current))
		return
	}

	if !b.requireConfigured(ctx, userID) {
		return
	}

	spec, err := scheduler.ParseSpec(args)
	if err != nil {
		b.send(userID, fmt.Sprintf("Could not read the schedule: %v", err))
		return
	}

	if strings.EqualFold(args, "now") {
		b.handleAppendData(ctx, userID)
		return
	}

	if err := b.sched.SetSchedule(ctx, userID, spec); err != nil {
		b.reportError(userID, "setting schedule", err)
		return
	}
	b.send(userID, fmt.Sprintf("Scheduled: %s. I'll push the buffered records then.", spec))
}

func (b *Bot) handleCancel(ctx context.Context, userID int64) {
	sess := b.sessions.get(userID)
	if sess.state != stateIdle {
		b.sessions.reset(userID)
		b.send(userID, "Canceled.")
		return
	}

	st, err := b.settings.Settings(ctx, userID)
	if errors.Is(err, api.ErrNotFound) || (err == nil && st.Schedule == "") {
		b.send(userID, "Nothing to cancel.")
		return
	}
	if err != nil {
		b.reportError(userID, "loading settings", err)
		return
	}

	if err := b.sched.Cancel(ctx, userID); err != nil {
		b.reportError(userID, "canceling schedule", err)
		return
	}
	b.send(userID, "Schedule canceled.")
}

func (b *Bot) handleAuth(userID int64) {
	sess := b.sessions.get(userID)
	sess.state = stateAwaitAuthCode
	b.send(userID, "Open this link, allow access to your spreadsheets, and send me the code you get back:\n\n"+b.auth.AuthURL())
}

func (b *Bot) handleReset(ctx context.Context, userID int64) {
	if err := b.auth.Revoke(ctx, userID); err != nil && !errors.Is(err, api.ErrNotFound) {
		b.reportError(userID, "revoking authorization", err)
		return
	}
	if err := b.settings.SaveSettings(ctx, &api.Settings{UserID: userID}); err != nil {
		b.reportError(userID, "clearing settings", err)
		return
	}
	b.appender.Invalidate(userID)
	b.sessions.reset(userID)
	b.send(userID, "Done. Authorization and spreadsheet settings are gone. Your buffered records are untouched; use /clear_data to drop them too.")
}

func (b *Bot) handleText(ctx context.Context, userID int64, text string) {
	sess := b.sessions.get(userID)
	text = strings.TrimSpace(text)

	switch sess.state {
	case stateAwaitQuick:
		d, err := parseQuickRecord(text, time.Now())
		if err != nil {
			b.send(userID, fmt.Sprintf("Could not read the record: %v\nTry again or /cancel.", err))
			return
		}
		b.saveDraft(ctx, userID, d)

	case stateAwaitDate:
		date, err := parseDate(text, time.Now())
		if err != nil {
			b.send(userID, fmt.Sprintf("%v\nTry again or /cancel.", err))
			return
		}
		sess.draft.date = date
		sess.state = stateRecordMenu
		b.sendMenu(userID, sess.draft)

	case stateAwaitDescription:
		if text == "" {
			b.send(userID, "Description must not be empty. Try again or /cancel.")
			return
		}
		sess.draft.description = text
		sess.state = stateRecordMenu
		b.sendMenu(userID, sess.draft)

	case stateAwaitAmount:
		amount, code := parseAmount(text)
		if amount.IsZero() {
			b.send(userID, fmt.Sprintf("Could not read an amount from %q. Try again or /cancel.", text))
			return
		}
		sess.draft.amount = amount
		sess.draft.currency = code
		sess.draft.hasAmount = true
		sess.state = stateRecordMenu
		b.sendMenu(userID, sess.draft)

	case stateAwaitAccount:
		if text == "" {
			b.send(userID, "Account must not be empty. Try again or /cancel.")
			return
		}
		sess.draft.account = text
		sess.state = stateRecordMenu
		b.sendMenu(userID, sess.draft)

	case stateAwaitAuthCode:
		if err := b.auth.Exchange(ctx, userID, text); err != nil {
			b.send(userID, "That code did not work. Request a fresh one with /auth and try again.")
			b.logger.Error("auth code exchange failed", "user_id", userID, "error", err)
			return
		}
		sess.state = stateIdle
		reply := "Authorized."
		if st, err := b.settings.Settings(ctx, userID); errors.Is(err, api.ErrNotFound) || (err == nil && !st.Bound()) {
			reply += " Now tell me where to write with /auth_data."
		}
		b.send(userID, reply)

	case stateAwaitSpreadsheetID:
		id := extractSpreadsheetID(text)
		if id == "" {
			b.send(userID, "That does not look like a spreadsheet ID or URL. Try again or /cancel.")
			return
		}
		sess.spreadsheetID = id
		sess.state = stateAwaitSheetName
		b.send(userID, "And the sheet (tab) name to append to?")

	case stateAwaitSheetName:
		if text == "" {
			b.send(userID, "Sheet name must not be empty. Try again or /cancel.")
			return
		}
		st, err := b.settings.Settings(ctx, userID)
		if errors.Is(err, api.ErrNotFound) {
			st = &api.Settings{UserID: userID}
		} else if err != nil {
			b.reportError(userID, "loading settings", err)
			return
		}
		st.SpreadsheetID = sess.spreadsheetID
		st.SheetName = text
		if err := b.settings.SaveSettings(ctx, st); err != nil {
			b.reportError(userID, "saving settings", err)
			return
		}
		b.sessions.reset(userID)
		b.send(userID, "Spreadsheet configured. Use /append_data to push records now, or /schedule for automatic pushes.")

	case stateAwaitClearSelector:
		b.applyClearSelector(ctx, userID, sess, text)

	case stateRecordMenu:
		// A pasted quick-format line works here too.
		if strings.Contains(text, ",") {
			d, err := parseQuickRecord(text, time.Now())
			if err != nil {
				b.send(userID, fmt.Sprintf("Could not read the record: %v", err))
				return
			}
			b.saveDraft(ctx, userID, d)
			return
		}
		b.send(userID, "Use the buttons to fill in the record, or send it as one line: date, description, amount, account.")

	default:
		b.send(userID, "I did not get that. Try /help.")
	}
}

func (b *Bot) applyClearSelector(ctx context.Context, userID int64, sess *session, text string) {
	positions, all, err := parseClearSelector(text, len(sess.clearIDs))
	if err != nil {
		b.send(userID, fmt.Sprintf("%v\nTry again or /cancel.", err))
		return
	}

	if all {
		n, err := b.records.Clear(ctx, userID)
		if err != nil {
			b.reportError(userID, "clearing records", err)
			return
		}
		b.sessions.reset(userID)
		b.send(userID, fmt.Sprintf("Deleted all %d record(s).", n))
		return
	}

	ids := make([]uuid.UUID, len(positions))
	for i, pos := range positions {
		ids[i] = sess.clearIDs[pos-1]
	}
	if err := b.records.Delete(ctx, userID, ids); err != nil {
		b.reportError(userID, "deleting records", err)
		return
	}
	b.sessions.reset(userID)
	b.send(userID, fmt.Sprintf("Deleted %d record(s).", len(ids)))
}

const (
	cbDate        = "rec_date"
	cbDescription = "rec_desc"
	cbAmount      = "rec_amount"
	cbAccount     = "rec_account"
	cbSave        = "rec_save"
	cbQuick       = "rec_quick"
	cbCancel      = "rec_cancel"
)

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	userID := query.From.ID
	sess := b.sessions.get(userID)

	// Acknowledge first so the client stops its spinner.
	if _, err := b.tg.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Error("answering callback", "user_id", userID, "error", err)
	}

	if sess.state != stateRecordMenu {
		b.send(userID, "That menu is no longer active. Start over with /record.")
		return
	}

	switch query.Data {
	case cbDate:
		sess.state = stateAwaitDate
		b.send(userID, "Date? (dd/mm/yyyy, \"today\", \"yesterday\", or \"-\" for none)")
	case cbDescription:
		sess.state = stateAwaitDescription
		b.send(userID, "Description?")
	case cbAmount:
		sess.state = stateAwaitAmount
		b.send(userID, "Amount? Negative for expenses, e.g. -12.50 eur")
	case cbAccount:
		sess.state = stateAwaitAccount
		b.send(userID, "Account? (e.g. cash, N26)")
	case cbQuick:
		sess.state = stateAwaitQuick
		b.send(userID, "Send the record as one line: date, description, amount, account. Use \"-\" for no date.")
	case cbSave:
		b.saveDraft(ctx, userID, sess.draft)
	case cbCancel:
		b.sessions.reset(userID)
		b.send(userID, "Canceled.")
	default:
		b.logger.Debug("unknown callback", "user_id", userID, "data", query.Data)
	}
}

func (b *Bot) saveDraft(ctx context.Context, userID int64, d draft) {
	switch {
	case !d.hasAmount:
		b.send(userID, "The record needs an amount before I can save it.")
		return
	case d.description == "":
		b.send(userID, "The record needs a description before I can save it.")
		return
	case d.account == "":
		b.send(userID, "The record needs an account before I can save it.")
		return
	}

	rec := &api.Record{
		ID:          uuid.New(),
		UserID:      userID,
		Date:        d.date,
		Description: d.description,
		Amount:      d.amount,
		Currency:    d.currency,
		Account:     d.account,
		RecordedAt:  time.Now(),
	}
	if err := b.records.Add(ctx, rec); err != nil {
		b.reportError(userID, "saving record", err)
		return
	}

	b.sessions.reset(userID)
	b.logger.Info("record buffered", "user_id", userID, "record_id", rec.ID)

	kind := "Income"
	if rec.Amount.IsNegative() {
		kind = "Expense"
	}
	b.send(userID, fmt.Sprintf("%s saved: %s, %s %s (%s).", kind, rec.Description, formatAmount(rec.Amount), rec.Currency, rec.Account))
}

// requireConfigured checks that the user authorized access and bound a
// spreadsheet, and explains what is missing otherwise.
func (b *Bot) requireConfigured(ctx context.Context, userID int64) bool {
	ok, err := b.auth.Authorized(ctx, userID)
	if err != nil {
		b.reportError(userID, "checking authorization", err)
		return false
	}
	if !ok {
		b.send(userID, "I need access to your Google account first. Run /auth.")
		return false
	}

	st, err := b.settings.Settings(ctx, userID)
	if errors.Is(err, api.ErrNotFound) || (err == nil && !st.Bound()) {
		b.send(userID, "No spreadsheet is configured yet. Run /auth_data.")
		return false
	}
	if err != nil {
		b.reportError(userID, "loading settings", err)
		return false
	}
	return true
}

func (b *Bot) sendMenu(userID int64, d draft) {
	msg := tgbotapi.NewMessage(userID, renderDraft(d))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Date", cbDate),
			tgbotapi.NewInlineKeyboardButtonData("Description", cbDescription),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Amount", cbAmount),
			tgbotapi.NewInlineKeyboardButtonData("Account", cbAccount),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Save", cbSave),
			tgbotapi.NewInlineKeyboardButtonData("One line", cbQuick),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbCancel),
		),
	)
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Error("sending menu", "user_id", userID, "error", err)
	}
}

func (b *Bot) send(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Error("sending message", "user_id", userID, "error", err)
	}
}

// reportError tells the user something went wrong, logs the detail, and
// forwards it to the developer account when one is configured.
func (b *Bot) reportError(userID int64, action string, err error) {
	b.logger.Error(action+" failed", "user_id", userID, "error", err)
	b.send(userID, "Something went wrong on my side. Please try again later.")
	if b.developerID != 0 && b.developerID != userID {
		b.send(b.developerID, fmt.Sprintf("Error for user %d while %s: %v", userID, action, err))
	}
}

// appendErrorText turns an append failure into instructions the user can
// act on.
func appendErrorText(err error) string {
	switch {
	case errors.Is(err, client.ErrNotAuthorized):
		return "I am not authorized to access your Google account. Run /auth first."
	case errors.Is(err, sheets.ErrNotConfigured), errors.Is(err, api.ErrNotFound):
		return "No spreadsheet is configured yet. Run /auth_data first."
	case errors.Is(err, sheets.ErrNotFound):
		return "I could not find that spreadsheet. Check the ID you set with /auth_data, and make sure the spreadsheet exists in the Google account you authorized."
	case errors.Is(err, sheets.ErrPermissionDenied):
		return "Your Google account is not allowed to edit that spreadsheet. Ask its owner for edit access, or pick another one with /auth_data."
	default:
		return fmt.Sprintf("Appending failed: %v. Your records are still buffered, try again later.", err)
	}
}

var (
	spreadsheetURLRe = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	spreadsheetIDRe  = regexp.MustCompile(`^[a-zA-Z0-9_-]{10,}$`)
)

// extractSpreadsheetID accepts either a bare spreadsheet ID or a full
// spreadsheet URL and returns the ID, or "" if neither matches.
func extractSpreadsheetID(s string) string {
	s = strings.TrimSpace(s)
	if m := spreadsheetURLRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if spreadsheetIDRe.MatchString(s) {
		return s
	}
	return ""
}
