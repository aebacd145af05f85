// Package scheduler runs appends of buffered records to user spreadsheets,
// either on demand or on per-user schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emalfatti/fintrack/pkg/api"
)

// pollInterval bounds how late a schedule can fire.
const pollInterval = 30 * time.Second

// NotifyFunc delivers a message to a user outside of a command exchange.
type NotifyFunc func(userID int64, text string)

// NotifyErrorFunc tells a user a scheduled append failed. The receiver
// turns the error into user-facing instructions, so the same guidance is
// shown on the scheduled and the manual append paths.
type NotifyErrorFunc func(userID int64, err error)

// Scheduler watches user schedules and flushes buffered records to their
// spreadsheets when due. Flushes for different users run concurrently; at
// most one flush per user runs at a time.
type Scheduler struct {
	records   api.RecordStore
	settings  api.SettingsStore
	appender  api.Appender
	notify    NotifyFunc
	notifyErr NotifyErrorFunc
	logger    *slog.Logger

	mu      sync.Mutex
	running map[int64]bool
	pending map[int64]pendingRun

	wg sync.WaitGroup
}

type pendingRun struct {
	schedule string
	next     time.Time
}

// New creates a Scheduler. Notify may be set later with SetNotify, before
// Run is called.
func New(records api.RecordStore, settings api.SettingsStore, appender api.Appender, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		records:   records,
		settings:  settings,
		appender:  appender,
		notify:    func(int64, string) {},
		notifyErr: func(int64, error) {},
		logger:    logger,
		running:   make(map[int64]bool),
		pending:   make(map[int64]pendingRun),
	}
}

// SetNotify installs the callback used to tell users about scheduled runs.
func (s *Scheduler) SetNotify(fn NotifyFunc) {
	if fn != nil {
		s.notify = fn
	}
}

// SetNotifyError installs the callback used when a scheduled run fails.
func (s *Scheduler) SetNotifyError(fn NotifyErrorFunc) {
	if fn != nil {
		s.notifyErr = fn
	}
}

// Run polls for due schedules until the context is canceled, then waits
// for in-flight flushes to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "poll_interval", pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx, time.Now())
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	scheduled, err := s.settings.ListScheduled(ctx)
	if err != nil {
		s.logger.Error("listing schedules", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]bool, len(scheduled))
	for _, st := range scheduled {
		seen[st.UserID] = true

		spec, err := ParseSpec(st.Schedule)
		if err != nil {
			// Schedules are validated on the way in, so this means the
			// row was edited out of band. Log and skip.
			s.logger.Error("stored schedule does not parse", "user_id", st.UserID, "schedule", st.Schedule, "error", err)
			continue
		}

		run, ok := s.pending[st.UserID]
		if !ok || run.schedule != st.Schedule {
			s.pending[st.UserID] = pendingRun{schedule: st.Schedule, next: spec.Next(now)}
			continue
		}

		if now.Before(run.next) || s.running[st.UserID] {
			continue
		}

		s.pending[st.UserID] = pendingRun{schedule: st.Schedule, next: spec.Next(now)}
		s.running[st.UserID] = true
		s.wg.Add(1)
		go s.scheduledFlush(ctx, st.UserID, spec.Once())
	}

	// Forget schedules that were canceled since the last tick.
	for userID := range s.pending {
		if !seen[userID] {
			delete(s.pending, userID)
		}
	}
}

func (s *Scheduler) scheduledFlush(ctx context.Context, userID int64, once bool) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.running, userID)
		s.mu.Unlock()
	}()

	count, err := s.flush(ctx, userID)
	if err != nil {
		s.logger.Error("scheduled append failed", "user_id", userID, "error", err)
		s.notifyErr(userID, err)
		return
	}

	if once {
		if err := s.clearSchedule(ctx, userID); err != nil {
			s.logger.Error("clearing one-shot schedule", "user_id", userID, "error", err)
		}
	}

	if count == 0 {
		return
	}
	s.notify(userID, fmt.Sprintf("Appended %d record(s) to your spreadsheet.", count))
}

// RunNow flushes the user's buffered records immediately and returns how
// many were appended.
func (s *Scheduler) RunNow(ctx context.Context, userID int64) (int, error) {
	s.mu.Lock()
	if s.running[userID] {
		s.mu.Unlock()
		return 0, fmt.Errorf("an append for this user is already running")
	}
	s.running[userID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, userID)
		s.mu.Unlock()
	}()

	return s.flush(ctx, userID)
}

// SetSchedule validates and stores the user's schedule. A KindOnce spec
// fires at the next occurrence of its time and is then cleared.
func (s *Scheduler) SetSchedule(ctx context.Context, userID int64, spec Spec) error {
	st, err := s.settings.Settings(ctx, userID)
	if err != nil {
		return err
	}

	st.Schedule = spec.String()
	if err := s.settings.SaveSettings(ctx, st); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending[userID] = pendingRun{schedule: st.Schedule, next: spec.Next(time.Now())}
	s.mu.Unlock()

	s.logger.Info("schedule set", "user_id", userID, "schedule", st.Schedule)
	return nil
}

// Cancel removes the user's schedule.
func (s *Scheduler) Cancel(ctx context.Context, userID int64) error {
	if err := s.clearSchedule(ctx, userID); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.pending, userID)
	s.mu.Unlock()

	s.logger.Info("schedule canceled", "user_id", userID)
	return nil
}

func (s *Scheduler) clearSchedule(ctx context.Context, userID int64) error {
	st, err := s.settings.Settings(ctx, userID)
	if err != nil {
		return err
	}
	st.Schedule = ""
	return s.settings.SaveSettings(ctx, st)
}

// flush appends the user's buffered records and deletes the ones that
// were written. Records added while the append is in flight survive in
// the buffer.
func (s *Scheduler) flush(ctx context.Context, userID int64) (int, error) {
	st, err := s.settings.Settings(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("loading settings: %w", err)
	}

	records, err := s.records.List(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("listing records: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := s.appender.Append(ctx, userID, st, records); err != nil {
		return 0, err
	}

	ids := make([]uuid.UUID, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if err := s.records.Delete(ctx, userID, ids); err != nil {
		// The rows are in the sheet but still buffered; the next flush
		// would duplicate them, so surface this loudly.
		return 0, fmt.Errorf("clearing appended records from buffer: %w", err)
	}

	return len(records), nil
}
