package bot

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// dialogState tracks what the next plain-text message from a user means.
type dialogState int

const (
	stateIdle dialogState = iota
	stateRecordMenu
	stateAwaitDate
	stateAwaitDescription
	stateAwaitAmount
	stateAwaitAccount
	stateAwaitQuick
	stateAwaitAuthCode
	stateAwaitSpreadsheetID
	stateAwaitSheetName
	stateAwaitClearSelector
)

// draft is a record being assembled through the /record dialog.
type draft struct {
	date        *time.Time
	description string
	amount      decimal.Decimal
	currency    string
	hasAmount   bool
	account     string
}

type session struct {
	state dialogState
	draft draft
	// spreadsheetID carries the first /auth_data answer while waiting
	// for the sheet name.
	spreadsheetID string
	// clearIDs snapshots the listing /clear_data showed, so selector
	// positions stay valid even if records are added meanwhile.
	clearIDs []uuid.UUID
}

// sessions holds per-user dialog state. Telegram delivers one update at a
// time but flush notifications arrive from the scheduler goroutines, so
// access is guarded.
type sessions struct {
	mu sync.Mutex
	m  map[int64]*session
}

func newSessions() *sessions {
	return &sessions{m: make(map[int64]*session)}
}

func (s *sessions) get(userID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[userID]
	if !ok {
		sess = &session{}
		s.m[userID] = sess
	}
	return sess
}

func (s *sessions) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
