// Package ledger keeps per-user point totals in an append-only worksheet.
//
// Totals are always recomputed from the points column of every row; the running total
// written alongside each row is informational only. Writes from this process are
// serialized per user, but the worksheet itself offers no isolation, so other writers
// can still leave the stored running totals out of step.
package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khayami66/study-support-bot/internal/metrics"
	"github.com/khayami66/study-support-bot/internal/model"
)

// Sheet is the storage contract of the ledger worksheet.
type Sheet interface {
	// Read returns every row of the worksheet, header included.
	Read(ctx context.Context) ([][]string, error)
	// Append adds one row after the last data row.
	Append(ctx context.Context, row []any) error
	// WriteHeader overwrites the first row.
	WriteHeader(ctx context.Context, header []string) error
}

// Reconciler reads and appends ledger rows. Failures of the underlying sheet are
// logged and turned into zero values.
type Reconciler struct {
	sheet   Sheet
	log     *zap.Logger
	metrics *metrics.Metrics
	loc     *time.Location
	now     func() time.Time
	locks   userLocks
}

// New creates a Reconciler over sheet. Timestamps are written in loc, or time.Local when nil.
func New(sheet Sheet, log *zap.Logger, m *metrics.Metrics, loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.Local
	}
	return &Reconciler{
		sheet:   sheet,
		log:     log,
		metrics: m,
		loc:     loc,
		now:     time.Now,
		locks:   userLocks{m: make(map[string]*userLock)},
	}
}

func (r *Reconciler) read(ctx context.Context) ([][]string, error) {
	start := time.Now()
	values, err := r.sheet.Read(ctx)
	r.metrics.LedgerOperation("read", time.Since(start), err)
	return values, err
}

func (r *Reconciler) totalPoints(ctx context.Context, userID string) (int, error) {
	values, err := r.read(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, row := range rowsFor(values, userID) {
		total += row.Points
	}
	return total, nil
}

// TotalPoints returns the sum of points over every row belonging to userID.
func (r *Reconciler) TotalPoints(ctx context.Context, userID string) int {
	total, err := r.totalPoints(ctx, userID)
	if err != nil {
		r.log.Error("failed to read ledger", zap.String("op", "total_points"), zap.String("user", userID), zap.Error(err))
		return 0
	}
	return total
}

// RecordAction appends a row for userID carrying the new running total.
// It returns false when the ledger could not be read or written.
func (r *Reconciler) RecordAction(ctx context.Context, userID, action string, points int) bool {
	unlock := r.locks.lock(userID)
	defer unlock()

	current, err := r.totalPoints(ctx, userID)
	if err != nil {
		r.log.Error("failed to read ledger", zap.String("op", "record_action"), zap.String("user", userID), zap.Error(err))
		return false
	}
	newTotal := current + points
	row := []any{userID, r.now().In(r.loc).Format(model.TimestampLayout), action, points, newTotal}

	start := time.Now()
	err = r.sheet.Append(ctx, row)
	r.metrics.LedgerOperation("append", time.Since(start), err)
	if err != nil {
		r.log.Error("failed to append ledger row",
			zap.String("op", "record_action"),
			zap.String("user", userID),
			zap.String("action", action),
			zap.Error(err))
		return false
	}

	r.log.Info("action recorded",
		zap.String("user", userID),
		zap.String("action", action),
		zap.Int("points", points),
		zap.Int("total", newTotal))
	return true
}

// History returns the last limit rows belonging to userID, oldest first.
func (r *Reconciler) History(ctx context.Context, userID string, limit int) []model.HistoryEntry {
	values, err := r.read(ctx)
	if err != nil {
		r.log.Error("failed to read ledger", zap.String("op", "history"), zap.String("user", userID), zap.Error(err))
		return nil
	}
	rows := rowsFor(values, userID)
	if limit >= 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	history := make([]model.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		history = append(history, model.HistoryEntry{
			Timestamp: row.Timestamp,
			Action:    row.Action,
			Points:    row.Points,
			Total:     row.Total,
		})
	}
	return history
}

// Initialize makes sure the worksheet starts with the current header row.
// An outdated header is replaced in place; existing data rows are left as they are.
func (r *Reconciler) Initialize(ctx context.Context) bool {
	values, err := r.read(ctx)
	if err != nil {
		r.log.Error("failed to read ledger", zap.String("op", "initialize"), zap.Error(err))
		return false
	}
	if len(values) > 0 && headerCurrent(values[0]) {
		return true
	}

	start := time.Now()
	err = r.sheet.WriteHeader(ctx, Header)
	r.metrics.LedgerOperation("write_header", time.Since(start), err)
	if err != nil {
		r.log.Error("failed to write ledger header", zap.String("op", "initialize"), zap.Error(err))
		return false
	}
	if len(values) == 0 {
		r.log.Info("ledger initialized")
	} else {
		r.log.Warn("ledger header upgraded", zap.Int("data_rows", len(values)-1))
	}
	return true
}

// Ping checks that the worksheet can be read.
func (r *Reconciler) Ping(ctx context.Context) error {
	_, err := r.read(ctx)
	return err
}

type userLock struct {
	sync.Mutex
	refs int
}

// userLocks hands out one mutex per user id and drops it once nobody holds it.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*userLock
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	ul, ok := l.m[userID]
	if !ok {
		ul = &userLock{}
		l.m[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.m, userID)
		}
		l.mu.Unlock()
	}
}

