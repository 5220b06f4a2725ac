package ledger

import (
	"strconv"
	"strings"

	"github.com/khayami66/study-support-bot/internal/model"
)

const (
	currentColumns = 5
	legacyColumns  = 4
)

// Header is the header row of the current five-column layout.
var Header = []string{"ユーザーID", "日時", "行動", "ポイント", "合計ポイント"}

// LegacyHeader is the header row written before the user id column existed.
var LegacyHeader = []string{"日時", "行動", "ポイント", "合計ポイント"}

// parseRow maps a raw ledger row to a LedgerRow, choosing the layout by column count.
// It reports false for rows that are too short or whose points cell is not an integer.
func parseRow(raw []string) (model.LedgerRow, bool) {
	switch {
	case len(raw) >= currentColumns:
		return parseCurrentRow(raw)
	case len(raw) == legacyColumns:
		return parseLegacyRow(raw)
	default:
		return model.LedgerRow{}, false
	}
}

// parseCurrentRow reads [userId, timestamp, action, points, total].
func parseCurrentRow(raw []string) (model.LedgerRow, bool) {
	points, ok := parseInt(raw[3])
	if !ok {
		return model.LedgerRow{}, false
	}
	total, _ := parseInt(raw[4])
	return model.LedgerRow{
		UserID:    raw[0],
		Timestamp: raw[1],
		Action:    raw[2],
		Points:    points,
		Total:     total,
	}, true
}

// parseLegacyRow reads [timestamp, action, points, total].
func parseLegacyRow(raw []string) (model.LedgerRow, bool) {
	points, ok := parseInt(raw[2])
	if !ok {
		return model.LedgerRow{}, false
	}
	total, _ := parseInt(raw[3])
	return model.LedgerRow{
		Timestamp: raw[0],
		Action:    raw[1],
		Points:    points,
		Total:     total,
		Legacy:    true,
	}, true
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// rowsFor returns the data rows that belong to userID, in ledger order.
func rowsFor(values [][]string, userID string) []model.LedgerRow {
	if len(values) < 2 {
		return nil
	}
	var rows []model.LedgerRow
	for _, raw := range values[1:] {
		row, ok := parseRow(raw)
		if !ok || !row.BelongsTo(userID) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func headerCurrent(header []string) bool {
	return len(header) >= currentColumns && header[0] == Header[0]
}
