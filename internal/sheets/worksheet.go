// Package sheets provides ledger worksheets backed by Google Sheets or by memory.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	dataColumns   = "A:E"
	headerColumns = "A1:E1"
)

// Config identifies the worksheet and how to reach it.
type Config struct {
	SpreadsheetID string
	Worksheet     string
	Credentials   CredentialSource
	// RequestsPerSecond paces API calls to stay under the per-user quota. Zero disables pacing.
	RequestsPerSecond float64
}

// Worksheet reads and appends rows of one Google Sheets worksheet.
type Worksheet struct {
	svc     *gsheets.Service
	id      string
	name    string
	limiter *rate.Limiter
	log     *zap.Logger
}

// New authenticates with the service account and returns the worksheet.
// It fails when the credentials cannot be loaded or the API client cannot be built.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Worksheet, error) {
	raw, err := cfg.Credentials.Load()
	if err != nil {
		return nil, err
	}
	sa, err := ParseServiceAccount(raw)
	if err != nil {
		return nil, err
	}

	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON(raw),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	log.Info("google sheets client ready",
		zap.String("spreadsheet_id", cfg.SpreadsheetID),
		zap.String("worksheet", cfg.Worksheet),
		zap.String("service_account", sa.ClientEmail))

	return &Worksheet{
		svc:     svc,
		id:      cfg.SpreadsheetID,
		name:    cfg.Worksheet,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}, nil
}

// a1 quotes the worksheet name for A1 notation.
func (w *Worksheet) a1(cells string) string {
	return "'" + strings.ReplaceAll(w.name, "'", "''") + "'!" + cells
}

func (w *Worksheet) Read(ctx context.Context) ([][]string, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := w.svc.Spreadsheets.Values.Get(w.id, w.a1(dataColumns)).Context(ctx).Do()
	if err != nil {
		return nil, wrap("read", err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (w *Worksheet) Append(ctx context.Context, row []any) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	body := &gsheets.ValueRange{Values: [][]interface{}{row}}
	_, err := w.svc.Spreadsheets.Values.Append(w.id, w.a1(dataColumns), body).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return wrap("append", err)
}

func (w *Worksheet) WriteHeader(ctx context.Context, header []string) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	body := &gsheets.ValueRange{Values: [][]interface{}{cells}}
	_, err := w.svc.Spreadsheets.Values.Update(w.id, w.a1(headerColumns), body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return wrap("write header", err)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("sheets %s: status %d: %w", op, gerr.Code, err)
	}
	return fmt.Errorf("sheets %s: %w", op, err)
}
