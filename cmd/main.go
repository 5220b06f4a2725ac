// Package main provides the entry point for the LINE point system.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khayami66/study-support-bot/internal/apperror"
	"github.com/khayami66/study-support-bot/internal/bot"
	"github.com/khayami66/study-support-bot/internal/config"
	"github.com/khayami66/study-support-bot/internal/handler"
	"github.com/khayami66/study-support-bot/internal/ledger"
	"github.com/khayami66/study-support-bot/internal/line"
	"github.com/khayami66/study-support-bot/internal/logger"
	"github.com/khayami66/study-support-bot/internal/metrics"
	"github.com/khayami66/study-support-bot/internal/milestone"
	"github.com/khayami66/study-support-bot/internal/notifier"
	"github.com/khayami66/study-support-bot/internal/rules"
	"github.com/khayami66/study-support-bot/internal/sheets"
)

const (
	metricsNamespace = "line_points"
	shutdownTimeout  = 10 * time.Second
)

// app is the wired HTTP surface plus the background notifier.
type app struct {
	router   http.Handler
	notifier notifier.Notifier
}

// Run is the testable entrypoint for the application.
func Run(ctx context.Context) error {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	log.Info("Starting LINE Point System")

	v := cfg.Validate()
	for _, e := range v.Errors {
		log.Warn("configuration error", zap.String("error", e))
	}
	for _, w := range v.Warnings {
		log.Warn("configuration warning", zap.String("warning", w))
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.notifier.Start()
		return nil
	})
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(ctxShutdown)
		a.notifier.Stop()
		return err
	})
	return g.Wait()
}

// newApp builds every component from cfg. A missing or unreachable ledger is not fatal.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	catalog, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	m, err := metrics.New(metricsNamespace, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}

	engine := rules.New(log, catalog.Rules)
	selector := milestone.New(milestone.Table(catalog.Milestones))

	// Interfaces stay nil when there is no ledger.
	var (
		botLedger bot.Ledger
		pinger    handler.Pinger
	)
	if rec := openLedger(ctx, cfg, log, m); rec != nil {
		botLedger, pinger = rec, rec
	}
	svc := bot.New(log, engine, botLedger, selector, catalog.Replies, cfg.HistoryLimit, m)

	client, err := line.NewClient(cfg.LineChannelAccessToken)
	if err != nil {
		return nil, err
	}
	if !client.Configured() {
		log.Warn("replies and pushes disabled", zap.Error(apperror.ErrMessagingNotConfigured))
	}
	n := notifier.New(notifier.Config{
		BatchSize:  cfg.PushBatchSize,
		Interval:   cfg.PushInterval,
		Retries:    cfg.PushRetries,
		RetryDelay: cfg.PushRetryDelay,
	}, client, log, m)

	validate := validator.New()
	if err := validate.RegisterValidation("placeholder", handler.PlaceholderValidator); err != nil {
		return nil, fmt.Errorf("register validator: %w", err)
	}
	dedup, err := handler.NewDeduper()
	if err != nil {
		return nil, err
	}

	h := handler.New(handler.Deps{
		Log:      log,
		Bot:      svc,
		Parser:   line.NewParser(cfg.LineChannelSecret),
		Replier:  client,
		Notifier: n,
		Rules:    engine,
		Validate: validate,
		Config:   cfg,
		Ledger:   pinger,
		Dedup:    dedup,
	})
	return &app{router: newRouter(h, cfg.AdminToken, log), notifier: n}, nil
}

func newRouter(h *handler.Handler, adminToken string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(handler.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/", h.Index)
	r.Get("/health", h.Healthz)
	r.Get("/config", h.ConfigStatus)
	r.Post("/callback", h.Callback)
	r.Handle("/metrics", promhttp.Handler())

	if adminToken != "" {
		r.Route("/rules", func(r chi.Router) {
			r.Use(handler.RequireToken(adminToken))
			r.Get("/", h.ListRules)
			r.Post("/", h.AddRule)
			r.Delete("/{keyword}", h.DeleteRule)
		})
	}
	return r
}

func sheetsConfig(cfg *config.Config) sheets.Config {
	return sheets.Config{
		SpreadsheetID: cfg.SpreadsheetID,
		Worksheet:     cfg.WorksheetName,
		Credentials: sheets.CredentialSource{
			JSON:   cfg.CredentialsJSON,
			Base64: cfg.CredentialsBase64,
			File:   cfg.CredentialsFile,
		},
		RequestsPerSecond: cfg.SheetsRPS,
	}
}

// openLedger returns nil when the ledger is not configured or cannot be reached.
func openLedger(ctx context.Context, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *ledger.Reconciler {
	switch cfg.LedgerBackend {
	case config.BackendMemory:
		log.Warn("using in-memory ledger, points are lost on exit")
		rec := ledger.New(sheets.NewMemory(), log, m, cfg.Location())
		rec.Initialize(ctx)
		return rec
	case config.BackendSheets:
	default:
		log.Error("unknown ledger backend, ledger disabled", zap.String("backend", cfg.LedgerBackend))
		return nil
	}

	if !cfg.LedgerConfigured() {
		log.Warn("ledger disabled", zap.Error(apperror.ErrLedgerNotConfigured))
		return nil
	}
	ws, err := sheets.New(ctx, sheetsConfig(cfg), log)
	if err != nil {
		log.Error("google sheets initialization failed", zap.Error(err))
		return nil
	}
	rec := ledger.New(ws, log, m, cfg.Location())
	if !rec.Initialize(ctx) {
		log.Warn("ledger header could not be verified, continuing")
	}
	return rec
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "line-points",
		Short:         "LINE point system backed by Google Sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context())
		},
	}
	root.AddCommand(serveCmd(), initLedgerCmd(), encodeCredentialsCmd(), checkCredentialsCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context())
		},
	}
}

func initLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-ledger",
		Short: "Write the header row to the ledger worksheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			log := logger.New(cfg.Env, cfg.LogLevel)
			defer func() { _ = log.Sync() }()

			if cfg.LedgerBackend != config.BackendSheets || !cfg.LedgerConfigured() {
				return apperror.ErrLedgerNotConfigured
			}
			ws, err := sheets.New(cmd.Context(), sheetsConfig(cfg), log)
			if err != nil {
				return err
			}
			if !ledger.New(ws, log, nil, cfg.Location()).Initialize(cmd.Context()) {
				return errors.New("ledger initialization failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ledger %q is ready\n", cfg.WorksheetName)
			return nil
		},
	}
}

func encodeCredentialsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode-credentials [file]",
		Short: "Print a credentials file as GOOGLE_CREDENTIALS_BASE64",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "credentials.json"
			if len(args) == 1 {
				path = args[0]
			}
			encoded, err := sheets.EncodeFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "GOOGLE_CREDENTIALS_BASE64=%s\n", encoded)
			return nil
		},
	}
}

func checkCredentialsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-credentials",
		Short: "Validate the configured Google service account credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			raw, err := sheetsConfig(cfg).Credentials.Load()
			if err != nil {
				return err
			}
			sa, err := sheets.ParseServiceAccount(raw)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "project_id: %s\n", sa.ProjectID)
			fmt.Fprintf(out, "client_email: %s\n", sa.ClientEmail)
			fmt.Fprintln(out, "share the spreadsheet with client_email as an editor")
			return nil
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
