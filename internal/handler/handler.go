// Package handler contains HTTP handlers for the LINE webhook and the admin API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/khayami66/study-support-bot/internal/config"
	"github.com/khayami66/study-support-bot/internal/line"
	"github.com/khayami66/study-support-bot/internal/model"
	"github.com/khayami66/study-support-bot/internal/notifier"
)

// PlaceholderValidator checks that a message template contains the points placeholder.
var PlaceholderValidator = func(fl validator.FieldLevel) bool {
	return strings.Contains(fl.Field().String(), model.PointsPlaceholder)
}

// Bot composes replies for inbound messages.
type Bot interface {
	Handle(ctx context.Context, in model.InboundMessage) model.Outcome
	InternalError() string
}

// Parser extracts inbound messages from a verified webhook request.
type Parser interface {
	Parse(r *http.Request) ([]model.InboundMessage, error)
}

// Replier answers an inbound event.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// RuleStore is the runtime-editable rule set.
type RuleStore interface {
	Rules() []model.PointRule
	Add(r model.PointRule)
	Remove(keyword string) bool
}

// Pinger checks ledger connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Handler. Ledger is nil when no ledger is configured.
type Deps struct {
	Log      *zap.Logger
	Bot      Bot
	Parser   Parser
	Replier  Replier
	Notifier notifier.Notifier
	Rules    RuleStore
	Validate *validator.Validate
	Config   *config.Config
	Ledger   Pinger
	Dedup    *Deduper
}

// Handler wraps HTTP handlers with their collaborators.
type Handler struct {
	log      *zap.Logger
	bot      Bot
	parser   Parser
	replier  Replier
	notifier notifier.Notifier
	rules    RuleStore
	validate *validator.Validate
	cfg      *config.Config
	ledger   Pinger
	dedup    *Deduper
}

// New creates a new Handler instance.
func New(d Deps) *Handler {
	return &Handler{
		log:      d.Log,
		bot:      d.Bot,
		parser:   d.Parser,
		replier:  d.Replier,
		notifier: d.Notifier,
		rules:    d.Rules,
		validate: d.Validate,
		cfg:      d.Config,
		ledger:   d.Ledger,
		dedup:    d.Dedup,
	}
}

// Healthz is a simple health check endpoint.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "LINE Point System is running",
	})
}

// Callback receives LINE webhook deliveries.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.parser.Parse(r)
	if err != nil {
		if errors.Is(err, line.ErrInvalidSignature) {
			h.log.Error("invalid signature, check the channel secret")
		} else {
			h.log.Error("failed to parse webhook", zap.Error(err))
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	for _, in := range msgs {
		if h.dedup.Seen(in.EventID) {
			h.log.Info("duplicate webhook event skipped",
				zap.String("event_id", in.EventID),
				zap.Bool("redelivery", in.Redelivery))
			continue
		}
		h.dispatch(r.Context(), in)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// dispatch replies to one message and queues its push. A panic while composing the
// reply is answered with the internal error text.
func (h *Handler) dispatch(ctx context.Context, in model.InboundMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("message handling panicked", zap.String("user", in.UserID), zap.Any("panic", rec))
			h.reply(ctx, in, h.bot.InternalError())
		}
	}()

	out := h.bot.Handle(ctx, in)
	h.reply(ctx, in, out.Reply)
	if out.Push != nil {
		h.notifier.Add(*out.Push)
	}
}

func (h *Handler) reply(ctx context.Context, in model.InboundMessage, text string) {
	if err := h.replier.Reply(ctx, in.ReplyToken, text); err != nil {
		h.log.Error("failed to send reply", zap.String("user", in.UserID), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
