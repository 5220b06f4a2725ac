// Package bot turns inbound chat messages into point awards and replies.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/khayami66/study-support-bot/internal/config"
	"github.com/khayami66/study-support-bot/internal/metrics"
	"github.com/khayami66/study-support-bot/internal/milestone"
	"github.com/khayami66/study-support-bot/internal/model"
	"github.com/khayami66/study-support-bot/internal/rules"
)

// Ledger records awards and reads totals. Implementations return zero values on failure.
type Ledger interface {
	TotalPoints(ctx context.Context, userID string) int
	RecordAction(ctx context.Context, userID, action string, points int) bool
	History(ctx context.Context, userID string, limit int) []model.HistoryEntry
}

// Outcome labels used for metrics.
const (
	outcomeHelp        = "help"
	outcomePoints      = "points"
	outcomeHistory     = "history"
	outcomeNoMatch     = "no_match"
	outcomeUnavailable = "unavailable"
	outcomeAwarded     = "awarded"
	outcomeFailed      = "record_failed"
)

// Service composes replies for inbound messages.
type Service struct {
	log          *zap.Logger
	rules        *rules.Engine
	ledger       Ledger
	milestones   *milestone.Selector
	replies      config.Replies
	historyLimit int
	metrics      *metrics.Metrics
}

// New creates a Service. ledger is nil when no ledger is configured; rule matching and
// help keep working and ledger commands reply that the ledger is unavailable.
func New(log *zap.Logger, engine *rules.Engine, ledger Ledger, selector *milestone.Selector,
	replies config.Replies, historyLimit int, m *metrics.Metrics) *Service {
	return &Service{
		log:          log,
		rules:        engine,
		ledger:       ledger,
		milestones:   selector,
		replies:      replies,
		historyLimit: historyLimit,
		metrics:      m,
	}
}

// Handle produces the reply for in, plus a push when a milestone was reached.
func (s *Service) Handle(ctx context.Context, in model.InboundMessage) model.Outcome {
	cmd := ParseCommand(in.Text)
	s.log.Info("message received",
		zap.String("user", in.UserID),
		zap.String("text", in.Text),
		zap.Stringer("command", cmd))

	switch cmd {
	case CommandHelp:
		s.metrics.Message(outcomeHelp)
		return model.Outcome{Reply: s.rules.HelpText()}
	case CommandPoints:
		return s.points(ctx, in.UserID)
	case CommandHistory:
		return s.history(ctx, in.UserID)
	default:
		return s.award(ctx, in)
	}
}

// InternalError is the reply sent when handling failed unexpectedly.
func (s *Service) InternalError() string {
	return s.replies.InternalError
}

func (s *Service) points(ctx context.Context, userID string) model.Outcome {
	if s.ledger == nil {
		s.metrics.Message(outcomeUnavailable)
		return model.Outcome{Reply: s.replies.Unavailable}
	}
	s.metrics.Message(outcomePoints)
	total := s.ledger.TotalPoints(ctx, userID)
	return model.Outcome{Reply: strings.ReplaceAll(s.replies.Total, "{total}", strconv.Itoa(total))}
}

func (s *Service) history(ctx context.Context, userID string) model.Outcome {
	if s.ledger == nil {
		s.metrics.Message(outcomeUnavailable)
		return model.Outcome{Reply: s.replies.Unavailable}
	}
	s.metrics.Message(outcomeHistory)
	entries := s.ledger.History(ctx, userID, s.historyLimit)
	if len(entries) == 0 {
		return model.Outcome{Reply: s.replies.HistoryEmpty}
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, s.replies.HistoryHeader)
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("• %s (+%dpt) - %s", e.Action, e.Points, e.Timestamp))
	}
	return model.Outcome{Reply: strings.Join(lines, "\n")}
}

func (s *Service) award(ctx context.Context, in model.InboundMessage) model.Outcome {
	matches := s.rules.Parse(in.Text)
	if len(matches) == 0 {
		s.metrics.Message(outcomeNoMatch)
		return model.Outcome{Reply: s.replies.NoMatch + "\n\n" + s.rules.HelpText()}
	}
	if s.ledger == nil {
		s.metrics.Message(outcomeUnavailable)
		return model.Outcome{Reply: s.replies.NotConfigured}
	}

	earned := 0
	var recorded []model.MatchResult
	for _, m := range matches {
		if !s.ledger.RecordAction(ctx, in.UserID, m.Action(), m.Points) {
			s.log.Error("failed to record action", zap.String("user", in.UserID), zap.String("keyword", m.Keyword))
			continue
		}
		earned += m.Points
		recorded = append(recorded, m)
	}
	if len(recorded) == 0 {
		s.metrics.Message(outcomeFailed)
		return model.Outcome{Reply: s.replies.RecordFailed}
	}
	s.metrics.Message(outcomeAwarded)
	s.metrics.PointsAwarded(earned)

	total := s.ledger.TotalPoints(ctx, in.UserID)
	out := model.Outcome{Reply: awardReply(recorded, total)}

	if msg, ok := s.milestones.Select(total-earned, total); ok {
		s.metrics.Milestone()
		s.log.Info("milestone reached", zap.String("user", in.UserID), zap.Int("total", total))
		out.Push = &model.Push{To: in.UserID, Text: msg}
	}
	return out
}

// awardReply joins the rendered rule messages and appends the new total.
func awardReply(recorded []model.MatchResult, total int) string {
	msgs := make([]string, 0, len(recorded))
	for _, m := range recorded {
		msgs = append(msgs, m.Message)
	}
	return fmt.Sprintf("%s（合計：%dpt）", strings.Join(msgs, " "), total)
}
