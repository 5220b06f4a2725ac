// Package rules matches inbound text against the configured point rules.
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/khayami66/study-support-bot/internal/model"
)

const (
	helpHeader = "📝 ポイント対象の行動一覧："
	helpHint   = "\n💡 メッセージに上記のキーワードを含めて送信するとポイントが付与されます！"
	helpEmpty  = "現在、ポイント対象の行動は設定されていません。"
)

// Engine owns the active rule set. It is safe for concurrent use.
type Engine struct {
	log   *zap.Logger
	mu    sync.RWMutex
	order []string
	rules map[string]model.PointRule
}

// New creates an Engine seeded with rules in their configured order.
// A later duplicate keyword overwrites the earlier one in place.
func New(log *zap.Logger, seed []model.PointRule) *Engine {
	e := &Engine{
		log:   log,
		rules: make(map[string]model.PointRule, len(seed)),
	}
	for _, r := range seed {
		e.put(r)
	}
	return e
}

func (e *Engine) put(r model.PointRule) {
	if _, ok := e.rules[r.Keyword]; !ok {
		e.order = append(e.order, r.Keyword)
	}
	e.rules[r.Keyword] = r
}

// Add inserts a rule or replaces the rule with the same keyword.
func (e *Engine) Add(r model.PointRule) {
	e.mu.Lock()
	e.put(r)
	e.mu.Unlock()
	e.log.Info("point rule added", zap.String("keyword", r.Keyword), zap.Int("points", r.Points))
}

// Remove deletes the rule for keyword and reports whether it existed.
func (e *Engine) Remove(keyword string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[keyword]; !ok {
		return false
	}
	delete(e.rules, keyword)
	for i, k := range e.order {
		if k == keyword {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.log.Info("point rule removed", zap.String("keyword", keyword))
	return true
}

// Rule returns the rule registered for keyword.
func (e *Engine) Rule(keyword string) (model.PointRule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[keyword]
	return r, ok
}

// Rules returns a copy of the rule set in configured order.
func (e *Engine) Rules() []model.PointRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.PointRule, 0, len(e.order))
	for _, k := range e.order {
		out = append(out, e.rules[k])
	}
	return out
}

// Parse returns one match for every rule whose keyword occurs anywhere in text.
// Matching is plain substring containment, so overlapping keywords all fire.
func (e *Engine) Parse(text string) []model.MatchResult {
	var matches []model.MatchResult
	for _, r := range e.Rules() {
		if !strings.Contains(text, r.Keyword) {
			continue
		}
		matches = append(matches, model.MatchResult{
			Keyword:     r.Keyword,
			Points:      r.Points,
			Message:     Render(r.Message, r.Points),
			Description: r.Description,
		})
	}
	return matches
}

// Render substitutes points into a message template.
func Render(template string, points int) string {
	return strings.ReplaceAll(template, model.PointsPlaceholder, strconv.Itoa(points))
}

// HelpText lists every rule with its point value.
func (e *Engine) HelpText() string {
	rules := e.Rules()
	if len(rules) == 0 {
		return helpEmpty
	}

	lines := make([]string, 0, len(rules)+2)
	lines = append(lines, helpHeader)
	for _, r := range rules {
		desc := r.Description
		if desc == "" {
			desc = r.Keyword
		}
		lines = append(lines, fmt.Sprintf("• %s → %dpt (%s)", r.Keyword, r.Points, desc))
	}
	lines = append(lines, helpHint)
	return strings.Join(lines, "\n")
}
