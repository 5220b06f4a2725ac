package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/khayami66/study-support-bot/internal/config"
	"github.com/khayami66/study-support-bot/internal/line"
	"github.com/khayami66/study-support-bot/internal/model"
	"github.com/khayami66/study-support-bot/internal/rules"
)

type mockBot struct {
	outcome model.Outcome
	panics  bool
	handled []model.InboundMessage
}

func (m *mockBot) Handle(_ context.Context, in model.InboundMessage) model.Outcome {
	m.handled = append(m.handled, in)
	if m.panics {
		panic("boom")
	}
	return m.outcome
}

func (m *mockBot) InternalError() string { return "internal error" }

type mockParser struct {
	msgs []model.InboundMessage
	err  error
}

func (m *mockParser) Parse(*http.Request) ([]model.InboundMessage, error) { return m.msgs, m.err }

type reply struct{ token, text string }

type mockReplier struct {
	mu      sync.Mutex
	replies []reply
	err     error
}

func (m *mockReplier) Reply(_ context.Context, token, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, reply{token, text})
	return m.err
}

type mockNotifier struct {
	pushes []model.Push
}

func (m *mockNotifier) Add(p model.Push) { m.pushes = append(m.pushes, p) }
func (m *mockNotifier) Start()           {}
func (m *mockNotifier) Stop()            {}

type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context) error { return m.err }

type fixture struct {
	h        *Handler
	bot      *mockBot
	parser   *mockParser
	replier  *mockReplier
	notifier *mockNotifier
	rules    *rules.Engine
}

func newFixture(t *testing.T, log *zap.Logger) *fixture {
	t.Helper()
	if log == nil {
		log = zap.NewNop()
	}
	validate := validator.New()
	require.NoError(t, validate.RegisterValidation("placeholder", PlaceholderValidator))
	dedup, err := NewDeduper()
	require.NoError(t, err)

	f := &fixture{
		bot:      &mockBot{outcome: model.Outcome{Reply: "ok"}},
		parser:   &mockParser{},
		replier:  &mockReplier{},
		notifier: &mockNotifier{},
		rules: rules.New(log, []model.PointRule{
			{Keyword: "#walk", Points: 3, Message: "walk +{points}pt", Description: "walk"},
		}),
	}
	f.h = New(Deps{
		Log:      log,
		Bot:      f.bot,
		Parser:   f.parser,
		Replier:  f.replier,
		Notifier: f.notifier,
		Rules:    f.rules,
		Validate: validate,
		Config:   &config.Config{LedgerBackend: config.BackendSheets, SpreadsheetID: "sheet", WorksheetName: "log"},
		Dedup:    dedup,
	})
	return f
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	w := httptest.NewRecorder()
	f.h.Healthz(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","message":"LINE Point System is running"}`, w.Body.String())
}

func TestCallback_RepliesAndQueuesPush(t *testing.T) {
	f := newFixture(t, nil)
	f.parser.msgs = []model.InboundMessage{{UserID: "u1", Text: "#walk", ReplyToken: "rt", EventID: "e1"}}
	f.bot.outcome = model.Outcome{Reply: "walk +3pt", Push: &model.Push{To: "u1", Text: "🎉"}}

	w := httptest.NewRecorder()
	f.h.Callback(w, httptest.NewRequest(http.MethodPost, "/callback", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, []reply{{"rt", "walk +3pt"}}, f.replier.replies)
	assert.Equal(t, []model.Push{{To: "u1", Text: "🎉"}}, f.notifier.pushes)
}

func TestCallback_InvalidSignature(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newFixture(t, zap.New(core))
	f.parser.err = line.ErrInvalidSignature

	w := httptest.NewRecorder()
	f.h.Callback(w, httptest.NewRequest(http.MethodPost, "/callback", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("invalid signature, check the channel secret").Len())
	assert.Empty(t, f.bot.handled)
}

func TestCallback_MalformedBody(t *testing.T) {
	f := newFixture(t, nil)
	f.parser.err = errors.New("unexpected end of JSON input")

	w := httptest.NewRecorder()
	f.h.Callback(w, httptest.NewRequest(http.MethodPost, "/callback", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallback_SkipsDuplicateEvents(t *testing.T) {
	f := newFixture(t, nil)
	f.parser.msgs = []model.InboundMessage{{UserID: "u1", Text: "#walk", ReplyToken: "rt", EventID: "e1"}}

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		f.h.Callback(w, httptest.NewRequest(http.MethodPost, "/callback", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Len(t, f.bot.handled, 1)
	assert.Len(t, f.replier.replies, 1)
}

func TestCallback_PanicRepliesInternalError(t *testing.T) {
	f := newFixture(t, nil)
	f.parser.msgs = []model.InboundMessage{{UserID: "u1", Text: "#walk", ReplyToken: "rt", EventID: "e1"}}
	f.bot.panics = true

	w := httptest.NewRecorder()
	f.h.Callback(w, httptest.NewRequest(http.MethodPost, "/callback", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []reply{{"rt", "internal error"}}, f.replier.replies)
	assert.Empty(t, f.notifier.pushes)
}

func TestCallback_ReplyFailureStillQueuesPush(t *testing.T) {
	f := newFixture(t, nil)
	f.parser.msgs = []model.InboundMessage{{UserID: "u1", Text: "#walk", ReplyToken: "rt"}}
	f.bot.outcome = model.Outcome{Reply: "x", Push: &model.Push{To: "u1", Text: "🎉"}}
	f.replier.err = errors.New("reply token expired")

	w := httptest.NewRecorder()
	f.h.Callback(w, httptest.NewRequest(http.MethodPost, "/callback", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.notifier.pushes, 1)
}

func TestConfigStatus(t *testing.T) {
	tests := []struct {
		name     string
		ledger   Pinger
		wantTest string
	}{
		{"no ledger", nil, "not_initialized"},
		{"reachable", mockPinger{}, "success"},
		{"unreachable", mockPinger{err: errors.New("403 forbidden")}, "failed: 403 forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.h.ledger = tt.ledger

			w := httptest.NewRecorder()
			f.h.ConfigStatus(w, httptest.NewRequest(http.MethodGet, "/config", nil))
			require.Equal(t, http.StatusOK, w.Code)

			var body struct {
				Validation      config.Validation `json:"validation"`
				Summary         map[string]any    `json:"summary"`
				SheetsStatus    map[string]any    `json:"sheets_status"`
				SheetsConnected bool              `json:"sheets_connected"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantTest, body.SheetsStatus["connection_test"])
			assert.Equal(t, tt.ledger != nil, body.SheetsConnected)
			assert.Equal(t, 1.0, body.Summary["point_rules_count"])
			assert.False(t, body.Validation.Valid)
		})
	}
}

func TestIndex(t *testing.T) {
	f := newFixture(t, nil)
	f.rules.Add(model.PointRule{Keyword: "<b>", Points: 1, Message: "{points}", Description: "x"})

	w := httptest.NewRecorder()
	f.h.Index(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<code>#walk</code> - walkで3pt")
	assert.Contains(t, body, "&lt;b&gt;")
}

func TestRules(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name         string
		body         string
		expectCode   int
		expectedBody string
	}{
		{
			name:         "valid rule",
			body:         `{"keyword":"#read","points":2,"message":"read +{points}pt","description":"reading"}`,
			expectCode:   http.StatusCreated,
			expectedBody: `{"keyword":"#read","points":2,"message":"read +{points}pt","description":"reading"}`,
		},
		{
			name:         "missing keyword",
			body:         `{"points":2,"message":"+{points}pt"}`,
			expectCode:   http.StatusBadRequest,
			expectedBody: `[{"Keyword":"is required"}]`,
		},
		{
			name:         "negative points",
			body:         `{"keyword":"#x","points":-1,"message":"+{points}pt"}`,
			expectCode:   http.StatusBadRequest,
			expectedBody: `[{"Points":"must be a positive number"}]`,
		},
		{
			name:         "missing placeholder",
			body:         `{"keyword":"#x","points":1,"message":"well done"}`,
			expectCode:   http.StatusBadRequest,
			expectedBody: `[{"Message":"must contain the {points} placeholder"}]`,
		},
		{
			name:         "malformed json",
			body:         `{"keyword":`,
			expectCode:   http.StatusBadRequest,
			expectedBody: `{"error":"invalid request payload"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			f.h.AddRule(w, httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.expectCode, w.Code)
			resp, _ := io.ReadAll(w.Body)
			assert.JSONEq(t, tt.expectedBody, string(resp))
		})
	}

	_, ok := f.rules.Rule("#read")
	assert.True(t, ok)

	w := httptest.NewRecorder()
	f.h.ListRules(w, httptest.NewRequest(http.MethodGet, "/rules", nil))
	var listed []model.PointRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "#walk", listed[0].Keyword)
	assert.Equal(t, "#read", listed[1].Keyword)
}

func deleteRequest(keyword string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/rules/x", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("keyword", keyword)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDeleteRule(t *testing.T) {
	f := newFixture(t, nil)

	w := httptest.NewRecorder()
	f.h.DeleteRule(w, deleteRequest("#walk"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	f.h.DeleteRule(w, deleteRequest("#walk"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func escapedDeleteRequest(target, param string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("keyword", param)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDeleteRule_EscapedKeyword(t *testing.T) {
	f := newFixture(t, nil)
	f.rules.Add(model.PointRule{Keyword: "#a/b", Points: 1, Message: "{points}"})
	f.rules.Add(model.PointRule{Keyword: "#lower", Points: 1, Message: "{points}"})

	tests := []struct {
		name   string
		target string
		param  string
		want   int
	}{
		{"escaped slash", "/rules/%23a%2Fb", "%23a%2Fb", http.StatusNoContent},
		{"lowercase hex", "/rules/%23%6cower", "%23%6cower", http.StatusNoContent},
		{"already removed", "/rules/%23a%2Fb", "%23a%2Fb", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := escapedDeleteRequest(tt.target, tt.param)
			require.NotEmpty(t, req.URL.RawPath)

			w := httptest.NewRecorder()
			f.h.DeleteRule(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
	assert.Len(t, f.rules.Rules(), 1)
}

func TestDeleteRule_BadEscape(t *testing.T) {
	f := newFixture(t, nil)
	req := escapedDeleteRequest("/rules/x", "%zz")
	req.URL.RawPath = "/rules/%zz"

	w := httptest.NewRecorder()
	f.h.DeleteRule(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, f.rules.Rules(), 1)
}

func TestRequireToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := RequireToken("s3cret")(next)

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"s3cret", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Bearer s3cret", http.StatusTeapot},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/rules", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Code, tt.header)
	}
}

func TestDeduper(t *testing.T) {
	d, err := NewDeduper()
	require.NoError(t, err)

	assert.False(t, d.Seen("e1"))
	assert.True(t, d.Seen("e1"))
	assert.False(t, d.Seen("e2"))
	assert.False(t, d.Seen(""))
	assert.False(t, d.Seen(""))

	var nilDedup *Deduper
	assert.False(t, nilDedup.Seen("e1"))
}

func TestDeduper_Expires(t *testing.T) {
	d := newDeduper(8, 20*time.Millisecond)

	assert.False(t, d.Seen("e1"))
	assert.True(t, d.Seen("e1"))
	require.Eventually(t, func() bool { return !d.Seen("e1") }, time.Second, 10*time.Millisecond)
}

func TestDeduper_EvictsOldest(t *testing.T) {
	d := newDeduper(2, time.Minute)

	assert.False(t, d.Seen("e1"))
	assert.False(t, d.Seen("e2"))
	assert.False(t, d.Seen("e3"))
	assert.False(t, d.Seen("e1"))
	assert.True(t, d.Seen("e3"))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/health", fields["path"])
	assert.EqualValues(t, http.StatusAccepted, fields["status"])
	assert.Equal(t, http.MethodGet, fields["method"])
}
