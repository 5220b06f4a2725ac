package handler

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>LINE Point System</title></head>
<body>
<h1>LINE Point System</h1>
<p>LINEメッセージに応じてポイントを付与し、Googleスプレッドシートに記録するシステムです。</p>
<h2>使用方法</h2>
<ul>
{{- range .}}
<li><code>{{.Keyword}}</code> - {{.Description}}で{{.Points}}pt</li>
{{- end}}
<li><code>#ポイント</code> - 現在の合計ポイントを確認</li>
<li><code>#履歴</code> - 最近の行動履歴を確認</li>
<li><code>#ヘルプ</code> - ヘルプを表示</li>
</ul>
<h2>管理エンドポイント</h2>
<ul>
<li><a href="/health">/health</a> - ヘルスチェック</li>
<li><a href="/config">/config</a> - 設定状況確認</li>
<li><a href="/metrics">/metrics</a> - メトリクス</li>
</ul>
</body>
</html>
`))

// Index renders the usage page.
func (h *Handler) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage.Execute(w, h.rules.Rules()); err != nil {
		h.log.Error("unable to render index", zap.Error(err))
	}
}

// ConfigStatus reports configuration problems and whether the ledger is reachable.
func (h *Handler) ConfigStatus(w http.ResponseWriter, r *http.Request) {
	sheets := map[string]any{
		"connected":                 h.ledger != nil,
		"spreadsheet_id_configured": h.cfg.LedgerConfigured(),
		"worksheet_name":            h.cfg.WorksheetName,
	}
	if h.ledger == nil {
		sheets["connection_test"] = "not_initialized"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := h.ledger.Ping(ctx); err != nil {
			sheets["connection_test"] = "failed: " + err.Error()
		} else {
			sheets["connection_test"] = "success"
		}
	}

	summary := h.cfg.Summary()
	summary["point_rules_count"] = len(h.rules.Rules())

	writeJSON(w, http.StatusOK, map[string]any{
		"validation":       h.cfg.Validate(),
		"summary":          summary,
		"sheets_status":    sheets,
		"sheets_connected": h.ledger != nil,
	})
}
